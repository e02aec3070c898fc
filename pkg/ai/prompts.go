package ai

// ExtractPrompt is the system prompt for entity/relation extraction.
// Placeholders: entity types, extraction language, entity types again
// for the output rules.
const ExtractPrompt = `
# Task Context
You are an information extraction system building a knowledge graph from text documents.

# Detailed Task Description & Rules
- Identify all entities in the provided text. For each entity use one of these types: %s
- Write all output in %s.
- Entity names must be written with all letters capitalized.
- For every pair of related entities, output a relationship with a short explanation, a list of keywords summarizing the relationship, and a numeric strength score between 1 and 10.
- Only extract entities and relationships that are explicitly supported by the text. Do not invent information.
- Descriptions must be comprehensive but grounded: attributes, activities, and facts stated in the source.

# Output Formatting
Return a JSON object with this structure:
{
  "entities": [
    {"name": "<NAME>", "type": "<one of: %s>", "description": "<description>"}
  ],
  "relationships": [
    {"source": "<NAME>", "target": "<NAME>", "description": "<why related>", "keywords": ["<kw>"], "strength": <1-10>}
  ]
}
`

// GleaningPrompt asks the model for entities and relationships it
// missed in the previous extraction round. Placeholder: the previous
// raw extraction result.
const GleaningPrompt = `
# Task Context
You previously extracted entities and relationships from a text document. Some were missed.

# Background Data
Previous extraction result:
%s

# Immediate Task Description or Request
Re-read the document text and add ONLY the entities and relationships missing from the previous result. Do not repeat anything already extracted. If nothing is missing, return empty lists.

# Output Formatting
Use exactly the same JSON structure as the previous result.
`

// KeywordsPrompt extracts high-level and low-level keywords from a user
// query for retrieval routing. Placeholders: conversation context, query.
const KeywordsPrompt = `
# Task Context
You are a retrieval assistant that extracts keywords from a user question for knowledge-graph search.

# Background Data
- Conversation context: "%s"
- User question: "%s"

# Detailed Task Description & Rules
- "high_level_keywords" capture overarching concepts and themes of the question.
- "low_level_keywords" capture specific entities, names, and concrete details.
- Return empty lists when the question contains no usable keywords; do not invent any.

# Output Formatting
Return a JSON object with this structure:
{
  "high_level_keywords": ["<keyword>"],
  "low_level_keywords": ["<keyword>"]
}
`

// SummarizePrompt condenses accumulated description fragments of one
// entity or relation. Placeholders: language, subject name, fragments.
const SummarizePrompt = `
# Task Context
You are a helpful assistant summarizing accumulated facts about one subject in a knowledge graph.

# Detailed Task Description & Rules
- Write a single coherent summary in %s.
- Resolve contradictions in favor of the most specific statement.
- Keep every distinct fact; drop only repetition.
- Write in third person and mention the subject by name.

# Background Data
Subject: %s
Collected descriptions:
%s

# Immediate Task Description or Request
Return only the summary text, no preamble.
`

// QuerySystemPrompt frames answer synthesis over retrieved context.
// Placeholders: retrieval strategy framing, context, response format.
const QuerySystemPrompt = `
# Task Context
You are an assistant answering questions over a curated knowledge base. %s

# Background Data
%s

# Detailed Task Description & Rules
- Answer using ONLY the background data above. If it does not contain the answer, say so.
- Cite sources inline by wrapping their ids in double brackets, e.g. [[src-id]]. Only cite ids that appear in the background data.
- %s
`

// Framing lines injected into QuerySystemPrompt per query mode.
const (
	FramingLocal  = "The data below describes specific entities and their direct relationships relevant to the question."
	FramingGlobal = "The data below describes themes and relationships aggregated across the whole knowledge base."
	FramingHybrid = "The data below combines entity details, their relationships, and original document excerpts."
	FramingNaive  = "The data below consists of document excerpts retrieved by semantic similarity."
	FramingMix    = "The data below combines knowledge-graph facts and document excerpts selected by the question's keywords."
)

// NoDataPrompt generates a graceful answer when retrieval produced no
// context. Placeholder: the user query.
const NoDataPrompt = `
# Task Context
A user asked a question, but the knowledge base contains no relevant information.

# Background Data
User question: "%s"

# Immediate Task Description or Request
Reply in the language of the question that the knowledge base contains no information on this topic. Do not attempt to answer from general knowledge.
`

// DefaultResponseFormat is appended to the synthesis prompt when the
// caller does not specify one.
const DefaultResponseFormat = "Respond in multiple paragraphs."
