// Package tokens provides token counting, encoding, and budget
// enforcement for every text-handling component of the engine.
package tokens

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Codec counts and encodes tokens for a fixed tiktoken encoding.
// A Codec is safe for concurrent use.
type Codec struct {
	name string
	enc  *tiktoken.Tiktoken
}

// NewCodec creates a Codec for the named encoding (e.g. "o200k_base").
func NewCodec(encoding string) (*Codec, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("unknown token encoding %q: %w", encoding, err)
	}
	return &Codec{name: encoding, enc: enc}, nil
}

// Name returns the encoding name the Codec was created with.
func (c *Codec) Name() string {
	return c.name
}

// Count returns the number of tokens in text.
func (c *Codec) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

// Encode returns the token ids of text.
func (c *Codec) Encode(text string) []int {
	return c.enc.Encode(text, nil, nil)
}

// Decode reassembles text from token ids.
func (c *Codec) Decode(ids []int) string {
	return c.enc.Decode(ids)
}

// Truncate returns text cut down to at most limit tokens. Text already
// within the limit is returned unchanged, byte for byte.
func (c *Codec) Truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	ids := c.enc.Encode(text, nil, nil)
	if len(ids) <= limit {
		return text
	}
	return c.enc.Decode(ids[:limit])
}
