// Package query retrieves and assembles the context a model needs to
// answer a question over one tenant's knowledge graph: keyword
// extraction, candidate search, token-budget truncation, round-robin
// merge, and context building.
package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mangrove-ai/mangrove/pkg/ai"
)

// Mode selects the retrieval strategy for one query.
type Mode string

const (
	// ModeLocal retrieves specific entities and their direct relations.
	ModeLocal Mode = "local"
	// ModeGlobal retrieves theme-level relations and their endpoints.
	ModeGlobal Mode = "global"
	// ModeHybrid combines local and global retrieval.
	ModeHybrid Mode = "hybrid"
	// ModeNaive retrieves document chunks by plain vector similarity.
	ModeNaive Mode = "naive"
	// ModeMix combines graph retrieval with chunk retrieval.
	ModeMix Mode = "mix"
	// ModeBypass skips retrieval entirely and chats with the model.
	ModeBypass Mode = "bypass"
)

// ErrUnknownMode marks a mode string that names no retrieval strategy.
var ErrUnknownMode = errors.New("unknown query mode")

// ParseMode validates a mode string; the empty string defaults to mix.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return ModeMix, nil
	case ModeLocal:
		return ModeLocal, nil
	case ModeGlobal:
		return ModeGlobal, nil
	case ModeHybrid:
		return ModeHybrid, nil
	case ModeNaive:
		return ModeNaive, nil
	case ModeMix:
		return ModeMix, nil
	case ModeBypass:
		return ModeBypass, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownMode, s)
	}
}

// Framing returns the retrieval framing injected into the synthesis
// system prompt for this mode.
func (m Mode) Framing() string {
	switch m {
	case ModeLocal:
		return ai.FramingLocal
	case ModeGlobal:
		return ai.FramingGlobal
	case ModeHybrid:
		return ai.FramingHybrid
	case ModeNaive:
		return ai.FramingNaive
	default:
		return ai.FramingMix
	}
}

func (m Mode) usesEntities() bool {
	return m == ModeLocal || m == ModeGlobal || m == ModeHybrid || m == ModeMix
}

func (m Mode) usesRelations() bool {
	return m == ModeLocal || m == ModeGlobal || m == ModeHybrid || m == ModeMix
}

func (m Mode) usesChunks() bool {
	return m == ModeNaive || m == ModeHybrid || m == ModeMix
}

// usesKeywords reports whether the mode routes retrieval through
// extracted keywords rather than the raw query text alone.
func (m Mode) usesKeywords() bool {
	return m == ModeLocal || m == ModeGlobal || m == ModeHybrid || m == ModeMix
}
