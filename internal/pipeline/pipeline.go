// Package pipeline implements the ordered, short-circuiting dispatch of an
// utterance through interpreter stages.
//
// A stage is an opaque capability: given the candidate transcriptions, the
// resolved language, and the originating event, it either claims the
// utterance with a Match or declines with nil. The active stage ordering is
// data (the session's pipeline list), not code; names resolve against a
// registry populated once at startup.
package pipeline

import (
	"context"

	"github.com/nadzzz/roundhouse/internal/message"
)

// Match is the outcome of one interpreter stage. It is immutable once
// produced.
type Match struct {
	// Stage is the name of the stage that produced the match.
	Stage string

	// IntentType addresses the handler event to publish. Empty means the
	// stage fully handled the utterance itself and nothing further is
	// published.
	IntentType string

	// IntentData is merged into the outbound event payload.
	IntentData map[string]any

	// SkillID is the owning skill, if the stage reported one. The emitter
	// marks it active so the next utterance's converse stage can reach it.
	SkillID string

	// Utterance is the candidate transcription that matched.
	Utterance string
}

// Stage is one named interpreter capability.
//
// Interpret must return (nil, nil) to decline; a non-nil error is a stage
// fault, caught at the top-level utterance handler. Stages receive the full
// candidate list and choose internally which candidate to use.
type Stage interface {
	Name() string
	Interpret(ctx context.Context, utterances []string, lang string, msg *message.Message) (*Match, error)
}
