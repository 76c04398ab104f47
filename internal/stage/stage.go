// Package stage provides the built-in pipeline stages.
//
// Real interpreters (trained-intent matchers, keyword matchers,
// conversational handlers) are external plugins registered at startup. For
// every configured slot with no registered implementation the daemon binds a
// default here, decided once at startup, never per call.
package stage

import (
	"context"

	"github.com/nadzzz/roundhouse/internal/message"
	"github.com/nadzzz/roundhouse/internal/pipeline"
)

// Decline returns a stage that never claims an utterance. It stands in for
// optional interpreter plugins that are not installed.
func Decline(name string) pipeline.Stage {
	return declineStage(name)
}

type declineStage string

func (s declineStage) Name() string { return string(s) }

func (s declineStage) Interpret(context.Context, []string, string, *message.Message) (*pipeline.Match, error) {
	return nil, nil
}

// CatchAll returns a stage that claims every utterance with the given intent
// type. Bound into the lowest fallback slot it guarantees the pipeline
// terminates with a result whenever it is reached.
func CatchAll(name, intentType string) pipeline.Stage {
	return &catchAllStage{name: name, intentType: intentType}
}

type catchAllStage struct {
	name       string
	intentType string
}

func (s *catchAllStage) Name() string { return s.name }

func (s *catchAllStage) Interpret(_ context.Context, utterances []string, lang string, _ *message.Message) (*pipeline.Match, error) {
	if len(utterances) == 0 {
		return nil, nil
	}
	return &pipeline.Match{
		Stage:      s.name,
		IntentType: s.intentType,
		IntentData: map[string]any{
			"utterance": utterances[0],
			"lang":      lang,
		},
		Utterance: utterances[0],
	}, nil
}
