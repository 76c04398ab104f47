package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nadzzz/roundhouse/internal/message"
	"github.com/nadzzz/roundhouse/internal/session"
)

// Dispatcher runs the stage pipeline for one utterance.
type Dispatcher struct {
	registry     *Registry
	defaultOrder []string
}

// NewDispatcher creates a dispatcher over a registry with the given default
// stage order, used whenever a session carries no override.
func NewDispatcher(registry *Registry, defaultOrder []string) *Dispatcher {
	return &Dispatcher{registry: registry, defaultOrder: defaultOrder}
}

// Dispatch executes the session's configured stages strictly in order,
// stopping at the first stage that claims the utterance. Ordering alone
// breaks ties: an earlier stage always wins, whatever its internal
// confidence. Returns the match (nil if every stage declined) and the
// wall-clock elapsed time across the run.
//
// Every stage name is resolved eagerly before execution starts; an unknown
// name fails the whole call without running any stage. A stage error aborts
// the run and propagates to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, utterances []string, lang string,
	msg *message.Message, sess *session.Session, skips []string) (*Match, time.Duration, error) {

	stages, err := d.resolve(sess, skips)
	if err != nil {
		return nil, 0, err
	}

	start := time.Now()
	for _, st := range stages {
		match, err := st.Interpret(ctx, utterances, lang, msg)
		if err != nil {
			return nil, time.Since(start), fmt.Errorf("stage %q: %w", st.Name(), err)
		}
		if match != nil {
			if match.Stage == "" {
				match.Stage = st.Name()
			}
			slog.Debug("stage claimed utterance",
				"stage", st.Name(), "intent", match.IntentType, "skill", match.SkillID)
			return match, time.Since(start), nil
		}
	}
	return nil, time.Since(start), nil
}

// resolve builds the concrete stage list for a session: its configured order
// (or the system default), minus skips, each name bound via the registry.
func (d *Dispatcher) resolve(sess *session.Session, skips []string) ([]Stage, error) {
	order := d.defaultOrder
	if sess != nil && len(sess.Pipeline) > 0 {
		order = sess.Pipeline
	}

	skip := make(map[string]bool, len(skips))
	for _, s := range skips {
		skip[s] = true
	}

	stages := make([]Stage, 0, len(order))
	for _, name := range order {
		if skip[name] {
			continue
		}
		st, err := d.registry.Resolve(name)
		if err != nil {
			return nil, err
		}
		stages = append(stages, st)
	}
	return stages, nil
}
