// Package transform adapts the external preprocessing chain that normalizes
// utterance text and metadata before dispatch.
//
// Transformers are plugins supplied at startup. Utterance transformers may
// rewrite the candidate list and the metadata; metadata transformers only the
// metadata. Both kinds must be pure with respect to anything outside their
// inputs. The chain is best-effort: a failing transformer is logged and
// skipped, and the event continues untransformed by that plugin.
package transform

import (
	"log/slog"
	"sort"

	"github.com/nadzzz/roundhouse/internal/message"
)

// UtteranceTransformer rewrites candidate transcriptions and metadata.
type UtteranceTransformer interface {
	Name() string
	// Priority orders the chain, lowest first.
	Priority() int
	Transform(utterances []string, context map[string]any) ([]string, map[string]any, error)
}

// MetadataTransformer rewrites event metadata only.
type MetadataTransformer interface {
	Name() string
	Priority() int
	Transform(context map[string]any) (map[string]any, error)
}

// Service runs the transformer chains against inbound events.
type Service struct {
	utterance []UtteranceTransformer
	metadata  []MetadataTransformer
}

// NewService builds the adapter, ordering each chain by ascending priority.
func NewService(utterance []UtteranceTransformer, metadata []MetadataTransformer) *Service {
	u := append([]UtteranceTransformer(nil), utterance...)
	m := append([]MetadataTransformer(nil), metadata...)
	sort.SliceStable(u, func(i, j int) bool { return u[i].Priority() < u[j].Priority() })
	sort.SliceStable(m, func(i, j int) bool { return m[i].Priority() < m[j].Priority() })
	return &Service{utterance: u, metadata: m}
}

// Apply pipes the event through both chains, folding the outputs back into
// the message. The pre-disambiguation default language is stamped into the
// context first so transformers can key off it.
func (s *Service) Apply(msg *message.Message, defaultLang string) {
	msg.Context[message.KeyLang] = defaultLang

	original := msg.Utterances()
	utterances := original
	for _, t := range s.utterance {
		out, ctx, err := t.Transform(utterances, msg.Context)
		if err != nil {
			slog.Warn("utterance transformer failed, skipping",
				"transformer", t.Name(), "error", err)
			continue
		}
		utterances = out
		if ctx != nil {
			msg.Context = ctx
		}
	}
	if changed(original, utterances) {
		slog.Debug("utterances transformed", "from", original, "to", utterances)
		msg.Data["utterances"] = utterances
	}

	for _, t := range s.metadata {
		ctx, err := t.Transform(msg.Context)
		if err != nil {
			slog.Warn("metadata transformer failed, skipping",
				"transformer", t.Name(), "error", err)
			continue
		}
		if ctx != nil {
			msg.Context = ctx
		}
	}
}

func changed(a, b []string) bool {
	if len(a) != len(b) {
		return true
	}
	for i := range a {
		if a[i] != b[i] {
			return true
		}
	}
	return false
}
