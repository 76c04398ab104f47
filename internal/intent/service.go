// Package intent implements the core utterance handling service.
//
// The service receives utterance events from the bus, normalizes them through
// the transformer chain, resolves the language and session, walks the
// interpreter pipeline until a stage claims the utterance, then republishes
// the outcome toward the owning handler. It also services the context
// management events and the introspection query API.
package intent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nadzzz/roundhouse/internal/bus"
	"github.com/nadzzz/roundhouse/internal/lang"
	"github.com/nadzzz/roundhouse/internal/message"
	"github.com/nadzzz/roundhouse/internal/pipeline"
	"github.com/nadzzz/roundhouse/internal/session"
)

// querySkips are the stages never consulted by the introspection API:
// conversational handling and fallbacks have side effects or always-accept
// semantics that make them meaningless for a dry-run query.
var querySkips = []string{"converse", "fallback_high", "fallback_medium", "fallback_low"}

// Service is the utterance dispatch service.
type Service struct {
	publisher  bus.Publisher
	store      *session.Store
	transforms Transformer
	dispatcher *pipeline.Dispatcher
	langs      *lang.Disambiguator
	errorSound string

	mu         sync.RWMutex
	skillNames map[string]string
}

// Transformer is the surface the service needs from the transformer adapter.
type Transformer interface {
	Apply(msg *message.Message, defaultLang string)
}

// New creates the service. All collaborators are passed explicitly; the
// service holds no ambient globals.
func New(publisher bus.Publisher, store *session.Store, transforms Transformer,
	dispatcher *pipeline.Dispatcher, langs *lang.Disambiguator, errorSound string) *Service {
	return &Service{
		publisher:  publisher,
		store:      store,
		transforms: transforms,
		dispatcher: dispatcher,
		langs:      langs,
		errorSound: errorSound,
		skillNames: map[string]string{},
	}
}

// Register builds the subscription table on the bus. Called once at startup.
func (s *Service) Register(b bus.Bus) error {
	subs := map[string]bus.Handler{
		message.TypeUtterance:         s.HandleUtterance,
		message.TypeContextAdd:        s.HandleAddContext,
		message.TypeContextRemove:     s.HandleRemoveContext,
		message.TypeContextClear:      s.HandleClearContext,
		message.TypeSkillLoaded:       s.HandleSkillLoaded,
		message.TypeSessionInvalidate: s.HandleSessionInvalidate,
		message.TypeIntentQueryGet:    s.HandleGetIntent,
		message.TypeSkillsQueryGet:    s.HandleGetSkills,
	}
	for msgType, handler := range subs {
		if err := b.Subscribe(msgType, handler); err != nil {
			return fmt.Errorf("subscribing to %q: %w", msgType, err)
		}
	}
	return nil
}

// HandleUtterance is the main entrypoint for user utterances.
//
// The sequence: transformer chain → language disambiguation → session
// validation → pipeline dispatch → result emission. This handler is the only
// recovery boundary: stage faults (errors or panics) land on the failure
// path instead of crashing the delivery goroutine.
func (s *Service) HandleUtterance(ctx context.Context, msg *message.Message) {
	logger := slog.With("message_id", msg.ID(), "session", msg.SessionID())

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while handling utterance", "panic", r)
			s.sendCompleteFailure(ctx, msg)
		}
	}()

	s.transforms.Apply(msg, s.langs.Default(msg))

	tag := s.langs.Resolve(msg)
	utterances := msg.Utterances()
	if len(utterances) == 0 {
		logger.Warn("utterance event with no candidate transcriptions")
		s.sendCompleteFailure(ctx, msg)
		return
	}

	sess := s.store.Validate(ctx, msg, tag)
	msg.Context[message.KeySession] = sess.Serialize()

	match, elapsed, err := s.dispatcher.Dispatch(ctx, utterances, tag, msg, sess, nil)
	logger.Debug("intent matching finished", "duration", elapsed)

	switch {
	case err != nil:
		logger.Error("dispatch failed", "error", err)
		s.sendCompleteFailure(ctx, msg)
	case match != nil:
		s.emit(ctx, msg, match, sess, logger)
	default:
		logger.Info("no stage claimed the utterance", "lang", tag)
		s.sendCompleteFailure(ctx, msg)
	}

	// Mutations made during dispatch (e.g. skill activation) must reach
	// all observers of the shared default session.
	if sess.ID == session.DefaultID {
		s.store.Sync(ctx, msg)
	}
}

// emit forwards a match toward the owning handler.
func (s *Service) emit(ctx context.Context, msg *message.Message, match *pipeline.Match,
	sess *session.Session, logger *slog.Logger) {

	msg.Data["utterance"] = match.Utterance

	if match.SkillID != "" {
		// Make the skill addressable by the next utterance's converse
		// stage. A stage that reports no skill id takes on that
		// responsibility itself.
		s.store.ActivateSkill(sess.ID, match.SkillID)
		msg.Context[message.KeySkillID] = match.SkillID
	}

	if match.IntentType == "" {
		// The stage fully handled the utterance; nothing to publish.
		logger.Info("utterance self-handled", "stage", match.Stage, "skill", match.SkillID)
		return
	}

	// Keep all original payload fields and overlay the intent data.
	data := make(map[string]any, len(msg.Data)+len(match.IntentData))
	for k, v := range msg.Data {
		data[k] = v
	}
	for k, v := range match.IntentData {
		data[k] = v
	}

	reply := msg.Reply(match.IntentType, data)
	if err := s.publisher.Publish(ctx, reply); err != nil {
		logger.Error("publishing intent reply failed", "intent", match.IntentType, "error", err)
		return
	}
	logger.Info("utterance dispatched",
		"stage", match.Stage, "intent", match.IntentType, "skill", match.SkillID)
}

// sendCompleteFailure publishes the audible failure notification and the
// structured failure event. A failed utterance is never silently dropped.
func (s *Service) sendCompleteFailure(ctx context.Context, msg *message.Message) {
	sound := msg.Forward(message.TypeAudioPlay, map[string]any{"uri": s.errorSound})
	if err := s.publisher.Publish(ctx, sound); err != nil {
		slog.Error("publishing failure sound failed", "error", err)
	}
	failure := msg.Forward(message.TypeIntentFailure, msg.Data)
	if err := s.publisher.Publish(ctx, failure); err != nil {
		slog.Error("publishing failure event failed", "error", err)
	}
}

// HandleAddContext injects a slot entry into the session's context stack.
// Data: "context" (the tag, required), "word" (alias to inject), "origin".
func (s *Service) HandleAddContext(ctx context.Context, msg *message.Message) {
	tag, _ := msg.Data["context"].(string)
	if tag == "" {
		slog.Warn("context.add without context tag", "message_id", msg.ID())
		return
	}
	var word string
	if w, ok := msg.Data["word"]; ok && w != nil {
		// non-string words are stringified rather than rejected
		word = fmt.Sprint(w)
	}
	origin, _ := msg.Data["origin"].(string)

	s.store.InjectContext(msg.SessionID(), session.ContextEntry{
		Confidence: 1.0,
		Data:       [][2]string{{word, tag}},
		Match:      word,
		Key:        word,
		Origin:     origin,
	})
}

// HandleRemoveContext removes context entries by key or tag.
func (s *Service) HandleRemoveContext(ctx context.Context, msg *message.Message) {
	if tag, _ := msg.Data["context"].(string); tag != "" {
		s.store.RemoveContext(msg.SessionID(), tag)
	}
}

// HandleClearContext empties the session's context stack.
func (s *Service) HandleClearContext(ctx context.Context, msg *message.Message) {
	s.store.ClearContext(msg.SessionID())
}

// HandleSkillLoaded records the skill id to name mapping.
func (s *Service) HandleSkillLoaded(ctx context.Context, msg *message.Message) {
	id, _ := msg.Data["id"].(string)
	name, _ := msg.Data["name"].(string)
	if id == "" {
		return
	}
	s.mu.Lock()
	s.skillNames[id] = name
	s.mu.Unlock()
}

// SkillName resolves a skill id to its human name, falling back to the id.
func (s *Service) SkillName(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if name, ok := s.skillNames[id]; ok && name != "" {
		return name
	}
	return id
}

// HandleSessionInvalidate drops a non-default session from the store.
func (s *Service) HandleSessionInvalidate(ctx context.Context, msg *message.Message) {
	s.store.Invalidate(msg.SessionID())
}

// HandleGetIntent answers the query API: which intent would this utterance
// resolve to? Conversational and fallback stages are skipped so the query
// has no side effects and no always-accepting floor.
func (s *Service) HandleGetIntent(ctx context.Context, msg *message.Message) {
	utterance, _ := msg.Data["utterance"].(string)
	if utterance == "" {
		s.replyIntent(ctx, msg, nil)
		return
	}
	tag := s.langs.Resolve(msg)
	sess := s.store.Resolve(msg)

	match, _, err := s.dispatcher.Dispatch(ctx, []string{utterance}, tag, msg, sess, querySkips)
	if err != nil {
		slog.Error("intent query dispatch failed", "error", err)
		s.replyIntent(ctx, msg, nil)
		return
	}
	if match == nil || match.IntentType == "" {
		s.replyIntent(ctx, msg, nil)
		return
	}

	intent := make(map[string]any, len(match.IntentData)+3)
	for k, v := range match.IntentData {
		intent[k] = v
	}
	intent["intent_name"] = match.IntentType
	intent["intent_stage"] = match.Stage
	intent["skill_id"] = match.SkillID
	s.replyIntent(ctx, msg, intent)
}

func (s *Service) replyIntent(ctx context.Context, msg *message.Message, intent map[string]any) {
	reply := msg.Reply(message.TypeIntentQueryReply, map[string]any{"intent": intent})
	if err := s.publisher.Publish(ctx, reply); err != nil {
		slog.Error("publishing intent query reply failed", "error", err)
	}
}

// HandleGetSkills replies with the known skill id to name table.
func (s *Service) HandleGetSkills(ctx context.Context, msg *message.Message) {
	s.mu.RLock()
	skills := make(map[string]any, len(s.skillNames))
	for id, name := range s.skillNames {
		skills[id] = name
	}
	s.mu.RUnlock()

	reply := msg.Reply(message.TypeSkillsQueryReply, map[string]any{"skills": skills})
	if err := s.publisher.Publish(ctx, reply); err != nil {
		slog.Error("publishing skills reply failed", "error", err)
	}
}
