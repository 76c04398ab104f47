// Package message defines the bus envelope that flows through the roundhouse pipeline.
//
// Every event on the bus is a Message: a type string, a data payload, and a
// context map that rides along for the lifetime of an interaction. The context
// carries the correlation id, the session id, routing hints (source/destination)
// and any metadata stamped by transformers or interpreter stages.
package message

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Well-known event types.
const (
	// TypeUtterance is the main inbound event: a user utterance to dispatch.
	TypeUtterance = "utterance"

	// TypeIntentFailure is published when no stage could handle an utterance.
	TypeIntentFailure = "intent.failure"

	// TypeAudioPlay requests playback of a sound by the audio subsystem.
	TypeAudioPlay = "audio.play"

	// TypeSessionSync broadcasts the serialized default session so that all
	// bus observers converge on the same state.
	TypeSessionSync = "session.sync"

	// TypeSessionInvalidate drops a non-default session from the store.
	TypeSessionInvalidate = "session.invalidate"

	// Context stack management events.
	TypeContextAdd    = "context.add"
	TypeContextRemove = "context.remove"
	TypeContextClear  = "context.clear"

	// TypeSkillLoaded announces a loaded skill (id to name mapping).
	TypeSkillLoaded = "skill.loaded"

	// Query API events.
	TypeIntentQueryGet   = "intent.query.get"
	TypeIntentQueryReply = "intent.query.reply"
	TypeSkillsQueryGet   = "intent.query.skills"
	TypeSkillsQueryReply = "intent.query.skills.reply"
)

// Well-known context keys.
const (
	KeyMessageID   = "message_id"
	KeySessionID   = "session_id"
	KeySource      = "source"
	KeyDestination = "destination"
	KeyLang        = "lang"
	KeySkillID     = "skill_id"
	KeySession     = "session"

	// Language signal keys, in disambiguation precedence order.
	KeySTTLang      = "stt_lang"
	KeyRequestLang  = "request_lang"
	KeyDetectedLang = "detected_lang"
)

// DefaultSessionID is the implicit shared session used when no explicit
// session id is supplied on a message.
const DefaultSessionID = "default"

// Message is a single event on the bus.
type Message struct {
	// Type identifies the event (e.g. "utterance", "context.add").
	Type string `json:"type"`

	// Data is the event payload.
	Data map[string]any `json:"data"`

	// Context is interaction-scoped metadata preserved across replies.
	Context map[string]any `json:"context"`
}

// New creates a message of the given type, allocating empty maps where nil is
// passed and stamping a fresh correlation id if the context has none.
func New(msgType string, data, context map[string]any) *Message {
	if data == nil {
		data = map[string]any{}
	}
	if context == nil {
		context = map[string]any{}
	}
	m := &Message{Type: msgType, Data: data, Context: context}
	if m.ID() == "" {
		m.Context[KeyMessageID] = uuid.NewString()
	}
	return m
}

// Decode unmarshals a wire payload into a Message, ensuring non-nil maps.
func Decode(payload []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("decoding message: %w", err)
	}
	if m.Type == "" {
		return nil, fmt.Errorf("decoding message: missing type")
	}
	if m.Data == nil {
		m.Data = map[string]any{}
	}
	if m.Context == nil {
		m.Context = map[string]any{}
	}
	return &m, nil
}

// Encode marshals the message for the wire.
func (m *Message) Encode() ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding message %q: %w", m.Type, err)
	}
	return payload, nil
}

// ID returns the correlation id, or "" if the message has none.
func (m *Message) ID() string {
	id, _ := m.Context[KeyMessageID].(string)
	return id
}

// SessionID returns the session id addressed by this message, falling back to
// the default session when none is present.
func (m *Message) SessionID() string {
	if id, ok := m.Context[KeySessionID].(string); ok && id != "" {
		return id
	}
	return DefaultSessionID
}

// Utterances returns the candidate transcription list from the payload,
// ordered by decreasing transcription confidence.
func (m *Message) Utterances() []string {
	switch v := m.Data["utterances"].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, u := range v {
			if s, ok := u.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Reply builds a response message addressed back at the sender: the context is
// inherited (correlation id included) with source and destination swapped.
func (m *Message) Reply(msgType string, data map[string]any) *Message {
	ctx := copyMap(m.Context)
	ctx[KeySource], ctx[KeyDestination] = m.Context[KeyDestination], m.Context[KeySource]
	return New(msgType, data, ctx)
}

// Forward builds a message continuing in the same direction as the original,
// inheriting its full context.
func (m *Message) Forward(msgType string, data map[string]any) *Message {
	return New(msgType, data, copyMap(m.Context))
}

// Copy returns a deep copy of the message. Handlers receive copies so that one
// subscriber mutating the envelope cannot leak into another.
func (m *Message) Copy() *Message {
	return &Message{
		Type:    m.Type,
		Data:    copyMap(m.Data),
		Context: copyMap(m.Context),
	}
}

func copyMap(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		switch t := v.(type) {
		case map[string]any:
			dst[k] = copyMap(t)
		case []string:
			dst[k] = append([]string(nil), t...)
		case []any:
			dst[k] = append([]any(nil), t...)
		default:
			dst[k] = v
		}
	}
	return dst
}
