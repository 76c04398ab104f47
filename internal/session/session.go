// Package session owns per-conversation state: the active-skill stack, the
// context stack, the resolved language, the pipeline override, and expiry.
//
// The Store is the single mutable shared resource in the daemon. Every
// mutation of a given session id is serialized behind a per-id lock;
// dispatch works against deep-copied snapshots so reads stay consistent for
// the duration of one utterance.
package session

import (
	"time"

	"github.com/nadzzz/roundhouse/internal/message"
)

// DefaultID is the implicit shared session used when an event carries no
// explicit session id. It is the only session that auto-expires.
const DefaultID = message.DefaultSessionID

// SkillActivation records one skill on the active stack.
type SkillActivation struct {
	SkillID     string    `json:"skill_id"`
	ActivatedAt time.Time `json:"activated_at"`
}

// Session is one ongoing conversation.
type Session struct {
	// ID identifies the conversation; "default" is the implicit session.
	ID string `json:"session_id"`

	// Lang is the resolved language tag for the conversation.
	Lang string `json:"lang"`

	// ActiveSkills is the conversational skill stack, most recently
	// activated first.
	ActiveSkills []SkillActivation `json:"active_skills"`

	// Context is the slot-filling memory.
	Context *ContextStack `json:"-"`

	// Pipeline is the ordered stage-name list for dispatch. Empty means
	// the system default order applies.
	Pipeline []string `json:"pipeline"`

	// ExpiresAt is the freshness deadline; meaningful only for the
	// default session.
	ExpiresAt time.Time `json:"expires_at"`
}

func newSession(id, lang string, ttl time.Duration, now time.Time) *Session {
	return &Session{
		ID:        id,
		Lang:      lang,
		Context:   NewContextStack(),
		ExpiresAt: now.Add(ttl),
	}
}

// Expired reports whether the freshness deadline has elapsed.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Touch pushes the freshness deadline forward.
func (s *Session) Touch(ttl time.Duration, now time.Time) {
	s.ExpiresAt = now.Add(ttl)
}

// ActivateSkill pushes a skill to the front of the active stack. Re-activating
// an already-active skill moves it to the front without duplicating it.
func (s *Session) ActivateSkill(skillID string, now time.Time) {
	s.DeactivateSkill(skillID)
	s.ActiveSkills = append([]SkillActivation{{SkillID: skillID, ActivatedAt: now}},
		s.ActiveSkills...)
}

// DeactivateSkill removes a skill from the active stack, if present.
func (s *Session) DeactivateSkill(skillID string) {
	kept := s.ActiveSkills[:0]
	for _, a := range s.ActiveSkills {
		if a.SkillID != skillID {
			kept = append(kept, a)
		}
	}
	s.ActiveSkills = kept
}

// Serialize renders the session as a plain map for embedding in message
// contexts and sync broadcasts.
func (s *Session) Serialize() map[string]any {
	skills := make([]map[string]any, 0, len(s.ActiveSkills))
	for _, a := range s.ActiveSkills {
		skills = append(skills, map[string]any{
			"skill_id":     a.SkillID,
			"activated_at": a.ActivatedAt.UnixMilli(),
		})
	}
	entries := make([]map[string]any, 0, s.Context.Len())
	for _, e := range s.Context.Entries() {
		pairs := make([][]string, 0, len(e.Data))
		for _, p := range e.Data {
			pairs = append(pairs, []string{p[0], p[1]})
		}
		entries = append(entries, map[string]any{
			"confidence": e.Confidence,
			"data":       pairs,
			"match":      e.Match,
			"key":        e.Key,
			"origin":     e.Origin,
		})
	}
	return map[string]any{
		"session_id":    s.ID,
		"lang":          s.Lang,
		"active_skills": skills,
		"context":       entries,
		"pipeline":      append([]string(nil), s.Pipeline...),
		"expires_at":    s.ExpiresAt.UnixMilli(),
	}
}

// Copy returns a deep copy, safe to read outside the store's locks.
func (s *Session) Copy() *Session {
	return &Session{
		ID:           s.ID,
		Lang:         s.Lang,
		ActiveSkills: append([]SkillActivation(nil), s.ActiveSkills...),
		Context:      s.Context.copy(),
		Pipeline:     append([]string(nil), s.Pipeline...),
		ExpiresAt:    s.ExpiresAt,
	}
}
