package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nadzzz/roundhouse/internal/bus"
	"github.com/nadzzz/roundhouse/internal/message"
)

// Store owns every in-memory session record. At most one record exists per
// session id; all read-modify-write cycles for one id run under that id's
// lock, so two utterances racing on the same session cannot lose updates.
// Operations on distinct ids proceed fully in parallel.
type Store struct {
	pub         bus.Publisher
	ttl         time.Duration
	defaultLang string

	mu       sync.Mutex
	sessions map[string]*entry

	now func() time.Time
}

type entry struct {
	mu   sync.Mutex
	sess *Session
}

// NewStore creates the session store. It is built once at process start and
// passed explicitly to every component that needs session access.
func NewStore(pub bus.Publisher, ttl time.Duration, defaultLang string) *Store {
	return &Store{
		pub:         pub,
		ttl:         ttl,
		defaultLang: defaultLang,
		sessions:    map[string]*entry{},
		now:         time.Now,
	}
}

// entryFor returns the record for an id, lazily creating it.
func (st *Store) entryFor(id string) *entry {
	st.mu.Lock()
	defer st.mu.Unlock()
	e, ok := st.sessions[id]
	if !ok {
		e = &entry{sess: newSession(id, st.defaultLang, st.ttl, st.now())}
		st.sessions[id] = e
		slog.Debug("session created", "session", id)
	}
	return e
}

// Resolve locates or lazily creates the session addressed by the event and
// returns a consistent snapshot of it.
func (st *Store) Resolve(msg *message.Message) *Session {
	return st.Snapshot(msg.SessionID())
}

// Snapshot returns a deep copy of the session with the given id, creating it
// if absent.
func (st *Store) Snapshot(id string) *Session {
	e := st.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.Copy()
}

// Validate reconciles the session addressed by the event against the resolved
// language and freshness rules, then returns a snapshot for dispatch.
//
// Default session: if expired, it is replaced with a fresh record (cleared
// skill stack); if the language changed, it is updated; either change
// triggers exactly one resync broadcast. The deadline is refreshed on every
// call. Non-default sessions get the language update and the touch but no
// broadcast, and never auto-reset.
func (st *Store) Validate(ctx context.Context, msg *message.Message, lang string) *Session {
	e := st.entryFor(msg.SessionID())

	e.mu.Lock()
	now := st.now()
	updated := false
	if e.sess.ID == DefaultID {
		if e.sess.Expired(now) {
			slog.Info("default session expired, resetting",
				"expired_at", e.sess.ExpiresAt)
			e.sess = newSession(DefaultID, lang, st.ttl, now)
			updated = true
		}
		if e.sess.Lang != lang {
			e.sess.Lang = lang
			updated = true
		}
	} else {
		e.sess.Lang = lang
	}
	e.sess.Touch(st.ttl, now)
	snap := e.sess.Copy()
	e.mu.Unlock()

	if updated {
		st.broadcast(ctx, msg, snap)
	}
	return snap
}

// ActivateSkill pushes a skill onto the session's active stack, idempotent
// by skill id.
func (st *Store) ActivateSkill(id, skillID string) {
	e := st.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess.ActivateSkill(skillID, st.now())
}

// DeactivateSkill removes a skill from the session's active stack.
func (st *Store) DeactivateSkill(id, skillID string) {
	e := st.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess.DeactivateSkill(skillID)
}

// InjectContext appends an entry to the session's context stack.
func (st *Store) InjectContext(id string, entry ContextEntry) {
	e := st.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess.Context.Inject(entry)
}

// RemoveContext removes context entries by key or tag.
func (st *Store) RemoveContext(id, keyOrTag string) {
	e := st.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess.Context.Remove(keyOrTag)
}

// ClearContext empties the session's context stack.
func (st *Store) ClearContext(id string) {
	e := st.entryFor(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess.Context.Clear()
}

// Invalidate drops a session record. The default session cannot be dropped;
// it only ever resets through expiry.
func (st *Store) Invalidate(id string) {
	if id == DefaultID {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
	slog.Debug("session invalidated", "session", id)
}

// Sync broadcasts the current default session state so all bus observers
// converge. The broadcast is advisory; the store remains authoritative and
// races resolve last-write-wins.
func (st *Store) Sync(ctx context.Context, msg *message.Message) {
	st.broadcast(ctx, msg, st.Snapshot(DefaultID))
}

func (st *Store) broadcast(ctx context.Context, msg *message.Message, snap *Session) {
	data := map[string]any{"session_data": snap.Serialize()}
	var out *message.Message
	if msg != nil {
		out = msg.Forward(message.TypeSessionSync, data)
	} else {
		out = message.New(message.TypeSessionSync, data, nil)
	}
	if err := st.pub.Publish(ctx, out); err != nil {
		slog.Error("session sync broadcast failed", "error", err)
	}
}
