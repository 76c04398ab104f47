package session

// ContextEntry is one unit of slot-filling memory attached to a session.
// Data pairs words with the tags they fill; Key addresses the entry for
// removal.
type ContextEntry struct {
	Confidence float64     `json:"confidence"`
	Data       [][2]string `json:"data"` // (word, tag) pairs
	Match      string      `json:"match"`
	Key        string      `json:"key"`
	Origin     string      `json:"origin"`
}

// ContextStack is the ordered slot-filling memory of a session. Entries are
// insertion-ordered, newest last, and addressed by key or tag rather than
// position. The stack is not self-locking: all mutation goes through the
// Store, which serializes access per session id.
type ContextStack struct {
	entries []ContextEntry
}

// NewContextStack returns an empty stack.
func NewContextStack() *ContextStack {
	return &ContextStack{}
}

// Inject appends an entry.
func (c *ContextStack) Inject(entry ContextEntry) {
	c.entries = append(c.entries, entry)
}

// Remove drops every entry whose key matches, or whose data pairs fill the
// given tag.
func (c *ContextStack) Remove(keyOrTag string) {
	kept := c.entries[:0]
	for _, e := range c.entries {
		if !e.matches(keyOrTag) {
			kept = append(kept, e)
		}
	}
	c.entries = kept
}

func (e ContextEntry) matches(keyOrTag string) bool {
	if e.Key == keyOrTag {
		return true
	}
	for _, pair := range e.Data {
		if pair[1] == keyOrTag {
			return true
		}
	}
	return false
}

// Clear drops all entries.
func (c *ContextStack) Clear() {
	c.entries = nil
}

// Len returns the number of entries.
func (c *ContextStack) Len() int {
	return len(c.entries)
}

// Entries returns a copy of the stack contents, oldest first.
func (c *ContextStack) Entries() []ContextEntry {
	out := make([]ContextEntry, len(c.entries))
	copy(out, c.entries)
	for i := range out {
		out[i].Data = append([][2]string(nil), out[i].Data...)
	}
	return out
}

func (c *ContextStack) copy() *ContextStack {
	return &ContextStack{entries: c.Entries()}
}
