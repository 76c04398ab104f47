package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testEntry(word, tag string) ContextEntry {
	return ContextEntry{
		Confidence: 1.0,
		Data:       [][2]string{{word, tag}},
		Match:      word,
		Key:        word,
	}
}

func TestInjectThenRemoveByTagEmptiesStack(t *testing.T) {
	c := NewContextStack()
	c.Inject(testEntry("there", "kitchen"))
	assert.Equal(t, 1, c.Len())

	c.Remove("kitchen")
	assert.Equal(t, 0, c.Len())
}

func TestRemoveByKey(t *testing.T) {
	c := NewContextStack()
	c.Inject(testEntry("there", "kitchen"))
	c.Remove("there")
	assert.Equal(t, 0, c.Len())
}

func TestRemoveOnlyDropsMatchingEntries(t *testing.T) {
	c := NewContextStack()
	c.Inject(testEntry("there", "kitchen"))
	c.Inject(testEntry("it", "lamp"))

	c.Remove("kitchen")
	entries := c.Entries()
	assert.Len(t, entries, 1)
	assert.Equal(t, "it", entries[0].Key)
}

func TestClearEmptiesRegardlessOfOrder(t *testing.T) {
	c := NewContextStack()
	c.Inject(testEntry("there", "kitchen"))
	c.Inject(testEntry("it", "lamp"))
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestEntriesAreInsertionOrderedAndCopied(t *testing.T) {
	c := NewContextStack()
	c.Inject(testEntry("a", "first"))
	c.Inject(testEntry("b", "second"))

	entries := c.Entries()
	assert.Equal(t, "a", entries[0].Key)
	assert.Equal(t, "b", entries[1].Key)

	entries[0].Key = "mutated"
	assert.Equal(t, "a", c.Entries()[0].Key)
}
