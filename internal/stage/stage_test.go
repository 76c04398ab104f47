package stage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/roundhouse/internal/message"
)

func TestDeclineNeverMatches(t *testing.T) {
	st := Decline("intent_high")
	assert.Equal(t, "intent_high", st.Name())

	match, err := st.Interpret(context.Background(),
		[]string{"anything at all"}, "en-us",
		message.New(message.TypeUtterance, nil, nil))
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestCatchAllAlwaysClaims(t *testing.T) {
	st := CatchAll("fallback_low", "fallback.unhandled")
	assert.Equal(t, "fallback_low", st.Name())

	match, err := st.Interpret(context.Background(),
		[]string{"best candidate", "worse candidate"}, "en-us",
		message.New(message.TypeUtterance, nil, nil))
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "fallback.unhandled", match.IntentType)
	assert.Equal(t, "best candidate", match.Utterance, "claims the highest-confidence candidate")
	assert.Equal(t, "en-us", match.IntentData["lang"])
}

func TestCatchAllDeclinesEmptyCandidateList(t *testing.T) {
	st := CatchAll("fallback_low", "fallback.unhandled")
	match, err := st.Interpret(context.Background(), nil, "en-us",
		message.New(message.TypeUtterance, nil, nil))
	require.NoError(t, err)
	assert.Nil(t, match)
}
