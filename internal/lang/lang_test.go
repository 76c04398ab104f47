package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/roundhouse/internal/message"
)

func newDisambiguator(t *testing.T, enabled []string, deflt string) *Disambiguator {
	t.Helper()
	d, err := New(enabled, deflt)
	require.NoError(t, err)
	return d
}

func utterance(ctx map[string]any) *message.Message {
	return message.New(message.TypeUtterance, map[string]any{"utterances": []string{"hi"}}, ctx)
}

func TestSignalPrecedenceSTTWins(t *testing.T) {
	d := newDisambiguator(t, []string{"en-us", "es-es"}, "en-us")
	msg := utterance(map[string]any{
		message.KeySTTLang:     "es-es",
		message.KeyRequestLang: "en-us",
	})
	assert.Equal(t, "es-es", d.Resolve(msg))
}

func TestOutOfSetSignalIsSkippedNotFatal(t *testing.T) {
	d := newDisambiguator(t, []string{"en-us", "es-es"}, "en-us")
	msg := utterance(map[string]any{
		message.KeySTTLang:     "fr-fr",
		message.KeyRequestLang: "es-es",
	})
	assert.Equal(t, "es-es", d.Resolve(msg), "rejected signal falls through to next source")
}

func TestNoValidSignalFallsBackToDefault(t *testing.T) {
	d := newDisambiguator(t, []string{"en-us"}, "en-us")

	assert.Equal(t, "en-us", d.Resolve(utterance(nil)))
	assert.Equal(t, "en-us", d.Resolve(utterance(map[string]any{
		message.KeyDetectedLang: "de-de",
	})))
}

func TestEventLevelDefaultOverride(t *testing.T) {
	d := newDisambiguator(t, []string{"en-us", "pt-pt"}, "en-us")
	msg := utterance(nil)
	msg.Data[message.KeyLang] = "pt-PT"
	assert.Equal(t, "pt-pt", d.Resolve(msg))
}

func TestBareBaseLanguagePromotesToEnabledFullTag(t *testing.T) {
	d := newDisambiguator(t, []string{"en-us", "es-es"}, "en-us")
	msg := utterance(map[string]any{message.KeySTTLang: "es"})
	assert.Equal(t, "es-es", d.Resolve(msg))
}

func TestUnparseableSignalIsSkipped(t *testing.T) {
	d := newDisambiguator(t, []string{"en-us"}, "en-us")
	msg := utterance(map[string]any{message.KeySTTLang: "!!not-a-tag!!"})
	assert.Equal(t, "en-us", d.Resolve(msg))
}

func TestInvalidConfigurationIsRejected(t *testing.T) {
	_, err := New([]string{"!!bad"}, "en-us")
	assert.Error(t, err)

	_, err = New([]string{"en-us"}, "!!bad")
	assert.Error(t, err)
}
