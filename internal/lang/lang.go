// Package lang resolves the effective language of an utterance from layered
// signal sources in the message context.
//
// Precedence, highest first:
//
//	stt_lang      — tagged by the transcription stage
//	request_lang  — volunteered by the request source (wake word, client)
//	detected_lang — inferred by transformer plugins (text classification)
//
// The first signal that canonicalizes into the enabled-language set wins.
// Signals outside the set are logged and skipped; if none qualify the
// configured default applies (overridable per event via data "lang").
package lang

import (
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/language"

	"github.com/nadzzz/roundhouse/internal/message"
)

var signalKeys = []string{
	message.KeySTTLang,
	message.KeyRequestLang,
	message.KeyDetectedLang,
}

// Disambiguator picks one language tag per event. It is pure and safe for
// concurrent use.
type Disambiguator struct {
	enabled []language.Tag
	// canonical[i] is the lowercase BCP-47 form of enabled[i].
	canonical []string
	deflt     string
}

// New builds a Disambiguator for the given enabled set and default tag.
// Malformed configuration is an error; this is checked once at startup.
func New(enabled []string, deflt string) (*Disambiguator, error) {
	d := &Disambiguator{}
	for _, e := range enabled {
		tag, err := language.Parse(e)
		if err != nil {
			return nil, fmt.Errorf("invalid enabled language %q: %w", e, err)
		}
		d.enabled = append(d.enabled, tag)
		d.canonical = append(d.canonical, strings.ToLower(tag.String()))
	}
	tag, err := language.Parse(deflt)
	if err != nil {
		return nil, fmt.Errorf("invalid default language %q: %w", deflt, err)
	}
	d.deflt = strings.ToLower(tag.String())
	return d, nil
}

// Resolve returns the effective language tag for one event.
func (d *Disambiguator) Resolve(msg *message.Message) string {
	for _, key := range signalKeys {
		raw, ok := msg.Context[key].(string)
		if !ok || raw == "" {
			continue
		}
		resolved, ok := d.normalize(raw)
		if !ok {
			slog.Warn("ignoring language signal outside enabled set",
				"key", key, "value", raw, "enabled", d.canonical)
			continue
		}
		if resolved != d.Default(msg) {
			slog.Info("language signal overrides default",
				"key", key, "lang", resolved)
		}
		return resolved
	}
	return d.Default(msg)
}

// Default returns the fallback language for an event: the event-level "lang"
// override when present and parseable, else the configured default.
func (d *Disambiguator) Default(msg *message.Message) string {
	if raw, ok := msg.Data[message.KeyLang].(string); ok && raw != "" {
		if tag, err := language.Parse(raw); err == nil {
			return strings.ToLower(tag.String())
		}
		slog.Warn("unparseable event language override", "value", raw)
	}
	return d.deflt
}

// normalize canonicalizes a raw signal and checks enabled-set membership.
// A bare base language ("es") promotes to the enabled full tag sharing its
// base ("es-es") so that loosely tagged signals still resolve.
func (d *Disambiguator) normalize(raw string) (string, bool) {
	tag, err := language.Parse(raw)
	if err != nil {
		return "", false
	}
	full := strings.ToLower(tag.String())
	for i, c := range d.canonical {
		if c == full {
			return c, true
		}
		base, conf := tag.Base()
		if conf == language.No {
			continue
		}
		enabledBase, _ := d.enabled[i].Base()
		if base == enabledBase && !strings.Contains(full, "-") {
			return c, true
		}
	}
	return "", false
}
