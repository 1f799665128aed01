// Package i18n provides the translation table used for user-facing
// messages. Bundles are keyed by locale; message templates use
// ":placeholder" markers substituted at lookup time.
package i18n

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Translator resolves message keys against per-locale bundles.
type Translator struct {
	bundles       map[string]map[string]string
	defaultLocale string
}

// New returns a translator seeded with the built-in bundles.
func New(defaultLocale string) *Translator {
	bundles := make(map[string]map[string]string, len(defaultBundles))
	for locale, messages := range defaultBundles {
		bundle := make(map[string]string, len(messages))
		for key, msg := range messages {
			bundle[key] = msg
		}
		bundles[locale] = bundle
	}

	return &Translator{
		bundles:       bundles,
		defaultLocale: defaultLocale,
	}
}

// LoadFile merges translations from a JSON file shaped as
// {"<locale>": {"<key>": "<template>"}}. File entries override the
// built-in bundles for the same locale and key.
func (t *Translator) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read translations file: %w", err)
	}

	var loaded map[string]map[string]string
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parse translations JSON: %w", err)
	}

	for locale, messages := range loaded {
		if t.bundles[locale] == nil {
			t.bundles[locale] = make(map[string]string, len(messages))
		}
		for key, msg := range messages {
			t.bundles[locale][key] = msg
		}
	}

	return nil
}

// T resolves key in the given locale, falling back to the default
// locale and finally to the key itself. Replacements substitute
// ":name" markers in the template.
func (t *Translator) T(locale, key string, repl map[string]string) string {
	template, ok := t.lookup(locale, key)
	if !ok {
		template, ok = t.lookup(t.defaultLocale, key)
	}
	if !ok {
		return key
	}

	if len(repl) == 0 {
		return template
	}

	pairs := make([]string, 0, len(repl)*2)
	for name, value := range repl {
		pairs = append(pairs, ":"+name, value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

func (t *Translator) lookup(locale, key string) (string, bool) {
	bundle, ok := t.bundles[locale]
	if !ok {
		return "", false
	}
	msg, ok := bundle[key]
	return msg, ok
}

// DefaultLocale returns the locale used as fallback.
func (t *Translator) DefaultLocale() string {
	return t.defaultLocale
}

// Locales lists the available locales in sorted order.
func (t *Translator) Locales() []string {
	locales := make([]string, 0, len(t.bundles))
	for locale := range t.bundles {
		locales = append(locales, locale)
	}
	sort.Strings(locales)
	return locales
}

// Bundles returns a copy of all bundles, for the config endpoint.
func (t *Translator) Bundles() map[string]map[string]string {
	out := make(map[string]map[string]string, len(t.bundles))
	for locale, messages := range t.bundles {
		bundle := make(map[string]string, len(messages))
		for key, msg := range messages {
			bundle[key] = msg
		}
		out[locale] = bundle
	}
	return out
}
