// Package locale maps a UI language onto the trade site variant it talks to.
package locale

import (
	"strings"

	"github.com/trade-history-sync/internal/types"
)

const (
	hostEnglish  = "https://pathofexile.com"
	hostJapanese = "https://jp.pathofexile.com"
)

// Normalize maps arbitrary input onto a supported locale; anything other than
// Japanese falls back to English.
func Normalize(lang string) types.Locale {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "ja" || strings.HasPrefix(lang, "ja-") || strings.HasPrefix(lang, "ja_") {
		return types.LocaleJapanese
	}
	return types.LocaleEnglish
}

// Host returns the trade site origin for a locale.
func Host(l types.Locale) string {
	if l == types.LocaleJapanese {
		return hostJapanese
	}
	return hostEnglish
}

// AcceptLanguage returns the accept-language header the site expects.
func AcceptLanguage(l types.Locale) string {
	if l == types.LocaleJapanese {
		return "ja,en-US;q=0.9,en;q=0.8"
	}
	return "en-US,en;q=0.9,ja;q=0.8"
}

// DateLocale returns the BCP 47 tag used when formatting dates for display.
func DateLocale(l types.Locale) string {
	if l == types.LocaleJapanese {
		return "ja-JP"
	}
	return "en-US"
}

// Hosts resolves per-locale origins, letting overrides (keyed "en"/"ja") win.
type Hosts map[types.Locale]string

// NewHosts builds a resolver from an override map; empty values are ignored.
func NewHosts(overrides map[string]string) Hosts {
	h := Hosts{}
	for k, v := range overrides {
		if v = strings.TrimRight(strings.TrimSpace(v), "/"); v != "" {
			h[Normalize(k)] = v
		}
	}
	return h
}

// For returns the origin for l.
func (h Hosts) For(l types.Locale) string {
	if v, ok := h[l]; ok {
		return v
	}
	return Host(l)
}
