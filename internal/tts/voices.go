package tts

import "strings"

// VoiceInfo describes one selectable voice.
type VoiceInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Locale string `json:"locale"`
	Gender string `json:"gender"`
}

// SelectVoice resolves a voice for the persona. An explicit selector from the
// catalog wins; then the first female voice for the locale, any voice for the
// locale, any English voice, and finally fallback.
func SelectVoice(catalog []VoiceInfo, selector, locale, fallback string) string {
	if selector != "" {
		for _, v := range catalog {
			if v.ID == selector || strings.EqualFold(v.Name, selector) {
				return v.ID
			}
		}
	}
	for _, v := range catalog {
		if strings.EqualFold(v.Locale, locale) && v.Gender == "female" {
			return v.ID
		}
	}
	for _, v := range catalog {
		if strings.EqualFold(v.Locale, locale) {
			return v.ID
		}
	}
	for _, v := range catalog {
		if strings.HasPrefix(strings.ToLower(v.Locale), "en") {
			return v.ID
		}
	}
	return fallback
}

// VoicesFor lists the catalog entries matching a locale, or the whole catalog when none match.
func VoicesFor(catalog []VoiceInfo, locale string) []VoiceInfo {
	var out []VoiceInfo
	for _, v := range catalog {
		if strings.EqualFold(v.Locale, locale) {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return append([]VoiceInfo(nil), catalog...)
	}
	return out
}
