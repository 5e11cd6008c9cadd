// Package lang validates target languages for the translate action.
// Codes are ISO 639-1, optionally with a region ("pt-BR", "zh_TW").
package lang

import (
	"fmt"
	"strings"
)

// languages maps supported ISO 639-1 base codes to their English names.
var languages = map[string]string{
	"af": "Afrikaans",
	"ar": "Arabic",
	"bg": "Bulgarian",
	"bn": "Bengali",
	"ca": "Catalan",
	"cs": "Czech",
	"da": "Danish",
	"de": "German",
	"el": "Greek",
	"en": "English",
	"es": "Spanish",
	"et": "Estonian",
	"fa": "Persian",
	"fi": "Finnish",
	"fr": "French",
	"he": "Hebrew",
	"hi": "Hindi",
	"hr": "Croatian",
	"hu": "Hungarian",
	"id": "Indonesian",
	"it": "Italian",
	"ja": "Japanese",
	"ko": "Korean",
	"lt": "Lithuanian",
	"lv": "Latvian",
	"ms": "Malay",
	"nl": "Dutch",
	"no": "Norwegian",
	"pl": "Polish",
	"pt": "Portuguese",
	"ro": "Romanian",
	"ru": "Russian",
	"sk": "Slovak",
	"sl": "Slovenian",
	"sr": "Serbian",
	"sv": "Swedish",
	"sw": "Swahili",
	"th": "Thai",
	"tr": "Turkish",
	"uk": "Ukrainian",
	"ur": "Urdu",
	"vi": "Vietnamese",
	"zh": "Chinese",
}

// regional overrides the display name of common locales.
var regional = map[string]string{
	"en-us": "American English",
	"en-gb": "British English",
	"fr-ca": "Canadian French",
	"es-mx": "Mexican Spanish",
	"pt-br": "Brazilian Portuguese",
	"pt-pt": "European Portuguese",
	"zh-cn": "Simplified Chinese",
	"zh-tw": "Traditional Chinese",
}

// Language is a validated target language.
// The zero value means "no language set".
type Language struct {
	code string // normalized: lowercase, hyphen separator
}

// Compile-time interface compliance check.
var _ fmt.Stringer = Language{}

// Parse validates a language code. Empty input returns the zero Language.
func Parse(s string) (Language, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Language{}, nil
	}
	code := normalize(s)
	if _, ok := languages[baseOf(code)]; !ok {
		return Language{}, fmt.Errorf("invalid language code %q (use ISO 639-1 codes like 'en', 'fr', 'pt-BR'): %w",
			s, ErrInvalid)
	}
	return Language{code: code}, nil
}

// MustParse parses a language code, panicking if invalid.
// Use only for constants and tests.
func MustParse(s string) Language {
	l, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return l
}

// String returns the normalized code ("pt-br").
func (l Language) String() string {
	return l.code
}

// IsZero reports whether no language is set.
func (l Language) IsZero() bool {
	return l.code == ""
}

// BaseCode returns the ISO 639-1 part of the code: "pt-br" -> "pt".
func (l Language) BaseCode() string {
	return baseOf(l.code)
}

// IsEnglish reports whether the language is any English variant.
func (l Language) IsEnglish() bool {
	return l.BaseCode() == "en"
}

// DisplayName returns a human-readable name used in prompts.
// Unknown regions fall back to the base language name.
func (l Language) DisplayName() string {
	if name, ok := regional[l.code]; ok {
		return name
	}
	if name, ok := languages[l.BaseCode()]; ok {
		return name
	}
	return l.code
}

// Codes returns the supported base codes, unordered.
func Codes() []string {
	codes := make([]string, 0, len(languages))
	for c := range languages {
		codes = append(codes, c)
	}
	return codes
}

// normalize lowercases a code and uses a hyphen separator: "pt_BR" -> "pt-br".
func normalize(code string) string {
	return strings.ToLower(strings.ReplaceAll(code, "_", "-"))
}

func baseOf(code string) string {
	if i := strings.IndexByte(code, '-'); i != -1 {
		return code[:i]
	}
	return code
}
