package validators

import (
	"strings"
	"unicode"
)

// SanitizeString trims input, drops control characters other than newline
// and tab, and caps the result at maxLen runes.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(input))
	cleaned = strings.TrimSpace(cleaned)
	if maxLen <= 0 {
		return cleaned
	}
	if runes := []rune(cleaned); len(runes) > maxLen {
		return strings.TrimSpace(string(runes[:maxLen]))
	}
	return cleaned
}

// SanitizeIdentifier is SanitizeString for single-line keys such as product
// ids and sizes: every whitespace run collapses to one space.
func SanitizeIdentifier(input string, maxLen int) string {
	return SanitizeString(strings.Join(strings.Fields(input), " "), maxLen)
}

// SanitizeOptional trims input and drops it when blank.
func SanitizeOptional(input *string, maxLen int) *string {
	if input == nil {
		return nil
	}
	out := SanitizeString(*input, maxLen)
	if out == "" {
		return nil
	}
	return &out
}
