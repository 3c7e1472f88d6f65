package assistant

import (
	"strings"
	"unicode"
)

const maxInputRunes = 500

var stripChars = strings.NewReplacer(
	"<", "", ">", "", `"`, "", "'", "", "&", "", ";", "", "|", "", "`", "",
)

// Sanitize drops markup and shell metacharacters and caps the length.
func Sanitize(s string) string {
	s = stripChars.Replace(s)
	if r := []rune(s); len(r) > maxInputRunes {
		s = string(r[:maxInputRunes])
	}
	return strings.TrimSpace(s)
}

// StripWakeWord removes a leading wake word ("Jarvis, open calculator").
// A command made of the wake word alone is kept as is.
func StripWakeWord(cmd, wake string) string {
	if wake == "" || len(cmd) <= len(wake) || !strings.EqualFold(cmd[:len(wake)], wake) {
		return cmd
	}

	rest := cmd[len(wake):]
	first := []rune(rest)[0]
	if unicode.IsLetter(first) || unicode.IsDigit(first) {
		return cmd
	}

	rest = strings.TrimLeftFunc(rest, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(",.!:", r)
	})
	if rest == "" {
		return cmd
	}
	return rest
}
