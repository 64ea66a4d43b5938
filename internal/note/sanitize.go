package note

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MaxTitleRunes caps the title part of a note filename
const MaxTitleRunes = 40

var (
	lineBreaks     = strings.NewReplacer("\n", " ", "\r", " ", "\t", " ")
	forbiddenChars = strings.NewReplacer(`\`, "", "/", "", ":", "", "*", "", "?", "", `"`, "", "<", "", ">", "", "|", "")
)

// SanitizeTitle makes title safe to use in a filename: NFC-normalised, line
// breaks turned into spaces, characters Windows and macOS reject removed,
// whitespace collapsed and the result capped at MaxTitleRunes. An empty
// result falls back to fallback.
func SanitizeTitle(title, fallback string) string {
	s := norm.NFC.String(title)
	s = lineBreaks.Replace(s)
	s = forbiddenChars.Replace(s)
	s = strings.Join(strings.Fields(s), " ")

	if runes := []rune(s); len(runes) > MaxTitleRunes {
		s = strings.TrimSpace(string(runes[:MaxTitleRunes]))
	}
	if s == "" {
		return forbiddenChars.Replace(strings.Join(strings.Fields(fallback), " "))
	}
	return s
}
