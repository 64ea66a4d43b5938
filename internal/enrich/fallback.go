package enrich

import (
	"strings"
	"unicode"
)

const (
	fallbackTitleChars = 35
	// UntitledTitle is used when the post has no text at all
	UntitledTitle = "Untitled bookmark"
	// FallbackClaim marks a note whose claim must be written by hand
	FallbackClaim = "(enrichment failed; fill in manually)"
	// FallbackTag marks notes that still need processing
	FallbackTag = "needs-processing"
)

// FallbackQuestions are the generic seed questions of a fallback result
var FallbackQuestions = [3]string{
	"Why does this matter?",
	"In what context does it hold?",
	"Which existing ideas does it connect to?",
}

// Fallback derives a result from the post text alone. It never returns an
// empty title.
func Fallback(text string) Result {
	single := strings.Join(strings.Fields(text), " ")

	title := single
	if runes := []rune(single); len(runes) > fallbackTitleChars {
		title = strings.TrimRightFunc(string(runes[:fallbackTitleChars]), unicode.IsSpace) + "..."
	}
	if title == "" {
		title = UntitledTitle
	}

	return Result{
		Title:         title,
		CoreClaim:     FallbackClaim,
		SeedQuestions: FallbackQuestions,
		WikiLinks:     []string{},
		Tags:          []string{FallbackTag},
		Fallback:      true,
	}
}
