package enrich

import (
	"fmt"
	"unicode/utf8"
)

const (
	// MaxInputChars bounds the post text sent to the model
	MaxInputChars = 6000
	// TruncationMarker is appended when the text was cut
	TruncationMarker = "\n\n[... truncated ...]"
)

// PromptTemplate takes the author handle and the (truncated) post text
const PromptTemplate = `You are a text analysis expert. Analyse the post below in depth.

## Author
@%s

## Post
%s

---

## Instructions

1. **TITLE**: State the core proposition of the post as one concise sentence.
   - Be specific enough that a reader could imagine the body from the title alone.
   - Examples: "What successful people share is agency", "Mistakes founders make when pitching"
   - Keep it within 35 characters.

2. **CLAIM**: In 2-3 sentences, write the claim or premise the post implies but does not state.
   - What does the author take for granted?
   - If the claim is true, what follows?

3. **Q1, Q2, Q3**: Write three seed questions that could develop this claim further.
   - Questions that provoke critical thinking
   - Questions that connect it to other fields or contexts

4. **LINKS**: Name 3 concepts this content could link to (for Obsidian wiki links).

5. **TAGS**: Give 2-3 tags for classification.

---

Answer in exactly this format and nothing else:

TITLE: [core proposition in one sentence]
CLAIM: [implied claim in 2-3 sentences]
Q1: [seed question 1]
Q2: [seed question 2]
Q3: [seed question 3]
LINKS: [concept1], [concept2], [concept3]
TAGS: [tag1], [tag2]`

// Truncate cuts text to MaxInputChars characters, appending TruncationMarker
// when anything was removed
func Truncate(text string) string {
	if utf8.RuneCountInString(text) <= MaxInputChars {
		return text
	}
	runes := []rune(text)
	return string(runes[:MaxInputChars]) + TruncationMarker
}

// BuildPrompt renders the instruction prompt for one post
func BuildPrompt(text, authorHandle string) string {
	return fmt.Sprintf(PromptTemplate, authorHandle, Truncate(text))
}
