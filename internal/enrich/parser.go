package enrich

import (
	"regexp"
	"strings"
)

// Field labels in the order the prompt asks for them
const (
	LabelTitle = "TITLE"
	LabelClaim = "CLAIM"
	LabelQ1    = "Q1"
	LabelQ2    = "Q2"
	LabelQ3    = "Q3"
	LabelLinks = "LINKS"
	LabelTags  = "TAGS"
)

var labels = []string{LabelTitle, LabelClaim, LabelQ1, LabelQ2, LabelQ3, LabelLinks, LabelTags}

// reasoning models may wrap their chain of thought in think tags
var thinkBlockRegex = regexp.MustCompile(`(?is)<think>.*?</think>`)

// ParseResponse extracts the labelled fields from a model response. Missing
// fields are empty; the caller decides whether the parse is usable.
//
// The strict tier only recognises a label at the very start of a line and lets
// its value run over following lines up to the next label line. The lenient
// tier fills fields the strict tier missed, accepting labels behind
// indentation or markdown decoration, and takes only the rest of that line.
func ParseResponse(raw string) Result {
	raw = thinkBlockRegex.ReplaceAllString(raw, "")
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	lines := strings.Split(raw, "\n")

	values := parseStrict(lines)
	for _, label := range labels {
		if values[label] == "" {
			values[label] = parseLenient(lines, label)
		}
	}

	return Result{
		Title:         values[LabelTitle],
		CoreClaim:     values[LabelClaim],
		SeedQuestions: [3]string{values[LabelQ1], values[LabelQ2], values[LabelQ3]},
		WikiLinks:     splitList(values[LabelLinks]),
		Tags:          splitList(values[LabelTags]),
	}
}

func parseStrict(lines []string) map[string]string {
	values := make(map[string]string, len(labels))

	current := ""
	var buf []string
	flush := func() {
		if current == "" {
			return
		}
		if v := strings.TrimSpace(strings.Join(buf, "\n")); v != "" && values[current] == "" {
			values[current] = v
		}
	}

	for _, line := range lines {
		if label, rest, ok := matchLabel(line, false); ok {
			flush()
			current = label
			buf = []string{rest}
			continue
		}
		if current != "" {
			buf = append(buf, line)
		}
	}
	flush()
	return values
}

func parseLenient(lines []string, want string) string {
	for _, line := range lines {
		label, rest, ok := matchLabel(line, true)
		if !ok || label != want {
			continue
		}
		if v := strings.TrimSpace(strings.Trim(strings.TrimSpace(rest), "*_")); v != "" {
			return v
		}
	}
	return ""
}

// matchLabel reports whether line opens a labelled field and returns the text
// after the colon. In lenient mode leading whitespace, markdown markers and
// emphasis around the label are skipped.
func matchLabel(line string, lenient bool) (string, string, bool) {
	s := line
	if lenient {
		s = strings.TrimLeft(s, " \t*#->_")
	}
	for _, label := range labels {
		if len(s) < len(label) || !strings.EqualFold(s[:len(label)], label) {
			continue
		}
		after := s[len(label):]
		if lenient {
			after = strings.TrimLeft(after, "*_ ")
		}
		if strings.HasPrefix(after, ":") {
			return label, after[1:], true
		}
	}
	return "", "", false
}

// splitList strips brackets and splits a comma-separated field
func splitList(s string) []string {
	s = strings.NewReplacer("[", "", "]", "").Replace(s)
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
