package note

import (
	"strconv"
	"strings"
	"time"

	"github.com/mcao2/x-seed-notes/internal/enrich"
	"github.com/mcao2/x-seed-notes/internal/xcom"
)

// CapturedLayout formats the captured frontmatter field
const CapturedLayout = "2006-01-02T15:04:05"

// BaseTags lead every note's tag list
var BaseTags = []string{"inbox", "🌱"}

// Render builds the note document. The output depends only on its arguments.
func Render(post xcom.Post, result enrich.Result, captured time.Time) []byte {
	var b strings.Builder

	b.WriteString("---\n")
	b.WriteString("source: x.com\n")
	b.WriteString("author: " + quote("@"+post.AuthorHandle) + "\n")
	b.WriteString("author_name: " + quote(post.AuthorName) + "\n")
	b.WriteString("url: " + quote(post.URL) + "\n")
	b.WriteString("captured: " + captured.Format(CapturedLayout) + "\n")
	b.WriteString("tweet_id: " + quote(post.ID) + "\n")
	b.WriteString("tags:\n")
	for _, tag := range append(append([]string{}, BaseTags...), result.Tags...) {
		b.WriteString("  - " + quote(tag) + "\n")
	}
	b.WriteString("---\n\n")

	b.WriteString("# " + result.Title + "\n\n")

	b.WriteString("## Source\n\n")
	b.WriteString("> " + strings.ReplaceAll(post.Text, "\n", "\n> ") + "\n")
	b.WriteString(">\n")
	b.WriteString("> — [@" + post.AuthorHandle + "](https://x.com/" + post.AuthorHandle + ") · " + post.CreatedAt + "\n")

	if len(post.MediaURLs) > 0 {
		b.WriteString("\n## Attached media\n\n")
		for _, u := range post.MediaURLs {
			b.WriteString("![](" + u + ")\n")
		}
	}

	b.WriteString("\n## What this actually claims\n\n")
	b.WriteString(result.CoreClaim + "\n")

	b.WriteString("\n## Seed questions\n\n")
	questions := result.Questions()
	for i, q := range questions {
		b.WriteString("- " + q)
		if i < len(questions)-1 {
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")

	b.WriteString("\n## Link candidates\n\n")
	links := make([]string, 0, len(result.WikiLinks))
	for _, l := range result.WikiLinks {
		links = append(links, "[["+l+"]]")
	}
	b.WriteString(strings.Join(links, "  ") + "\n")

	return []byte(b.String())
}

// quote renders s as a YAML double-quoted scalar
func quote(s string) string {
	return strconv.Quote(s)
}
