package xcom

import "strings"

// parsedPost carries the article link found in a link-only post
type parsedPost struct {
	Post
	articleURL string
}

// parseTimeline walks the timeline instructions in order and returns one
// post per tweet entry. Cursor and promoted entries are skipped.
func parseTimeline(instructions []instruction) []parsedPost {
	var posts []parsedPost
	seen := make(map[string]bool)

	for _, inst := range instructions {
		for _, e := range inst.Entries {
			ic := e.Content.ItemContent
			if ic == nil || ic.TweetResults.Result == nil {
				continue
			}
			tweet := ic.TweetResults.Result.unwrap()
			if tweet == nil {
				continue
			}
			id := tweet.id()
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true

			author := tweet.author()
			text := tweet.text()
			p := parsedPost{
				Post: Post{
					ID:           id,
					Text:         text,
					AuthorName:   author.Name,
					AuthorHandle: author.ScreenName,
					URL:          PostURL(author.ScreenName, id),
					CreatedAt:    tweet.Legacy.CreatedAt,
					MediaURLs:    tweet.mediaURLs(),
				},
			}
			if isLinkOnly(text) {
				p.articleURL = findArticleURL(tweet.Legacy.Entities.URLs)
			}
			posts = append(posts, p)
		}
	}
	return posts
}

// isLinkOnly reports whether text is nothing but a t.co short link
func isLinkOnly(text string) bool {
	t := strings.TrimSpace(text)
	return strings.HasPrefix(t, shortLinkPrefix) && !strings.ContainsAny(t, " \t\r\n")
}

// findArticleURL returns the canonical article URL among the entity URLs
func findArticleURL(urls []urlEntity) string {
	for _, u := range urls {
		idx := strings.Index(u.ExpandedURL, articlePathToken)
		if idx < 0 {
			continue
		}
		id := u.ExpandedURL[idx+len(articlePathToken):]
		if cut := strings.IndexAny(id, "?#"); cut >= 0 {
			id = id[:cut]
		}
		id = strings.Trim(id, "/")
		if id == "" {
			continue
		}
		return "https://x.com/i/article/" + id
	}
	return ""
}
