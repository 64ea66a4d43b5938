package xcom

import (
	"encoding/json"
	"fmt"
)

// Post is one bookmarked post, immutable once fetched
type Post struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	AuthorName   string   `json:"author_name"`
	AuthorHandle string   `json:"author_handle"`
	URL          string   `json:"url"`
	CreatedAt    string   `json:"created_at"`
	MediaURLs    []string `json:"media_urls"`
}

// PostURL builds the canonical status URL
func PostURL(handle, id string) string {
	return fmt.Sprintf("https://x.com/%s/status/%s", handle, id)
}

// bookmarksResponse is the subset of the Bookmarks GraphQL payload we read
type bookmarksResponse struct {
	Data struct {
		BookmarkTimelineV2 struct {
			Timeline struct {
				Instructions []instruction `json:"instructions"`
			} `json:"timeline"`
		} `json:"bookmark_timeline_v2"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type instruction struct {
	Type    string  `json:"type"`
	Entries []entry `json:"entries"`
}

type entry struct {
	EntryID string `json:"entryId"`
	Content struct {
		EntryType   string `json:"entryType"`
		ItemContent *struct {
			ItemType     string `json:"itemType"`
			TweetResults struct {
				Result *tweetResult `json:"result"`
			} `json:"tweet_results"`
		} `json:"itemContent"`
	} `json:"content"`
}

type tweetResult struct {
	Typename string `json:"__typename"`
	RestID   string `json:"rest_id"`

	// set when __typename is TweetWithVisibilityResults
	Tweet *tweetResult `json:"tweet"`

	Core struct {
		UserResults struct {
			Result struct {
				Core   userNames `json:"core"`
				Legacy userNames `json:"legacy"`
			} `json:"result"`
		} `json:"user_results"`
	} `json:"core"`

	NoteTweet *struct {
		NoteTweetResults struct {
			Result struct {
				Text string `json:"text"`
			} `json:"result"`
		} `json:"note_tweet_results"`
	} `json:"note_tweet"`

	Legacy tweetLegacy `json:"legacy"`
}

type userNames struct {
	Name       string `json:"name"`
	ScreenName string `json:"screen_name"`
}

type tweetLegacy struct {
	IDStr            string   `json:"id_str"`
	FullText         string   `json:"full_text"`
	CreatedAt        string   `json:"created_at"`
	Entities         entities `json:"entities"`
	ExtendedEntities entities `json:"extended_entities"`
}

type entities struct {
	URLs  []urlEntity   `json:"urls"`
	Media []mediaEntity `json:"media"`
}

type urlEntity struct {
	URL         string `json:"url"`
	ExpandedURL string `json:"expanded_url"`
}

type mediaEntity struct {
	MediaURLHTTPS string `json:"media_url_https"`
	Type          string `json:"type"`
}

// unwrap resolves TweetWithVisibilityResults to the inner tweet
func (t *tweetResult) unwrap() *tweetResult {
	for t != nil && t.Tweet != nil && t.Legacy.FullText == "" && t.RestID == "" {
		t = t.Tweet
	}
	return t
}

func (t *tweetResult) id() string {
	if t.RestID != "" {
		return t.RestID
	}
	return t.Legacy.IDStr
}

func (t *tweetResult) text() string {
	if t.NoteTweet != nil && t.NoteTweet.NoteTweetResults.Result.Text != "" {
		return t.NoteTweet.NoteTweetResults.Result.Text
	}
	return t.Legacy.FullText
}

func (t *tweetResult) author() userNames {
	u := t.Core.UserResults.Result
	names := u.Core
	if names.ScreenName == "" {
		names.ScreenName = u.Legacy.ScreenName
	}
	if names.Name == "" {
		names.Name = u.Legacy.Name
	}
	return names
}

func (t *tweetResult) mediaURLs() []string {
	media := t.Legacy.ExtendedEntities.Media
	if len(media) == 0 {
		media = t.Legacy.Entities.Media
	}
	urls := make([]string, 0, len(media))
	for _, m := range media {
		if m.MediaURLHTTPS != "" {
			urls = append(urls, m.MediaURLHTTPS)
		}
	}
	return urls
}

// decodeJSON decodes a response body into v
func decodeJSON(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
