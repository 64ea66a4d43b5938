package xcom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	shortLinkPrefix  = "https://t.co/"
	articlePathToken = "/i/article/"
	// rendered article text shorter than this is treated as a failed render
	minArticleLength = 50
	maxErrorBody     = 512
)

// feature switches the web client sends with timeline queries
var bookmarkFeatures = map[string]bool{
	"graphql_timeline_v2_bookmark_timeline":                                   true,
	"rweb_tipjar_consumption_enabled":                                         true,
	"responsive_web_graphql_exclude_directive_enabled":                        true,
	"verified_phone_label_enabled":                                            false,
	"creator_subscriptions_tweet_preview_api_enabled":                         true,
	"responsive_web_graphql_timeline_navigation_enabled":                      true,
	"responsive_web_graphql_skip_user_profile_image_extensions_enabled":       false,
	"communities_web_enable_tweet_community_results_fetch":                    true,
	"c9s_tweet_anatomy_moderator_badge_enabled":                               true,
	"articles_preview_enabled":                                                true,
	"tweetypie_unmention_optimization_enabled":                                true,
	"responsive_web_edit_tweet_api_enabled":                                   true,
	"graphql_is_translatable_rweb_tweet_is_translatable_enabled":              true,
	"view_counts_everywhere_api_enabled":                                      true,
	"longform_notetweets_consumption_enabled":                                 true,
	"responsive_web_twitter_article_tweet_consumption_enabled":                true,
	"tweet_awards_web_tipping_enabled":                                        false,
	"creator_subscriptions_quote_tweet_preview_enabled":                       false,
	"freedom_of_speech_not_reach_fetch_enabled":                               true,
	"standardized_nudges_misinfo":                                             true,
	"tweet_with_visibility_results_prefer_gql_limited_actions_policy_enabled": true,
	"rweb_video_timestamps_enabled":                                           true,
	"longform_notetweets_rich_text_read_enabled":                              true,
	"longform_notetweets_inline_media_enabled":                                true,
	"responsive_web_enhance_cards_enabled":                                    false,
}

// FetchBookmarks returns up to count bookmarks, newest first as X returns
// them. Every error is a *FetchError.
func (c *Client) FetchBookmarks(ctx context.Context, count int) ([]Post, error) {
	if count <= 0 {
		return []Post{}, nil
	}

	reqURL, err := c.bookmarksURL(count)
	if err != nil {
		return nil, &FetchError{Kind: KindRemote, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindRemote, Err: err}
	}
	c.setHeaders(req)

	c.log.Debug().Int("count", count).Str("query_id", c.queryID).Msg("fetching bookmarks")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// a cancelled run says nothing about the session or the API
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &FetchError{Kind: KindRemote, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseAPIError(resp.StatusCode, body)
	}

	var result bookmarksResponse
	if err := decodeJSON(body, &result); err != nil {
		return nil, &FetchError{Kind: KindRemote, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	instructions := result.Data.BookmarkTimelineV2.Timeline.Instructions
	if len(result.Errors) > 0 && len(instructions) == 0 {
		fe := classifyGraphQLErrors(result.Errors)
		fe.Status = resp.StatusCode
		return nil, fe
	}

	parsed := parseTimeline(instructions)
	if len(parsed) > count {
		parsed = parsed[:count]
	}

	posts := make([]Post, 0, len(parsed))
	for _, p := range parsed {
		if p.articleURL != "" {
			c.expandArticle(ctx, &p.Post, p.articleURL)
		}
		posts = append(posts, p.Post)
	}

	c.log.Debug().Int("fetched", len(posts)).Msg("bookmarks fetched")
	return posts, nil
}

func (c *Client) bookmarksURL(count int) (string, error) {
	variables, err := json.Marshal(map[string]any{
		"count":                  count,
		"includePromotedContent": false,
	})
	if err != nil {
		return "", err
	}
	features, err := json.Marshal(bookmarkFeatures)
	if err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("variables", string(variables))
	params.Set("features", string(features))
	return fmt.Sprintf("%s/i/api/graphql/%s/Bookmarks?%s", c.baseURL, c.queryID, params.Encode()), nil
}

// parseAPIError turns a non-200 response into a FetchError
func parseAPIError(status int, body []byte) *FetchError {
	kind := KindRemote
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		kind = KindAuth
	}

	var payload struct {
		Errors []graphQLError `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Errors) > 0 {
		fe := classifyGraphQLErrors(payload.Errors)
		if kind == KindAuth {
			fe.Kind = KindAuth
		}
		fe.Status = status
		fe.Err = fmt.Errorf("status %d: %w", status, fe.Err)
		return fe
	}

	snippet := strings.TrimSpace(string(body))
	if len(snippet) > maxErrorBody {
		snippet = snippet[:maxErrorBody] + "..."
	}
	if snippet == "" {
		return &FetchError{Kind: kind, Status: status, Err: fmt.Errorf("status %d", status)}
	}
	return &FetchError{Kind: kind, Status: status, Err: fmt.Errorf("status %d: %s", status, snippet)}
}
