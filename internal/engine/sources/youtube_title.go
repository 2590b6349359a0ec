package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

// DefaultTitle is used when no lookup yields a title.
const DefaultTitle = "Untitled Video"

// ytDataAPIBase is a variable so tests can substitute an httptest server.
var ytDataAPIBase = "https://www.googleapis.com/youtube/v3"

type ytVideosResp struct {
	Items []struct {
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
	} `json:"items"`
}

// LookupTitle resolves a human-readable title for a video. It tries the Data
// API when a key is configured, then the watch page, then DefaultTitle.
// Lookup failures are logged, never returned.
func LookupTitle(ctx context.Context, videoID string) string {
	engine.IncrTitleLookups()

	if key := engine.Cfg.YouTubeAPIKey; key != "" {
		title, err := titleFromDataAPI(ctx, videoID, key)
		if err == nil && title != "" {
			return title
		}
		if err != nil {
			slog.Warn("youtube: data API title lookup failed", slog.String("id", videoID), slog.Any("error", err))
		}
	}

	title, err := titleFromWatchPage(ctx, videoID)
	if err == nil && title != "" {
		return title
	}
	if err != nil {
		slog.Warn("youtube: watch page title lookup failed", slog.String("id", videoID), slog.Any("error", err))
	}
	return DefaultTitle
}

func titleFromDataAPI(ctx context.Context, videoID, apiKey string) (string, error) {
	params := url.Values{}
	params.Set("id", videoID)
	params.Set("part", "snippet")

	resp, err := dataAPIGet(ctx, "/videos", params, apiKey)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("youtube data API %d: %s", resp.StatusCode, string(body))
	}

	var result ytVideosResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode youtube data API: %w", err)
	}
	if len(result.Items) == 0 {
		return "", nil
	}
	return strings.TrimSpace(result.Items[0].Snippet.Title), nil
}

// dataAPIGet calls a Data API v3 endpoint. The key travels in the
// X-Goog-Api-Key header so it never shows up in a logged *url.Error.
func dataAPIGet(ctx context.Context, endpoint string, params url.Values, apiKey string) (*http.Response, error) {
	apiURL := ytDataAPIBase + endpoint + "?" + params.Encode()
	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Goog-Api-Key", apiKey)
		return engine.Cfg.HTTPClient.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("youtube data API: %w", err)
	}
	return resp, nil
}

func titleFromWatchPage(ctx context.Context, videoID string) (string, error) {
	body, err := engine.FetchPage(ctx, watchURL(videoID))
	if err != nil {
		return "", err
	}
	return titleFromHTML(body)
}

// titleFromHTML prefers og:title, then the player response, then <title>.
func titleFromHTML(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse watch page: %w", err)
	}

	if og, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok && strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og), nil
	}
	if pr, err := playerResponseFromPage(body); err == nil && pr.VideoDetails != nil && pr.VideoDetails.Title != "" {
		return pr.VideoDetails.Title, nil
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	title = strings.TrimSpace(strings.TrimSuffix(title, "- YouTube"))
	return title, nil
}
