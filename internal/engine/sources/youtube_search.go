package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

// Video search: Data API v3 when a key is configured, otherwise the
// ytInitialData blob of the results page.

const (
	ytInitialDataMarker = "var ytInitialData = "
	ytSearchFilter      = "EgIQAQ%3D%3D" // videos only
	maxSearchResults    = 10
	searchSnippetChars  = 200
)

// Video is one search hit.
type Video struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Channel string `json:"channel,omitempty"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

type ytDataSearchResp struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelTitle string `json:"channelTitle"`
		} `json:"snippet"`
	} `json:"items"`
}

type ytVideoRenderer struct {
	VideoID string `json:"videoId"`
	Title   struct {
		Runs []struct{ Text string } `json:"runs"`
	} `json:"title"`
	OwnerText struct {
		Runs []struct{ Text string } `json:"runs"`
	} `json:"ownerText"`
	DescriptionSnippet *struct {
		Runs []struct{ Text string } `json:"runs"`
	} `json:"descriptionSnippet"`
}

// SearchVideos returns up to limit videos matching query. limit outside
// [1, 10] becomes 5.
func SearchVideos(ctx context.Context, query, language string, limit int) ([]Video, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query", engine.ErrMissingInput)
	}
	if limit <= 0 || limit > maxSearchResults {
		limit = 5
	}
	if key := engine.Cfg.YouTubeAPIKey; key != "" {
		videos, err := searchDataAPI(ctx, query, language, limit, key)
		if err == nil {
			return videos, nil
		}
		slog.Warn("youtube: data API search failed, scraping", slog.Any("error", err))
	}
	return searchResultsPage(ctx, query, limit)
}

func searchDataAPI(ctx context.Context, query, language string, limit int, apiKey string) ([]Video, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", query)
	params.Set("type", "video")
	params.Set("maxResults", strconv.Itoa(limit))
	if language != "" {
		params.Set("relevanceLanguage", language)
	}

	resp, err := dataAPIGet(ctx, "/search", params, apiKey)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("youtube data API %d: %s", resp.StatusCode, string(body))
	}

	var result ytDataSearchResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode youtube data API: %w", err)
	}

	videos := make([]Video, 0, len(result.Items))
	for _, item := range result.Items {
		if item.ID.VideoID == "" {
			continue
		}
		videos = append(videos, Video{
			ID:      item.ID.VideoID,
			Title:   item.Snippet.Title,
			Channel: item.Snippet.ChannelTitle,
			URL:     watchURL(item.ID.VideoID),
			Snippet: engine.TruncateAtWord(item.Snippet.Description, searchSnippetChars),
		})
	}
	return videos, nil
}

func searchResultsPage(ctx context.Context, query string, limit int) ([]Video, error) {
	pageURL := ytBaseURL + "/results?search_query=" + url.QueryEscape(query) + "&sp=" + ytSearchFilter
	body, err := engine.FetchPage(ctx, pageURL)
	if err != nil {
		return nil, engine.Upstream("YouTube search failed", err)
	}

	idx := strings.Index(string(body), ytInitialDataMarker)
	if idx < 0 {
		return nil, engine.Upstream("YouTube search failed", fmt.Errorf("ytInitialData not found"))
	}
	data := extractJSON(body[idx+len(ytInitialDataMarker):])
	if data == nil {
		return nil, engine.Upstream("YouTube search failed", fmt.Errorf("truncated ytInitialData"))
	}
	return videosFromInitialData(data, limit), nil
}

// videosFromInitialData walks ytInitialData depth-first collecting
// videoRenderer entries in page order.
func videosFromInitialData(data []byte, limit int) []Video {
	var out []Video
	var walk func(v json.RawMessage)
	walk = func(v json.RawMessage) {
		if len(out) >= limit {
			return
		}
		switch {
		case len(v) > 0 && v[0] == '{':
			var obj map[string]json.RawMessage
			if json.Unmarshal(v, &obj) != nil {
				return
			}
			if raw, ok := obj["videoRenderer"]; ok {
				if vid, ok := videoFromRenderer(raw); ok {
					out = append(out, vid)
				}
				return
			}
			// Page order lives in arrays; sorted keys keep the walk deterministic.
			for _, k := range slices.Sorted(maps.Keys(obj)) {
				walk(obj[k])
			}
		case len(v) > 0 && v[0] == '[':
			var arr []json.RawMessage
			if json.Unmarshal(v, &arr) != nil {
				return
			}
			for _, item := range arr {
				walk(item)
			}
		}
	}
	walk(data)
	return out
}

func videoFromRenderer(raw json.RawMessage) (Video, bool) {
	var vr ytVideoRenderer
	if err := json.Unmarshal(raw, &vr); err != nil || vr.VideoID == "" {
		return Video{}, false
	}
	v := Video{ID: vr.VideoID, URL: watchURL(vr.VideoID)}
	if len(vr.Title.Runs) > 0 {
		v.Title = vr.Title.Runs[0].Text
	}
	if len(vr.OwnerText.Runs) > 0 {
		v.Channel = vr.OwnerText.Runs[0].Text
	}
	if vr.DescriptionSnippet != nil {
		var sb strings.Builder
		for _, r := range vr.DescriptionSnippet.Runs {
			sb.WriteString(r.Text)
		}
		v.Snippet = engine.TruncateAtWord(sb.String(), searchSnippetChars)
	}
	return v, true
}
