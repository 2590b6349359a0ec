package sources

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

const resultsPage = `<html><script>var ytInitialData = {"contents":{"sectionListRenderer":{"contents":[{"itemSectionRenderer":{"contents":[` +
	`{"videoRenderer":{"videoId":"aaaaaaaaaaa","title":{"runs":[{"text":"First talk"}]},"ownerText":{"runs":[{"text":"GopherCon"}]},"descriptionSnippet":{"runs":[{"text":"Channels "},{"text":"and select"}]}}},` +
	`{"adSlotRenderer":{}},` +
	`{"videoRenderer":{"videoId":"bbbbbbbbbbb","title":{"runs":[{"text":"Second talk"}]},"ownerText":{"runs":[{"text":"Go Team"}]}}},` +
	`{"videoRenderer":{"videoId":"ccccccccccc","title":{"runs":[{"text":"Third talk"}]},"ownerText":{"runs":[]}}}` +
	`]}}]}}};</script></html>`

func newSearchServer(t *testing.T, apiKey string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /results", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "go concurrency", r.URL.Query().Get("search_query"))
		io.WriteString(w, resultsPage)
	})
	mux.HandleFunc("GET /youtube/v3/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Goog-Api-Key") != "good-key" || r.URL.Query().Has("key") {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		assert.Equal(t, "2", r.URL.Query().Get("maxResults"))
		io.WriteString(w, `{"items":[`+
			`{"id":{"videoId":"ddddddddddd"},"snippet":{"title":"API hit","channelTitle":"Chan","description":"desc"}},`+
			`{"id":{},"snippet":{"title":"playlist"}}]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	savedBase, savedData := ytBaseURL, ytDataAPIBase
	ytBaseURL = srv.URL
	ytDataAPIBase = srv.URL + "/youtube/v3"
	t.Cleanup(func() { ytBaseURL, ytDataAPIBase = savedBase, savedData })

	engine.Init(engine.Config{HTTPClient: srv.Client(), YouTubeAPIKey: apiKey})
	return srv
}

func TestSearchVideosScrape(t *testing.T) {
	newSearchServer(t, "")

	videos, err := SearchVideos(context.Background(), "go concurrency", "", 0)
	require.NoError(t, err)
	require.Len(t, videos, 3)
	assert.Equal(t, "aaaaaaaaaaa", videos[0].ID)
	assert.Equal(t, "First talk", videos[0].Title)
	assert.Equal(t, "GopherCon", videos[0].Channel)
	assert.Equal(t, "Channels and select", videos[0].Snippet)
	assert.Equal(t, "bbbbbbbbbbb", videos[1].ID)
	assert.Empty(t, videos[2].Channel)
}

func TestSearchVideosLimit(t *testing.T) {
	newSearchServer(t, "")

	videos, err := SearchVideos(context.Background(), "go concurrency", "", 1)
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, "aaaaaaaaaaa", videos[0].ID)
}

func TestSearchVideosDataAPI(t *testing.T) {
	newSearchServer(t, "good-key")

	videos, err := SearchVideos(context.Background(), "go concurrency", "en", 2)
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, "ddddddddddd", videos[0].ID)
	assert.Equal(t, "Chan", videos[0].Channel)
}

func TestSearchVideosDataAPIFallsBackToScrape(t *testing.T) {
	newSearchServer(t, "bad-key")

	videos, err := SearchVideos(context.Background(), "go concurrency", "", 5)
	require.NoError(t, err)
	assert.Len(t, videos, 3)
}

func TestSearchVideosRequiresQuery(t *testing.T) {
	_, err := SearchVideos(context.Background(), "  ", "", 5)
	assert.ErrorIs(t, err, engine.ErrMissingInput)
}
