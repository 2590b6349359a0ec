package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_transcript/internal/auth"
	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/sources"
	"github.com/anatolykoptev/go_transcript/internal/render"
	"github.com/anatolykoptev/go_transcript/internal/store"
	"github.com/anatolykoptev/go_transcript/internal/transcript"
)

type fakePipeline struct {
	fetchErr   error
	analysis   string
	analyzeErr error
	answer     string
	askErr     error

	gotRef      string
	gotSegments []transcript.Segment
	gotQuestion string
}

func (f *fakePipeline) FetchTranscript(_ context.Context, ref string) (transcript.Transcript, error) {
	f.gotRef = ref
	if f.fetchErr != nil {
		return transcript.Transcript{}, f.fetchErr
	}
	return transcript.Transcript{VideoID: "pcC4Dr6Wj2Q", Segments: []transcript.Segment{
		{Text: "Hello", Start: 0, Duration: 2},
		{Text: "world", Start: 2, Duration: 1.5},
	}}, nil
}

func (f *fakePipeline) Analyze(_ context.Context, segs []transcript.Segment) (string, error) {
	f.gotSegments = segs
	return f.analysis, f.analyzeErr
}

func (f *fakePipeline) Ask(_ context.Context, question, _, _ string) (string, error) {
	f.gotQuestion = question
	return f.answer, f.askErr
}

func newTestServer(t *testing.T, p Pipeline, mutate ...func(*Deps)) *httptest.Server {
	t.Helper()
	a, err := auth.NewStatic([]string{"ada@example.com:secret", "bob@example.com:secret"})
	require.NoError(t, err)
	d := Deps{
		Pipeline: p,
		Store:    store.NewMemory(),
		Auth:     a,
		Titles:   func(context.Context, string) string { return "Go Concurrency" },
	}
	for _, m := range mutate {
		m(&d)
	}
	srv := httptest.NewServer(New(d).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, token, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func errorMessage(t *testing.T, body []byte) string {
	t.Helper()
	var e errorBody
	require.NoError(t, json.Unmarshal(body, &e), string(body))
	return e.Error
}

func TestTranscriptEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		fetchErr   error
		wantStatus int
		wantError  string
	}{
		{"missing url", `{}`, nil, http.StatusBadRequest, "YouTube URL is required"},
		{"malformed json", `{"url":`, nil, http.StatusBadRequest, "YouTube URL is required"},
		{"invalid url", `{"url":"not a url"}`, fmt.Errorf("%w: not a url", engine.ErrInvalidReference), http.StatusBadRequest, "Invalid YouTube URL"},
		{"no captions", `{"url":"https://youtu.be/pcC4Dr6Wj2Q"}`, fmt.Errorf("%w for video x", engine.ErrNotFound), http.StatusNotFound, "No transcript available for this video"},
		{"upstream", `{"url":"https://youtu.be/pcC4Dr6Wj2Q"}`, engine.Upstream("Failed to fetch transcript", errors.New(`<html>captcha</html>`)), http.StatusInternalServerError, "Failed to fetch transcript"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakePipeline{fetchErr: tt.fetchErr})
			resp, body := do(t, http.MethodPost, srv.URL+"/transcript", "", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantError, errorMessage(t, body))
			assert.NotContains(t, string(body), "captcha")
		})
	}

	t.Run("success", func(t *testing.T) {
		p := &fakePipeline{}
		srv := newTestServer(t, p)
		resp, body := do(t, http.MethodPost, srv.URL+"/transcript", "", `{"url":"https://www.youtube.com/watch?v=pcC4Dr6Wj2Q"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"transcript":[{"text":"Hello","start":0,"duration":2},{"text":"world","start":2,"duration":1.5}],"videoId":"pcC4Dr6Wj2Q"}`, string(body))
		assert.Equal(t, "https://www.youtube.com/watch?v=pcC4Dr6Wj2Q", p.gotRef)
	})
}

func TestTranscriptEndpointRejectsInvalidReferenceWithoutNetwork(t *testing.T) {
	engine.Init(engine.Config{})
	src := &countingSource{}
	srv := newTestServer(t, transcript.NewPipeline(src, nil))

	resp, body := do(t, http.MethodPost, srv.URL+"/transcript", "", `{"url":"not a url"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid YouTube URL", errorMessage(t, body))
	assert.Zero(t, src.calls)
}

type countingSource struct{ calls int }

func (c *countingSource) FetchTranscript(context.Context, string, []string) ([]sources.Caption, error) {
	c.calls++
	return nil, errors.New("unexpected call")
}

func TestAnalyzeEndpoint(t *testing.T) {
	t.Run("missing transcript", func(t *testing.T) {
		srv := newTestServer(t, &fakePipeline{})
		for _, body := range []string{`{}`, `{"transcript":[]}`, `{"transcript":"text"}`} {
			resp, raw := do(t, http.MethodPost, srv.URL+"/analyze", "", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
			assert.Equal(t, "Transcript is required", errorMessage(t, raw))
		}
	})
	t.Run("blank segments", func(t *testing.T) {
		srv := newTestServer(t, &fakePipeline{analyzeErr: fmt.Errorf("%w: empty", engine.ErrEmptyInput)})
		resp, raw := do(t, http.MethodPost, srv.URL+"/analyze", "", `{"transcript":[{"text":" ","start":0,"duration":1}]}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Transcript is required", errorMessage(t, raw))
	})
	t.Run("success", func(t *testing.T) {
		p := &fakePipeline{analysis: "## Summary"}
		srv := newTestServer(t, p)
		resp, raw := do(t, http.MethodPost, srv.URL+"/analyze", "", `{"transcript":[{"text":"Hello","start":0,"duration":2},{"text":"world","start":2,"duration":1.5}]}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"analysis":"## Summary"}`, string(raw))
		assert.Equal(t, "Hello world", transcript.JoinText(p.gotSegments))
	})
	t.Run("upstream", func(t *testing.T) {
		srv := newTestServer(t, &fakePipeline{analyzeErr: &engine.UpstreamError{Message: "Insufficient credits"}})
		resp, raw := do(t, http.MethodPost, srv.URL+"/analyze", "", `{"transcript":[{"text":"a","start":0,"duration":1}]}`)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "Failed to analyze transcript", errorMessage(t, raw))
	})
}

func TestChatEndpoint(t *testing.T) {
	t.Run("missing input", func(t *testing.T) {
		srv := newTestServer(t, &fakePipeline{})
		for _, body := range []string{`{}`, `{"question":"q"}`, `{"transcript":"t"}`, `{"question":"  ","transcript":"t"}`} {
			resp, raw := do(t, http.MethodPost, srv.URL+"/chat", "", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
			assert.Equal(t, "Question and transcript are required", errorMessage(t, raw))
		}
	})
	t.Run("success", func(t *testing.T) {
		p := &fakePipeline{answer: "It says hello."}
		srv := newTestServer(t, p)
		resp, raw := do(t, http.MethodPost, srv.URL+"/chat", "", `{"question":"What?","transcript":"Hello world","videoId":"pcC4Dr6Wj2Q"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"response":"It says hello."}`, string(raw))
		assert.Equal(t, "What?", p.gotQuestion)
	})
	t.Run("upstream", func(t *testing.T) {
		srv := newTestServer(t, &fakePipeline{askErr: errors.New("boom")})
		resp, raw := do(t, http.MethodPost, srv.URL+"/chat", "", `{"question":"What?","transcript":"Hello world"}`)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "Failed to process your question", errorMessage(t, raw))
	})
}

func TestRenderEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{})
	resp, raw := do(t, http.MethodPost, srv.URL+"/render", "", `{"analysis":"## Hi\n<b>x</b>"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out renderResponse
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Contains(t, out.HTML, "<h2>Hi</h2>")
	assert.Contains(t, out.HTML, "&lt;b&gt;x&lt;/b&gt;")

	permissive := newTestServer(t, &fakePipeline{}, func(d *Deps) { d.RenderMode = render.Permissive })
	_, raw = do(t, http.MethodPost, permissive.URL+"/render", "", `{"analysis":"<b>x</b>"}`)
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "<p><b>x</b></p>", out.HTML)
}

func signIn(t *testing.T, base, email string) string {
	t.Helper()
	resp, raw := do(t, http.MethodPost, base+"/auth/signin", "", fmt.Sprintf(`{"email":%q,"password":"secret"}`, email))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var sess auth.Session
	require.NoError(t, json.Unmarshal(raw, &sess))
	require.NotEmpty(t, sess.Token)
	require.NotEmpty(t, sess.UserID)
	return sess.Token
}

func TestSavedAnalysesLifecycle(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{})

	resp, _ := do(t, http.MethodGet, srv.URL+"/analyses", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, raw := do(t, http.MethodPost, srv.URL+"/auth/signin", "", `{"email":"ada@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid email or password", errorMessage(t, raw))

	ada := signIn(t, srv.URL, "ada@example.com")
	bob := signIn(t, srv.URL, "bob@example.com")

	long := strings.Repeat("insight ", 40)
	resp, raw = do(t, http.MethodPost, srv.URL+"/analyses", ada,
		fmt.Sprintf(`{"videoId":"pcC4Dr6Wj2Q","analysis":%q,"transcript":[{"text":"Hello","start":0,"duration":2}]}`, long))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var saved store.SavedAnalysis
	require.NoError(t, json.Unmarshal(raw, &saved))
	assert.Equal(t, "Go Concurrency", saved.Title)
	assert.Equal(t, "pcC4Dr6Wj2Q", saved.VideoID)
	assert.JSONEq(t, `[{"text":"Hello","start":0,"duration":2}]`, saved.Transcript)

	resp, raw = do(t, http.MethodGet, srv.URL+"/analyses", ada, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var items []analysisItem
	require.NoError(t, json.Unmarshal(raw, &items))
	require.Len(t, items, 1)
	assert.True(t, strings.HasSuffix(items[0].Preview, "..."), items[0].Preview)
	assert.Less(t, len(items[0].Preview), len(long))

	resp, raw = do(t, http.MethodGet, srv.URL+"/analyses", bob, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(raw))

	resp, _ = do(t, http.MethodGet, srv.URL+"/analyses/"+saved.ID, bob, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, raw = do(t, http.MethodPatch, srv.URL+"/analyses/"+saved.ID, ada, `{"analysis":"<h2>Edited</h2><p>Now <strong>better</strong>.</p>","format":"html"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	var updated store.SavedAnalysis
	require.NoError(t, json.Unmarshal(raw, &updated))
	assert.Contains(t, updated.Analysis, "## Edited")
	assert.Contains(t, updated.Analysis, "**better**")
	assert.Equal(t, saved.Transcript, updated.Transcript)

	resp, raw = do(t, http.MethodPatch, srv.URL+"/analyses/"+saved.ID, ada, `{"analysis":"x","format":"rtf"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(raw))

	resp, raw = do(t, http.MethodGet, srv.URL+"/analyses/"+saved.ID+"/export.docx", ada, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "Go_Concurrency.docx")
	assert.True(t, bytes.HasPrefix(raw, []byte("PK")), "docx is a zip archive")

	resp, _ = do(t, http.MethodDelete, srv.URL+"/analyses/"+saved.ID, bob, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = do(t, http.MethodDelete, srv.URL+"/analyses/"+saved.ID, ada, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, http.MethodGet, srv.URL+"/analyses/"+saved.ID, ada, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/auth/signout", ada, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, http.MethodGet, srv.URL+"/analyses", ada, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateAnalysisValidation(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{})
	token := signIn(t, srv.URL, "ada@example.com")

	resp, raw := do(t, http.MethodPost, srv.URL+"/analyses", token, `{"videoId":"pcC4Dr6Wj2Q"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Video ID and analysis are required", errorMessage(t, raw))

	resp, raw = do(t, http.MethodPost, srv.URL+"/analyses", token, `{"videoId":"nope","analysis":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid YouTube URL", errorMessage(t, raw))
}

type failingStore struct{ store.Gateway }

func (failingStore) List(context.Context, string) ([]store.SavedAnalysis, error) {
	return nil, fmt.Errorf("%w: connection reset", engine.ErrPersistence)
}

func TestPersistenceErrorIs500(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{}, func(d *Deps) { d.Store = failingStore{store.NewMemory()} })
	token := signIn(t, srv.URL, "ada@example.com")

	resp, raw := do(t, http.MethodGet, srv.URL+"/analyses", token, "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Failed to load analyses", errorMessage(t, raw))
	assert.NotContains(t, string(raw), "connection reset")
}

type unavailableAuth struct{ auth.Anonymous }

func (unavailableAuth) SignIn(context.Context, string, string) (auth.Session, error) {
	return auth.Session{}, errors.New("supabase sign-in: dial tcp: connection refused")
}

func TestSignInProviderOutageIs500(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{}, func(d *Deps) { d.Auth = unavailableAuth{} })

	resp, raw := do(t, http.MethodPost, srv.URL+"/auth/signin", "", `{"email":"ada@example.com","password":"secret"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Failed to sign in", errorMessage(t, raw))
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{}, func(d *Deps) {
		d.RatePerSec = 0.001
		d.RateBurst = 1
	})
	resp, _ := do(t, http.MethodGet, srv.URL+"/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw := do(t, http.MethodGet, srv.URL+"/healthz", "", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "Too many requests", errorMessage(t, raw))
}

func TestMetricsAndHealth(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{})

	resp, raw := do(t, http.MethodGet, srv.URL+"/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(raw))

	resp, raw = do(t, http.MethodGet, srv.URL+"/metrics", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "transcript_requests ")
	assert.Contains(t, string(raw), "cache_hits ")
}

func TestRoutesDisabledWithoutStore(t *testing.T) {
	srv := newTestServer(t, &fakePipeline{}, func(d *Deps) { d.Store = nil })
	resp, _ := do(t, http.MethodGet, srv.URL+"/analyses", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
