package transcript

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/sources"
)

type fakeSource struct {
	caps  []sources.Caption
	err   error
	calls int
}

func (f *fakeSource) FetchTranscript(ctx context.Context, videoID string, langs []string) ([]sources.Caption, error) {
	f.calls++
	return f.caps, f.err
}

type fakeGenerator struct {
	out     string
	err     error
	calls   int
	prompts []string
	got     engine.Sampling
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string, s engine.Sampling) (string, error) {
	g.calls++
	g.prompts = append(g.prompts, prompt)
	g.got = s
	return g.out, g.err
}

func caption(text, start, dur string) sources.Caption {
	return sources.Caption{Text: text, Start: decimal.RequireFromString(start), Duration: decimal.RequireFromString(dur)}
}

func init() {
	engine.Init(engine.Config{
		Analyze: engine.Sampling{Temperature: 0.7, MaxTokens: 2500},
		Chat:    engine.Sampling{Temperature: 0.7, MaxTokens: 1000},
	})
}

func TestFetchHelloWorldScenario(t *testing.T) {
	src := &fakeSource{caps: []sources.Caption{
		caption("Hello", "0", "2"),
		caption("world", "2", "1.5"),
	}}
	tr, err := NewFetcher(src).Fetch(context.Background(), "https://www.youtube.com/watch?v=pcC4Dr6Wj2Q")
	require.NoError(t, err)

	assert.Equal(t, "pcC4Dr6Wj2Q", tr.VideoID)
	assert.Equal(t, []Segment{
		{Text: "Hello", Start: 0, Duration: 2},
		{Text: "world", Start: 2, Duration: 1.5},
	}, tr.Segments)
	assert.Equal(t, "Hello world", tr.Text())

	gen := &fakeGenerator{out: "analysis"}
	_, err = NewSummarizer(gen).SummarizeSegments(context.Background(), tr.Segments)
	require.NoError(t, err)
	require.Len(t, gen.prompts, 1)
	assert.True(t, strings.HasSuffix(gen.prompts[0], "Transcript:\nHello world"), "prompt: %q", gen.prompts[0])
}

func TestFetchOrdersSegments(t *testing.T) {
	src := &fakeSource{caps: []sources.Caption{
		caption("c", "5", "1"),
		caption("a", "0", "1"),
		caption(" ", "1", "1"),
		caption("b", "2.5", "1"),
		caption("b2", "2.5", "0.5"),
	}}
	tr, err := NewFetcher(src).Fetch(context.Background(), "pcC4Dr6Wj2Q")
	require.NoError(t, err)

	assert.Equal(t, "a b b2 c", tr.Text())
	for i := 1; i < len(tr.Segments); i++ {
		assert.LessOrEqual(t, tr.Segments[i-1].Start, tr.Segments[i].Start)
	}
}

func TestFetchInvalidReferenceMakesNoCall(t *testing.T) {
	src := &fakeSource{}
	_, err := NewFetcher(src).Fetch(context.Background(), "not a url")
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrInvalidReference))
	assert.Zero(t, src.calls)
}

func TestFetchErrorNormalization(t *testing.T) {
	tests := []struct {
		name    string
		src     *fakeSource
		want    error
		notWant error
	}{
		{"not found", &fakeSource{err: errors.Join(engine.ErrNotFound, errors.New("captions disabled"))}, engine.ErrNotFound, engine.ErrUpstream},
		{"empty result", &fakeSource{caps: []sources.Caption{caption("  ", "0", "1")}}, engine.ErrNotFound, engine.ErrUpstream},
		{"network", &fakeSource{err: errors.New("dial tcp: connection refused")}, engine.ErrUpstream, engine.ErrNotFound},
		{"timeout", &fakeSource{err: context.DeadlineExceeded}, engine.ErrUpstream, engine.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFetcher(tt.src).Fetch(context.Background(), "pcC4Dr6Wj2Q")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.False(t, errors.Is(err, tt.notWant), "got %v", err)
		})
	}
}

func TestFetchUpstreamMessageIsSafe(t *testing.T) {
	src := &fakeSource{err: errors.New(`<html>raw provider payload</html>`)}
	_, err := NewFetcher(src).Fetch(context.Background(), "pcC4Dr6Wj2Q")
	require.Error(t, err)
	assert.Equal(t, "Failed to fetch transcript", engine.UpstreamMessage(err, ""))
}

func TestSummarizeEmptyInputMakesNoCall(t *testing.T) {
	gen := &fakeGenerator{out: "x"}
	for _, in := range []string{"", "   \n\t"} {
		_, err := NewSummarizer(gen).Summarize(context.Background(), in)
		require.Error(t, err)
		assert.True(t, errors.Is(err, engine.ErrEmptyInput))
	}
	assert.Zero(t, gen.calls)
}

func TestSummarizePromptAndSampling(t *testing.T) {
	gen := &fakeGenerator{out: "# Topics\n- one"}
	out, err := NewSummarizer(gen).Summarize(context.Background(), "some words")
	require.NoError(t, err)
	assert.Equal(t, "# Topics\n- one", out)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, engine.Sampling{Temperature: 0.7, MaxTokens: 2500}, gen.got)
	for _, section := range []string{"Main topics and key points", "A concise summary", "Key insights or takeaways", "Any notable quotes or statements"} {
		assert.Contains(t, gen.prompts[0], section)
	}
}

func TestSummarizeUsesTuning(t *testing.T) {
	engine.SetTuning(engine.Tuning{
		Analyze: engine.Sampling{Temperature: 0.2, MaxTokens: 900},
		Chat:    engine.Sampling{Temperature: 0.1, MaxTokens: 300},
	})
	defer engine.SetTuning(engine.Tuning{Analyze: engine.Cfg.Analyze, Chat: engine.Cfg.Chat})

	gen := &fakeGenerator{out: "ok"}
	_, err := NewSummarizer(gen).Summarize(context.Background(), "tuned text")
	require.NoError(t, err)
	assert.Equal(t, engine.Sampling{Temperature: 0.2, MaxTokens: 900}, gen.got)
}

func TestSummarizeUpstreamError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New(`{"error":{"message":"Rate limit exceeded"}}`)}
	_, err := NewSummarizer(gen).Summarize(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrUpstream))
	assert.Equal(t, "Rate limit exceeded", engine.UpstreamMessage(err, ""))
}

func TestAnswerMissingInput(t *testing.T) {
	gen := &fakeGenerator{out: "x"}
	a := NewAnswerer(gen)
	for _, tc := range [][2]string{{"", "t"}, {"q", ""}, {"  ", "t"}, {"q", "\n"}} {
		_, err := a.Answer(context.Background(), tc[0], tc[1], "pcC4Dr6Wj2Q")
		require.Error(t, err)
		assert.True(t, errors.Is(err, engine.ErrMissingInput), "input %q", tc)
	}
	assert.Zero(t, gen.calls)
}

func TestAnswerPrompt(t *testing.T) {
	gen := &fakeGenerator{out: "It is about Go."}
	out, err := NewAnswerer(gen).Answer(context.Background(), "What is this about?", "Hello world", "pcC4Dr6Wj2Q")
	require.NoError(t, err)
	assert.Equal(t, "It is about Go.", out)
	assert.Equal(t, 1000, gen.got.MaxTokens)

	p := gen.prompts[0]
	assert.Contains(t, p, "Video ID: pcC4Dr6Wj2Q")
	assert.Contains(t, p, "Transcript: Hello world")
	assert.Contains(t, p, "User question: What is this about?")
	assert.Contains(t, p, "based only on the information provided in the transcript")
}

func TestSerializeRoundTrip(t *testing.T) {
	segs := []Segment{{Text: "Hello", Start: 0, Duration: 2}, {Text: "world", Start: 2, Duration: 1.5}}
	s, err := Serialize(segs)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"text":"Hello","start":0,"duration":2},{"text":"world","start":2,"duration":1.5}]`, s)

	back, err := Deserialize(s)
	require.NoError(t, err)
	assert.Equal(t, segs, back)
}

func TestFingerprintStable(t *testing.T) {
	assert.Equal(t, Fingerprint("Hello world"), Fingerprint("Hello world"))
	assert.NotEqual(t, Fingerprint("Hello world"), Fingerprint("Hello world!"))
	assert.Len(t, Fingerprint("x"), 32)
}
