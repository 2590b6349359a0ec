package transcriptserver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/sources"
	"github.com/anatolykoptev/go_transcript/internal/render"
	"github.com/anatolykoptev/go_transcript/internal/transcript"
)

type fakeSource struct {
	err   error
	calls int
}

func (f *fakeSource) FetchTranscript(context.Context, string, []string) ([]sources.Caption, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []sources.Caption{
		{Text: "Hello", Start: decimal.Zero, Duration: decimal.NewFromInt(2)},
		{Text: "world", Start: decimal.NewFromInt(2), Duration: decimal.NewFromInt(1)},
	}, nil
}

type fakeGenerator struct {
	out     string
	err     error
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string, _ engine.Sampling) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.out, g.err
}

func init() {
	engine.Init(engine.Config{
		Analyze: engine.Sampling{Temperature: 0.7, MaxTokens: 2500},
		Chat:    engine.Sampling{Temperature: 0.7, MaxTokens: 1000},
	})
}

func newTools(src *fakeSource, gen *fakeGenerator) *tools {
	return &tools{pipeline: transcript.NewPipeline(src, gen), mode: render.Sanitized}
}

func TestRegisterTools(t *testing.T) {
	server := mcp.NewServer(&mcp.Implementation{Name: "test", Version: "dev"}, nil)
	assert.Equal(t, 5, RegisterTools(server, transcript.NewPipeline(&fakeSource{}, &fakeGenerator{}), render.Sanitized))
}

func TestFetchTool(t *testing.T) {
	tl := newTools(&fakeSource{}, &fakeGenerator{})
	_, out, err := tl.fetch(context.Background(), nil, FetchInput{URL: "https://youtu.be/pcC4Dr6Wj2Q"})
	require.NoError(t, err)
	assert.Equal(t, "pcC4Dr6Wj2Q", out.VideoID)
	assert.Equal(t, "Hello world", out.Text)
	assert.Len(t, out.Segments, 2)
}

func TestFetchToolErrors(t *testing.T) {
	tests := []struct {
		name string
		url  string
		err  error
		want string
	}{
		{"empty", "", nil, "url is required"},
		{"invalid", "https://example.com/x", nil, "invalid YouTube URL"},
		{"no captions", "pcC4Dr6Wj2Q", engine.ErrNotFound, "no transcript available for this video"},
		{"upstream", "pcC4Dr6Wj2Q", errors.New("dial tcp: refused"), "Failed to fetch transcript"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := newTools(&fakeSource{err: tt.err}, &fakeGenerator{})
			_, _, err := tl.fetch(context.Background(), nil, FetchInput{URL: tt.url})
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestAnalyzeToolByURL(t *testing.T) {
	gen := &fakeGenerator{out: "## Summary\nGreeting."}
	tl := newTools(&fakeSource{}, gen)
	_, out, err := tl.analyze(context.Background(), nil, AnalyzeInput{URL: "pcC4Dr6Wj2Q"})
	require.NoError(t, err)
	assert.Equal(t, "pcC4Dr6Wj2Q", out.VideoID)
	assert.Equal(t, "## Summary\nGreeting.", out.Analysis)
	require.Len(t, gen.prompts, 1)
	assert.True(t, strings.HasSuffix(gen.prompts[0], "Transcript:\nHello world"))
}

func TestAnalyzeToolByText(t *testing.T) {
	src := &fakeSource{}
	gen := &fakeGenerator{out: "## Summary"}
	tl := newTools(src, gen)
	_, out, err := tl.analyze(context.Background(), nil, AnalyzeInput{Transcript: "some words"})
	require.NoError(t, err)
	assert.Equal(t, "## Summary", out.Analysis)
	assert.Empty(t, out.VideoID)
	assert.Zero(t, src.calls)
}

func TestAnalyzeToolRequiresInput(t *testing.T) {
	gen := &fakeGenerator{}
	_, _, err := newTools(&fakeSource{}, gen).analyze(context.Background(), nil, AnalyzeInput{})
	require.Error(t, err)
	assert.Empty(t, gen.prompts)
}

func TestChatTool(t *testing.T) {
	gen := &fakeGenerator{out: "It says hello."}
	tl := newTools(&fakeSource{}, gen)

	_, out, err := tl.chat(context.Background(), nil, ChatInput{Question: "What?", Transcript: "Hello world", VideoID: "pcC4Dr6Wj2Q"})
	require.NoError(t, err)
	assert.Equal(t, "It says hello.", out.Answer)
	assert.Contains(t, gen.prompts[0], "What?")

	_, out, err = tl.chat(context.Background(), nil, ChatInput{Question: "What?", URL: "pcC4Dr6Wj2Q"})
	require.NoError(t, err)
	assert.Equal(t, "It says hello.", out.Answer)
	assert.Contains(t, gen.prompts[1], "Hello world")
}

func TestChatToolValidation(t *testing.T) {
	tl := newTools(&fakeSource{}, &fakeGenerator{})
	_, _, err := tl.chat(context.Background(), nil, ChatInput{Transcript: "x"})
	assert.EqualError(t, err, "question is required")
	_, _, err = tl.chat(context.Background(), nil, ChatInput{Question: "q"})
	assert.EqualError(t, err, "url or transcript is required")
}

func TestChatToolUpstreamMessage(t *testing.T) {
	gen := &fakeGenerator{err: errors.New(`429: {"error":{"message":"Rate limit exceeded"}}`)}
	_, _, err := newTools(&fakeSource{}, gen).chat(context.Background(), nil, ChatInput{Question: "q", Transcript: "t"})
	require.Error(t, err)
	assert.Equal(t, "Rate limit exceeded", err.Error())
}

func TestRenderTool(t *testing.T) {
	tl := newTools(&fakeSource{}, &fakeGenerator{})

	_, out, err := tl.render(context.Background(), nil, RenderInput{Analysis: "## Key Points\n- **one**"})
	require.NoError(t, err)
	assert.Contains(t, out.Output, "<h2>Key Points</h2>")
	assert.Contains(t, out.Output, "<strong>one</strong>")

	_, out, err = tl.render(context.Background(), nil, RenderInput{Analysis: "## Key Points", Format: "markdown"})
	require.NoError(t, err)
	assert.Contains(t, out.Output, "## Key Points")

	_, _, err = tl.render(context.Background(), nil, RenderInput{Analysis: "x", Format: "pdf"})
	assert.Error(t, err)
}
