package transcriptserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/sources"
	"github.com/anatolykoptev/go_transcript/internal/render"
	"github.com/anatolykoptev/go_transcript/internal/transcript"
)

type FetchInput struct {
	URL string `json:"url" jsonschema:"YouTube URL or 11-character video ID"`
}

type FetchOutput struct {
	VideoID  string               `json:"video_id"`
	Segments []transcript.Segment `json:"segments"`
	Text     string               `json:"text"`
}

type AnalyzeInput struct {
	URL        string `json:"url,omitempty" jsonschema:"YouTube URL or video ID (fetched first)"`
	Transcript string `json:"transcript,omitempty" jsonschema:"Transcript text, used when url is empty"`
}

type AnalyzeOutput struct {
	VideoID  string `json:"video_id,omitempty"`
	Analysis string `json:"analysis"`
}

type ChatInput struct {
	Question   string `json:"question" jsonschema:"Question about the video"`
	URL        string `json:"url,omitempty" jsonschema:"YouTube URL or video ID (fetched first)"`
	Transcript string `json:"transcript,omitempty" jsonschema:"Transcript text, used when url is empty"`
	VideoID    string `json:"video_id,omitempty" jsonschema:"Video ID for context when passing transcript text"`
}

type ChatOutput struct {
	Answer string `json:"answer"`
}

type RenderInput struct {
	Analysis string `json:"analysis" jsonschema:"Analysis Markdown"`
	Format   string `json:"format,omitempty" jsonschema:"html (default) or markdown (HTML converted back to Markdown)"`
}

type RenderOutput struct {
	Output string `json:"output"`
}

type SearchInput struct {
	Query    string `json:"query" jsonschema:"Search query"`
	Language string `json:"language,omitempty" jsonschema:"Relevance language code"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Max videos (default: 5, max: 10)"`
}

type SearchOutput struct {
	Query  string          `json:"query"`
	Videos []sources.Video `json:"videos"`
}

func (t *tools) fetch(ctx context.Context, _ *mcp.CallToolRequest, input FetchInput) (*mcp.CallToolResult, FetchOutput, error) {
	if strings.TrimSpace(input.URL) == "" {
		return nil, FetchOutput{}, fmt.Errorf("url is required")
	}
	tr, err := t.pipeline.FetchTranscript(ctx, input.URL)
	if err != nil {
		return nil, FetchOutput{}, toolError(err)
	}
	return nil, FetchOutput{VideoID: tr.VideoID, Segments: tr.Segments, Text: tr.Text()}, nil
}

func (t *tools) analyze(ctx context.Context, _ *mcp.CallToolRequest, input AnalyzeInput) (*mcp.CallToolResult, AnalyzeOutput, error) {
	var (
		out AnalyzeOutput
		err error
	)
	switch {
	case strings.TrimSpace(input.URL) != "":
		var tr transcript.Transcript
		if tr, err = t.pipeline.FetchTranscript(ctx, input.URL); err != nil {
			return nil, AnalyzeOutput{}, toolError(err)
		}
		out.VideoID = tr.VideoID
		out.Analysis, err = t.pipeline.Analyze(ctx, tr.Segments)
	case strings.TrimSpace(input.Transcript) != "":
		out.Analysis, err = t.pipeline.Summarizer.Summarize(ctx, input.Transcript)
	default:
		return nil, AnalyzeOutput{}, fmt.Errorf("url or transcript is required")
	}
	if err != nil {
		return nil, AnalyzeOutput{}, toolError(err)
	}
	return nil, out, nil
}

func (t *tools) chat(ctx context.Context, _ *mcp.CallToolRequest, input ChatInput) (*mcp.CallToolResult, ChatOutput, error) {
	if strings.TrimSpace(input.Question) == "" {
		return nil, ChatOutput{}, fmt.Errorf("question is required")
	}
	text, videoID := input.Transcript, input.VideoID
	if strings.TrimSpace(input.URL) != "" {
		tr, err := t.pipeline.FetchTranscript(ctx, input.URL)
		if err != nil {
			return nil, ChatOutput{}, toolError(err)
		}
		text, videoID = tr.Text(), tr.VideoID
	}
	if strings.TrimSpace(text) == "" {
		return nil, ChatOutput{}, fmt.Errorf("url or transcript is required")
	}
	answer, err := t.pipeline.Ask(ctx, input.Question, text, videoID)
	if err != nil {
		return nil, ChatOutput{}, toolError(err)
	}
	return nil, ChatOutput{Answer: answer}, nil
}

func (t *tools) render(_ context.Context, _ *mcp.CallToolRequest, input RenderInput) (*mcp.CallToolResult, RenderOutput, error) {
	if strings.TrimSpace(input.Analysis) == "" {
		return nil, RenderOutput{}, fmt.Errorf("analysis is required")
	}
	html := render.HTML(input.Analysis, t.mode)
	switch strings.ToLower(input.Format) {
	case "", "html":
		return nil, RenderOutput{Output: html}, nil
	case "markdown":
		md, err := render.Markdown(html)
		if err != nil {
			return nil, RenderOutput{}, err
		}
		return nil, RenderOutput{Output: md}, nil
	}
	return nil, RenderOutput{}, fmt.Errorf("unknown format %q", input.Format)
}

func (t *tools) search(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchOutput{}, fmt.Errorf("query is required")
	}
	cacheKey := engine.CacheKey("video_search", input.Query, input.Language, fmt.Sprint(input.Limit))
	if out, ok := engine.CacheLoadJSON[SearchOutput](ctx, cacheKey); ok {
		return nil, out, nil
	}
	videos, err := sources.SearchVideos(ctx, input.Query, input.Language, input.Limit)
	if err != nil {
		return nil, SearchOutput{}, toolError(err)
	}
	out := SearchOutput{Query: input.Query, Videos: videos}
	engine.CacheStoreJSON(ctx, cacheKey, out)
	return nil, out, nil
}

// toolError turns a pipeline failure into the message an MCP client sees.
func toolError(err error) error {
	switch {
	case errors.Is(err, engine.ErrInvalidReference):
		return errors.New("invalid YouTube URL")
	case errors.Is(err, engine.ErrNotFound):
		return errors.New("no transcript available for this video")
	case errors.Is(err, engine.ErrEmptyInput), errors.Is(err, engine.ErrMissingInput):
		return errors.New("input is empty")
	}
	return errors.New(engine.UpstreamMessage(err, "upstream request failed"))
}
