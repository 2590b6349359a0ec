// Package transcriptserver exposes the transcript operations as MCP tools.
package transcriptserver

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_transcript/internal/render"
	"github.com/anatolykoptev/go_transcript/internal/transcript"
)

// Tool names.
const (
	ToolFetch   = "transcript_fetch"
	ToolAnalyze = "transcript_analyze"
	ToolChat    = "transcript_chat"
	ToolRender  = "analysis_render"
	ToolSearch  = "video_search"
)

// tools carries the dependencies shared by every handler.
type tools struct {
	pipeline *transcript.Pipeline
	mode     render.Mode
}

// RegisterTools registers transcript_fetch, transcript_analyze,
// transcript_chat, analysis_render and video_search on server.
func RegisterTools(server *mcp.Server, p *transcript.Pipeline, mode render.Mode) int {
	t := &tools{pipeline: p, mode: mode}

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolFetch,
		Description: "Fetch the caption transcript of a YouTube video. Accepts a watch URL, youtu.be link, shorts/embed URL or a bare 11-character video ID. Returns timed segments and the joined text.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, t.fetch)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolAnalyze,
		Description: "Produce a structured Markdown analysis of a YouTube video: summary, key points, main topics, notable quotes, takeaways. Pass a video URL, or transcript text you already have.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, t.analyze)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolChat,
		Description: "Answer a question about a YouTube video using only its transcript. Pass a video URL or the transcript text.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, t.chat)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolRender,
		Description: "Convert analysis Markdown (headings, bold, italic, bullet and numbered lists) to HTML.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, t.render)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolSearch,
		Description: "Search YouTube for videos to analyze. Returns video IDs, titles, channels and URLs.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, t.search)

	return 5
}
