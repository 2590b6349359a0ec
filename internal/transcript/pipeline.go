package transcript

import (
	"context"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

// Pipeline bundles the three transcript operations behind one value so the
// HTTP API, the MCP tools and the in-process session backend share them.
type Pipeline struct {
	Fetcher    *Fetcher
	Summarizer *Summarizer
	Answerer   *Answerer
}

// NewPipeline wires a Pipeline over src (nil = YouTube) and gen.
func NewPipeline(src CaptionSource, gen engine.Generator) *Pipeline {
	return &Pipeline{
		Fetcher:    NewFetcher(src),
		Summarizer: NewSummarizer(gen),
		Answerer:   NewAnswerer(gen),
	}
}

func (p *Pipeline) FetchTranscript(ctx context.Context, ref string) (Transcript, error) {
	return p.Fetcher.Fetch(ctx, ref)
}

func (p *Pipeline) Analyze(ctx context.Context, segs []Segment) (string, error) {
	return p.Summarizer.SummarizeSegments(ctx, segs)
}

func (p *Pipeline) Ask(ctx context.Context, question, transcriptText, videoID string) (string, error) {
	return p.Answerer.Answer(ctx, question, transcriptText, videoID)
}
