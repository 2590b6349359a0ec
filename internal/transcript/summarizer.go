package transcript

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"lukechampine.com/blake3"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

// Summarizer produces the structured analysis of a transcript.
type Summarizer struct {
	gen      engine.Generator
	sampling func() engine.Sampling
}

// NewSummarizer returns a Summarizer using the active analyze tuning.
func NewSummarizer(gen engine.Generator) *Summarizer {
	return &Summarizer{gen: gen, sampling: engine.AnalyzeSampling}
}

// Summarize analyzes space-joined transcript text with one generation call.
// Empty text fails with engine.ErrEmptyInput before any call.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: transcript text is empty", engine.ErrEmptyInput)
	}
	engine.IncrAnalyzeRequests()

	if limit := engine.Cfg.MaxTranscriptChars; limit > 0 {
		text = engine.TruncateRunes(text, limit, "")
	}

	sampling := s.sampling()
	cacheKey := engine.CacheKey("analysis", Fingerprint(text), strconv.FormatFloat(sampling.Temperature, 'f', -1, 64), strconv.Itoa(sampling.MaxTokens))
	if cached, ok := engine.CacheLoadJSON[string](ctx, cacheKey); ok && cached != "" {
		return cached, nil
	}

	out, err := engine.CallLLM(ctx, s.gen, "analyze", fmt.Sprintf(engine.AnalyzePrompt, text), sampling)
	if err != nil {
		return "", err
	}
	engine.CacheStoreJSON(ctx, cacheKey, out)
	return out, nil
}

// SummarizeSegments joins segs and summarizes the result.
func (s *Summarizer) SummarizeSegments(ctx context.Context, segs []Segment) (string, error) {
	return s.Summarize(ctx, JoinText(segs))
}

// Fingerprint is a stable content hash of transcript text.
func Fingerprint(text string) string {
	sum := blake3.Sum256([]byte(text))
	return hex.EncodeToString(sum[:16])
}
