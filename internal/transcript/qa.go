package transcript

import (
	"context"
	"fmt"
	"strings"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

// Answerer answers questions grounded in a transcript. It keeps no history:
// callers resupply the transcript on every turn.
type Answerer struct {
	gen      engine.Generator
	sampling func() engine.Sampling
}

// NewAnswerer returns an Answerer using the active chat tuning.
func NewAnswerer(gen engine.Generator) *Answerer {
	return &Answerer{gen: gen, sampling: engine.ChatSampling}
}

// Answer fails with engine.ErrMissingInput when question or transcript is blank.
func (a *Answerer) Answer(ctx context.Context, question, transcriptText, videoID string) (string, error) {
	question = strings.TrimSpace(question)
	transcriptText = strings.TrimSpace(transcriptText)
	if question == "" || transcriptText == "" {
		return "", fmt.Errorf("%w: question and transcript are required", engine.ErrMissingInput)
	}
	engine.IncrChatRequests()

	if limit := engine.Cfg.MaxTranscriptChars; limit > 0 {
		transcriptText = engine.TruncateRunes(transcriptText, limit, "")
	}

	prompt := fmt.Sprintf(engine.ChatPrompt, videoID, transcriptText, question)
	return engine.CallLLM(ctx, a.gen, "chat", prompt, a.sampling())
}
