package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/llm"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// Sampling carries the per-call generation parameters.
type Sampling struct {
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// Generator produces text for a single prompt. Implementations make exactly
// one upstream call per invocation.
type Generator interface {
	Generate(ctx context.Context, prompt string, s Sampling) (string, error)
}

// KitGenerator talks to an OpenAI-compatible chat/completions endpoint
// (OpenRouter by default) through go-kit/llm.
type KitGenerator struct {
	client *llm.Client
}

// NewKitGenerator wraps an llm client built in main.
func NewKitGenerator(c *llm.Client) *KitGenerator {
	return &KitGenerator{client: c}
}

func (g *KitGenerator) Generate(ctx context.Context, prompt string, s Sampling) (string, error) {
	return g.client.Complete(ctx, "", prompt,
		llm.WithChatTemperature(s.Temperature),
		llm.WithChatMaxTokens(s.MaxTokens),
	)
}

// GenAIGenerator calls the Gemini API directly.
type GenAIGenerator struct {
	client *genai.Client
	model  string
}

// NewGenAIGenerator creates a Gemini-backed generator.
func NewGenAIGenerator(ctx context.Context, apiKey, model string) (*GenAIGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &GenAIGenerator{client: client, model: model}, nil
}

func (g *GenAIGenerator) Generate(ctx context.Context, prompt string, s Sampling) (string, error) {
	res, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(s.Temperature)),
		MaxOutputTokens: int32(s.MaxTokens),
	})
	if err != nil {
		return "", err
	}
	return res.Text(), nil
}

// llmLimiter throttles outbound generation calls; nil = unlimited.
var llmLimiter *rate.Limiter

// SetLLMRate installs a limiter allowing perMinute calls per minute.
// perMinute <= 0 removes the limit.
func SetLLMRate(perMinute int) {
	if perMinute <= 0 {
		llmLimiter = nil
		return
	}
	burst := perMinute / 10
	if burst < 1 {
		burst = 1
	}
	llmLimiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
}

// CallLLM runs one generation with the configured timeout and normalizes
// every failure into an *UpstreamError. op names the caller in logs.
func CallLLM(ctx context.Context, gen Generator, op, prompt string, s Sampling) (string, error) {
	if gen == nil {
		return "", &UpstreamError{Message: "language model is not configured"}
	}
	timeout := cfg.LLMTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if llmLimiter != nil {
		if err := llmLimiter.Wait(ctx); err != nil {
			metrics.LLMErrors.Add(1)
			return "", Upstream("language model is busy, try again later", err)
		}
	}

	metrics.LLMCalls.Add(1)
	var out string
	err := TrackOperation(ctx, op, func(ctx context.Context) error {
		var err error
		out, err = gen.Generate(ctx, prompt, s)
		return err
	})
	if err != nil {
		metrics.LLMErrors.Add(1)
		slog.Warn("llm call failed", slog.String("op", op), slog.Any("error", err))
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", Upstream("", ctx.Err())
		}
		return "", Upstream(providerMessage(err, "language model request failed"), err)
	}

	out = stripThinking(out)
	if out == "" {
		metrics.LLMErrors.Add(1)
		return "", &UpstreamError{Message: "language model returned an empty response"}
	}
	return out, nil
}

// providerErrRe finds the `error.message` field of an OpenAI-style error body
// echoed inside a client error string.
var providerErrRe = regexp.MustCompile(`"message"\s*:\s*"((?:[^"\\]|\\.)*)"`)

// providerMessage extracts the provider's own message from err when present.
func providerMessage(err error, fallback string) string {
	if m := providerErrRe.FindStringSubmatch(err.Error()); m != nil {
		if msg := strings.TrimSpace(strings.ReplaceAll(m[1], `\"`, `"`)); msg != "" {
			return msg
		}
	}
	return fallback
}

var thinkRe = regexp.MustCompile(`(?s)<think>.*?</think>`)

// stripThinking drops reasoning blocks some models inline before the answer.
func stripThinking(s string) string {
	return strings.TrimSpace(thinkRe.ReplaceAllString(s, ""))
}
