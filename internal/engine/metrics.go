package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	TranscriptRequests atomic.Int64
	TranscriptNotFound atomic.Int64
	TranscriptErrors   atomic.Int64
	AnalyzeRequests    atomic.Int64
	ChatRequests       atomic.Int64
	LLMCalls           atomic.Int64
	LLMErrors          atomic.Int64
	TitleLookups       atomic.Int64
	StoreOps           atomic.Int64
	StoreErrors        atomic.Int64
}

var metricKeys = []string{
	"transcript_requests", "transcript_not_found", "transcript_errors",
	"analyze_requests", "chat_requests",
	"llm_calls", "llm_errors",
	"title_lookups",
	"store_ops", "store_errors",
	"cache_hits", "cache_misses",
}

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"transcript_requests":  metrics.TranscriptRequests.Load(),
		"transcript_not_found": metrics.TranscriptNotFound.Load(),
		"transcript_errors":    metrics.TranscriptErrors.Load(),
		"analyze_requests":     metrics.AnalyzeRequests.Load(),
		"chat_requests":        metrics.ChatRequests.Load(),
		"llm_calls":            metrics.LLMCalls.Load(),
		"llm_errors":           metrics.LLMErrors.Load(),
		"title_lookups":        metrics.TitleLookups.Load(),
		"store_ops":            metrics.StoreOps.Load(),
		"store_errors":         metrics.StoreErrors.Load(),
		"cache_hits":           hits,
		"cache_misses":         misses,
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	for _, k := range metricKeys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for sub-packages.
func IncrTranscriptRequests() { metrics.TranscriptRequests.Add(1) }
func IncrTranscriptNotFound() { metrics.TranscriptNotFound.Add(1) }
func IncrTranscriptErrors()   { metrics.TranscriptErrors.Add(1) }
func IncrAnalyzeRequests()    { metrics.AnalyzeRequests.Add(1) }
func IncrChatRequests()       { metrics.ChatRequests.Add(1) }
func IncrTitleLookups()       { metrics.TitleLookups.Add(1) }

// IncrStoreOp counts a persistence call and, when err is non-nil, a failure.
func IncrStoreOp(err error) {
	metrics.StoreOps.Add(1)
	if err != nil {
		metrics.StoreErrors.Add(1)
	}
}

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > 5*time.Second {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
