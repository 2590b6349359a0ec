package sources

// YouTube implementation is split across files by responsibility:
//   youtube_innertube.go   Innertube API types, endpoints, and low-level HTTP primitives
//   youtube_transcript.go  caption retrieval (watch page, engagement panel, ANDROID player)
//   youtube_videoid.go     video reference parsing
//   youtube_title.go       title lookup (Data API v3, watch page fallback)
//   youtube_search.go      video search (Data API v3, results page fallback)

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Caption is one timed caption line with timing normalized to seconds.
type Caption struct {
	Text     string
	Start    decimal.Decimal
	Duration decimal.Decimal
}

// errNoCaptions marks a definitive "this video has no usable captions" answer
// from YouTube, as opposed to a blocked or failed request.
var errNoCaptions = errors.New("no captions")

var thousand = decimal.NewFromInt(1000)

// secondsFromMs converts a millisecond string ("1500") to seconds (1.5).
func secondsFromMs(ms string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(ms)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad millisecond value %q: %w", ms, err)
	}
	return d.Div(thousand), nil
}

// seconds parses a seconds string ("2.5"). Empty means zero.
func seconds(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad seconds value %q: %w", s, err)
	}
	return d, nil
}

// spanFromMs derives start and duration in seconds from start/end milliseconds.
// A missing or inverted end yields a zero duration.
func spanFromMs(startMs, endMs string) (start, dur decimal.Decimal, err error) {
	start, err = secondsFromMs(startMs)
	if err != nil {
		return
	}
	if endMs == "" {
		return start, decimal.Zero, nil
	}
	end, err := secondsFromMs(endMs)
	if err != nil {
		return
	}
	dur = end.Sub(start)
	if dur.IsNegative() {
		dur = decimal.Zero
	}
	return start, dur, nil
}

// YouTube is the production caption source.
type YouTube struct{}

// FetchTranscript implements the caption source contract over FetchTranscript.
func (YouTube) FetchTranscript(ctx context.Context, videoID string, langs []string) ([]Caption, error) {
	return FetchTranscript(ctx, videoID, langs)
}
