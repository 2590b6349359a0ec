package transcript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/sources"
)

const defaultFetchTimeout = 20 * time.Second

// CaptionSource retrieves raw caption lines for a video ID.
type CaptionSource interface {
	FetchTranscript(ctx context.Context, videoID string, langs []string) ([]sources.Caption, error)
}

// Fetcher turns a video reference into a Transcript.
type Fetcher struct {
	src CaptionSource
}

// NewFetcher returns a Fetcher over src; nil selects YouTube.
func NewFetcher(src CaptionSource) *Fetcher {
	if src == nil {
		src = sources.YouTube{}
	}
	return &Fetcher{src: src}
}

// Fetch resolves ref and returns its transcript. Errors wrap exactly one of
// engine.ErrInvalidReference, engine.ErrNotFound or engine.ErrUpstream.
// An unparseable reference fails before any network call.
func (f *Fetcher) Fetch(ctx context.Context, ref string) (Transcript, error) {
	videoID, err := sources.ParseVideoID(ref)
	if err != nil {
		return Transcript{}, err
	}
	engine.IncrTranscriptRequests()

	langs := engine.Cfg.TranscriptLangs
	cacheKey := engine.CacheKey("transcript", videoID, strings.Join(langs, ","))
	if segs, ok := engine.CacheLoadJSON[[]Segment](ctx, cacheKey); ok && len(segs) > 0 {
		return Transcript{VideoID: videoID, Segments: segs}, nil
	}

	timeout := engine.Cfg.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	caps, err := f.src.FetchTranscript(fetchCtx, videoID, langs)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			engine.IncrTranscriptNotFound()
			slog.Info("transcript: no captions", slog.String("id", videoID), slog.Any("error", err))
			return Transcript{}, fmt.Errorf("%w for video %s", engine.ErrNotFound, videoID)
		}
		engine.IncrTranscriptErrors()
		slog.Warn("transcript: fetch failed", slog.String("id", videoID), slog.Any("error", err))
		return Transcript{}, engine.Upstream("Failed to fetch transcript", err)
	}

	segs := toSegments(caps)
	if len(segs) == 0 {
		engine.IncrTranscriptNotFound()
		return Transcript{}, fmt.Errorf("%w for video %s", engine.ErrNotFound, videoID)
	}

	engine.CacheStoreJSON(ctx, cacheKey, segs)
	return Transcript{VideoID: videoID, Segments: segs}, nil
}

// toSegments converts captions to segments ordered by start time.
// Blank lines are dropped; negative timings clamp to zero.
func toSegments(caps []sources.Caption) []Segment {
	segs := make([]Segment, 0, len(caps))
	for _, c := range caps {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		segs = append(segs, Segment{
			Text:     text,
			Start:    max(c.Start.InexactFloat64(), 0),
			Duration: max(c.Duration.InexactFloat64(), 0),
		})
	}
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].Start < segs[j].Start })
	return segs
}
