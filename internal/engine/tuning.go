package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Tuning holds the sampling parameters of both generation calls. It can be
// overridden at runtime from a YAML file:
//
//	analyze:
//	  temperature: 0.7
//	  max_tokens: 2500
//	chat:
//	  max_tokens: 1000
type Tuning struct {
	Analyze Sampling `yaml:"analyze"`
	Chat    Sampling `yaml:"chat"`
}

var tuning atomic.Pointer[Tuning]

// CurrentTuning returns the active sampling parameters, falling back to the
// values passed to Init.
func CurrentTuning() Tuning {
	if t := tuning.Load(); t != nil {
		return *t
	}
	return Tuning{Analyze: cfg.Analyze, Chat: cfg.Chat}
}

// AnalyzeSampling returns the active summarizer parameters.
func AnalyzeSampling() Sampling { return CurrentTuning().Analyze }

// ChatSampling returns the active Q&A parameters.
func ChatSampling() Sampling { return CurrentTuning().Chat }

// SetTuning installs t as the active parameters.
func SetTuning(t Tuning) {
	tuning.Store(&t)
}

// LoadTuning reads path and overlays it on base. Fields missing from the file
// keep their base value.
func LoadTuning(path string, base Tuning) (Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read tuning file: %w", err)
	}
	out := base
	if err := yaml.Unmarshal(data, &out); err != nil {
		return base, fmt.Errorf("parse tuning file: %w", err)
	}
	if err := out.Validate(); err != nil {
		return base, err
	}
	return out, nil
}

// Validate rejects parameters no provider accepts.
func (t Tuning) Validate() error {
	for name, s := range map[string]Sampling{"analyze": t.Analyze, "chat": t.Chat} {
		if s.Temperature < 0 || s.Temperature > 2 {
			return fmt.Errorf("%s.temperature must be within [0, 2], got %v", name, s.Temperature)
		}
		if s.MaxTokens <= 0 {
			return fmt.Errorf("%s.max_tokens must be positive, got %d", name, s.MaxTokens)
		}
	}
	return nil
}

// WatchTuning loads path once and then reloads it on every write until ctx
// is done. Every load overlays the file on base, so a key removed from the
// file reverts to its base value. A bad file keeps the previous parameters.
func WatchTuning(ctx context.Context, path string, base Tuning) error {
	t, err := LoadTuning(path, base)
	if err != nil {
		return err
	}
	SetTuning(t)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tuning watcher: %w", err)
	}
	// Watch the directory: editors replace files via rename.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return fmt.Errorf("tuning watcher: %w", err)
	}

	go func() {
		defer w.Close()
		target := filepath.Clean(path)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				next, err := LoadTuning(path, base)
				if err != nil {
					slog.Warn("tuning: reload failed, keeping previous", slog.Any("error", err))
					continue
				}
				SetTuning(next)
				slog.Info("tuning: reloaded",
					slog.Float64("analyze_temperature", next.Analyze.Temperature),
					slog.Int("analyze_max_tokens", next.Analyze.MaxTokens),
					slog.Float64("chat_temperature", next.Chat.Temperature),
					slog.Int("chat_max_tokens", next.Chat.MaxTokens),
				)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("tuning: watcher error", slog.Any("error", err))
			}
		}
	}()
	return nil
}
