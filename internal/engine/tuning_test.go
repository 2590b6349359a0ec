package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var baseTuning = Tuning{
	Analyze: Sampling{Temperature: 0.7, MaxTokens: 2500},
	Chat:    Sampling{Temperature: 0.7, MaxTokens: 1000},
}

func writeTuning(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadTuningOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	writeTuning(t, path, "analyze:\n  temperature: 0.2\n")

	got, err := LoadTuning(path, baseTuning)
	if err != nil {
		t.Fatalf("LoadTuning: %v", err)
	}
	if got.Analyze.Temperature != 0.2 {
		t.Errorf("analyze temperature = %v, want 0.2", got.Analyze.Temperature)
	}
	if got.Analyze.MaxTokens != 2500 {
		t.Errorf("analyze max tokens = %d, want base 2500", got.Analyze.MaxTokens)
	}
	if got.Chat != baseTuning.Chat {
		t.Errorf("chat = %+v, want base", got.Chat)
	}
}

func TestLoadTuningInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "analyze: [\n"},
		{"temperature out of range", "chat:\n  temperature: 3\n"},
		{"zero tokens", "analyze:\n  max_tokens: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tuning.yaml")
			writeTuning(t, path, tt.body)
			got, err := LoadTuning(path, baseTuning)
			if err == nil {
				t.Fatal("expected error")
			}
			if got != baseTuning {
				t.Errorf("expected base returned on error, got %+v", got)
			}
		})
	}
}

func TestLoadTuningMissingFile(t *testing.T) {
	if _, err := LoadTuning(filepath.Join(t.TempDir(), "nope.yaml"), baseTuning); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestWatchTuningReloads(t *testing.T) {
	defer tuning.Store(nil)

	path := filepath.Join(t.TempDir(), "tuning.yaml")
	writeTuning(t, path, "chat:\n  max_tokens: 500\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := WatchTuning(ctx, path, baseTuning); err != nil {
		t.Fatalf("WatchTuning: %v", err)
	}
	if got := ChatSampling().MaxTokens; got != 500 {
		t.Fatalf("initial chat max tokens = %d, want 500", got)
	}

	writeTuning(t, path, "chat:\n  max_tokens: 750\n")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ChatSampling().MaxTokens == 750 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("chat max tokens not reloaded, still %d", ChatSampling().MaxTokens)
}

func TestWatchTuningRemovedKeyRevertsToBase(t *testing.T) {
	defer tuning.Store(nil)

	path := filepath.Join(t.TempDir(), "tuning.yaml")
	writeTuning(t, path, "analyze:\n  temperature: 0.2\nchat:\n  max_tokens: 500\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := WatchTuning(ctx, path, baseTuning); err != nil {
		t.Fatalf("WatchTuning: %v", err)
	}
	if got := AnalyzeSampling().Temperature; got != 0.2 {
		t.Fatalf("initial analyze temperature = %v, want 0.2", got)
	}

	writeTuning(t, path, "chat:\n  max_tokens: 750\n")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && ChatSampling().MaxTokens != 750 {
		time.Sleep(10 * time.Millisecond)
	}
	if got := ChatSampling().MaxTokens; got != 750 {
		t.Fatalf("chat max tokens not reloaded, still %d", got)
	}
	if got := AnalyzeSampling().Temperature; got != baseTuning.Analyze.Temperature {
		t.Errorf("analyze temperature = %v, want base %v", got, baseTuning.Analyze.Temperature)
	}
}
