// Package store persists saved analyses behind the Gateway port. Adapters:
// SQLite (default), Postgres, MongoDB and an in-memory map.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

// previewChars is the list-view preview length.
const previewChars = 150

// ErrNotFound reports a missing analysis, or one owned by someone else.
var ErrNotFound = errors.New("analysis not found")

// SavedAnalysis is a persisted analysis. Transcript holds the serialized
// segment list.
type SavedAnalysis struct {
	ID         string    `json:"id" bson:"_id"`
	OwnerID    string    `json:"ownerId" bson:"owner_id"`
	VideoID    string    `json:"videoId" bson:"video_id"`
	Title      string    `json:"title" bson:"title"`
	Analysis   string    `json:"analysis" bson:"analysis"`
	Transcript string    `json:"transcript" bson:"transcript"`
	CreatedAt  time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" bson:"updated_at"`
}

// Preview returns the analysis cut at a word boundary for list views.
func (a SavedAnalysis) Preview() string {
	return engine.TruncateAtWord(a.Analysis, previewChars)
}

// Gateway is the persistence port. Every method is scoped to ownerID;
// an ID owned by another user behaves as missing. Failures other than
// ErrNotFound and validation wrap engine.ErrPersistence.
type Gateway interface {
	// Create assigns ID and timestamps (CreatedAt is kept when set).
	Create(ctx context.Context, a SavedAnalysis) (SavedAnalysis, error)
	// List returns the owner's analyses, newest first.
	List(ctx context.Context, ownerID string) ([]SavedAnalysis, error)
	Get(ctx context.Context, ownerID, id string) (SavedAnalysis, error)
	// UpdateAnalysis replaces the analysis text and bumps UpdatedAt.
	UpdateAnalysis(ctx context.Context, ownerID, id, analysis string) (SavedAnalysis, error)
	Delete(ctx context.Context, ownerID, id string) error
	Close() error
}

// prepare validates a new record and fills generated fields.
func prepare(a SavedAnalysis, now time.Time) (SavedAnalysis, error) {
	switch {
	case strings.TrimSpace(a.OwnerID) == "":
		return a, fmt.Errorf("%w: owner is required", engine.ErrMissingInput)
	case strings.TrimSpace(a.VideoID) == "":
		return a, fmt.Errorf("%w: video id is required", engine.ErrMissingInput)
	case strings.TrimSpace(a.Analysis) == "":
		return a, fmt.Errorf("%w: analysis is required", engine.ErrMissingInput)
	}
	a.ID = uuid.NewString()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.CreatedAt = a.CreatedAt.UTC().Truncate(time.Millisecond)
	a.UpdatedAt = a.CreatedAt
	return a, nil
}

func checkEdit(analysis string) error {
	if strings.TrimSpace(analysis) == "" {
		return fmt.Errorf("%w: analysis is required", engine.ErrMissingInput)
	}
	return nil
}

// persistErr tags a driver failure as a persistence error.
func persistErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", engine.ErrPersistence, op, err)
}

// now is the store clock, truncated to the precision every backend keeps.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
