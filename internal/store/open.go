package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

// Config selects and configures the backend.
type Config struct {
	Driver      string // sqlite | postgres | mongo | memory
	SQLitePath  string
	DatabaseURL string
	MongoURI    string
	MongoDB     string
}

// Open connects the configured backend and wraps it with metrics and logging.
func Open(ctx context.Context, c Config) (Gateway, error) {
	var (
		g   Gateway
		err error
	)
	switch c.Driver {
	case "", "sqlite":
		path := c.SQLitePath
		if path == "" {
			path = "data/analyses.db"
		}
		g, err = OpenSQLite(path)
	case "postgres":
		g, err = ConnectPostgres(ctx, c.DatabaseURL)
	case "mongo":
		db := c.MongoDB
		if db == "" {
			db = "go_transcript"
		}
		g, err = ConnectMongo(ctx, c.MongoURI, db)
	case "memory":
		g = NewMemory()
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", c.Driver)
	}
	if err != nil {
		return nil, err
	}
	slog.Info("store: ready", slog.String("driver", c.Driver))
	return Instrument(g), nil
}

// Instrument counts every call and logs persistence failures.
func Instrument(g Gateway) Gateway {
	return &instrumented{next: g}
}

type instrumented struct {
	next Gateway
}

func (i *instrumented) observe(op string, err error) {
	// Not-found and validation are caller errors, not store failures.
	if err != nil && !errors.Is(err, engine.ErrPersistence) {
		engine.IncrStoreOp(nil)
		return
	}
	engine.IncrStoreOp(err)
	if err != nil {
		slog.Error("store: operation failed", slog.String("op", op), slog.Any("error", err))
	}
}

func (i *instrumented) Create(ctx context.Context, a SavedAnalysis) (SavedAnalysis, error) {
	out, err := i.next.Create(ctx, a)
	i.observe("create", err)
	return out, err
}

func (i *instrumented) List(ctx context.Context, ownerID string) ([]SavedAnalysis, error) {
	out, err := i.next.List(ctx, ownerID)
	i.observe("list", err)
	return out, err
}

func (i *instrumented) Get(ctx context.Context, ownerID, id string) (SavedAnalysis, error) {
	out, err := i.next.Get(ctx, ownerID, id)
	i.observe("get", err)
	return out, err
}

func (i *instrumented) UpdateAnalysis(ctx context.Context, ownerID, id, analysis string) (SavedAnalysis, error) {
	out, err := i.next.UpdateAnalysis(ctx, ownerID, id, analysis)
	i.observe("update", err)
	return out, err
}

func (i *instrumented) Delete(ctx context.Context, ownerID, id string) error {
	err := i.next.Delete(ctx, ownerID, id)
	i.observe("delete", err)
	return err
}

func (i *instrumented) Close() error { return i.next.Close() }
