package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Postgres stores analyses in Postgres (including a Supabase database).
type Postgres struct {
	pool *pgxpool.Pool
}

// ConnectPostgres creates a pgx pool and runs schema migrations.
func ConnectPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db := &Postgres{pool: pool}
	if err := db.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("store: postgres connected", slog.String("addr", config.ConnConfig.Host))
	return db, nil
}

func (db *Postgres) Close() error {
	db.pool.Close()
	return nil
}

func (db *Postgres) runMigrations(ctx context.Context) error {
	entries, err := schemaFS.ReadDir("schema")
	if err != nil {
		return fmt.Errorf("read schema dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		data, err := schemaFS.ReadFile("schema/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		if _, err := db.pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("execute %s: %w", entry.Name(), err)
		}
		slog.Debug("store: migration applied", slog.String("file", entry.Name()))
	}
	return nil
}

const pgColumns = `id, owner_id, video_id, title, analysis, transcript, created_at, updated_at`

func (db *Postgres) Create(ctx context.Context, a SavedAnalysis) (SavedAnalysis, error) {
	a, err := prepare(a, now())
	if err != nil {
		return SavedAnalysis{}, err
	}
	_, err = db.pool.Exec(ctx,
		`INSERT INTO analyses (`+pgColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.OwnerID, a.VideoID, a.Title, a.Analysis, a.Transcript, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return SavedAnalysis{}, persistErr("insert", err)
	}
	return a, nil
}

func (db *Postgres) List(ctx context.Context, ownerID string) ([]SavedAnalysis, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+pgColumns+` FROM analyses WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, persistErr("list", err)
	}
	out, err := pgx.CollectRows(rows, scanPostgres)
	if err != nil {
		return nil, persistErr("list", err)
	}
	if out == nil {
		out = []SavedAnalysis{}
	}
	return out, nil
}

func (db *Postgres) Get(ctx context.Context, ownerID, id string) (SavedAnalysis, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+pgColumns+` FROM analyses WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return SavedAnalysis{}, persistErr("get", err)
	}
	a, err := pgx.CollectExactlyOneRow(rows, scanPostgres)
	if errors.Is(err, pgx.ErrNoRows) {
		return SavedAnalysis{}, ErrNotFound
	}
	if err != nil {
		return SavedAnalysis{}, persistErr("get", err)
	}
	return a, nil
}

func (db *Postgres) UpdateAnalysis(ctx context.Context, ownerID, id, analysis string) (SavedAnalysis, error) {
	if err := checkEdit(analysis); err != nil {
		return SavedAnalysis{}, err
	}
	rows, err := db.pool.Query(ctx,
		`UPDATE analyses SET analysis = $1, updated_at = $2 WHERE id = $3 AND owner_id = $4 RETURNING `+pgColumns,
		analysis, now(), id, ownerID)
	if err != nil {
		return SavedAnalysis{}, persistErr("update", err)
	}
	a, err := pgx.CollectExactlyOneRow(rows, scanPostgres)
	if errors.Is(err, pgx.ErrNoRows) {
		return SavedAnalysis{}, ErrNotFound
	}
	if err != nil {
		return SavedAnalysis{}, persistErr("update", err)
	}
	return a, nil
}

func (db *Postgres) Delete(ctx context.Context, ownerID, id string) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM analyses WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return persistErr("delete", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPostgres(row pgx.CollectableRow) (SavedAnalysis, error) {
	var a SavedAnalysis
	err := row.Scan(&a.ID, &a.OwnerID, &a.VideoID, &a.Title, &a.Analysis, &a.Transcript, &a.CreatedAt, &a.UpdatedAt)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, err
}
