package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// tsLayout is fixed-width so text ordering matches time ordering.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

// SQLite stores analyses in a local database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("sqlite: mkdir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if err := initSQLiteSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: init schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func initSQLiteSchema(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS analyses (
		id         TEXT PRIMARY KEY,
		owner_id   TEXT NOT NULL,
		video_id   TEXT NOT NULL,
		title      TEXT NOT NULL,
		analysis   TEXT NOT NULL,
		transcript TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`); err != nil {
		return err
	}
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS analyses_owner_created ON analyses (owner_id, created_at DESC)`)
	return err
}

const sqliteColumns = `id, owner_id, video_id, title, analysis, transcript, created_at, updated_at`

func (s *SQLite) Create(ctx context.Context, a SavedAnalysis) (SavedAnalysis, error) {
	a, err := prepare(a, now())
	if err != nil {
		return SavedAnalysis{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analyses (`+sqliteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.OwnerID, a.VideoID, a.Title, a.Analysis, a.Transcript,
		a.CreatedAt.Format(tsLayout), a.UpdatedAt.Format(tsLayout),
	)
	if err != nil {
		return SavedAnalysis{}, persistErr("insert", err)
	}
	return a, nil
}

func (s *SQLite) List(ctx context.Context, ownerID string) ([]SavedAnalysis, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteColumns+` FROM analyses WHERE owner_id = ? ORDER BY created_at DESC, id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, persistErr("list", err)
	}
	defer rows.Close()

	out := make([]SavedAnalysis, 0)
	for rows.Next() {
		a, err := scanSQLite(rows)
		if err != nil {
			return nil, persistErr("scan", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list", err)
	}
	return out, nil
}

func (s *SQLite) Get(ctx context.Context, ownerID, id string) (SavedAnalysis, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteColumns+` FROM analyses WHERE id = ? AND owner_id = ?`, id, ownerID)
	a, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SavedAnalysis{}, ErrNotFound
	}
	if err != nil {
		return SavedAnalysis{}, persistErr("get", err)
	}
	return a, nil
}

func (s *SQLite) UpdateAnalysis(ctx context.Context, ownerID, id, analysis string) (SavedAnalysis, error) {
	if err := checkEdit(analysis); err != nil {
		return SavedAnalysis{}, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE analyses SET analysis = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		analysis, now().Format(tsLayout), id, ownerID,
	)
	if err != nil {
		return SavedAnalysis{}, persistErr("update", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return SavedAnalysis{}, ErrNotFound
	}
	return s.Get(ctx, ownerID, id)
}

func (s *SQLite) Delete(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return persistErr("delete", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLite(r rowScanner) (SavedAnalysis, error) {
	var a SavedAnalysis
	var created, updated string
	if err := r.Scan(&a.ID, &a.OwnerID, &a.VideoID, &a.Title, &a.Analysis, &a.Transcript, &created, &updated); err != nil {
		return a, err
	}
	var err error
	if a.CreatedAt, err = time.Parse(tsLayout, created); err != nil {
		return a, fmt.Errorf("created_at: %w", err)
	}
	if a.UpdatedAt, err = time.Parse(tsLayout, updated); err != nil {
		return a, fmt.Errorf("updated_at: %w", err)
	}
	return a, nil
}
