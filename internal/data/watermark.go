package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/DevRickLin/social-reactor/internal/biz/domain"
	"github.com/DevRickLin/social-reactor/internal/biz/repo"
	"github.com/DevRickLin/social-reactor/internal/logging"

	_ "modernc.org/sqlite"
)

// watermarkRepo implements the watermark repository on SQLite
type watermarkRepo struct {
	db *sql.DB
}

// NewWatermarkRepo opens (or creates) the watermark database at dbPath
func NewWatermarkRepo(dbPath string) (repo.WatermarkRepo, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	// Immediate transactions take the write lock up front, so two processes
	// sharing the file serialize their read-compare-write in Advance
	dsn := "file:" + dbPath + "?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := migrateWatermarks(db); err != nil {
		db.Close()
		return nil, err
	}

	logging.Info().Str("path", dbPath).Msg("[Watermark] Database initialized")
	return newWatermarkRepoWithDB(db), nil
}

func newWatermarkRepoWithDB(db *sql.DB) *watermarkRepo {
	return &watermarkRepo{db: db}
}

func migrateWatermarks(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS watermarks (
			stream_key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create watermarks table: %w", err)
	}
	return nil
}

// Get returns the watermark for key
func (r *watermarkRepo) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM watermarks WHERE stream_key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: get %s: %w", domain.ErrStoreUnavailable, key, err)
	}
	return value, true, nil
}

// Advance moves the watermark forward; it never stores an older id
func (r *watermarkRepo) Advance(ctx context.Context, key, value string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%w: begin: %w", domain.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT value FROM watermarks WHERE stream_key = ?`, key).Scan(&current)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return false, fmt.Errorf("%w: read %s: %w", domain.ErrStoreUnavailable, key, err)
	case domain.CompareIDs(value, current) <= 0:
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO watermarks (stream_key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(stream_key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	if err != nil {
		return false, fmt.Errorf("%w: write %s: %w", domain.ErrStoreUnavailable, key, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%w: commit %s: %w", domain.ErrStoreUnavailable, key, err)
	}
	return true, nil
}

// Reset deletes the watermark for key
func (r *watermarkRepo) Reset(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM watermarks WHERE stream_key = ?`, key)
	if err != nil {
		return fmt.Errorf("%w: reset %s: %w", domain.ErrStoreUnavailable, key, err)
	}
	logging.Info().Str("key", key).Msg("[Watermark] Reset")
	return nil
}

// List returns watermarks whose key starts with prefix
func (r *watermarkRepo) List(ctx context.Context, prefix string) ([]domain.Watermark, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT stream_key, value, updated_at
		FROM watermarks
		WHERE substr(stream_key, 1, length(?)) = ?
		ORDER BY stream_key
	`, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %w", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var marks []domain.Watermark
	for rows.Next() {
		var w domain.Watermark
		var updatedAt int64
		if err := rows.Scan(&w.Key, &w.Value, &updatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan: %w", domain.ErrStoreUnavailable, err)
		}
		w.UpdatedAt = time.Unix(updatedAt, 0)
		marks = append(marks, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list: %w", domain.ErrStoreUnavailable, err)
	}
	return marks, nil
}

// Close closes the database
func (r *watermarkRepo) Close() error {
	return r.db.Close()
}
