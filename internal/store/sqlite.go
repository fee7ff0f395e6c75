package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ FetchLog = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS fetches (
	source     TEXT    NOT NULL,
	symbol     TEXT    NOT NULL,
	start_date TEXT    NOT NULL,
	end_date   TEXT    NOT NULL,
	bars       INTEGER NOT NULL,
	fetched_at INTEGER NOT NULL,
	PRIMARY KEY (source, symbol, start_date, end_date)
);`

const dateLayout = "2006-01-02"

// SQLiteStore implements FetchLog backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// schema if needed and returns a ready-to-use SQLiteStore. ":memory:" opens
// a private in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One connection keeps an in-memory database alive and serialises
	// writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordFetch upserts f keyed by (source, symbol, start, end).
func (s *SQLiteStore) RecordFetch(ctx context.Context, f Fetch) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fetches (source, symbol, start_date, end_date, bars, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (source, symbol, start_date, end_date)
		DO UPDATE SET bars = excluded.bars, fetched_at = excluded.fetched_at`,
		f.Source, strings.ToUpper(f.Symbol),
		f.Start.UTC().Format(dateLayout), f.End.UTC().Format(dateLayout),
		f.Bars, f.FetchedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("recording fetch of %s: %w", f.Symbol, err)
	}
	return nil
}

// LastFetch looks up the fetch of exactly (source, symbol, start, end).
func (s *SQLiteStore) LastFetch(ctx context.Context, source, symbol string, start, end time.Time) (Fetch, bool, error) {
	f := Fetch{
		Source: source,
		Symbol: strings.ToUpper(symbol),
		Start:  start,
		End:    end,
	}
	var fetchedAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT bars, fetched_at FROM fetches
		WHERE source = ? AND symbol = ? AND start_date = ? AND end_date = ?`,
		source, f.Symbol, start.UTC().Format(dateLayout), end.UTC().Format(dateLayout),
	).Scan(&f.Bars, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Fetch{}, false, nil
	}
	if err != nil {
		return Fetch{}, false, fmt.Errorf("looking up fetch of %s: %w", symbol, err)
	}
	f.FetchedAt = time.UnixMilli(fetchedAt).UTC()
	return f, true, nil
}
