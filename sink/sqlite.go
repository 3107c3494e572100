// Package sink persists normalized predictions. Each sink owns its storage
// format; the core only sees the ResultSink interface.
package sink

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mossline/textclass"
)

// SQLiteSink writes predictions into a sqlite database.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the
// predictions table exists.
func OpenSQLite(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}

	table := `
	CREATE TABLE IF NOT EXISTS predictions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		input_id TEXT,
		label TEXT,
		confidence REAL,
		created_at DATETIME
	);
	`
	if _, err := db.Exec(table); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating predictions table: %w", err)
	}

	return &SQLiteSink{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

// Write inserts the predictions in one transaction.
func (s *SQLiteSink) Write(ctx context.Context, predictions []textclass.Prediction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO predictions (input_id, label, confidence, created_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, p := range predictions {
		if _, err := stmt.ExecContext(ctx, p.InputID, p.Label, p.Confidence, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting prediction for input %q: %w", p.InputID, err)
		}
	}

	return tx.Commit()
}
