// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrNotFound      = errors.New("history record not found")
	ErrDatabaseError = errors.New("database error")
)

// =============================================================================
// RECORD
// =============================================================================

// Record is one completed session.
type Record struct {
	ID             string    `json:"id"`
	FileName       string    `json:"fileName"`
	Jurisdiction   string    `json:"jurisdiction"`
	RiskLevel      string    `json:"riskLevel"`
	OriginalLength int       `json:"originalLength"`
	RedactedLength int       `json:"redactedLength"`
	PIICount       int       `json:"piiCount"`
	Chunks         int       `json:"chunks"`
	FailedChunks   int       `json:"failedChunks"`
	RemoteUsed     bool      `json:"remoteUsed"`
	AuditScore     *int      `json:"auditScore,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id              TEXT PRIMARY KEY,
	file_name       TEXT NOT NULL,
	jurisdiction    TEXT NOT NULL,
	risk_level      TEXT NOT NULL,
	original_length INTEGER NOT NULL,
	redacted_length INTEGER NOT NULL,
	pii_count       INTEGER NOT NULL,
	chunks          INTEGER NOT NULL,
	failed_chunks   INTEGER NOT NULL,
	remote_used     INTEGER NOT NULL,
	audit_score     INTEGER,
	created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at DESC);
`

// =============================================================================
// HISTORY STORE
// =============================================================================

// History is the session history database.
type History struct {
	db *sql.DB

	// MaxRecords limits stored sessions (0 = unlimited). Older records are
	// pruned on Record.
	MaxRecords int
}

// DefaultPath returns ~/.redactor/history.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".redactor", "history.db"), nil
}

// Open opens or creates the history database at path.
func Open(path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &History{db: db, MaxRecords: 500}, nil
}

// Close closes the database.
func (h *History) Close() error {
	if h.db == nil {
		return nil
	}
	return h.db.Close()
}

// Record stores rec, assigning an ID and timestamp when missing, and
// returns the stored record.
func (h *History) Record(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	var score sql.NullInt64
	if rec.AuditScore != nil {
		score = sql.NullInt64{Int64: int64(*rec.AuditScore), Valid: true}
	}

	_, err := h.db.ExecContext(ctx, `
		INSERT INTO sessions (id, file_name, jurisdiction, risk_level, original_length, redacted_length,
			pii_count, chunks, failed_chunks, remote_used, audit_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.FileName, rec.Jurisdiction, rec.RiskLevel, rec.OriginalLength, rec.RedactedLength,
		rec.PIICount, rec.Chunks, rec.FailedChunks, rec.RemoteUsed, score, rec.CreatedAt.UnixNano())
	if err != nil {
		return Record{}, fmt.Errorf("%w: insert session: %v", ErrDatabaseError, err)
	}

	if h.MaxRecords > 0 {
		if _, err := h.Prune(ctx, h.MaxRecords); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

const selectColumns = `id, file_name, jurisdiction, risk_level, original_length, redacted_length,
	pii_count, chunks, failed_chunks, remote_used, audit_score, created_at`

// List returns the most recent records first. limit <= 0 returns all.
func (h *History) List(ctx context.Context, limit int) ([]Record, error) {
	query := "SELECT " + selectColumns + " FROM sessions ORDER BY created_at DESC, id"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list sessions: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list sessions: %v", ErrDatabaseError, err)
	}
	return out, nil
}

// Get returns one record by ID.
func (h *History) Get(ctx context.Context, id string) (Record, error) {
	row := h.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM sessions WHERE id = ?", id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// Delete removes one record.
func (h *History) Delete(ctx context.Context, id string) error {
	res, err := h.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("%w: delete session: %v", ErrDatabaseError, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of stored records.
func (h *History) Count(ctx context.Context) (int, error) {
	var n int
	if err := h.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count sessions: %v", ErrDatabaseError, err)
	}
	return n, nil
}

// Prune keeps the newest keep records and returns how many were removed.
func (h *History) Prune(ctx context.Context, keep int) (int, error) {
	res, err := h.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE id NOT IN (
			SELECT id FROM sessions ORDER BY created_at DESC, id LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("%w: prune sessions: %v", ErrDatabaseError, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var (
		rec     Record
		score   sql.NullInt64
		created int64
	)
	err := s.Scan(&rec.ID, &rec.FileName, &rec.Jurisdiction, &rec.RiskLevel, &rec.OriginalLength,
		&rec.RedactedLength, &rec.PIICount, &rec.Chunks, &rec.FailedChunks, &rec.RemoteUsed, &score, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("%w: scan session: %v", ErrDatabaseError, err)
	}
	if score.Valid {
		v := int(score.Int64)
		rec.AuditScore = &v
	}
	rec.CreatedAt = time.Unix(0, created)
	return rec, nil
}
