// Package sqlite persists bot state in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/keshon/warden/internal/duration"
	"github.com/keshon/warden/internal/moderation"
)

//go:embed schema.sql
var schema string

// Store provides SQLite-backed sanction, balance and history persistence.
type Store struct {
	sqlDB *sql.DB
}

// HistoryRow is one logged command invocation.
type HistoryRow struct {
	ScopeID   int64
	ChannelID int64
	UserID    int64
	Username  string
	Command   string
	At        time.Time
}

// Open opens the database at path and creates missing tables.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// LoadSanctions returns every stored sanction.
func (s *Store) LoadSanctions(ctx context.Context) ([]moderation.PendingSanction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT subject_id, expiry_epoch_hours, scope_id
FROM pending_sanctions
ORDER BY expiry_epoch_hours, scope_id, subject_id
`)
	if err != nil {
		return nil, fmt.Errorf("load sanctions: %w", err)
	}
	defer rows.Close()

	var out []moderation.PendingSanction
	for rows.Next() {
		var p moderation.PendingSanction
		if err := rows.Scan(&p.SubjectID, &p.ExpiryEpochHours, &p.ScopeID); err != nil {
			return nil, fmt.Errorf("scan sanction: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sanctions: %w", err)
	}
	return out, nil
}

// SaveSanctions replaces the stored set in one transaction.
func (s *Store) SaveSanctions(ctx context.Context, list []moderation.PendingSanction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_sanctions`); err != nil {
		return fmt.Errorf("clear sanctions: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO pending_sanctions (scope_id, subject_id, expiry_epoch_hours)
VALUES (?, ?, ?)
ON CONFLICT (scope_id, subject_id) DO UPDATE SET expiry_epoch_hours = excluded.expiry_epoch_hours
`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range list {
		if _, err := stmt.ExecContext(ctx, p.ScopeID, p.SubjectID, p.ExpiryEpochHours); err != nil {
			return fmt.Errorf("insert sanction: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// AddBalance adds delta to the user's balance, saturating at the int64 limits.
func (s *Store) AddBalance(ctx context.Context, userID int64, delta int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current int64
	err = tx.QueryRowContext(ctx, `SELECT balance FROM point_balances WHERE user_id = ?`, userID).Scan(&current)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("read balance: %w", err)
	}

	next := duration.SaturatingAdd(current, delta)
	if _, err := tx.ExecContext(ctx, `
INSERT INTO point_balances (user_id, balance) VALUES (?, ?)
ON CONFLICT (user_id) DO UPDATE SET balance = excluded.balance
`, userID, next); err != nil {
		return 0, fmt.Errorf("write balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

func (s *Store) Balance(ctx context.Context, userID int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var balance int64
	err := s.sqlDB.QueryRowContext(ctx, `SELECT balance FROM point_balances WHERE user_id = ?`, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return balance, nil
}

// RecordCommand appends a history row and keeps at most limit rows for the
// scope.
func (s *Store) RecordCommand(ctx context.Context, row HistoryRow, limit int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if row.At.IsZero() {
		row.At = time.Now().UTC()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO command_history (scope_id, channel_id, user_id, username, command, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`, row.ScopeID, row.ChannelID, row.UserID, row.Username, row.Command, row.At.UTC().UnixMilli()); err != nil {
		return fmt.Errorf("record command: %w", err)
	}

	if limit > 0 {
		if _, err := tx.ExecContext(ctx, `
DELETE FROM command_history
WHERE scope_id = ? AND id NOT IN (
	SELECT id FROM command_history WHERE scope_id = ? ORDER BY id DESC LIMIT ?
)
`, row.ScopeID, row.ScopeID, limit); err != nil {
			return fmt.Errorf("trim history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CommandHistory returns the scope's rows, newest first.
func (s *Store) CommandHistory(ctx context.Context, scopeID int64) ([]HistoryRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT scope_id, channel_id, user_id, username, command, created_at
FROM command_history
WHERE scope_id = ?
ORDER BY id DESC
`, scopeID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []HistoryRow
	for rows.Next() {
		var (
			r  HistoryRow
			ms int64
		)
		if err := rows.Scan(&r.ScopeID, &r.ChannelID, &r.UserID, &r.Username, &r.Command, &ms); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		r.At = time.UnixMilli(ms).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}
