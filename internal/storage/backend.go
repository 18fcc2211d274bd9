package storage

import (
	"context"
	"fmt"

	"github.com/keshon/warden/internal/moderation"
	"github.com/keshon/warden/internal/points"
	"github.com/keshon/warden/internal/storage/sqlite"
)

const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// Backend is everything the bot persists.
type Backend interface {
	moderation.SanctionStore
	points.BalanceStore
	RecordCommand(ctx context.Context, rec CommandRecord) error
	CommandHistory(ctx context.Context, scopeID int64) ([]CommandRecord, error)
	Close() error
}

// Open returns the backend selected by driver.
func Open(driver, jsonPath, sqlitePath string) (Backend, error) {
	switch driver {
	case "", DriverJSON:
		return New(jsonPath)
	case DriverSQLite:
		db, err := sqlite.Open(sqlitePath)
		if err != nil {
			return nil, err
		}
		return &sqliteBackend{Store: db}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// sqliteBackend converts between the sqlite package's history rows and
// CommandRecord.
type sqliteBackend struct {
	*sqlite.Store
}

func (b *sqliteBackend) RecordCommand(ctx context.Context, rec CommandRecord) error {
	return b.Store.RecordCommand(ctx, sqlite.HistoryRow(rec), HistoryLimit)
}

func (b *sqliteBackend) CommandHistory(ctx context.Context, scopeID int64) ([]CommandRecord, error) {
	rows, err := b.Store.CommandHistory(ctx, scopeID)
	if err != nil {
		return nil, err
	}
	out := make([]CommandRecord, len(rows))
	for i, r := range rows {
		out[i] = CommandRecord(r)
	}
	return out, nil
}
