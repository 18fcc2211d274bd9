package storage

import (
	"context"
	"strconv"
	"time"
)

const (
	historyKey = "command_history"

	// HistoryLimit caps the records kept per scope.
	HistoryLimit = 100
)

// CommandRecord is one logged command invocation.
type CommandRecord struct {
	ScopeID   int64     `json:"scope_id,string"`
	ChannelID int64     `json:"channel_id,string"`
	UserID    int64     `json:"user_id,string"`
	Username  string    `json:"username"`
	Command   string    `json:"command"`
	At        time.Time `json:"at"`
}

func (s *Storage) history() (map[string][]CommandRecord, error) {
	data, exists := s.ds.Get(historyKey)
	if !exists {
		return map[string][]CommandRecord{}, nil
	}
	out := map[string][]CommandRecord{}
	if err := decode(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RecordCommand appends rec to its scope's history, dropping the oldest
// records past HistoryLimit.
func (s *Storage) RecordCommand(ctx context.Context, rec CommandRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.history()
	if err != nil {
		return err
	}
	key := strconv.FormatInt(rec.ScopeID, 10)
	all[key] = trimHistory(append(all[key], rec))
	return s.ds.Add(historyKey, all)
}

// CommandHistory returns the scope's records, newest first.
func (s *Storage) CommandHistory(ctx context.Context, scopeID int64) ([]CommandRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.history()
	if err != nil {
		return nil, err
	}
	list := all[strconv.FormatInt(scopeID, 10)]
	out := make([]CommandRecord, len(list))
	for i, r := range list {
		out[len(list)-1-i] = r
	}
	return out, nil
}

func trimHistory(list []CommandRecord) []CommandRecord {
	if len(list) <= HistoryLimit {
		return list
	}
	return append([]CommandRecord(nil), list[len(list)-HistoryLimit:]...)
}
