package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/keshon/warden/internal/duration"
	"github.com/keshon/warden/internal/moderation"
	"github.com/keshon/warden/pkg/datastore"
)

const (
	sanctionsKey = "pending_sanctions"
	balancesKey  = "point_balances"
)

// Storage keeps bot state in the JSON file datastore.
type Storage struct {
	ds *datastore.DataStore
	mu sync.Mutex
}

// New opens the datastore at filePath. A file that cannot be parsed is moved
// aside and a fresh one is started in its place.
func New(filePath string) (*Storage, error) {
	ds, err := datastore.New(filePath)
	if err != nil {
		moved, qErr := Quarantine(filePath)
		if qErr != nil {
			return nil, fmt.Errorf("open datastore: %w", err)
		}
		logQuarantine(filePath, moved, err)

		ds, err = datastore.New(filePath)
		if err != nil {
			return nil, fmt.Errorf("open datastore: %w", err)
		}
	}
	return &Storage{ds: ds}, nil
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

// decode converts a loosely typed datastore value into out.
func decode(data any, out any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("error marshalling data: %w", err)
	}
	if err := json.Unmarshal(jsonData, out); err != nil {
		return fmt.Errorf("error unmarshalling data: %w", err)
	}
	return nil
}

// LoadSanctions returns the stored pending set. An absent key is an empty set.
func (s *Storage) LoadSanctions(ctx context.Context) ([]moderation.PendingSanction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, exists := s.ds.Get(sanctionsKey)
	if !exists {
		return nil, nil
	}

	var list []moderation.PendingSanction
	if err := decode(data, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// SaveSanctions replaces the stored pending set and flushes it to disk.
func (s *Storage) SaveSanctions(ctx context.Context, list []moderation.PendingSanction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if list == nil {
		list = []moderation.PendingSanction{}
	}

	if err := s.ds.Add(sanctionsKey, list); err != nil {
		return err
	}
	return s.ds.SaveToFile()
}

// balances are stored as decimal strings so large values survive the
// datastore's float64 round trip.
func (s *Storage) balances() (map[string]string, error) {
	data, exists := s.ds.Get(balancesKey)
	if !exists {
		return map[string]string{}, nil
	}

	balances := map[string]string{}
	if err := decode(data, &balances); err != nil {
		return nil, err
	}
	return balances, nil
}

func balanceOf(balances map[string]string, userID int64) (int64, error) {
	raw, ok := balances[strconv.FormatInt(userID, 10)]
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt balance for %d: %w", userID, err)
	}
	return n, nil
}

// AddBalance adds delta to the user's balance, saturating at the int64 limits.
func (s *Storage) AddBalance(ctx context.Context, userID int64, delta int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	balances, err := s.balances()
	if err != nil {
		return 0, err
	}

	next, err := balanceOf(balances, userID)
	if err != nil {
		return 0, err
	}
	next = duration.SaturatingAdd(next, delta)
	balances[strconv.FormatInt(userID, 10)] = strconv.FormatInt(next, 10)

	if err := s.ds.Add(balancesKey, balances); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *Storage) Balance(ctx context.Context, userID int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	balances, err := s.balances()
	if err != nil {
		return 0, err
	}
	return balanceOf(balances, userID)
}
