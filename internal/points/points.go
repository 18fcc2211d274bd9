// Package points keeps per-user point balances used for game rewards.
package points

import (
	"context"
	"fmt"
)

// BalanceStore persists balances. AddBalance must be atomic per user.
type BalanceStore interface {
	AddBalance(ctx context.Context, userID int64, delta int64) (int64, error)
	Balance(ctx context.Context, userID int64) (int64, error)
}

type Ledger struct {
	store BalanceStore
}

func NewLedger(store BalanceStore) *Ledger {
	return &Ledger{store: store}
}

// AddReward credits a positive amount to the user.
func (l *Ledger) AddReward(ctx context.Context, userID int64, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("reward must be positive, got %d", amount)
	}
	if _, err := l.store.AddBalance(ctx, userID, amount); err != nil {
		return fmt.Errorf("credit reward to %d: %w", userID, err)
	}
	return nil
}

func (l *Ledger) Balance(ctx context.Context, userID int64) (int64, error) {
	return l.store.Balance(ctx, userID)
}
