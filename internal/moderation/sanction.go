package moderation

import (
	"context"
	"sort"
)

// PendingSanction is a temporary ban waiting to be lifted. IDs are encoded as
// JSON strings since snowflakes do not fit a float64.
type PendingSanction struct {
	SubjectID int64 `json:"subject_id,string"`
	// ExpiryEpochHours is the hour count since the Unix epoch at which the ban
	// ends. math.MaxInt64 means never.
	ExpiryEpochHours int64 `json:"expiry_epoch_hours,string"`
	ScopeID          int64 `json:"scope_id,string"`
}

type sanctionKey struct {
	scope, subject int64
}

func (p PendingSanction) key() sanctionKey {
	return sanctionKey{scope: p.ScopeID, subject: p.SubjectID}
}

// SanctionStore is the durable backing of the pending set.
type SanctionStore interface {
	LoadSanctions(ctx context.Context) ([]PendingSanction, error)
	SaveSanctions(ctx context.Context, sanctions []PendingSanction) error
}

// SortSanctions orders sanctions by scope, then subject.
func SortSanctions(list []PendingSanction) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].ScopeID != list[j].ScopeID {
			return list[i].ScopeID < list[j].ScopeID
		}
		return list[i].SubjectID < list[j].SubjectID
	})
}
