// Package snapshot defines the full-depth book snapshot used to anchor
// and repair the replica, and the loader that fetches one.
package snapshot

import (
	"context"

	"github.com/shopspring/decimal"
)

// Entry is one resting order as reported by the snapshot endpoint.
type Entry struct {
	Price   decimal.Decimal
	Size    decimal.Decimal
	OrderID string
}

// Snapshot is a full-depth view of one product's book at a sequence
// number. Applying it is an idempotent full replace.
type Snapshot struct {
	Sequence uint64
	Bids     []Entry
	Asks     []Entry
}

// Loader fetches an authoritative snapshot. Timeout policy lives in the
// implementation (or the ctx), never in the replica.
type Loader interface {
	Load(ctx context.Context) (*Snapshot, error)
}
