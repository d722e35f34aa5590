package book

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Book is one side-ordered pair of price-level trees plus the order
// index that locates a resting order by id. The index and the levels
// form a single aggregate: every mutation goes through Add, Remove,
// Match or UpdateSize, which keep both in step. Nothing else may touch
// either part.
//
// Book is single-writer and not self-locking; the owning service
// serializes access.
type Book struct {
	bids  *rbTree
	asks  *rbTree
	index map[string]indexEntry
}

type indexEntry struct {
	side  Side
	price decimal.Decimal
}

func New() *Book {
	return &Book{
		bids:  newRBTree(),
		asks:  newRBTree(),
		index: make(map[string]indexEntry),
	}
}

func (b *Book) tree(s Side) *rbTree {
	if s == Buy {
		return b.bids
	}
	return b.asks
}

// Add appends o to the FIFO at (side, price), creating the level if
// absent, and records it in the order index.
func (b *Book) Add(o *Order) {
	b.tree(o.Side).UpsertLevel(o.Price).Enqueue(o)
	b.index[o.ID] = indexEntry{side: o.Side, price: o.Price}
}

// RemoveResult reports how a removal resolved.
type RemoveResult struct {
	Found bool
	// Price is the price the order was actually removed at. When the
	// index and the claimed price disagree the index wins: a done
	// event's price field can be stale relative to the last accepted
	// amendment.
	Price         decimal.Decimal
	PriceMismatch bool
}

// Remove strips the order with the given id from the book and the
// index. claimed is the price the triggering event carried; the indexed
// price is authoritative when the two differ. Absence is not an error,
// but an index entry pointing at a level or order that does not exist
// is a ConsistencyFault.
func (b *Book) Remove(side Side, id string, claimed decimal.Decimal) (RemoveResult, error) {
	price := claimed
	entry, indexed := b.index[id]
	mismatch := false
	if indexed {
		if !entry.price.Equal(claimed) {
			mismatch = true
		}
		price = entry.price
		delete(b.index, id)
	}

	res := RemoveResult{Price: price, PriceMismatch: mismatch}

	t := b.tree(side)
	lvl := t.FindLevel(price)
	if lvl == nil {
		if indexed {
			return res, &ConsistencyFault{Op: "remove", OrderID: id,
				Detail: fmt.Sprintf("indexed price %s has no level", price)}
		}
		return res, nil
	}

	o := lvl.Find(id)
	if o == nil {
		if indexed {
			return res, &ConsistencyFault{Op: "remove", OrderID: id,
				Detail: fmt.Sprintf("indexed at %s but missing from level", price)}
		}
		return res, nil
	}

	lvl.Unlink(o)
	if lvl.Empty() {
		t.DeleteLevel(price)
	}
	res.Found = true
	return res, nil
}

// MatchResult reports how a trade was applied to its maker.
type MatchResult struct {
	// Repaired is set when the maker was not at the head of its level
	// and was moved there before the size reduction.
	Repaired  bool
	Remaining decimal.Decimal
}

// Match reduces the maker order's size by the traded size, in place.
// The maker should be at the head of the level at the event's price; a
// misplaced maker found exactly once in the level is moved to the head
// and the repair reported. A maker found zero or multiple times is a
// ConsistencyFault and the book is left untouched.
//
// Match never removes the maker, even at size zero; the done event that
// follows owns the removal.
func (b *Book) Match(side Side, price decimal.Decimal, makerID string, size decimal.Decimal) (MatchResult, error) {
	lvl := b.tree(side).FindLevel(price)
	if lvl == nil {
		return MatchResult{}, fmt.Errorf("%w: no %s level at %s", ErrOrderNotFound, side, price)
	}

	maker := lvl.Head()
	repaired := false
	if maker.ID != makerID {
		switch lvl.Count(makerID) {
		case 1:
			maker = lvl.Find(makerID)
			lvl.MoveToFront(maker)
			repaired = true
		case 0:
			return MatchResult{}, &ConsistencyFault{Op: "match", OrderID: makerID,
				Detail: fmt.Sprintf("maker absent from %s level %s", side, price)}
		default:
			return MatchResult{}, &ConsistencyFault{Op: "match", OrderID: makerID,
				Detail: fmt.Sprintf("maker queued more than once at %s level %s", side, price)}
		}
	}

	maker.Size = maker.Size.Sub(size)
	return MatchResult{Repaired: repaired, Remaining: maker.Size}, nil
}

// SizeUpdateResult reports how a size-only amendment resolved.
type SizeUpdateResult struct {
	Found         bool
	Price         decimal.Decimal
	PriceMismatch bool
}

// UpdateSize sets the order's size in place, preserving its FIFO
// position. The order's price is resolved via the index; hinted is used
// only when the index lacks the id (and cross-checked against the index
// otherwise). A missing order is not an error: the amendment lost a
// race against a fill.
func (b *Book) UpdateSize(side Side, id string, hinted decimal.Decimal, hasHint bool, newSize decimal.Decimal) (SizeUpdateResult, error) {
	entry, indexed := b.index[id]

	var price decimal.Decimal
	mismatch := false
	switch {
	case indexed:
		price = entry.price
		if hasHint && !hinted.Equal(entry.price) {
			mismatch = true
		}
	case hasHint:
		price = hinted
	default:
		return SizeUpdateResult{}, nil
	}

	res := SizeUpdateResult{Price: price, PriceMismatch: mismatch}

	lvl := b.tree(side).FindLevel(price)
	if lvl == nil {
		if indexed {
			return res, &ConsistencyFault{Op: "change", OrderID: id,
				Detail: fmt.Sprintf("indexed price %s has no level", price)}
		}
		return res, nil
	}
	o := lvl.Find(id)
	if o == nil {
		if indexed {
			return res, &ConsistencyFault{Op: "change", OrderID: id,
				Detail: fmt.Sprintf("indexed at %s but missing from level", price)}
		}
		return res, nil
	}

	o.Size = newSize
	res.Found = true
	return res, nil
}

// BestBid returns the highest bid price, if any.
func (b *Book) BestBid() (decimal.Decimal, bool) {
	lvl := b.bids.MaxLevel()
	if lvl == nil {
		return decimal.Decimal{}, false
	}
	return lvl.Price, true
}

// BestAsk returns the lowest ask price, if any.
func (b *Book) BestAsk() (decimal.Decimal, bool) {
	lvl := b.asks.MinLevel()
	if lvl == nil {
		return decimal.Decimal{}, false
	}
	return lvl.Price, true
}

// Depth returns copies of the resting orders at (side, price) in FIFO
// order, or nil when the level is absent. A vanished level is a normal
// outcome, not a fault.
func (b *Book) Depth(side Side, price decimal.Decimal) []Order {
	lvl := b.tree(side).FindLevel(price)
	if lvl == nil {
		return nil
	}
	out := make([]Order, 0, lvl.Len())
	for o := lvl.Head(); o != nil; o = o.Next() {
		c := *o
		c.next, c.prev = nil, nil
		out = append(out, c)
	}
	return out
}

// OrderByID resolves an order through the index. Not-found is a normal
// outcome.
func (b *Book) OrderByID(id string) (Order, bool) {
	entry, ok := b.index[id]
	if !ok {
		return Order{}, false
	}
	lvl := b.tree(entry.side).FindLevel(entry.price)
	if lvl == nil {
		return Order{}, false
	}
	o := lvl.Find(id)
	if o == nil {
		return Order{}, false
	}
	c := *o
	c.next, c.prev = nil, nil
	return c, true
}

// Walk visits every resting order on side, best price first, FIFO
// within a level.
func (b *Book) Walk(side Side, fn func(*Order)) {
	visit := func(lvl *PriceLevel) bool {
		for o := lvl.Head(); o != nil; o = o.Next() {
			fn(o)
		}
		return true
	}
	if side == Buy {
		b.bids.ForEachDescending(visit)
	} else {
		b.asks.ForEachAscending(visit)
	}
}

// Len returns the number of resting orders.
func (b *Book) Len() int {
	return len(b.index)
}

// Levels returns the number of price levels on side.
func (b *Book) Levels(side Side) int {
	return b.tree(side).Size()
}
