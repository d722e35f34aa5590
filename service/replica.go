// Package service wires the sequence gate, the book aggregate and the
// snapshot loader into the replica: the single write entry point for
// feed events and the read surface for queries.
package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fullbook/domain/book"
	"fullbook/feed"
	"fullbook/infra/metrics"
	"fullbook/infra/sequence"
	"fullbook/snapshot"
)

// Recorder receives every raw inbound event before classification.
// Failures are reported and dropped; they never block application.
type Recorder interface {
	Record(payload []byte) error
}

// Observer is invoked after each successfully applied event. Observers
// run on the writer goroutine and must be quick; anything presentation
// related belongs behind a channel.
type Observer func(ev *feed.Event)

// Replica maintains one product's order book from a sequenced event
// stream, re-anchored by snapshots. Events must be applied by a single
// goroutine; queries may run concurrently with each other and with the
// writer.
type Replica struct {
	log     zerolog.Logger
	loader  snapshot.Loader
	journal Recorder // may be nil
	strict  bool

	mu        sync.RWMutex
	book      *book.Book
	gate      *sequence.Gate
	lastTrade *feed.Event
	halted    bool

	observers []Observer
	faultHook func(error)
}

func NewReplica(loader snapshot.Loader, journal Recorder, strict bool, log zerolog.Logger) *Replica {
	return &Replica{
		log:     log.With().Str("component", "replica").Logger(),
		loader:  loader,
		journal: journal,
		strict:  strict,
		book:    book.New(),
		gate:    sequence.NewGate(),
	}
}

// Register adds an observer. Must be called before events flow.
func (r *Replica) Register(obs Observer) {
	r.observers = append(r.observers, obs)
}

// OnFault installs a hook invoked with every consistency fault, in
// addition to logging and metrics. Must be set before events flow.
func (r *Replica) OnFault(fn func(error)) {
	r.faultHook = fn
}

// Apply runs one inbound event through the gate and, when it is the
// next expected one, through the book. Stale events and events with
// missing or bad fields are discarded without failing the stream; a
// gap or a cold start triggers a full resync and discards the
// triggering event.
func (r *Replica) Apply(ctx context.Context, ev *feed.Event) error {
	if r.journal != nil && len(ev.Raw) > 0 {
		if err := r.journal.Record(ev.Raw); err != nil {
			metrics.JournalErrorsTotal.Inc()
			r.log.Warn().Err(err).Msg("journal write failed")
		}
	}

	r.mu.Lock()
	if r.halted {
		r.mu.Unlock()
		// Strict mode parked the writer on a consistency fault; only a
		// resync may unpark it. The event is discarded either way.
		return r.Resync(ctx)
	}
	status := r.gate.Classify(ev.Sequence)
	switch status {
	case sequence.Uninitialized:
		r.mu.Unlock()
		return r.Resync(ctx)
	case sequence.Stale:
		r.mu.Unlock()
		metrics.EventsStaleTotal.Inc()
		return nil
	case sequence.Gap:
		last, _ := r.gate.Current()
		r.mu.Unlock()
		metrics.SequenceGapsTotal.Inc()
		r.log.Warn().Uint64("last_applied", last).Uint64("received", ev.Sequence).
			Msg("sequence gap, resyncing")
		return r.Resync(ctx)
	}

	applied := r.applyNext(ev)
	// A skipped event still consumes its sequence number; otherwise
	// its successor would read as a gap and force a needless resync.
	r.gate.Advance(ev.Sequence)
	r.updateGauges()
	r.mu.Unlock()

	if applied {
		r.notify(ev)
	}
	return nil
}

// applyNext mutates the book for one validated-next event. Returns
// whether the event had an effect worth notifying observers about.
// Caller holds the write lock.
func (r *Replica) applyNext(ev *feed.Event) bool {
	if err := ev.Validate(); err != nil {
		metrics.MalformedEventsTotal.Inc()
		r.log.Warn().Err(err).Uint64("seq", ev.Sequence).Str("type", string(ev.Type)).
			Msg("malformed event skipped")
		return false
	}

	switch ev.Type {
	case feed.TypeOpen:
		return r.applyOpen(ev)
	case feed.TypeDone:
		return r.applyDone(ev)
	case feed.TypeMatch:
		return r.applyMatch(ev)
	case feed.TypeChange:
		return r.applyChange(ev)
	default:
		// received, activate, heartbeats: sequenced but bookless.
		metrics.EventsIgnoredTotal.Inc()
		return false
	}
}

func (r *Replica) applyOpen(ev *feed.Event) bool {
	price, _ := decimal.NewFromString(ev.Price)
	size, _ := ev.OpenSize()
	r.book.Add(&book.Order{
		ID:    ev.OrderID,
		Side:  ev.BookSide(),
		Price: price,
		Size:  size,
	})
	metrics.EventsAppliedTotal.WithLabelValues("open").Inc()
	return true
}

func (r *Replica) applyDone(ev *feed.Event) bool {
	if ev.Price == "" {
		// Orders that never rested (immediately filled takers) are done
		// without a price; nothing of theirs is in the book.
		metrics.EventsIgnoredTotal.Inc()
		return false
	}
	price, _ := decimal.NewFromString(ev.Price)
	res, err := r.book.Remove(ev.BookSide(), ev.OrderID, price)
	if err != nil {
		r.fault(err)
		return false
	}
	if res.PriceMismatch {
		metrics.PriceMismatchesTotal.Inc()
		r.log.Info().Str("order_id", ev.OrderID).Str("done_price", ev.Price).
			Str("indexed_price", res.Price.String()).
			Msg("done price stale, removed at indexed price")
	}
	if !res.Found {
		// Normal: the order may have been amended away or fully matched.
		metrics.OrdersNotFoundTotal.Inc()
		r.log.Debug().Str("order_id", ev.OrderID).Msg("done for order not resting")
	}
	metrics.EventsAppliedTotal.WithLabelValues("done").Inc()
	return true
}

func (r *Replica) applyMatch(ev *feed.Event) bool {
	price, _ := decimal.NewFromString(ev.Price)
	size, _ := decimal.NewFromString(ev.Size)
	res, err := r.book.Match(ev.BookSide(), price, ev.MakerOrderID, size)
	if err != nil {
		if book.IsConsistencyFault(err) {
			r.fault(err)
		} else {
			metrics.OrdersNotFoundTotal.Inc()
			r.log.Debug().Err(err).Uint64("seq", ev.Sequence).Msg("match against missing level")
		}
		return false
	}
	if res.Repaired {
		metrics.PriorityRepairsTotal.Inc()
		r.log.Warn().Str("maker_order_id", ev.MakerOrderID).Str("price", ev.Price).
			Msg("maker out of position, moved to level head")
	}
	r.lastTrade = ev
	metrics.EventsAppliedTotal.WithLabelValues("match").Inc()
	return true
}

func (r *Replica) applyChange(ev *feed.Event) bool {
	side := ev.BookSide()
	newSize, _ := decimal.NewFromString(ev.NewSize)

	if ev.NewPrice != "" {
		// Re-price: remove at the old price, re-add at the new one.
		// Only resting orders may move; a failed removal means the
		// amendment lost a race and is discarded whole.
		oldPrice, _ := decimal.NewFromString(ev.OldPrice)
		newPrice, _ := decimal.NewFromString(ev.NewPrice)
		res, err := r.book.Remove(side, ev.OrderID, oldPrice)
		if err != nil {
			r.fault(err)
			return false
		}
		if !res.Found {
			metrics.OrdersNotFoundTotal.Inc()
			r.log.Debug().Str("order_id", ev.OrderID).
				Msg("re-price for non-resting order discarded")
			return false
		}
		r.book.Add(&book.Order{ID: ev.OrderID, Side: side, Price: newPrice, Size: newSize})
		metrics.EventsAppliedTotal.WithLabelValues("change").Inc()
		return true
	}

	// Size-only amendment: in place, FIFO position kept.
	var hinted decimal.Decimal
	hasHint := ev.Price != ""
	if hasHint {
		hinted, _ = decimal.NewFromString(ev.Price)
	}
	res, err := r.book.UpdateSize(side, ev.OrderID, hinted, hasHint, newSize)
	if err != nil {
		r.fault(err)
		return false
	}
	if res.PriceMismatch {
		metrics.PriceMismatchesTotal.Inc()
		r.log.Info().Str("order_id", ev.OrderID).Str("event_price", ev.Price).
			Str("indexed_price", res.Price.String()).
			Msg("change price disagrees with index, index used")
	}
	if !res.Found {
		metrics.OrdersNotFoundTotal.Inc()
		r.log.Debug().Str("order_id", ev.OrderID).
			Msg("size change for non-resting order discarded")
		return false
	}
	metrics.EventsAppliedTotal.WithLabelValues("change").Inc()
	return true
}

// fault records a consistency fault. In strict mode the writer halts
// until the next resync. Caller holds the write lock.
func (r *Replica) fault(err error) {
	metrics.ConsistencyFaultsTotal.Inc()
	r.log.Error().Err(err).Bool("strict", r.strict).Msg("book consistency fault")
	if r.faultHook != nil {
		r.faultHook(err)
	}
	if r.strict {
		r.halted = true
	}
}

// Resync discards the replica and rebuilds it from an authoritative
// snapshot. The replacement book is assembled off to the side and
// swapped in under the write lock, so concurrent readers only ever see
// the old state or the new one, never a half-rebuilt book.
func (r *Replica) Resync(ctx context.Context) error {
	metrics.ResyncsTotal.Inc()

	snap, err := r.loader.Load(ctx)
	if err != nil {
		metrics.ResyncFailuresTotal.Inc()
		r.log.Error().Err(err).Msg("snapshot load failed")
		return err
	}

	fresh := book.New()
	for _, e := range snap.Bids {
		fresh.Add(&book.Order{ID: e.OrderID, Side: book.Buy, Price: e.Price, Size: e.Size})
	}
	for _, e := range snap.Asks {
		fresh.Add(&book.Order{ID: e.OrderID, Side: book.Sell, Price: e.Price, Size: e.Size})
	}

	r.mu.Lock()
	r.book = fresh
	r.gate.Reset(snap.Sequence)
	r.halted = false
	r.updateGauges()
	r.mu.Unlock()

	r.log.Info().Uint64("sequence", snap.Sequence).
		Int("bids", len(snap.Bids)).Int("asks", len(snap.Asks)).
		Msg("book rebuilt from snapshot")
	return nil
}

func (r *Replica) notify(ev *feed.Event) {
	for _, obs := range r.observers {
		obs(ev)
	}
}

// Caller holds the write lock.
func (r *Replica) updateGauges() {
	if bid, ok := r.book.BestBid(); ok {
		metrics.BestBid.Set(bid.InexactFloat64())
	}
	if ask, ok := r.book.BestAsk(); ok {
		metrics.BestAsk.Set(ask.InexactFloat64())
	}
	metrics.RestingOrders.Set(float64(r.book.Len()))
}

// ---- queries ----

func (r *Replica) BestBid() (decimal.Decimal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.book.BestBid()
}

func (r *Replica) BestAsk() (decimal.Decimal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.book.BestAsk()
}

// Spread returns ask minus bid when both sides have depth.
func (r *Replica) Spread() (decimal.Decimal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bid, okB := r.book.BestBid()
	ask, okA := r.book.BestAsk()
	if !okB || !okA {
		return decimal.Decimal{}, false
	}
	return ask.Sub(bid), true
}

// Mid returns the midpoint between best bid and best ask when both
// sides have depth.
func (r *Replica) Mid() (decimal.Decimal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bid, okB := r.book.BestBid()
	ask, okA := r.book.BestAsk()
	if !okB || !okA {
		return decimal.Decimal{}, false
	}
	return bid.Add(ask).Div(decimal.NewFromInt(2)), true
}

// Depth returns the resting orders at (side, price) in FIFO order. A
// vanished level yields an empty result, not an error.
func (r *Replica) Depth(side book.Side, price decimal.Decimal) []book.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.book.Depth(side, price)
}

func (r *Replica) OrderByID(id string) (book.Order, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.book.OrderByID(id)
}

// LastTrade returns the most recent match event, if any.
func (r *Replica) LastTrade() (feed.Event, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.lastTrade == nil {
		return feed.Event{}, false
	}
	return *r.lastTrade, true
}

// Sequence returns the last applied sequence number.
func (r *Replica) Sequence() (uint64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gate.Current()
}

// Snapshot exports a consistent point-in-time view of the whole book,
// one entry per resting order, best prices first.
func (r *Replica) Snapshot() *snapshot.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seq, _ := r.gate.Current()
	snap := &snapshot.Snapshot{Sequence: seq}
	r.book.Walk(book.Buy, func(o *book.Order) {
		snap.Bids = append(snap.Bids, snapshot.Entry{Price: o.Price, Size: o.Size, OrderID: o.ID})
	})
	r.book.Walk(book.Sell, func(o *book.Order) {
		snap.Asks = append(snap.Asks, snapshot.Entry{Price: o.Price, Size: o.Size, OrderID: o.ID})
	})
	return snap
}
