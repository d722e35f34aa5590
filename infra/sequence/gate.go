// Package sequence tracks the last applied feed sequence number and
// classifies incoming events against it.
package sequence

// Status classifies an incoming event's sequence number.
type Status uint8

const (
	// Uninitialized: no snapshot has been loaded yet. The caller must
	// perform a full snapshot load and discard the triggering event.
	Uninitialized Status = iota
	// Stale: already applied (duplicate or replay). Discard silently.
	Stale
	// Gap: one or more events were missed. The caller must resync and
	// discard the triggering event.
	Gap
	// Next: exactly the next event. Apply it, then Advance.
	Next
)

func (s Status) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Stale:
		return "stale"
	case Gap:
		return "gap"
	case Next:
		return "next"
	default:
		return "unknown"
	}
}

// Gate holds the last applied sequence number. Classification is pure;
// advancing is the caller's responsibility, performed only after the
// event actually applied. Single-writer; the caller coordinates
// concurrency.
type Gate struct {
	initialized bool
	last        uint64
}

func NewGate() *Gate {
	return &Gate{}
}

// Classify places seq relative to the gate's current state without
// mutating anything.
func (g *Gate) Classify(seq uint64) Status {
	switch {
	case !g.initialized:
		return Uninitialized
	case seq <= g.last:
		return Stale
	case seq > g.last+1:
		return Gap
	default:
		return Next
	}
}

// Advance records seq as applied.
func (g *Gate) Advance(seq uint64) {
	g.last = seq
	g.initialized = true
}

// Reset re-anchors the gate at a snapshot's sequence number.
func (g *Gate) Reset(seq uint64) {
	g.last = seq
	g.initialized = true
}

// Current returns the last applied sequence and whether the gate has
// been initialized.
func (g *Gate) Current() (uint64, bool) {
	return g.last, g.initialized
}
