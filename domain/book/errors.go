package book

import (
	"errors"
	"fmt"
)

// ErrOrderNotFound reports an operation referencing an id that is not
// resting in the book. Expected under normal operation: the upstream
// feed races fills against cancels and amendments.
var ErrOrderNotFound = errors.New("book: order not found")

// ConsistencyFault is a detected divergence between the order index and
// the price levels. It must never be swallowed; callers decide whether
// to halt or resync.
type ConsistencyFault struct {
	Op      string
	OrderID string
	Detail  string
}

func (f *ConsistencyFault) Error() string {
	return fmt.Sprintf("book: consistency fault in %s for order %s: %s", f.Op, f.OrderID, f.Detail)
}

// IsConsistencyFault reports whether err is (or wraps) a ConsistencyFault.
func IsConsistencyFault(err error) bool {
	var f *ConsistencyFault
	return errors.As(err, &f)
}
