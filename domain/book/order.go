package book

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// ParseSide maps the feed's wire strings onto a Side.
func ParseSide(s string) (Side, error) {
	switch s {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	default:
		return 0, fmt.Errorf("book: unknown side %q", s)
	}
}

// Order is a resting order. It is owned by exactly one price level at a
// time; the intrusive links belong to that level.
type Order struct {
	ID    string
	Side  Side
	Price decimal.Decimal
	Size  decimal.Decimal

	next *Order
	prev *Order
}

// Next walks the level FIFO in arrival order.
func (o *Order) Next() *Order {
	return o.next
}
