// Package feed defines the inbound order-level event stream: the wire
// shape of a full-channel event, per-type validation, and the Source
// contract a transport must satisfy.
package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fullbook/domain/book"
)

type Type string

const (
	TypeOpen     Type = "open"
	TypeDone     Type = "done"
	TypeMatch    Type = "match"
	TypeChange   Type = "change"
	TypeReceived Type = "received"
	TypeActivate Type = "activate"
)

// Event is one sequenced order-level message. Numeric fields stay as
// wire strings; they are validated here and parsed exactly once by the
// processor, always into decimals, never floats.
type Event struct {
	Sequence  uint64 `json:"sequence"`
	Type      Type   `json:"type"`
	ProductID string `json:"product_id,omitempty"`

	OrderID      string `json:"order_id,omitempty"`
	MakerOrderID string `json:"maker_order_id,omitempty"`
	TakerOrderID string `json:"taker_order_id,omitempty"`

	Side          string `json:"side,omitempty"`
	Price         string `json:"price,omitempty"`
	Size          string `json:"size,omitempty"`
	RemainingSize string `json:"remaining_size,omitempty"`
	NewSize       string `json:"new_size,omitempty"`
	OldSize       string `json:"old_size,omitempty"`
	NewPrice      string `json:"new_price,omitempty"`
	OldPrice      string `json:"old_price,omitempty"`
	Reason        string `json:"reason,omitempty"`

	Time time.Time `json:"time,omitempty"`

	// Raw is the verbatim payload as received, kept for the recorder.
	Raw json.RawMessage `json:"-"`
}

// MalformedError reports a required field absent or unparseable for the
// event's type. The event is skipped; processing continues.
type MalformedError struct {
	Type  Type
	Field string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("feed: malformed %s event: bad field %q", e.Type, e.Field)
}

// Decode parses a raw feed payload, keeping the original bytes.
func Decode(raw []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("feed: decode event: %w", err)
	}
	ev.Raw = append(json.RawMessage(nil), raw...)
	return &ev, nil
}

// Validate checks the per-type required fields. Types not named by the
// book state machine (received, activate, heartbeats) validate clean
// and apply as no-ops.
func (e *Event) Validate() error {
	switch e.Type {
	case TypeOpen:
		if e.OrderID == "" {
			return &MalformedError{Type: e.Type, Field: "order_id"}
		}
		if err := e.checkSide(); err != nil {
			return err
		}
		if !parseable(e.Price) {
			return &MalformedError{Type: e.Type, Field: "price"}
		}
		if e.Size == "" && e.RemainingSize == "" {
			return &MalformedError{Type: e.Type, Field: "size"}
		}
		if e.Size != "" && !parseable(e.Size) {
			return &MalformedError{Type: e.Type, Field: "size"}
		}
		if e.RemainingSize != "" && !parseable(e.RemainingSize) {
			return &MalformedError{Type: e.Type, Field: "remaining_size"}
		}
	case TypeDone:
		if e.OrderID == "" {
			return &MalformedError{Type: e.Type, Field: "order_id"}
		}
		if err := e.checkSide(); err != nil {
			return err
		}
		// Price is legitimately absent for orders that never rested.
		if e.Price != "" && !parseable(e.Price) {
			return &MalformedError{Type: e.Type, Field: "price"}
		}
	case TypeMatch:
		if e.MakerOrderID == "" {
			return &MalformedError{Type: e.Type, Field: "maker_order_id"}
		}
		if err := e.checkSide(); err != nil {
			return err
		}
		if !parseable(e.Price) {
			return &MalformedError{Type: e.Type, Field: "price"}
		}
		if !parseable(e.Size) {
			return &MalformedError{Type: e.Type, Field: "size"}
		}
	case TypeChange:
		if e.OrderID == "" {
			return &MalformedError{Type: e.Type, Field: "order_id"}
		}
		if err := e.checkSide(); err != nil {
			return err
		}
		if !parseable(e.NewSize) {
			return &MalformedError{Type: e.Type, Field: "new_size"}
		}
		if e.NewPrice != "" {
			if !parseable(e.NewPrice) {
				return &MalformedError{Type: e.Type, Field: "new_price"}
			}
			if !parseable(e.OldPrice) {
				return &MalformedError{Type: e.Type, Field: "old_price"}
			}
		}
		if e.Price != "" && !parseable(e.Price) {
			return &MalformedError{Type: e.Type, Field: "price"}
		}
	}
	return nil
}

func (e *Event) checkSide() error {
	if _, err := book.ParseSide(e.Side); err != nil {
		return &MalformedError{Type: e.Type, Field: "side"}
	}
	return nil
}

// BookSide returns the event's side. Call after Validate.
func (e *Event) BookSide() book.Side {
	s, _ := book.ParseSide(e.Side)
	return s
}

// OpenSize normalizes the data-source quirk of open events carrying
// either size or remaining_size, never both.
func (e *Event) OpenSize() (decimal.Decimal, error) {
	switch {
	case e.Size != "":
		return decimal.NewFromString(e.Size)
	case e.RemainingSize != "":
		return decimal.NewFromString(e.RemainingSize)
	default:
		return decimal.Decimal{}, &MalformedError{Type: e.Type, Field: "size"}
	}
}

func parseable(s string) bool {
	if s == "" {
		return false
	}
	_, err := decimal.NewFromString(s)
	return err == nil
}
