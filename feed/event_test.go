package feed

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestDecodeKeepsRaw(t *testing.T) {
	raw := []byte(`{"type":"open","sequence":7,"order_id":"o1","side":"buy","price":"100.00","remaining_size":"1.5"}`)
	ev, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Sequence != 7 || ev.Type != TypeOpen || ev.OrderID != "o1" {
		t.Errorf("decoded wrong: %+v", ev)
	}
	if string(ev.Raw) != string(raw) {
		t.Error("raw payload not preserved")
	}
}

func TestValidateOpen(t *testing.T) {
	ev := &Event{Type: TypeOpen, Sequence: 1, OrderID: "o1", Side: "buy", Price: "100", Size: "1"}
	if err := ev.Validate(); err != nil {
		t.Errorf("valid open rejected: %v", err)
	}

	cases := []struct {
		name string
		mut  func(*Event)
	}{
		{"no order_id", func(e *Event) { e.OrderID = "" }},
		{"bad side", func(e *Event) { e.Side = "short" }},
		{"no price", func(e *Event) { e.Price = "" }},
		{"bad price", func(e *Event) { e.Price = "1,0" }},
		{"no size at all", func(e *Event) { e.Size = "" }},
	}
	for _, c := range cases {
		bad := *ev
		c.mut(&bad)
		err := bad.Validate()
		var mal *MalformedError
		if !errors.As(err, &mal) {
			t.Errorf("%s: err = %v, want MalformedError", c.name, err)
		}
	}
}

func TestOpenSizeNormalization(t *testing.T) {
	ev := &Event{Type: TypeOpen, OrderID: "o", Side: "buy", Price: "1", RemainingSize: "2.5"}
	if err := ev.Validate(); err != nil {
		t.Fatalf("remaining_size alone must validate: %v", err)
	}
	size, err := ev.OpenSize()
	if err != nil || !size.Equal(dec(t, "2.5")) {
		t.Errorf("size = %s, err = %v", size, err)
	}

	ev2 := &Event{Type: TypeOpen, Size: "1.25"}
	size, err = ev2.OpenSize()
	if err != nil || !size.Equal(dec(t, "1.25")) {
		t.Errorf("size = %s, err = %v", size, err)
	}

	ev3 := &Event{Type: TypeOpen}
	if _, err := ev3.OpenSize(); err == nil {
		t.Error("neither field present must error")
	}
}

func TestValidateDonePriceOptional(t *testing.T) {
	ev := &Event{Type: TypeDone, Sequence: 2, OrderID: "o1", Side: "sell"}
	if err := ev.Validate(); err != nil {
		t.Errorf("priceless done must validate: %v", err)
	}
	ev.Price = "garbage"
	if err := ev.Validate(); err == nil {
		t.Error("unparseable done price must be malformed")
	}
}

func TestValidateMatch(t *testing.T) {
	ev := &Event{Type: TypeMatch, Sequence: 3, Side: "buy", Price: "10", Size: "0.5", MakerOrderID: "m1"}
	if err := ev.Validate(); err != nil {
		t.Errorf("valid match rejected: %v", err)
	}
	ev.MakerOrderID = ""
	if err := ev.Validate(); err == nil {
		t.Error("match without maker must be malformed")
	}
}

func TestValidateChange(t *testing.T) {
	ev := &Event{Type: TypeChange, Sequence: 4, OrderID: "o1", Side: "buy", NewSize: "0.5"}
	if err := ev.Validate(); err != nil {
		t.Errorf("size-only change rejected: %v", err)
	}

	ev.NewSize = ""
	var mal *MalformedError
	if err := ev.Validate(); !errors.As(err, &mal) || mal.Field != "new_size" {
		t.Errorf("change without new_size: %v", err)
	}

	reprice := &Event{Type: TypeChange, Sequence: 5, OrderID: "o1", Side: "buy", NewSize: "0.5", NewPrice: "101"}
	if err := reprice.Validate(); err == nil {
		t.Error("re-price without old_price must be malformed")
	}
	reprice.OldPrice = "100"
	if err := reprice.Validate(); err != nil {
		t.Errorf("valid re-price rejected: %v", err)
	}
}

func TestValidateUnlistedTypes(t *testing.T) {
	for _, typ := range []Type{TypeReceived, TypeActivate, "heartbeat"} {
		ev := &Event{Type: typ, Sequence: 6}
		if err := ev.Validate(); err != nil {
			t.Errorf("%s must validate clean: %v", typ, err)
		}
	}
}
