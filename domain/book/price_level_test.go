package book

import "testing"

func newLevel(ids ...string) (*PriceLevel, map[string]*Order) {
	lvl := &PriceLevel{Price: d("10")}
	orders := make(map[string]*Order)
	for _, id := range ids {
		o := &Order{ID: id, Side: Buy, Price: d("10"), Size: d("1")}
		lvl.Enqueue(o)
		orders[id] = o
	}
	return lvl, orders
}

func levelIDs(lvl *PriceLevel) []string {
	var ids []string
	for o := lvl.Head(); o != nil; o = o.Next() {
		ids = append(ids, o.ID)
	}
	return ids
}

func TestPriceLevelFIFO(t *testing.T) {
	lvl, _ := newLevel("a", "b", "c")
	got := levelIDs(lvl)
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order %d = %s, want %s", i, got[i], want[i])
		}
	}
	if lvl.Len() != 3 {
		t.Errorf("len = %d, want 3", lvl.Len())
	}
}

func TestPriceLevelUnlink(t *testing.T) {
	lvl, orders := newLevel("a", "b", "c")

	lvl.Unlink(orders["b"])
	got := levelIDs(lvl)
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("after middle unlink: %v", got)
	}

	lvl.Unlink(orders["a"])
	lvl.Unlink(orders["c"])
	if !lvl.Empty() || lvl.Len() != 0 {
		t.Error("level should be empty")
	}

	// Refill after draining must still work.
	lvl.Enqueue(&Order{ID: "x"})
	if lvl.Head().ID != "x" || lvl.Len() != 1 {
		t.Error("enqueue after drain broken")
	}
}

func TestPriceLevelMoveToFront(t *testing.T) {
	lvl, orders := newLevel("a", "b", "c")
	lvl.MoveToFront(orders["b"])

	got := levelIDs(lvl)
	want := []string{"b", "a", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("after move: %v, want %v", got, want)
		}
	}
	if lvl.Len() != 3 {
		t.Errorf("len changed: %d", lvl.Len())
	}

	// Moving the head is a no-op.
	lvl.MoveToFront(orders["b"])
	if lvl.Head().ID != "b" || lvl.Len() != 3 {
		t.Error("head move-to-front should be a no-op")
	}

	// Moving the tail updates the tail pointer.
	lvl.MoveToFront(orders["c"])
	lvl.Enqueue(&Order{ID: "z"})
	got = levelIDs(lvl)
	if got[len(got)-1] != "z" {
		t.Fatalf("tail broken after tail move: %v", got)
	}
}

func TestPriceLevelTotalSize(t *testing.T) {
	lvl := &PriceLevel{Price: d("10")}
	lvl.Enqueue(&Order{ID: "a", Size: d("0.1")})
	lvl.Enqueue(&Order{ID: "b", Size: d("0.2")})
	if !lvl.TotalSize().Equal(d("0.3")) {
		t.Errorf("total = %s, want 0.3", lvl.TotalSize())
	}
}
