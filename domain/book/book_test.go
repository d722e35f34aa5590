package book

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func order(id, side, price, size string) *Order {
	s := Buy
	if side == "sell" {
		s = Sell
	}
	return &Order{ID: id, Side: s, Price: d(price), Size: d(size)}
}

// checkInvariant verifies that an id is indexed iff it is resolvable
// through the levels at the indexed (side, price).
func checkInvariant(t *testing.T, b *Book) {
	t.Helper()
	for id, entry := range b.index {
		lvl := b.tree(entry.side).FindLevel(entry.price)
		if lvl == nil {
			t.Fatalf("index has %s at %s but no level exists", id, entry.price)
		}
		if lvl.Find(id) == nil {
			t.Fatalf("index has %s at %s but level lacks it", id, entry.price)
		}
	}
	count := 0
	for _, side := range []Side{Buy, Sell} {
		b.Walk(side, func(o *Order) {
			count++
			entry, ok := b.index[o.ID]
			if !ok {
				t.Fatalf("order %s resting but not indexed", o.ID)
			}
			if !entry.price.Equal(o.Price) {
				t.Fatalf("order %s indexed at %s but rests at %s", o.ID, entry.price, o.Price)
			}
		})
	}
	if count != len(b.index) {
		t.Fatalf("%d resting orders vs %d index entries", count, len(b.index))
	}
}

func TestAddRemoveInverse(t *testing.T) {
	b := New()
	b.Add(order("base", "buy", "99", "1"))

	b.Add(order("o1", "buy", "100.00", "1.5"))
	checkInvariant(t, b)

	res, err := b.Remove(Buy, "o1", d("100.00"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Found {
		t.Error("remove should report found")
	}
	if res.PriceMismatch {
		t.Error("no mismatch expected")
	}
	if b.Len() != 1 || b.Levels(Buy) != 1 {
		t.Errorf("book not restored: %d orders, %d levels", b.Len(), b.Levels(Buy))
	}
	checkInvariant(t, b)
}

func TestRemoveEmptiesLevel(t *testing.T) {
	b := New()
	b.Add(order("o1", "sell", "101", "1"))
	if _, err := b.Remove(Sell, "o1", d("101")); err != nil {
		t.Fatal(err)
	}
	if b.Levels(Sell) != 0 {
		t.Error("empty level must be dropped")
	}
	if _, ok := b.BestAsk(); ok {
		t.Error("best ask should be undefined on empty side")
	}
}

func TestRemovePrefersIndexedPrice(t *testing.T) {
	b := New()
	b.Add(order("o1", "buy", "100", "1"))

	// The done event claims a stale price; the index wins.
	res, err := b.Remove(Buy, "o1", d("99"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Found {
		t.Fatal("order should be found at the indexed price")
	}
	if !res.PriceMismatch {
		t.Error("mismatch should be reported")
	}
	if !res.Price.Equal(d("100")) {
		t.Errorf("resolved price = %s, want 100", res.Price)
	}
	checkInvariant(t, b)
}

func TestRemoveUnknownOrder(t *testing.T) {
	b := New()
	b.Add(order("o1", "buy", "100", "1"))

	res, err := b.Remove(Buy, "ghost", d("100"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Found {
		t.Error("unknown id must report not found")
	}
	if b.Len() != 1 {
		t.Error("book must be untouched")
	}
}

func TestMatchReducesInPlace(t *testing.T) {
	b := New()
	b.Add(order("o1", "buy", "100.00", "1.0"))

	res, err := b.Match(Buy, d("100.00"), "o1", d("0.4"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Repaired {
		t.Error("head maker needs no repair")
	}
	if !res.Remaining.Equal(d("0.6")) {
		t.Errorf("remaining = %s, want 0.6", res.Remaining)
	}

	depth := b.Depth(Buy, d("100.00"))
	if len(depth) != 1 || !depth[0].Size.Equal(d("0.6")) {
		t.Fatalf("depth = %+v", depth)
	}
}

func TestMatchNeverRemoves(t *testing.T) {
	b := New()
	b.Add(order("o1", "buy", "100", "0.4"))

	res, err := b.Match(Buy, d("100"), "o1", d("0.4"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Remaining.IsZero() {
		t.Errorf("remaining = %s, want 0", res.Remaining)
	}
	// The order stays until its done event arrives.
	if _, ok := b.OrderByID("o1"); !ok {
		t.Error("zero-size maker must remain resting")
	}
	checkInvariant(t, b)
}

func TestMatchRepairsPriority(t *testing.T) {
	b := New()
	b.Add(order("A", "buy", "10", "1"))
	b.Add(order("B", "buy", "10", "1"))
	b.Add(order("C", "buy", "10", "1"))

	res, err := b.Match(Buy, d("10"), "B", d("0.5"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Repaired {
		t.Error("misplaced maker must be reported as repaired")
	}

	depth := b.Depth(Buy, d("10"))
	ids := []string{depth[0].ID, depth[1].ID, depth[2].ID}
	if ids[0] != "B" || ids[1] != "A" || ids[2] != "C" {
		t.Fatalf("after repair: %v, want [B A C]", ids)
	}
	if !depth[0].Size.Equal(d("0.5")) {
		t.Errorf("B size = %s, want 0.5", depth[0].Size)
	}
	checkInvariant(t, b)
}

func TestMatchMakerAbsentIsFault(t *testing.T) {
	b := New()
	b.Add(order("A", "buy", "10", "1"))

	_, err := b.Match(Buy, d("10"), "ghost", d("0.5"))
	if !IsConsistencyFault(err) {
		t.Fatalf("err = %v, want consistency fault", err)
	}
	// Book untouched.
	depth := b.Depth(Buy, d("10"))
	if len(depth) != 1 || !depth[0].Size.Equal(d("1")) {
		t.Fatalf("book mutated on fault: %+v", depth)
	}
}

func TestMatchMissingLevelIsNotFound(t *testing.T) {
	b := New()
	_, err := b.Match(Buy, d("10"), "A", d("0.5"))
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestUpdateSizeKeepsPosition(t *testing.T) {
	b := New()
	b.Add(order("A", "sell", "10", "1"))
	b.Add(order("B", "sell", "10", "1"))
	b.Add(order("C", "sell", "10", "1"))

	res, err := b.UpdateSize(Sell, "B", decimal.Decimal{}, false, d("0.25"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Found {
		t.Fatal("resting order should be found via index")
	}

	depth := b.Depth(Sell, d("10"))
	if depth[1].ID != "B" || !depth[1].Size.Equal(d("0.25")) {
		t.Fatalf("B should keep position 1 with new size: %+v", depth)
	}
	checkInvariant(t, b)
}

func TestUpdateSizeHintMismatch(t *testing.T) {
	b := New()
	b.Add(order("A", "buy", "10", "1"))

	res, err := b.UpdateSize(Buy, "A", d("11"), true, d("0.5"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Found || !res.PriceMismatch {
		t.Fatalf("want found with mismatch, got %+v", res)
	}
	if !res.Price.Equal(d("10")) {
		t.Errorf("index must win: %s", res.Price)
	}
}

func TestUpdateSizeUnknownOrder(t *testing.T) {
	b := New()
	res, err := b.UpdateSize(Buy, "ghost", decimal.Decimal{}, false, d("1"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Found {
		t.Error("unknown order must report not found")
	}
}

func TestBestBidAsk(t *testing.T) {
	b := New()
	b.Add(order("b1", "buy", "99", "1"))
	b.Add(order("b2", "buy", "100", "1"))
	b.Add(order("a1", "sell", "101", "1"))
	b.Add(order("a2", "sell", "102", "1"))

	bid, ok := b.BestBid()
	if !ok || !bid.Equal(d("100")) {
		t.Errorf("best bid = %s, want 100", bid)
	}
	ask, ok := b.BestAsk()
	if !ok || !ask.Equal(d("101")) {
		t.Errorf("best ask = %s, want 101", ask)
	}
}

func TestDepthVanishedLevel(t *testing.T) {
	b := New()
	if got := b.Depth(Buy, d("100")); got != nil {
		t.Errorf("vanished level must yield empty depth, got %v", got)
	}
}

func TestOrderByID(t *testing.T) {
	b := New()
	b.Add(order("o1", "sell", "101.5", "2"))

	o, ok := b.OrderByID("o1")
	if !ok {
		t.Fatal("resting order not found")
	}
	if o.Side != Sell || !o.Price.Equal(d("101.5")) || !o.Size.Equal(d("2")) {
		t.Errorf("wrong order: %+v", o)
	}
	if _, ok := b.OrderByID("nope"); ok {
		t.Error("unknown id must be not found")
	}
}
