package book

import "github.com/shopspring/decimal"

// PriceLevel is a FIFO queue of resting orders at a single price.
// Arrival order is price-time priority; only the repair path in
// Book.Match is allowed to reorder it.
type PriceLevel struct {
	Price decimal.Decimal

	head *Order
	tail *Order
	size int
}

func (p *PriceLevel) Enqueue(o *Order) {
	if p.head == nil {
		p.head = o
		p.tail = o
	} else {
		p.tail.next = o
		o.prev = p.tail
		p.tail = o
	}
	p.size++
}

// Unlink removes o from the queue. o must be a member of this level.
func (p *PriceLevel) Unlink(o *Order) {
	if o.prev != nil {
		o.prev.next = o.next
	} else {
		p.head = o.next
	}
	if o.next != nil {
		o.next.prev = o.prev
	} else {
		p.tail = o.prev
	}
	o.next = nil
	o.prev = nil
	p.size--
}

// MoveToFront promotes o to the head of the queue, preserving the
// relative order of everything else.
func (p *PriceLevel) MoveToFront(o *Order) {
	if p.head == o {
		return
	}
	p.Unlink(o)
	o.next = p.head
	if p.head != nil {
		p.head.prev = o
	}
	p.head = o
	if p.tail == nil {
		p.tail = o
	}
	p.size++
}

// Find returns the order with the given id, or nil.
func (p *PriceLevel) Find(id string) *Order {
	for o := p.head; o != nil; o = o.next {
		if o.ID == id {
			return o
		}
	}
	return nil
}

// Count returns how many queued orders carry the given id. A healthy
// level has at most one.
func (p *PriceLevel) Count(id string) int {
	n := 0
	for o := p.head; o != nil; o = o.next {
		if o.ID == id {
			n++
		}
	}
	return n
}

func (p *PriceLevel) Head() *Order {
	return p.head
}

func (p *PriceLevel) Len() int {
	return p.size
}

func (p *PriceLevel) Empty() bool {
	return p.head == nil
}

// TotalSize sums the remaining size of every order at this level.
func (p *PriceLevel) TotalSize() decimal.Decimal {
	total := decimal.Zero
	for o := p.head; o != nil; o = o.next {
		total = total.Add(o.Size)
	}
	return total
}
