package sim

import "sort"

// bookSide is an ordered multiset of live orders for one side of the book.
// Orders are kept sorted by the side's price-time ordering, so index 0 is
// always top-of-book and a same-price run is contiguous.
type bookSide struct {
	orders []*Order
	before func(a, b *Order) bool
}

func newBidSide() *bookSide { return &bookSide{before: bidBefore} }
func newAskSide() *bookSide { return &bookSide{before: askBefore} }

func (s *bookSide) len() int { return len(s.orders) }

func (s *bookSide) best() (*Order, bool) {
	if len(s.orders) == 0 {
		return nil, false
	}
	return s.orders[0], true
}

// insert places o at its rank. Stable under arbitrary insert/remove
// interleaving because the ordering is total (ids break all price ties).
func (s *bookSide) insert(o *Order) {
	i := sort.Search(len(s.orders), func(i int) bool {
		return s.before(o, s.orders[i])
	})
	s.orders = append(s.orders, nil)
	copy(s.orders[i+1:], s.orders[i:])
	s.orders[i] = o
}

// remove unlinks o from the side. Reports false if o is not present.
func (s *bookSide) remove(o *Order) bool {
	i := s.indexOf(o)
	if i < 0 {
		return false
	}
	s.orders = append(s.orders[:i], s.orders[i+1:]...)
	return true
}

func (s *bookSide) contains(o *Order) bool { return s.indexOf(o) >= 0 }

func (s *bookSide) indexOf(o *Order) int {
	// Binary search to the first order not before o, then scan the
	// same-rank neighborhood. The ordering is total so o, if present,
	// is exactly at that position.
	i := sort.Search(len(s.orders), func(i int) bool {
		return !s.before(s.orders[i], o)
	})
	if i < len(s.orders) && s.orders[i] == o {
		return i
	}
	return -1
}

// firstAtPrice returns the earliest-created live order at exactly price, or
// nil. Relies on the sort order: within a price the lowest id sorts first.
func (s *bookSide) firstAtPrice(price int64) *Order {
	for _, o := range s.orders {
		if o.price == price {
			return o
		}
	}
	return nil
}

// qtyAtBest sums remaining quantity while the price matches the top of the
// book, stopping at the first price change.
func (s *bookSide) qtyAtBest() int64 {
	if len(s.orders) == 0 {
		return 0
	}
	best := s.orders[0].price
	var qty int64
	for _, o := range s.orders {
		if o.price != best {
			break
		}
		qty += o.qty
	}
	return qty
}

// top returns a snapshot slice of the best n orders. The returned slice is
// owned by the caller; the *Order values are live book entries.
func (s *bookSide) top(n int) []*Order {
	if n > len(s.orders) {
		n = len(s.orders)
	}
	out := make([]*Order, n)
	copy(out, s.orders[:n])
	return out
}
