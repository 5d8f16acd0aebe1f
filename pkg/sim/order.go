package sim

import "strconv"

// Side is the order side: buy or sell.
type Side uint8

const (
	Buy Side = iota + 1
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// code written into the CSV log (1 = buy, 2 = sell)
func (s Side) logCode() string {
	if s == Buy {
		return "1"
	}
	return "2"
}

// OrderID identifies an order. Ids are assigned by the engine from a
// monotonically increasing counter and are never reused.
type OrderID int64

func (id OrderID) String() string { return strconv.FormatInt(int64(id), 10) }

// AgentID identifies an agent for the lifetime of a simulation run.
type AgentID int64

// Order is one resting or market instruction. Identity (id, creator, side,
// original quantity) is immutable; price and remaining quantity are mutated
// in place, and only by the engine. Agents hold *Order references but request
// all mutation through engine operations.
type Order struct {
	id          OrderID
	agent       AgentID
	side        Side
	market      bool
	price       int64 // cents
	originalQty int64
	qty         int64 // remaining
}

func (o *Order) ID() OrderID        { return o.id }
func (o *Order) Agent() AgentID     { return o.agent }
func (o *Order) Side() Side         { return o.side }
func (o *Order) IsBuy() bool        { return o.side == Buy }
func (o *Order) IsMarket() bool     { return o.market }
func (o *Order) Price() int64       { return o.price }
func (o *Order) OriginalQty() int64 { return o.originalQty }
func (o *Order) Qty() int64         { return o.qty }

// Filled reports whether the order has no remaining quantity. A filled (or
// cancelled) order is unlinked from the book and never re-inserted.
func (o *Order) Filled() bool { return o.qty <= 0 }

func (o *Order) setPrice(p int64) { o.price = p }
func (o *Order) setQty(q int64)   { o.qty = q }

// bidBefore is the bid-side total ordering: highest price first, ties broken
// by ascending id (earlier creation wins priority).
func bidBefore(a, b *Order) bool {
	if a.price != b.price {
		return a.price > b.price
	}
	return a.id < b.id
}

// askBefore is the ask-side total ordering: lowest price first, then
// ascending id.
func askBefore(a, b *Order) bool {
	if a.price != b.price {
		return a.price < b.price
	}
	return a.id < b.id
}
