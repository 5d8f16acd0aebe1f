package sim

import (
	"fmt"
	"math/rand"
	"strconv"

	"go.uber.org/zap"
)

// marketSweepDepth bounds how many opposite-side orders a market order may
// consume: one sweep sees a snapshot of at most this many top-of-book orders.
const marketSweepDepth = 10

// midpointFallbackOffset is added to the buy price to synthesize a midpoint
// sample when either book side is empty.
const midpointFallbackOffset = 12

// Config carries the immutable per-run parameters for the engine and
// controller. Prices are integer cents; times are ticks (one tick is the
// millisecond-equivalent atomic step of the simulated clock).
type Config struct {
	// BuyPrice is the reference price orders are centered around. Must be a
	// positive multiple of TickSize.
	BuyPrice int64

	// TickSize is the price granularity in cents.
	TickSize int64

	// StartupTicks is the length of the starting period during which trades
	// are suppressed.
	StartupTicks int64

	// EndTicks is the tick at which the simulation stops.
	EndTicks int64

	// MovingAverageWindow is the number of midpoint samples retained for
	// the moving average.
	MovingAverageWindow int

	// Seed drives all randomness in the run: agent draw order, random-order
	// selection, and the group shock clock. Runs with equal seeds and equal
	// agent populations produce byte-identical logs.
	Seed int64

	// SnapshotEvery publishes a book snapshot every N ticks (0 disables).
	SnapshotEvery int64
}

// Validate checks the construction-time contract.
func (c Config) Validate() error {
	if c.TickSize <= 0 {
		return fmt.Errorf("tick size %d: %w", c.TickSize, ErrInvalidPrice)
	}
	if c.BuyPrice <= 0 || c.BuyPrice%c.TickSize != 0 {
		return fmt.Errorf("buy price %d: %w", c.BuyPrice, ErrInvalidPrice)
	}
	if c.StartupTicks < 0 || c.EndTicks < c.StartupTicks {
		return fmt.Errorf("bad trade period [%d, %d]", c.StartupTicks, c.EndTicks)
	}
	if c.MovingAverageWindow <= 0 {
		return fmt.Errorf("moving average window must be positive, got %d", c.MovingAverageWindow)
	}
	return nil
}

// MatchingEngine owns the two book sides, the per-agent order index, and all
// per-run session state. It is not safe for concurrent use: the simulation is
// a single serialized call sequence and the engine is only ever entered from
// the controller's thread of control.
type MatchingEngine struct {
	log  *zap.SugaredLogger
	sink EventSink

	buyPrice     int64
	tickSize     int64
	startupTicks int64

	nextOrderID OrderID
	nextAgentID AgentID
	tradeSeq    int64

	bids *bookSide
	asks *bookSide

	byAgent map[AgentID][]*Order
	agents  map[AgentID]*AgentCore

	lastTradePrice int64
	startingPeriod bool
	time           int64

	// per-tick aggressor volume accounting
	currAggBuy  int64
	currAggSell int64
	lastAggBuy  int64
	lastAggSell int64

	// midpoint sliding window with running sum
	midpoints []int64
	movingSum int64
	maWindow  int

	rng *rand.Rand
}

// NewMatchingEngine builds an engine with an empty book. The sink may be nil.
func NewMatchingEngine(cfg Config, sink EventSink, log *zap.SugaredLogger) (*MatchingEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = NopSink{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &MatchingEngine{
		log:            log,
		sink:           sink,
		buyPrice:       cfg.BuyPrice,
		tickSize:       cfg.TickSize,
		startupTicks:   cfg.StartupTicks,
		bids:           newBidSide(),
		asks:           newAskSide(),
		byAgent:        make(map[AgentID][]*Order),
		agents:         make(map[AgentID]*AgentCore),
		lastTradePrice: cfg.BuyPrice,
		startingPeriod: true,
		maWindow:       cfg.MovingAverageWindow,
		rng:            rand.New(rand.NewSource(cfg.Seed + 1)),
	}, nil
}

// registerAgent assigns an id and tracks the agent for trade notification.
// Called from NewAgentCore; ids are engine-scoped, never process-wide.
func (e *MatchingEngine) registerAgent(a *AgentCore) AgentID {
	id := e.nextAgentID
	e.nextAgentID++
	e.agents[id] = a
	return id
}

func (e *MatchingEngine) side(s Side) *bookSide {
	if s == Buy {
		return e.bids
	}
	return e.asks
}

func (e *MatchingEngine) newOrder(agent AgentID, price, qty int64, side Side, market bool) *Order {
	o := &Order{
		id:          e.nextOrderID,
		agent:       agent,
		side:        side,
		market:      market,
		price:       price,
		originalQty: qty,
		qty:         qty,
	}
	e.nextOrderID++
	return o
}

// link inserts the order into its book side and the creator's index, in
// lockstep.
func (e *MatchingEngine) link(o *Order) {
	e.side(o.side).insert(o)
	e.byAgent[o.agent] = append(e.byAgent[o.agent], o)
}

// unlink removes the order from its side and the creator's index, in
// lockstep. Reports false if the engine does not own the order.
func (e *MatchingEngine) unlink(o *Order) bool {
	if !e.side(o.side).remove(o) {
		return false
	}
	list := e.byAgent[o.agent]
	for i, held := range list {
		if held == o {
			e.byAgent[o.agent] = append(list[:i], list[i+1:]...)
			break
		}
	}
	return true
}

// CreateOrder inserts a new limit order for agent and evaluates it for a
// trade. The order trades only against a resting opposite-side order at
// exactly the same price; the earliest-created candidate is the
// counterparty. During the starting period an order that would trade is
// cancelled instead and reported as not traded.
//
// Returns the created order and whether it traded.
func (e *MatchingEngine) CreateOrder(agent AgentID, price, qty int64, side Side) (*Order, bool, error) {
	if err := e.checkOrder(agent, qty, side); err != nil {
		return nil, false, err
	}
	if price <= 0 || price%e.tickSize != 0 {
		return nil, false, fmt.Errorf("price %d: %w", price, ErrInvalidPrice)
	}

	o := e.newOrder(agent, price, qty, side, false)
	e.link(o)
	e.logOrder(o, MsgNew)
	e.sink.OnOrderEvent(o.side, o.qty, o.price)

	return o, e.matchLimit(o), nil
}

// matchLimit applies the exact-price trade rule to a freshly inserted or
// freshly modified order.
func (e *MatchingEngine) matchLimit(o *Order) bool {
	counter := e.side(o.side.Opposite()).firstAtPrice(o.price)
	if counter == nil {
		return false
	}
	if e.startingPeriod {
		// Suppress price discovery before the open: the intent was logged,
		// now take the order straight back out.
		e.removeOrder(o)
		return false
	}

	price := counter.price
	e.tradeSeq++
	volume := e.fill(o, counter)

	aggVol, passVol := volume, -volume
	if o.side == Buy {
		e.currAggBuy += volume
	} else {
		e.currAggSell += volume
		aggVol, passVol = -volume, volume
	}
	e.applyExecutions(
		Execution{Agent: o.agent, Volume: aggVol, Price: price},
		Execution{Agent: counter.agent, Volume: passVol, Price: price},
	)

	e.logTradeRow(o, price, volume, true)
	e.sink.OnTrade(float64(e.time)*0.001, price)
	return true
}

// CancelOrder removes the order from the book and the creator's index, zeroes
// its remaining quantity, and logs the cancel with the negated leaves
// quantity. Cancelling an order the engine no longer owns is an error.
func (e *MatchingEngine) CancelOrder(o *Order) error {
	if o == nil {
		return ErrUnknownOrder
	}
	if !e.unlink(o) {
		return fmt.Errorf("cancel order %d: %w", o.id, ErrUnknownOrder)
	}
	e.logOrder(o, MsgCancel)
	e.sink.OnOrderEvent(o.side, -o.qty, o.price)
	o.setQty(0)
	return nil
}

// removeOrder is the internal cancel used for starting-period suppression and
// market-order cleanup; identical to CancelOrder but the order is known live.
func (e *MatchingEngine) removeOrder(o *Order) {
	e.unlink(o)
	e.logOrder(o, MsgCancel)
	if !o.market {
		// Market orders never produced an insert event, so no depth to undo.
		e.sink.OnOrderEvent(o.side, -o.qty, o.price)
	}
	o.setQty(0)
}

// ModifyOrder changes the order's price and quantity in place, re-establishes
// its rank on the book side, logs the delta, and re-evaluates for a trade
// exactly as CreateOrder does.
func (e *MatchingEngine) ModifyOrder(o *Order, newPrice, newQty int64) (bool, error) {
	if o == nil {
		return false, ErrUnknownOrder
	}
	if newPrice <= 0 || newPrice%e.tickSize != 0 {
		return false, fmt.Errorf("price %d: %w", newPrice, ErrInvalidPrice)
	}
	if newQty <= 0 {
		return false, ErrInvalidOrder
	}
	side := e.side(o.side)
	if !side.remove(o) {
		return false, fmt.Errorf("modify order %d: %w", o.id, ErrUnknownOrder)
	}

	oldPrice, oldQty := o.price, o.qty
	o.setPrice(newPrice)
	o.setQty(newQty)
	side.insert(o)

	e.logOrder(o, MsgModify)
	e.sink.OnOrderEvent(o.side, -oldQty, oldPrice)
	e.sink.OnOrderEvent(o.side, newQty, newPrice)

	return e.matchLimit(o), nil
}

// TradeMarketOrder sweeps a market order for qty against a snapshot of the
// top opposite-side orders, trading until the requested quantity is covered
// or the snapshot is exhausted. With no opposite liquidity the order is
// cancelled with zero fill. Market orders are rejected outright (no-op,
// zero fill) during the starting period.
//
// Returns the total volume filled.
func (e *MatchingEngine) TradeMarketOrder(agent AgentID, qty int64, side Side) (int64, error) {
	if err := e.checkOrder(agent, qty, side); err != nil {
		return 0, err
	}
	if e.startingPeriod {
		return 0, nil
	}

	// Market orders carry no price; they still pass through the book so the
	// pairwise fill bookkeeping sees both orders linked.
	o := e.newOrder(agent, 0, qty, side, true)
	e.link(o)

	e.logOrder(o, MsgNew)

	snapshot := e.side(side.Opposite()).top(marketSweepDepth)
	if len(snapshot) == 0 {
		e.removeOrder(o)
		return 0, nil
	}

	var (
		total int64
		price int64
		execs []Execution
	)
	e.tradeSeq++
	// The loop compares total volume traded against the requested quantity;
	// a counterparty is only advanced past once the running total still
	// falls short. See the sweep tests for the exact consumption shape.
	for _, counter := range snapshot {
		price = counter.price
		volume := e.fill(o, counter)
		total += volume

		passVol := volume
		if side == Buy {
			passVol = -volume
		}
		execs = append(execs, Execution{Agent: counter.agent, Volume: passVol, Price: price})

		if total >= qty {
			break
		}
	}
	if !o.Filled() {
		// Snapshot exhausted with quantity left over: take the residue out
		// rather than leaving a priceless order resting.
		e.removeOrder(o)
	}

	aggVol := total
	if side == Buy {
		e.currAggBuy += total
	} else {
		e.currAggSell += total
		aggVol = -total
	}
	execs = append(execs, Execution{Agent: agent, Volume: aggVol, Price: price})
	e.applyExecutions(execs...)

	e.lastTradePrice = price
	e.logTradeRow(o, price, total, true)
	e.sink.OnTrade(float64(e.time)*0.001, price)
	return total, nil
}

// fill resolves one pairwise match between the aggressor o1 and the resting
// counterparty o2. The trade price is always the resting order's price.
// Fully consumed orders are unlinked from both the book and the per-agent
// index. Returns the volume traded.
func (e *MatchingEngine) fill(o1, o2 *Order) int64 {
	price := o2.price
	e.lastTradePrice = price

	var volume int64
	switch {
	case o1.qty == o2.qty:
		volume = o1.qty
		e.unlink(o1)
		e.unlink(o2)
		o1.setQty(0)
		o2.setQty(0)
	case o1.qty > o2.qty:
		volume = o2.qty
		o1.setQty(o1.qty - o2.qty)
		e.unlink(o2)
		o2.setQty(0)
	default:
		volume = o1.qty
		o2.setQty(o2.qty - o1.qty)
		e.unlink(o1)
		o1.setQty(0)
	}

	e.logTradeRow(o2, price, volume, false)
	e.sink.OnOrderEvent(o2.side, -volume, price)
	if !o1.market {
		e.sink.OnOrderEvent(o1.side, -volume, o1.price)
	}
	return volume
}

// applyExecutions delivers signed fill volume to the affected agents. This
// runs after matching completes so agent state is never touched mid-match,
// but still before the aggressor's act call returns.
func (e *MatchingEngine) applyExecutions(execs ...Execution) {
	for _, ex := range execs {
		if a, ok := e.agents[ex.Agent]; ok {
			a.applyExecution(ex)
		}
	}
}

func (e *MatchingEngine) checkOrder(agent AgentID, qty int64, side Side) error {
	if _, ok := e.agents[agent]; !ok {
		return fmt.Errorf("agent %d: %w", agent, ErrUnknownAgent)
	}
	if qty <= 0 || (side != Buy && side != Sell) {
		return ErrInvalidOrder
	}
	return nil
}

// BestBid returns the highest-priority buy order, if any liquidity rests.
func (e *MatchingEngine) BestBid() (*Order, bool) { return e.bids.best() }

// BestAsk returns the highest-priority sell order, if any liquidity rests.
func (e *MatchingEngine) BestAsk() (*Order, bool) { return e.asks.best() }

// BestBidQuantity sums resting quantity at the best bid price level.
// Zero when the side is empty.
func (e *MatchingEngine) BestBidQuantity() int64 { return e.bids.qtyAtBest() }

// BestAskQuantity sums resting quantity at the best ask price level.
func (e *MatchingEngine) BestAskQuantity() int64 { return e.asks.qtyAtBest() }

// TopBids returns the n highest-priority buy orders.
func (e *MatchingEngine) TopBids(n int) []*Order { return e.bids.top(n) }

// TopAsks returns the n highest-priority sell orders.
func (e *MatchingEngine) TopAsks(n int) []*Order { return e.asks.top(n) }

// LastTradePrice is the price the share last traded at, seeded with the
// configured buy price before any trade occurs.
func (e *MatchingEngine) LastTradePrice() int64 { return e.lastTradePrice }

// BuyPrice is the configured reference price.
func (e *MatchingEngine) BuyPrice() int64 { return e.buyPrice }

// TickSize is the configured price granularity in cents.
func (e *MatchingEngine) TickSize() int64 { return e.tickSize }

// StartupTicks is the configured starting-period length.
func (e *MatchingEngine) StartupTicks() int64 { return e.startupTicks }

// Time is the current simulated tick, kept in sync by the controller.
func (e *MatchingEngine) Time() int64 { return e.time }

func (e *MatchingEngine) setTime(t int64) { e.time = t }

// setStartingPeriod lifts (or reinstates) trade suppression.
func (e *MatchingEngine) setStartingPeriod(on bool) { e.startingPeriod = on }

// LastAggressiveBuyVolume is the buy-side aggressor volume of the previous
// tick, published by Reset.
func (e *MatchingEngine) LastAggressiveBuyVolume() int64 { return e.lastAggBuy }

// LastAggressiveSellVolume is the sell-side aggressor volume of the previous
// tick.
func (e *MatchingEngine) LastAggressiveSellVolume() int64 { return e.lastAggSell }

// Reset snapshots the current tick's aggressor volumes into the last-tick
// fields and zeroes the accumulators. Called once per tick by the
// controller, never mid-tick.
func (e *MatchingEngine) Reset() {
	e.lastAggBuy = e.currAggBuy
	e.lastAggSell = e.currAggSell
	e.currAggBuy = 0
	e.currAggSell = 0
}

// StoreMovingAverage samples the bid/ask midpoint into the sliding window,
// maintaining the running sum. With either side empty a fallback sample of
// buy price plus a fixed offset is used.
func (e *MatchingEngine) StoreMovingAverage() {
	midpoint := e.buyPrice + midpointFallbackOffset
	if bid, ok := e.bids.best(); ok {
		if ask, ok := e.asks.best(); ok {
			midpoint = (bid.price + ask.price) / 2
		}
	}
	if len(e.midpoints) == e.maWindow {
		e.movingSum -= e.midpoints[0]
		e.midpoints = e.midpoints[1:]
	}
	e.midpoints = append(e.midpoints, midpoint)
	e.movingSum += midpoint
}

// MovingAverage returns the mean of the stored midpoint samples. The second
// result is false before any sample has been taken.
func (e *MatchingEngine) MovingAverage() (int64, bool) {
	if len(e.midpoints) == 0 {
		return 0, false
	}
	return e.movingSum / int64(len(e.midpoints)), true
}

// AgentHasOrders reports whether the agent has live orders.
func (e *MatchingEngine) AgentHasOrders(agent AgentID) bool {
	return len(e.byAgent[agent]) > 0
}

// AgentOrderCount returns the number of live orders the agent owns.
func (e *MatchingEngine) AgentOrderCount(agent AgentID) int {
	return len(e.byAgent[agent])
}

// RandomOrder returns one of the agent's live orders chosen uniformly, or
// nil if the agent has none.
func (e *MatchingEngine) RandomOrder(agent AgentID) *Order {
	orders := e.byAgent[agent]
	if len(orders) == 0 {
		return nil
	}
	return orders[e.rng.Intn(len(orders))]
}

// OldestOrder returns the agent's live order with the lowest id, or nil.
func (e *MatchingEngine) OldestOrder(agent AgentID) *Order {
	var oldest *Order
	for _, o := range e.byAgent[agent] {
		if oldest == nil || o.id < oldest.id {
			oldest = o
		}
	}
	return oldest
}

// CancelAllBuyOrders cancels every live buy order belonging to the agent.
func (e *MatchingEngine) CancelAllBuyOrders(agent AgentID) {
	e.cancelAllOnSide(agent, Buy)
}

// CancelAllSellOrders cancels every live sell order belonging to the agent.
func (e *MatchingEngine) CancelAllSellOrders(agent AgentID) {
	e.cancelAllOnSide(agent, Sell)
}

func (e *MatchingEngine) cancelAllOnSide(agent AgentID, side Side) {
	// Cancel mutates the index, so collect first.
	var doomed []*Order
	for _, o := range e.byAgent[agent] {
		if o.side == side {
			doomed = append(doomed, o)
		}
	}
	for _, o := range doomed {
		e.removeOrder(o)
	}
}

// Flush drains the event sink. Called at run end.
func (e *MatchingEngine) Flush() error { return e.sink.Flush() }

// bookSize is the total number of live resting orders (both sides).
func (e *MatchingEngine) bookSize() int { return e.bids.len() + e.asks.len() }

func (e *MatchingEngine) orderType(o *Order) string {
	if o.market {
		return "Market"
	}
	return "Limit"
}

// logOrder emits one CSV record for a new/modify/cancel message. Cancel rows
// carry the negated leaves quantity; a cancelled market order always logs -1
// since its residue is not book quantity.
func (e *MatchingEngine) logOrder(o *Order, msgType int) {
	leaves := o.qty
	if msgType == MsgCancel {
		leaves = -o.qty
		if o.market {
			leaves = -1
		}
	}
	e.sink.OnLogLine([]string{
		strconv.FormatInt(e.time, 10),
		strconv.FormatInt(int64(o.agent), 10),
		strconv.Itoa(msgType),
		o.side.logCode(),
		o.id.String(),
		strconv.FormatInt(o.originalQty, 10),
		centsString(o.price),
		e.orderType(o),
		strconv.FormatInt(leaves, 10),
	})
}

// logTradeRow emits the extended CSV record for one side of a trade.
// Aggressor rows carry "Y", passive rows "N"; both share the trade id.
func (e *MatchingEngine) logTradeRow(o *Order, tradePrice, volume int64, aggressor bool) {
	flag := "N"
	if aggressor {
		flag = "Y"
	}
	e.sink.OnLogLine([]string{
		strconv.FormatInt(e.time, 10),
		strconv.FormatInt(int64(o.agent), 10),
		strconv.Itoa(MsgTrade),
		o.side.logCode(),
		o.id.String(),
		strconv.FormatInt(o.originalQty, 10),
		centsString(o.price),
		e.orderType(o),
		strconv.FormatInt(o.qty, 10),
		centsString(tradePrice),
		strconv.FormatInt(volume, 10),
		flag,
		strconv.FormatInt(e.tradeSeq, 10),
	})
}
