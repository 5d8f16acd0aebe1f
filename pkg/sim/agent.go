package sim

// Agent is the capability a trading strategy implements. Concrete strategies
// live outside the core; the engine and controller only ever see this
// interface plus the embedded AgentCore.
//
// Contract for Act: before returning, the agent must either clear its
// continue flag (SetWillAct(false)) or advance its next-action time strictly
// past the current tick. An agent that leaves the flag set is re-invoked
// immediately; the core imposes no iteration cap.
type Agent interface {
	// Act runs one sub-step of the agent's strategy for the current tick.
	Act()

	// Core exposes the agent's engine-mediated state and operations.
	Core() *AgentCore
}

// AgentCore is the embeddable base every agent carries. It holds identity,
// scheduling state, and inventory, and mediates all order operations through
// the engine. It is mutated only by the owning agent's Act invocation and by
// execution records the engine applies on trades.
type AgentCore struct {
	id     AgentID
	engine *MatchingEngine

	nextActTime int64
	willAct     bool

	inventory       int64
	lastOrderTraded bool
}

// NewAgentCore registers a fresh agent with the engine and returns its core.
// The next-action time starts negative so the agent is not picked up before
// its strategy schedules it.
func NewAgentCore(engine *MatchingEngine) *AgentCore {
	a := &AgentCore{engine: engine, nextActTime: -1}
	a.id = engine.registerAgent(a)
	return a
}

// Core satisfies the Agent interface for embedders.
func (a *AgentCore) Core() *AgentCore { return a }

// ID is the agent's engine-scoped identity.
func (a *AgentCore) ID() AgentID { return a.id }

// NextActTime is the tick at which the controller will next activate the
// agent.
func (a *AgentCore) NextActTime() int64 { return a.nextActTime }

// SetNextActTime schedules the agent's next activation.
func (a *AgentCore) SetNextActTime(t int64) { a.nextActTime = t }

// WillAct reports whether the agent wants another immediate sub-step this
// tick.
func (a *AgentCore) WillAct() bool { return a.willAct }

// SetWillAct sets or clears the continue flag. The controller sets it before
// activation; the agent clears it when done for the tick.
func (a *AgentCore) SetWillAct(act bool) { a.willAct = act }

// Inventory is the running signed share count: positive when the agent has
// bought more than it has sold.
func (a *AgentCore) Inventory() int64 { return a.inventory }

// LastOrderTraded reports whether any of the agent's orders participated in
// a trade since the flag was last cleared.
func (a *AgentCore) LastOrderTraded() bool { return a.lastOrderTraded }

// ClearLastOrderTraded resets the trade notification flag.
func (a *AgentCore) ClearLastOrderTraded() { a.lastOrderTraded = false }

// applyExecution is called by the engine, after matching completes, for each
// fill touching one of this agent's orders.
func (a *AgentCore) applyExecution(ex Execution) {
	a.lastOrderTraded = true
	a.inventory += ex.Volume
}

// SubmitLimit creates a limit order. Reports whether it traded immediately.
func (a *AgentCore) SubmitLimit(price, qty int64, side Side) (*Order, bool, error) {
	return a.engine.CreateOrder(a.id, price, qty, side)
}

// SubmitMarket sweeps a market order; returns the volume filled.
func (a *AgentCore) SubmitMarket(qty int64, side Side) (int64, error) {
	return a.engine.TradeMarketOrder(a.id, qty, side)
}

// Cancel removes one of the agent's resting orders.
func (a *AgentCore) Cancel(o *Order) error { return a.engine.CancelOrder(o) }

// Modify changes price and quantity of a resting order and re-evaluates it
// for a trade. Reports whether the modification traded.
func (a *AgentCore) Modify(o *Order, newPrice, newQty int64) (bool, error) {
	return a.engine.ModifyOrder(o, newPrice, newQty)
}

// CancelAllBuys removes all of the agent's resting buy orders.
func (a *AgentCore) CancelAllBuys() { a.engine.CancelAllBuyOrders(a.id) }

// CancelAllSells removes all of the agent's resting sell orders.
func (a *AgentCore) CancelAllSells() { a.engine.CancelAllSellOrders(a.id) }

// HasOrders reports whether the agent has any live orders.
func (a *AgentCore) HasOrders() bool { return a.engine.AgentHasOrders(a.id) }

// OpenOrderCount returns the number of live orders the agent owns.
func (a *AgentCore) OpenOrderCount() int { return a.engine.AgentOrderCount(a.id) }

// RandomOrder picks one of the agent's live orders uniformly, or nil.
func (a *AgentCore) RandomOrder() *Order { return a.engine.RandomOrder(a.id) }

// OldestOrder returns the agent's longest-lived order, or nil.
func (a *AgentCore) OldestOrder() *Order { return a.engine.OldestOrder(a.id) }

// Now is the current simulated tick.
func (a *AgentCore) Now() int64 { return a.engine.Time() }

// BuyPrice is the configured reference price.
func (a *AgentCore) BuyPrice() int64 { return a.engine.BuyPrice() }

// TickSize is the configured price granularity.
func (a *AgentCore) TickSize() int64 { return a.engine.TickSize() }

// StartupTicks is the configured starting-period length.
func (a *AgentCore) StartupTicks() int64 { return a.engine.StartupTicks() }

// BestBid is the top resting buy order, if any.
func (a *AgentCore) BestBid() (*Order, bool) { return a.engine.BestBid() }

// BestAsk is the top resting sell order, if any.
func (a *AgentCore) BestAsk() (*Order, bool) { return a.engine.BestAsk() }

// LastTradePrice is the price of the most recent trade.
func (a *AgentCore) LastTradePrice() int64 { return a.engine.LastTradePrice() }

// MovingAverage is the engine's midpoint moving average; false before any
// sample exists.
func (a *AgentCore) MovingAverage() (int64, bool) { return a.engine.MovingAverage() }

// LastAggressiveBuyVolume is last tick's buy-side aggressor volume.
func (a *AgentCore) LastAggressiveBuyVolume() int64 { return a.engine.LastAggressiveBuyVolume() }

// LastAggressiveSellVolume is last tick's sell-side aggressor volume.
func (a *AgentCore) LastAggressiveSellVolume() int64 { return a.engine.LastAggressiveSellVolume() }

// Midpoint is the current bid/ask midpoint; false when either side is empty.
func (a *AgentCore) Midpoint() (int64, bool) {
	bid, ok := a.engine.BestBid()
	if !ok {
		return 0, false
	}
	ask, ok := a.engine.BestAsk()
	if !ok {
		return 0, false
	}
	return (bid.Price() + ask.Price()) / 2, true
}
