// Package agents ships example strategies used by cmd/sim to exercise a full
// run. They are collaborators of the core, not part of it: the engine and
// controller only see the sim.Agent interface.
package agents

import (
	"math/rand"

	"marketsim/pkg/sim"
)

// expGap draws an exponentially distributed activation gap with the given
// mean, at least one tick, so agents always advance past the current tick.
func expGap(rng *rand.Rand, mean float64) int64 {
	gap := int64(rng.ExpFloat64() * mean)
	if gap < 1 {
		gap = 1
	}
	return gap
}

// LiquidityProvider keeps two-sided quotes resting around the last trade
// price, cancelling stale orders as it goes. Activation gaps are Poisson
// style: exponentially distributed with a configured mean.
type LiquidityProvider struct {
	*sim.AgentCore

	rng        *rand.Rand
	meanGap    float64
	quoteQty   int64
	spreadTick int64 // quote offset from last trade price, in ticks
	maxOrders  int
}

// NewLiquidityProvider registers a provider with the engine. The seed keys
// the agent's private randomness; cmd/sim derives it from the run seed and
// the agent index so runs stay reproducible.
func NewLiquidityProvider(engine *sim.MatchingEngine, seed int64, meanGap float64) *LiquidityProvider {
	a := &LiquidityProvider{
		AgentCore:  sim.NewAgentCore(engine),
		rng:        rand.New(rand.NewSource(seed)),
		meanGap:    meanGap,
		quoteQty:   2,
		spreadTick: 2,
		maxOrders:  8,
	}
	a.SetNextActTime(expGap(a.rng, meanGap))
	return a
}

func (a *LiquidityProvider) Act() {
	defer func() {
		a.SetNextActTime(a.Now() + expGap(a.rng, a.meanGap))
		a.SetWillAct(false)
	}()

	// Trim the oldest quote once the book of own orders is deep enough.
	if a.HasOrders() && a.rng.Float64() < 0.3 {
		if o := a.OldestOrder(); o != nil {
			_ = a.Cancel(o)
		}
	}
	if a.OpenOrderCount() >= a.maxOrders {
		if o := a.OldestOrder(); o != nil {
			_ = a.Cancel(o)
		}
	}

	ref := a.LastTradePrice()
	tick := a.TickSize()
	offset := (1 + a.rng.Int63n(a.spreadTick)) * tick

	bid := ref - offset
	ask := ref + offset
	if bid <= 0 {
		bid = tick
	}
	_, _, _ = a.SubmitLimit(bid, a.quoteQty, sim.Buy)
	_, _, _ = a.SubmitLimit(ask, a.quoteQty, sim.Sell)
}

// NoiseTrader submits small one-off orders: usually a limit order near the
// last trade price, occasionally a market order. Its buy probability is
// shared population state, shifted by SentimentShock firings.
type NoiseTrader struct {
	*sim.AgentCore

	rng     *rand.Rand
	meanGap float64
	buyProb float64
}

func NewNoiseTrader(engine *sim.MatchingEngine, seed int64, meanGap float64) *NoiseTrader {
	a := &NoiseTrader{
		AgentCore: sim.NewAgentCore(engine),
		rng:       rand.New(rand.NewSource(seed)),
		meanGap:   meanGap,
		buyProb:   0.5,
	}
	a.SetNextActTime(expGap(a.rng, meanGap))
	return a
}

func (a *NoiseTrader) Act() {
	defer func() {
		a.SetNextActTime(a.Now() + expGap(a.rng, a.meanGap))
		a.SetWillAct(false)
	}()

	side := sim.Sell
	if a.rng.Float64() < a.buyProb {
		side = sim.Buy
	}
	qty := 1 + a.rng.Int63n(3)

	// A market order every so often keeps aggressor flow in the tape.
	if a.rng.Float64() < 0.1 {
		_, _ = a.SubmitMarket(qty, side)
		return
	}

	tick := a.TickSize()
	drift := a.rng.Int63n(4) * tick
	price := a.LastTradePrice()
	if side == sim.Buy {
		price -= drift
	} else {
		price += drift
	}
	if price <= 0 {
		price = tick
	}
	if _, traded, _ := a.SubmitLimit(price, qty, side); traded {
		return
	}

	// Drop a stale order now and then so inventory of quotes stays bounded.
	if a.rng.Float64() < 0.2 {
		if o := a.RandomOrder(); o != nil {
			_ = a.Cancel(o)
		}
	}
}

// SentimentShock is a periodic group-wide event: each firing redraws the
// shared buy probability across the whole noise-trader population.
type SentimentShock struct {
	rng     *rand.Rand
	traders []*NoiseTrader
}

func NewSentimentShock(seed int64, traders []*NoiseTrader) *SentimentShock {
	return &SentimentShock{
		rng:     rand.New(rand.NewSource(seed)),
		traders: traders,
	}
}

// Fire implements sim.GroupEvent.
func (s *SentimentShock) Fire(time int64) {
	p := 0.2 + 0.6*s.rng.Float64()
	for _, t := range s.traders {
		t.buyProb = p
	}
}

var (
	_ sim.Agent      = (*LiquidityProvider)(nil)
	_ sim.Agent      = (*NoiseTrader)(nil)
	_ sim.GroupEvent = (*SentimentShock)(nil)
)
