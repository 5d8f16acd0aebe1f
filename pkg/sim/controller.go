package sim

import (
	"math/rand"

	"go.uber.org/zap"
)

// State is the controller's position in the simulated session.
type State uint8

const (
	// WarmingUp runs before the configured startup tick; the engine
	// suppresses trades.
	WarmingUp State = iota
	// Trading runs from the startup tick until the end tick.
	Trading
	// Finished is reached when the clock hits the end tick.
	Finished
)

func (s State) String() string {
	switch s {
	case WarmingUp:
		return "warming-up"
	case Trading:
		return "trading"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Level is one aggregated price level of a book snapshot.
type Level struct {
	Price int64 `json:"price"`
	Qty   int64 `json:"qty"`
}

// Snapshot is the periodic read-only view the controller publishes for feeds
// and display collaborators.
type Snapshot struct {
	Time           int64   `json:"time"`
	State          string  `json:"state"`
	LastTradePrice int64   `json:"last_trade_price"`
	MovingAverage  int64   `json:"moving_average"`
	Bids           []Level `json:"bids"`
	Asks           []Level `json:"asks"`
	LastAggBuy     int64   `json:"last_aggressive_buy_volume"`
	LastAggSell    int64   `json:"last_aggressive_sell_volume"`
	// Imbalance is best-bid aggregate quantity minus best-ask aggregate
	// quantity; positive when buy pressure dominates the touch.
	Imbalance int64 `json:"imbalance"`
}

// SnapshotPublisher consumes periodic snapshots. Implementations must not
// call back into the engine.
type SnapshotPublisher interface {
	Publish(Snapshot)
}

// GroupEvent is a periodic simulation-wide event (e.g. a buy-probability
// shock applied across a strategy population). Fired by the controller
// between ticks, never mid-tick.
type GroupEvent interface {
	Fire(time int64)
}

// Controller owns simulated time and the agent population. It advances the
// clock tick by tick, activating every agent whose next-action time matches
// the current tick, in an order re-randomized on every draw.
type Controller struct {
	log    *zap.SugaredLogger
	engine *MatchingEngine

	agents []Agent

	time         int64
	startupTicks int64
	endTicks     int64
	state        State

	rng *rand.Rand

	publisher     SnapshotPublisher
	snapshotEvery int64

	shock         GroupEvent
	shockMeanGap  float64
	nextShockTime int64
}

// NewController builds a controller around an engine. The configuration must
// be the one the engine was built with.
func NewController(engine *MatchingEngine, cfg Config, log *zap.SugaredLogger) *Controller {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Controller{
		log:           log,
		engine:        engine,
		startupTicks:  cfg.StartupTicks,
		endTicks:      cfg.EndTicks,
		state:         WarmingUp,
		rng:           rand.New(rand.NewSource(cfg.Seed)),
		snapshotEvery: cfg.SnapshotEvery,
		nextShockTime: -1,
	}
}

// AddAgent registers an agent with the controller. Agents are created once
// at setup and persist for the whole run.
func (c *Controller) AddAgent(a Agent) { c.agents = append(c.agents, a) }

// SetPublisher wires the snapshot consumer.
func (c *Controller) SetPublisher(p SnapshotPublisher) { c.publisher = p }

// SetGroupEvent schedules a recurring simulation-wide event with
// exponentially distributed gaps of the given mean (in ticks). The first
// firing is scheduled one gap after the startup tick.
func (c *Controller) SetGroupEvent(ev GroupEvent, meanGapTicks float64) {
	c.shock = ev
	c.shockMeanGap = meanGapTicks
	c.nextShockTime = c.startupTicks + c.drawShockGap()
}

func (c *Controller) drawShockGap() int64 {
	gap := int64(c.rng.ExpFloat64() * c.shockMeanGap)
	if gap < 1 {
		gap = 1
	}
	return gap
}

// Time is the current simulated tick.
func (c *Controller) Time() int64 { return c.time }

// State is the current session state.
func (c *Controller) State() State { return c.state }

// Run drives the simulation to completion: warming-up ticks, then trading
// ticks, then a final sink flush. The returned error is a logging I/O
// failure; book state stays consistent regardless.
func (c *Controller) Run() error {
	c.log.Infow("simulation starting",
		"agents", len(c.agents),
		"startup_ticks", c.startupTicks,
		"end_ticks", c.endTicks,
	)

	for c.time < c.startupTicks {
		c.moveTime()
	}

	c.engine.setStartingPeriod(false)
	c.state = Trading
	c.log.Infow("trading enabled", "tick", c.time)

	for c.time < c.endTicks {
		c.moveTime()
	}

	c.state = Finished
	c.publish()
	err := c.engine.Flush()
	c.log.Infow("simulation finished", "tick", c.time, "flush_err", err)
	return err
}

// moveTime executes one tick: activate all eligible agents in random order,
// run per-tick engine maintenance, fire any due group event, advance the
// clock.
func (c *Controller) moveTime() {
	// Capture the acting set up front. An agent whose next-action time is
	// not advanced past the current tick is still not re-collected: the set
	// is fixed for the tick, only its draw order is random.
	var acting []Agent
	for _, a := range c.agents {
		if a.Core().NextActTime() == c.time {
			acting = append(acting, a)
		}
	}

	for len(acting) > 0 {
		i := c.rng.Intn(len(acting))
		a := acting[i]
		acting[i] = acting[len(acting)-1]
		acting = acting[:len(acting)-1]

		// The agent owns the loop: it runs until it clears its own flag.
		a.Core().SetWillAct(true)
		for a.Core().WillAct() {
			a.Act()
		}
	}

	if c.state == Trading {
		c.engine.StoreMovingAverage()
	}
	c.engine.Reset()

	if c.shock != nil && c.time >= c.nextShockTime {
		c.shock.Fire(c.time)
		c.nextShockTime = c.time + c.drawShockGap()
	}

	if c.snapshotEvery > 0 && c.time%c.snapshotEvery == 0 {
		c.publish()
	}

	c.time++
	c.engine.setTime(c.time)
}

func (c *Controller) publish() {
	if c.publisher == nil {
		return
	}
	c.publisher.Publish(c.snapshot())
}

func (c *Controller) snapshot() Snapshot {
	ma, _ := c.engine.MovingAverage()
	return Snapshot{
		Time:           c.time,
		State:          c.state.String(),
		LastTradePrice: c.engine.LastTradePrice(),
		MovingAverage:  ma,
		Bids:           aggregateLevels(c.engine.TopBids(marketSweepDepth)),
		Asks:           aggregateLevels(c.engine.TopAsks(marketSweepDepth)),
		LastAggBuy:     c.engine.LastAggressiveBuyVolume(),
		LastAggSell:    c.engine.LastAggressiveSellVolume(),
		Imbalance:      c.engine.BestBidQuantity() - c.engine.BestAskQuantity(),
	}
}

// aggregateLevels folds an ordered top-of-book slice into per-price levels.
func aggregateLevels(orders []*Order) []Level {
	var levels []Level
	for _, o := range orders {
		if n := len(levels); n > 0 && levels[n-1].Price == o.Price() {
			levels[n-1].Qty += o.Qty()
			continue
		}
		levels = append(levels, Level{Price: o.Price(), Qty: o.Qty()})
	}
	return levels
}
