package sim

import (
	"math/rand"
	"testing"
)

// scriptedAgent runs a caller-supplied step function.
type scriptedAgent struct {
	*AgentCore
	step func(a *scriptedAgent)
}

func (a *scriptedAgent) Act() { a.step(a) }

// randomTrader is a minimal self-scheduling strategy used to drive
// whole-run tests deterministically from its private seed.
type randomTrader struct {
	*AgentCore
	rng *rand.Rand
}

func newRandomTrader(e *MatchingEngine, seed int64) *randomTrader {
	a := &randomTrader{AgentCore: NewAgentCore(e), rng: rand.New(rand.NewSource(seed))}
	a.SetNextActTime(int64(a.rng.Intn(5)))
	return a
}

func (a *randomTrader) Act() {
	defer func() {
		a.SetNextActTime(a.Now() + 1 + int64(a.rng.Intn(4)))
		a.SetWillAct(false)
	}()

	side := Sell
	if a.rng.Float64() < 0.5 {
		side = Buy
	}
	price := a.BuyPrice() + int64(a.rng.Intn(5)-2)*a.TickSize()
	if a.rng.Float64() < 0.15 {
		_, _ = a.SubmitMarket(1+int64(a.rng.Intn(2)), side)
		return
	}
	_, _, _ = a.SubmitLimit(price, 1+int64(a.rng.Intn(3)), side)
	if a.rng.Float64() < 0.2 {
		if o := a.RandomOrder(); o != nil {
			_ = a.Cancel(o)
		}
	}
}

func TestControllerStateTransitions(t *testing.T) {
	cfg := testConfig()
	cfg.StartupTicks = 5
	cfg.EndTicks = 12

	e, err := NewMatchingEngine(cfg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	c := NewController(e, cfg, nil)

	var seen []State
	probe := &scriptedAgent{AgentCore: NewAgentCore(e)}
	probe.step = func(a *scriptedAgent) {
		seen = append(seen, c.State())
		a.SetNextActTime(a.Now() + 3)
		a.SetWillAct(false)
	}
	probe.SetNextActTime(0)
	c.AddAgent(probe)

	if c.State() != WarmingUp {
		t.Fatal("controller must start warming up")
	}
	if err := c.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if c.State() != Finished {
		t.Fatalf("state = %v, want Finished", c.State())
	}
	if c.Time() != cfg.EndTicks {
		t.Fatalf("time = %d, want %d", c.Time(), cfg.EndTicks)
	}
	// Activations at ticks 0,3 are warming up; 6,9 are trading.
	want := []State{WarmingUp, WarmingUp, Trading, Trading}
	if len(seen) != len(want) {
		t.Fatalf("activations = %d, want %d", len(seen), len(want))
	}
	for i, s := range want {
		if seen[i] != s {
			t.Errorf("activation %d in state %v, want %v", i, seen[i], s)
		}
	}
}

func TestContinueFlagLoop(t *testing.T) {
	cfg := testConfig()
	cfg.StartupTicks = 1
	cfg.EndTicks = 2

	e, _ := NewMatchingEngine(cfg, nil, nil)
	c := NewController(e, cfg, nil)

	calls := 0
	agent := &scriptedAgent{AgentCore: NewAgentCore(e)}
	agent.step = func(a *scriptedAgent) {
		calls++
		if calls == 3 {
			// Done for the tick: clear the flag, schedule past the run.
			a.SetWillAct(false)
			a.SetNextActTime(100)
		}
		// Otherwise leave the flag set to request another sub-step.
	}
	agent.SetNextActTime(0)
	c.AddAgent(agent)

	if err := c.Run(); err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Fatalf("act calls = %d, want 3 (agent-controlled loop)", calls)
	}
}

func TestAgentNotRecollectedSameTick(t *testing.T) {
	cfg := testConfig()
	cfg.StartupTicks = 1
	cfg.EndTicks = 2

	e, _ := NewMatchingEngine(cfg, nil, nil)
	c := NewController(e, cfg, nil)

	calls := 0
	agent := &scriptedAgent{AgentCore: NewAgentCore(e)}
	agent.step = func(a *scriptedAgent) {
		calls++
		// Clear the flag but leave nextActTime at the current tick: the
		// acting set was captured up front, so no re-collection happens.
		a.SetWillAct(false)
	}
	agent.SetNextActTime(0)
	c.AddAgent(agent)

	if err := c.Run(); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("act calls = %d, want 1 (no same-tick re-collection)", calls)
	}
}

// runOnce executes a full simulation with a fresh engine and population and
// returns the captured log lines.
func runOnce(t *testing.T, seed int64) []string {
	t.Helper()
	cfg := testConfig()
	cfg.StartupTicks = 20
	cfg.EndTicks = 200
	cfg.Seed = seed

	sink := &captureSink{}
	e, err := NewMatchingEngine(cfg, sink, nil)
	if err != nil {
		t.Fatal(err)
	}
	c := NewController(e, cfg, nil)
	for i := int64(0); i < 8; i++ {
		c.AddAgent(newRandomTrader(e, seed*31+i))
	}
	if err := c.Run(); err != nil {
		t.Fatal(err)
	}
	return sink.lines
}

func TestDeterministicReplay(t *testing.T) {
	first := runOnce(t, 99)
	second := runOnce(t, 99)

	if len(first) == 0 {
		t.Fatal("run produced no log lines")
	}
	if len(first) != len(second) {
		t.Fatalf("log lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("logs diverge at line %d:\n  %s\n  %s", i, first[i], second[i])
		}
	}

	other := runOnce(t, 100)
	same := len(other) == len(first)
	if same {
		for i := range first {
			if first[i] != other[i] {
				same = false
				break
			}
		}
	}
	if same {
		t.Error("different seeds produced identical logs; draw order is not seeded")
	}
}

func TestGroupEventFiresBetweenTicks(t *testing.T) {
	cfg := testConfig()
	cfg.StartupTicks = 5
	cfg.EndTicks = 50

	e, _ := NewMatchingEngine(cfg, nil, nil)
	c := NewController(e, cfg, nil)

	fires := 0
	c.SetGroupEvent(groupEventFunc(func(int64) { fires++ }), 4)

	if err := c.Run(); err != nil {
		t.Fatal(err)
	}
	if fires == 0 {
		t.Fatal("group event never fired")
	}
}

type groupEventFunc func(int64)

func (f groupEventFunc) Fire(t int64) { f(t) }

func TestSnapshotPublishing(t *testing.T) {
	cfg := testConfig()
	cfg.StartupTicks = 2
	cfg.EndTicks = 10
	cfg.SnapshotEvery = 3

	e, _ := NewMatchingEngine(cfg, nil, nil)
	c := NewController(e, cfg, nil)

	maker := &scriptedAgent{AgentCore: NewAgentCore(e)}
	maker.step = func(a *scriptedAgent) {
		_, _, _ = a.SubmitLimit(975, 2, Buy)
		_, _, _ = a.SubmitLimit(1025, 3, Sell)
		a.SetNextActTime(100)
		a.SetWillAct(false)
	}
	maker.SetNextActTime(0)
	c.AddAgent(maker)

	var snaps []Snapshot
	c.SetPublisher(publisherFunc(func(s Snapshot) { snaps = append(snaps, s) }))

	if err := c.Run(); err != nil {
		t.Fatal(err)
	}
	if len(snaps) == 0 {
		t.Fatal("no snapshots published")
	}
	last := snaps[len(snaps)-1]
	if last.State != Finished.String() {
		t.Errorf("final snapshot state = %q, want %q", last.State, Finished)
	}
	if len(last.Bids) != 1 || last.Bids[0].Qty != 2 {
		t.Errorf("final snapshot bids = %+v, want one level of qty 2", last.Bids)
	}
	if last.Imbalance != 2-3 {
		t.Errorf("imbalance = %d, want -1", last.Imbalance)
	}
}

type publisherFunc func(Snapshot)

func (f publisherFunc) Publish(s Snapshot) { f(s) }
