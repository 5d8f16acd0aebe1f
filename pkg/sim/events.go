package sim

import "strconv"

// CSV message type codes, kept compatible with the existing analysis tooling.
const (
	MsgNew    = 1
	MsgModify = 2
	MsgCancel = 3
	MsgTrade  = 105
)

// EventSink receives order, trade, and log-line events from the engine.
// Calls are fire-and-forget: the engine never inspects results, and sink
// failures must not corrupt book state. Flush is invoked once at run end.
type EventSink interface {
	// OnOrderEvent reports a depth change: volume is signed (negative for
	// removals) at the given price on the given side.
	OnOrderEvent(side Side, volume int64, price int64)

	// OnTrade reports a trade at price, with simulated time in seconds.
	OnTrade(seconds float64, price int64)

	// OnLogLine receives one CSV record. Column order: time, agent id,
	// message type, side, order id, original qty, price, order type,
	// leaves qty, then for trades: trade price, volume, aggressor, trade id.
	OnLogLine(fields []string)

	Flush() error
}

// NopSink discards all events. Used when no logging collaborator is wired.
type NopSink struct{}

func (NopSink) OnOrderEvent(Side, int64, int64) {}
func (NopSink) OnTrade(float64, int64)          {}
func (NopSink) OnLogLine([]string)              {}
func (NopSink) Flush() error                    { return nil }

// MultiSink fans events out to several sinks. Flush returns the first error
// but still flushes every sink.
type MultiSink []EventSink

func (m MultiSink) OnOrderEvent(side Side, volume, price int64) {
	for _, s := range m {
		s.OnOrderEvent(side, volume, price)
	}
}

func (m MultiSink) OnTrade(seconds float64, price int64) {
	for _, s := range m {
		s.OnTrade(seconds, price)
	}
}

func (m MultiSink) OnLogLine(fields []string) {
	for _, s := range m {
		s.OnLogLine(fields)
	}
}

func (m MultiSink) Flush() error {
	var first error
	for _, s := range m {
		if err := s.Flush(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Execution is one agent-visible fill: signed volume (positive = bought) at
// a price. The engine applies executions to agent state after matching
// completes, never mid-match.
type Execution struct {
	Agent  AgentID
	Volume int64
	Price  int64
}

// centsString formats a cents price as a decimal currency amount for the log.
func centsString(cents int64) string {
	return strconv.FormatFloat(float64(cents)/100.0, 'f', -1, 64)
}
