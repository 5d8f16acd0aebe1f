package sim

import "errors"

var (
	// ErrInvalidOrder rejects a non-positive quantity or an unknown side.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrInvalidPrice rejects a price that is not a positive multiple of
	// the configured tick size.
	ErrInvalidPrice = errors.New("price not aligned to tick size")

	// ErrUnknownOrder is returned when an operation references an order the
	// engine no longer owns (double cancel, modify after full fill).
	ErrUnknownOrder = errors.New("order not found")

	// ErrUnknownAgent is returned for operations on an unregistered agent.
	ErrUnknownAgent = errors.New("agent not registered")
)
