package strategy

import "errors"

var (
	ErrDuplicateStrategy = errors.New("strategy already exists")
	ErrUnknownStrategy   = errors.New("strategy not found")
	ErrInvalidTransition = errors.New("invalid strategy status transition")
	ErrNotClosed         = errors.New("strategy is not closed")
	ErrNotActive         = errors.New("strategy is not active")
	ErrUnknownType       = errors.New("unknown strategy type")
)

// Status tracks the lifecycle of a deployed strategy.
type Status uint16

const (
	StatusUnknown Status = iota
	StatusCreated
	StatusArmed
	StatusActive
	StatusPaused
	StatusClosing
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "CREATED"
	case StatusArmed:
		return "ARMED"
	case StatusActive:
		return "ACTIVE"
	case StatusPaused:
		return "PAUSED"
	case StatusClosing:
		return "CLOSING"
	case StatusClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the status permits removal from the registry.
func (s Status) Terminal() bool {
	return s == StatusClosed
}

// Evaluable reports whether the strategy receives ticks in this status.
func (s Status) Evaluable() bool {
	return s == StatusArmed || s == StatusActive
}

// CanTransition reports whether moving from one status to another is a
// legal lifecycle step. A closed strategy never re-enters the machine.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusCreated:
		return to == StatusArmed
	case StatusArmed:
		return to == StatusActive || to == StatusPaused || to == StatusClosing
	case StatusActive:
		return to == StatusPaused || to == StatusClosing
	case StatusPaused:
		return to == StatusActive || to == StatusClosing
	case StatusClosing:
		return to == StatusClosed
	default:
		return false
	}
}
