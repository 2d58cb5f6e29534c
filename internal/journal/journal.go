// Package journal records multi-leg execution groups in a
// write-ahead fashion: a group's entry is durably persisted before the
// first leg of the group is handed to the broker, so an unclean
// shutdown leaves a visible IN_PROGRESS row for every operation whose
// broker-side extent is unknown.
package journal

import (
	"errors"
	"time"

	"main/internal/schema"
)

var (
	ErrUnknownGroup   = errors.New("execution group not found")
	ErrDuplicateGroup = errors.New("execution group already journaled")
)

// Status is the journal state of one execution group.
type Status uint16

const (
	StatusUnknown Status = iota
	StatusInProgress
	StatusRequiresRecovery
	StatusCompleted
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "IN_PROGRESS"
	case StatusRequiresRecovery:
		return "REQUIRES_RECOVERY"
	case StatusCompleted:
		return "COMPLETED"
	case StatusAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the executor has resolved the group.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAborted
}

// Leg is one order of an execution group.
type Leg struct {
	Token         schema.InstrumentToken `json:"token"`
	Symbol        string                 `json:"symbol"`
	Side          schema.OrderSide       `json:"side"`
	Qty           schema.Quantity        `json:"qty"`
	CorrelationID string                 `json:"correlationId"`
}

// Entry is the journaled record of one execution group.
type Entry struct {
	GroupID    string    `json:"groupId"`
	StrategyID string    `json:"strategyId"`
	Status     Status    `json:"status"`
	Legs       []Leg     `json:"legs"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Store persists journal entries. Append must not return until the
// entry is durable.
type Store interface {
	Append(e Entry) error
	UpdateStatus(groupID string, status Status) error
	Get(groupID string) (Entry, error)
	ListByStatus(statuses ...Status) ([]Entry, error)
	Close() error
}
