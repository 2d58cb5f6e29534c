package strategy

import (
	"main/internal/schema"
)

// Type is the closed set of deployable strategy kinds.
type Type uint16

const (
	TypeUnknown Type = iota
	TypeShortStraddle
	TypeIronCondor
)

func (t Type) String() string {
	switch t {
	case TypeShortStraddle:
		return "SHORT_STRADDLE"
	case TypeIronCondor:
		return "IRON_CONDOR"
	default:
		return "UNKNOWN"
	}
}

// Config is the strategy-specific configuration fixed at deploy time.
type Config struct {
	// Underlying is the instrument whose ticks drive evaluation.
	Underlying schema.InstrumentToken `json:"underlying"`
	// Legs are the option contracts the strategy trades.
	Legs []LegSpec `json:"legs"`
	// QtyPerLeg is the contract quantity for each leg.
	QtyPerLeg schema.Quantity `json:"qtyPerLeg"`
	// StopBps exits when the underlying moves this many basis points
	// away from the entry reference. Zero disables the stop.
	StopBps int64 `json:"stopBps"`
	// AdjustCooldownSec throttles strategy-initiated adjustments.
	AdjustCooldownSec int64 `json:"adjustCooldownSec"`
	// EnterOnDeploy places entry orders immediately after arming.
	EnterOnDeploy bool `json:"enterOnDeploy"`
	// Product selects the margining product for all legs.
	Product schema.ProductType `json:"product"`
}

// LegSpec names one contract of a multi-leg position.
type LegSpec struct {
	Token  schema.InstrumentToken `json:"token"`
	Symbol string                 `json:"symbol"`
	Venue  string                 `json:"venue"`
	Side   schema.OrderSide       `json:"side"`
}

// Decision is one order a strategy wants routed, with its admission
// priority.
type Decision struct {
	Request  schema.OrderRequest
	Priority schema.Priority
}

// Strategy is one running trading algorithm. Lifecycle status is
// mutated only by the engine, under the strategy's write lock.
type Strategy interface {
	ID() string
	Name() string
	Type() Type
	Config() Config

	Status() Status
	SetStatus(Status)

	// EntryOrders returns the legs to open the position, one request
	// per leg, all sharing an execution-group correlation scheme.
	EntryOrders() []Decision
	// ExitOrders returns the flattening legs for everything currently
	// held.
	ExitOrders() []Decision
	// Evaluate inspects a market snapshot and returns any orders the
	// strategy wants placed. It is called with the read lock held and
	// must not block.
	Evaluate(snap schema.Snapshot) []Decision
	// OnPositionUpdate feeds one broker-side position change.
	OnPositionUpdate(update schema.PositionUpdate)
	// Adjust applies a named adjustment action, ignoring any cooldown.
	Adjust(action string) error
}
