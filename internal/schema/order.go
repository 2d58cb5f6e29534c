package schema

// Priority orders admission servicing. Lower values are serviced first.
type Priority uint16

const (
	// PriorityKillSwitch is reserved for kill-switch liquidation orders.
	// It is the only priority that bypasses the admission gate.
	PriorityKillSwitch Priority = iota
	PriorityStrategyExit
	PriorityStrategyEntry
	PriorityManual
	PriorityAdjustment
)

func (p Priority) String() string {
	switch p {
	case PriorityKillSwitch:
		return "KILL_SWITCH"
	case PriorityStrategyExit:
		return "STRATEGY_EXIT"
	case PriorityStrategyEntry:
		return "STRATEGY_ENTRY"
	case PriorityManual:
		return "MANUAL"
	case PriorityAdjustment:
		return "ADJUSTMENT"
	default:
		return "UNKNOWN"
	}
}

// OrderRequest is an immutable order submission. CorrelationID ties the
// request to the decision that produced it and keys duplicate detection.
type OrderRequest struct {
	Token         InstrumentToken
	Symbol        string
	Venue         string
	Side          OrderSide
	Kind          OrderKind
	Qty           Quantity
	Price         Price
	TriggerPrice  Price
	Product       ProductType
	CorrelationID string
	// GroupID links the request to its journaled execution group.
	// Empty for single-leg submissions.
	GroupID string
}

// PrioritizedOrder pairs a request with its admission priority.
type PrioritizedOrder struct {
	Request  OrderRequest
	Priority Priority
}
