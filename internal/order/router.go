package order

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/yanun0323/logs"

	"main/internal/audit"
	"main/internal/schema"
)

// Result is the structured outcome of one admission attempt.
type Result struct {
	Accepted bool
	OrderID  string
	Reason   string
}

// Router is the single entry point for every order. The pipeline is
// validate, then duplicate check, then kill-switch gate, then enqueue.
// The duplicate check through enqueue run under one mutex so a
// kill-switch flip is honored before any in-flight request is enqueued.
type Router struct {
	mu       sync.Mutex
	halted   bool
	queue    *Queue
	guard    Guard
	registry *schema.Registry
	recorder audit.Recorder
}

// NewRouter wires the admission pipeline.
func NewRouter(queue *Queue, guard Guard, registry *schema.Registry, recorder audit.Recorder) *Router {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Router{
		queue:    queue,
		guard:    guard,
		registry: registry,
		recorder: recorder,
	}
}

// Route runs the admission pipeline. Acceptance enqueues exactly once;
// rejection has no side effects.
func (r *Router) Route(req schema.OrderRequest, priority schema.Priority) Result {
	if reason := r.validate(req); reason != "" {
		return r.rejected(req, priority, reason)
	}

	if !r.guard.IsUnique(req) {
		return r.rejected(req, priority, fmt.Sprintf("duplicate order: %s", dedupeKey(req)))
	}

	r.mu.Lock()
	if r.halted && priority != schema.PriorityKillSwitch {
		r.mu.Unlock()
		// Release the dedupe slot so the same request may be retried
		// once admission reopens.
		r.guard.Forget(req)
		return r.rejected(req, priority, "kill switch active, order admission halted")
	}
	orderID := uuid.NewString()
	r.queue.Offer(schema.PrioritizedOrder{Request: req, Priority: priority})
	r.mu.Unlock()

	r.record(req, priority, "ACCEPTED", orderID, audit.SeverityInfo)
	return Result{Accepted: true, OrderID: orderID}
}

// ActivateKillSwitch halts admission for every non-bypass priority.
func (r *Router) ActivateKillSwitch() {
	r.mu.Lock()
	r.halted = true
	r.mu.Unlock()
	logs.Warnf("order router: kill switch engaged, admission halted")
}

// DeactivateKillSwitch re-enables normal admission.
func (r *Router) DeactivateKillSwitch() {
	r.mu.Lock()
	r.halted = false
	r.mu.Unlock()
	logs.Infof("order router: kill switch released, admission restored")
}

// KillSwitchActive reports the admission gate state.
func (r *Router) KillSwitchActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.halted
}

func (r *Router) validate(req schema.OrderRequest) string {
	if req.Token == 0 {
		return "invalid order: instrument token is zero"
	}
	if r.registry != nil {
		if _, ok := r.registry.Instrument(req.Token); !ok {
			return fmt.Sprintf("invalid order: unknown instrument token %d", req.Token)
		}
	}
	if req.Symbol == "" {
		return "invalid order: trading symbol is empty"
	}
	if req.Side != schema.OrderSideBuy && req.Side != schema.OrderSideSell {
		return "invalid order: side is unknown"
	}
	if req.Qty <= 0 {
		return "invalid order: quantity must be positive"
	}
	switch req.Kind {
	case schema.OrderKindLimit:
		if req.Price <= 0 {
			return "invalid order: limit price must be positive"
		}
	case schema.OrderKindStopLimit:
		if req.Price <= 0 || req.TriggerPrice <= 0 {
			return "invalid order: stop-limit needs limit and trigger prices"
		}
	case schema.OrderKindMarket:
	default:
		return "invalid order: kind is unknown"
	}
	return ""
}

func (r *Router) rejected(req schema.OrderRequest, priority schema.Priority, reason string) Result {
	r.record(req, priority, "REJECTED", reason, audit.SeverityWarn)
	return Result{Reason: reason}
}

func (r *Router) record(req schema.OrderRequest, priority schema.Priority, outcome, reasoning string, severity audit.Severity) {
	r.recorder.Record(audit.Entry{
		Source:    "order-router",
		SourceID:  req.CorrelationID,
		Kind:      "ORDER_ADMISSION",
		Outcome:   outcome,
		Reasoning: reasoning,
		Context:   fmt.Sprintf("%s %s %s x%d prio=%s", req.Symbol, req.Side, req.Kind, req.Qty, priority),
		Severity:  severity,
	})
}
