// Package killswitch orchestrates the emergency-stop sequence: halt
// admission, pause strategies, cancel resting orders, flatten
// positions. Each step is best-effort and isolated so one failure
// never blocks the steps after it.
package killswitch

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/yanun0323/logs"

	"main/internal/audit"
	"main/internal/broker"
	"main/internal/order"
	"main/internal/schema"
)

// Result is the outcome of one activation attempt.
type Result struct {
	Success         bool
	Reason          string
	PositionsClosed int
}

// Pauser sweeps live strategies into PAUSED.
type Pauser interface {
	PauseAll() int
}

// Router is the admission surface the kill switch drives: the gate
// toggles plus order submission for liquidation legs.
type Router interface {
	ActivateKillSwitch()
	DeactivateKillSwitch()
	Route(req schema.OrderRequest, priority schema.Priority) order.Result
}

// Service owns the process-wide kill-switch state.
type Service struct {
	mu     sync.Mutex
	active bool
	reason string

	engine   Pauser
	router   Router
	broker   broker.Broker
	recorder audit.Recorder
}

// NewService wires the kill switch to its collaborators.
func NewService(engine Pauser, router Router, b broker.Broker, recorder audit.Recorder) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Service{
		engine:   engine,
		router:   router,
		broker:   b,
		recorder: recorder,
	}
}

// Activate runs the emergency-stop sequence. A second activation while
// already active fails immediately and changes nothing.
func (s *Service) Activate(ctx context.Context, reason string) Result {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return Result{Reason: "kill switch already active"}
	}
	s.active = true
	s.reason = reason
	// Halting admission happens under the same critical section as the
	// flag flip: once Activate returns, no non-bypass order can pass
	// the gate, regardless of how the later steps go.
	s.router.ActivateKillSwitch()
	s.mu.Unlock()

	logs.Warnf("kill switch activated: %s", reason)
	s.record("ACTIVATE", "ENGAGED", reason, audit.SeverityCritical)

	paused := s.engine.PauseAll()
	logs.Warnf("kill switch paused %d strategies", paused)

	s.cancelOpenOrders(ctx)
	closed := s.closePositions(ctx, uuid.NewString()[:8])

	s.record("ACTIVATE", "COMPLETED", fmt.Sprintf("paused=%d closed=%d", paused, closed), audit.SeverityCritical)
	return Result{Success: true, PositionsClosed: closed}
}

// Deactivate re-enables admission. Paused strategies stay paused;
// resuming them is a separate operator action.
func (s *Service) Deactivate() {
	s.mu.Lock()
	s.active = false
	s.reason = ""
	s.router.DeactivateKillSwitch()
	s.mu.Unlock()
	logs.Infof("kill switch deactivated")
	s.record("DEACTIVATE", "CLEARED", "", audit.SeverityWarn)
}

// IsActive reports the kill-switch state.
func (s *Service) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ActivationReason returns why the switch was last engaged.
func (s *Service) ActivationReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// PauseAllStrategies sweeps strategies without engaging the switch.
func (s *Service) PauseAllStrategies() int {
	return s.engine.PauseAll()
}

func (s *Service) cancelOpenOrders(ctx context.Context) {
	orders, err := s.broker.OpenOrders(ctx)
	if err != nil {
		logs.Errorf("kill switch: fetch open orders, err: %+v", err)
		return
	}
	for _, o := range orders {
		if err := s.broker.CancelOrder(ctx, o.BrokerOrderID); err != nil {
			logs.Errorf("kill switch: cancel order %s, err: %+v", o.BrokerOrderID, err)
			continue
		}
	}
	logs.Warnf("kill switch requested cancellation of %d orders", len(orders))
}

// closePositions flattens every non-flat position at the bypass
// priority. The activation nonce keeps the correlation ids distinct
// across activations so the session dedupe guard never blocks a
// re-liquidation after an earlier attempt failed at the broker.
func (s *Service) closePositions(ctx context.Context, nonce string) int {
	positions, err := s.broker.Positions(ctx)
	if err != nil {
		logs.Errorf("kill switch: fetch positions, err: %+v", err)
		return 0
	}
	closed := 0
	for _, p := range positions {
		if p.Qty == 0 {
			continue
		}
		side := schema.OrderSideSell
		qty := p.Qty
		if qty < 0 {
			side = schema.OrderSideBuy
			qty = -qty
		}
		req := schema.OrderRequest{
			Token:         p.Token,
			Symbol:        p.Symbol,
			Venue:         p.Venue,
			Side:          side,
			Kind:          schema.OrderKindMarket,
			Qty:           qty,
			Product:       schema.ProductIntraday,
			CorrelationID: fmt.Sprintf("killswitch-%s-close-%s", nonce, p.PositionID),
		}
		res := s.router.Route(req, schema.PriorityKillSwitch)
		if !res.Accepted {
			logs.Errorf("kill switch: close position %s rejected: %s", p.PositionID, res.Reason)
			continue
		}
		closed++
	}
	return closed
}

func (s *Service) record(kind, outcome, reasoning string, severity audit.Severity) {
	s.recorder.Record(audit.Entry{
		Source:    "kill-switch",
		Kind:      kind,
		Outcome:   outcome,
		Reasoning: reasoning,
		Severity:  severity,
	})
}
