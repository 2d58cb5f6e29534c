package broker

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"main/internal/schema"
)

var ErrSimFailure = errors.New("simulated broker failure")

// Sim is an in-memory broker for tests and paper trading. Failures can
// be injected per call kind to exercise best-effort paths.
type Sim struct {
	mu        sync.Mutex
	placed    []schema.PrioritizedOrder
	open      map[string]OpenOrder
	positions map[string]Position
	canceled  []string

	FailPlace   bool
	FailCancel  map[string]bool
	FailFetches bool
}

// NewSim creates an empty simulated broker.
func NewSim() *Sim {
	return &Sim{
		open:       make(map[string]OpenOrder),
		positions:  make(map[string]Position),
		FailCancel: make(map[string]bool),
	}
}

func (s *Sim) PlaceOrder(_ context.Context, po schema.PrioritizedOrder) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPlace {
		return "", ErrSimFailure
	}
	id := uuid.NewString()
	s.placed = append(s.placed, po)
	if po.Request.Kind != schema.OrderKindMarket {
		s.open[id] = OpenOrder{
			BrokerOrderID: id,
			Token:         po.Request.Token,
			Symbol:        po.Request.Symbol,
			Side:          po.Request.Side,
			Qty:           po.Request.Qty,
		}
	}
	return id, nil
}

func (s *Sim) CancelOrder(_ context.Context, brokerOrderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCancel[brokerOrderID] {
		return ErrSimFailure
	}
	delete(s.open, brokerOrderID)
	s.canceled = append(s.canceled, brokerOrderID)
	return nil
}

func (s *Sim) Positions(_ context.Context) ([]Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailFetches {
		return nil, ErrSimFailure
	}
	out := make([]Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	return out, nil
}

func (s *Sim) OpenOrders(_ context.Context) ([]OpenOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailFetches {
		return nil, ErrSimFailure
	}
	out := make([]OpenOrder, 0, len(s.open))
	for _, o := range s.open {
		out = append(out, o)
	}
	return out, nil
}

// SeedPosition installs an open position.
func (s *Sim) SeedPosition(p Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[p.PositionID] = p
}

// SeedOpenOrder installs a resting order and returns its id.
func (s *Sim) SeedOpenOrder(o OpenOrder) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.BrokerOrderID == "" {
		o.BrokerOrderID = uuid.NewString()
	}
	s.open[o.BrokerOrderID] = o
	return o.BrokerOrderID
}

// Placed returns every order handed to the broker, in call order.
func (s *Sim) Placed() []schema.PrioritizedOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schema.PrioritizedOrder, len(s.placed))
	copy(out, s.placed)
	return out
}

// Canceled returns the ids of every cancelled order, in call order.
func (s *Sim) Canceled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.canceled))
	copy(out, s.canceled)
	return out
}
