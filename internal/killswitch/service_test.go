package killswitch

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/broker"
	"main/internal/order"
	"main/internal/schema"
)

// fakePauser records sweep calls.
type fakePauser struct {
	mu     sync.Mutex
	calls  int
	paused int
}

func (p *fakePauser) PauseAll() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.paused
}

func (p *fakePauser) sweeps() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// fakeRouter records gate flips and routed liquidation legs. With
// dedupe set it rejects repeated correlation ids for the life of the
// fake, mirroring the session guard in the admission pipeline.
type fakeRouter struct {
	mu        sync.Mutex
	halted    bool
	routed    []schema.PrioritizedOrder
	rejectAll bool
	dedupe    bool
	seen      map[string]bool
}

func (r *fakeRouter) ActivateKillSwitch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.halted = true
}

func (r *fakeRouter) DeactivateKillSwitch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.halted = false
}

func (r *fakeRouter) Route(req schema.OrderRequest, priority schema.Priority) order.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rejectAll {
		return order.Result{Reason: "rejected"}
	}
	if r.dedupe {
		if r.seen == nil {
			r.seen = make(map[string]bool)
		}
		if r.seen[req.CorrelationID] {
			return order.Result{Reason: "duplicate order: " + req.CorrelationID}
		}
		r.seen[req.CorrelationID] = true
	}
	r.routed = append(r.routed, schema.PrioritizedOrder{Request: req, Priority: priority})
	return order.Result{Accepted: true, OrderID: "ok"}
}

func (r *fakeRouter) gateHalted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.halted
}

func (r *fakeRouter) orders() []schema.PrioritizedOrder {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]schema.PrioritizedOrder, len(r.routed))
	copy(out, r.routed)
	return out
}

func newTestService(paused int) (*Service, *fakePauser, *fakeRouter, *broker.Sim) {
	pauser := &fakePauser{paused: paused}
	router := &fakeRouter{}
	sim := broker.NewSim()
	return NewService(pauser, router, sim, nil), pauser, router, sim
}

func TestActivateRunsFullSequence(t *testing.T) {
	svc, pauser, router, sim := newTestService(2)
	restingID := sim.SeedOpenOrder(broker.OpenOrder{Token: 10100, Symbol: "NIFTY24SEP24000CE", Side: schema.OrderSideSell, Qty: 50})
	sim.SeedPosition(broker.Position{PositionID: "pos-short", Token: 10100, Symbol: "NIFTY24SEP24000CE", Venue: "SIM", Qty: -50})
	sim.SeedPosition(broker.Position{PositionID: "pos-long", Token: 10101, Symbol: "NIFTY24SEP24000PE", Venue: "SIM", Qty: 25})
	sim.SeedPosition(broker.Position{PositionID: "pos-flat", Token: 10102, Symbol: "NIFTY24SEP24200CE", Venue: "SIM", Qty: 0})

	res := svc.Activate(context.Background(), "manual risk stop")
	require.True(t, res.Success)
	assert.Equal(t, 2, res.PositionsClosed)

	assert.True(t, svc.IsActive())
	assert.Equal(t, "manual risk stop", svc.ActivationReason())
	assert.True(t, router.gateHalted())
	assert.Equal(t, 1, pauser.sweeps())
	assert.Equal(t, []string{restingID}, sim.Canceled())

	legs := router.orders()
	require.Len(t, legs, 2)
	bySymbol := make(map[string]schema.PrioritizedOrder, len(legs))
	for _, leg := range legs {
		assert.Equal(t, schema.PriorityKillSwitch, leg.Priority)
		assert.Equal(t, schema.OrderKindMarket, leg.Request.Kind)
		bySymbol[leg.Request.Symbol] = leg
	}
	short := bySymbol["NIFTY24SEP24000CE"]
	assert.Equal(t, schema.OrderSideBuy, short.Request.Side)
	assert.Equal(t, schema.Quantity(50), short.Request.Qty)
	assert.True(t, strings.HasPrefix(short.Request.CorrelationID, "killswitch-"))
	assert.True(t, strings.HasSuffix(short.Request.CorrelationID, "-close-pos-short"))
	long := bySymbol["NIFTY24SEP24000PE"]
	assert.Equal(t, schema.OrderSideSell, long.Request.Side)
	assert.Equal(t, schema.Quantity(25), long.Request.Qty)
}

func TestActivateIsIdempotent(t *testing.T) {
	svc, pauser, _, sim := newTestService(1)
	sim.SeedPosition(broker.Position{PositionID: "pos-1", Token: 10100, Symbol: "CE", Venue: "SIM", Qty: -50})

	first := svc.Activate(context.Background(), "first")
	require.True(t, first.Success)

	second := svc.Activate(context.Background(), "second")
	assert.False(t, second.Success)
	assert.Equal(t, "kill switch already active", second.Reason)
	assert.Equal(t, 0, second.PositionsClosed)

	// The sequence ran exactly once.
	assert.Equal(t, 1, pauser.sweeps())
	assert.Equal(t, "first", svc.ActivationReason())
}

func TestActivateToleratesCancelFailures(t *testing.T) {
	svc, _, router, sim := newTestService(0)
	badID := sim.SeedOpenOrder(broker.OpenOrder{Token: 10100, Symbol: "CE", Qty: 50})
	goodID := sim.SeedOpenOrder(broker.OpenOrder{Token: 10101, Symbol: "PE", Qty: 50})
	sim.FailCancel[badID] = true
	sim.SeedPosition(broker.Position{PositionID: "pos-1", Token: 10100, Symbol: "CE", Venue: "SIM", Qty: -50})

	res := svc.Activate(context.Background(), "cancel failure drill")
	require.True(t, res.Success)

	// The failed cancel does not stop liquidation.
	assert.Equal(t, 1, res.PositionsClosed)
	assert.Equal(t, []string{goodID}, sim.Canceled())
	assert.True(t, router.gateHalted())
}

func TestActivateToleratesBrokerFetchFailure(t *testing.T) {
	svc, pauser, router, sim := newTestService(3)
	sim.FailFetches = true

	res := svc.Activate(context.Background(), "broker down")
	require.True(t, res.Success)
	assert.Equal(t, 0, res.PositionsClosed)

	// Gate and pause still happened.
	assert.True(t, router.gateHalted())
	assert.Equal(t, 1, pauser.sweeps())
	assert.True(t, svc.IsActive())
}

func TestActivateCountsOnlyAdmittedLegs(t *testing.T) {
	svc, _, router, sim := newTestService(0)
	router.rejectAll = true
	sim.SeedPosition(broker.Position{PositionID: "pos-1", Token: 10100, Symbol: "CE", Venue: "SIM", Qty: -50})

	res := svc.Activate(context.Background(), "router rejecting")
	require.True(t, res.Success)
	assert.Equal(t, 0, res.PositionsClosed)
}

func TestReactivationRetriesUnfilledLiquidation(t *testing.T) {
	svc, _, router, sim := newTestService(0)
	router.dedupe = true
	// The position never fills, so it is still open on the second run.
	sim.SeedPosition(broker.Position{PositionID: "pos-1", Token: 10100, Symbol: "CE", Venue: "SIM", Qty: -50})

	first := svc.Activate(context.Background(), "first stop")
	require.True(t, first.Success)
	require.Equal(t, 1, first.PositionsClosed)

	svc.Deactivate()

	second := svc.Activate(context.Background(), "second stop")
	require.True(t, second.Success)
	assert.Equal(t, 1, second.PositionsClosed)

	legs := router.orders()
	require.Len(t, legs, 2)
	assert.NotEqual(t, legs[0].Request.CorrelationID, legs[1].Request.CorrelationID)
}

func TestDeactivateReopensAdmissionOnly(t *testing.T) {
	svc, pauser, router, _ := newTestService(2)

	res := svc.Activate(context.Background(), "drill")
	require.True(t, res.Success)
	require.True(t, svc.IsActive())

	svc.Deactivate()
	assert.False(t, svc.IsActive())
	assert.Empty(t, svc.ActivationReason())
	assert.False(t, router.gateHalted())

	// Strategies stay paused; no second sweep and no resume.
	assert.Equal(t, 1, pauser.sweeps())

	// The switch can engage again after release.
	again := svc.Activate(context.Background(), "second drill")
	assert.True(t, again.Success)
	assert.Equal(t, 2, pauser.sweeps())
}

func TestPauseAllStrategiesDoesNotEngageSwitch(t *testing.T) {
	svc, pauser, router, _ := newTestService(4)

	assert.Equal(t, 4, svc.PauseAllStrategies())
	assert.False(t, svc.IsActive())
	assert.False(t, router.gateHalted())
	assert.Equal(t, 1, pauser.sweeps())
}
