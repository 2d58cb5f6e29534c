package og

import (
	"context"
	"sync"
	"testing"
	"time"

	"main/internal/broker"
	"main/internal/journal"
	"main/internal/order"
	"main/internal/schema"
)

// memJournal is a minimal in-memory journal.Store.
type memJournal struct {
	mu      sync.Mutex
	entries map[string]journal.Entry
}

func newMemJournal() *memJournal {
	return &memJournal{entries: make(map[string]journal.Entry)}
}

func (m *memJournal) Append(e journal.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[e.GroupID]; ok {
		return journal.ErrDuplicateGroup
	}
	m.entries[e.GroupID] = e
	return nil
}

func (m *memJournal) UpdateStatus(groupID string, status journal.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[groupID]
	if !ok {
		return journal.ErrUnknownGroup
	}
	e.Status = status
	m.entries[groupID] = e
	return nil
}

func (m *memJournal) Get(groupID string) (journal.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[groupID]
	if !ok {
		return journal.Entry{}, journal.ErrUnknownGroup
	}
	return e, nil
}

func (m *memJournal) ListByStatus(...journal.Status) ([]journal.Entry, error) { return nil, nil }
func (m *memJournal) Close() error                                            { return nil }

func (m *memJournal) status(t *testing.T, groupID string) journal.Status {
	t.Helper()
	e, err := m.Get(groupID)
	if err != nil {
		t.Fatalf("get group %s: %v", groupID, err)
	}
	return e.Status
}

func groupLeg(groupID, symbol string) schema.PrioritizedOrder {
	return schema.PrioritizedOrder{
		Request: schema.OrderRequest{
			Token:   10100,
			Symbol:  symbol,
			Side:    schema.OrderSideSell,
			Kind:    schema.OrderKindMarket,
			Qty:     50,
			GroupID: groupID,
		},
		Priority: schema.PriorityStrategyEntry,
	}
}

func seedGroup(t *testing.T, jnl *memJournal, groupID string, legCount int) {
	t.Helper()
	legs := make([]journal.Leg, legCount)
	for i := range legs {
		legs[i] = journal.Leg{Token: 10100, Symbol: "CE", Side: schema.OrderSideSell, Qty: 50}
	}
	err := jnl.Append(journal.Entry{
		GroupID:    groupID,
		StrategyID: "strat-1",
		Status:     journal.StatusInProgress,
		Legs:       legs,
	})
	if err != nil {
		t.Fatalf("seed group: %v", err)
	}
}

func TestSubmitCompletesGroupWhenAllLegsPlace(t *testing.T) {
	jnl := newMemJournal()
	sim := broker.NewSim()
	g := NewGateway(order.NewQueue(), sim, jnl)
	seedGroup(t, jnl, "grp-1", 2)

	g.Submit(context.Background(), groupLeg("grp-1", "CE"))
	if got := jnl.status(t, "grp-1"); got != journal.StatusInProgress {
		t.Fatalf("status after first leg = %s, want %s", got, journal.StatusInProgress)
	}

	g.Submit(context.Background(), groupLeg("grp-1", "PE"))
	if got := jnl.status(t, "grp-1"); got != journal.StatusCompleted {
		t.Fatalf("status = %s, want %s", got, journal.StatusCompleted)
	}
	if placed := len(sim.Placed()); placed != 2 {
		t.Fatalf("broker saw %d orders, want 2", placed)
	}
}

func TestSubmitFlagsPartialGroupForRecovery(t *testing.T) {
	jnl := newMemJournal()
	sim := broker.NewSim()
	g := NewGateway(order.NewQueue(), sim, jnl)
	seedGroup(t, jnl, "grp-1", 2)

	g.Submit(context.Background(), groupLeg("grp-1", "CE"))
	sim.FailPlace = true
	g.Submit(context.Background(), groupLeg("grp-1", "PE"))

	if got := jnl.status(t, "grp-1"); got != journal.StatusRequiresRecovery {
		t.Fatalf("status = %s, want %s", got, journal.StatusRequiresRecovery)
	}
}

func TestSubmitAbortsGroupWhenNoLegPlaces(t *testing.T) {
	jnl := newMemJournal()
	sim := broker.NewSim()
	sim.FailPlace = true
	g := NewGateway(order.NewQueue(), sim, jnl)
	seedGroup(t, jnl, "grp-1", 2)

	g.Submit(context.Background(), groupLeg("grp-1", "CE"))
	g.Submit(context.Background(), groupLeg("grp-1", "PE"))

	if got := jnl.status(t, "grp-1"); got != journal.StatusAborted {
		t.Fatalf("status = %s, want %s", got, journal.StatusAborted)
	}
}

func TestSubmitKeepsStatusOfAlreadyFlaggedGroup(t *testing.T) {
	jnl := newMemJournal()
	sim := broker.NewSim()
	g := NewGateway(order.NewQueue(), sim, jnl)
	seedGroup(t, jnl, "grp-1", 2)
	// A leg rejected at admission never reaches the gateway; the group
	// was flagged upstream and only one leg arrives here.
	if err := jnl.UpdateStatus("grp-1", journal.StatusRequiresRecovery); err != nil {
		t.Fatalf("flag group: %v", err)
	}

	g.Submit(context.Background(), groupLeg("grp-1", "CE"))

	if got := jnl.status(t, "grp-1"); got != journal.StatusRequiresRecovery {
		t.Fatalf("status = %s, want %s", got, journal.StatusRequiresRecovery)
	}
	if placed := len(sim.Placed()); placed != 1 {
		t.Fatalf("broker saw %d orders, want 1", placed)
	}
	g.mu.Lock()
	tallies := len(g.groups)
	g.mu.Unlock()
	if tallies != 0 {
		t.Fatalf("gateway kept %d group tallies, want 0", tallies)
	}
}

func TestSubmitWithoutGroupSkipsJournal(t *testing.T) {
	jnl := newMemJournal()
	sim := broker.NewSim()
	g := NewGateway(order.NewQueue(), sim, jnl)

	po := groupLeg("", "CE")
	g.Submit(context.Background(), po)

	if placed := len(sim.Placed()); placed != 1 {
		t.Fatalf("broker saw %d orders, want 1", placed)
	}
	if len(jnl.entries) != 0 {
		t.Fatal("journal must stay untouched for ungrouped orders")
	}
}

func TestRunDrainsQueueInPriorityOrder(t *testing.T) {
	jnl := newMemJournal()
	sim := broker.NewSim()
	queue := order.NewQueue()
	g := NewGateway(queue, sim, jnl)
	g.idlePoll = time.Millisecond

	queue.Offer(schema.PrioritizedOrder{
		Request:  schema.OrderRequest{Token: 1, Symbol: "entry", Side: schema.OrderSideSell, Kind: schema.OrderKindMarket, Qty: 1},
		Priority: schema.PriorityStrategyEntry,
	})
	queue.Offer(schema.PrioritizedOrder{
		Request:  schema.OrderRequest{Token: 1, Symbol: "liquidate", Side: schema.OrderSideBuy, Kind: schema.OrderKindMarket, Qty: 1},
		Priority: schema.PriorityKillSwitch,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		g.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for queue.Len() > 0 {
		select {
		case <-deadline:
			t.Fatal("gateway did not drain the queue")
		case <-time.After(5 * time.Millisecond):
		}
	}
	// Give the in-flight Submit a moment to land.
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	placed := sim.Placed()
	if len(placed) != 2 {
		t.Fatalf("broker saw %d orders, want 2", len(placed))
	}
	if placed[0].Request.Symbol != "liquidate" {
		t.Fatalf("first placed order = %s, want the liquidation leg", placed[0].Request.Symbol)
	}
}
