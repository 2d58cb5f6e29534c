package order

import (
	"testing"

	"main/internal/schema"
)

func queued(correlation string, priority schema.Priority) schema.PrioritizedOrder {
	return schema.PrioritizedOrder{
		Request: schema.OrderRequest{
			Token:         1,
			Symbol:        "NIFTY24SEP24000CE",
			Side:          schema.OrderSideSell,
			Kind:          schema.OrderKindMarket,
			Qty:           50,
			CorrelationID: correlation,
		},
		Priority: priority,
	}
}

func TestQueuePollsByPriority(t *testing.T) {
	q := NewQueue()
	q.Offer(queued("entry", schema.PriorityStrategyEntry))
	q.Offer(queued("adjust", schema.PriorityAdjustment))
	q.Offer(queued("kill", schema.PriorityKillSwitch))
	q.Offer(queued("manual", schema.PriorityManual))
	q.Offer(queued("exit", schema.PriorityStrategyExit))

	want := []string{"kill", "exit", "entry", "manual", "adjust"}
	for _, expected := range want {
		po, ok := q.Poll()
		if !ok {
			t.Fatalf("queue drained early, want %s", expected)
		}
		if po.Request.CorrelationID != expected {
			t.Fatalf("poll order mismatch: got %s want %s", po.Request.CorrelationID, expected)
		}
	}
	if _, ok := q.Poll(); ok {
		t.Fatal("queue should be empty")
	}
}

func TestQueueStrategyEntryOutranksManual(t *testing.T) {
	q := NewQueue()
	q.Offer(queued("manual", schema.PriorityManual))
	q.Offer(queued("entry", schema.PriorityStrategyEntry))
	q.Offer(queued("kill", schema.PriorityKillSwitch))

	for _, expected := range []string{"kill", "entry", "manual"} {
		po, ok := q.Poll()
		if !ok || po.Request.CorrelationID != expected {
			t.Fatalf("poll order mismatch: got %s want %s", po.Request.CorrelationID, expected)
		}
	}
}

func TestQueueEqualPriorityIsFIFO(t *testing.T) {
	q := NewQueue()
	ids := []string{"a", "b", "c", "d", "e", "f"}
	for _, id := range ids {
		q.Offer(queued(id, schema.PriorityManual))
	}
	for _, expected := range ids {
		po, ok := q.Poll()
		if !ok || po.Request.CorrelationID != expected {
			t.Fatalf("fifo violated: got %s want %s", po.Request.CorrelationID, expected)
		}
	}
}

func TestQueueInterleavedOfferPoll(t *testing.T) {
	q := NewQueue()
	q.Offer(queued("low", schema.PriorityAdjustment))
	q.Offer(queued("high-1", schema.PriorityManual))

	po, _ := q.Poll()
	if po.Request.CorrelationID != "high-1" {
		t.Fatalf("got %s want high-1", po.Request.CorrelationID)
	}

	q.Offer(queued("high-2", schema.PriorityManual))
	po, _ = q.Poll()
	if po.Request.CorrelationID != "high-2" {
		t.Fatalf("late high-priority order must jump ahead: got %s", po.Request.CorrelationID)
	}
	po, _ = q.Poll()
	if po.Request.CorrelationID != "low" {
		t.Fatalf("got %s want low", po.Request.CorrelationID)
	}
	if q.Len() != 0 {
		t.Fatalf("len = %d, want 0", q.Len())
	}
}
