// Package og is the outbound order gateway: it drains the admission
// queue in priority order, hands each order to the broker, and
// resolves journaled execution groups as their legs complete.
package og

import (
	"context"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/broker"
	"main/internal/journal"
	"main/internal/order"
	"main/internal/schema"
)

const defaultIdlePoll = 10 * time.Millisecond

// Gateway submits admitted orders to the broker.
type Gateway struct {
	queue   *order.Queue
	broker  broker.Broker
	journal journal.Store

	idlePoll time.Duration

	mu     sync.Mutex
	groups map[string]*groupProgress
}

type groupProgress struct {
	remaining int
	succeeded int
	failed    int
}

// NewGateway creates a gateway over the queue and broker. The journal
// may be nil when group tracking is not wanted (tests, manual runs).
func NewGateway(queue *order.Queue, b broker.Broker, j journal.Store) *Gateway {
	return &Gateway{
		queue:    queue,
		broker:   b,
		journal:  j,
		idlePoll: defaultIdlePoll,
		groups:   make(map[string]*groupProgress),
	}
}

// Run drains the queue until the context ends. Emergency-priority
// orders leave the queue before anything else by construction.
func (g *Gateway) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		po, ok := g.queue.Poll()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(g.idlePoll):
			}
			continue
		}
		g.Submit(ctx, po)
	}
}

// Submit places one order and updates its group, if any. A broker
// failure is logged and reflected in the group outcome; it never stops
// the gateway.
func (g *Gateway) Submit(ctx context.Context, po schema.PrioritizedOrder) {
	brokerID, err := g.broker.PlaceOrder(ctx, po)
	if err != nil {
		logs.Errorf("gateway: place order %s %s, err: %+v", po.Request.Symbol, po.Request.Side, err)
	} else {
		logs.Infof("gateway: placed %s %s x%d as %s", po.Request.Symbol, po.Request.Side, po.Request.Qty, brokerID)
	}
	if po.Request.GroupID != "" {
		g.resolveLeg(po.Request.GroupID, err == nil)
	}
}

// resolveLeg advances the per-group tally and writes the terminal
// journal status when the last leg resolves. A group where only some
// legs reached the broker is flagged for recovery, never silently
// completed.
func (g *Gateway) resolveLeg(groupID string, placed bool) {
	if g.journal == nil {
		return
	}

	g.mu.Lock()
	progress, ok := g.groups[groupID]
	if !ok {
		entry, err := g.journal.Get(groupID)
		if err != nil {
			g.mu.Unlock()
			logs.Errorf("gateway: unknown execution group %s, err: %+v", groupID, err)
			return
		}
		if entry.Status != journal.StatusInProgress {
			// Already resolved upstream (for example flagged when not
			// every leg passed admission). Place the legs, keep the
			// status.
			g.mu.Unlock()
			return
		}
		progress = &groupProgress{remaining: len(entry.Legs)}
		g.groups[groupID] = progress
	}
	progress.remaining--
	if placed {
		progress.succeeded++
	} else {
		progress.failed++
	}
	done := progress.remaining <= 0
	succeeded, failed := progress.succeeded, progress.failed
	if done {
		delete(g.groups, groupID)
	}
	g.mu.Unlock()

	if !done {
		return
	}

	status := journal.StatusCompleted
	switch {
	case succeeded == 0:
		status = journal.StatusAborted
	case failed > 0:
		status = journal.StatusRequiresRecovery
	}
	if err := g.journal.UpdateStatus(groupID, status); err != nil {
		logs.Errorf("gateway: resolve execution group %s to %s, err: %+v", groupID, status, err)
		return
	}
	if status != journal.StatusCompleted {
		logs.Warnf("gateway: execution group %s resolved %s (placed %d, failed %d)", groupID, status, succeeded, failed)
	}
}
