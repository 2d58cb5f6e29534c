package strategy

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"main/internal/schema"
)

// base carries the bookkeeping every option structure shares: status,
// entry reference price, held legs and the adjustment cooldown.
type base struct {
	id   string
	name string
	typ  Type
	cfg  Config

	status     uint32
	entryRef   int64
	lastAdjust int64

	mu       sync.Mutex
	holdings map[schema.InstrumentToken]schema.PositionUpdate
}

func newBase(id, name string, typ Type, cfg Config) (base, error) {
	if len(cfg.Legs) == 0 {
		return base{}, fmt.Errorf("strategy %s: no legs configured", name)
	}
	if cfg.QtyPerLeg <= 0 {
		return base{}, fmt.Errorf("strategy %s: qty per leg must be positive", name)
	}
	return base{
		id:       id,
		name:     name,
		typ:      typ,
		cfg:      cfg,
		status:   uint32(StatusCreated),
		holdings: make(map[schema.InstrumentToken]schema.PositionUpdate),
	}, nil
}

func (b *base) ID() string     { return b.id }
func (b *base) Name() string   { return b.name }
func (b *base) Type() Type     { return b.typ }
func (b *base) Config() Config { return b.cfg }

func (b *base) Status() Status {
	return Status(atomic.LoadUint32(&b.status))
}

func (b *base) SetStatus(s Status) {
	atomic.StoreUint32(&b.status, uint32(s))
}

// EntryOrders opens every configured leg.
func (b *base) EntryOrders() []Decision {
	out := make([]Decision, 0, len(b.cfg.Legs))
	for _, leg := range b.cfg.Legs {
		out = append(out, Decision{
			Request:  b.legRequest(leg, leg.Side, "entry"),
			Priority: schema.PriorityStrategyEntry,
		})
	}
	return out
}

// ExitOrders flattens every configured leg at market.
func (b *base) ExitOrders() []Decision {
	out := make([]Decision, 0, len(b.cfg.Legs))
	for _, leg := range b.cfg.Legs {
		out = append(out, Decision{
			Request:  b.legRequest(leg, opposite(leg.Side), "exit"),
			Priority: schema.PriorityStrategyExit,
		})
	}
	return out
}

func (b *base) OnPositionUpdate(update schema.PositionUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if update.Qty == 0 {
		delete(b.holdings, update.Token)
		return
	}
	b.holdings[update.Token] = update
}

// stopBreached reports whether the underlying has moved past the stop
// band. The first snapshot seen while holding a position seeds the
// entry reference.
func (b *base) stopBreached(snap schema.Snapshot) bool {
	if b.cfg.StopBps <= 0 || snap.LastPrice <= 0 {
		return false
	}
	ref := atomic.LoadInt64(&b.entryRef)
	if ref == 0 {
		atomic.StoreInt64(&b.entryRef, int64(snap.LastPrice))
		return false
	}
	diff := int64(snap.LastPrice) - ref
	if diff < 0 {
		diff = -diff
	}
	return diff*10000 > ref*b.cfg.StopBps
}

func (b *base) cooldownElapsed(now time.Time) bool {
	if b.cfg.AdjustCooldownSec <= 0 {
		return true
	}
	last := atomic.LoadInt64(&b.lastAdjust)
	return now.UnixNano()-last >= b.cfg.AdjustCooldownSec*int64(time.Second)
}

func (b *base) markAdjusted(now time.Time) {
	atomic.StoreInt64(&b.lastAdjust, now.UnixNano())
}

func (b *base) legRequest(leg LegSpec, side schema.OrderSide, intent string) schema.OrderRequest {
	return schema.OrderRequest{
		Token:         leg.Token,
		Symbol:        leg.Symbol,
		Venue:         leg.Venue,
		Side:          side,
		Kind:          schema.OrderKindMarket,
		Qty:           b.cfg.QtyPerLeg,
		Product:       b.cfg.Product,
		CorrelationID: fmt.Sprintf("%s-%s-%s", b.id, intent, uuid.NewString()),
	}
}

func opposite(side schema.OrderSide) schema.OrderSide {
	if side == schema.OrderSideBuy {
		return schema.OrderSideSell
	}
	return schema.OrderSideBuy
}
