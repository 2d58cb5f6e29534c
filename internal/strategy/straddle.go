package strategy

import (
	"fmt"
	"sync/atomic"
	"time"

	"main/internal/schema"
)

// shortStraddle sells a call and a put at the same strike and exits
// the whole structure when the underlying runs past the stop band.
type shortStraddle struct {
	base
}

func newShortStraddle(id, name string, cfg Config) (Strategy, error) {
	if len(cfg.Legs) != 2 {
		return nil, fmt.Errorf("short straddle %s: expected 2 legs, got %d", name, len(cfg.Legs))
	}
	b, err := newBase(id, name, TypeShortStraddle, cfg)
	if err != nil {
		return nil, err
	}
	return &shortStraddle{base: b}, nil
}

func (s *shortStraddle) Evaluate(snap schema.Snapshot) []Decision {
	if s.Status() != StatusActive {
		return nil
	}
	if snap.Token != s.cfg.Underlying {
		return nil
	}
	if s.stopBreached(snap) && s.cooldownElapsed(time.Now()) {
		s.markAdjusted(time.Now())
		return s.ExitOrders()
	}
	return nil
}

func (s *shortStraddle) Adjust(action string) error {
	switch action {
	case "RESET_STOP":
		atomic.StoreInt64(&s.entryRef, 0)
		return nil
	default:
		return fmt.Errorf("short straddle: unsupported adjustment %q", action)
	}
}
