package strategy

import (
	"fmt"
	"sync/atomic"
	"time"

	"main/internal/schema"
)

// ironCondor sells an out-of-the-money call spread and put spread. The
// long wings cap the loss, so the stop band is wider than a straddle's
// and the standard adjustment rolls the stop reference instead of
// flattening.
type ironCondor struct {
	base
}

func newIronCondor(id, name string, cfg Config) (Strategy, error) {
	if len(cfg.Legs) != 4 {
		return nil, fmt.Errorf("iron condor %s: expected 4 legs, got %d", name, len(cfg.Legs))
	}
	b, err := newBase(id, name, TypeIronCondor, cfg)
	if err != nil {
		return nil, err
	}
	return &ironCondor{base: b}, nil
}

func (s *ironCondor) Evaluate(snap schema.Snapshot) []Decision {
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

func (s *ironCondor) Adjust(action string) error {
	switch action {
	case "RESET_STOP":
		atomic.StoreInt64(&s.entryRef, 0)
		return nil
	case "ROLL_UNTESTED":
		// Rolling re-seeds the reference at the next snapshot, which
		// re-centers the band around the current market.
		atomic.StoreInt64(&s.entryRef, 0)
		s.markAdjusted(time.Now())
		return nil
	default:
		return fmt.Errorf("iron condor: unsupported adjustment %q", action)
	}
}
