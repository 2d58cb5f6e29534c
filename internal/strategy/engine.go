package strategy

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/logs"

	"main/internal/audit"
	"main/internal/journal"
	"main/internal/order"
	"main/internal/schema"
)

// Submitter routes orders into the admission pipeline.
type Submitter interface {
	Route(req schema.OrderRequest, priority schema.Priority) order.Result
}

// StatusStore persists lifecycle changes. The engine treats it as
// best-effort: a dead store degrades durability, not trading.
type StatusStore interface {
	SaveStatus(id string, status string) error
}

// PositionLink is one persisted position-to-strategy edge.
type PositionLink struct {
	PositionID string
	StrategyID string
}

// Info is the query view of one registered strategy.
type Info struct {
	ID     string
	Name   string
	Type   Type
	Status Status
}

type instance struct {
	strategy Strategy
	// lock serializes lifecycle transitions against tick evaluation.
	// Transitions hold it for writing; evaluation only ever tries the
	// read side and skips the tick on contention.
	lock     sync.RWMutex
	lastEval int64
}

// Engine owns every live strategy, its lifecycle lock, and the
// position reverse index. All exported methods are safe for concurrent
// use.
type Engine struct {
	mu        sync.RWMutex
	instances map[string]*instance

	posMu     sync.RWMutex
	positions map[string]map[string]struct{}

	registry *schema.Registry
	router   Submitter
	journal  journal.Store
	recorder audit.Recorder
	statuses StatusStore
}

// Options wires the engine's collaborators. Recorder and Statuses may
// be nil.
type Options struct {
	Registry *schema.Registry
	Router   Submitter
	Journal  journal.Store
	Recorder audit.Recorder
	Statuses StatusStore
}

// NewEngine creates an empty strategy registry.
func NewEngine(opts Options) *Engine {
	recorder := opts.Recorder
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Engine{
		instances: make(map[string]*instance),
		positions: make(map[string]map[string]struct{}),
		registry:  opts.Registry,
		router:    opts.Router,
		journal:   opts.Journal,
		recorder:  recorder,
		statuses:  opts.Statuses,
	}
}

// Deploy builds, registers and optionally arms a new strategy. With
// EnterOnDeploy set, the entry legs are journaled and routed under the
// strategy's write lock before Deploy returns.
func (e *Engine) Deploy(typ Type, name string, cfg Config, autoArm bool) (string, error) {
	id := uuid.NewString()
	s, err := build(typ, id, name, cfg)
	if err != nil {
		return "", err
	}

	inst := &instance{strategy: s}
	e.mu.Lock()
	if _, exists := e.instances[id]; exists {
		e.mu.Unlock()
		// A UUID collision indicates a broken id source, not user input.
		e.record(id, "DEPLOY", "FAILED", "strategy id collision", audit.SeverityCritical)
		return "", fmt.Errorf("%w: %s", ErrDuplicateStrategy, id)
	}
	e.instances[id] = inst
	e.mu.Unlock()

	e.record(id, "DEPLOY", "CREATED", fmt.Sprintf("type=%s name=%s", typ, name), audit.SeverityInfo)
	e.saveStatus(id, StatusCreated)

	if !autoArm {
		return id, nil
	}
	if err := e.Arm(id); err != nil {
		return id, err
	}
	if cfg.EnterOnDeploy {
		inst.lock.Lock()
		err := e.executeEntry(inst)
		inst.lock.Unlock()
		if err != nil {
			return id, err
		}
	}
	return id, nil
}

// Arm moves a strategy into the tick-evaluated set.
func (e *Engine) Arm(id string) error {
	return e.transition(id, StatusArmed, "ARM")
}

// Pause suspends tick evaluation without touching positions.
func (e *Engine) Pause(id string) error {
	return e.transition(id, StatusPaused, "PAUSE")
}

// Resume returns a paused strategy to evaluation.
func (e *Engine) Resume(id string) error {
	return e.transition(id, StatusActive, "RESUME")
}

// Close begins an orderly wind-down: the strategy stops evaluating and
// its exit legs are journaled and routed.
func (e *Engine) Close(id string) error {
	inst, err := e.instance(id)
	if err != nil {
		return err
	}
	inst.lock.Lock()
	defer inst.lock.Unlock()

	if err := e.applyTransition(inst, StatusClosing, "CLOSE"); err != nil {
		return err
	}
	return e.executeExit(inst)
}

// MarkClosed finalizes a closing strategy once its legs have resolved.
func (e *Engine) MarkClosed(id string) error {
	return e.transition(id, StatusClosed, "MARK_CLOSED")
}

// Undeploy removes a strategy from the registry. Only a closed
// strategy may leave; anything else is an illegal state.
func (e *Engine) Undeploy(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStrategy, id)
	}
	inst.lock.Lock()
	defer inst.lock.Unlock()
	if !inst.strategy.Status().Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrNotClosed, id, inst.strategy.Status())
	}
	delete(e.instances, id)
	e.record(id, "UNDEPLOY", "REMOVED", "", audit.SeverityInfo)
	return nil
}

// PauseAll sweeps every armed or active strategy into PAUSED. A
// failure on one strategy is logged and does not stop the sweep. The
// return value counts strategies actually paused.
func (e *Engine) PauseAll() int {
	paused := 0
	for _, info := range e.List() {
		if !info.Status.Evaluable() {
			continue
		}
		if err := e.Pause(info.ID); err != nil {
			logs.Errorf("pause all: strategy %s, err: %+v", info.ID, err)
			continue
		}
		paused++
	}
	return paused
}

// ForceAdjust applies an adjustment action outside the strategy's own
// cooldown. Only an active strategy may be adjusted, and the forced
// action is logged before it is applied.
func (e *Engine) ForceAdjust(id, action string) error {
	inst, err := e.instance(id)
	if err != nil {
		return err
	}
	inst.lock.Lock()
	defer inst.lock.Unlock()

	if inst.strategy.Status() != StatusActive {
		return fmt.Errorf("%w: %s is %s", ErrNotActive, id, inst.strategy.Status())
	}
	logs.Warnf("forcing adjustment %q on strategy %s", action, id)
	e.record(id, "FORCE_ADJUST", "APPLIED", action, audit.SeverityWarn)
	return inst.strategy.Adjust(action)
}

// OnTick fans a tick out to every armed or active strategy. A strategy
// whose write lock is held (a lifecycle transition in progress) is
// skipped for this tick rather than blocked; the next tick covers it.
// A panicking strategy is isolated and does not stop the fan-out.
func (e *Engine) OnTick(t schema.Tick) {
	snap := schema.Snapshot{
		Token:     t.Token,
		LastPrice: t.LastPrice,
		TsEvent:   t.TsEvent,
	}
	if e.registry != nil {
		if inst, ok := e.registry.Instrument(t.Token); ok {
			snap.Symbol = inst.Symbol
		}
	}

	for id, inst := range e.snapshot() {
		if !inst.strategy.Status().Evaluable() {
			continue
		}
		if !inst.lock.TryRLock() {
			continue
		}
		decisions := e.evaluate(id, inst, snap)
		inst.lock.RUnlock()

		for _, d := range decisions {
			res := e.router.Route(d.Request, d.Priority)
			if !res.Accepted {
				logs.Warnf("strategy %s order rejected: %s", id, res.Reason)
			}
		}
	}
}

// OnPositionUpdate routes a broker position change to the strategies
// linked to it. An unlinked position is a no-op.
func (e *Engine) OnPositionUpdate(u schema.PositionUpdate) {
	for _, id := range e.StrategiesForPosition(u.PositionID) {
		inst, err := e.instance(id)
		if err != nil {
			continue
		}
		inst.strategy.OnPositionUpdate(u)
	}
}

// RegisterPositionLink links a position to a strategy. Re-adding an
// existing link is a no-op.
func (e *Engine) RegisterPositionLink(positionID, strategyID string) {
	if positionID == "" || strategyID == "" {
		return
	}
	e.posMu.Lock()
	defer e.posMu.Unlock()
	set, ok := e.positions[positionID]
	if !ok {
		set = make(map[string]struct{})
		e.positions[positionID] = set
	}
	set[strategyID] = struct{}{}
}

// UnregisterPositionLink removes a link. Removing a missing link is a
// no-op. A position with no remaining links leaves the index entirely.
func (e *Engine) UnregisterPositionLink(positionID, strategyID string) {
	e.posMu.Lock()
	defer e.posMu.Unlock()
	set, ok := e.positions[positionID]
	if !ok {
		return
	}
	delete(set, strategyID)
	if len(set) == 0 {
		delete(e.positions, positionID)
	}
}

// StrategiesForPosition returns the ids linked to a position, sorted.
func (e *Engine) StrategiesForPosition(positionID string) []string {
	e.posMu.RLock()
	set, ok := e.positions[positionID]
	if !ok {
		e.posMu.RUnlock()
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	e.posMu.RUnlock()
	sort.Strings(out)
	return out
}

// PopulatePositionIndex rebuilds the reverse index from persisted
// links, clearing whatever was there.
func (e *Engine) PopulatePositionIndex(links []PositionLink) {
	e.posMu.Lock()
	defer e.posMu.Unlock()
	e.positions = make(map[string]map[string]struct{}, len(links))
	for _, link := range links {
		if link.PositionID == "" || link.StrategyID == "" {
			continue
		}
		set, ok := e.positions[link.PositionID]
		if !ok {
			set = make(map[string]struct{})
			e.positions[link.PositionID] = set
		}
		set[link.StrategyID] = struct{}{}
	}
}

// List returns every registered strategy.
func (e *Engine) List() []Info {
	out := make([]Info, 0)
	for id, inst := range e.snapshot() {
		s := inst.strategy
		out = append(out, Info{ID: id, Name: s.Name(), Type: s.Type(), Status: s.Status()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Active returns the strategies currently receiving ticks.
func (e *Engine) Active() []Info {
	all := e.List()
	out := all[:0]
	for _, info := range all {
		if info.Status.Evaluable() {
			out = append(out, info)
		}
	}
	return out
}

// LastEvaluated returns when the strategy last saw a tick.
func (e *Engine) LastEvaluated(id string) (time.Time, error) {
	inst, err := e.instance(id)
	if err != nil {
		return time.Time{}, err
	}
	ns := atomic.LoadInt64(&inst.lastEval)
	if ns == 0 {
		return time.Time{}, nil
	}
	return time.Unix(0, ns), nil
}

func (e *Engine) evaluate(id string, inst *instance, snap schema.Snapshot) (decisions []Decision) {
	defer func() {
		if r := recover(); r != nil {
			logs.Errorf("strategy %s panicked during evaluation: %+v", id, r)
			decisions = nil
		}
	}()
	decisions = inst.strategy.Evaluate(snap)
	atomic.StoreInt64(&inst.lastEval, time.Now().UnixNano())
	return decisions
}

// executeEntry journals and routes the entry group. Caller holds the
// strategy's write lock and the strategy is ARMED.
func (e *Engine) executeEntry(inst *instance) error {
	s := inst.strategy
	decisions := s.EntryOrders()
	groupID, routed, err := e.executeGroup(s.ID(), decisions)
	if err != nil {
		return err
	}
	if routed == 0 {
		return fmt.Errorf("entry group %s: no leg admitted", groupID)
	}
	if err := e.applyTransition(inst, StatusActive, "ENTER"); err != nil {
		return err
	}
	return nil
}

// executeExit journals and routes the flattening group. Caller holds
// the strategy's write lock and the strategy is CLOSING.
func (e *Engine) executeExit(inst *instance) error {
	s := inst.strategy
	decisions := s.ExitOrders()
	if len(decisions) == 0 {
		return nil
	}
	groupID, routed, err := e.executeGroup(s.ID(), decisions)
	if err != nil {
		return err
	}
	if routed == 0 {
		return fmt.Errorf("exit group %s: no leg admitted", groupID)
	}
	return nil
}

// executeGroup writes the journal row for a multi-leg group, then
// routes the legs. The journal append is the write-ahead step: no leg
// is admitted unless the group is durably recorded first.
func (e *Engine) executeGroup(strategyID string, decisions []Decision) (string, int, error) {
	groupID := uuid.NewString()
	legs := make([]journal.Leg, 0, len(decisions))
	for _, d := range decisions {
		legs = append(legs, journal.Leg{
			Token:         d.Request.Token,
			Symbol:        d.Request.Symbol,
			Side:          d.Request.Side,
			Qty:           d.Request.Qty,
			CorrelationID: d.Request.CorrelationID,
		})
	}
	if e.journal != nil {
		entry := journal.Entry{
			GroupID:    groupID,
			StrategyID: strategyID,
			Status:     journal.StatusInProgress,
			Legs:       legs,
		}
		if err := e.journal.Append(entry); err != nil {
			return groupID, 0, fmt.Errorf("journal execution group: %w", err)
		}
	}

	routed := 0
	for _, d := range decisions {
		req := d.Request
		req.GroupID = groupID
		res := e.router.Route(req, d.Priority)
		if !res.Accepted {
			logs.Warnf("execution group %s leg %s rejected: %s", groupID, req.Symbol, res.Reason)
			continue
		}
		routed++
	}
	if e.journal != nil {
		switch {
		case routed == 0:
			if err := e.journal.UpdateStatus(groupID, journal.StatusAborted); err != nil {
				logs.Errorf("abort execution group %s, err: %+v", groupID, err)
			}
		case routed < len(decisions):
			// Some legs were admitted, some rejected: the structure can
			// never complete as journaled, so flag it for an operator
			// instead of leaving the row in progress.
			if err := e.journal.UpdateStatus(groupID, journal.StatusRequiresRecovery); err != nil {
				logs.Errorf("flag execution group %s, err: %+v", groupID, err)
			}
		}
	}
	return groupID, routed, nil
}

// transition performs a lifecycle step under the strategy write lock.
func (e *Engine) transition(id string, to Status, kind string) error {
	inst, err := e.instance(id)
	if err != nil {
		return err
	}
	inst.lock.Lock()
	defer inst.lock.Unlock()
	return e.applyTransition(inst, to, kind)
}

// applyTransition validates and applies a status change. Caller holds
// the strategy's write lock.
func (e *Engine) applyTransition(inst *instance, to Status, kind string) error {
	s := inst.strategy
	from := s.Status()
	if from == StatusUnknown {
		return fmt.Errorf("%w: %s has undefined status", ErrInvalidTransition, s.ID())
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	s.SetStatus(to)
	e.record(s.ID(), kind, to.String(), fmt.Sprintf("%s -> %s", from, to), audit.SeverityInfo)
	e.saveStatus(s.ID(), to)
	return nil
}

func (e *Engine) instance(id string) (*instance, error) {
	e.mu.RLock()
	inst, ok := e.instances[id]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, id)
	}
	return inst, nil
}

func (e *Engine) snapshot() map[string]*instance {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]*instance, len(e.instances))
	for id, inst := range e.instances {
		out[id] = inst
	}
	return out
}

func (e *Engine) record(id, kind, outcome, reasoning string, severity audit.Severity) {
	e.recorder.Record(audit.Entry{
		Source:    "strategy-engine",
		SourceID:  id,
		Kind:      kind,
		Outcome:   outcome,
		Reasoning: reasoning,
		Severity:  severity,
	})
}

func (e *Engine) saveStatus(id string, status Status) {
	if e.statuses == nil {
		return
	}
	if err := e.statuses.SaveStatus(id, status.String()); err != nil {
		logs.Errorf("persist strategy %s status %s, err: %+v", id, status, err)
	}
}
