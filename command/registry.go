package command

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nstehr/armada/armada-core/combat"
	"github.com/nstehr/armada/armada-core/formation"
	"github.com/nstehr/armada/armada-core/model"
	"github.com/nstehr/armada/armada-core/notify"
	"github.com/nstehr/armada/armada-core/orders"
)

// Ranges used when a fleet reports none.
const (
	DefaultEngagementRange = 5000.0
	DefaultSensorRange     = 20000.0
)

// Options configures a Registry. Zero values get sensible defaults.
type Options struct {
	Catalog  *formation.Catalog
	Executor *orders.Executor
	Sink     notify.Sink
	// Workers ticks that many fleets in parallel. Values below 2 tick
	// fleets one after another.
	Workers int
}

type side struct {
	engagement string
	attacker   bool
}

// Registry owns every fleet's command controller and the engagements
// between them.
type Registry struct {
	mu        sync.RWMutex
	fleets    map[string]*Controller
	snapshots map[string]model.Fleet
	sectors   map[string]*model.SectorGrid

	// tickMu serializes ticks and engagement starts.
	tickMu sync.Mutex

	engMu       sync.RWMutex
	engagements map[string]*model.CombatEngagement
	sides       map[string]side

	deps    Deps
	workers int
}

func NewRegistry(opts Options) *Registry {
	if opts.Catalog == nil {
		opts.Catalog = formation.NewCatalog()
	}
	if opts.Executor == nil {
		opts.Executor = orders.NewExecutor(orders.NewConditions())
	}
	if opts.Sink == nil {
		opts.Sink = notify.Discard{}
	}
	r := &Registry{
		fleets:      make(map[string]*Controller),
		snapshots:   make(map[string]model.Fleet),
		sectors:     make(map[string]*model.SectorGrid),
		engagements: make(map[string]*model.CombatEngagement),
		sides:       make(map[string]side),
		workers:     opts.Workers,
	}
	r.deps = Deps{
		Formations: formation.NewController(opts.Catalog),
		Executor:   opts.Executor,
		Sink:       opts.Sink,
		World:      r,
	}
	return r
}

// Catalog returns the formation catalog shared by every fleet.
func (r *Registry) Catalog() *formation.Catalog { return r.deps.Formations.Catalog() }

// Initialize registers a fleet, or refreshes its snapshot if it is known.
func (r *Registry) Initialize(fleet model.Fleet, now float64) error {
	if fleet.ID == "" {
		return fmt.Errorf("initialize: %w: empty fleet id", ErrUnknownFleet)
	}
	r.mu.Lock()
	c, ok := r.fleets[fleet.ID]
	if !ok {
		c = NewController(r.deps)
		r.fleets[fleet.ID] = c
	}
	r.snapshots[fleet.ID] = fleet
	r.mu.Unlock()

	c.Initialize(fleet, now)
	return nil
}

// Remove drops a destroyed fleet. It returns false for unknown ids.
func (r *Registry) Remove(fleetID string, now float64) bool {
	r.mu.Lock()
	c, ok := r.fleets[fleetID]
	delete(r.fleets, fleetID)
	delete(r.snapshots, fleetID)
	r.mu.Unlock()
	if !ok {
		return false
	}

	r.engMu.Lock()
	delete(r.sides, fleetID)
	r.engMu.Unlock()

	st := c.State()
	empire := ""
	if st != nil {
		empire = st.EmpireID
	}
	r.deps.Sink.Post(notify.Notification{
		Category:    notify.CategoryFleet,
		Priority:    notify.PriorityCritical,
		Title:       "Fleet destroyed",
		Description: fmt.Sprintf("fleet %s was destroyed", fleetID),
		Timestamp:   now,
		EmpireID:    empire,
		FleetID:     fleetID,
	})
	slog.Info("fleet removed", "fleet", fleetID)
	return true
}

// Controller returns the controller for a fleet.
func (r *Registry) Controller(fleetID string) (*Controller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.fleets[fleetID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFleet, fleetID)
	}
	return c, nil
}

// FleetIDs lists registered fleets in sorted order.
func (r *Registry) FleetIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.fleets))
	for id := range r.fleets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) IssueOrder(fleetID string, req orders.Request, now float64) (bool, string) {
	c, err := r.Controller(fleetID)
	if err != nil {
		return false, err.Error()
	}
	return c.IssueOrder(req, now)
}

func (r *Registry) CancelOrder(fleetID, orderID string, now float64) bool {
	c, err := r.Controller(fleetID)
	if err != nil {
		return false
	}
	return c.CancelOrder(orderID, now)
}

func (r *Registry) SetFormation(fleetID, templateID string, now float64) (bool, string) {
	c, err := r.Controller(fleetID)
	if err != nil {
		return false, err.Error()
	}
	return c.SetFormation(templateID, now)
}

func (r *Registry) BreakFormation(fleetID string, now float64) bool {
	c, err := r.Controller(fleetID)
	if err != nil {
		return false
	}
	return c.BreakFormation(now)
}

func (r *Registry) TacticalStatus(fleetID string) (model.TacticalStatus, error) {
	c, err := r.Controller(fleetID)
	if err != nil {
		return model.TacticalStatus{}, err
	}
	return c.TacticalStatus()
}

// SetSector installs the sector grid of a star system. Engagements and
// sensors inside the system use its environmental modifiers.
func (r *Registry) SetSector(grid *model.SectorGrid) {
	if grid == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sectors[grid.SystemID] = grid
}

func (r *Registry) sectorAt(systemID string, p model.Vector3) model.SectorType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sectors[systemID].AtPosition(p)
}

// FleetAlive reports whether a fleet is still in play.
func (r *Registry) FleetAlive(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.fleets[id]
	return ok
}

func (r *Registry) FleetPosition(id string) (model.Vector3, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.snapshots[id]
	return f.Position, ok
}

func (r *Registry) Engaged(a, b string) bool {
	r.engMu.RLock()
	defer r.engMu.RUnlock()
	sa, oka := r.sides[a]
	sb, okb := r.sides[b]
	return oka && okb && sa.engagement == sb.engagement && sa.attacker != sb.attacker
}

// TickResult reports what happened during one registry tick.
type TickResult struct {
	// Failed lists fleets whose tick was rolled back.
	Failed      []string
	Engagements []model.CombatEngagement
}

// Tick advances every fleet by dt using the latest fleet snapshots, then
// starts and resolves engagements and refreshes sensor contacts. A fleet
// whose tick panics is restored to its pre-tick state without affecting
// the others.
func (r *Registry) Tick(ctx context.Context, dt, now float64, fleets []model.Fleet) (TickResult, error) {
	r.tickMu.Lock()
	defer r.tickMu.Unlock()

	r.mu.Lock()
	for _, f := range fleets {
		if _, ok := r.fleets[f.ID]; ok {
			r.snapshots[f.ID] = f
		}
	}
	ids := make([]string, 0, len(r.fleets))
	for id := range r.fleets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	ctrls := make([]*Controller, len(ids))
	snaps := make([]model.Fleet, len(ids))
	for i, id := range ids {
		ctrls[i], snaps[i] = r.fleets[id], r.snapshots[id]
	}
	r.mu.Unlock()

	failed := make([]bool, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, r.workers))
	for i := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := tickFleet(ctrls[i], snaps[i], dt, now); err != nil {
				slog.Error("fleet tick failed", "fleet", ids[i], "error", err)
				failed[i] = true
			}
			return nil
		})
	}
	var res TickResult
	if err := g.Wait(); err != nil {
		return res, fmt.Errorf("tick: %w", err)
	}
	for i, f := range failed {
		if f {
			res.Failed = append(res.Failed, ids[i])
		}
	}

	r.detectEngagements(now)
	res.Engagements = r.resolveEngagements(dt, now)
	r.updateContacts(now)
	return res, nil
}

// tickFleet runs one controller's tick, rolling it back if it panics.
func tickFleet(c *Controller, f model.Fleet, dt, now float64) (err error) {
	before := c.checkpoint()
	defer func() {
		if rec := recover(); rec != nil {
			if before.state != nil {
				c.rollback(before)
			}
			err = fmt.Errorf("fleet %s tick panicked: %v", f.ID, rec)
		}
	}()
	return c.Tick(f, dt, now)
}

func (r *Registry) infos() []fleetInfo {
	r.mu.RLock()
	ctrls := make([]*Controller, 0, len(r.fleets))
	for _, c := range r.fleets {
		ctrls = append(ctrls, c)
	}
	r.mu.RUnlock()

	out := make([]fleetInfo, len(ctrls))
	for i, c := range ctrls {
		out[i] = c.info()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// detectEngagements starts a battle for every active attack order whose
// target is in the same system and within weapons range.
func (r *Registry) detectEngagements(now float64) {
	infos := r.infos()
	byID := make(map[string]fleetInfo, len(infos))
	for _, fi := range infos {
		byID[fi.ID] = fi
	}
	busy := make(map[string]bool)
	for _, fi := range infos {
		busy[fi.ID] = fi.Engagement != ""
	}

	for _, fi := range infos {
		for _, target := range fi.AttackTargets {
			t, ok := byID[target]
			if !ok || busy[fi.ID] || busy[t.ID] || t.SystemID != fi.SystemID || t.EmpireID == fi.EmpireID {
				continue
			}
			rng := fi.Range
			if rng <= 0 {
				rng = DefaultEngagementRange
			}
			if fi.Position.Dist(t.Position) > rng {
				continue
			}
			if _, err := r.startEngagement([]string{fi.ID}, []string{t.ID}, now); err != nil {
				slog.Warn("could not start engagement", "attacker", fi.ID, "defender", t.ID, "error", err)
				continue
			}
			busy[fi.ID], busy[t.ID] = true, true
		}
	}
}

// StartEngagement opens a battle between two sides directly.
func (r *Registry) StartEngagement(attackers, defenders []string, now float64) (string, error) {
	r.tickMu.Lock()
	defer r.tickMu.Unlock()
	return r.startEngagement(attackers, defenders, now)
}

func (r *Registry) startEngagement(attackers, defenders []string, now float64) (string, error) {
	if len(attackers) == 0 || len(defenders) == 0 {
		return "", fmt.Errorf("%w: both sides need a fleet", ErrInvalidEngagement)
	}
	seen := make(map[string]bool)
	snap := make(map[string]combat.Participant)
	ctrls := make(map[string]*Controller)
	for _, id := range append(append([]string(nil), attackers...), defenders...) {
		if seen[id] {
			return "", fmt.Errorf("%w: %s appears twice", ErrInvalidEngagement, id)
		}
		seen[id] = true
		c, err := r.Controller(id)
		if err != nil {
			return "", err
		}
		if r.engagedAny(id) {
			return "", fmt.Errorf("%w: %s", ErrAlreadyEngaged, id)
		}
		p, ok := c.participant()
		if !ok {
			return "", fmt.Errorf("%s: %w", id, ErrNotInitialized)
		}
		snap[id], ctrls[id] = p, c
	}

	lead := attackers[0]
	r.mu.RLock()
	where := r.snapshots[lead]
	r.mu.RUnlock()
	sector := r.sectorAt(where.SystemID, where.Position)

	e := combat.NewEngagement(attackers, defenders, where.SystemID, sector, now, snap)
	r.engMu.Lock()
	r.engagements[e.ID] = e
	for _, id := range e.AttackerFleets {
		r.sides[id] = side{engagement: e.ID, attacker: true}
	}
	for _, id := range e.DefenderFleets {
		r.sides[id] = side{engagement: e.ID}
	}
	r.engMu.Unlock()

	for _, c := range ctrls {
		c.joinEngagement(e.ID)
	}
	slog.Info("engagement started", "engagement", e.ID, "system", e.SystemID, "sector", sector,
		"attackers", e.AttackerFleets, "defenders", e.DefenderFleets, "initiative", e.Initiative)
	return e.ID, nil
}

func (r *Registry) engagedAny(id string) bool {
	r.engMu.RLock()
	defer r.engMu.RUnlock()
	_, ok := r.sides[id]
	return ok
}

// resolveEngagements steps every engagement by dt. Hits are computed from
// snapshots of all participants taken before any damage lands.
func (r *Registry) resolveEngagements(dt, now float64) []model.CombatEngagement {
	r.engMu.RLock()
	list := make([]*model.CombatEngagement, 0, len(r.engagements))
	for _, e := range r.engagements {
		list = append(list, e)
	}
	r.engMu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	var out []model.CombatEngagement
	for _, e := range list {
		snap := make(map[string]combat.Participant)
		for _, id := range e.Participants() {
			if c, err := r.Controller(id); err == nil {
				if p, ok := c.participant(); ok {
					snap[id] = p
				}
			}
		}

		// Engagements() copies under engMu, so every write to e holds it.
		// Controllers are never locked while engMu is held.
		r.engMu.Lock()
		res := combat.Step(e, snap, dt)
		r.engMu.Unlock()
		for _, h := range res.Hits {
			c, err := r.Controller(h.FleetID)
			if err != nil {
				continue
			}
			dmg := c.applyHit(h)
			r.engMu.Lock()
			e.Casualties[h.FleetID] += dmg.Casualties
			r.engMu.Unlock()
		}
		if res.PhaseChanged {
			slog.Info("engagement phase", "engagement", e.ID, "phase", e.Phase, "intensity", e.Intensity)
		}
		if res.Ended {
			r.endEngagement(e, res)
		}
		out = append(out, cloneEngagement(e))
	}
	return out
}

func (r *Registry) endEngagement(e *model.CombatEngagement, res combat.Outcome) {
	for _, id := range e.Participants() {
		if c, err := r.Controller(id); err == nil {
			c.leaveEngagement(e.ID, res.Experience[id])
		}
	}
	r.engMu.Lock()
	delete(r.engagements, e.ID)
	for _, id := range e.Participants() {
		if s, ok := r.sides[id]; ok && s.engagement == e.ID {
			delete(r.sides, id)
		}
	}
	r.engMu.Unlock()
	slog.Info("engagement ended", "engagement", e.ID, "winner", res.Winner, "casualties", e.Casualties)
}

// Engagements returns copies of the running engagements.
func (r *Registry) Engagements() []model.CombatEngagement {
	r.engMu.RLock()
	defer r.engMu.RUnlock()
	out := make([]model.CombatEngagement, 0, len(r.engagements))
	for _, e := range r.engagements {
		out = append(out, cloneEngagement(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func cloneEngagement(e *model.CombatEngagement) model.CombatEngagement {
	c := *e
	c.AttackerFleets = append([]string(nil), e.AttackerFleets...)
	c.DefenderFleets = append([]string(nil), e.DefenderFleets...)
	c.NeutralFleets = append([]string(nil), e.NeutralFleets...)
	c.Casualties = make(map[string]int, len(e.Casualties))
	for k, v := range e.Casualties {
		c.Casualties[k] = v
	}
	c.EnvironmentalEffects = make(map[string]float64, len(e.EnvironmentalEffects))
	for k, v := range e.EnvironmentalEffects {
		c.EnvironmentalEffects[k] = v
	}
	c.TacticalAdvantage = make(map[string]float64, len(e.TacticalAdvantage))
	for k, v := range e.TacticalAdvantage {
		c.TacticalAdvantage[k] = v
	}
	return c
}

// updateContacts records every foreign fleet each fleet can see, with a
// threat score of the contact's rating over its own.
func (r *Registry) updateContacts(now float64) {
	infos := r.infos()
	for _, fi := range infos {
		rng := DefaultSensorRange * r.sectorAt(fi.SystemID, fi.Position).Modifiers()[model.ModSensor]
		contacts := make(map[string]model.Contact)
		threats := make(map[string]float64)
		for _, other := range infos {
			if other.EmpireID == fi.EmpireID || other.SystemID != fi.SystemID {
				continue
			}
			if fi.Position.Dist(other.Position) > rng {
				continue
			}
			contacts[other.ID] = model.Contact{
				FleetID:      other.ID,
				EmpireID:     other.EmpireID,
				Position:     other.Position,
				CombatRating: other.Rating,
				LastSeen:     now,
			}
			threats[other.ID] = other.Rating / max(fi.Rating, 1)
		}
		if c, err := r.Controller(fi.ID); err == nil {
			c.setContacts(contacts, threats)
		}
	}
}

// Export returns deep copies of every fleet's command state, sorted by id.
func (r *Registry) Export() []*model.FleetCommandState {
	r.mu.RLock()
	ctrls := make([]*Controller, 0, len(r.fleets))
	for _, c := range r.fleets {
		ctrls = append(ctrls, c)
	}
	r.mu.RUnlock()

	out := make([]*model.FleetCommandState, 0, len(ctrls))
	for _, c := range ctrls {
		if s := c.State(); s != nil {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FleetID < out[j].FleetID })
	return out
}

// Restore replaces the registry's fleets with saved command states.
// Engagements are not saved, so restored fleets start out of combat.
func (r *Registry) Restore(states []*model.FleetCommandState) {
	r.tickMu.Lock()
	defer r.tickMu.Unlock()

	r.engMu.Lock()
	r.engagements = make(map[string]*model.CombatEngagement)
	r.sides = make(map[string]side)
	r.engMu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.fleets = make(map[string]*Controller, len(states))
	snapshots := make(map[string]model.Fleet, len(states))
	for _, s := range states {
		if s == nil || s.FleetID == "" {
			continue
		}
		c := NewController(r.deps)
		c.restoreState(s)
		c.state.CurrentEngagement = ""
		r.fleets[s.FleetID] = c
		f, ok := r.snapshots[s.FleetID]
		if !ok {
			f = model.Fleet{ID: s.FleetID, EmpireID: s.EmpireID}
		}
		snapshots[s.FleetID] = f
	}
	r.snapshots = snapshots
	slog.Info("fleet command restored", "fleets", len(r.fleets))
}
