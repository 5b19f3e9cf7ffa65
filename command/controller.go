package command

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/nstehr/armada/armada-core/combat"
	"github.com/nstehr/armada/armada-core/formation"
	"github.com/nstehr/armada/armada-core/model"
	"github.com/nstehr/armada/armada-core/notify"
	"github.com/nstehr/armada/armada-core/orders"
)

var (
	ErrUnknownFleet      = errors.New("unknown fleet")
	ErrNotInitialized    = errors.New("fleet command not initialized")
	ErrNoFormation       = errors.New("fleet has no formation")
	ErrAlreadyEngaged    = errors.New("fleet already engaged")
	ErrInvalidEngagement = errors.New("invalid engagement")
)

// Command defaults for a newly registered fleet.
const (
	DefaultCommunicationRange = 10000.0
	DefaultTravelTime         = 100.0

	officerFactor   = 1.0
	noOfficerFactor = 0.6
)

// World is what a fleet can learn about the rest of the galaxy.
type World interface {
	FleetAlive(id string) bool
	FleetPosition(id string) (model.Vector3, bool)
	// Engaged reports whether a and b are on opposite sides of one engagement.
	Engaged(a, b string) bool
}

// Deps are the shared collaborators every controller uses.
type Deps struct {
	Formations *formation.Controller
	Executor   *orders.Executor
	Sink       notify.Sink
	World      World
}

// Controller owns one fleet's command state. All methods are safe for
// concurrent use; the mutex serializes order issuance against ticks.
type Controller struct {
	mu     sync.Mutex
	deps   Deps
	state  *model.FleetCommandState
	fleet  model.Fleet
	roster string
	prev   *model.TacticalStatus
}

func NewController(deps Deps) *Controller {
	if deps.Sink == nil {
		deps.Sink = notify.Discard{}
	}
	return &Controller{deps: deps}
}

// Initialize sets up command state from the fleet's first snapshot. Calling
// it again for an initialized fleet leaves the state untouched; the new
// snapshot is only kept for the next tick to pick up.
func (c *Controller) Initialize(fleet model.Fleet, now float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != nil {
		c.fleet = fleet
		return
	}
	c.fleet = fleet
	c.roster = rosterKey(fleet)
	c.state = &model.FleetCommandState{
		FleetID:             fleet.ID,
		EmpireID:            fleet.EmpireID,
		FlagshipID:          pickFlagship(fleet, ""),
		CommandingOfficerID: fleet.CommanderID,
		CommunicationRange:  DefaultCommunicationRange,
		Orders:              make(map[string]*model.Order),
		Combat:              combat.RecomputeCapabilities(model.CombatCapabilities{Morale: combat.DefaultMorale}, fleet.Ships),
		Logistics:           combat.NewLogistics(fleet.Ships, now),
		KnownContacts:       make(map[string]model.Contact),
		ThreatAssessment:    make(map[string]float64),
		LastUpdate:          now,
	}
	c.updateDerived(now)
	slog.Info("fleet command initialized", "fleet", fleet.ID, "empire", fleet.EmpireID, "ships", len(fleet.Ships), "flagship", c.state.FlagshipID)
}

// restoreState replaces the state wholesale after loading a snapshot.
func (c *Controller) restoreState(s *model.FleetCommandState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s.Clone()
	if c.state.Orders == nil {
		c.state.Orders = make(map[string]*model.Order)
	}
	if c.fleet.ID == "" {
		c.fleet = model.Fleet{ID: s.FleetID, EmpireID: s.EmpireID}
	}
}

// checkpoint is everything a tick may change on a controller.
type checkpoint struct {
	state  *model.FleetCommandState
	fleet  model.Fleet
	roster string
	prev   *model.TacticalStatus
}

func (c *Controller) checkpoint() checkpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return checkpoint{state: c.state.Clone(), fleet: c.fleet, roster: c.roster, prev: c.prev}
}

// rollback puts the controller back to a checkpoint taken before a failed
// tick.
func (c *Controller) rollback(cp checkpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = cp.state.Clone()
	c.fleet, c.roster, c.prev = cp.fleet, cp.roster, cp.prev
}

// State returns a deep copy of the command state.
func (c *Controller) State() *model.FleetCommandState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// IssueOrder validates req and queues the order. It returns the new
// order's id, or false with a reason.
func (c *Controller) IssueOrder(req orders.Request, now float64) (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	o, err := c.issue(req, now)
	if err != nil {
		slog.Info("order rejected", "fleet", c.fleet.ID, "kind", req.Kind, "error", err)
		return false, err.Error()
	}
	slog.Info("order issued", "fleet", o.FleetID, "order", o.ID, "kind", o.Kind, "priority", o.Priority)
	return true, o.ID
}

func (c *Controller) issue(req orders.Request, now float64) (*model.Order, error) {
	if c.state == nil {
		return nil, ErrNotInitialized
	}
	if orders.IsFormation(req.Kind) {
		if id, ok := req.Parameters[orders.ParamFormationTemplate].(string); ok && id != "" {
			if _, err := c.deps.Formations.Catalog().Get(id); err != nil {
				return nil, err
			}
		}
	}
	o, err := orders.New(c.state.FleetID, req, now, c.state.NextSeq, c.deps.Executor.Conditions())
	if err != nil {
		return nil, err
	}
	if err := orders.Insert(c.state, o); err != nil {
		return nil, err
	}
	c.state.NextSeq++
	return o, nil
}

// CancelOrder cancels a live order and its live children.
func (c *Controller) CancelOrder(id string, now float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return false
	}
	trs, ok := c.deps.Executor.Cancel(c.state, id, now)
	if ok {
		c.report(trs, now)
	}
	return ok
}

// SetFormation forms the fleet up in templateID and queues a high priority
// form_up order that completes once the formation is established.
func (c *Controller) SetFormation(templateID string, now float64) (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return false, ErrNotInitialized.Error()
	}

	st, err := c.deps.Formations.FormUp(c.fleet, templateID, now)
	if err != nil {
		slog.Info("formation rejected", "fleet", c.fleet.ID, "template", templateID, "error", err)
		return false, err.Error()
	}
	c.state.Formation = st
	c.state.PendingReformTemplate = ""

	o, err := c.issue(orders.Request{
		Kind:       model.KindFormUp,
		Priority:   model.PriorityHigh,
		Parameters: map[string]any{orders.ParamFormationTemplate: templateID},
	}, now)
	if err != nil {
		return false, err.Error()
	}
	slog.Info("forming up", "fleet", c.fleet.ID, "template", templateID, "order", o.ID)
	return true, o.ID
}

// BreakFormation dissolves the formation and cancels formation orders.
func (c *Controller) BreakFormation(now float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil || c.state.Formation == nil {
		return false
	}
	c.state.Formation = nil
	c.state.PendingReformTemplate = ""
	for _, id := range append([]string(nil), c.state.OrderQueue...) {
		if o, ok := c.state.Orders[id]; ok && orders.IsFormation(o.Kind) {
			trs, _ := c.deps.Executor.Cancel(c.state, id, now)
			c.report(trs, now)
		}
	}
	return true
}

// Tick advances the fleet by dt: orders, then formation, then logistics,
// then regeneration, then derived fields.
func (c *Controller) Tick(fleet model.Fleet, dt, now float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return fmt.Errorf("tick %s: %w", fleet.ID, ErrNotInitialized)
	}
	if dt < 0 {
		dt = 0
	}
	c.observe(fleet)
	view := &fleetView{c: c, now: now}

	c.report(c.deps.Executor.Tick(c.state, view, dt, now), now)
	c.tickFormation(dt, now)
	c.tickLogistics(dt, now)
	combat.Regenerate(&c.state.Combat, dt, c.inCombat())
	c.updateDerived(now)

	status := c.status()
	for _, ev := range detectEvents(c.prev, status) {
		c.post(ev.Category, ev.Priority, ev.Title, ev.Detail, now)
	}
	c.prev = &status
	return nil
}

// observe takes a new fleet snapshot. Capabilities and logistics are only
// rebuilt when the roster changed so that battle damage survives between
// snapshots.
func (c *Controller) observe(fleet model.Fleet) {
	c.fleet = fleet
	c.state.EmpireID = fleet.EmpireID
	if fleet.CommanderID != "" {
		c.state.CommandingOfficerID = fleet.CommanderID
	}
	key := rosterKey(fleet)
	if key == c.roster {
		return
	}
	c.roster = key
	c.state.Combat = combat.RecomputeCapabilities(c.state.Combat, fleet.Ships)
	combat.ResizeLogistics(&c.state.Logistics, fleet.Ships)

	if _, ok := fleet.Ship(c.state.FlagshipID); !ok {
		old := c.state.FlagshipID
		c.state.FlagshipID = pickFlagship(fleet, old)
		if old != "" && c.state.FlagshipID != "" {
			c.post(notify.CategoryFleet, notify.PriorityHigh, "Flagship lost",
				fmt.Sprintf("%s lost; command passes to %s", old, c.state.FlagshipID), c.state.LastUpdate)
		}
	}
}

func (c *Controller) tickFormation(dt, now float64) {
	st := c.state.Formation
	if c.inCombat() && st != nil {
		if tmpl, err := c.deps.Formations.Catalog().Get(st.TemplateID); err == nil && tmpl.BreakOnCombat {
			if tmpl.ReformAfterCombat {
				c.state.PendingReformTemplate = tmpl.ID
			}
			c.breakFormation(now, "broke formation to engage")
			return
		}
	}
	if !c.inCombat() && st == nil && c.state.PendingReformTemplate != "" {
		id := c.state.PendingReformTemplate
		c.state.PendingReformTemplate = ""
		if st, err := c.deps.Formations.FormUp(c.fleet, id, now); err == nil {
			c.state.Formation = st
			slog.Info("reforming after combat", "fleet", c.fleet.ID, "template", id)
		} else {
			slog.Info("could not reform after combat", "fleet", c.fleet.ID, "template", id, "error", err)
		}
		return
	}
	if st == nil {
		return
	}

	err := c.deps.Formations.Tick(st, c.fleet, c.heading(), dt, now)
	if errors.Is(err, formation.ErrInsufficientShips) {
		c.breakFormation(now, err.Error())
	} else if err != nil {
		slog.Error("formation tick failed", "fleet", c.fleet.ID, "template", st.TemplateID, "error", err)
	}
}

// breakFormation drops the formation after losses or for combat and fails
// the orders that depended on it.
func (c *Controller) breakFormation(now float64, why string) {
	id := c.state.Formation.TemplateID
	c.state.Formation = nil
	trs := c.deps.Executor.FailWhere(c.state, model.ReasonFormationBroken, now, func(o *model.Order) bool {
		return orders.IsFormation(o.Kind)
	})
	c.report(trs, now)
	slog.Info("formation broken", "fleet", c.fleet.ID, "template", id, "reason", why)
}

// heading points at the target of the active movement order, if any.
func (c *Controller) heading() model.Vector3 {
	for _, o := range c.state.OrdersWithStatus(model.StatusActive) {
		if !orders.IsMovement(o.Kind) {
			continue
		}
		if p, ok := c.targetPosition(o.Target); ok {
			return p.Sub(c.fleet.Position)
		}
	}
	return model.Vector3{}
}

func (c *Controller) targetPosition(t model.Target) (model.Vector3, bool) {
	if t.Position != nil {
		return *t.Position, true
	}
	if t.FleetID != "" && c.deps.World != nil {
		return c.deps.World.FleetPosition(t.FleetID)
	}
	return model.Vector3{}, false
}

func (c *Controller) tickLogistics(dt, now float64) {
	exhausted := combat.TickLogistics(&c.state.Logistics, dt)
	if !exhausted {
		return
	}
	trs := c.deps.Executor.FailWhere(c.state, model.ReasonOutOfFuel, now, func(o *model.Order) bool {
		return o.Status == model.StatusActive && orders.IsMovement(o.Kind)
	})
	c.report(trs, now)
}

func (c *Controller) inCombat() bool { return c.state.CurrentEngagement != "" }

// updateDerived recomputes command effectiveness and bookkeeping fields.
func (c *Controller) updateDerived(now float64) {
	s := c.state
	officer := noOfficerFactor
	if s.CommandingOfficerID != "" {
		officer = officerFactor
	}
	eff := officer * (0.5 + 0.5*c.commShare())
	if st := s.Formation; st != nil && st.IsFormed {
		if tmpl, err := c.deps.Formations.Catalog().Get(st.TemplateID); err == nil {
			eff += tmpl.CoordinationBonus
		}
	}
	s.CommandEffectiveness = math.Max(0, math.Min(1, eff))
	s.CombatExperience = s.Combat.ExperienceLevel
	s.LastUpdate = now
}

// commShare is the fraction of ships within communication range of the
// flagship.
func (c *Controller) commShare() float64 {
	if len(c.fleet.Ships) == 0 {
		return 0
	}
	flag, ok := c.fleet.Ship(c.state.FlagshipID)
	if !ok {
		return 0
	}
	in := 0
	for _, s := range c.fleet.Ships {
		if s.Position.Dist(flag.Position) <= c.state.CommunicationRange {
			in++
		}
	}
	return float64(in) / float64(len(c.fleet.Ships))
}

// report posts notifications for order transitions and tracks mission
// outcomes.
func (c *Controller) report(trs []orders.Transition, now float64) {
	for _, tr := range trs {
		switch tr.To {
		case model.StatusCompleted:
			c.recordMission(true)
			c.post(notify.CategoryOrder, notify.PriorityNormal, "Order completed",
				fmt.Sprintf("%s order %s completed", tr.Kind, tr.OrderID), now)
		case model.StatusFailed:
			c.recordMission(false)
			c.post(notify.CategoryOrder, notify.PriorityHigh, "Order failed",
				fmt.Sprintf("%s order %s failed: %s", tr.Kind, tr.OrderID, tr.Reason), now)
		case model.StatusCancelled:
			c.post(notify.CategoryOrder, notify.PriorityLow, "Order cancelled",
				fmt.Sprintf("%s order %s cancelled", tr.Kind, tr.OrderID), now)
		}
	}
}

func (c *Controller) recordMission(success bool) {
	s := c.state
	s.TotalMissions++
	v := 0.0
	if success {
		v = 1
	}
	s.MissionSuccessRate += (v - s.MissionSuccessRate) / float64(s.TotalMissions)
}

func (c *Controller) post(cat notify.Category, p notify.Priority, title, detail string, now float64) {
	c.deps.Sink.Post(notify.Notification{
		Category:    cat,
		Priority:    p,
		Title:       title,
		Description: detail,
		Timestamp:   now,
		EmpireID:    c.state.EmpireID,
		FleetID:     c.state.FleetID,
	})
}

// TacticalStatus returns a summary safe to hand to other goroutines.
func (c *Controller) TacticalStatus() (model.TacticalStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return model.TacticalStatus{}, ErrNotInitialized
	}
	return c.status(), nil
}

func (c *Controller) status() model.TacticalStatus {
	s := c.state
	ts := model.TacticalStatus{
		FleetID:              s.FleetID,
		CommandEffectiveness: s.CommandEffectiveness,
		CurrentOrders:        len(s.OrdersWithStatus(model.StatusActive)),
		PendingOrders:        len(s.OrdersWithStatus(model.StatusPending)),
		Combat: model.CombatSummary{
			InCombat:     s.CurrentEngagement != "",
			CombatRating: s.Combat.CombatRating,
			Experience:   s.Combat.ExperienceLevel,
			Morale:       s.Combat.Morale,
		},
		Performance: model.PerformanceSummary{
			MissionSuccessRate: s.MissionSuccessRate,
			TotalMissions:      s.TotalMissions,
		},
	}
	if st := s.Formation; st != nil {
		ts.Formation = model.FormationSummary{
			Active:    st.IsFormed,
			Template:  st.TemplateID,
			Integrity: st.Integrity,
			Cohesion:  st.Cohesion,
		}
	}
	due := combat.MaintenanceStatus(s.Logistics, s.LastUpdate)
	ts.Logistics = model.LogisticsSummary{
		FuelStatus:       s.Logistics.FuelFraction(),
		SupplyStatus:     make(map[model.SupplyType]float64, len(s.Logistics.SupplyStatus)),
		MaintenanceDue:   due,
		MaintenanceLevel: combat.MaintenanceLevel(due),
	}
	for k, v := range s.Logistics.SupplyStatus {
		ts.Logistics.SupplyStatus[k] = v
	}
	return ts
}

// pickFlagship prefers a flagship-role ship, then the lowest ship id.
func pickFlagship(f model.Fleet, current string) string {
	if _, ok := f.Ship(current); ok {
		return current
	}
	ids := f.ShipIDs()
	for _, id := range ids {
		if s, _ := f.Ship(id); s.Role == model.RoleFlagship {
			return id
		}
	}
	if len(ids) > 0 {
		return ids[0]
	}
	return ""
}

func rosterKey(f model.Fleet) string {
	ids := f.ShipIDs()
	sort.Strings(ids)
	return strings.Join(ids, ",")
}
