package command

import (
	"fmt"

	"github.com/nstehr/armada/armada-core/combat"
	"github.com/nstehr/armada/armada-core/model"
	"github.com/nstehr/armada/armada-core/orders"
)

// fleetView adapts a controller to the order executor. It is only used
// while the controller's mutex is held.
type fleetView struct {
	c   *Controller
	now float64
}

func (v *fleetView) Conditions(o *model.Order) orders.ConditionEnv {
	s := v.c.state
	env := orders.ConditionEnv{
		Fuel:                 s.Logistics.CurrentFuel,
		FuelCapacity:         s.Logistics.FuelCapacity,
		FuelFraction:         s.Logistics.FuelFraction(),
		InCombat:             s.CurrentEngagement != "",
		Morale:               s.Combat.Morale,
		CombatRating:         s.Combat.CombatRating,
		Experience:           s.Combat.ExperienceLevel,
		MaintenanceStatus:    combat.MaintenanceStatus(s.Logistics, v.now),
		CommandEffectiveness: s.CommandEffectiveness,
		ShipCount:            len(v.c.fleet.Ships),
		TargetAlive:          o.Target.FleetID == "" || v.TargetAlive(o.Target.FleetID),
		Now:                  v.now,
	}
	if st := s.Formation; st != nil {
		env.HasFormation = true
		env.Formed = st.IsFormed
		env.FormationBreaking = st.Breaking
		env.FormationIntegrity = st.Integrity
	}
	return env
}

func (v *fleetView) TargetAlive(fleetID string) bool {
	if v.c.deps.World == nil {
		return true
	}
	return v.c.deps.World.FleetAlive(fleetID)
}

func (v *fleetView) EngagedWith(fleetID string) bool {
	if v.c.deps.World == nil {
		return false
	}
	return v.c.deps.World.Engaged(v.c.state.FleetID, fleetID)
}

// Reachable checks position targets against the fleet's logistics range.
func (v *fleetView) Reachable(t model.Target) bool {
	r := v.c.state.Logistics.LogisticsRange
	if t.Position == nil || r <= 0 {
		return true
	}
	return v.c.fleet.Position.Dist(*t.Position) <= r
}

func (v *fleetView) TravelTime(t model.Target) float64 {
	p, ok := v.c.targetPosition(t)
	if !ok {
		return DefaultTravelTime
	}
	return v.c.fleet.Position.Dist(p) / v.c.fleet.Speed()
}

func (v *fleetView) Refuel(dt float64) float64 {
	return combat.Refuel(&v.c.state.Logistics, dt)
}

// EnsureFormation forms the fleet up in templateID unless it already is.
// An empty id keeps the current formation.
func (v *fleetView) EnsureFormation(templateID string) error {
	st := v.c.state.Formation
	if templateID == "" {
		if st == nil {
			return ErrNoFormation
		}
		return nil
	}
	if st != nil && st.TemplateID == templateID {
		return nil
	}
	next, err := v.c.deps.Formations.FormUp(v.c.fleet, templateID, v.now)
	if err != nil {
		return fmt.Errorf("form up %s: %w", templateID, err)
	}
	v.c.state.Formation = next
	return nil
}

func (v *fleetView) Formation() (float64, bool, bool) {
	st := v.c.state.Formation
	if st == nil {
		return 0, false, false
	}
	return st.Integrity, st.IsFormed, true
}

// Complete applies what a finished order does to the fleet.
func (v *fleetView) Complete(o *model.Order) {
	s := v.c.state
	switch o.Kind {
	case model.KindRefuel:
		s.Logistics.CurrentFuel = s.Logistics.FuelCapacity
		combat.Refuel(&s.Logistics, 0)
	case model.KindResupply:
		combat.Resupply(&s.Logistics)
		combat.Rearm(&s.Combat)
	case model.KindRepair:
		s.Logistics.LastMaintenance = v.now
		combat.RestoreSystems(&s.Combat)
	}
}
