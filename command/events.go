package command

import (
	"fmt"

	"github.com/nstehr/armada/armada-core/combat"
	"github.com/nstehr/armada/armada-core/model"
	"github.com/nstehr/armada/armada-core/notify"
)

// EventKind identifies a change in a fleet's situation worth telling the
// player about.
type EventKind string

const (
	EventFuelLow              EventKind = "fuel_low"
	EventFuelExhausted        EventKind = "fuel_exhausted"
	EventFormationEstablished EventKind = "formation_established"
	EventFormationLost        EventKind = "formation_lost"
	EventMaintenanceDue       EventKind = "maintenance_due"
	EventMoraleBroken         EventKind = "morale_broken"
	EventCombatEntered        EventKind = "combat_entered"
	EventCombatEnded          EventKind = "combat_ended"
)

// Event is a situation change found by diffing consecutive tactical
// snapshots of one fleet.
type Event struct {
	Kind     EventKind
	Category notify.Category
	Priority notify.Priority
	Title    string
	Detail   string
}

const (
	fuelLowThreshold = 0.2
	// Below this morale a fleet is close to routing.
	moraleBrokenThreshold = 20.0
)

// maintenanceRank orders maintenance levels from least to most pressing.
var maintenanceRank = map[string]int{
	combat.MaintenanceCurrent:   0,
	combat.MaintenanceScheduled: 1,
	combat.MaintenanceDueSoon:   2,
	combat.MaintenanceUrgent:    3,
}

// detectEvents compares the current snapshot against the previous one.
// Returns nil if prev is nil (first tick).
func detectEvents(prev *model.TacticalStatus, cur model.TacticalStatus) []Event {
	if prev == nil {
		return nil
	}
	var events []Event

	pf, cf := prev.Logistics.FuelStatus, cur.Logistics.FuelStatus
	switch {
	case pf > 0 && cf == 0:
		events = append(events, Event{
			Kind: EventFuelExhausted, Category: notify.CategoryLogistics, Priority: notify.PriorityCritical,
			Title:  "Fuel exhausted",
			Detail: "fleet is out of fuel and cannot maneuver",
		})
	case pf >= fuelLowThreshold && cf < fuelLowThreshold:
		events = append(events, Event{
			Kind: EventFuelLow, Category: notify.CategoryLogistics, Priority: notify.PriorityHigh,
			Title:  "Fuel low",
			Detail: fmt.Sprintf("fuel down to %.0f%%", 100*cf),
		})
	}

	switch {
	case !prev.Formation.Active && cur.Formation.Active:
		events = append(events, Event{
			Kind: EventFormationEstablished, Category: notify.CategoryFormation, Priority: notify.PriorityNormal,
			Title:  "Formation established",
			Detail: fmt.Sprintf("%s formed at %.0f%% integrity", cur.Formation.Template, 100*cur.Formation.Integrity),
		})
	case prev.Formation.Active && !cur.Formation.Active:
		detail := fmt.Sprintf("%s lost cohesion", prev.Formation.Template)
		if cur.Formation.Template == "" {
			detail = fmt.Sprintf("%s dissolved", prev.Formation.Template)
		}
		events = append(events, Event{
			Kind: EventFormationLost, Category: notify.CategoryFormation, Priority: notify.PriorityHigh,
			Title:  "Formation lost",
			Detail: detail,
		})
	}

	pl, cl := prev.Logistics.MaintenanceLevel, cur.Logistics.MaintenanceLevel
	if maintenanceRank[cl] > maintenanceRank[pl] && maintenanceRank[cl] >= maintenanceRank[combat.MaintenanceDueSoon] {
		p := notify.PriorityNormal
		if cl == combat.MaintenanceUrgent {
			p = notify.PriorityHigh
		}
		events = append(events, Event{
			Kind: EventMaintenanceDue, Category: notify.CategoryLogistics, Priority: p,
			Title:  "Maintenance " + cl,
			Detail: fmt.Sprintf("maintenance status %.2f", cur.Logistics.MaintenanceDue),
		})
	}

	if prev.Combat.Morale >= moraleBrokenThreshold && cur.Combat.Morale < moraleBrokenThreshold {
		events = append(events, Event{
			Kind: EventMoraleBroken, Category: notify.CategoryCombat, Priority: notify.PriorityCritical,
			Title:  "Morale broken",
			Detail: fmt.Sprintf("morale collapsed %.0f → %.0f", prev.Combat.Morale, cur.Combat.Morale),
		})
	}

	switch {
	case !prev.Combat.InCombat && cur.Combat.InCombat:
		events = append(events, Event{
			Kind: EventCombatEntered, Category: notify.CategoryCombat, Priority: notify.PriorityHigh,
			Title:  "Combat entered",
			Detail: fmt.Sprintf("engaging at combat rating %.0f", cur.Combat.CombatRating),
		})
	case prev.Combat.InCombat && !cur.Combat.InCombat:
		events = append(events, Event{
			Kind: EventCombatEnded, Category: notify.CategoryCombat, Priority: notify.PriorityNormal,
			Title:  "Combat ended",
			Detail: fmt.Sprintf("morale %.0f, experience %.1f", cur.Combat.Morale, cur.Combat.Experience),
		})
	}

	return events
}
