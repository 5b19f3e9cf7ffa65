package combat

import (
	"math"

	"github.com/nstehr/armada/armada-core/model"
)

// Logistics defaults for a newly registered fleet.
const (
	DefaultFuelPerShip         = 1000.0
	DefaultConsumptionPerShip  = 1.0
	DefaultMaintenanceInterval = 720.0

	// RefuelRate is the share of tank capacity restored per time unit.
	RefuelRate = 0.1
)

// Maintenance levels, from most to least pressing.
const (
	MaintenanceUrgent    = "urgent"
	MaintenanceDueSoon   = "due_soon"
	MaintenanceScheduled = "scheduled"
	MaintenanceCurrent   = "current"
)

// NewLogistics sizes a fleet's logistics from its ships. Ships that report
// no tank get the default.
func NewLogistics(ships []model.Ship, now float64) model.LogisticsRequirements {
	l := model.LogisticsRequirements{
		MaintenanceInterval:   DefaultMaintenanceInterval,
		LastMaintenance:       now,
		MaintenanceEfficiency: 1,
		SupplyStatus: map[model.SupplyType]float64{
			model.SupplyFuel:       1,
			model.SupplyAmmunition: 1,
			model.SupplySpareParts: 1,
			model.SupplyFood:       1,
		},
	}
	ResizeLogistics(&l, ships)
	l.CurrentFuel = l.FuelCapacity
	updateFuelStatus(&l)
	return l
}

// ResizeLogistics recomputes capacity-style fields after the roster changes.
// Current fuel is kept but never exceeds the new capacity.
func ResizeLogistics(l *model.LogisticsRequirements, ships []model.Ship) {
	l.FuelCapacity, l.FuelConsumptionRate, l.CrewRequirements = 0, 0, 0
	ammo := make(map[string]int)
	for _, s := range ships {
		capacity, rate := s.FuelCapacity, s.FuelConsumption
		if capacity <= 0 {
			capacity = DefaultFuelPerShip
		}
		if rate <= 0 {
			rate = DefaultConsumptionPerShip
		}
		l.FuelCapacity += capacity
		l.FuelConsumptionRate += rate
		l.CrewRequirements += s.Crew
		for _, w := range s.Weapons {
			if w.AmmunitionCapacity > 0 {
				ammo[string(w.Type)] += w.AmmunitionCapacity
			}
		}
	}
	l.AmmunitionRequirements = ammo
	l.CurrentFuel = math.Min(l.CurrentFuel, l.FuelCapacity)
	updateFuelStatus(l)
}

// TickLogistics burns fuel for dt whether or not the fleet is moving. Fuel
// never goes below zero and negative dt is ignored. It reports whether the
// tank ran dry on this tick.
func TickLogistics(l *model.LogisticsRequirements, dt float64) (exhausted bool) {
	if dt <= 0 || l.FuelConsumptionRate <= 0 {
		return false
	}
	before := l.CurrentFuel
	l.CurrentFuel = math.Max(0, l.CurrentFuel-l.FuelConsumptionRate*dt)
	updateFuelStatus(l)
	return before > 0 && l.CurrentFuel == 0
}

// Refuel restores RefuelRate of capacity per time unit and returns the new
// fuel fraction. A fleet with no tank is always full.
func Refuel(l *model.LogisticsRequirements, dt float64) float64 {
	if l.FuelCapacity <= 0 {
		return 1
	}
	if dt > 0 {
		l.CurrentFuel = math.Min(l.FuelCapacity, l.CurrentFuel+l.FuelCapacity*RefuelRate*dt)
	}
	updateFuelStatus(l)
	return l.FuelFraction()
}

// Resupply marks every supply type as fully stocked.
func Resupply(l *model.LogisticsRequirements) {
	if l.SupplyStatus == nil {
		l.SupplyStatus = make(map[model.SupplyType]float64)
	}
	for _, t := range []model.SupplyType{model.SupplyAmmunition, model.SupplySpareParts, model.SupplyFood} {
		l.SupplyStatus[t] = 1
	}
	updateFuelStatus(l)
}

// MaintenanceStatus is 0 right after maintenance and 1 when overdue. Better
// maintenance efficiency stretches the interval.
func MaintenanceStatus(l model.LogisticsRequirements, now float64) float64 {
	if l.MaintenanceInterval <= 0 {
		return 0
	}
	eff := l.MaintenanceEfficiency
	if eff <= 0 {
		eff = 1
	}
	return clamp((now-l.LastMaintenance)/(l.MaintenanceInterval*eff), 0, 1)
}

// MaintenanceLevel buckets a maintenance status. It is advisory only.
func MaintenanceLevel(status float64) string {
	switch {
	case status > 0.8:
		return MaintenanceUrgent
	case status > 0.6:
		return MaintenanceDueSoon
	case status > 0.3:
		return MaintenanceScheduled
	}
	return MaintenanceCurrent
}

func updateFuelStatus(l *model.LogisticsRequirements) {
	if l.SupplyStatus == nil {
		l.SupplyStatus = make(map[model.SupplyType]float64)
	}
	l.SupplyStatus[model.SupplyFuel] = l.FuelFraction()
	if l.FuelCapacity <= 0 {
		l.SupplyStatus[model.SupplyFuel] = 1
	}
}
