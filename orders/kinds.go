package orders

import (
	"fmt"

	"github.com/nstehr/armada/armada-core/model"
)

// Category groups kinds that compete for the same part of a fleet. Only one
// order per category runs at a time.
type Category string

const (
	CategoryMovement  Category = "movement"
	CategoryCombat    Category = "combat"
	CategoryLogistics Category = "logistics"
	CategoryFormation Category = "formation"
	CategoryPosture   Category = "posture"
	CategoryMission   Category = "mission"
)

// KindSpec describes how an order kind behaves.
type KindSpec struct {
	Category       Category
	Targets        []model.TargetKind // variants the kind accepts
	TargetRequired bool
	Duration       float64 // default estimated duration in seconds
	Travel         bool    // duration comes from travel time when not given
	Movement       bool    // burns fuel while active
}

// Accepts reports whether the kind takes the given target variant.
func (s KindSpec) Accepts(k model.TargetKind) bool {
	for _, t := range s.Targets {
		if t == k {
			return true
		}
	}
	return false
}

var (
	fleetTarget    = []model.TargetKind{model.TargetFleet}
	systemTarget   = []model.TargetKind{model.TargetSystem}
	dockTargets    = []model.TargetKind{model.TargetPlanet, model.TargetFleet}
	locationTarget = []model.TargetKind{model.TargetPosition, model.TargetSystem, model.TargetPlanet}
	anyTarget      = []model.TargetKind{model.TargetPosition, model.TargetFleet, model.TargetSystem, model.TargetPlanet}
)

// SpecFor returns the behavior of kind. Adding a kind without a case here
// makes every order of that kind fail validation.
func SpecFor(kind model.OrderKind) (KindSpec, error) {
	switch kind {
	case model.KindMoveTo:
		return KindSpec{Category: CategoryMovement, Targets: locationTarget, TargetRequired: true, Travel: true, Movement: true}, nil
	case model.KindAttack:
		return KindSpec{Category: CategoryCombat, Targets: fleetTarget, TargetRequired: true, Duration: 100, Movement: true}, nil
	case model.KindPatrol:
		return KindSpec{Category: CategoryMovement, Targets: []model.TargetKind{model.TargetPosition, model.TargetSystem}, Duration: 3600, Movement: true}, nil
	case model.KindDefend:
		return KindSpec{Category: CategoryPosture, Targets: anyTarget, Duration: 600}, nil
	case model.KindEscort:
		return KindSpec{Category: CategoryMovement, Targets: fleetTarget, TargetRequired: true, Duration: 600, Movement: true}, nil
	case model.KindBlockade:
		return KindSpec{Category: CategoryPosture, Targets: []model.TargetKind{model.TargetSystem, model.TargetPlanet}, TargetRequired: true, Duration: 1800}, nil
	case model.KindSurvey:
		return KindSpec{Category: CategoryMission, Targets: locationTarget, Duration: 300}, nil
	case model.KindRepair:
		return KindSpec{Category: CategoryLogistics, Targets: dockTargets, Duration: 600}, nil
	case model.KindRefuel:
		return KindSpec{Category: CategoryLogistics, Targets: dockTargets}, nil
	case model.KindResupply:
		return KindSpec{Category: CategoryLogistics, Targets: dockTargets, Duration: 180}, nil
	case model.KindFormUp:
		return KindSpec{Category: CategoryFormation, Duration: 30}, nil
	case model.KindChangeFormation:
		return KindSpec{Category: CategoryFormation, Duration: 30}, nil
	case model.KindHoldPosition:
		return KindSpec{Category: CategoryPosture, Targets: []model.TargetKind{model.TargetPosition}, Duration: 300}, nil
	case model.KindFollow:
		return KindSpec{Category: CategoryMovement, Targets: fleetTarget, TargetRequired: true, Duration: 600, Movement: true}, nil
	case model.KindJump:
		return KindSpec{Category: CategoryMovement, Targets: systemTarget, TargetRequired: true, Duration: 60, Movement: true}, nil
	case model.KindOrbit:
		return KindSpec{Category: CategoryPosture, Targets: []model.TargetKind{model.TargetPlanet}, TargetRequired: true, Duration: 600}, nil
	case model.KindExplore:
		return KindSpec{Category: CategoryMission, Targets: systemTarget, Duration: 1800, Movement: true}, nil
	}
	return KindSpec{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// IsMovement reports whether orders of kind burn fuel while active.
func IsMovement(kind model.OrderKind) bool {
	s, err := SpecFor(kind)
	return err == nil && s.Movement
}

// IsFormation reports whether kind drives the fleet's formation.
func IsFormation(kind model.OrderKind) bool {
	return kind == model.KindFormUp || kind == model.KindChangeFormation
}
