package model

import "sort"

// CombatRole is the tactical role a ship fills inside a formation.
type CombatRole string

const (
	RoleFlagship   CombatRole = "flagship"
	RoleBattleship CombatRole = "battleship"
	RoleCruiser    CombatRole = "cruiser"
	RoleDestroyer  CombatRole = "destroyer"
	RoleFrigate    CombatRole = "frigate"
	RoleCarrier    CombatRole = "carrier"
	RoleLogistics  CombatRole = "logistics"
	RoleScout      CombatRole = "scout"
)

// Fleet is the read-only view of a fleet supplied by the turn engine each
// tick. Hull designs are resolved elsewhere; only their results arrive here.
type Fleet struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	EmpireID    string  `json:"empireId"`
	SystemID    string  `json:"systemId"`
	Position    Vector3 `json:"position"`
	CommanderID string  `json:"commanderId,omitempty"`
	Ships       []Ship  `json:"ships"`
}

type Ship struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Role            CombatRole      `json:"role"`
	Position        Vector3         `json:"position"`
	MaxSpeed        float64         `json:"maxSpeed"`
	Hull            float64         `json:"hull"`
	MaxHull         float64         `json:"maxHull"`
	Crew            int             `json:"crew"`
	FuelCapacity    float64         `json:"fuelCapacity"`
	FuelConsumption float64         `json:"fuelConsumption"`
	SensorStrength  float64         `json:"sensorStrength"`
	ECMStrength     float64         `json:"ecmStrength"`
	ECCMStrength    float64         `json:"eccmStrength"`
	Weapons         []WeaponSystem  `json:"weapons,omitempty"`
	Defenses        []DefenseSystem `json:"defenses,omitempty"`
}

type Empire struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ShipIDs returns the fleet's ship ids in ascending order.
func (f Fleet) ShipIDs() []string {
	ids := make([]string, len(f.Ships))
	for i, s := range f.Ships {
		ids[i] = s.ID
	}
	sort.Strings(ids)
	return ids
}

// Ship looks up a ship by id.
func (f Fleet) Ship(id string) (Ship, bool) {
	for _, s := range f.Ships {
		if s.ID == id {
			return s, true
		}
	}
	return Ship{}, false
}

// Speed is the fleet's bounded speed: the slowest ship sets the pace.
// Ships reporting no speed are ignored; a fleet with no known speed gets
// DefaultFleetSpeed.
func (f Fleet) Speed() float64 {
	speed := 0.0
	for _, s := range f.Ships {
		if s.MaxSpeed <= 0 {
			continue
		}
		if speed == 0 || s.MaxSpeed < speed {
			speed = s.MaxSpeed
		}
	}
	if speed == 0 {
		return DefaultFleetSpeed
	}
	return speed
}

// DefaultFleetSpeed is used when no ship reports a maximum speed (m/s).
const DefaultFleetSpeed = 1000.0
