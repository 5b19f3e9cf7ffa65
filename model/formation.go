package model

// FormationSlot is one station in a formation template. Offsets are in the
// formation's local frame: +Y ahead of the flagship, +X to starboard.
type FormationSlot struct {
	Label  string     `json:"label"`
	Role   CombatRole `json:"role"`
	Offset Vector3    `json:"offset"`
}

// FormationTemplate is an immutable catalog entry.
type FormationTemplate struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Slots       []FormationSlot `json:"slots"`
	Spacing     float64         `json:"spacing"`
	Scale       float64         `json:"scale"`

	RoleRequirements map[CombatRole]int `json:"roleRequirements"`
	OptimalShipCount int                `json:"optimalShipCount"`
	MaxShipCount     int                `json:"maxShipCount"`
	MinShipCount     int                `json:"minShipCount"`

	MovementSpeedModifier       float64 `json:"movementSpeedModifier"`
	DetectionModifier           float64 `json:"detectionModifier"`
	CombatEffectivenessModifier float64 `json:"combatEffectivenessModifier"`
	CoordinationBonus           float64 `json:"coordinationBonus"`

	TechRequirements []string `json:"techRequirements,omitempty"`

	MaintainFormation bool `json:"maintainFormation"`
	BreakOnCombat     bool `json:"breakOnCombat"`
	ReformAfterCombat bool `json:"reformAfterCombat"`
}

// ShipPosition tracks one ship's station inside a live formation.
type ShipPosition struct {
	ShipID           string     `json:"shipId"`
	Role             CombatRole `json:"role"`
	SlotLabel        string     `json:"slotLabel"`
	RelativePosition Vector3    `json:"relativePosition"`
	ActualPosition   Vector3    `json:"actualPosition"`
	TargetPosition   Vector3    `json:"targetPosition"`
	InPosition       bool       `json:"inPosition"`
	Tolerance        float64    `json:"tolerance"`
	LastUpdate       float64    `json:"lastUpdate"`
}

// FormationState is the live formation of one fleet.
type FormationState struct {
	TemplateID            string                  `json:"templateId"`
	IsFormed              bool                    `json:"isFormed"`
	Center                Vector3                 `json:"center"`
	Heading               Vector3                 `json:"heading"`
	Speed                 float64                 `json:"speed"`
	Ships                 map[string]ShipPosition `json:"ships"`
	Integrity             float64                 `json:"integrity"`
	Cohesion              float64                 `json:"cohesion"`
	Spacing               float64                 `json:"spacing"`
	Scale                 float64                 `json:"scale"`
	Breaking              bool                    `json:"breaking"`
	ReformationInProgress bool                    `json:"reformationInProgress"`
	LastUpdate            float64                 `json:"lastUpdate"`
}

// Clone returns a deep copy.
func (s *FormationState) Clone() *FormationState {
	if s == nil {
		return nil
	}
	c := *s
	c.Ships = make(map[string]ShipPosition, len(s.Ships))
	for k, v := range s.Ships {
		c.Ships[k] = v
	}
	return &c
}
