package model

type WeaponType string

const (
	WeaponEnergy  WeaponType = "energy"
	WeaponKinetic WeaponType = "kinetic"
	WeaponMissile WeaponType = "missile"
	WeaponTorpedo WeaponType = "torpedo"
	WeaponFighter WeaponType = "fighter"
)

type DefenseType string

const (
	DefenseShield       DefenseType = "shield"
	DefenseArmor        DefenseType = "armor"
	DefensePointDefense DefenseType = "point_defense"
	DefenseECM          DefenseType = "ecm"
)

type WeaponSystem struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Type               WeaponType `json:"type"`
	Damage             float64    `json:"damage"`
	Range              float64    `json:"range"`
	Accuracy           float64    `json:"accuracy"`
	RateOfFire         float64    `json:"rateOfFire"`
	EnergyCost         float64    `json:"energyCost"`
	AmmunitionCapacity int        `json:"ammunitionCapacity"` // 0 for weapons that need none
	Ammunition         int        `json:"ammunition"`
	TrackingSpeed      float64    `json:"trackingSpeed"`
	Offline            bool       `json:"offline"`
	Wear               float64    `json:"wear"` // 0 pristine, 1 wrecked
	Overheated         bool       `json:"overheated"`
}

type DefenseSystem struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	Type             DefenseType            `json:"type"`
	ProtectionValue  float64                `json:"protectionValue"`
	CoverageAngle    float64                `json:"coverageAngle"`
	RegenerationRate float64                `json:"regenerationRate"` // percentage points per time unit
	EnergyCost       float64                `json:"energyCost"`
	Offline          bool                   `json:"offline"`
	Wear             float64                `json:"wear"`
	CurrentStrength  float64                `json:"currentStrength"` // 0-100 percent
	Effectiveness    map[WeaponType]float64 `json:"effectiveness,omitempty"`
}

type CombatCapabilities struct {
	Weapons  []WeaponSystem  `json:"weapons"`
	Defenses []DefenseSystem `json:"defenses"`

	TotalFirepower     float64 `json:"totalFirepower"`
	MaxEngagementRange float64 `json:"maxEngagementRange"`
	TotalDefense       float64 `json:"totalDefense"`
	ShieldStrength     float64 `json:"shieldStrength"`
	ArmorStrength      float64 `json:"armorStrength"`
	HullStrength       float64 `json:"hullStrength"`
	HullPerShip        float64 `json:"hullPerShip"`

	CombatRating    float64 `json:"combatRating"`
	ExperienceLevel float64 `json:"experienceLevel"` // 0-10
	Morale          float64 `json:"morale"`          // 0-100

	SensorStrength float64 `json:"sensorStrength"`
	ECMStrength    float64 `json:"ecmStrength"`
	ECCMStrength   float64 `json:"eccmStrength"`
}

// Clone returns a deep copy.
func (c CombatCapabilities) Clone() CombatCapabilities {
	out := c
	out.Weapons = append([]WeaponSystem(nil), c.Weapons...)
	out.Defenses = make([]DefenseSystem, len(c.Defenses))
	for i, d := range c.Defenses {
		if d.Effectiveness != nil {
			eff := make(map[WeaponType]float64, len(d.Effectiveness))
			for k, v := range d.Effectiveness {
				eff[k] = v
			}
			d.Effectiveness = eff
		}
		out.Defenses[i] = d
	}
	return out
}

type EngagementPhase string

const (
	PhaseApproach      EngagementPhase = "approach"
	PhaseEngagement    EngagementPhase = "engagement"
	PhasePursuit       EngagementPhase = "pursuit"
	PhaseDisengagement EngagementPhase = "disengagement"
)

// Rank gives the phase's position in the approach → disengagement order.
func (p EngagementPhase) Rank() int {
	switch p {
	case PhaseApproach:
		return 0
	case PhaseEngagement:
		return 1
	case PhasePursuit:
		return 2
	case PhaseDisengagement:
		return 3
	}
	return -1
}

type CombatEngagement struct {
	ID                   string             `json:"id"`
	AttackerFleets       []string           `json:"attackerFleets"`
	DefenderFleets       []string           `json:"defenderFleets"`
	NeutralFleets        []string           `json:"neutralFleets,omitempty"`
	StartTime            float64            `json:"startTime"`
	CurrentTime          float64            `json:"currentTime"`
	EngagementRange      float64            `json:"engagementRange"`
	BattlefieldSize      float64            `json:"battlefieldSize"`
	Phase                EngagementPhase    `json:"phase"`
	PhaseStarted         float64            `json:"phaseStarted"`
	Intensity            float64            `json:"intensity"`
	Casualties           map[string]int     `json:"casualties"`
	SystemID             string             `json:"systemId"`
	EnvironmentalEffects map[string]float64 `json:"environmentalEffects,omitempty"`
	Initiative           string             `json:"initiative,omitempty"`
	SurpriseFactor       float64            `json:"surpriseFactor"`
	TacticalAdvantage    map[string]float64 `json:"tacticalAdvantage,omitempty"`
	Ended                bool               `json:"ended"`
}

// Participants returns attackers followed by defenders.
func (e *CombatEngagement) Participants() []string {
	out := make([]string, 0, len(e.AttackerFleets)+len(e.DefenderFleets))
	out = append(out, e.AttackerFleets...)
	return append(out, e.DefenderFleets...)
}
