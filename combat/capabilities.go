package combat

import (
	"math"

	"github.com/nstehr/armada/armada-core/model"
)

// Default starting values for a fleet that has never fought.
const (
	DefaultMorale      = 100.0
	DefaultHullPerShip = 100.0
	MaxExperience      = 10.0

	moraleRecoveryRate = 0.5 // points per time unit out of combat
	moraleLossScale    = 50.0
)

// RecomputeCapabilities rebuilds a fleet's combat capabilities from its
// ships. Runtime state of systems that already existed in prev (wear,
// ammunition, shield strength) carries over, as do experience and morale.
func RecomputeCapabilities(prev model.CombatCapabilities, ships []model.Ship) model.CombatCapabilities {
	prevWeapons := make(map[string]model.WeaponSystem, len(prev.Weapons))
	for _, w := range prev.Weapons {
		prevWeapons[w.ID] = w
	}
	prevDefenses := make(map[string]model.DefenseSystem, len(prev.Defenses))
	for _, d := range prev.Defenses {
		prevDefenses[d.ID] = d
	}

	caps := model.CombatCapabilities{
		ExperienceLevel: prev.ExperienceLevel,
		Morale:          prev.Morale,
	}
	hullMax := 0.0
	for _, s := range ships {
		for _, w := range s.Weapons {
			w.ID = s.ID + "/" + w.ID
			if p, ok := prevWeapons[w.ID]; ok {
				w.Wear, w.Ammunition, w.Overheated = p.Wear, p.Ammunition, p.Overheated
			}
			caps.Weapons = append(caps.Weapons, w)
		}
		for _, d := range s.Defenses {
			d.ID = s.ID + "/" + d.ID
			if p, ok := prevDefenses[d.ID]; ok {
				d.Wear, d.CurrentStrength = p.Wear, p.CurrentStrength
			} else if d.CurrentStrength <= 0 {
				// A newly fitted system comes online charged.
				d.CurrentStrength = 100
			}
			caps.Defenses = append(caps.Defenses, withOwnEffectiveness(d))
		}
		caps.HullStrength += s.Hull
		if s.MaxHull > 0 {
			hullMax += s.MaxHull
		} else {
			hullMax += s.Hull
		}
		caps.SensorStrength = math.Max(caps.SensorStrength, s.SensorStrength)
		caps.ECMStrength = math.Max(caps.ECMStrength, s.ECMStrength)
		caps.ECCMStrength = math.Max(caps.ECCMStrength, s.ECCMStrength)
	}
	caps.HullPerShip = DefaultHullPerShip
	if len(ships) > 0 && hullMax > 0 {
		caps.HullPerShip = hullMax / float64(len(ships))
	}
	refreshTotals(&caps)
	return caps
}

// WeaponUsable reports whether a weapon contributes firepower.
func WeaponUsable(w model.WeaponSystem) bool {
	if w.Offline || w.Overheated || w.Wear >= 1 {
		return false
	}
	return w.AmmunitionCapacity == 0 || w.Ammunition > 0
}

// WeaponOutput is a usable weapon's sustained damage per time unit.
func WeaponOutput(w model.WeaponSystem) float64 {
	if !WeaponUsable(w) {
		return 0
	}
	return w.Damage * orOne(w.RateOfFire) * orOne(w.Accuracy) * (1 - w.Wear)
}

func defenseValue(d model.DefenseSystem) float64 {
	if d.Offline || d.Wear >= 1 {
		return 0
	}
	return d.ProtectionValue * d.CurrentStrength / 100 * (1 - d.Wear)
}

// refreshTotals recomputes every derived total and the combat rating.
func refreshTotals(c *model.CombatCapabilities) {
	c.TotalFirepower, c.MaxEngagementRange = 0, 0
	for _, w := range c.Weapons {
		out := WeaponOutput(w)
		if out <= 0 {
			continue
		}
		c.TotalFirepower += out
		c.MaxEngagementRange = math.Max(c.MaxEngagementRange, w.Range)
	}

	c.TotalDefense, c.ShieldStrength, c.ArmorStrength = 0, 0, 0
	for _, d := range c.Defenses {
		v := defenseValue(d)
		c.TotalDefense += v
		switch d.Type {
		case model.DefenseShield:
			c.ShieldStrength += v
		case model.DefenseArmor:
			c.ArmorStrength += v
		}
	}
	c.CombatRating = Rating(*c)
}

// Rating scores a fleet's fighting strength. Experience adds up to 100%;
// broken morale halves the score.
func Rating(c model.CombatCapabilities) float64 {
	base := c.TotalFirepower + c.TotalDefense + c.HullStrength/10
	exp := 1 + clamp(c.ExperienceLevel, 0, MaxExperience)/MaxExperience
	morale := 0.5 + 0.5*clamp(c.Morale, 0, 100)/100
	return base * exp * morale
}

// FirepowerByType splits usable firepower by weapon type.
func FirepowerByType(c model.CombatCapabilities) map[model.WeaponType]float64 {
	out := make(map[model.WeaponType]float64)
	for _, w := range c.Weapons {
		if v := WeaponOutput(w); v > 0 {
			out[w.Type] += v
		}
	}
	return out
}

// DamageResult is what one application of damage did to a fleet.
type DamageResult struct {
	Absorbed   float64
	HullDamage float64
	Casualties int
	MoraleLoss float64
}

// ApplyDamage runs incoming damage of one weapon type through the fleet's
// defenses in order. Each defense absorbs up to its protection times its
// multiplier against the weapon type; whatever gets through reduces hull.
// Casualties are the whole ships' worth of hull crossed by this hit, so
// repeated small hits add up, and morale drops in proportion to the share of
// the fleet lost.
func ApplyDamage(c *model.CombatCapabilities, amount float64, wt model.WeaponType, fleetSize int) DamageResult {
	var res DamageResult
	if amount <= 0 {
		return res
	}
	remaining := amount
	for i := range c.Defenses {
		if remaining <= 0 {
			break
		}
		d := &c.Defenses[i]
		mult := Effectiveness(*d, wt)
		capacity := defenseValue(*d) * mult
		if capacity <= 0 {
			continue
		}
		absorbed := math.Min(remaining, capacity)
		d.CurrentStrength = math.Max(0, d.CurrentStrength-absorbed/capacity*d.CurrentStrength)
		remaining -= absorbed
		res.Absorbed += absorbed
	}

	before := c.HullStrength
	res.HullDamage = math.Min(remaining, c.HullStrength)
	c.HullStrength -= res.HullDamage
	if c.HullPerShip > 0 {
		if fleetSize > 0 {
			res.Casualties = shipsLost(c.HullStrength, c.HullPerShip, fleetSize) - shipsLost(before, c.HullPerShip, fleetSize)
		} else {
			res.Casualties = int(math.Floor(res.HullDamage / c.HullPerShip))
		}
	}
	if fleetSize > 0 {
		res.Casualties = max(0, min(res.Casualties, fleetSize))
		res.MoraleLoss = moraleLossScale * float64(res.Casualties) / float64(fleetSize)
	}
	c.Morale = math.Max(0, c.Morale-res.MoraleLoss)
	refreshTotals(c)
	return res
}

// shipsLost is how many whole ships' worth of hull a fleet of n ships is
// missing at the given hull strength.
func shipsLost(hull, perShip float64, n int) int {
	missing := math.Max(0, perShip*float64(n)-hull)
	return int(math.Floor(missing/perShip + 1e-9))
}

// Effectiveness is a defense's multiplier against a weapon type; 1 when the
// defense does not say.
func Effectiveness(d model.DefenseSystem, wt model.WeaponType) float64 {
	if m, ok := d.Effectiveness[wt]; ok {
		return m
	}
	return 1
}

// Regenerate recharges defenses for dt. Morale recovers only out of combat.
func Regenerate(c *model.CombatCapabilities, dt float64, inCombat bool) {
	if dt <= 0 {
		return
	}
	for i := range c.Defenses {
		d := &c.Defenses[i]
		if d.Offline {
			continue
		}
		d.CurrentStrength = math.Min(100, d.CurrentStrength+d.RegenerationRate*dt)
	}
	if !inCombat {
		c.Morale = math.Min(100, c.Morale+moraleRecoveryRate*dt)
	}
	refreshTotals(c)
}

// GainExperience adds combat experience, capped at MaxExperience.
func GainExperience(c *model.CombatCapabilities, amount float64) {
	c.ExperienceLevel = clamp(c.ExperienceLevel+amount, 0, MaxExperience)
	refreshTotals(c)
}

// RestoreSystems returns every weapon and defense to full working order.
func RestoreSystems(c *model.CombatCapabilities) {
	for i := range c.Weapons {
		c.Weapons[i].Wear = 0
		c.Weapons[i].Overheated = false
	}
	for i := range c.Defenses {
		c.Defenses[i].Wear = 0
		c.Defenses[i].CurrentStrength = 100
	}
	refreshTotals(c)
}

// Rearm refills every weapon's magazine.
func Rearm(c *model.CombatCapabilities) {
	for i := range c.Weapons {
		c.Weapons[i].Ammunition = c.Weapons[i].AmmunitionCapacity
	}
	refreshTotals(c)
}

// withOwnEffectiveness copies the effectiveness map so the fleet's state
// does not alias the ship snapshot.
func withOwnEffectiveness(d model.DefenseSystem) model.DefenseSystem {
	if d.Effectiveness == nil {
		return d
	}
	eff := make(map[model.WeaponType]float64, len(d.Effectiveness))
	for k, v := range d.Effectiveness {
		eff[k] = v
	}
	d.Effectiveness = eff
	return d
}

func orOne(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return v
}

// clamp restricts v to [min, max].
func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
