package combat

import (
	"math"
	"testing"

	"github.com/nstehr/armada/armada-core/model"
)

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func laserShip(id string) model.Ship {
	return model.Ship{
		ID:      id,
		Role:    model.RoleCruiser,
		Hull:    100,
		MaxHull: 100,
		Weapons: []model.WeaponSystem{
			{ID: "laser", Type: model.WeaponEnergy, Damage: 10, Range: 5000},
		},
		Defenses: []model.DefenseSystem{
			{ID: "shield", Type: model.DefenseShield, ProtectionValue: 20, RegenerationRate: 5},
		},
	}
}

func TestRecomputeCapabilities(t *testing.T) {
	ships := []model.Ship{laserShip("a"), laserShip("b")}
	caps := RecomputeCapabilities(model.CombatCapabilities{Morale: DefaultMorale}, ships)

	if len(caps.Weapons) != 2 || caps.Weapons[0].ID != "a/laser" {
		t.Fatalf("weapons = %+v, want two ids prefixed by ship", caps.Weapons)
	}
	if caps.TotalFirepower != 20 {
		t.Errorf("TotalFirepower = %v, want 20", caps.TotalFirepower)
	}
	if caps.ShieldStrength != 40 || caps.TotalDefense != 40 {
		t.Errorf("shield/defense = %v/%v, want 40/40", caps.ShieldStrength, caps.TotalDefense)
	}
	if caps.HullStrength != 200 || caps.HullPerShip != 100 {
		t.Errorf("hull = %v per ship %v, want 200 and 100", caps.HullStrength, caps.HullPerShip)
	}
	if caps.MaxEngagementRange != 5000 {
		t.Errorf("MaxEngagementRange = %v, want 5000", caps.MaxEngagementRange)
	}
	// (20 + 40 + 20) * 1 * 1
	if !almost(caps.CombatRating, 80) {
		t.Errorf("CombatRating = %v, want 80", caps.CombatRating)
	}
}

func TestUnusableWeaponsContributeNothing(t *testing.T) {
	tests := []struct {
		name string
		w    model.WeaponSystem
	}{
		{"offline", model.WeaponSystem{Damage: 10, Offline: true}},
		{"overheated", model.WeaponSystem{Damage: 10, Overheated: true}},
		{"wrecked", model.WeaponSystem{Damage: 10, Wear: 1}},
		{"out of ammo", model.WeaponSystem{Damage: 10, AmmunitionCapacity: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WeaponOutput(tt.w); got != 0 {
				t.Errorf("WeaponOutput(%s) = %v, want 0", tt.name, got)
			}
		})
	}
	w := model.WeaponSystem{Damage: 10, RateOfFire: 2, Accuracy: 0.5, Wear: 0.5, AmmunitionCapacity: 4, Ammunition: 1}
	if got := WeaponOutput(w); !almost(got, 5) {
		t.Errorf("WeaponOutput(worn) = %v, want 5", got)
	}
}

func TestRecomputeKeepsRuntimeState(t *testing.T) {
	ships := []model.Ship{laserShip("a")}
	prev := RecomputeCapabilities(model.CombatCapabilities{Morale: 70, ExperienceLevel: 3}, ships)
	prev.Weapons[0].Wear = 0.5
	prev.Defenses[0].CurrentStrength = 40

	caps := RecomputeCapabilities(prev, ships)
	if caps.Weapons[0].Wear != 0.5 {
		t.Errorf("wear = %v, want 0.5", caps.Weapons[0].Wear)
	}
	if caps.Defenses[0].CurrentStrength != 40 {
		t.Errorf("strength = %v, want 40", caps.Defenses[0].CurrentStrength)
	}
	if caps.Morale != 70 || caps.ExperienceLevel != 3 {
		t.Errorf("morale/experience = %v/%v, want 70/3", caps.Morale, caps.ExperienceLevel)
	}
}

func TestApplyDamage(t *testing.T) {
	tests := []struct {
		name       string
		amount     float64
		wt         model.WeaponType
		effective  float64
		absorbed   float64
		hull       float64
		casualties int
		morale     float64
	}{
		{"shields hold", 30, model.WeaponEnergy, 1, 30, 300, 0, 100},
		{"spillover below a ship", 90, model.WeaponEnergy, 1, 40, 250, 0, 100},
		{"one ship lost", 140, model.WeaponEnergy, 1, 40, 200, 1, 100 - 50.0/3},
		{"shields weak against kinetic", 60, model.WeaponKinetic, 0.5, 20, 260, 0, 100},
		{"fleet wiped out", 10000, model.WeaponEnergy, 1, 40, 0, 3, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps := model.CombatCapabilities{
				Defenses: []model.DefenseSystem{{
					ID: "s", Type: model.DefenseShield, ProtectionValue: 40, CurrentStrength: 100,
					Effectiveness: map[model.WeaponType]float64{model.WeaponKinetic: tt.effective},
				}},
				HullStrength: 300,
				HullPerShip:  100,
				Morale:       100,
			}
			res := ApplyDamage(&caps, tt.amount, tt.wt, 3)
			if !almost(res.Absorbed, tt.absorbed) {
				t.Errorf("Absorbed = %v, want %v", res.Absorbed, tt.absorbed)
			}
			if !almost(caps.HullStrength, tt.hull) {
				t.Errorf("HullStrength = %v, want %v", caps.HullStrength, tt.hull)
			}
			if res.Casualties != tt.casualties {
				t.Errorf("Casualties = %v, want %v", res.Casualties, tt.casualties)
			}
			if !almost(caps.Morale, tt.morale) {
				t.Errorf("Morale = %v, want %v", caps.Morale, tt.morale)
			}
		})
	}
}

func TestRepeatedHitsAccumulateCasualties(t *testing.T) {
	caps := model.CombatCapabilities{HullStrength: 300, HullPerShip: 100, Morale: 100}
	total := 0
	for i := range 10 {
		res := ApplyDamage(&caps, 50, model.WeaponEnergy, 3)
		total += res.Casualties
		if want := (i + 1) / 2; total != min(want, 3) {
			t.Errorf("after hit %d: casualties = %d, want %d", i+1, total, min(want, 3))
		}
	}
	if caps.HullStrength != 0 {
		t.Errorf("HullStrength = %v, want 0", caps.HullStrength)
	}
	if !almost(caps.Morale, 50) {
		t.Errorf("Morale = %v, want 50", caps.Morale)
	}
}

func TestMoraleNeverNegative(t *testing.T) {
	caps := model.CombatCapabilities{HullStrength: 1000, HullPerShip: 100, Morale: 10}
	ApplyDamage(&caps, 1000, model.WeaponMissile, 2)
	if caps.Morale != 0 {
		t.Errorf("Morale = %v, want 0", caps.Morale)
	}
}

func TestRegenerate(t *testing.T) {
	caps := model.CombatCapabilities{
		Defenses: []model.DefenseSystem{
			{ID: "on", ProtectionValue: 10, CurrentStrength: 50, RegenerationRate: 10},
			{ID: "off", ProtectionValue: 10, CurrentStrength: 50, RegenerationRate: 10, Offline: true},
		},
		Morale: 50,
	}
	Regenerate(&caps, 10, true)
	if caps.Defenses[0].CurrentStrength != 100 || caps.Defenses[1].CurrentStrength != 50 {
		t.Errorf("strengths = %v/%v, want 100/50", caps.Defenses[0].CurrentStrength, caps.Defenses[1].CurrentStrength)
	}
	if caps.Morale != 50 {
		t.Errorf("Morale in combat = %v, want 50", caps.Morale)
	}
	Regenerate(&caps, 10, false)
	if caps.Morale != 55 {
		t.Errorf("Morale out of combat = %v, want 55", caps.Morale)
	}
	Regenerate(&caps, -5, false)
	if caps.Morale != 55 {
		t.Errorf("Morale after negative dt = %v, want 55", caps.Morale)
	}
}

func TestGainExperienceCaps(t *testing.T) {
	caps := model.CombatCapabilities{ExperienceLevel: 9}
	GainExperience(&caps, 5)
	if caps.ExperienceLevel != MaxExperience {
		t.Errorf("ExperienceLevel = %v, want %v", caps.ExperienceLevel, MaxExperience)
	}
}

func TestRestoreAndRearm(t *testing.T) {
	caps := model.CombatCapabilities{
		Weapons:  []model.WeaponSystem{{Damage: 10, Wear: 0.5, Overheated: true, AmmunitionCapacity: 6}},
		Defenses: []model.DefenseSystem{{ProtectionValue: 10, Wear: 0.3, CurrentStrength: 10}},
	}
	RestoreSystems(&caps)
	Rearm(&caps)
	w, d := caps.Weapons[0], caps.Defenses[0]
	if w.Wear != 0 || w.Overheated || w.Ammunition != 6 {
		t.Errorf("weapon = %+v, want pristine and full", w)
	}
	if d.Wear != 0 || d.CurrentStrength != 100 {
		t.Errorf("defense = %+v, want pristine and charged", d)
	}
	if caps.TotalFirepower != 10 {
		t.Errorf("TotalFirepower = %v, want 10", caps.TotalFirepower)
	}
}
