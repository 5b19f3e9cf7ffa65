package combat

import (
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/nstehr/armada/armada-core/model"
)

// Phase lengths in time units.
const (
	ApproachDuration      = 30.0
	EngagementDuration    = 120.0
	PursuitDuration       = 20.0
	DisengagementDuration = 10.0
)

// Pursuit starts once one side is outmatched this badly or its morale breaks.
const (
	routRatingRatio = 0.25
	routMorale      = 20.0

	initiativeBonus   = 1.1
	surpriseWeight    = 0.25
	intensityRampTime = 60.0

	WinnerExperience = 2.0
	LoserExperience  = 1.0
)

// Sides of an engagement.
const (
	SideAttackers = "attackers"
	SideDefenders = "defenders"
)

// Participant is the frozen view of one fleet taken before an engagement
// step. Every fleet's hits are computed from these snapshots alone, so the
// order fleets are processed in cannot change the outcome.
type Participant struct {
	FleetID   string
	EmpireID  string
	Caps      model.CombatCapabilities
	ShipCount int
	// CombatModifier is the formation's combat effectiveness multiplier.
	CombatModifier float64
}

// Hit is damage of one weapon type landing on one fleet.
type Hit struct {
	FleetID string
	Type    model.WeaponType
	Amount  float64
}

// Outcome is the result of one engagement step.
type Outcome struct {
	Hits         []Hit
	PhaseChanged bool
	Ended        bool
	Winner       string
	Experience   map[string]float64 // fleet id -> experience gained
}

// NewEngagement opens an engagement between two sides. Environmental
// effects come from the sector the battle is fought in.
func NewEngagement(attackers, defenders []string, systemID string, sector model.SectorType, now float64, snap map[string]Participant) *model.CombatEngagement {
	e := &model.CombatEngagement{
		ID:                   uuid.NewString(),
		AttackerFleets:       sortedCopy(attackers),
		DefenderFleets:       sortedCopy(defenders),
		StartTime:            now,
		CurrentTime:          now,
		Phase:                model.PhaseApproach,
		PhaseStarted:         now,
		Casualties:           make(map[string]int),
		SystemID:             systemID,
		EnvironmentalEffects: sector.Modifiers(),
		TacticalAdvantage:    make(map[string]float64),
	}
	for _, id := range e.Participants() {
		if p, ok := snap[id]; ok {
			e.EngagementRange = math.Max(e.EngagementRange, p.Caps.MaxEngagementRange)
		}
	}
	e.BattlefieldSize = 2 * e.EngagementRange
	e.Initiative = initiative(e, snap)
	e.SurpriseFactor = surprise(e, snap)
	updateAdvantage(e, snap)
	return e
}

// Step advances an engagement by dt using the participant snapshots.
// Fleets missing from snap are treated as gone.
func Step(e *model.CombatEngagement, snap map[string]Participant, dt float64) Outcome {
	var out Outcome
	if e.Ended || dt < 0 {
		return out
	}
	e.CurrentTime += dt
	elapsed := e.CurrentTime - e.PhaseStarted
	speed := orOne(e.EnvironmentalEffects[model.ModSpeed])

	atk, def := present(e.AttackerFleets, snap), present(e.DefenderFleets, snap)
	updateAdvantage(e, snap)

	switch e.Phase {
	case model.PhaseApproach:
		if len(atk) == 0 || len(def) == 0 {
			out.PhaseChanged = setPhase(e, model.PhaseDisengagement)
			break
		}
		if elapsed >= ApproachDuration/speed {
			out.PhaseChanged = setPhase(e, model.PhaseEngagement)
		}

	case model.PhaseEngagement:
		e.Intensity = math.Min(1, e.Intensity+dt/intensityRampTime)
		out.Hits = append(out.Hits, volley(e, atk, def, snap, dt, sideMultiplier(e, SideAttackers))...)
		out.Hits = append(out.Hits, volley(e, def, atk, snap, dt, sideMultiplier(e, SideDefenders))...)
		switch {
		case len(atk) == 0 || len(def) == 0:
			out.PhaseChanged = setPhase(e, model.PhaseDisengagement)
		case routed(atk, def, snap) != "":
			out.PhaseChanged = setPhase(e, model.PhasePursuit)
		case elapsed >= EngagementDuration:
			out.PhaseChanged = setPhase(e, model.PhaseDisengagement)
		}

	case model.PhasePursuit:
		// Only the winning side keeps firing, at half intensity.
		switch routed(atk, def, snap) {
		case SideDefenders:
			out.Hits = volley(e, atk, def, snap, dt, 0.5)
		case SideAttackers:
			out.Hits = volley(e, def, atk, snap, dt, 0.5)
		}
		if elapsed >= PursuitDuration || len(atk) == 0 || len(def) == 0 {
			out.PhaseChanged = setPhase(e, model.PhaseDisengagement)
		}

	case model.PhaseDisengagement:
		e.Intensity = math.Max(0, e.Intensity-dt/DisengagementDuration)
		if elapsed >= DisengagementDuration {
			e.Ended = true
			out.Ended = true
			out.Winner = winner(atk, def, snap)
			out.Experience = experience(e, out.Winner)
		}
	}
	return out
}

func setPhase(e *model.CombatEngagement, p model.EngagementPhase) bool {
	if p.Rank() <= e.Phase.Rank() {
		return false
	}
	e.Phase = p
	e.PhaseStarted = e.CurrentTime
	return true
}

// volley computes the hits one side lands on the other for dt. Damage is
// split across targets by ship count and across weapon types by the
// shooters' firepower mix.
func volley(e *model.CombatEngagement, shooters, targets []string, snap map[string]Participant, dt, mult float64) []Hit {
	if len(shooters) == 0 || len(targets) == 0 || dt <= 0 {
		return nil
	}
	byType := make(map[model.WeaponType]float64)
	for _, id := range shooters {
		p := snap[id]
		mod := orOne(p.CombatModifier)
		if id == e.Initiative {
			mod *= initiativeBonus
		}
		for t, v := range FirepowerByType(p.Caps) {
			byType[t] += v * mod
		}
	}

	totalShips := 0
	for _, id := range targets {
		totalShips += max(1, snap[id].ShipCount)
	}

	env := orOne(e.EnvironmentalEffects[model.ModAccuracy]) / orOne(e.EnvironmentalEffects[model.ModDefense])
	scale := dt * e.Intensity * mult * env

	types := make([]model.WeaponType, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	var hits []Hit
	for _, id := range targets {
		share := float64(max(1, snap[id].ShipCount)) / float64(totalShips)
		for _, t := range types {
			if amount := byType[t] * scale * share; amount > 0 {
				hits = append(hits, Hit{FleetID: id, Type: t, Amount: amount})
			}
		}
	}
	return hits
}

func sideMultiplier(e *model.CombatEngagement, side string) float64 {
	s := clamp(e.SurpriseFactor, -1, 1)
	if side == SideDefenders {
		s = -s
	}
	return 1 + surpriseWeight*s
}

// routed names the side that has broken, or "".
func routed(atk, def []string, snap map[string]Participant) string {
	ra, rd := sideRating(atk, snap), sideRating(def, snap)
	ma, md := sideMorale(atk, snap), sideMorale(def, snap)
	switch {
	case ra < routRatingRatio*rd || ma < routMorale:
		return SideAttackers
	case rd < routRatingRatio*ra || md < routMorale:
		return SideDefenders
	}
	return ""
}

func winner(atk, def []string, snap map[string]Participant) string {
	switch routed(atk, def, snap) {
	case SideAttackers:
		return SideDefenders
	case SideDefenders:
		return SideAttackers
	}
	switch {
	case len(def) == 0 && len(atk) > 0:
		return SideAttackers
	case len(atk) == 0 && len(def) > 0:
		return SideDefenders
	}
	ra, rd := sideRating(atk, snap), sideRating(def, snap)
	switch {
	case ra > rd:
		return SideAttackers
	case rd > ra:
		return SideDefenders
	}
	return ""
}

func experience(e *model.CombatEngagement, win string) map[string]float64 {
	out := make(map[string]float64)
	for _, id := range e.AttackerFleets {
		out[id] = LoserExperience
		if win == SideAttackers {
			out[id] = WinnerExperience
		}
	}
	for _, id := range e.DefenderFleets {
		out[id] = LoserExperience
		if win == SideDefenders {
			out[id] = WinnerExperience
		}
	}
	return out
}

// initiative goes to the fleet with the best sensor picture: its sensors
// plus counter-countermeasures minus the strongest opposing ECM.
func initiative(e *model.CombatEngagement, snap map[string]Participant) string {
	sensorMod := orOne(e.EnvironmentalEffects[model.ModSensor])
	bestECM := func(ids []string) float64 {
		m := 0.0
		for _, id := range ids {
			m = math.Max(m, snap[id].Caps.ECMStrength)
		}
		return m
	}
	atkECM, defECM := bestECM(e.AttackerFleets), bestECM(e.DefenderFleets)

	best, bestScore := "", math.Inf(-1)
	score := func(id string, opposingECM float64) {
		p, ok := snap[id]
		if !ok {
			return
		}
		s := p.Caps.SensorStrength*sensorMod + p.Caps.ECCMStrength - opposingECM
		if s > bestScore {
			best, bestScore = id, s
		}
	}
	// Attackers are scanned first, so they win ties.
	for _, id := range e.AttackerFleets {
		score(id, defECM)
	}
	for _, id := range e.DefenderFleets {
		score(id, atkECM)
	}
	return best
}

// surprise compares the sides' best sensors, in [-1, 1]; positive favors
// the attackers.
func surprise(e *model.CombatEngagement, snap map[string]Participant) float64 {
	best := func(ids []string) float64 {
		m := 0.0
		for _, id := range ids {
			m = math.Max(m, snap[id].Caps.SensorStrength)
		}
		return m
	}
	a, d := best(e.AttackerFleets), best(e.DefenderFleets)
	if a+d == 0 {
		return 0
	}
	return clamp((a-d)/(a+d), -1, 1)
}

// updateAdvantage records each fleet's rating over the opposing side's.
func updateAdvantage(e *model.CombatEngagement, snap map[string]Participant) {
	atk, def := present(e.AttackerFleets, snap), present(e.DefenderFleets, snap)
	ra, rd := sideRating(atk, snap), sideRating(def, snap)
	for _, id := range atk {
		e.TacticalAdvantage[id] = ratio(snap[id].Caps.CombatRating, rd)
	}
	for _, id := range def {
		e.TacticalAdvantage[id] = ratio(snap[id].Caps.CombatRating, ra)
	}
}

func ratio(a, b float64) float64 {
	if b <= 0 {
		if a > 0 {
			return 1
		}
		return 0
	}
	return a / b
}

func sideRating(ids []string, snap map[string]Participant) float64 {
	total := 0.0
	for _, id := range ids {
		total += snap[id].Caps.CombatRating
	}
	return total
}

func sideMorale(ids []string, snap map[string]Participant) float64 {
	if len(ids) == 0 {
		return 0
	}
	total := 0.0
	for _, id := range ids {
		total += snap[id].Caps.Morale
	}
	return total / float64(len(ids))
}

// present filters ids down to fleets still in the snapshot.
func present(ids []string, snap map[string]Participant) []string {
	var out []string
	for _, id := range ids {
		if p, ok := snap[id]; ok && p.ShipCount > 0 {
			out = append(out, id)
		}
	}
	return out
}

func sortedCopy(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}
