package formation

import (
	"fmt"
	"math"
	"sort"

	"github.com/nstehr/armada/armada-core/model"
)

// Hysteresis thresholds on integrity. A forming fleet becomes formed at
// FormedThreshold; a formed fleet only counts as broken below
// BrokenThreshold, so jitter around a single cutoff cannot flap the flag.
const (
	FormedThreshold = 0.9
	BrokenThreshold = 0.6
)

// Cohesion time constants: cohesion drops faster than it recovers.
const (
	cohesionRecoverTau = 10.0
	cohesionDecayTau   = 3.0
)

// DefaultTolerance is how close a ship must be to its station, in meters.
const DefaultTolerance = 100.0

// Controller assigns ships to template slots and steers them into place.
// It keeps no per-fleet state of its own; callers own the FormationState.
type Controller struct {
	catalog   *Catalog
	Tolerance float64
}

func NewController(catalog *Catalog) *Controller {
	return &Controller{catalog: catalog, Tolerance: DefaultTolerance}
}

// Catalog returns the catalog templates are resolved from.
func (c *Controller) Catalog() *Catalog { return c.catalog }

// FormUp validates the fleet against the template and returns a fresh,
// not-yet-formed state with every ship assigned a station.
func (c *Controller) FormUp(fleet model.Fleet, templateID string, now float64) (*model.FormationState, error) {
	tmpl, err := c.catalog.Get(templateID)
	if err != nil {
		return nil, err
	}
	if err := CheckShips(tmpl, fleet.Ships); err != nil {
		return nil, err
	}

	state := &model.FormationState{
		TemplateID:            tmpl.ID,
		Center:                fleet.Position,
		Heading:               model.DefaultHeading,
		Speed:                 fleet.Speed() * tmpl.MovementSpeedModifier,
		Spacing:               tmpl.Spacing,
		Scale:                 tmpl.Scale,
		ReformationInProgress: true,
		LastUpdate:            now,
	}
	state.Ships = c.assign(tmpl, state, fleet.Ships, now)
	return state, nil
}

// SetSpacing changes the live spacing; stations stretch proportionally.
func (c *Controller) SetSpacing(state *model.FormationState, spacing float64) {
	if spacing > 0 {
		state.Spacing = spacing
	}
}

// Tick advances one formation by dt. Ships close on their stations at the
// formation's speed, never faster than their own. Ships no longer in the
// fleet are dropped and newcomers are stationed. It returns ErrInsufficientShips when
// losses leave fewer ships than the template allows.
func (c *Controller) Tick(state *model.FormationState, fleet model.Fleet, heading model.Vector3, dt, now float64) error {
	tmpl, err := c.catalog.Get(state.TemplateID)
	if err != nil {
		return err
	}
	if dt < 0 {
		dt = 0
	}

	c.syncRoster(tmpl, state, fleet, now)
	if len(state.Ships) < tmpl.MinShipCount {
		return fmt.Errorf("%w: %s down to %d ships, minimum %d",
			ErrInsufficientShips, tmpl.ID, len(state.Ships), tmpl.MinShipCount)
	}

	state.Center = fleet.Position
	if !heading.IsZero() {
		state.Heading = heading.Normalize()
	}
	state.Speed = fleet.Speed() * tmpl.MovementSpeedModifier
	scale := EffectiveScale(tmpl, state)

	inPosition := 0
	for _, id := range sortedShipIDs(state.Ships) {
		sp := state.Ships[id]
		speed := state.Speed
		if s, ok := fleet.Ship(id); ok && s.MaxSpeed > 0 && s.MaxSpeed < speed {
			speed = s.MaxSpeed
		}
		sp.TargetPosition = stationPosition(state, sp.RelativePosition, scale)
		sp.ActualPosition = sp.ActualPosition.MoveToward(sp.TargetPosition, speed*dt)
		sp.InPosition = sp.ActualPosition.Dist(sp.TargetPosition) <= sp.Tolerance
		sp.LastUpdate = now
		if sp.InPosition {
			inPosition++
		}
		state.Ships[id] = sp
	}

	if len(state.Ships) > 0 {
		state.Integrity = float64(inPosition) / float64(len(state.Ships))
	} else {
		state.Integrity = 0
	}
	state.Cohesion = smoothCohesion(state.Cohesion, state.Integrity, dt)
	applyHysteresis(state)
	state.LastUpdate = now
	return nil
}

// EffectiveScale is the factor applied to slot offsets: the template scale
// times how far the live spacing deviates from the template's.
func EffectiveScale(tmpl *model.FormationTemplate, state *model.FormationState) float64 {
	scale := state.Scale
	if scale <= 0 {
		scale = 1
	}
	if tmpl.Spacing > 0 && state.Spacing > 0 {
		scale *= state.Spacing / tmpl.Spacing
	}
	return scale
}

func applyHysteresis(state *model.FormationState) {
	switch {
	case state.Integrity >= FormedThreshold:
		state.IsFormed = true
		state.Breaking = false
		state.ReformationInProgress = false
	case state.Integrity < BrokenThreshold:
		if state.IsFormed {
			state.IsFormed = false
			state.Breaking = true
			state.ReformationInProgress = true
		}
	default:
		if !state.IsFormed {
			state.Breaking = false
		}
	}
}

// smoothCohesion is an exponential moving average of integrity whose time
// constant depends on direction.
func smoothCohesion(prev, integrity, dt float64) float64 {
	if dt <= 0 {
		return prev
	}
	tau := cohesionRecoverTau
	if integrity < prev {
		tau = cohesionDecayTau
	}
	alpha := 1 - math.Exp(-dt/tau)
	return clamp(prev+alpha*(integrity-prev), 0, 1)
}

// syncRoster drops dead ships and stations new ones. Newcomers take a free
// slot of their role when one exists, otherwise a reserve station.
func (c *Controller) syncRoster(tmpl *model.FormationTemplate, state *model.FormationState, fleet model.Fleet, now float64) {
	alive := make(map[string]model.Ship, len(fleet.Ships))
	for _, s := range fleet.Ships {
		alive[s.ID] = s
	}
	for id := range state.Ships {
		if _, ok := alive[id]; !ok {
			delete(state.Ships, id)
		}
	}

	taken := make(map[string]bool, len(state.Ships))
	for _, sp := range state.Ships {
		taken[sp.SlotLabel] = true
	}
	scale := EffectiveScale(tmpl, state)
	reserve := 0
	for _, id := range fleet.ShipIDs() {
		if _, ok := state.Ships[id]; ok {
			continue
		}
		s := alive[id]
		label, offset := "", model.Vector3{}
		for _, sl := range tmpl.Slots {
			if sl.Role == s.Role && !taken[sl.Label] {
				label, offset = sl.Label, sl.Offset
				break
			}
		}
		if label == "" {
			for taken[reserveLabel(reserve)] {
				reserve++
			}
			label, offset = reserveLabel(reserve), reserveOffset(tmpl, reserve)
		}
		taken[label] = true
		state.Ships[id] = c.newPosition(state, s, label, offset, scale, now)
	}
}

// assign performs greedy nearest-slot assignment. Same-role (ship, slot)
// pairs are taken in order of distance, ship id, slot index. Ships left over
// take the nearest free slot of any role, and ships beyond the slot count
// get reserve stations astern.
func (c *Controller) assign(tmpl *model.FormationTemplate, state *model.FormationState, ships []model.Ship, now float64) map[string]model.ShipPosition {
	scale := EffectiveScale(tmpl, state)
	targets := make([]model.Vector3, len(tmpl.Slots))
	for i, sl := range tmpl.Slots {
		targets[i] = stationPosition(state, sl.Offset, scale)
	}

	sorted := append([]model.Ship(nil), ships...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	type pair struct {
		dist float64
		ship int
		slot int
	}
	var pairs []pair
	for si, s := range sorted {
		for li, sl := range tmpl.Slots {
			if sl.Role == s.Role {
				pairs = append(pairs, pair{s.Position.Dist(targets[li]), si, li})
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].dist != pairs[j].dist {
			return pairs[i].dist < pairs[j].dist
		}
		if pairs[i].ship != pairs[j].ship {
			return pairs[i].ship < pairs[j].ship
		}
		return pairs[i].slot < pairs[j].slot
	})

	out := make(map[string]model.ShipPosition, len(ships))
	slotTaken := make([]bool, len(tmpl.Slots))
	for _, p := range pairs {
		s := sorted[p.ship]
		if _, done := out[s.ID]; done || slotTaken[p.slot] {
			continue
		}
		slotTaken[p.slot] = true
		sl := tmpl.Slots[p.slot]
		out[s.ID] = c.newPosition(state, s, sl.Label, sl.Offset, scale, now)
	}

	reserve := 0
	for _, s := range sorted {
		if _, done := out[s.ID]; done {
			continue
		}
		best := -1
		for li := range tmpl.Slots {
			if slotTaken[li] {
				continue
			}
			if best < 0 || s.Position.Dist(targets[li]) < s.Position.Dist(targets[best]) {
				best = li
			}
		}
		if best >= 0 {
			slotTaken[best] = true
			sl := tmpl.Slots[best]
			out[s.ID] = c.newPosition(state, s, sl.Label, sl.Offset, scale, now)
			continue
		}
		out[s.ID] = c.newPosition(state, s, reserveLabel(reserve), reserveOffset(tmpl, reserve), scale, now)
		reserve++
	}
	return out
}

func (c *Controller) newPosition(state *model.FormationState, s model.Ship, label string, offset model.Vector3, scale, now float64) model.ShipPosition {
	target := stationPosition(state, offset, scale)
	return model.ShipPosition{
		ShipID:           s.ID,
		Role:             s.Role,
		SlotLabel:        label,
		RelativePosition: offset,
		ActualPosition:   s.Position,
		TargetPosition:   target,
		InPosition:       s.Position.Dist(target) <= c.Tolerance,
		Tolerance:        c.Tolerance,
		LastUpdate:       now,
	}
}

func stationPosition(state *model.FormationState, offset model.Vector3, scale float64) model.Vector3 {
	return state.Center.Add(model.RotateToHeading(offset.Scale(scale), state.Heading))
}

func reserveLabel(k int) string { return fmt.Sprintf("reserve_%d", k+1) }

// reserveOffset places reserve k one spacing further astern than the
// rearmost slot for each reserve before it.
func reserveOffset(tmpl *model.FormationTemplate, k int) model.Vector3 {
	rear := 0.0
	for _, sl := range tmpl.Slots {
		rear = math.Min(rear, sl.Offset.Y)
	}
	spacing := tmpl.Spacing
	if spacing <= 0 {
		spacing = 1000
	}
	return model.Vector3{Y: rear - spacing*float64(k+1)}
}

func sortedShipIDs(m map[string]model.ShipPosition) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
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
