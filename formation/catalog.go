package formation

import (
	"errors"
	"fmt"
	"sort"

	"github.com/nstehr/armada/armada-core/model"
)

var (
	ErrUnknownTemplate   = errors.New("unknown formation template")
	ErrInsufficientShips = errors.New("insufficient ships for formation")
	ErrTooManyShips      = errors.New("too many ships for formation")
)

// Catalog holds the built-in formation templates. It is never mutated after
// NewCatalog returns, so concurrent readers need no locking. Callers must
// treat the returned templates as read-only.
type Catalog struct {
	templates map[string]*model.FormationTemplate
	ids       []string
}

// NewCatalog builds the catalog with every built-in template plus any extra
// templates. An extra template replaces a built-in one with the same id.
func NewCatalog(extra ...*model.FormationTemplate) *Catalog {
	c := &Catalog{templates: make(map[string]*model.FormationTemplate)}
	for _, t := range append(builtinTemplates(), extra...) {
		c.templates[t.ID] = t
	}
	for id := range c.templates {
		c.ids = append(c.ids, id)
	}
	sort.Strings(c.ids)
	return c
}

// Get returns the template with the given id.
func (c *Catalog) Get(id string) (*model.FormationTemplate, error) {
	t, ok := c.templates[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, id)
	}
	return t, nil
}

// All returns every template sorted by id.
func (c *Catalog) All() []*model.FormationTemplate {
	out := make([]*model.FormationTemplate, len(c.ids))
	for i, id := range c.ids {
		out[i] = c.templates[id]
	}
	return out
}

// CheckShips reports whether a fleet can take up the template: the ship
// count must fall in [min, max] and every role requirement must be met.
func CheckShips(t *model.FormationTemplate, ships []model.Ship) error {
	if len(ships) < t.MinShipCount {
		return fmt.Errorf("%w: %s needs at least %d ships, fleet has %d",
			ErrInsufficientShips, t.ID, t.MinShipCount, len(ships))
	}
	if t.MaxShipCount > 0 && len(ships) > t.MaxShipCount {
		return fmt.Errorf("%w: %s takes at most %d ships, fleet has %d",
			ErrTooManyShips, t.ID, t.MaxShipCount, len(ships))
	}
	have := make(map[model.CombatRole]int)
	for _, s := range ships {
		have[s.Role]++
	}
	// Deterministic message: check roles in sorted order.
	roles := make([]string, 0, len(t.RoleRequirements))
	for r := range t.RoleRequirements {
		roles = append(roles, string(r))
	}
	sort.Strings(roles)
	for _, r := range roles {
		need := t.RoleRequirements[model.CombatRole(r)]
		if have[model.CombatRole(r)] < need {
			return fmt.Errorf("%w: %s needs %d %s, fleet has %d",
				ErrInsufficientShips, t.ID, need, r, have[model.CombatRole(r)])
		}
	}
	return nil
}

func slot(label string, role model.CombatRole, x, y float64) model.FormationSlot {
	return model.FormationSlot{Label: label, Role: role, Offset: model.Vector3{X: x, Y: y}}
}

// newTemplate fills the defaults shared by every template.
func newTemplate(id, name, desc string) *model.FormationTemplate {
	return &model.FormationTemplate{
		ID:                          id,
		Name:                        name,
		Description:                 desc,
		Spacing:                     1000,
		Scale:                       1,
		MinShipCount:                3,
		OptimalShipCount:            6,
		MaxShipCount:                20,
		MovementSpeedModifier:       1,
		DetectionModifier:           1,
		CombatEffectivenessModifier: 1,
		MaintainFormation:           true,
		ReformAfterCombat:           true,
	}
}

func builtinTemplates() []*model.FormationTemplate {
	lineAhead := newTemplate("line_ahead", "Line Ahead", "Ships in a single file behind the flagship")
	lineAhead.Slots = []model.FormationSlot{
		slot("flagship", model.RoleFlagship, 0, 0),
		slot("escort_1", model.RoleCruiser, 0, -1500),
		slot("escort_2", model.RoleCruiser, 0, 1500),
		slot("support_1", model.RoleDestroyer, 0, -3000),
		slot("support_2", model.RoleDestroyer, 0, 3000),
	}
	lineAhead.Spacing = 1500
	lineAhead.RoleRequirements = map[model.CombatRole]int{
		model.RoleFlagship: 1, model.RoleCruiser: 2, model.RoleDestroyer: 2,
	}
	lineAhead.OptimalShipCount = 5
	lineAhead.MovementSpeedModifier = 1.1
	lineAhead.CombatEffectivenessModifier = 1.2

	battleLine := newTemplate("battle_line", "Battle Line", "Heavy ships abreast with destroyers screening astern")
	battleLine.Slots = []model.FormationSlot{
		slot("flagship", model.RoleFlagship, 0, 0),
		slot("battleship_1", model.RoleBattleship, -2000, 0),
		slot("battleship_2", model.RoleBattleship, 2000, 0),
		slot("cruiser_1", model.RoleCruiser, -4000, 0),
		slot("cruiser_2", model.RoleCruiser, 4000, 0),
		slot("destroyer_1", model.RoleDestroyer, -1000, -1500),
		slot("destroyer_2", model.RoleDestroyer, 1000, -1500),
	}
	battleLine.Spacing = 2000
	battleLine.RoleRequirements = map[model.CombatRole]int{
		model.RoleFlagship: 1, model.RoleBattleship: 2, model.RoleCruiser: 2, model.RoleDestroyer: 2,
	}
	battleLine.OptimalShipCount = 7
	battleLine.MovementSpeedModifier = 0.8
	battleLine.CombatEffectivenessModifier = 1.5
	battleLine.CoordinationBonus = 0.2

	screening := newTemplate("screening_formation", "Screening Formation", "Light ships spread ahead to extend detection")
	screening.Slots = []model.FormationSlot{
		slot("flagship", model.RoleFlagship, 0, 0),
		slot("screen_center", model.RoleDestroyer, 0, 3000),
		slot("screen_left", model.RoleDestroyer, -2500, 1500),
		slot("screen_right", model.RoleDestroyer, 2500, 1500),
		slot("picket_left", model.RoleFrigate, -4000, 3000),
		slot("picket_right", model.RoleFrigate, 4000, 3000),
	}
	screening.Spacing = 2500
	screening.RoleRequirements = map[model.CombatRole]int{
		model.RoleFlagship: 1, model.RoleDestroyer: 3, model.RoleFrigate: 2,
	}
	screening.MovementSpeedModifier = 1.3
	screening.DetectionModifier = 1.4
	screening.CombatEffectivenessModifier = 0.9

	box := newTemplate("box_formation", "Box Formation", "Defensive box around the flagship")
	box.Slots = []model.FormationSlot{
		slot("flagship", model.RoleFlagship, 0, 0),
		slot("guardian_1", model.RoleCruiser, -2000, 2000),
		slot("guardian_2", model.RoleCruiser, 2000, 2000),
		slot("guardian_3", model.RoleCruiser, -2000, -2000),
		slot("guardian_4", model.RoleCruiser, 2000, -2000),
		slot("support_1", model.RoleDestroyer, 0, 2000),
		slot("support_2", model.RoleDestroyer, 0, -2000),
		slot("support_3", model.RoleDestroyer, -2000, 0),
		slot("support_4", model.RoleDestroyer, 2000, 0),
	}
	box.Spacing = 2000
	box.RoleRequirements = map[model.CombatRole]int{
		model.RoleFlagship: 1, model.RoleCruiser: 4, model.RoleDestroyer: 4,
	}
	box.OptimalShipCount = 9
	box.MovementSpeedModifier = 0.7
	box.CombatEffectivenessModifier = 1.1
	box.CoordinationBonus = 0.3

	escort := newTemplate("escort_formation", "Escort Formation", "Warships ringing a protected logistics ship")
	escort.Slots = []model.FormationSlot{
		slot("protected_asset", model.RoleLogistics, 0, 0),
		slot("escort_front", model.RoleDestroyer, 0, 1500),
		slot("escort_left", model.RoleDestroyer, -1300, -750),
		slot("escort_right", model.RoleDestroyer, 1300, -750),
		slot("picket_front", model.RoleFrigate, 0, 3000),
		slot("picket_left", model.RoleFrigate, -2600, -1500),
		slot("picket_right", model.RoleFrigate, 2600, -1500),
	}
	escort.Spacing = 1500
	escort.RoleRequirements = map[model.CombatRole]int{
		model.RoleLogistics: 1, model.RoleDestroyer: 3, model.RoleFrigate: 3,
	}
	escort.OptimalShipCount = 7
	escort.MovementSpeedModifier = 0.9
	escort.CoordinationBonus = 0.1

	return []*model.FormationTemplate{lineAhead, battleLine, screening, box, escort}
}
