package formation

import (
	"errors"
	"testing"

	"github.com/nstehr/armada/armada-core/model"
)

func TestCatalogBuiltins(t *testing.T) {
	c := NewCatalog()
	want := []string{"battle_line", "box_formation", "escort_formation", "line_ahead", "screening_formation"}

	all := c.All()
	if len(all) != len(want) {
		t.Fatalf("All() returned %d templates, want %d", len(all), len(want))
	}
	for i, tmpl := range all {
		if tmpl.ID != want[i] {
			t.Errorf("All()[%d] = %s, want %s", i, tmpl.ID, want[i])
		}
	}

	seen := make(map[int]string)
	for _, tmpl := range all {
		if len(tmpl.Slots) == 0 {
			t.Errorf("%s has no slots", tmpl.ID)
		}
		if other, dup := seen[len(tmpl.Slots)*100000+int(tmpl.Spacing)]; dup {
			t.Errorf("%s and %s share slot count and spacing", tmpl.ID, other)
		}
		seen[len(tmpl.Slots)*100000+int(tmpl.Spacing)] = tmpl.ID

		required := 0
		for _, n := range tmpl.RoleRequirements {
			required += n
		}
		if required > len(tmpl.Slots) {
			t.Errorf("%s requires %d ships but has %d slots", tmpl.ID, required, len(tmpl.Slots))
		}
		labels := make(map[string]bool)
		for _, sl := range tmpl.Slots {
			if labels[sl.Label] {
				t.Errorf("%s has duplicate slot %s", tmpl.ID, sl.Label)
			}
			labels[sl.Label] = true
		}
	}
}

func TestCatalogGet(t *testing.T) {
	c := NewCatalog()

	tmpl, err := c.Get("battle_line")
	if err != nil {
		t.Fatalf("Get(battle_line) error: %v", err)
	}
	if tmpl.Spacing != 2000 || tmpl.CombatEffectivenessModifier != 1.5 || tmpl.CoordinationBonus != 0.2 {
		t.Errorf("battle_line = spacing %v combat %v coord %v, want 2000 1.5 0.2",
			tmpl.Spacing, tmpl.CombatEffectivenessModifier, tmpl.CoordinationBonus)
	}

	if _, err := c.Get("wedge"); !errors.Is(err, ErrUnknownTemplate) {
		t.Errorf("Get(wedge) error = %v, want ErrUnknownTemplate", err)
	}
}

func TestCatalogGetSharesTemplate(t *testing.T) {
	c := NewCatalog()
	a, _ := c.Get("line_ahead")
	b, _ := c.Get("line_ahead")
	if a != b {
		t.Error("Get returned distinct template pointers for the same id")
	}
}

func TestCatalogExtraTemplate(t *testing.T) {
	wedge := &model.FormationTemplate{ID: "wedge", MinShipCount: 1, Spacing: 500, Scale: 1}
	c := NewCatalog(wedge)
	got, err := c.Get("wedge")
	if err != nil || got != wedge {
		t.Errorf("Get(wedge) = %v, %v; want extra template", got, err)
	}
	if len(c.All()) != 6 {
		t.Errorf("All() = %d templates, want 6", len(c.All()))
	}
}

func TestCheckShips(t *testing.T) {
	tmpl, _ := NewCatalog().Get("line_ahead")
	full := []model.Ship{
		{ID: "f", Role: model.RoleFlagship},
		{ID: "c1", Role: model.RoleCruiser},
		{ID: "c2", Role: model.RoleCruiser},
		{ID: "d1", Role: model.RoleDestroyer},
		{ID: "d2", Role: model.RoleDestroyer},
	}

	tests := []struct {
		name  string
		ships []model.Ship
		want  error
	}{
		{"exact roles", full, nil},
		{"below minimum", full[:2], ErrInsufficientShips},
		{"role missing", append(full[:4:4], model.Ship{ID: "x", Role: model.RoleScout}), ErrInsufficientShips},
		{"too many", make([]model.Ship, 21), ErrTooManyShips},
	}
	for _, tc := range tests {
		err := CheckShips(tmpl, tc.ships)
		if tc.want == nil && err != nil {
			t.Errorf("%s: CheckShips error = %v, want nil", tc.name, err)
		}
		if tc.want != nil && !errors.Is(err, tc.want) {
			t.Errorf("%s: CheckShips error = %v, want %v", tc.name, err, tc.want)
		}
	}
}
