package command

import (
	"sync"

	"github.com/nstehr/armada/armada-core/formation"
	"github.com/nstehr/armada/armada-core/model"
	"github.com/nstehr/armada/armada-core/notify"
	"github.com/nstehr/armada/armada-core/orders"
)

type recordingSink struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (s *recordingSink) Post(n notify.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, n)
}

func (s *recordingSink) titles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.got))
	for i, n := range s.got {
		out[i] = n.Title
	}
	return out
}

func (s *recordingSink) has(title string) bool {
	for _, t := range s.titles() {
		if t == title {
			return true
		}
	}
	return false
}

type stubWorld struct {
	dead map[string]bool
}

func (w stubWorld) FleetAlive(id string) bool                  { return !w.dead[id] }
func (w stubWorld) FleetPosition(string) (model.Vector3, bool) { return model.Vector3{}, false }
func (w stubWorld) Engaged(string, string) bool                { return false }

// lineAheadFleet has exactly the ships line_ahead needs, all at the origin.
func lineAheadFleet(id, empire string) model.Fleet {
	roles := []struct {
		suffix string
		role   model.CombatRole
	}{
		{"flag", model.RoleFlagship},
		{"cr-1", model.RoleCruiser},
		{"cr-2", model.RoleCruiser},
		{"dd-1", model.RoleDestroyer},
		{"dd-2", model.RoleDestroyer},
	}
	f := model.Fleet{ID: id, Name: id, EmpireID: empire, SystemID: "sol", CommanderID: "adm-" + id}
	for _, r := range roles {
		f.Ships = append(f.Ships, model.Ship{
			ID:       id + "-" + r.suffix,
			Role:     r.role,
			MaxSpeed: 1000,
			Hull:     100,
			MaxHull:  100,
			Weapons: []model.WeaponSystem{
				{ID: "laser", Type: model.WeaponEnergy, Damage: 10, Range: 5000},
			},
			Defenses: []model.DefenseSystem{
				{ID: "shield", Type: model.DefenseShield, ProtectionValue: 10, RegenerationRate: 5},
			},
		})
	}
	return f
}

func withoutShips(f model.Fleet, ids ...string) model.Fleet {
	drop := make(map[string]bool)
	for _, id := range ids {
		drop[id] = true
	}
	out := f
	out.Ships = nil
	for _, s := range f.Ships {
		if !drop[s.ID] {
			out.Ships = append(out.Ships, s)
		}
	}
	return out
}

func newTestController(sink notify.Sink, extra ...*model.FormationTemplate) *Controller {
	return NewController(Deps{
		Formations: formation.NewController(formation.NewCatalog(extra...)),
		Executor:   orders.NewExecutor(orders.NewConditions()),
		Sink:       sink,
		World:      stubWorld{dead: map[string]bool{}},
	})
}

func historyOf(s *model.FleetCommandState, kind model.OrderKind) (model.OrderRecord, bool) {
	for _, r := range s.History {
		if r.Kind == kind {
			return r, true
		}
	}
	return model.OrderRecord{}, false
}

func pos(x, y float64) *model.Vector3 { return &model.Vector3{X: x, Y: y} }
