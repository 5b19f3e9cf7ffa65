package orders

import (
	"errors"

	"github.com/nstehr/armada/armada-core/model"
)

// fakeFleet is a scriptable Fleet for executor tests.
type fakeFleet struct {
	env       ConditionEnv
	dead      map[string]bool
	engaged   map[string]bool
	reachable bool
	travel    float64

	fuel, capacity float64

	integrity float64
	formed    bool
	hasForm   bool
	ensureErr error
	ensured   []string

	completed []string
}

func newFakeFleet() *fakeFleet {
	return &fakeFleet{
		env:       ConditionEnv{Fuel: 100, FuelCapacity: 100, FuelFraction: 1, Morale: 100},
		dead:      make(map[string]bool),
		engaged:   make(map[string]bool),
		reachable: true,
		travel:    10,
		fuel:      100,
		capacity:  100,
		hasForm:   true,
	}
}

func (f *fakeFleet) Conditions(o *model.Order) ConditionEnv {
	env := f.env
	env.TargetAlive = o.Target.FleetID == "" || !f.dead[o.Target.FleetID]
	return env
}

func (f *fakeFleet) TargetAlive(id string) bool       { return !f.dead[id] }
func (f *fakeFleet) EngagedWith(id string) bool       { return f.engaged[id] }
func (f *fakeFleet) Reachable(model.Target) bool      { return f.reachable }
func (f *fakeFleet) TravelTime(model.Target) float64  { return f.travel }
func (f *fakeFleet) Formation() (float64, bool, bool) { return f.integrity, f.formed, f.hasForm }
func (f *fakeFleet) Complete(o *model.Order)          { f.completed = append(f.completed, o.ID) }

func (f *fakeFleet) Refuel(dt float64) float64 {
	if f.capacity <= 0 {
		return 1
	}
	f.fuel = min(f.capacity, f.fuel+f.capacity*0.1*dt)
	return f.fuel / f.capacity
}

func (f *fakeFleet) EnsureFormation(id string) error {
	f.ensured = append(f.ensured, id)
	return f.ensureErr
}

var errNoShips = errors.New("no ships")

func newState() *model.FleetCommandState {
	return &model.FleetCommandState{FleetID: "fleet-1", Orders: make(map[string]*model.Order)}
}

func mustIssue(s *model.FleetCommandState, conds *Conditions, req Request, now float64) *model.Order {
	s.NextSeq++
	o, err := New(s.FleetID, req, now, s.NextSeq, conds)
	if err != nil {
		panic(err)
	}
	if err := Insert(s, o); err != nil {
		panic(err)
	}
	return o
}

func pos(x, y float64) *model.Vector3 { return &model.Vector3{X: x, Y: y} }

func intPtr(n int) *int { return &n }
