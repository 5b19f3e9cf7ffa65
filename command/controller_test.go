package command

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/nstehr/armada/armada-core/model"
	"github.com/nstehr/armada/armada-core/orders"
)

func TestInitializeIsIdempotent(t *testing.T) {
	c := newTestController(nil)
	f := lineAheadFleet("f1", "terran")
	c.Initialize(f, 0)
	ok, id := c.IssueOrder(orders.Request{Kind: model.KindPatrol}, 0)
	if !ok {
		t.Fatalf("IssueOrder(patrol) rejected: %s", id)
	}
	c.Initialize(f, 5)

	s := c.State()
	if len(s.Orders) != 1 || s.Orders[id] == nil {
		t.Errorf("orders after second Initialize = %v, want the patrol kept", s.OrderQueue)
	}
	if s.FlagshipID != "f1-flag" {
		t.Errorf("FlagshipID = %q, want f1-flag", s.FlagshipID)
	}
	if s.Combat.Morale != 100 {
		t.Errorf("Morale = %v, want 100", s.Combat.Morale)
	}
	if s.Logistics.FuelFraction() != 1 {
		t.Errorf("fuel fraction = %v, want 1", s.Logistics.FuelFraction())
	}
}

func TestReinitializeKeepsState(t *testing.T) {
	c := newTestController(nil)
	f := lineAheadFleet("f1", "terran")
	c.Initialize(f, 0)
	c.state.Combat.Morale = 60
	c.state.Logistics.CurrentFuel = 1234
	before := c.State()

	c.Initialize(withoutShips(f, "f1-flag", "f1-cr-1"), 5)
	if after := c.State(); !reflect.DeepEqual(after, before) {
		t.Errorf("second Initialize changed state:\n got %+v\nwant %+v", after, before)
	}
	if got := len(c.fleet.Ships); got != 3 {
		t.Errorf("kept snapshot has %d ships, want 3", got)
	}
}

func TestIssueOrderRejections(t *testing.T) {
	c := newTestController(nil)
	if ok, _ := c.IssueOrder(orders.Request{Kind: model.KindPatrol}, 0); ok {
		t.Error("IssueOrder before Initialize accepted")
	}
	c.Initialize(lineAheadFleet("f1", "terran"), 0)

	tests := []struct {
		name string
		req  orders.Request
		want string
	}{
		{"attack without target", orders.Request{Kind: model.KindAttack}, "requires a target"},
		{"unknown kind", orders.Request{Kind: "board"}, "unknown order kind"},
		{"unknown template", orders.Request{
			Kind:       model.KindChangeFormation,
			Parameters: map[string]any{orders.ParamFormationTemplate: "wedge"},
		}, "unknown formation template"},
		{"bad condition", orders.Request{Kind: model.KindPatrol, Preconditions: []string{"Fuel >"}}, "invalid order condition"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, msg := c.IssueOrder(tt.req, 0)
			if ok || !strings.Contains(msg, tt.want) {
				t.Errorf("IssueOrder() = %v, %q, want false containing %q", ok, msg, tt.want)
			}
		})
	}
}

func TestSetFormationFormsUp(t *testing.T) {
	sink := &recordingSink{}
	c := newTestController(sink)
	f := lineAheadFleet("f1", "terran")
	c.Initialize(f, 0)

	ok, id := c.SetFormation("line_ahead", 0)
	if !ok {
		t.Fatalf("SetFormation rejected: %s", id)
	}
	if o := c.State().Orders[id]; o == nil || o.Priority != model.PriorityHigh || o.Kind != model.KindFormUp {
		t.Fatalf("form_up order = %+v, want high priority form_up", o)
	}

	for i := 1; i <= 4; i++ {
		if err := c.Tick(f, 1, float64(i)); err != nil {
			t.Fatalf("Tick %d: %v", i, err)
		}
	}

	st, err := c.TacticalStatus()
	if err != nil {
		t.Fatal(err)
	}
	if !st.Formation.Active || st.Formation.Template != "line_ahead" || st.Formation.Integrity != 1 {
		t.Errorf("formation = %+v, want active line_ahead at full integrity", st.Formation)
	}
	rec, ok := historyOf(c.State(), model.KindFormUp)
	if !ok || rec.Status != model.StatusCompleted {
		t.Errorf("form_up record = %+v, want completed", rec)
	}
	if st.Performance.TotalMissions != 1 || st.Performance.MissionSuccessRate != 1 {
		t.Errorf("performance = %+v, want 1 mission at 100%%", st.Performance)
	}
	if st.CommandEffectiveness != 1 {
		t.Errorf("CommandEffectiveness = %v, want 1", st.CommandEffectiveness)
	}
	if !sink.has("Formation established") || !sink.has("Order completed") {
		t.Errorf("notifications = %v, want formation established and order completed", sink.titles())
	}
}

func TestSetFormationRejectsShortFleet(t *testing.T) {
	c := newTestController(nil)
	c.Initialize(lineAheadFleet("f1", "terran"), 0)
	ok, msg := c.SetFormation("battle_line", 0)
	if ok || !strings.Contains(msg, "insufficient ships") {
		t.Errorf("SetFormation(battle_line) = %v, %q, want insufficient ships", ok, msg)
	}
	if ok, _ := c.SetFormation("wedge", 0); ok {
		t.Error("SetFormation(wedge) accepted")
	}
	if c.State().Formation != nil {
		t.Error("rejected SetFormation left a formation behind")
	}
}

func TestLossesBreakFormation(t *testing.T) {
	c := newTestController(nil)
	f := lineAheadFleet("f1", "terran")
	c.Initialize(f, 0)
	c.SetFormation("line_ahead", 0)

	battered := withoutShips(f, "f1-cr-1", "f1-dd-1", "f1-dd-2")
	if err := c.Tick(battered, 1, 1); err != nil {
		t.Fatal(err)
	}
	s := c.State()
	if s.Formation != nil {
		t.Fatalf("formation survived with %d ships", len(battered.Ships))
	}
	rec, ok := historyOf(s, model.KindFormUp)
	if !ok || rec.Status != model.StatusFailed || rec.FailureReason != model.ReasonFormationBroken {
		t.Errorf("form_up record = %+v, want failed formation_broken", rec)
	}
}

func TestBreakFormation(t *testing.T) {
	c := newTestController(nil)
	c.Initialize(lineAheadFleet("f1", "terran"), 0)
	if c.BreakFormation(0) {
		t.Error("BreakFormation without a formation = true")
	}
	c.SetFormation("line_ahead", 0)
	if !c.BreakFormation(1) {
		t.Fatal("BreakFormation = false")
	}
	s := c.State()
	if s.Formation != nil || len(s.Orders) != 0 {
		t.Errorf("after break formation=%v live orders=%d, want none", s.Formation, len(s.Orders))
	}
	if rec, _ := historyOf(s, model.KindFormUp); rec.Status != model.StatusCancelled {
		t.Errorf("form_up status = %v, want cancelled", rec.Status)
	}
}

func TestOutOfFuelFailsMovement(t *testing.T) {
	sink := &recordingSink{}
	c := newTestController(sink)
	f := lineAheadFleet("f1", "terran")
	c.Initialize(f, 0)
	c.state.Logistics.CurrentFuel = 50
	c.state.Logistics.FuelConsumptionRate = 100

	ok, id := c.IssueOrder(orders.Request{Kind: model.KindMoveTo, Target: model.Target{Position: pos(5000, 0)}, EstimatedDuration: 10}, 0)
	if !ok {
		t.Fatal(id)
	}
	if err := c.Tick(f, 1, 1); err != nil {
		t.Fatal(err)
	}
	s := c.State()
	rec, ok := historyOf(s, model.KindMoveTo)
	if !ok || rec.Status != model.StatusFailed || rec.FailureReason != model.ReasonOutOfFuel {
		t.Errorf("move_to record = %+v, want failed out_of_fuel", rec)
	}
	if s.Logistics.CurrentFuel != 0 {
		t.Errorf("CurrentFuel = %v, want 0", s.Logistics.CurrentFuel)
	}
	if !sink.has("Order failed") {
		t.Errorf("notifications = %v, want an order failure", sink.titles())
	}

	// With the tank dry, new movement waits for fuel.
	ok, id = c.IssueOrder(orders.Request{Kind: model.KindPatrol}, 1)
	if !ok {
		t.Fatal(id)
	}
	c.Tick(f, 1, 2)
	if o := c.State().Orders[id]; o.Status != model.StatusPending || o.BlockedTicks != 1 {
		t.Errorf("patrol status=%v blocked=%d, want pending blocked once", o.Status, o.BlockedTicks)
	}
}

func TestRefuelOrder(t *testing.T) {
	c := newTestController(nil)
	f := lineAheadFleet("f1", "terran")
	c.Initialize(f, 0)
	c.state.Logistics.CurrentFuel = 1000

	c.IssueOrder(orders.Request{Kind: model.KindRefuel}, 0)
	c.Tick(f, 1, 1)
	for _, o := range c.State().Orders {
		if math.Abs(o.Progress-0.3) > 1e-9 {
			t.Errorf("refuel progress = %v, want 0.3", o.Progress)
		}
	}
	for i := 2; i <= 10; i++ {
		c.Tick(f, 1, float64(i))
	}
	s := c.State()
	if rec, _ := historyOf(s, model.KindRefuel); rec.Status != model.StatusCompleted {
		t.Errorf("refuel status = %v, want completed", rec.Status)
	}
	// Topped up on tick 9, then two ticks of burn.
	if want := s.Logistics.FuelCapacity - 2*s.Logistics.FuelConsumptionRate; s.Logistics.CurrentFuel != want {
		t.Errorf("fuel = %v, want %v", s.Logistics.CurrentFuel, want)
	}
}

func TestRepairResetsMaintenance(t *testing.T) {
	c := newTestController(nil)
	f := lineAheadFleet("f1", "terran")
	c.Initialize(f, 0)
	c.state.Combat.Weapons[0].Wear = 0.8

	c.IssueOrder(orders.Request{Kind: model.KindRepair, EstimatedDuration: 2}, 0)
	for i := 1; i <= 3; i++ {
		c.Tick(f, 1, 500+float64(i))
	}
	s := c.State()
	if s.Logistics.LastMaintenance != 502 {
		t.Errorf("LastMaintenance = %v, want 502", s.Logistics.LastMaintenance)
	}
	if s.Combat.Weapons[0].Wear != 0 {
		t.Errorf("weapon wear = %v, want 0", s.Combat.Weapons[0].Wear)
	}
}

func TestMissionSuccessRate(t *testing.T) {
	c := newTestController(nil)
	f := lineAheadFleet("f1", "terran")
	c.Initialize(f, 0)

	c.IssueOrder(orders.Request{Kind: model.KindSurvey, EstimatedDuration: 1}, 0)
	c.IssueOrder(orders.Request{Kind: model.KindDefend, EstimatedDuration: 1, Postconditions: []string{"in_combat"}}, 0)
	_, cancelled := c.IssueOrder(orders.Request{Kind: model.KindHoldPosition}, 0)
	c.CancelOrder(cancelled, 0)
	c.Tick(f, 1, 1)

	st, _ := c.TacticalStatus()
	if st.Performance.TotalMissions != 2 || st.Performance.MissionSuccessRate != 0.5 {
		t.Errorf("performance = %+v, want 2 missions at 50%%", st.Performance)
	}
}

func TestCommandEffectiveness(t *testing.T) {
	tests := []struct {
		name      string
		commander string
		straggler float64
		want      float64
	}{
		{"officer, all in range", "adm", 0, 1},
		{"no officer", "", 0, 0.6},
		{"no officer, one straggler", "", 50000, 0.6 * 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestController(nil)
			f := lineAheadFleet("f1", "terran")
			f.CommanderID = tt.commander
			f.Ships[4].Position = model.Vector3{X: tt.straggler}
			c.Initialize(f, 0)
			c.Tick(f, 1, 1)
			st, _ := c.TacticalStatus()
			if math.Abs(st.CommandEffectiveness-tt.want) > 1e-9 {
				t.Errorf("CommandEffectiveness = %v, want %v", st.CommandEffectiveness, tt.want)
			}
		})
	}
}

func TestFlagshipReplaced(t *testing.T) {
	sink := &recordingSink{}
	c := newTestController(sink)
	f := lineAheadFleet("f1", "terran")
	c.Initialize(f, 0)
	c.Tick(withoutShips(f, "f1-flag"), 1, 1)
	if got := c.State().FlagshipID; got != "f1-cr-1" {
		t.Errorf("FlagshipID = %q, want f1-cr-1", got)
	}
	if !sink.has("Flagship lost") {
		t.Errorf("notifications = %v, want flagship lost", sink.titles())
	}
}

func TestFuelLowEvent(t *testing.T) {
	sink := &recordingSink{}
	c := newTestController(sink)
	f := lineAheadFleet("f1", "terran")
	c.Initialize(f, 0)
	c.state.Logistics.CurrentFuel = 1007
	c.Tick(f, 1, 1)

	c.IssueOrder(orders.Request{Kind: model.KindMoveTo, Target: model.Target{Position: pos(0, 90000)}, EstimatedDuration: 100}, 1)
	c.Tick(f, 1, 2)
	if !sink.has("Fuel low") {
		t.Errorf("notifications = %v, want fuel low", sink.titles())
	}
}

func TestIdleFleetBurnsFuel(t *testing.T) {
	sink := &recordingSink{}
	c := newTestController(sink)
	f := lineAheadFleet("f1", "terran")
	c.Initialize(f, 0)
	c.state.Logistics.CurrentFuel = 1008

	c.Tick(f, 1, 1)
	if got := c.State().Logistics.CurrentFuel; got != 1003 {
		t.Errorf("fuel after idle tick = %v, want 1003", got)
	}
	if sink.has("Fuel low") {
		t.Errorf("notifications = %v, want no fuel low yet", sink.titles())
	}
	c.Tick(f, 1, 2)
	if !sink.has("Fuel low") {
		t.Errorf("notifications = %v, want fuel low while idle", sink.titles())
	}
}

func TestBreakOnCombatAndReform(t *testing.T) {
	strike := &model.FormationTemplate{
		ID:      "strike_wing",
		Name:    "Strike Wing",
		Spacing: 1000,
		Scale:   1,
		Slots: []model.FormationSlot{
			{Label: "lead", Role: model.RoleFlagship},
			{Label: "left", Role: model.RoleCruiser, Offset: model.Vector3{X: -1000}},
			{Label: "right", Role: model.RoleCruiser, Offset: model.Vector3{X: 1000}},
		},
		MinShipCount:                3,
		MaxShipCount:                10,
		MovementSpeedModifier:       1,
		CombatEffectivenessModifier: 1,
		BreakOnCombat:               true,
		ReformAfterCombat:           true,
	}
	c := newTestController(nil, strike)
	f := lineAheadFleet("f1", "terran")
	c.Initialize(f, 0)
	if ok, msg := c.SetFormation("strike_wing", 0); !ok {
		t.Fatal(msg)
	}

	c.joinEngagement("e1")
	c.Tick(f, 1, 1)
	s := c.State()
	if s.Formation != nil || s.PendingReformTemplate != "strike_wing" {
		t.Fatalf("in combat formation=%v pending=%q, want broken with reform pending", s.Formation, s.PendingReformTemplate)
	}

	c.leaveEngagement("e1", 1)
	c.Tick(f, 1, 2)
	s = c.State()
	if s.Formation == nil || s.Formation.TemplateID != "strike_wing" {
		t.Errorf("after combat formation = %+v, want strike_wing reforming", s.Formation)
	}
	if s.Combat.ExperienceLevel != 1 {
		t.Errorf("ExperienceLevel = %v, want 1", s.Combat.ExperienceLevel)
	}
}

func TestTacticalStatusIsACopy(t *testing.T) {
	c := newTestController(nil)
	c.Initialize(lineAheadFleet("f1", "terran"), 0)
	st, _ := c.TacticalStatus()
	st.Logistics.SupplyStatus[model.SupplyFuel] = 0
	again, _ := c.TacticalStatus()
	if again.Logistics.SupplyStatus[model.SupplyFuel] != 1 {
		t.Error("mutating a tactical status changed the fleet")
	}
	if again.FleetID != "f1" || again.Logistics.MaintenanceLevel != "current" {
		t.Errorf("status = %+v, want fleet f1 with current maintenance", again)
	}
}
