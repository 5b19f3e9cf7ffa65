package model

import "testing"

func testGrid() *SectorGrid {
	return &SectorGrid{
		Cols:  4,
		Rows:  4,
		CellW: 1000,
		CellH: 1000,
		Grid: []SectorType{
			OpenSpace, OpenSpace, Nebula, Nebula,
			OpenSpace, OpenSpace, Nebula, Nebula,
			GravityWell, AsteroidField, OpenSpace, OpenSpace,
			GravityWell, OpenSpace, OpenSpace, OpenSpace,
		},
	}
}

func TestSectorGridAt(t *testing.T) {
	grid := testGrid()
	tests := []struct {
		col, row int
		want     SectorType
	}{
		{0, 0, OpenSpace},
		{2, 0, Nebula},
		{0, 2, GravityWell},
		{1, 2, AsteroidField},
		{3, 3, OpenSpace},
	}
	for _, tc := range tests {
		if got := grid.At(tc.col, tc.row); got != tc.want {
			t.Errorf("At(%d, %d) = %v, want %v", tc.col, tc.row, got, tc.want)
		}
	}
}

func TestSectorGridAtOutOfBounds(t *testing.T) {
	grid := &SectorGrid{Cols: 2, Rows: 2, CellW: 10, CellH: 10,
		Grid: []SectorType{Nebula, Nebula, Nebula, Nebula}}

	for _, c := range [][2]int{{-1, 0}, {0, -1}, {2, 0}, {0, 2}} {
		if got := grid.At(c[0], c[1]); got != OpenSpace {
			t.Errorf("At(%d, %d) = %v, want open_space", c[0], c[1], got)
		}
	}
}

func TestSectorGridAtPosition(t *testing.T) {
	grid := testGrid()
	tests := []struct {
		p    Vector3
		want SectorType
	}{
		{Vector3{X: 0, Y: 0}, OpenSpace},
		{Vector3{X: 2500, Y: 500}, Nebula},
		{Vector3{X: 1999, Y: 2001}, AsteroidField},
		{Vector3{X: -1, Y: 0}, OpenSpace},
		{Vector3{X: 10000, Y: 10000}, OpenSpace},
	}
	for _, tc := range tests {
		if got := grid.AtPosition(tc.p); got != tc.want {
			t.Errorf("AtPosition(%v) = %v, want %v", tc.p, got, tc.want)
		}
	}

	var nilGrid *SectorGrid
	if got := nilGrid.AtPosition(Vector3{}); got != OpenSpace {
		t.Errorf("nil grid AtPosition = %v, want open_space", got)
	}
}

func TestSectorGridOrigin(t *testing.T) {
	grid := &SectorGrid{OriginX: -2000, OriginY: -2000, Cols: 2, Rows: 2, CellW: 2000, CellH: 2000,
		Grid: []SectorType{Nebula, OpenSpace, OpenSpace, GravityWell}}

	if got := grid.AtPosition(Vector3{X: -1, Y: -1}); got != Nebula {
		t.Errorf("AtPosition(-1,-1) = %v, want nebula", got)
	}
	if got := grid.AtPosition(Vector3{X: 1, Y: 1}); got != GravityWell {
		t.Errorf("AtPosition(1,1) = %v, want gravity_well", got)
	}
	c := grid.ZoneCenter(1, 1)
	if c.X != 1000 || c.Y != 1000 {
		t.Errorf("ZoneCenter(1,1) = %v, want (1000,1000)", c)
	}
}

func TestSectorGridHasHazards(t *testing.T) {
	if !testGrid().HasHazards() {
		t.Error("HasHazards() = false, want true")
	}
	clear := &SectorGrid{Cols: 1, Rows: 1, CellW: 1, CellH: 1, Grid: []SectorType{OpenSpace}}
	if clear.HasHazards() {
		t.Error("HasHazards() = true for open grid, want false")
	}
}

func TestSectorModifiers(t *testing.T) {
	if got := OpenSpace.Modifiers()[ModAccuracy]; got != 1 {
		t.Errorf("open space accuracy = %v, want 1", got)
	}
	if got := Nebula.Modifiers()[ModSensor]; got >= 1 {
		t.Errorf("nebula sensor = %v, want < 1", got)
	}
	if got := AsteroidField.Modifiers()[ModDefense]; got <= 1 {
		t.Errorf("asteroid defense = %v, want > 1", got)
	}
}

func TestRotateToHeading(t *testing.T) {
	tests := []struct {
		name    string
		local   Vector3
		heading Vector3
		want    Vector3
	}{
		{"default heading is identity", Vector3{X: 100, Y: 200}, DefaultHeading, Vector3{X: 100, Y: 200}},
		{"zero heading falls back", Vector3{X: 100, Y: 200}, Vector3{}, Vector3{X: 100, Y: 200}},
		{"heading +X", Vector3{X: 0, Y: 100}, Vector3{X: 5}, Vector3{X: 100, Y: 0}},
		{"right of +X is -Y", Vector3{X: 100}, Vector3{X: 1}, Vector3{X: 0, Y: -100}},
		{"keeps Z", Vector3{Z: 7}, Vector3{Y: -1}, Vector3{Z: 7}},
	}
	for _, tc := range tests {
		got := RotateToHeading(tc.local, tc.heading)
		if got.Dist(tc.want) > 1e-9 {
			t.Errorf("%s: RotateToHeading(%v, %v) = %v, want %v", tc.name, tc.local, tc.heading, got, tc.want)
		}
	}
}

func TestMoveToward(t *testing.T) {
	from := Vector3{}
	to := Vector3{X: 10}
	if got := from.MoveToward(to, 4); got != (Vector3{X: 4}) {
		t.Errorf("MoveToward step 4 = %v, want (4,0,0)", got)
	}
	if got := from.MoveToward(to, 40); got != to {
		t.Errorf("MoveToward overshoot = %v, want %v", got, to)
	}
}

func TestFleetSpeedUsesSlowestShip(t *testing.T) {
	f := Fleet{Ships: []Ship{{ID: "a", MaxSpeed: 300}, {ID: "b", MaxSpeed: 120}, {ID: "c"}}}
	if got := f.Speed(); got != 120 {
		t.Errorf("Speed() = %v, want 120", got)
	}
	if got := (Fleet{}).Speed(); got != DefaultFleetSpeed {
		t.Errorf("empty Speed() = %v, want %v", got, DefaultFleetSpeed)
	}
}
