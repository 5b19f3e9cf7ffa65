package model

import "math"

// SectorType classifies a coarse zone of a star system.
type SectorType byte

const (
	OpenSpace     SectorType = 0
	Nebula        SectorType = 1 // blinds sensors, scatters energy weapons
	AsteroidField SectorType = 2 // cover for defenders, slows movement
	GravityWell   SectorType = 3 // near a star or gas giant
)

func (t SectorType) String() string {
	switch t {
	case Nebula:
		return "nebula"
	case AsteroidField:
		return "asteroid_field"
	case GravityWell:
		return "gravity_well"
	}
	return "open_space"
}

// SectorGrid is a coarse row-major grid laid over a star system. Each zone
// covers CellW x CellH meters starting at (OriginX, OriginY).
type SectorGrid struct {
	SystemID string       `json:"systemId"`
	OriginX  float64      `json:"originX"`
	OriginY  float64      `json:"originY"`
	Cols     int          `json:"cols"`
	Rows     int          `json:"rows"`
	CellW    float64      `json:"cellW"`
	CellH    float64      `json:"cellH"`
	Grid     []SectorType `json:"grid"` // Grid[row*Cols + col]
}

// At returns the sector type at grid coordinates (col, row).
// Returns OpenSpace for out-of-bounds coordinates.
func (g *SectorGrid) At(col, row int) SectorType {
	if col < 0 || col >= g.Cols || row < 0 || row >= g.Rows {
		return OpenSpace
	}
	i := row*g.Cols + col
	if i >= len(g.Grid) {
		return OpenSpace
	}
	return g.Grid[i]
}

// AtPosition converts a system position to grid coordinates and returns the
// sector type there. Returns OpenSpace outside the grid or for zero-sized cells.
func (g *SectorGrid) AtPosition(p Vector3) SectorType {
	if g == nil || g.CellW <= 0 || g.CellH <= 0 {
		return OpenSpace
	}
	col := int(math.Floor((p.X - g.OriginX) / g.CellW))
	row := int(math.Floor((p.Y - g.OriginY) / g.CellH))
	return g.At(col, row)
}

// ZoneCenter returns the system position of the center of zone (col, row).
func (g *SectorGrid) ZoneCenter(col, row int) Vector3 {
	return Vector3{
		X: g.OriginX + float64(col)*g.CellW + g.CellW/2,
		Y: g.OriginY + float64(row)*g.CellH + g.CellH/2,
	}
}

// HasHazards returns true if any zone is something other than open space.
func (g *SectorGrid) HasHazards() bool {
	for _, t := range g.Grid {
		if t != OpenSpace {
			return true
		}
	}
	return false
}

// Environmental modifier keys used by combat engagements.
const (
	ModSensor   = "sensor"
	ModAccuracy = "accuracy"
	ModDefense  = "defense"
	ModSpeed    = "speed"
)

// Modifiers returns the multiplicative environmental modifiers a sector
// applies to a battle fought inside it.
func (t SectorType) Modifiers() map[string]float64 {
	m := map[string]float64{ModSensor: 1, ModAccuracy: 1, ModDefense: 1, ModSpeed: 1}
	switch t {
	case Nebula:
		m[ModSensor] = 0.5
		m[ModAccuracy] = 0.8
	case AsteroidField:
		m[ModDefense] = 1.25
		m[ModSpeed] = 0.7
		m[ModAccuracy] = 0.9
	case GravityWell:
		m[ModSpeed] = 0.8
	}
	return m
}
