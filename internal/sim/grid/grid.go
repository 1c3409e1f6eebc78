package grid

import "math"

type StructureKind uint8

const (
	StructureNone StructureKind = iota
	StructureShipyard
	StructureDropoff
)

type Structure struct {
	Kind  StructureKind
	Owner int
}

func (s Structure) Present() bool { return s.Kind != StructureNone }

const (
	// NoOccupant marks a cell nobody has claimed this turn.
	NoOccupant = -1
	// HostileOccupant marks a cell held by a unit we do not control.
	HostileOccupant = -2
)

type Cell struct {
	Halite    int
	Occupant  int
	Structure Structure
}

// Grid is the toroidal map. It is a passive store: callers (the resolver)
// are responsible for never marking a cell occupied twice.
type Grid struct {
	Width    int
	Height   int
	BurnRate float64

	cells []Cell
}

func New(width, height int, burnRate float64) *Grid {
	if width <= 0 || height <= 0 {
		panic("grid: non-positive dimensions")
	}
	g := &Grid{
		Width:    width,
		Height:   height,
		BurnRate: burnRate,
		cells:    make([]Cell, width*height),
	}
	for i := range g.cells {
		g.cells[i].Occupant = NoOccupant
	}
	return g
}

func mod(v, m int) int {
	v %= m
	if v < 0 {
		v += m
	}
	return v
}

func (g *Grid) Normalize(p Position) Position {
	return Position{X: mod(p.X, g.Width), Y: mod(p.Y, g.Height)}
}

// Index is the flat cell index of a normalized position.
func (g *Grid) Index(p Position) int {
	p = g.Normalize(p)
	return p.Y*g.Width + p.X
}

func (g *Grid) PositionOf(idx int) Position {
	return Position{X: idx % g.Width, Y: idx / g.Width}
}

func (g *Grid) Size() int { return len(g.cells) }

func (g *Grid) Cell(p Position) *Cell { return &g.cells[g.Index(p)] }

func axisDist(d, size int) int {
	if d < 0 {
		d = -d
	}
	d %= size
	if size-d < d {
		return size - d
	}
	return d
}

// Distance is the wrap-aware Manhattan distance.
func (g *Grid) Distance(a, b Position) int {
	return axisDist(a.X-b.X, g.Width) + axisDist(a.Y-b.Y, g.Height)
}

func axisOffset(d, size int) int {
	d = mod(d, size)
	if d > size/2 {
		d -= size
	}
	return d
}

// Offset returns the shortest signed displacement from a to b on each axis.
func (g *Grid) Offset(a, b Position) Position {
	return Position{X: axisOffset(b.X-a.X, g.Width), Y: axisOffset(b.Y-a.Y, g.Height)}
}

func (g *Grid) Neighbor(p Position, d Direction) Position {
	return g.Normalize(p.Add(d.Offset()))
}

// DirectionsTo lists the cardinal directions that reduce the wrap distance
// from a to b, x axis first.
func (g *Grid) DirectionsTo(a, b Position) []Direction {
	off := g.Offset(a, b)
	out := make([]Direction, 0, 2)
	switch {
	case off.X > 0:
		out = append(out, East)
	case off.X < 0:
		out = append(out, West)
	}
	switch {
	case off.Y > 0:
		out = append(out, South)
	case off.Y < 0:
		out = append(out, North)
	}
	return out
}

// DirectionBetween returns the direction moving a onto b when they are
// adjacent or equal.
func (g *Grid) DirectionBetween(a, b Position) (Direction, bool) {
	a, b = g.Normalize(a), g.Normalize(b)
	if a == b {
		return Still, true
	}
	for _, d := range CardinalDirections {
		if g.Neighbor(a, d) == b {
			return d, true
		}
	}
	return Still, false
}

func (g *Grid) CostTurns(Position) float64 { return 1 }

// CostHalite is the fuel burned leaving p.
func (g *Grid) CostHalite(p Position) int {
	return int(math.Floor(float64(g.Cell(p).Halite) * g.BurnRate))
}

func (g *Grid) Halite(p Position) int { return g.Cell(p).Halite }

func (g *Grid) SetHalite(p Position, amount int) {
	if amount < 0 {
		amount = 0
	}
	g.Cell(p).Halite = amount
}

func (g *Grid) SetStructure(p Position, s Structure) { g.Cell(p).Structure = s }

func (g *Grid) StructureAt(p Position) Structure { return g.Cell(p).Structure }

func (g *Grid) IsOccupied(p Position) bool { return g.Cell(p).Occupant != NoOccupant }

func (g *Grid) OccupantAt(p Position) (int, bool) {
	id := g.Cell(p).Occupant
	return id, id != NoOccupant
}

func (g *Grid) MarkOccupied(p Position, unitID int) { g.Cell(p).Occupant = unitID }

func (g *Grid) MarkFree(p Position) { g.Cell(p).Occupant = NoOccupant }

func (g *Grid) ResetOccupancy() {
	for i := range g.cells {
		g.cells[i].Occupant = NoOccupant
	}
}

func (g *Grid) TotalHalite() int {
	total := 0
	for i := range g.cells {
		total += g.cells[i].Halite
	}
	return total
}

func (g *Grid) MeanHalite() float64 {
	return float64(g.TotalHalite()) / float64(len(g.cells))
}

// HaliteLayer returns a row-major copy of every cell's halite.
func (g *Grid) HaliteLayer() []int {
	out := make([]int, len(g.cells))
	for i := range g.cells {
		out[i] = g.cells[i].Halite
	}
	return out
}
