package grid

import "fmt"

// Position is a raw grid coordinate. Arithmetic never wraps; use Grid.Normalize
// before using a Position as a lookup key.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Position) Add(o Position) Position { return Position{X: p.X + o.X, Y: p.Y + o.Y} }
func (p Position) Sub(o Position) Position { return Position{X: p.X - o.X, Y: p.Y - o.Y} }
func (p Position) Scale(k int) Position    { return Position{X: p.X * k, Y: p.Y * k} }

func (p Position) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

type Direction int8

const (
	Still Direction = iota
	North
	East
	South
	West
)

// CardinalDirections is the fixed neighbour order used everywhere a
// deterministic scan is needed.
var CardinalDirections = [4]Direction{North, East, South, West}

// AllDirections includes Still last.
var AllDirections = [5]Direction{North, East, South, West, Still}

var dirOffsets = [5]Position{
	Still: {0, 0},
	North: {0, -1},
	East:  {1, 0},
	South: {0, 1},
	West:  {-1, 0},
}

func (d Direction) Offset() Position {
	if d < Still || d > West {
		return Position{}
	}
	return dirOffsets[d]
}

func (d Direction) Invert() Direction {
	switch d {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	case West:
		return East
	}
	return Still
}

// Left and Right are relative to the direction of travel.
func (d Direction) Left() Direction {
	switch d {
	case North:
		return West
	case West:
		return South
	case South:
		return East
	case East:
		return North
	}
	return Still
}

func (d Direction) Right() Direction { return d.Left().Invert() }

// Char is the engine's wire letter for the direction.
func (d Direction) Char() byte {
	switch d {
	case North:
		return 'n'
	case East:
		return 'e'
	case South:
		return 's'
	case West:
		return 'w'
	}
	return 'o'
}

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	case West:
		return "west"
	}
	return "still"
}
