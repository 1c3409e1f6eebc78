package path

import (
	"errors"
	"fmt"

	"halitebot.ai/internal/sim/grid"
)

var ErrPathNotFound = errors.New("path not found")

type Strategy uint8

const (
	StrategyAStar Strategy = iota
	StrategyDirect
	StrategyDockingLane
	StrategyStraightLine
)

func (s Strategy) String() string {
	switch s {
	case StrategyAStar:
		return "astar"
	case StrategyDirect:
		return "direct"
	case StrategyDockingLane:
		return "docking_lane"
	case StrategyStraightLine:
		return "straight_line"
	}
	return fmt.Sprintf("strategy(%d)", uint8(s))
}

type Policy uint8

const (
	PolicyTurnCost Policy = iota
	PolicyHaliteCost
)

// haliteStepEpsilon keeps halite-cost searches from treating long detours
// over empty cells as free.
const haliteStepEpsilon = 1e-3

type Request struct {
	From     grid.Position
	To       grid.Position
	Strategy Strategy
	Policy   Policy

	// TieBreak enables the cross-product heuristic nudge (A* only).
	TieBreak bool
	// Blocked cells are never entered, except the goal (A* only).
	Blocked func(grid.Position) bool
	// LaneOffset is the docking lane distance from the base row/column.
	LaneOffset int
	// Inbound marks To as the base for docking lanes. A structure at To
	// implies it.
	Inbound bool
}

type Result struct {
	// Steps excludes the start and includes the goal, next step first.
	Steps []grid.Position
	Cost  float64
	// Corners holds the docking lane waypoints when that strategy ran.
	Corners []grid.Position
}

type Planner struct {
	g *grid.Grid

	// scratch reused across A* runs
	gScore []float64
	parent []int32
	closed []bool
	stamp  []uint32
	run    uint32
}

func NewPlanner(g *grid.Grid) *Planner {
	n := g.Size()
	return &Planner{
		g:      g,
		gScore: make([]float64, n),
		parent: make([]int32, n),
		closed: make([]bool, n),
		stamp:  make([]uint32, n),
	}
}

func (p *Planner) Grid() *grid.Grid { return p.g }

func (p *Planner) Plan(req Request) (Result, error) {
	req.From = p.g.Normalize(req.From)
	req.To = p.g.Normalize(req.To)
	if req.From == req.To {
		return Result{}, nil
	}
	switch req.Strategy {
	case StrategyAStar:
		return p.aStar(req)
	case StrategyDirect:
		return p.direct(req.From, req.To, req.Policy), nil
	case StrategyDockingLane:
		return p.dockingLane(req), nil
	case StrategyStraightLine:
		return p.straightLine(req.From, req.To, req.Policy), nil
	}
	return Result{}, fmt.Errorf("plan: unknown %v", req.Strategy)
}

// edgeCost is the cost of leaving from.
func (p *Planner) edgeCost(from grid.Position, policy Policy) float64 {
	if policy == PolicyHaliteCost {
		return float64(p.g.CostHalite(from)) + haliteStepEpsilon
	}
	return p.g.CostTurns(from)
}

func (p *Planner) pathCost(start grid.Position, steps []grid.Position, policy Policy) float64 {
	cost := 0.0
	cur := start
	for _, s := range steps {
		cost += p.edgeCost(cur, policy)
		cur = s
	}
	return cost
}

// NextDirection returns the move that takes from onto the first step of
// steps, or Still when steps is empty or not adjacent.
func NextDirection(g *grid.Grid, from grid.Position, steps []grid.Position) grid.Direction {
	if len(steps) == 0 {
		return grid.Still
	}
	d, ok := g.DirectionBetween(from, steps[0])
	if !ok {
		return grid.Still
	}
	return d
}
