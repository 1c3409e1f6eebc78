package path

import (
	"errors"
	"testing"

	"halitebot.ai/internal/sim/grid"
)

func checkContiguous(t *testing.T, g *grid.Grid, from grid.Position, steps []grid.Position) {
	t.Helper()
	cur := g.Normalize(from)
	for i, s := range steps {
		if g.Distance(cur, s) != 1 {
			t.Fatalf("step %d %v not adjacent to %v", i, s, cur)
		}
		cur = s
	}
}

func TestAStarScenario8x8(t *testing.T) {
	g := grid.New(8, 8, 0.1)
	p := NewPlanner(g)
	res, err := p.Plan(Request{From: grid.Position{X: 0, Y: 0}, To: grid.Position{X: 4, Y: 4}, Strategy: StrategyAStar})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(res.Steps) != 8 || res.Cost != 8 {
		t.Fatalf("len=%d cost=%v want 8", len(res.Steps), res.Cost)
	}
	if res.Steps[len(res.Steps)-1] != (grid.Position{X: 4, Y: 4}) {
		t.Fatalf("path does not end at goal: %v", res.Steps)
	}
	checkContiguous(t, g, grid.Position{}, res.Steps)
}

func TestAStarLengthMatchesWrapDistance(t *testing.T) {
	g := grid.New(11, 7, 0.1)
	p := NewPlanner(g)
	starts := []grid.Position{{X: 0, Y: 0}, {X: 10, Y: 6}, {X: 5, Y: 3}, {X: 2, Y: 5}}
	for _, tieBreak := range []bool{false, true} {
		for _, s := range starts {
			for x := 0; x < g.Width; x++ {
				for y := 0; y < g.Height; y++ {
					goal := grid.Position{X: x, Y: y}
					res, err := p.Plan(Request{From: s, To: goal, Strategy: StrategyAStar, TieBreak: tieBreak})
					if err != nil {
						t.Fatalf("Plan %v->%v: %v", s, goal, err)
					}
					want := g.Distance(s, goal)
					if len(res.Steps) != want {
						t.Fatalf("%v->%v len=%d want %d (tiebreak=%v)", s, goal, len(res.Steps), want, tieBreak)
					}
					if float64(want) > res.Cost {
						t.Fatalf("heuristic exceeds cost %v->%v", s, goal)
					}
					if len(res.Steps) > 0 && res.Steps[0] == s {
						t.Fatalf("path starts with start cell")
					}
				}
			}
		}
	}
}

func TestAStarHaliteCostAvoidsRichCells(t *testing.T) {
	g := grid.New(9, 9, 0.1)
	// Wall of halite on the straight row between start and goal.
	for x := 1; x <= 3; x++ {
		g.SetHalite(grid.Position{X: x, Y: 4}, 900)
	}
	p := NewPlanner(g)
	res, err := p.Plan(Request{From: grid.Position{X: 0, Y: 4}, To: grid.Position{X: 4, Y: 4}, Strategy: StrategyAStar, Policy: PolicyHaliteCost})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	for _, s := range res.Steps[:len(res.Steps)-1] {
		if g.Halite(s) > 0 {
			t.Fatalf("path crossed rich cell %v: %v", s, res.Steps)
		}
	}
	if res.Cost >= 1 {
		t.Fatalf("cost=%v expected only epsilon burn", res.Cost)
	}
}

func TestAStarBlockedExhausts(t *testing.T) {
	g := grid.New(5, 5, 0.1)
	p := NewPlanner(g)
	start := grid.Position{X: 2, Y: 2}
	blocked := func(q grid.Position) bool { return g.Distance(q, start) == 1 }
	_, err := p.Plan(Request{From: start, To: grid.Position{X: 0, Y: 0}, Strategy: StrategyAStar, Blocked: blocked})
	if !errors.Is(err, ErrPathNotFound) {
		t.Fatalf("err=%v want ErrPathNotFound", err)
	}
	// The goal itself is never treated as blocked.
	res, err := p.Plan(Request{From: start, To: grid.Position{X: 2, Y: 3}, Strategy: StrategyAStar, Blocked: blocked})
	if err != nil || len(res.Steps) != 1 {
		t.Fatalf("adjacent blocked goal: %v %v", res.Steps, err)
	}
}

func TestAllStrategiesStartEqualsGoal(t *testing.T) {
	g := grid.New(6, 6, 0.1)
	p := NewPlanner(g)
	for _, s := range []Strategy{StrategyAStar, StrategyDirect, StrategyDockingLane, StrategyStraightLine} {
		res, err := p.Plan(Request{From: grid.Position{X: 1, Y: 1}, To: grid.Position{X: 7, Y: -5}, Strategy: s})
		if err != nil {
			t.Fatalf("%v: %v", s, err)
		}
		if len(res.Steps) != 0 || res.Cost != 0 {
			t.Fatalf("%v: expected empty path, got %v cost %v", s, res.Steps, res.Cost)
		}
	}
}

func TestDirectIsAxisMajorAndWraps(t *testing.T) {
	g := grid.New(10, 10, 0.1)
	p := NewPlanner(g)
	res, err := p.Plan(Request{From: grid.Position{X: 1, Y: 1}, To: grid.Position{X: 8, Y: 3}, Strategy: StrategyDirect})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	want := []grid.Position{{X: 0, Y: 1}, {X: 9, Y: 1}, {X: 8, Y: 1}, {X: 8, Y: 2}, {X: 8, Y: 3}}
	if len(res.Steps) != len(want) {
		t.Fatalf("steps=%v", res.Steps)
	}
	for i := range want {
		if res.Steps[i] != want[i] {
			t.Fatalf("steps=%v want %v", res.Steps, want)
		}
	}
}

func TestStraightLineAlternates(t *testing.T) {
	g := grid.New(16, 16, 0.1)
	g.SetHalite(grid.Position{X: 0, Y: 0}, 100)
	p := NewPlanner(g)
	res, err := p.Plan(Request{From: grid.Position{X: 0, Y: 0}, To: grid.Position{X: 3, Y: 3}, Strategy: StrategyStraightLine, Policy: PolicyHaliteCost})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	want := []grid.Position{{X: 1, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 2}, {X: 3, Y: 3}}
	for i := range want {
		if res.Steps[i] != want[i] {
			t.Fatalf("steps=%v want %v", res.Steps, want)
		}
	}
	// 10 burned leaving the origin plus the per-step epsilon.
	if res.Cost < 10 || res.Cost > 10.01 {
		t.Fatalf("cost=%v", res.Cost)
	}
}

func TestDockingLaneInboundUsesLaneRow(t *testing.T) {
	g := grid.New(16, 16, 0.1)
	base := grid.Position{X: 8, Y: 8}
	g.SetStructure(base, grid.Structure{Kind: grid.StructureShipyard})
	p := NewPlanner(g)
	res, err := p.Plan(Request{From: grid.Position{X: 3, Y: 12}, To: base, Strategy: StrategyDockingLane, LaneOffset: 2})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	wantCorners := []grid.Position{{X: 3, Y: 10}, {X: 8, Y: 10}, {X: 8, Y: 8}}
	if len(res.Corners) != 3 {
		t.Fatalf("corners=%v", res.Corners)
	}
	for i := range wantCorners {
		if res.Corners[i] != wantCorners[i] {
			t.Fatalf("corners=%v want %v", res.Corners, wantCorners)
		}
	}
	checkContiguous(t, g, grid.Position{X: 3, Y: 12}, res.Steps)
	if res.Steps[len(res.Steps)-1] != base {
		t.Fatalf("does not end at base")
	}
}

func TestDockingLaneOutboundUsesLaneColumn(t *testing.T) {
	g := grid.New(16, 16, 0.1)
	base := grid.Position{X: 8, Y: 8}
	g.SetStructure(base, grid.Structure{Kind: grid.StructureShipyard})
	p := NewPlanner(g)
	to := grid.Position{X: 3, Y: 2}
	res, err := p.Plan(Request{From: base, To: to, Strategy: StrategyDockingLane, LaneOffset: 1})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	wantCorners := []grid.Position{{X: 7, Y: 8}, {X: 7, Y: 2}, {X: 3, Y: 2}}
	for i := range wantCorners {
		if res.Corners[i] != wantCorners[i] {
			t.Fatalf("corners=%v want %v", res.Corners, wantCorners)
		}
	}
	checkContiguous(t, g, base, res.Steps)
}

func TestNextDirection(t *testing.T) {
	g := grid.New(4, 4, 0.1)
	if d := NextDirection(g, grid.Position{X: 0, Y: 0}, []grid.Position{{X: 0, Y: 3}}); d != grid.North {
		t.Fatalf("dir=%v", d)
	}
	if d := NextDirection(g, grid.Position{X: 0, Y: 0}, nil); d != grid.Still {
		t.Fatalf("dir=%v", d)
	}
}
