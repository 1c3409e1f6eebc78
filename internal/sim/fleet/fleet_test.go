package fleet

import (
	"math/rand"
	"testing"

	"halitebot.ai/internal/sim/grid"
	"halitebot.ai/internal/sim/path"
	"halitebot.ai/internal/sim/resolve"
)

type fakeTargets struct {
	next     []grid.Position
	held     map[int]grid.Position
	released []int
}

func (f *fakeTargets) Claim(unit int) (grid.Position, bool) {
	if len(f.next) == 0 {
		return grid.Position{}, false
	}
	p := f.next[0]
	f.next = f.next[1:]
	if f.held == nil {
		f.held = map[int]grid.Position{}
	}
	f.held[unit] = p
	return p, true
}

func (f *fakeTargets) Release(unit int) {
	delete(f.held, unit)
	f.released = append(f.released, unit)
}

func (f *fakeTargets) TargetOf(unit int) (grid.Position, bool) {
	p, ok := f.held[unit]
	return p, ok
}

func testEnv(g *grid.Grid, turn int, tg Targeter) *Env {
	return &Env{
		Turn:    turn,
		Grid:    g,
		Planner: path.NewPlanner(g),
		Bases:   []grid.Position{{X: 8, Y: 8}},
		Targets: tg,
		Rand:    rand.New(rand.NewSource(1)),
	}
}

func testMachine() *Machine {
	return NewMachine(Config{Capacity: 1000, ReturnThreshold: 950, MiningThreshold: 50, LaneOffset: 1, DockRadius: 4})
}

func TestTableSyncAddsAndPurges(t *testing.T) {
	tb := NewTable()
	added, lost := tb.Sync([]Unit{{ID: 3}, {ID: 1}, {ID: 2}}, 5)
	if len(added) != 3 || len(lost) != 0 {
		t.Fatalf("added=%v lost=%v", added, lost)
	}
	r, ok := tb.Get(2)
	if !ok || r.Status != StatusReturning || r.CreatedTurn != 5 {
		t.Fatalf("new record=%+v", r)
	}
	r.Status = StatusMining

	_, lost = tb.Sync([]Unit{{ID: 2}}, 6)
	if len(lost) != 2 || lost[0] != 1 || lost[1] != 3 {
		t.Fatalf("lost=%v", lost)
	}
	if tb.Len() != 1 {
		t.Fatalf("len=%d", tb.Len())
	}
	r, ok = tb.Get(2)
	if !ok || r.Status != StatusMining {
		t.Fatalf("surviving record lost its state: %+v", r)
	}
	if _, ok := tb.Get(3); ok {
		t.Fatalf("purged record still present")
	}
}

func TestTableEachIsOrdered(t *testing.T) {
	tb := NewTable()
	tb.Sync([]Unit{{ID: 9}, {ID: 4}, {ID: 7}}, 0)
	var ids []int
	tb.Each(func(r *Record) { ids = append(ids, r.ID) })
	if len(ids) != 3 || ids[0] != 4 || ids[1] != 7 || ids[2] != 9 {
		t.Fatalf("ids=%v", ids)
	}
}

func TestFullCargoExploringReturns(t *testing.T) {
	g := grid.New(16, 16, 0.1)
	env := testEnv(g, 10, nil)
	m := testMachine()
	rec := &Record{ID: 1, Status: StatusExploring}
	intent, events := m.Step(env, Unit{ID: 1, Pos: grid.Position{X: 2, Y: 2}, Cargo: 1000}, rec)
	if rec.Status != StatusReturning {
		t.Fatalf("status=%v", rec.Status)
	}
	if len(events) != 1 || events[0].From != StatusExploring || events[0].To != StatusReturning {
		t.Fatalf("events=%+v", events)
	}
	if intent.Dir == grid.Still || intent.Strategy != resolve.StrategyPathFollow {
		t.Fatalf("returning unit should follow a path home, got %+v", intent)
	}
}

func TestLowHaliteEmptyPathRequestsMove(t *testing.T) {
	g := grid.New(16, 16, 0.1)
	g.SetHalite(grid.Position{X: 3, Y: 3}, 10)
	env := testEnv(g, 10, nil)
	rec := &Record{ID: 1, Status: StatusExploring}
	intent, _ := testMachine().Step(env, Unit{ID: 1, Pos: grid.Position{X: 3, Y: 3}, Cargo: 100}, rec)
	if intent.Dir == grid.Still {
		t.Fatalf("expected a move, got stay")
	}
	if rec.Status != StatusExploring {
		t.Fatalf("status=%v", rec.Status)
	}
}

func TestExploreFollowsDensity(t *testing.T) {
	g := grid.New(16, 16, 0.1)
	g.SetHalite(grid.Position{X: 3, Y: 4}, 300)
	g.SetHalite(grid.Position{X: 4, Y: 3}, 200)
	env := testEnv(g, 10, nil)
	rec := &Record{ID: 1, Status: StatusExploring}
	intent, _ := testMachine().Step(env, Unit{ID: 1, Pos: grid.Position{X: 3, Y: 3}}, rec)
	if intent.Dir != grid.South || intent.Strategy != resolve.StrategyDensity {
		t.Fatalf("intent=%+v", intent)
	}
	// A second unit next door must not propose the same cell.
	rec2 := &Record{ID: 2, Status: StatusExploring}
	intent2, _ := testMachine().Step(env, Unit{ID: 2, Pos: grid.Position{X: 4, Y: 4}}, rec2)
	if intent2.Dir == grid.West {
		t.Fatalf("second unit proposed a reserved cell")
	}
}

func TestRichCellMines(t *testing.T) {
	g := grid.New(16, 16, 0.1)
	g.SetHalite(grid.Position{X: 3, Y: 3}, 400)
	env := testEnv(g, 10, nil)
	rec := &Record{ID: 1, Status: StatusExploring}
	intent, _ := testMachine().Step(env, Unit{ID: 1, Pos: grid.Position{X: 3, Y: 3}, Cargo: 100}, rec)
	if rec.Status != StatusMining || intent.Dir != grid.Still {
		t.Fatalf("status=%v intent=%+v", rec.Status, intent)
	}
	g.SetHalite(grid.Position{X: 3, Y: 3}, 20)
	intent, _ = testMachine().Step(testEnv(g, 11, nil), Unit{ID: 1, Pos: grid.Position{X: 3, Y: 3}, Cargo: 140}, rec)
	if rec.Status != StatusExploring || intent.Dir == grid.Still {
		t.Fatalf("depleted cell: status=%v intent=%+v", rec.Status, intent)
	}
}

func TestDockRecordsTripAndDeparts(t *testing.T) {
	g := grid.New(16, 16, 0.1)
	base := grid.Position{X: 8, Y: 8}
	g.SetStructure(base, grid.Structure{Kind: grid.StructureShipyard})
	tg := &fakeTargets{next: []grid.Position{{X: 2, Y: 3}}}
	env := testEnv(g, 40, tg)
	rec := &Record{ID: 7, Status: StatusReturning, LastDockTurn: 12, LeftBase: true}
	intent, events := testMachine().Step(env, Unit{ID: 7, Pos: base}, rec)
	if rec.Status != StatusTransiting || rec.Target != (grid.Position{X: 2, Y: 3}) {
		t.Fatalf("status=%v target=%v", rec.Status, rec.Target)
	}
	if len(events) != 2 || !events[0].Trip || events[0].TripTurns != 28 {
		t.Fatalf("events=%+v", events)
	}
	if rec.LastDockTurn != 40 || rec.Trips != 1 {
		t.Fatalf("record=%+v", rec)
	}
	// Outbound lane leaves along the base column offset by one.
	if intent.Dir != grid.West || intent.Strategy != resolve.StrategyPathFollow {
		t.Fatalf("intent=%+v", intent)
	}
}

func TestNewUnitDepartsWithoutTrip(t *testing.T) {
	g := grid.New(16, 16, 0.1)
	tg := &fakeTargets{next: []grid.Position{{X: 12, Y: 12}}}
	tb := NewTable()
	tb.Sync([]Unit{{ID: 1, Pos: grid.Position{X: 8, Y: 8}}}, 3)
	rec, _ := tb.Get(1)
	_, events := testMachine().Step(testEnv(g, 3, tg), Unit{ID: 1, Pos: grid.Position{X: 8, Y: 8}}, rec)
	for _, ev := range events {
		if ev.Trip {
			t.Fatalf("spawn should not count as a trip: %+v", ev)
		}
	}
	if rec.Status != StatusTransiting {
		t.Fatalf("status=%v", rec.Status)
	}
}

func TestBlockedReturnBacksOffThenResumes(t *testing.T) {
	g := grid.New(16, 16, 0.1)
	env := testEnv(g, 20, nil)
	m := testMachine()
	pos := grid.Position{X: 8, Y: 9}
	rec := &Record{ID: 1, Status: StatusReturning, Blocked: true}
	intent, _ := m.Step(env, Unit{ID: 1, Pos: pos, Cargo: 900}, rec)
	if rec.Status != StatusBackingOff {
		t.Fatalf("status=%v", rec.Status)
	}
	if rec.BackOff != (grid.Position{X: 8, Y: 10}) || intent.Dir != grid.South {
		t.Fatalf("backoff=%v intent=%+v", rec.BackOff, intent)
	}
	rec.Blocked = false
	m.Step(testEnv(g, 21, nil), Unit{ID: 1, Pos: rec.BackOff, Cargo: 900}, rec)
	if rec.Status != StatusReturning {
		t.Fatalf("status after reaching waypoint=%v", rec.Status)
	}
}

func TestTransitReleasesTargetOnArrival(t *testing.T) {
	g := grid.New(16, 16, 0.1)
	target := grid.Position{X: 2, Y: 2}
	tg := &fakeTargets{held: map[int]grid.Position{4: target}}
	rec := &Record{ID: 4, Status: StatusTransiting, Target: target}
	rec.SetSteps([]grid.Position{target})
	testMachine().Step(testEnv(g, 30, tg), Unit{ID: 4, Pos: target, Cargo: 10}, rec)
	if rec.Status != StatusExploring {
		t.Fatalf("status=%v", rec.Status)
	}
	if len(tg.released) != 1 || tg.released[0] != 4 {
		t.Fatalf("released=%v", tg.released)
	}
}

func TestTransitArrivalOnRichCellMines(t *testing.T) {
	g := grid.New(16, 16, 0.1)
	target := grid.Position{X: 2, Y: 2}
	g.SetHalite(target, 600)
	g.SetHalite(grid.Position{X: 3, Y: 2}, 100)
	tg := &fakeTargets{held: map[int]grid.Position{4: target}}
	rec := &Record{ID: 4, Status: StatusTransiting, Target: target}
	rec.SetSteps([]grid.Position{target})
	intent, events := testMachine().Step(testEnv(g, 30, tg), Unit{ID: 4, Pos: target, Cargo: 10}, rec)
	if rec.Status != StatusMining || intent.Dir != grid.Still {
		t.Fatalf("status=%v intent=%+v", rec.Status, intent)
	}
	if len(events) != 2 || events[1].To != StatusMining {
		t.Fatalf("events=%+v", events)
	}
	if _, held := tg.held[4]; held {
		t.Fatalf("target still held after arrival")
	}
}

func TestWithdrawnTargetStopsTransit(t *testing.T) {
	g := grid.New(16, 16, 0.1)
	target := grid.Position{X: 2, Y: 2}
	tg := &fakeTargets{}
	rec := &Record{ID: 5, Status: StatusTransiting, Target: target}
	rec.SetSteps([]grid.Position{{X: 2, Y: 4}, {X: 2, Y: 3}, target})
	testMachine().Step(testEnv(g, 31, tg), Unit{ID: 5, Pos: grid.Position{X: 2, Y: 5}, Cargo: 10}, rec)
	if rec.Status != StatusExploring || len(rec.Path) != 0 {
		t.Fatalf("status=%v path=%v", rec.Status, rec.Path)
	}
	if len(tg.released) != 0 {
		t.Fatalf("released=%v", tg.released)
	}
}

func TestRecordPathIsStack(t *testing.T) {
	var r Record
	r.SetSteps([]grid.Position{{X: 1}, {X: 2}, {X: 3}})
	next, ok := r.Next()
	if !ok || next.X != 1 {
		t.Fatalf("next=%v", next)
	}
	r.Pop()
	next, _ = r.Next()
	if next.X != 2 {
		t.Fatalf("after pop next=%v", next)
	}
}
