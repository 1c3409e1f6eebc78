package fleet

import (
	"errors"
	"log"
	"math/rand"

	"halitebot.ai/internal/sim/grid"
	"halitebot.ai/internal/sim/path"
	"halitebot.ai/internal/sim/resolve"
)

type Config struct {
	Capacity        int
	ReturnThreshold int
	MiningThreshold int
	LaneOffset      int
	DockRadius      int
}

// Targeter hands out exclusive loiter targets.
type Targeter interface {
	Claim(unit int) (grid.Position, bool)
	Release(unit int)
	TargetOf(unit int) (grid.Position, bool)
}

// Env is everything the machine reads for one turn.
type Env struct {
	Turn    int
	Grid    *grid.Grid
	Planner *path.Planner
	Bases   []grid.Position
	Targets Targeter
	Rand    *rand.Rand
	Log     *log.Logger

	// reserved holds cells already proposed by an earlier unit this turn.
	reserved map[grid.Position]int
}

func (e *Env) Reserve(p grid.Position, unit int) {
	if e.reserved == nil {
		e.reserved = make(map[grid.Position]int)
	}
	e.reserved[e.Grid.Normalize(p)] = unit
}

func (e *Env) Reserved(p grid.Position) bool {
	_, ok := e.reserved[e.Grid.Normalize(p)]
	return ok
}

func (e *Env) logf(format string, args ...any) {
	if e.Log != nil {
		e.Log.Printf(format, args...)
	}
}

// NearestBase returns the closest base, ties resolved by list order.
func (e *Env) NearestBase(p grid.Position) (grid.Position, bool) {
	best, bestDist := grid.Position{}, -1
	for _, b := range e.Bases {
		if d := e.Grid.Distance(p, b); bestDist < 0 || d < bestDist {
			best, bestDist = b, d
		}
	}
	return best, bestDist >= 0
}

func (e *Env) atBase(p grid.Position) bool {
	p = e.Grid.Normalize(p)
	for _, b := range e.Bases {
		if e.Grid.Normalize(b) == p {
			return true
		}
	}
	return false
}

// Event is a status change worth recording.
type Event struct {
	Turn      int
	Unit      int
	From      Status
	To        Status
	TripTurns int
	Trip      bool
}

type Intent struct {
	Dir      grid.Direction
	Strategy resolve.Strategy
}

type Machine struct {
	cfg Config
}

func NewMachine(cfg Config) *Machine {
	if cfg.ReturnThreshold <= 0 || cfg.ReturnThreshold > cfg.Capacity {
		cfg.ReturnThreshold = cfg.Capacity
	}
	if cfg.LaneOffset <= 0 {
		cfg.LaneOffset = 1
	}
	return &Machine{cfg: cfg}
}

func (m *Machine) Config() Config { return m.cfg }

func (m *Machine) full(u Unit) bool {
	return u.Cargo >= m.cfg.ReturnThreshold || u.Cargo >= m.cfg.Capacity
}

// Step runs the transition for one unit, then picks its desired move.
func (m *Machine) Step(env *Env, u Unit, rec *Record) (Intent, []Event) {
	u.Pos = env.Grid.Normalize(u.Pos)
	rec.Fallback = false
	events := m.Transition(env, u, rec)
	return m.Intent(env, u, rec), events
}

func (m *Machine) Transition(env *Env, u Unit, rec *Record) []Event {
	var events []Event
	move := func(to Status) {
		events = append(events, Event{Turn: env.Turn, Unit: rec.ID, From: rec.Status, To: to})
		rec.Status = to
	}
	for {
		next, ok := rec.Next()
		if !ok || next != u.Pos {
			break
		}
		rec.Pop()
	}
	if !env.atBase(u.Pos) {
		rec.LeftBase = true
	}

	switch rec.Status {
	case StatusExploring, StatusTransiting, StatusMining:
		if m.full(u) {
			if rec.Status == StatusTransiting && env.Targets != nil {
				env.Targets.Release(rec.ID)
			}
			rec.ClearPath()
			move(StatusReturning)
			return events
		}
		switch rec.Status {
		case StatusTransiting:
			if m.withdrawn(env, rec) {
				env.logf("unit %d: target %v withdrawn", rec.ID, rec.Target)
				rec.ClearPath()
				move(StatusExploring)
			} else if u.Pos == rec.Target || len(rec.Path) == 0 {
				if env.Targets != nil {
					env.Targets.Release(rec.ID)
				}
				rec.ClearPath()
				move(StatusExploring)
			}
			// An arrival on a rich cell mines in the same turn.
			if rec.Status == StatusExploring && env.Grid.Halite(u.Pos) >= m.cfg.MiningThreshold {
				move(StatusMining)
			}
		case StatusMining:
			if env.Grid.Halite(u.Pos) < m.cfg.MiningThreshold {
				move(StatusExploring)
			}
		case StatusExploring:
			if env.Grid.Halite(u.Pos) >= m.cfg.MiningThreshold {
				move(StatusMining)
			}
		}

	case StatusReturning:
		if env.atBase(u.Pos) {
			trip := rec.LeftBase
			if trip {
				rec.Trips++
			}
			tripTurns := env.Turn - rec.LastDockTurn
			rec.LastDockTurn = env.Turn
			rec.LeftBase = false
			rec.ClearPath()
			move(StatusExploring)
			if trip {
				events[len(events)-1].Trip = true
				events[len(events)-1].TripTurns = tripTurns
			}
			m.depart(env, u, rec, move)
			return events
		}
		if rec.Blocked {
			m.backOff(env, u, rec)
			move(StatusBackingOff)
		}

	case StatusBackingOff:
		if u.Pos == rec.BackOff || len(rec.Path) == 0 {
			rec.ClearPath()
			move(StatusReturning)
		}
	}
	return events
}

// withdrawn reports whether the pool no longer holds rec's target for it,
// e.g. because a dropoff was built on the cell.
func (m *Machine) withdrawn(env *Env, rec *Record) bool {
	if env.Targets == nil {
		return false
	}
	t, ok := env.Targets.TargetOf(rec.ID)
	return !ok || t != rec.Target
}

// depart claims a loiter target for a freshly docked unit and lays the
// outbound lane path to it.
func (m *Machine) depart(env *Env, u Unit, rec *Record, move func(Status)) {
	if env.Targets == nil {
		return
	}
	target, ok := env.Targets.Claim(rec.ID)
	if !ok {
		return
	}
	res, err := env.Planner.Plan(path.Request{
		From:       u.Pos,
		To:         target,
		Strategy:   path.StrategyDockingLane,
		LaneOffset: m.cfg.LaneOffset,
	})
	if err != nil || len(res.Steps) == 0 {
		env.Targets.Release(rec.ID)
		return
	}
	rec.Target = target
	rec.SetSteps(res.Steps)
	move(StatusTransiting)
}

// backOff picks a waypoint one step away from the nearest base, skipping
// cells another unit already proposed.
func (m *Machine) backOff(env *Env, u Unit, rec *Record) {
	g := env.Grid
	base, ok := env.NearestBase(u.Pos)
	dirs := []grid.Direction{}
	if ok {
		for _, d := range g.DirectionsTo(u.Pos, base) {
			dirs = append(dirs, d.Invert())
		}
	}
	dirs = append(dirs, grid.CardinalDirections[:]...)
	wp := g.Neighbor(u.Pos, dirs[0])
	for _, d := range dirs {
		n := g.Neighbor(u.Pos, d)
		if !env.Reserved(n) {
			wp = n
			break
		}
	}
	res, _ := env.Planner.Plan(path.Request{From: u.Pos, To: wp, Strategy: path.StrategyDirect})
	rec.BackOff = wp
	rec.SetSteps(res.Steps)
}

func (m *Machine) Intent(env *Env, u Unit, rec *Record) Intent {
	switch rec.Status {
	case StatusMining:
		env.Reserve(u.Pos, rec.ID)
		return Intent{Dir: grid.Still, Strategy: resolve.StrategyDensity}
	case StatusExploring:
		return m.explore(env, u, rec)
	case StatusReturning:
		if base, ok := env.NearestBase(u.Pos); ok {
			m.ensurePath(env, u, rec, base, true)
		}
	case StatusTransiting:
		m.ensurePath(env, u, rec, rec.Target, false)
	}
	next, ok := rec.Next()
	if !ok {
		return m.explore(env, u, rec)
	}
	d := path.NextDirection(env.Grid, u.Pos, []grid.Position{next})
	if d == grid.Still {
		rec.ClearPath()
		return m.explore(env, u, rec)
	}
	env.Reserve(next, rec.ID)
	return Intent{Dir: d, Strategy: resolve.StrategyPathFollow}
}

// ensurePath keeps the stored path if its next step is still adjacent, and
// replans otherwise.
func (m *Machine) ensurePath(env *Env, u Unit, rec *Record, goal grid.Position, homing bool) {
	if next, ok := rec.Next(); ok && path.NextDirection(env.Grid, u.Pos, []grid.Position{next}) != grid.Still {
		return
	}
	req := path.Request{From: u.Pos, To: goal, Policy: path.PolicyHaliteCost, TieBreak: true}
	switch {
	case homing && env.Grid.Distance(u.Pos, goal) <= m.cfg.DockRadius:
		req.Strategy = path.StrategyDockingLane
		req.LaneOffset = m.cfg.LaneOffset
		req.Inbound = true
	case homing:
		req.Strategy = path.StrategyAStar
	default:
		req.Strategy = path.StrategyStraightLine
	}
	res, err := env.Planner.Plan(req)
	if errors.Is(err, path.ErrPathNotFound) {
		env.logf("unit %d: %v from %v to %v, falling back to direct", rec.ID, err, u.Pos, goal)
		req.Strategy = path.StrategyDirect
		rec.Fallback = true
		res, err = env.Planner.Plan(req)
	}
	if err != nil {
		env.logf("unit %d: plan: %v", rec.ID, err)
		rec.ClearPath()
		return
	}
	rec.SetSteps(res.Steps)
}

// explore picks the richest unreserved neighbour; with nothing worth taking
// it wanders in a random direction.
func (m *Machine) explore(env *Env, u Unit, rec *Record) Intent {
	g := env.Grid
	best, bestHalite := grid.Still, 0
	for _, d := range grid.CardinalDirections {
		n := g.Neighbor(u.Pos, d)
		if env.Reserved(n) {
			continue
		}
		if h := g.Halite(n); h > bestHalite {
			best, bestHalite = d, h
		}
	}
	if best != grid.Still {
		env.Reserve(g.Neighbor(u.Pos, best), rec.ID)
		return Intent{Dir: best, Strategy: resolve.StrategyDensity}
	}
	dirs := grid.CardinalDirections
	if env.Rand != nil {
		env.Rand.Shuffle(len(dirs), func(a, b int) { dirs[a], dirs[b] = dirs[b], dirs[a] })
	}
	for _, d := range dirs {
		n := g.Neighbor(u.Pos, d)
		if !env.Reserved(n) {
			env.Reserve(n, rec.ID)
			return Intent{Dir: d, Strategy: resolve.StrategyRandomWalk}
		}
	}
	return Intent{Dir: dirs[0], Strategy: resolve.StrategyRandomWalk}
}
