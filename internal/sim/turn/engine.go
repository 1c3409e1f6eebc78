package turn

import (
	"context"
	"fmt"
	"log"
	"math/rand"

	"halitebot.ai/internal/protocol"
	"halitebot.ai/internal/sim/fleet"
	"halitebot.ai/internal/sim/grid"
	"halitebot.ai/internal/sim/resolve"
	"halitebot.ai/internal/sim/tuning"
)

// Engine plays one game. It is single-threaded; PlayTurn must not be called
// concurrently.
type Engine struct {
	C *Context
}

func NewEngine(tu tuning.Tuning, game protocol.Game, logger *log.Logger) *Engine {
	return &Engine{C: NewContext(tu, game, logger)}
}

// PlayTurn refreshes the grid from the frame, runs every unit's state
// machine, reconciles the desired moves and returns the turn record with
// the command line to send. Once ctx is done the remaining units stay put.
func (e *Engine) PlayTurn(ctx context.Context, f protocol.Frame) (Record, error) {
	c := e.C
	g := c.Grid
	out := Record{Turn: f.Turn}

	me, ok := f.Player(c.Me)
	if !ok {
		return out, fmt.Errorf("turn %d: player %d missing from frame", f.Turn, c.Me)
	}
	e.applyFrame(f)
	out.Bank = me.Halite
	out.Ships = len(me.Ships)

	units := make(map[int]fleet.Unit, len(me.Ships))
	list := make([]fleet.Unit, 0, len(me.Ships))
	for _, s := range me.Ships {
		u := fleet.Unit{ID: s.ID, Pos: g.Normalize(s.Pos), Cargo: s.Halite}
		units[u.ID] = u
		list = append(list, u)
	}
	gone := make(map[int]fleet.Record)
	c.Table.Each(func(r *fleet.Record) {
		if _, alive := units[r.ID]; !alive {
			gone[r.ID] = *r
		}
	})
	_, lost := c.Table.Sync(list, f.Turn)
	for _, id := range lost {
		r := gone[id]
		c.Targets.Release(id)
		c.logf("turn %d: unit %d lost while %s after %d trips", f.Turn, id, r.Status, r.Trips)
		out.Lost = append(out.Lost, LostTrace{Unit: id, Status: r.Status.String(), Trips: r.Trips, Code: protocol.ErrLostUnit})
	}

	if ctx.Err() == nil {
		c.Targets.Recompute(g, c.Shipyard)
	}

	env := &fleet.Env{
		Turn:    f.Turn,
		Grid:    g,
		Planner: c.Planner,
		Bases:   c.Bases,
		Targets: c.Targets,
		Rand:    rand.New(rand.NewSource(c.Seed + int64(f.Turn))),
		Log:     c.Log,
	}
	var (
		desires  []resolve.Desire
		recs     []*fleet.Record
		degraded = make(map[int]bool)
	)
	c.Table.Each(func(r *fleet.Record) {
		u := units[r.ID]
		d := resolve.Desire{Unit: u.ID, From: u.Pos, Dir: grid.Still, Strategy: resolve.StrategyDensity, Cargo: u.Cargo}
		if ctx.Err() != nil {
			degraded[u.ID] = true
		} else {
			intent, events := c.Machine.Step(env, u, r)
			for _, ev := range events {
				if ev.Trip {
					out.Trips = append(out.Trips, TripTrace{Unit: ev.Unit, Turns: ev.TripTurns, Trip: r.Trips})
				}
			}
			d.Dir, d.Strategy = intent.Dir, intent.Strategy
		}
		desires = append(desires, d)
		recs = append(recs, r)
	})
	if len(degraded) > 0 {
		out.Degraded = true
		c.logf("turn %d: budget exhausted, %d units held", f.Turn, len(degraded))
	}

	c.Resolver.Rand = rand.New(rand.NewSource(c.Seed*7919 + int64(f.Turn)))
	res := c.Resolver.Resolve(g, desires)
	out.Collisions = len(res.Collisions)
	out.Unwinds = res.UnwindSteps

	cmds := make([]string, 0, len(res.Commands)+1)
	for i, cmd := range res.Commands {
		r := recs[i]
		r.Blocked = cmd.Blocked()
		if m := protocol.Move(cmd.Unit, cmd.Dir); m != "" {
			cmds = append(cmds, m)
		}
		tr := UnitTrace{
			ID:       cmd.Unit,
			Status:   r.Status.String(),
			Cargo:    desires[i].Cargo,
			From:     cmd.From,
			To:       cmd.To,
			Want:     desires[i].Dir,
			Dir:      cmd.Dir,
			Strategy: desires[i].Strategy.String(),
			Outcome:  cmd.Outcome.String(),
		}
		switch {
		case degraded[cmd.Unit]:
			tr.Code = protocol.ErrDeadline
		case cmd.Outcome == resolve.OutcomeNoFuel:
			tr.Code = protocol.ErrNoFuel
			out.NoFuel++
		case cmd.Outcome == resolve.OutcomeUnwound:
			tr.Code = protocol.ErrUnwound
		case r.Fallback:
			tr.Code = protocol.ErrPathNotFound
		}
		if r.Fallback {
			out.Fallbacks++
		}
		out.Units = append(out.Units, tr)
	}

	if e.shouldSpawn(f.Turn, me) && !g.IsOccupied(c.Shipyard) {
		cmds = append(cmds, protocol.CmdSpawn)
		out.Spawned = true
	}

	out.Commands = cmds
	out.Hotspots = len(c.Targets.Hotspots())
	out.Assigned = c.Targets.Assigned()
	out.Statuses = make(map[string]int)
	for s, n := range c.Table.CountByStatus() {
		out.Statuses[s.String()] = n
	}
	out.Digest = CommandDigest(cmds)
	return out, nil
}

// applyFrame brings the grid up to date: halite deltas, dropoff structures
// and hostile ship occupancy. Own ships are marked by the resolver.
func (e *Engine) applyFrame(f protocol.Frame) {
	c := e.C
	g := c.Grid
	for _, u := range f.Updates {
		g.SetHalite(u.Pos, u.Halite)
	}
	g.ResetOccupancy()
	c.Bases = c.Bases[:1]
	for _, p := range f.Players {
		for _, d := range p.Dropoffs {
			g.SetStructure(d.Pos, grid.Structure{Kind: grid.StructureDropoff, Owner: p.ID})
			if holder, ok := c.Targets.HolderOf(g.Normalize(d.Pos)); ok {
				c.Targets.ReleaseTarget(g.Normalize(d.Pos))
				c.logf("turn %d: dropoff at %v withdraws unit %d's target", f.Turn, d.Pos, holder)
			}
			if p.ID == c.Me {
				c.Bases = append(c.Bases, g.Normalize(d.Pos))
			}
		}
		if p.ID == c.Me {
			continue
		}
		for _, s := range p.Ships {
			g.MarkOccupied(s.Pos, grid.HostileOccupant)
		}
	}
}

func (e *Engine) shouldSpawn(turn int, me protocol.PlayerFrame) bool {
	c := e.C
	if me.Halite < c.ShipCost {
		return false
	}
	if c.Spawn.MaxShips > 0 && len(me.Ships) >= c.Spawn.MaxShips {
		return false
	}
	if c.MaxTurns > 0 && float64(turn) > c.Spawn.StopFraction*float64(c.MaxTurns) {
		return false
	}
	return true
}
