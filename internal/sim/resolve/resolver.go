package resolve

import (
	"log"
	"math/rand"
	"sort"

	"halitebot.ai/internal/sim/grid"
)

const (
	densityStayWeight    = 1.1
	densityReverseWeight = 0.5
)

// Resolver turns simultaneous desired moves into a command set in which no
// two units share a destination. It owns the grid's occupancy layer for the
// duration of Resolve; hostile units must be marked before the call.
type Resolver struct {
	Me   int
	Rand *rand.Rand
	Log  *log.Logger
}

type pass struct {
	r       *Resolver
	g       *grid.Grid
	desires []Desire
	cmds    []Command
	done    []bool
	byID    map[int]int
	unwinds int
}

func (r *Resolver) Resolve(g *grid.Grid, desires []Desire) Result {
	p := &pass{
		r:       r,
		g:       g,
		desires: make([]Desire, len(desires)),
		cmds:    make([]Command, len(desires)),
		done:    make([]bool, len(desires)),
		byID:    make(map[int]int, len(desires)),
	}
	for i, d := range desires {
		d.From = g.Normalize(d.From)
		p.desires[i] = d
		p.byID[d.Unit] = i
		g.MarkOccupied(d.From, d.Unit)
	}

	var queue []Collision
	for i, d := range p.desires {
		if d.Dir == grid.Still {
			p.commit(i, d.From, grid.Still, OutcomeStayed)
			continue
		}
		if d.Cargo < g.CostHalite(d.From) {
			p.commit(i, d.From, grid.Still, OutcomeNoFuel)
			continue
		}
		if occ, _ := g.OccupantAt(d.From); occ == d.Unit {
			g.MarkFree(d.From)
		}
		target := g.Neighbor(d.From, d.Dir)
		blocker, taken := g.OccupantAt(target)
		if !taken {
			p.claim(i, target, d.Dir, OutcomeMoved)
			continue
		}
		queue = append(queue, Collision{
			Unit:     d.Unit,
			Blocker:  blocker,
			Dir:      d.Dir,
			Target:   target,
			Strategy: d.Strategy,
		})
	}

	for _, c := range queue {
		i := p.byID[c.Unit]
		if !g.IsOccupied(c.Target) {
			p.claim(i, c.Target, c.Dir, OutcomeMoved)
			continue
		}
		if p.resolve(i, c) {
			continue
		}
		p.unwind(i)
	}
	for i := range p.desires {
		if !p.done[i] {
			p.unwind(i)
		}
	}

	return Result{Commands: p.cmds, Collisions: queue, UnwindSteps: p.unwinds}
}

func (p *pass) commit(i int, to grid.Position, dir grid.Direction, o Outcome) {
	d := p.desires[i]
	p.cmds[i] = Command{Unit: d.Unit, From: d.From, To: to, Dir: dir, Outcome: o}
	p.done[i] = true
}

func (p *pass) claim(i int, to grid.Position, dir grid.Direction, o Outcome) {
	p.g.MarkOccupied(to, p.desires[i].Unit)
	p.commit(i, to, dir, o)
}

// originFree reports whether unit i can still stay where it started.
func (p *pass) originFree(i int) bool {
	occ, taken := p.g.OccupantAt(p.desires[i].From)
	return !taken || occ == p.desires[i].Unit
}

func (p *pass) wait(i int) bool {
	if !p.originFree(i) {
		return false
	}
	p.claim(i, p.desires[i].From, grid.Still, OutcomeWaited)
	return true
}

func (p *pass) resolve(i int, c Collision) bool {
	switch c.Strategy {
	case StrategyDensity:
		return p.density(i, c)
	case StrategyPathFollow:
		return p.pathFollow(i, c)
	default:
		return p.random(i, c)
	}
}

func (p *pass) random(i int, c Collision) bool {
	dirs := make([]grid.Direction, 0, 3)
	for _, d := range grid.CardinalDirections {
		if d != c.Dir {
			dirs = append(dirs, d)
		}
	}
	if p.r.Rand != nil {
		p.r.Rand.Shuffle(len(dirs), func(a, b int) { dirs[a], dirs[b] = dirs[b], dirs[a] })
	}
	from := p.desires[i].From
	for _, d := range dirs {
		n := p.g.Neighbor(from, d)
		if !p.g.IsOccupied(n) {
			p.claim(i, n, d, OutcomeRerouted)
			return true
		}
	}
	return p.wait(i)
}

type candidate struct {
	dir   grid.Direction
	score float64
}

func (p *pass) density(i int, c Collision) bool {
	from := p.desires[i].From
	value := func(d grid.Direction) float64 {
		return float64(p.g.Halite(p.g.Neighbor(from, d)))
	}
	cands := []candidate{
		{dir: c.Dir.Left(), score: value(c.Dir.Left())},
		{dir: c.Dir.Right(), score: value(c.Dir.Right())},
		{dir: grid.Still, score: float64(p.g.Halite(from)) * densityStayWeight},
		{dir: c.Dir.Invert(), score: value(c.Dir.Invert()) * densityReverseWeight},
	}
	sort.SliceStable(cands, func(a, b int) bool { return cands[a].score > cands[b].score })
	for _, cand := range cands {
		if cand.dir == grid.Still {
			if p.wait(i) {
				return true
			}
			continue
		}
		n := p.g.Neighbor(from, cand.dir)
		if !p.g.IsOccupied(n) {
			p.claim(i, n, cand.dir, OutcomeRerouted)
			return true
		}
	}
	return false
}

func (p *pass) pathFollow(i int, c Collision) bool {
	g := p.g
	target := g.StructureAt(c.Target)
	if target.Present() && target.Owner != p.r.Me {
		if occ, _ := g.OccupantAt(c.Target); occ == grid.HostileOccupant {
			// Contesting an enemy base is a lost cause; keep the move.
			p.claim(i, c.Target, c.Dir, OutcomeFatal)
			return true
		}
	}
	from := p.desires[i].From
	if p.ownBase(c.Target) || p.ownBase(from) {
		if p.wait(i) {
			return true
		}
	}
	return p.random(i, c)
}

func (p *pass) ownBase(pos grid.Position) bool {
	s := p.g.StructureAt(pos)
	return s.Present() && s.Owner == p.r.Me
}

// unwind puts unit i back on its origin. Whoever claimed that cell is sent
// back to its own origin, and so on down the chain. Each unit is unwound at
// most once, so the work list drains in at most len(desires) steps.
func (p *pass) unwind(i int) {
	visited := make(map[int]bool)
	work := []int{i}
	for len(work) > 0 {
		j := work[len(work)-1]
		work = work[:len(work)-1]
		unit := p.desires[j].Unit
		if visited[unit] {
			continue
		}
		visited[unit] = true

		origin := p.desires[j].From
		if occ, taken := p.g.OccupantAt(origin); taken && occ != unit {
			if k, ours := p.byID[occ]; ours && !visited[occ] {
				work = append(work, k)
			} else if p.r.Log != nil {
				p.r.Log.Printf("unwind: unit %d origin %v held by %d", unit, origin, occ)
			}
		}
		p.claim(j, origin, grid.Still, OutcomeUnwound)
		p.unwinds++
	}
	if p.r.Log != nil && len(visited) > 1 {
		p.r.Log.Printf("unwind: unit %d displaced %d others", p.desires[i].Unit, len(visited)-1)
	}
}
