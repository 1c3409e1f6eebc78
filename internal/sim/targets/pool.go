package targets

import (
	"sort"

	"halitebot.ai/internal/sim/grid"
)

type Config struct {
	// DistanceWeight is the halite discounted per cell of travel.
	DistanceWeight float64
	// HotspotFraction of the best value a cell must exceed to be handed out.
	HotspotFraction float64
}

type Hotspot struct {
	Pos   grid.Position `json:"pos"`
	Value float64       `json:"value"`
}

// Pool holds this turn's hotspots and the exclusive loiter assignments that
// persist across turns. A target is held by at most one unit and a unit
// holds at most one target.
type Pool struct {
	cfg Config

	// hotspots is sorted ascending; Claim takes from the end.
	hotspots []Hotspot
	byTarget map[grid.Position]int
	byUnit   map[int]grid.Position
}

func NewPool(cfg Config) *Pool {
	return &Pool{
		cfg:      cfg,
		byTarget: make(map[grid.Position]int),
		byUnit:   make(map[int]grid.Position),
	}
}

// Value scores a cell as seen from origin: its halite, less a distance
// penalty and the fuel expected to burn getting there over average terrain.
func (p *Pool) Value(g *grid.Grid, origin, cell grid.Position, meanHalite float64) float64 {
	d := float64(g.Distance(origin, cell))
	fuel := d * meanHalite * g.BurnRate
	return float64(g.Halite(cell)) - d*p.cfg.DistanceWeight - fuel
}

// Recompute rebuilds the hotspot list relative to origin (the home base).
// Assigned targets and structure cells are never candidates.
func (p *Pool) Recompute(g *grid.Grid, origin grid.Position) {
	mean := g.MeanHalite()
	values := make([]float64, g.Size())
	best := 0.0
	for i := range values {
		v := p.Value(g, origin, g.PositionOf(i), mean)
		values[i] = v
		if v > best {
			best = v
		}
	}
	p.hotspots = p.hotspots[:0]
	if best <= 0 {
		return
	}
	threshold := best * p.cfg.HotspotFraction
	for i, v := range values {
		pos := g.PositionOf(i)
		if v <= threshold {
			continue
		}
		if _, taken := p.byTarget[pos]; taken {
			continue
		}
		if g.StructureAt(pos).Present() {
			continue
		}
		p.hotspots = append(p.hotspots, Hotspot{Pos: pos, Value: v})
	}
	sort.SliceStable(p.hotspots, func(i, j int) bool { return p.hotspots[i].Value < p.hotspots[j].Value })
}

func (p *Pool) Hotspots() []Hotspot { return p.hotspots }

// Claim hands the best remaining hotspot to unit. A unit that already holds
// a target gets the same one back.
func (p *Pool) Claim(unit int) (grid.Position, bool) {
	if pos, ok := p.byUnit[unit]; ok {
		return pos, true
	}
	for len(p.hotspots) > 0 {
		h := p.hotspots[len(p.hotspots)-1]
		p.hotspots = p.hotspots[:len(p.hotspots)-1]
		if _, taken := p.byTarget[h.Pos]; taken {
			continue
		}
		p.byTarget[h.Pos] = unit
		p.byUnit[unit] = h.Pos
		return h.Pos, true
	}
	return grid.Position{}, false
}

func (p *Pool) Release(unit int) {
	pos, ok := p.byUnit[unit]
	if !ok {
		return
	}
	delete(p.byUnit, unit)
	delete(p.byTarget, pos)
}

func (p *Pool) ReleaseTarget(pos grid.Position) {
	unit, ok := p.byTarget[pos]
	if !ok {
		return
	}
	delete(p.byTarget, pos)
	delete(p.byUnit, unit)
}

func (p *Pool) TargetOf(unit int) (grid.Position, bool) {
	pos, ok := p.byUnit[unit]
	return pos, ok
}

func (p *Pool) HolderOf(pos grid.Position) (int, bool) {
	unit, ok := p.byTarget[pos]
	return unit, ok
}

func (p *Pool) Assigned() int { return len(p.byUnit) }
