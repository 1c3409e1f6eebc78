package path

import "halitebot.ai/internal/sim/grid"

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// walk resolves the x displacement fully, then y, each along the shorter way
// round the torus.
func (p *Planner) walk(from, to grid.Position) []grid.Position {
	g := p.g
	off := g.Offset(from, to)
	steps := make([]grid.Position, 0, abs(off.X)+abs(off.Y))
	cur := from
	for i, sx := 0, sign(off.X); i < abs(off.X); i++ {
		cur = g.Normalize(grid.Position{X: cur.X + sx, Y: cur.Y})
		steps = append(steps, cur)
	}
	for i, sy := 0, sign(off.Y); i < abs(off.Y); i++ {
		cur = g.Normalize(grid.Position{X: cur.X, Y: cur.Y + sy})
		steps = append(steps, cur)
	}
	return steps
}

func (p *Planner) direct(from, to grid.Position, policy Policy) Result {
	steps := p.walk(from, to)
	return Result{Steps: steps, Cost: p.pathCost(from, steps, policy)}
}

// DockingCorners returns the lane waypoints between from and to, one of
// which must be a base. Inbound traffic reaches the base row offset by lane
// and slides along it; outbound traffic leaves along the base column offset
// by lane. The two never share a corridor next to the base.
func (p *Planner) DockingCorners(from, to grid.Position, lane int, inbound bool) []grid.Position {
	g := p.g
	from, to = g.Normalize(from), g.Normalize(to)
	if lane <= 0 {
		lane = 1
	}
	var corners []grid.Position
	add := func(c grid.Position) {
		c = g.Normalize(c)
		if c == from {
			return
		}
		if n := len(corners); n > 0 && corners[n-1] == c {
			return
		}
		corners = append(corners, c)
	}
	if inbound {
		base := to
		off := g.Offset(base, from)
		if off.X == 0 {
			add(base)
			return corners
		}
		side := sign(off.Y)
		if side == 0 {
			side = 1
		}
		laneY := base.Y + side*lane
		add(grid.Position{X: from.X, Y: laneY})
		add(grid.Position{X: base.X, Y: laneY})
		add(base)
		return corners
	}
	base := from
	off := g.Offset(base, to)
	if off.Y == 0 {
		add(to)
		return corners
	}
	side := sign(off.X)
	if side == 0 {
		side = 1
	}
	laneX := base.X + side*lane
	add(grid.Position{X: laneX, Y: base.Y})
	add(grid.Position{X: laneX, Y: to.Y})
	add(to)
	return corners
}

func (p *Planner) dockingLane(req Request) Result {
	inbound := req.Inbound || p.g.StructureAt(req.To).Present()
	corners := p.DockingCorners(req.From, req.To, req.LaneOffset, inbound)
	var steps []grid.Position
	cur := req.From
	for _, c := range corners {
		steps = append(steps, p.walk(cur, c)...)
		cur = c
	}
	return Result{Steps: steps, Cost: p.pathCost(req.From, steps, req.Policy), Corners: corners}
}

// straightLine greedily closes the remaining distance. When two directions
// are equally good the choice alternates with the step parity, which keeps
// the walk close to the diagonal.
func (p *Planner) straightLine(from, to grid.Position, policy Policy) Result {
	g := p.g
	var steps []grid.Position
	cost := 0.0
	cur := from
	for i := 0; cur != to; i++ {
		dirs := g.DirectionsTo(cur, to)
		d := dirs[0]
		if len(dirs) > 1 && i%2 == 1 {
			d = dirs[1]
		}
		cost += p.edgeCost(cur, policy)
		cur = g.Neighbor(cur, d)
		steps = append(steps, cur)
	}
	return Result{Steps: steps, Cost: cost}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
