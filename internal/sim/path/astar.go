package path

import (
	"container/heap"
	"math"

	"halitebot.ai/internal/sim/grid"
)

type openNode struct {
	idx int
	f   float64
	seq uint64
}

type openList []openNode

func (ol openList) Len() int { return len(ol) }
func (ol openList) Less(i, j int) bool {
	if ol[i].f != ol[j].f {
		return ol[i].f < ol[j].f
	}
	return ol[i].seq < ol[j].seq
}
func (ol openList) Swap(i, j int)       { ol[i], ol[j] = ol[j], ol[i] }
func (ol *openList) Push(x interface{}) { *ol = append(*ol, x.(openNode)) }
func (ol *openList) Pop() interface{} {
	old := *ol
	n := old[len(old)-1]
	*ol = old[:len(old)-1]
	return n
}

func (p *Planner) reset() {
	p.run++
	if p.run == 0 {
		for i := range p.stamp {
			p.stamp[i] = 0
		}
		p.run = 1
	}
}

func (p *Planner) touch(idx int) {
	if p.stamp[idx] != p.run {
		p.stamp[idx] = p.run
		p.gScore[idx] = math.Inf(1)
		p.parent[idx] = -1
		p.closed[idx] = false
	}
}

// heuristic is the wrap distance scaled by the cheapest possible step, so it
// never overestimates under either policy.
func (p *Planner) heuristic(cur, start, goal grid.Position, req Request) float64 {
	d := float64(p.g.Distance(cur, goal))
	if req.Policy == PolicyHaliteCost {
		d *= haliteStepEpsilon
	}
	if !req.TieBreak || d == 0 {
		return d
	}
	a := p.g.Offset(goal, cur)
	b := p.g.Offset(goal, start)
	la := math.Hypot(float64(a.X), float64(a.Y))
	lb := math.Hypot(float64(b.X), float64(b.Y))
	if la == 0 || lb == 0 {
		return d
	}
	cross := math.Abs(float64(a.X*b.Y-b.X*a.Y)) / (la * lb)
	return d + 0.001*d*cross
}

func (p *Planner) aStar(req Request) (Result, error) {
	g := p.g
	p.reset()

	startIdx := g.Index(req.From)
	goalIdx := g.Index(req.To)

	p.touch(startIdx)
	p.gScore[startIdx] = 0

	var seq uint64
	ol := &openList{}
	heap.Init(ol)
	heap.Push(ol, openNode{idx: startIdx, f: p.heuristic(req.From, req.From, req.To, req), seq: seq})

	for ol.Len() > 0 {
		cur := heap.Pop(ol).(openNode)
		if p.closed[cur.idx] {
			continue
		}
		if cur.idx == goalIdx {
			steps := p.reconstruct(startIdx, goalIdx)
			return Result{Steps: steps, Cost: p.gScore[goalIdx]}, nil
		}
		p.closed[cur.idx] = true

		pos := g.PositionOf(cur.idx)
		step := p.edgeCost(pos, req.Policy)
		for _, d := range grid.CardinalDirections {
			np := g.Neighbor(pos, d)
			nidx := g.Index(np)
			if nidx != goalIdx && req.Blocked != nil && req.Blocked(np) {
				continue
			}
			p.touch(nidx)
			if p.closed[nidx] {
				continue
			}
			tentative := p.gScore[cur.idx] + step
			if tentative >= p.gScore[nidx] {
				continue
			}
			p.gScore[nidx] = tentative
			p.parent[nidx] = int32(cur.idx)
			seq++
			heap.Push(ol, openNode{idx: nidx, f: tentative + p.heuristic(np, req.From, req.To, req), seq: seq})
		}
	}
	return Result{}, ErrPathNotFound
}

func (p *Planner) reconstruct(startIdx, goalIdx int) []grid.Position {
	var rev []grid.Position
	for idx := goalIdx; idx != startIdx; idx = int(p.parent[idx]) {
		rev = append(rev, p.g.PositionOf(idx))
	}
	steps := make([]grid.Position, len(rev))
	for i := range rev {
		steps[i] = rev[len(rev)-1-i]
	}
	return steps
}
