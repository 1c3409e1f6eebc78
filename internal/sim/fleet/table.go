package fleet

import (
	"fmt"
	"sort"

	"halitebot.ai/internal/sim/grid"
)

type Status uint8

const (
	StatusExploring Status = iota
	StatusTransiting
	StatusReturning
	StatusBackingOff
	StatusMining
)

func (s Status) String() string {
	switch s {
	case StatusExploring:
		return "exploring"
	case StatusTransiting:
		return "transiting"
	case StatusReturning:
		return "returning"
	case StatusBackingOff:
		return "backing_off"
	case StatusMining:
		return "mining"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Unit is the engine-owned view of a ship for one turn.
type Unit struct {
	ID    int
	Pos   grid.Position
	Cargo int
}

// Record is the engine-local state kept across turns for one unit.
type Record struct {
	ID     int
	Status Status
	// Path is a stack; the next step is the last element.
	Path []grid.Position

	CreatedTurn  int
	LastDockTurn int
	LeftBase     bool
	Trips        int

	BackOff grid.Position
	Target  grid.Position
	// Blocked is set when last turn's command differed from the desire.
	Blocked bool
	// Fallback is set for the turn when the preferred route could not be
	// planned and a direct walk was used instead.
	Fallback bool
}

func (r *Record) Next() (grid.Position, bool) {
	if len(r.Path) == 0 {
		return grid.Position{}, false
	}
	return r.Path[len(r.Path)-1], true
}

func (r *Record) Pop() {
	if len(r.Path) > 0 {
		r.Path = r.Path[:len(r.Path)-1]
	}
}

// SetSteps stores a forward-ordered step list as the path stack.
func (r *Record) SetSteps(steps []grid.Position) {
	r.Path = r.Path[:0]
	for i := len(steps) - 1; i >= 0; i-- {
		r.Path = append(r.Path, steps[i])
	}
}

func (r *Record) ClearPath() { r.Path = r.Path[:0] }

// Table stores records in a dense slice indexed by unit id.
type Table struct {
	records []Record
	index   map[int]int
}

func NewTable() *Table {
	return &Table{index: make(map[int]int)}
}

func (t *Table) Len() int { return len(t.records) }

func (t *Table) Get(id int) (*Record, bool) {
	i, ok := t.index[id]
	if !ok {
		return nil, false
	}
	return &t.records[i], true
}

// Sync reconciles the table with the units the engine reported this turn.
// New units start Returning; missing ones are purged and returned as lost,
// in ascending id order.
func (t *Table) Sync(units []Unit, turn int) (added, lost []int) {
	seen := make(map[int]struct{}, len(units))
	for _, u := range units {
		seen[u.ID] = struct{}{}
		if _, ok := t.index[u.ID]; ok {
			continue
		}
		t.index[u.ID] = len(t.records)
		t.records = append(t.records, Record{
			ID:           u.ID,
			Status:       StatusReturning,
			CreatedTurn:  turn,
			LastDockTurn: turn,
		})
		added = append(added, u.ID)
	}
	for id := range t.index {
		if _, ok := seen[id]; !ok {
			lost = append(lost, id)
		}
	}
	sort.Ints(lost)
	for _, id := range lost {
		t.remove(id)
	}
	return added, lost
}

func (t *Table) remove(id int) {
	i, ok := t.index[id]
	if !ok {
		return
	}
	last := len(t.records) - 1
	if i != last {
		t.records[i] = t.records[last]
		t.index[t.records[i].ID] = i
	}
	t.records = t.records[:last]
	delete(t.index, id)
}

// Each visits records in ascending id order.
func (t *Table) Each(fn func(r *Record)) {
	ids := make([]int, 0, len(t.records))
	for id := range t.index {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		fn(&t.records[t.index[id]])
	}
}

func (t *Table) CountByStatus() map[Status]int {
	out := make(map[Status]int)
	for i := range t.records {
		out[t.records[i].Status]++
	}
	return out
}
