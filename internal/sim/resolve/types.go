package resolve

import (
	"fmt"

	"halitebot.ai/internal/sim/grid"
)

// Strategy selects how a blocked move is rerouted. It is fixed by the code
// path that produced the desire.
type Strategy uint8

const (
	StrategyRandomWalk Strategy = iota
	StrategyDensity
	StrategyPathFollow
)

func (s Strategy) String() string {
	switch s {
	case StrategyRandomWalk:
		return "random"
	case StrategyDensity:
		return "density"
	case StrategyPathFollow:
		return "path_follow"
	}
	return fmt.Sprintf("strategy(%d)", uint8(s))
}

type Outcome uint8

const (
	OutcomeMoved Outcome = iota
	OutcomeStayed
	OutcomeRerouted
	OutcomeWaited
	OutcomeUnwound
	OutcomeNoFuel
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMoved:
		return "moved"
	case OutcomeStayed:
		return "stayed"
	case OutcomeRerouted:
		return "rerouted"
	case OutcomeWaited:
		return "waited"
	case OutcomeUnwound:
		return "unwound"
	case OutcomeNoFuel:
		return "no_fuel"
	case OutcomeFatal:
		return "fatal"
	}
	return fmt.Sprintf("outcome(%d)", uint8(o))
}

// Desire is one unit's wanted move for the turn.
type Desire struct {
	Unit     int
	From     grid.Position
	Dir      grid.Direction
	Strategy Strategy
	Cargo    int
}

type Command struct {
	Unit    int
	From    grid.Position
	To      grid.Position
	Dir     grid.Direction
	Outcome Outcome
}

// Blocked reports whether the unit ended somewhere other than it asked for.
func (c Command) Blocked() bool {
	switch c.Outcome {
	case OutcomeRerouted, OutcomeWaited, OutcomeUnwound:
		return true
	}
	return false
}

// Collision is a deferred claim, alive for one resolution pass.
type Collision struct {
	Unit     int
	Blocker  int
	Dir      grid.Direction
	Target   grid.Position
	Strategy Strategy
}

type Result struct {
	// Commands is parallel to the input desires.
	Commands   []Command
	Collisions []Collision
	// UnwindSteps counts units forced back onto their origin cell.
	UnwindSteps int
}

// Validate checks that no two units end the turn on the same cell.
func (r Result) Validate() error {
	seen := make(map[grid.Position]int, len(r.Commands))
	for _, c := range r.Commands {
		if other, ok := seen[c.To]; ok {
			return fmt.Errorf("units %d and %d both finalized onto %v", other, c.Unit, c.To)
		}
		seen[c.To] = c.Unit
	}
	return nil
}

func (r Result) ByUnit() map[int]Command {
	out := make(map[int]Command, len(r.Commands))
	for _, c := range r.Commands {
		out[c.Unit] = c
	}
	return out
}
