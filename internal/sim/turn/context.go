package turn

import (
	"log"

	"halitebot.ai/internal/protocol"
	"halitebot.ai/internal/sim/fleet"
	"halitebot.ai/internal/sim/grid"
	"halitebot.ai/internal/sim/path"
	"halitebot.ai/internal/sim/resolve"
	"halitebot.ai/internal/sim/targets"
	"halitebot.ai/internal/sim/tuning"
)

// Context is the engine state that outlives a single turn. One per game.
type Context struct {
	Me       int
	Players  int
	MaxTurns int
	ShipCost int
	Seed     int64

	Shipyard grid.Position
	Bases    []grid.Position

	Grid     *grid.Grid
	Planner  *path.Planner
	Table    *fleet.Table
	Targets  *targets.Pool
	Machine  *fleet.Machine
	Resolver *resolve.Resolver

	Spawn tuning.Spawn
	Log   *log.Logger
}

// NewContext builds the per-game state from the handshake. Engine constants
// take precedence over the tuning fallbacks.
func NewContext(tu tuning.Tuning, game protocol.Game, logger *log.Logger) *Context {
	burn := tu.BurnRate
	if b := game.Constants.BurnRate(); b > 0 {
		burn = b
	}
	capacity := tu.Capacity
	if game.Constants.MaxHalite > 0 {
		capacity = game.Constants.MaxHalite
	}
	shipCost := tu.ShipCost
	if game.Constants.ShipCost > 0 {
		shipCost = game.Constants.ShipCost
	}

	g := grid.New(game.Width, game.Height, burn)
	for y, row := range game.Halite {
		for x, h := range row {
			g.SetHalite(grid.Position{X: x, Y: y}, h)
		}
	}
	c := &Context{
		Me:       game.Me,
		Players:  len(game.Players),
		MaxTurns: game.Constants.MaxTurns,
		ShipCost: shipCost,
		Seed:     tu.Seed,
		Grid:     g,
		Planner:  path.NewPlanner(g),
		Table:    fleet.NewTable(),
		Targets: targets.NewPool(targets.Config{
			DistanceWeight:  tu.Targets.DistanceWeight,
			HotspotFraction: tu.Targets.HotspotFraction,
		}),
		Machine: fleet.NewMachine(fleet.Config{
			Capacity:        capacity,
			ReturnThreshold: tu.Fleet.ReturnThreshold,
			MiningThreshold: tu.Fleet.MiningThreshold,
			LaneOffset:      tu.Fleet.LaneOffset,
			DockRadius:      tu.Fleet.DockRadius,
		}),
		Resolver: &resolve.Resolver{Me: game.Me, Log: logger},
		Spawn:    tu.Spawn,
		Log:      logger,
	}
	for _, p := range game.Players {
		g.SetStructure(p.Shipyard, grid.Structure{Kind: grid.StructureShipyard, Owner: p.ID})
		if p.ID == game.Me {
			c.Shipyard = g.Normalize(p.Shipyard)
		}
	}
	c.Bases = []grid.Position{c.Shipyard}
	return c
}

func (c *Context) logf(format string, args ...any) {
	if c.Log != nil {
		c.Log.Printf(format, args...)
	}
}
