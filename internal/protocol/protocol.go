package protocol

import (
	"encoding/json"
	"fmt"
)

// Command tokens.
const (
	CmdMove  = "m"
	CmdSpawn = "g"
)

// Constants is the subset of the engine's first handshake line the bot
// reads. Unknown keys are ignored.
type Constants struct {
	MaxHalite     int     `json:"MAX_ENERGY"`
	ShipCost      int     `json:"NEW_ENTITY_ENERGY_COST"`
	DropoffCost   int     `json:"DROPOFF_COST"`
	MaxTurns      int     `json:"MAX_TURNS"`
	MoveCostRatio float64 `json:"MOVE_COST_RATIO"`
	ExtractRatio  float64 `json:"EXTRACT_RATIO"`
	GameSeed      int64   `json:"game_seed"`
}

// BurnRate converts the engine's inverse move cost ratio into the fraction
// of a cell's halite spent to leave it. Zero when the engine did not say.
func (c Constants) BurnRate() float64 {
	if c.MoveCostRatio <= 0 {
		return 0
	}
	return 1 / c.MoveCostRatio
}

func DecodeConstants(b []byte) (Constants, error) {
	var c Constants
	if err := json.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("constants: %w", err)
	}
	return c, nil
}
