package turn

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"halitebot.ai/internal/sim/grid"
)

// UnitTrace is one unit's decision for the turn.
type UnitTrace struct {
	ID       int            `json:"id"`
	Status   string         `json:"status"`
	Cargo    int            `json:"cargo"`
	From     grid.Position  `json:"from"`
	To       grid.Position  `json:"to"`
	Want     grid.Direction `json:"want"`
	Dir      grid.Direction `json:"dir"`
	Strategy string         `json:"strategy"`
	Outcome  string         `json:"outcome"`
	Code     string         `json:"code,omitempty"`
}

type TripTrace struct {
	Unit  int `json:"unit"`
	Turns int `json:"turns"`
	Trip  int `json:"trip"`
}

type LostTrace struct {
	Unit   int    `json:"unit"`
	Status string `json:"status"`
	Trips  int    `json:"trips"`
	Code   string `json:"code"`
}

// Record summarizes one played turn. It is handed by value to the trace,
// index and observer collaborators.
type Record struct {
	Turn     int      `json:"turn"`
	Bank     int      `json:"bank"`
	Ships    int      `json:"ships"`
	Hotspots int      `json:"hotspots"`
	Assigned int      `json:"assigned"`
	Commands []string `json:"commands"`
	Spawned  bool     `json:"spawned"`

	Units      []UnitTrace    `json:"units,omitempty"`
	Trips      []TripTrace    `json:"trips,omitempty"`
	Lost       []LostTrace    `json:"lost,omitempty"`
	Statuses   map[string]int `json:"statuses,omitempty"`
	Collisions int            `json:"collisions"`
	Unwinds    int            `json:"unwinds"`
	NoFuel     int            `json:"no_fuel"`
	Fallbacks  int            `json:"fallbacks"`
	// Degraded is set when the turn budget ran out before every unit planned.
	Degraded bool `json:"degraded,omitempty"`

	Digest string `json:"digest"`
}

// CommandDigest hashes a command line; replay compares these.
func CommandDigest(cmds []string) string {
	h := sha256.Sum256([]byte(strings.Join(cmds, " ")))
	return hex.EncodeToString(h[:8])
}
