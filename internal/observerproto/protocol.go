package observerproto

import "halitebot.ai/internal/sim/turn"

// Version is the observer protocol version (separate from the engine protocol).
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeTurn      = "TURN"
)

// Client -> Server. First message on the observer WS connection, and can be
// re-sent to change settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// Units asks for per-unit decisions in every TURN message.
	Units bool `json:"units,omitempty"`
}

// HTTP response for GET /observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string `json:"protocol_version"`
	Bot             string `json:"bot"`
	Me              int    `json:"me"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	MaxTurns        int    `json:"max_turns"`
	Turn            int    `json:"turn"`
	// HaliteRLE is the latest halite map, row-major, see encoding.EncodeRLE.
	HaliteRLE string `json:"halite_rle,omitempty"`
}

// Server -> Client. Sent after every played turn.
type TurnMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Turn            int    `json:"turn"`

	Bank       int            `json:"bank"`
	Ships      int            `json:"ships"`
	Hotspots   int            `json:"hotspots"`
	Assigned   int            `json:"assigned"`
	Collisions int            `json:"collisions"`
	Unwinds    int            `json:"unwinds"`
	NoFuel     int            `json:"no_fuel"`
	Spawned    bool           `json:"spawned"`
	Degraded   bool           `json:"degraded,omitempty"`
	Statuses   map[string]int `json:"statuses,omitempty"`

	Trips []turn.TripTrace `json:"trips,omitempty"`
	Lost  []turn.LostTrace `json:"lost,omitempty"`
	Units []turn.UnitTrace `json:"units,omitempty"`
}

func NewTurnMsg(rec turn.Record, withUnits bool) TurnMsg {
	m := TurnMsg{
		Type:            TypeTurn,
		ProtocolVersion: Version,
		Turn:            rec.Turn,
		Bank:            rec.Bank,
		Ships:           rec.Ships,
		Hotspots:        rec.Hotspots,
		Assigned:        rec.Assigned,
		Collisions:      rec.Collisions,
		Unwinds:         rec.Unwinds,
		NoFuel:          rec.NoFuel,
		Spawned:         rec.Spawned,
		Degraded:        rec.Degraded,
		Statuses:        rec.Statuses,
		Trips:           rec.Trips,
		Lost:            rec.Lost,
	}
	if withUnits {
		m.Units = rec.Units
	}
	return m
}
