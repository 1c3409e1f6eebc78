package tuning

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed tuning.schema.json
var schemaJSON string

const schemaURL = "mem://tuning.schema.json"

type Tuning struct {
	BotName string `yaml:"bot_name" json:"bot_name"`
	Seed    int64  `yaml:"seed" json:"seed"`

	// Engine fallbacks, overridden by the constants line of the handshake.
	BurnRate float64 `yaml:"burn_rate" json:"burn_rate"`
	Capacity int     `yaml:"capacity" json:"capacity"`
	ShipCost int     `yaml:"ship_cost" json:"ship_cost"`

	Fleet   Fleet   `yaml:"fleet" json:"fleet"`
	Targets Targets `yaml:"targets" json:"targets"`
	Spawn   Spawn   `yaml:"spawn" json:"spawn"`

	TurnBudgetMs int `yaml:"turn_budget_ms" json:"turn_budget_ms"`
}

type Fleet struct {
	ReturnThreshold int `yaml:"return_threshold" json:"return_threshold"`
	MiningThreshold int `yaml:"mining_threshold" json:"mining_threshold"`
	LaneOffset      int `yaml:"lane_offset" json:"lane_offset"`
	DockRadius      int `yaml:"dock_radius" json:"dock_radius"`
}

type Targets struct {
	DistanceWeight  float64 `yaml:"distance_weight" json:"distance_weight"`
	HotspotFraction float64 `yaml:"hotspot_fraction" json:"hotspot_fraction"`
}

type Spawn struct {
	MaxShips int `yaml:"max_ships" json:"max_ships"`
	// StopFraction of the game after which no more ships are built.
	StopFraction float64 `yaml:"stop_fraction" json:"stop_fraction"`
}

func Defaults() Tuning {
	return Tuning{
		BotName:  "tidewater",
		Seed:     1337,
		BurnRate: 0.1,
		Capacity: 1000,
		ShipCost: 1000,
		Fleet: Fleet{
			ReturnThreshold: 950,
			MiningThreshold: 50,
			LaneOffset:      1,
			DockRadius:      6,
		},
		Targets: Targets{
			DistanceWeight:  10,
			HotspotFraction: 0.6,
		},
		Spawn: Spawn{
			MaxShips:     40,
			StopFraction: 0.55,
		},
		TurnBudgetMs: 1500,
	}
}

// Load reads a tuning yaml on top of Defaults. The raw document is checked
// against the embedded schema before decoding.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := validateSchema(raw); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case strings.TrimSpace(t.BotName) == "":
		return fmt.Errorf("bot_name is empty")
	case t.BurnRate < 0 || t.BurnRate >= 1:
		return fmt.Errorf("burn_rate %v out of [0,1)", t.BurnRate)
	case t.Capacity <= 0:
		return fmt.Errorf("capacity must be positive")
	case t.Fleet.ReturnThreshold > t.Capacity:
		return fmt.Errorf("return_threshold %d exceeds capacity %d", t.Fleet.ReturnThreshold, t.Capacity)
	case t.Targets.HotspotFraction < 0 || t.Targets.HotspotFraction >= 1:
		return fmt.Errorf("hotspot_fraction %v out of [0,1)", t.Targets.HotspotFraction)
	}
	return nil
}

var compiled *jsonschema.Schema

func schema() (*jsonschema.Schema, error) {
	if compiled != nil {
		return compiled, nil
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	s, err := c.Compile(schemaURL)
	if err != nil {
		return nil, err
	}
	compiled = s
	return s, nil
}

func validateSchema(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	// Round-trip through JSON so the validator sees JSON types only.
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	s, err := schema()
	if err != nil {
		return err
	}
	return s.Validate(v)
}
