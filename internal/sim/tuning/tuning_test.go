package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoadOverlaysDefaults(t *testing.T) {
	p := writeFile(t, `
bot_name: lanes
fleet:
  lane_offset: 2
targets:
  hotspot_fraction: 0.75
`)
	tu, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.BotName != "lanes" || tu.Fleet.LaneOffset != 2 || tu.Targets.HotspotFraction != 0.75 {
		t.Fatalf("overrides not applied: %+v", tu)
	}
	d := Defaults()
	if tu.Fleet.ReturnThreshold != d.Fleet.ReturnThreshold || tu.Capacity != d.Capacity {
		t.Fatalf("defaults lost: %+v", tu)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	p := writeFile(t, "fleet:\n  lane_ofset: 2\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected schema error for misspelled key")
	}
}

func TestLoadRejectsOutOfRange(t *testing.T) {
	p := writeFile(t, "burn_rate: 1.5\n")
	_, err := Load(p)
	if err == nil || !strings.Contains(err.Error(), "tuning.yaml") {
		t.Fatalf("err=%v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestValidateThresholdAboveCapacity(t *testing.T) {
	tu := Defaults()
	tu.Fleet.ReturnThreshold = tu.Capacity + 1
	if err := tu.Validate(); err == nil {
		t.Fatalf("expected error")
	}
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}
