package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"halitebot.ai/internal/persistence/indexdb"
	"halitebot.ai/internal/protocol"
	"halitebot.ai/internal/sim/turn"
)

func seedIndex(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := indexdb.OpenSQLite(path, "7-p0")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	idx.WriteTurn(turn.Record{Turn: 1, Digest: "a"})
	idx.WriteTurn(turn.Record{Turn: 2, Digest: "b", Unwinds: 4, Degraded: true,
		Trips: []turn.TripTrace{{Unit: 1, Turns: 20, Trip: 1}},
		Lost:  []turn.LostTrace{{Unit: 3, Status: "mining", Code: protocol.ErrLostUnit}},
	})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunQueryGames(t *testing.T) {
	db := seedIndex(t)
	var out bytes.Buffer
	if err := runQuery(db, "games", "", 0, &out); err != nil {
		t.Fatalf("runQuery: %v", err)
	}
	var g gameRow
	if err := json.Unmarshal(out.Bytes(), &g); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	if g != (gameRow{Game: "7-p0", Turns: 2, Last: 2, Trips: 1, Lost: 1}) {
		t.Fatalf("games=%+v", g)
	}
}

func TestRunQueryTurnsNewestFirst(t *testing.T) {
	db := seedIndex(t)
	var out bytes.Buffer
	if err := runQuery(db, "turns", "7-p0", 10, &out); err != nil {
		t.Fatalf("runQuery: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines=%q", lines)
	}
	var first turnRow
	_ = json.Unmarshal([]byte(lines[0]), &first)
	if first.Turn != 2 || first.Unwinds != 4 || !first.Degraded {
		t.Fatalf("first=%+v", first)
	}
}

func TestRunQueryLostAndErrors(t *testing.T) {
	db := seedIndex(t)
	var out bytes.Buffer
	if err := runQuery(db, "lost", "7-p0", 10, &out); err != nil {
		t.Fatalf("runQuery: %v", err)
	}
	if !strings.Contains(out.String(), protocol.ErrLostUnit) {
		t.Fatalf("out=%q", out.String())
	}
	if err := runQuery(db, "trips", "", 10, &out); err == nil {
		t.Fatalf("expected missing game error")
	}
	if err := runQuery(db, "boards", "7-p0", 10, &out); err == nil {
		t.Fatalf("expected unknown query error")
	}
}
