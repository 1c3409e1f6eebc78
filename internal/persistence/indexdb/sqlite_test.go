package indexdb

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"halitebot.ai/internal/protocol"
	"halitebot.ai/internal/sim/tuning"
	"halitebot.ai/internal/sim/turn"
)

func TestSQLiteIndex_WritesTurnsTripsAndLostUnits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path, "g1")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.RecordTuning(tuning.Defaults()); err != nil {
		t.Fatalf("RecordTuning: %v", err)
	}
	idx.WriteTurn(turn.Record{Turn: 1, Digest: "aa", Bank: 5000, Spawned: true, Statuses: map[string]int{}})
	idx.WriteTurn(turn.Record{
		Turn:     30,
		Digest:   "bb",
		Ships:    2,
		Unwinds:  3,
		Trips:    []turn.TripTrace{{Unit: 4, Turns: 28, Trip: 1}},
		Lost:     []turn.LostTrace{{Unit: 7, Status: "returning", Trips: 2, Code: protocol.ErrLostUnit}},
		Statuses: map[string]int{"mining": 2},
	})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM turns WHERE game='g1'`).Scan(&n); err != nil || n != 2 {
		t.Fatalf("turns=%d err=%v", n, err)
	}
	var (
		digest   string
		unwinds  int
		spawned  int
		statuses string
	)
	row := db.QueryRow(`SELECT digest,unwinds,spawned,statuses_json FROM turns WHERE game='g1' AND turn=30`)
	if err := row.Scan(&digest, &unwinds, &spawned, &statuses); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if digest != "bb" || unwinds != 3 || spawned != 0 || statuses != `{"mining":2}` {
		t.Fatalf("row mismatch: %s %d %d %s", digest, unwinds, spawned, statuses)
	}

	var tripTurns int
	if err := db.QueryRow(`SELECT turns FROM trips WHERE game='g1' AND unit=4 AND trip=1`).Scan(&tripTurns); err != nil || tripTurns != 28 {
		t.Fatalf("trip turns=%d err=%v", tripTurns, err)
	}
	var status, code string
	if err := db.QueryRow(`SELECT status,code FROM lost_units WHERE game='g1' AND unit=7`).Scan(&status, &code); err != nil {
		t.Fatalf("lost: %v", err)
	}
	if status != "returning" || code != protocol.ErrLostUnit {
		t.Fatalf("lost row: %s %s", status, code)
	}
	var tuningJSON string
	if err := db.QueryRow(`SELECT value FROM meta WHERE game='g1' AND key='tuning'`).Scan(&tuningJSON); err != nil || tuningJSON == "" {
		t.Fatalf("tuning meta: %q %v", tuningJSON, err)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan turn.Record, 1)}
	s.WriteTurn(turn.Record{Turn: 1})
	s.WriteTurn(turn.Record{Turn: 2})
	s.WriteTurn(turn.Record{Turn: 3})

	st := s.Stats()
	if st.DropTurnTotal != 2 {
		t.Fatalf("DropTurnTotal=%d want=2", st.DropTurnTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_NilIsNoop(t *testing.T) {
	var s *SQLiteIndex
	s.WriteTurn(turn.Record{Turn: 1})
	if err := s.RecordTuning(tuning.Defaults()); err != nil {
		t.Fatalf("RecordTuning: %v", err)
	}
	if s.Stats() != (Stats{}) {
		t.Fatalf("stats=%+v", s.Stats())
	}
}

func TestOpenSQLiteRejectsEmptyArgs(t *testing.T) {
	if _, err := OpenSQLite("", "g"); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if _, err := OpenSQLite(filepath.Join(t.TempDir(), "x.db"), ""); err == nil {
		t.Fatalf("expected error for empty game")
	}
}
