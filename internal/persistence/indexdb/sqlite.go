package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"halitebot.ai/internal/sim/tuning"
	"halitebot.ai/internal/sim/turn"
)

// SQLiteIndex is a queryable read model of finished turns. Writes are queued
// to a single writer goroutine and dropped when it falls behind; the trace
// stays the source of truth.
type SQLiteIndex struct {
	db   *sql.DB
	game string

	ch   chan turn.Record
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
}

type Stats struct {
	QueueDepth    int
	QueueCapacity int
	DropTurnTotal uint64
}

// OpenSQLite opens (or creates) the index at path. game keys every row so
// several games can share one file.
func OpenSQLite(path, game string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if game == "" {
		return nil, fmt.Errorf("empty game id")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:   db,
		game: game,
		ch:   make(chan turn.Record, 1024),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			game TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (game, key)
		);`,
		`CREATE TABLE IF NOT EXISTS turns (
			game TEXT NOT NULL,
			turn INTEGER NOT NULL,
			digest TEXT NOT NULL,
			bank INTEGER NOT NULL,
			ships INTEGER NOT NULL,
			hotspots INTEGER NOT NULL,
			collisions INTEGER NOT NULL,
			unwinds INTEGER NOT NULL,
			no_fuel INTEGER NOT NULL,
			fallbacks INTEGER NOT NULL,
			spawned INTEGER NOT NULL,
			degraded INTEGER NOT NULL,
			statuses_json TEXT NOT NULL,
			PRIMARY KEY (game, turn)
		);`,
		`CREATE TABLE IF NOT EXISTS trips (
			game TEXT NOT NULL,
			turn INTEGER NOT NULL,
			unit INTEGER NOT NULL,
			trip INTEGER NOT NULL,
			turns INTEGER NOT NULL,
			PRIMARY KEY (game, unit, trip)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trips_turn ON trips(game, turn);`,
		`CREATE TABLE IF NOT EXISTS lost_units (
			game TEXT NOT NULL,
			turn INTEGER NOT NULL,
			unit INTEGER NOT NULL,
			status TEXT NOT NULL,
			trips INTEGER NOT NULL,
			code TEXT NOT NULL,
			PRIMARY KEY (game, unit)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropTurnTotal: s.dropped.Load(),
	}
}

// WriteTurn queues a finished turn. It never blocks.
func (s *SQLiteIndex) WriteTurn(rec turn.Record) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- rec:
	default:
		s.dropped.Add(1)
	}
}

// RecordTuning stores the tuning actually applied, with its digest.
func (s *SQLiteIndex) RecordTuning(tu tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tu)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO meta(game,key,value) VALUES(?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, kv := range [][2]string{
		{"schema_version", "1"},
		{"tuning", string(b)},
		{"tuning_digest", hex.EncodeToString(sum[:])},
		{"started_at", now},
	} {
		if _, err := stmt.Exec(s.game, kv[0], kv[1]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTurn, _ := s.db.Prepare(`INSERT OR REPLACE INTO turns(game,turn,digest,bank,ships,hotspots,collisions,unwinds,no_fuel,fallbacks,spawned,degraded,statuses_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertTrip, _ := s.db.Prepare(`INSERT OR REPLACE INTO trips(game,turn,unit,trip,turns) VALUES(?,?,?,?,?)`)
	insertLost, _ := s.db.Prepare(`INSERT OR REPLACE INTO lost_units(game,turn,unit,status,trips,code) VALUES(?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTurn, insertTrip, insertLost} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil || tx == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		statuses, _ := json.Marshal(r.Statuses)
		if !exec(insertTurn, s.game, r.Turn, r.Digest, r.Bank, r.Ships, r.Hotspots,
			r.Collisions, r.Unwinds, r.NoFuel, r.Fallbacks,
			boolInt(r.Spawned), boolInt(r.Degraded), string(statuses)) {
			continue
		}
		for _, tr := range r.Trips {
			if !exec(insertTrip, s.game, r.Turn, tr.Unit, tr.Trip, tr.Turns) {
				break
			}
		}
		for _, l := range r.Lost {
			if !exec(insertLost, s.game, r.Turn, l.Unit, l.Status, l.Trips, l.Code) {
				break
			}
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
