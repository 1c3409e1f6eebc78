package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const dbUsage = "usage: admin db [-data ./data|-db PATH] [-game GAME] [-limit N] games|turns|trips|lost|meta"

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default <data>/index.db)")
	game := fs.String("game", "", "game id (required except for games)")
	limit := fs.Int("limit", 50, "result limit")
	_ = fs.Parse(args)

	q := "games"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index.db")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runQuery(db, q, strings.TrimSpace(*game), *limit, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

type gameRow struct {
	Game  string `json:"game"`
	Turns int    `json:"turns"`
	Last  int    `json:"last_turn"`
	Trips int    `json:"trips"`
	Lost  int    `json:"lost"`
}

type turnRow struct {
	Turn       int    `json:"turn"`
	Digest     string `json:"digest"`
	Bank       int    `json:"bank"`
	Ships      int    `json:"ships"`
	Collisions int    `json:"collisions"`
	Unwinds    int    `json:"unwinds"`
	NoFuel     int    `json:"no_fuel"`
	Fallbacks  int    `json:"fallbacks"`
	Degraded   bool   `json:"degraded"`
}

type tripRow struct {
	Turn  int `json:"turn"`
	Unit  int `json:"unit"`
	Trip  int `json:"trip"`
	Turns int `json:"turns"`
}

type lostRow struct {
	Turn   int    `json:"turn"`
	Unit   int    `json:"unit"`
	Status string `json:"status"`
	Trips  int    `json:"trips"`
	Code   string `json:"code"`
}

type metaRow struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// runQuery prints one JSON object per row.
func runQuery(db *sql.DB, q, game string, limit int, w io.Writer) error {
	if limit <= 0 {
		limit = 50
	}
	if q != "games" && game == "" {
		return fmt.Errorf("missing -game\n%s", dbUsage)
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	var (
		rows *sql.Rows
		err  error
	)
	switch q {
	case "games":
		rows, err = db.Query(`SELECT t.game, COUNT(*), MAX(t.turn),
			(SELECT COUNT(*) FROM trips r WHERE r.game=t.game),
			(SELECT COUNT(*) FROM lost_units l WHERE l.game=t.game)
			FROM turns t GROUP BY t.game ORDER BY t.game LIMIT ?`, limit)
	case "turns":
		rows, err = db.Query(`SELECT turn,digest,bank,ships,collisions,unwinds,no_fuel,fallbacks,degraded FROM turns WHERE game=? ORDER BY turn DESC LIMIT ?`, game, limit)
	case "trips":
		rows, err = db.Query(`SELECT turn,unit,trip,turns FROM trips WHERE game=? ORDER BY turn, unit LIMIT ?`, game, limit)
	case "lost":
		rows, err = db.Query(`SELECT turn,unit,status,trips,code FROM lost_units WHERE game=? ORDER BY turn, unit LIMIT ?`, game, limit)
	case "meta":
		rows, err = db.Query(`SELECT key,value FROM meta WHERE game=? ORDER BY key LIMIT ?`, game, limit)
	default:
		return fmt.Errorf("unknown query: %s\n%s", q, dbUsage)
	}
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v any
		switch q {
		case "games":
			var r gameRow
			err = rows.Scan(&r.Game, &r.Turns, &r.Last, &r.Trips, &r.Lost)
			v = r
		case "turns":
			var r turnRow
			err = rows.Scan(&r.Turn, &r.Digest, &r.Bank, &r.Ships, &r.Collisions, &r.Unwinds, &r.NoFuel, &r.Fallbacks, &r.Degraded)
			v = r
		case "trips":
			var r tripRow
			err = rows.Scan(&r.Turn, &r.Unit, &r.Trip, &r.Turns)
			v = r
		case "lost":
			var r lostRow
			err = rows.Scan(&r.Turn, &r.Unit, &r.Status, &r.Trips, &r.Code)
			v = r
		case "meta":
			var r metaRow
			err = rows.Scan(&r.Key, &r.Value)
			v = r
		}
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if err := enc.Encode(v); err != nil {
			return err
		}
	}
	return rows.Err()
}
