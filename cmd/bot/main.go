package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"halitebot.ai/internal/persistence/indexdb"
	persistlog "halitebot.ai/internal/persistence/log"
	"halitebot.ai/internal/protocol"
	"halitebot.ai/internal/sim/tuning"
	"halitebot.ai/internal/sim/turn"
	"halitebot.ai/internal/transport/observer"
)

type options struct {
	TuningPath   string
	LogPath      string
	DataDir      string
	Name         string
	DisableTrace bool
	DisableDB    bool
	ObserverAddr string
}

func main() {
	var (
		tuningPath   = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml (defaults when missing)")
		logPath      = flag.String("log", "", "log file (default bot-<id>.log, - for stderr)")
		dataDir      = flag.String("data", "./data", "runtime data directory (traces, index)")
		name         = flag.String("name", "", "bot name sent to the engine (overrides tuning)")
		disableTrace = flag.Bool("disable_trace", false, "disable the zstd decision trace")
		disableDB    = flag.Bool("disable_db", false, "disable the sqlite turn index")
		observerAddr = flag.String("observer", "", "observer websocket listen address, e.g. 127.0.0.1:8091 (empty to disable)")
	)
	flag.Parse()

	// stdout belongs to the engine protocol.
	logger := log.New(os.Stderr, "[bot] ", log.LstdFlags|log.Lmicroseconds)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := options{
		TuningPath:   strings.TrimSpace(*tuningPath),
		LogPath:      strings.TrimSpace(*logPath),
		DataDir:      *dataDir,
		Name:         strings.TrimSpace(*name),
		DisableTrace: *disableTrace,
		DisableDB:    *disableDB,
		ObserverAddr: strings.TrimSpace(*observerAddr),
	}
	if err := run(ctx, opts, os.Stdin, os.Stdout, logger); err != nil {
		logger.Fatalf("bot: %v", err)
	}
}

func loadTuning(path string, logger *log.Logger) (tuning.Tuning, error) {
	if path == "" {
		return tuning.Defaults(), nil
	}
	tu, err := tuning.Load(path)
	if os.IsNotExist(err) {
		logger.Printf("tuning not found (%s); using defaults", path)
		return tuning.Defaults(), nil
	}
	return tu, err
}

// run plays one game over in/out. It returns nil when the engine closes the
// stream.
func run(ctx context.Context, opts options, in io.Reader, out io.Writer, logger *log.Logger) error {
	tu, err := loadTuning(opts.TuningPath, logger)
	if err != nil {
		return fmt.Errorf("load tuning: %w", err)
	}
	if opts.Name != "" {
		tu.BotName = opts.Name
	}

	r := protocol.NewReader(in)
	w := protocol.NewWriter(out)
	game, err := r.ReadGame()
	if err != nil {
		return fmt.Errorf("%s: %w", protocol.ErrProtoBadFrame, err)
	}

	switch opts.LogPath {
	case "-":
	case "":
		opts.LogPath = fmt.Sprintf("bot-%d.log", game.Me)
		fallthrough
	default:
		f, err := os.OpenFile(opts.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log: %w", err)
		}
		defer f.Close()
		logger.SetOutput(f)
	}

	gameID := fmt.Sprintf("%d-p%d", game.Constants.GameSeed, game.Me)
	logger.Printf("game %s: %dx%d, %d players, %d turns, tuning %s", gameID, game.Width, game.Height, len(game.Players), game.Constants.MaxTurns, tu.BotName)

	var trace *persistlog.TraceLogger
	if !opts.DisableTrace {
		trace = persistlog.NewTraceLogger(filepath.Join(opts.DataDir, "traces", gameID), 0)
		defer trace.Close()
		if err := trace.WriteGame(game, tu); err != nil {
			logger.Printf("trace: %v", err)
		}
	}

	// Optional read model; never affects the commands sent.
	var idx *indexdb.SQLiteIndex
	if !opts.DisableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(opts.DataDir, "index.db"), gameID)
		if err != nil {
			logger.Printf("index disabled: %v", err)
			idx = nil
		} else {
			defer idx.Close()
			defer func() {
				st := idx.Stats()
				logger.Printf("index: %d turns dropped, queue %d/%d at exit", st.DropTurnTotal, st.QueueDepth, st.QueueCapacity)
			}()
			if err := idx.RecordTuning(tu); err != nil {
				logger.Printf("index: record tuning: %v", err)
			}
		}
	}

	var obs *observer.Server
	if opts.ObserverAddr != "" {
		obs = observer.NewServer(observer.Info{
			Bot:      tu.BotName,
			Me:       game.Me,
			Width:    game.Width,
			Height:   game.Height,
			MaxTurns: game.Constants.MaxTurns,
		}, logger)
		srv := &http.Server{Addr: opts.ObserverAddr, Handler: obs.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("observer: %v", err)
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
		defer func() {
			logger.Printf("observer: %d sessions, %d messages dropped", obs.Sessions(), obs.Dropped())
		}()
		logger.Printf("observer listening on %s", opts.ObserverAddr)
	}

	eng := turn.NewEngine(tu, game, logger)
	if err := w.Ready(tu.BotName); err != nil {
		return fmt.Errorf("ready: %w", err)
	}

	budget := time.Duration(tu.TurnBudgetMs) * time.Millisecond
	for {
		if ctx.Err() != nil {
			return nil
		}
		f, err := r.ReadFrame(len(game.Players))
		if errors.Is(err, protocol.ErrClosed) {
			logger.Printf("%s: engine closed the stream, game over", protocol.ErrProtoClosed)
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", protocol.ErrProtoBadFrame, err)
		}

		tctx, cancel := context.WithTimeout(ctx, budget)
		start := time.Now()
		rec, err := eng.PlayTurn(tctx, f)
		cancel()
		if err != nil {
			return fmt.Errorf("%s: %w", protocol.ErrInternal, err)
		}
		if err := w.Commands(rec.Commands); err != nil {
			return fmt.Errorf("send commands: %w", err)
		}
		if rec.Degraded {
			logger.Printf("turn %d: %s after %v", rec.Turn, protocol.ErrDeadline, time.Since(start))
		}

		if trace != nil {
			if err := trace.WriteTurn(f, rec); err != nil {
				logger.Printf("trace: %v", err)
			}
		}
		idx.WriteTurn(rec)
		if obs != nil {
			obs.UpdateMap(eng.C.Grid.HaliteLayer())
			obs.Publish(rec)
		}
	}
}
