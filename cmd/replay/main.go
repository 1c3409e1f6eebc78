package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"

	persistlog "halitebot.ai/internal/persistence/log"
	"halitebot.ai/internal/sim/tuning"
	"halitebot.ai/internal/sim/turn"
)

func main() {
	var (
		traceDir = flag.String("trace", "", "trace dir containing trace-*.jsonl.zst")
		fromTurn = flag.Int("from_turn", 0, "start verifying from turn (inclusive, optional)")
		toTurn   = flag.Int("to_turn", 0, "stop at turn (inclusive, optional)")
		verbose  = flag.Bool("v", false, "print every verified turn")
		watch    = flag.Bool("view", false, "draw the recorded game in the terminal instead of verifying")
		delayMs  = flag.Int("delay_ms", 150, "per-turn delay for -view")
	)
	flag.Parse()

	if *traceDir == "" {
		fmt.Fprintln(os.Stderr, "missing -trace")
		os.Exit(2)
	}
	if *watch {
		if err := runView(*traceDir, *fromTurn, time.Duration(*delayMs)*time.Millisecond); err != nil {
			fmt.Fprintln(os.Stderr, "view:", err)
			os.Exit(1)
		}
		return
	}
	var out io.Writer = io.Discard
	if *verbose {
		out = os.Stdout
	}
	st, err := replayDir(*traceDir, *fromTurn, *toTurn, out)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: games=%d checked=%d turns", st.Games, st.Checked)
	if st.StoppedAt > 0 {
		fmt.Printf(" (stopped at degraded turn %d)", st.StoppedAt)
	}
	fmt.Println()
}

func runView(dir string, fromTurn int, delay time.Duration) error {
	s, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := s.Init(); err != nil {
		return err
	}
	defer s.Fini()
	return viewDir(s, dir, fromTurn, delay)
}

type stats struct {
	Games   int
	Checked int
	// StoppedAt is the first turn that ran out of budget while recording;
	// later turns cannot be reproduced.
	StoppedAt int
}

// replayDir feeds every recorded frame back through a fresh engine and
// compares command digests.
func replayDir(dir string, fromTurn, toTurn int, out io.Writer) (stats, error) {
	var (
		st     stats
		eng    *turn.Engine
		halted bool
	)
	err := persistlog.ReadTrace(dir, func(e persistlog.Entry) error {
		switch e.Kind {
		case persistlog.KindGame:
			if e.Game == nil {
				return fmt.Errorf("game entry without handshake")
			}
			tu := tuning.Defaults()
			if e.Tuning != nil {
				tu = *e.Tuning
			}
			eng = turn.NewEngine(tu, *e.Game, nil)
			halted = false
			st.Games++
			return nil
		case persistlog.KindTurn:
		default:
			return fmt.Errorf("unknown entry kind %q", e.Kind)
		}
		if eng == nil {
			return fmt.Errorf("turn entry before game entry")
		}
		if halted || e.Frame == nil || e.Turn == nil {
			return nil
		}
		if toTurn != 0 && e.Frame.Turn > toTurn {
			halted = true
			return nil
		}
		rec, err := eng.PlayTurn(context.Background(), *e.Frame)
		if err != nil {
			return fmt.Errorf("turn %d: %w", e.Frame.Turn, err)
		}
		if e.Turn.Degraded {
			st.StoppedAt = e.Turn.Turn
			halted = true
			return nil
		}
		if e.Frame.Turn < fromTurn {
			return nil
		}
		st.Checked++
		if rec.Digest != e.Turn.Digest {
			return fmt.Errorf("digest mismatch at turn %d: got=%s want=%s (got %q)", rec.Turn, rec.Digest, e.Turn.Digest, rec.Commands)
		}
		fmt.Fprintf(out, "turn %d ok %s\n", rec.Turn, rec.Digest)
		return nil
	})
	return st, err
}
