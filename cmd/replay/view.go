package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"

	persistlog "halitebot.ai/internal/persistence/log"
	"halitebot.ai/internal/view"
)

var errQuit = errors.New("quit")

// viewDir plays the recorded turns onto s, one every delay. q or Esc quits;
// space pauses.
func viewDir(s tcell.Screen, dir string, fromTurn int, delay time.Duration) error {
	keys := make(chan rune, 8)
	go func() {
		for {
			switch ev := s.PollEvent().(type) {
			case nil:
				close(keys)
				return
			case *tcell.EventKey:
				switch {
				case ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC:
					keys <- 'q'
				case ev.Key() == tcell.KeyRune:
					keys <- ev.Rune()
				}
			case *tcell.EventResize:
				s.Sync()
			}
		}
	}()

	var (
		b         *view.Board
		maxHalite int
		paused    bool
	)
	err := persistlog.ReadTrace(dir, func(e persistlog.Entry) error {
		switch e.Kind {
		case persistlog.KindGame:
			if e.Game == nil {
				return fmt.Errorf("game entry without handshake")
			}
			b = view.NewBoard(*e.Game)
			maxHalite = e.Game.Constants.MaxHalite
			return nil
		case persistlog.KindTurn:
		default:
			return fmt.Errorf("unknown entry kind %q", e.Kind)
		}
		if b == nil {
			return fmt.Errorf("turn entry before game entry")
		}
		if e.Frame == nil {
			return nil
		}
		b.Apply(*e.Frame, e.Turn)
		if e.Frame.Turn < fromTurn {
			return nil
		}
		b.Draw(s, maxHalite)

		timer := time.NewTimer(delay)
		defer timer.Stop()
		for {
			select {
			case k, ok := <-keys:
				if !ok || k == 'q' {
					return errQuit
				}
				if k == ' ' {
					paused = !paused
				}
			case <-timer.C:
				if !paused {
					return nil
				}
				timer.Reset(delay)
			}
		}
	})
	if errors.Is(err, errQuit) {
		return nil
	}
	if err != nil {
		return err
	}
	// Hold the last frame until a key.
	<-keys
	return nil
}
