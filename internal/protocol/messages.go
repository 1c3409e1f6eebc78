package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"halitebot.ai/internal/sim/grid"
)

// ErrClosed is returned once the engine has closed its end of the pipe.
var ErrClosed = errors.New("engine closed the stream")

type Player struct {
	ID       int           `json:"id"`
	Shipyard grid.Position `json:"shipyard"`
}

// Game is the one-off handshake sent before the first turn.
type Game struct {
	Constants Constants `json:"constants"`
	Me        int       `json:"me"`
	Players   []Player  `json:"players"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	// Halite is row-major, Height rows of Width cells.
	Halite [][]int `json:"halite"`
}

func (g Game) Player(id int) (Player, bool) {
	for _, p := range g.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

type Ship struct {
	ID     int           `json:"id"`
	Pos    grid.Position `json:"pos"`
	Halite int           `json:"halite"`
}

type Dropoff struct {
	ID  int           `json:"id"`
	Pos grid.Position `json:"pos"`
}

type PlayerFrame struct {
	ID       int       `json:"id"`
	Halite   int       `json:"halite"`
	Ships    []Ship    `json:"ships"`
	Dropoffs []Dropoff `json:"dropoffs"`
}

type CellUpdate struct {
	Pos    grid.Position `json:"pos"`
	Halite int           `json:"halite"`
}

// Frame is one turn's worth of engine state.
type Frame struct {
	Turn    int           `json:"turn"`
	Players []PlayerFrame `json:"players"`
	Updates []CellUpdate  `json:"updates"`
}

func (f Frame) Player(id int) (PlayerFrame, bool) {
	for _, p := range f.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerFrame{}, false
}

// Reader decodes the engine's line-oriented stream.
type Reader struct {
	r    *bufio.Reader
	line int
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 256*1024)}
}

func (r *Reader) readLine() (string, error) {
	s, err := r.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && strings.TrimSpace(s) != "" {
			err = nil
		} else if errors.Is(err, io.EOF) {
			return "", ErrClosed
		} else {
			return "", err
		}
	}
	r.line++
	return strings.TrimRight(s, "\r\n"), nil
}

// ints reads one line and parses exactly n integers from it. n < 0 accepts
// any count.
func (r *Reader) ints(n int) ([]int, error) {
	s, err := r.readLine()
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(s)
	if n >= 0 && len(fields) != n {
		return nil, fmt.Errorf("line %d: want %d fields, got %d", r.line, n, len(fields))
	}
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.line, err)
		}
		out[i] = v
	}
	return out, nil
}

func (r *Reader) ReadGame() (Game, error) {
	var g Game
	s, err := r.readLine()
	if err != nil {
		return g, fmt.Errorf("init: %w", err)
	}
	if g.Constants, err = DecodeConstants([]byte(s)); err != nil {
		return g, fmt.Errorf("init: %w", err)
	}
	head, err := r.ints(2)
	if err != nil {
		return g, fmt.Errorf("init players: %w", err)
	}
	n := head[0]
	g.Me = head[1]
	for i := 0; i < n; i++ {
		v, err := r.ints(3)
		if err != nil {
			return g, fmt.Errorf("init player %d: %w", i, err)
		}
		g.Players = append(g.Players, Player{ID: v[0], Shipyard: grid.Position{X: v[1], Y: v[2]}})
	}
	dims, err := r.ints(2)
	if err != nil {
		return g, fmt.Errorf("init dims: %w", err)
	}
	g.Width, g.Height = dims[0], dims[1]
	if g.Width <= 0 || g.Height <= 0 {
		return g, fmt.Errorf("init dims: %dx%d", g.Width, g.Height)
	}
	g.Halite = make([][]int, g.Height)
	for y := 0; y < g.Height; y++ {
		row, err := r.ints(g.Width)
		if err != nil {
			return g, fmt.Errorf("init row %d: %w", y, err)
		}
		g.Halite[y] = row
	}
	return g, nil
}

// ReadFrame reads one turn. players is the count announced in the handshake.
func (r *Reader) ReadFrame(players int) (Frame, error) {
	var f Frame
	t, err := r.ints(1)
	if err != nil {
		return f, fmt.Errorf("frame: %w", err)
	}
	f.Turn = t[0]
	for i := 0; i < players; i++ {
		h, err := r.ints(4)
		if err != nil {
			return f, fmt.Errorf("frame %d player: %w", f.Turn, err)
		}
		p := PlayerFrame{ID: h[0], Halite: h[3]}
		for s := 0; s < h[1]; s++ {
			v, err := r.ints(4)
			if err != nil {
				return f, fmt.Errorf("frame %d ship: %w", f.Turn, err)
			}
			p.Ships = append(p.Ships, Ship{ID: v[0], Pos: grid.Position{X: v[1], Y: v[2]}, Halite: v[3]})
		}
		for d := 0; d < h[2]; d++ {
			v, err := r.ints(3)
			if err != nil {
				return f, fmt.Errorf("frame %d dropoff: %w", f.Turn, err)
			}
			p.Dropoffs = append(p.Dropoffs, Dropoff{ID: v[0], Pos: grid.Position{X: v[1], Y: v[2]}})
		}
		f.Players = append(f.Players, p)
	}
	c, err := r.ints(1)
	if err != nil {
		return f, fmt.Errorf("frame %d updates: %w", f.Turn, err)
	}
	for i := 0; i < c[0]; i++ {
		v, err := r.ints(3)
		if err != nil {
			return f, fmt.Errorf("frame %d update: %w", f.Turn, err)
		}
		f.Updates = append(f.Updates, CellUpdate{Pos: grid.Position{X: v[0], Y: v[1]}, Halite: v[2]})
	}
	return f, nil
}

// Move encodes a move command. Staying still is implicit and encodes empty.
func Move(unit int, d grid.Direction) string {
	if d == grid.Still {
		return ""
	}
	return CmdMove + " " + strconv.Itoa(unit) + " " + string(d.Char())
}

// Writer sends ready and command lines, flushing after each.
type Writer struct {
	w *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (w *Writer) Ready(name string) error {
	if _, err := w.w.WriteString(name + "\n"); err != nil {
		return err
	}
	return w.w.Flush()
}

// Commands writes one turn's commands on a single line. Empty entries are
// skipped; an empty turn still sends a newline.
func (w *Writer) Commands(cmds []string) error {
	parts := make([]string, 0, len(cmds))
	for _, c := range cmds {
		if c != "" {
			parts = append(parts, c)
		}
	}
	if _, err := w.w.WriteString(strings.Join(parts, " ") + "\n"); err != nil {
		return err
	}
	return w.w.Flush()
}
