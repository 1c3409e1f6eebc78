// Package view draws a recorded game onto a terminal screen.
package view

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"halitebot.ai/internal/protocol"
	"halitebot.ai/internal/sim/grid"
	"halitebot.ai/internal/sim/turn"
)

var (
	styleEmpty   = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleHalite  = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleOwn     = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	styleHostile = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleBase    = tcell.StyleDefault.Foreground(tcell.ColorAqua)
	styleStatus  = tcell.StyleDefault.Reverse(true)
	haliteGlyphs = []rune{' ', '.', ':', '+', '*'}
	statusGlyphs = map[string]rune{"exploring": 'e', "transiting": 't', "returning": 'r', "backing_off": 'b', "mining": 'm'}
)

const unknownGlyph = '@'

// Board mirrors the game state one trace entry at a time.
type Board struct {
	Me   int
	G    *grid.Grid
	Turn int

	ships  map[grid.Position]int // owner per occupied cell
	status map[grid.Position]string
	rec    *turn.Record
}

func NewBoard(game protocol.Game) *Board {
	g := grid.New(game.Width, game.Height, 0)
	for y, row := range game.Halite {
		for x, h := range row {
			g.SetHalite(grid.Position{X: x, Y: y}, h)
		}
	}
	for _, p := range game.Players {
		g.SetStructure(p.Shipyard, grid.Structure{Kind: grid.StructureShipyard, Owner: p.ID})
	}
	return &Board{
		Me:     game.Me,
		G:      g,
		ships:  make(map[grid.Position]int),
		status: make(map[grid.Position]string),
	}
}

// Apply advances the board to the frame. rec may be nil.
func (b *Board) Apply(f protocol.Frame, rec *turn.Record) {
	b.Turn = f.Turn
	b.rec = rec
	for _, u := range f.Updates {
		b.G.SetHalite(u.Pos, u.Halite)
	}
	clear(b.ships)
	clear(b.status)
	for _, p := range f.Players {
		for _, d := range p.Dropoffs {
			b.G.SetStructure(d.Pos, grid.Structure{Kind: grid.StructureDropoff, Owner: p.ID})
		}
		for _, s := range p.Ships {
			b.ships[b.G.Normalize(s.Pos)] = p.ID
		}
	}
	if rec != nil {
		for _, u := range rec.Units {
			b.status[b.G.Normalize(u.From)] = u.Status
		}
	}
}

// Glyph returns what Draw puts on the cell at p.
func (b *Board) Glyph(p grid.Position, maxHalite int) (rune, tcell.Style) {
	p = b.G.Normalize(p)
	if owner, ok := b.ships[p]; ok {
		if owner != b.Me {
			return 'x', styleHostile
		}
		if r, ok := statusGlyphs[b.status[p]]; ok {
			return r, styleOwn
		}
		return unknownGlyph, styleOwn
	}
	if s := b.G.StructureAt(p); s.Present() {
		r := 'S'
		if s.Kind == grid.StructureDropoff {
			r = 'D'
		}
		if s.Owner != b.Me {
			return r, styleHostile
		}
		return r, styleBase
	}
	h := b.G.Halite(p)
	if h <= 0 || maxHalite <= 0 {
		return haliteGlyphs[0], styleEmpty
	}
	i := 1 + h*(len(haliteGlyphs)-1)/(maxHalite+1)
	if i >= len(haliteGlyphs) {
		i = len(haliteGlyphs) - 1
	}
	return haliteGlyphs[i], styleHalite
}

// StatusLine summarizes the current turn.
func (b *Board) StatusLine() string {
	line := fmt.Sprintf("turn %d  halite %d", b.Turn, b.G.TotalHalite())
	if r := b.rec; r != nil {
		line += fmt.Sprintf("  bank %d  ships %d  hotspots %d  collisions %d  unwinds %d", r.Bank, r.Ships, r.Hotspots, r.Collisions, r.Unwinds)
		if r.Degraded {
			line += "  DEGRADED"
		}
	}
	return line
}

// Draw renders the board clipped to the screen, with the status line on
// the last row.
func (b *Board) Draw(s tcell.Screen, maxHalite int) {
	s.Clear()
	sw, sh := s.Size()
	rows := sh - 1
	for y := 0; y < b.G.Height && y < rows; y++ {
		for x := 0; x < b.G.Width && x < sw; x++ {
			r, st := b.Glyph(grid.Position{X: x, Y: y}, maxHalite)
			s.SetContent(x, y, r, nil, st)
		}
	}
	if sh > 0 {
		for i, r := range []rune(b.StatusLine()) {
			if i >= sw {
				break
			}
			s.SetContent(i, sh-1, r, nil, styleStatus)
		}
	}
	s.Show()
}
