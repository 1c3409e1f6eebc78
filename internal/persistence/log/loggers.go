package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"halitebot.ai/internal/protocol"
	"halitebot.ai/internal/sim/tuning"
	"halitebot.ai/internal/sim/turn"
)

// DefaultSegmentLines keeps a full game in a handful of segments.
const DefaultSegmentLines = 200

// JSONLZstdWriter appends JSON lines to numbered zstd segments,
// prefix-000001.jsonl.zst and so on. A new segment starts every
// segmentLines entries; segment numbers continue past files already in dir.
type JSONLZstdWriter struct {
	baseDir      string
	prefix       string
	segmentLines int

	mu    sync.Mutex
	seg   int
	lines int
	f     *os.File
	enc   *zstd.Encoder
	w     *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string, segmentLines int) *JSONLZstdWriter {
	if segmentLines <= 0 {
		segmentLines = DefaultSegmentLines
	}
	return &JSONLZstdWriter{
		baseDir:      baseDir,
		prefix:       prefix,
		segmentLines: segmentLines,
		seg:          -1,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil || w.lines >= w.segmentLines {
		if err := w.rotateLocked(); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	w.lines++
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked() error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	if w.seg < 0 {
		w.seg = w.lastSegment()
	}
	w.seg++
	f, err := os.OpenFile(w.pathForSegment(w.seg), os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.lines = 0
	return nil
}

func (w *JSONLZstdWriter) lastSegment() int {
	last := 0
	for {
		if _, err := os.Stat(w.pathForSegment(last + 1)); err != nil {
			return last
		}
		last++
	}
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *JSONLZstdWriter) pathForSegment(seg int) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%06d.jsonl.zst", w.prefix, seg))
}

// TraceLogger writes the decision trace: one game entry, then one entry
// per turn (compressed).
type TraceLogger struct{ w *JSONLZstdWriter }

func NewTraceLogger(dir string, segmentLines int) *TraceLogger {
	return &TraceLogger{w: NewJSONLZstdWriter(dir, TracePrefix, segmentLines)}
}

func (l *TraceLogger) WriteGame(game protocol.Game, tu tuning.Tuning) error {
	return l.w.Write(Entry{Kind: KindGame, Game: &game, Tuning: &tu})
}

func (l *TraceLogger) WriteTurn(f protocol.Frame, rec turn.Record) error {
	return l.w.Write(Entry{Kind: KindTurn, Frame: &f, Turn: &rec})
}

func (l *TraceLogger) Close() error { return l.w.Close() }
