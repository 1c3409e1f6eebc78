package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"halitebot.ai/internal/protocol"
	"halitebot.ai/internal/sim/tuning"
	"halitebot.ai/internal/sim/turn"
)

const TracePrefix = "trace"

const (
	KindGame = "game"
	KindTurn = "turn"
)

// Entry is one trace line. Game entries carry the handshake and the tuning
// in effect; turn entries carry the frame as read and the turn record.
type Entry struct {
	Kind   string          `json:"kind"`
	Game   *protocol.Game  `json:"game,omitempty"`
	Tuning *tuning.Tuning  `json:"tuning,omitempty"`
	Frame  *protocol.Frame `json:"frame,omitempty"`
	Turn   *turn.Record    `json:"turn,omitempty"`
}

// ListTraceFiles returns the trace files in dir, oldest first.
func ListTraceFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, TracePrefix+"-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

// ReadTrace streams every entry of every trace file in dir to fn, stopping
// at the first error.
func ReadTrace(dir string, fn func(Entry) error) error {
	files, err := ListTraceFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no trace files in %s", dir)
	}
	for _, path := range files {
		if err := readTraceFile(path, fn); err != nil {
			return err
		}
	}
	return nil
}

func readTraceFile(path string, fn func(Entry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return sc.Err()
}
