package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
)

// EncodeRLE encodes non-negative cell values as base64(varint pairs).
// The pairs are (value, run_len) repeated. Negative values encode as 0.
func EncodeRLE(values []int) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(values) {
		v := values[i]
		if v < 0 {
			v = 0
		}
		run := 1
		for j := i + 1; j < len(values) && max(values[j], 0) == v && run < 1<<31; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(v))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}
