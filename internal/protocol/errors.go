package protocol

const (
	// Engine I/O.
	ErrProtoBadFrame = "E_PROTO_BAD_FRAME"
	ErrProtoClosed   = "E_PROTO_CLOSED"

	// Planning and resolution, recorded per unit in the turn trace.
	ErrPathNotFound = "E_PATH_NOT_FOUND"
	ErrNoFuel       = "E_NO_FUEL"
	ErrUnwound      = "E_UNWOUND"
	ErrLostUnit     = "E_LOST_UNIT"
	ErrDeadline     = "E_DEADLINE"
	ErrInternal     = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadFrame: {},
	ErrProtoClosed:   {},
	ErrPathNotFound:  {},
	ErrNoFuel:        {},
	ErrUnwound:       {},
	ErrLostUnit:      {},
	ErrDeadline:      {},
	ErrInternal:      {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
