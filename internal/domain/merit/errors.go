package merit

import "errors"

var (
	// ErrScoreOutOfRange indicates a presentation score outside [0,10].
	ErrScoreOutOfRange = errors.New("presentation score out of range")
	// ErrStaleCycle indicates a score submitted for a cycle older than the
	// member's newest history entry.
	ErrStaleCycle = errors.New("score cycle older than latest history entry")
)
