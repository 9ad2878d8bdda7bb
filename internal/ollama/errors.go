package ollama

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure conditions callers dispatch on.
var (
	// ErrDaemonUnreachable means the daemon refused the connection or the
	// request never completed at the transport level.
	ErrDaemonUnreachable = errors.New("ollama daemon unreachable")

	// ErrModelNotFound means the daemon rejected the request because the
	// model is not available locally.
	ErrModelNotFound = errors.New("model not found")

	// ErrMalformedChunk means a streamed line could not be decoded, or the
	// stream ended before the daemon signaled completion.
	ErrMalformedChunk = errors.New("malformed stream chunk")
)

// StatusError is a daemon-side rejection that is neither a missing model
// nor a transport failure.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ollama error %d: %s", e.Code, e.Message)
}
