package rtmp

import (
	"errors"
	"fmt"
)

// Status codes returned by the Bridge. Non-negative values are successes;
// Read and Write return byte counts in the success range.
const (
	StatusOK                = 0
	StatusFailure           = -1
	StatusHandleUnavailable = -2
	StatusOutOfBounds       = -3
	StatusNoMemory          = -4
)

// Errors returned by Session operations.
var (
	// ErrHandleUnavailable is returned when the handle is closed or unknown.
	ErrHandleUnavailable = errors.New("rtmp handle unavailable")
	// ErrOutOfBounds is returned when offset+length exceeds the buffer.
	ErrOutOfBounds = errors.New("buffer bounds exceeded")
	// ErrNoMemory is returned when the engine cannot allocate.
	ErrNoMemory = errors.New("engine allocation failed")
	// ErrProtocol is the generic protocol operation failure.
	ErrProtocol = errors.New("rtmp operation failed")
)

// Protocol operation failures, each matching ErrProtocol with errors.Is.
var (
	ErrAlloc         = &opError{"can't allocate an rtmp context"}
	ErrInvalidURL    = &opError{"invalid rtmp url"}
	ErrEnableWrite   = &opError{"failed to enable write"}
	ErrConnect       = &opError{"failed to connect"}
	ErrConnectStream = &opError{"failed to connect stream"}
	ErrDeleteStream  = &opError{"failed to delete stream"}
	ErrPause         = &opError{"can't pause"}
	ErrResume        = &opError{"can't resume"}
	ErrWritePacket   = &opError{"failed to write packet"}
	ErrReadPacket    = &opError{"failed to read packet"}
	ErrServe         = &opError{"can't serve"}
	ErrTimeout       = &opError{"timeout"}
	ErrConnection    = &opError{"connection error"}
)

type opError struct {
	msg string
}

func (e *opError) Error() string { return e.msg }

func (e *opError) Is(target error) bool { return target == ErrProtocol }

// StatusError converts a negative status into its sentinel error.
// It returns nil for non-negative statuses.
func StatusError(status int) error {
	switch {
	case status >= 0:
		return nil
	case status == StatusFailure:
		return ErrProtocol
	case status == StatusHandleUnavailable:
		return ErrHandleUnavailable
	case status == StatusOutOfBounds:
		return ErrOutOfBounds
	case status == StatusNoMemory:
		return ErrNoMemory
	default:
		return fmt.Errorf("%w: status %d", ErrProtocol, status)
	}
}

func statusName(status int) string {
	switch {
	case status >= 0:
		return "ok"
	case status == StatusHandleUnavailable:
		return "handle_unavailable"
	case status == StatusOutOfBounds:
		return "out_of_bounds"
	case status == StatusNoMemory:
		return "no_memory"
	default:
		return "failure"
	}
}
