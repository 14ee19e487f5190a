//go:build !librtmp

package librtmp

import "github.com/Zereker/rtmp/native"

// New returns ErrUnavailable.
func New() (native.Engine, error) {
	return nil, ErrUnavailable
}

// SetLogLevel does nothing without librtmp.
func SetLogLevel(level native.LogLevel) {}
