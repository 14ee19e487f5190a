// Package librtmp binds the rtmp package to the C librtmp library.
//
// The binding is compiled only with the librtmp build tag and needs the
// library's pkg-config file:
//
//	go build -tags librtmp ./...
//
// Without the tag New reports ErrUnavailable, so the rest of the module
// builds and tests without a C toolchain.
//
// librtmp keeps its log callback and log level in process globals. Every
// Engine therefore shares one log destination: the most recent SetLogFunc
// wins.
package librtmp

import "errors"

// ErrUnavailable is returned by New when the binary was built without librtmp.
var ErrUnavailable = errors.New("librtmp: built without the librtmp tag")
