//go:build librtmp

package librtmp

// #include <stdlib.h>
import "C"

import (
	"sync/atomic"

	"github.com/Zereker/rtmp/native"
)

var logFunc atomic.Pointer[native.LogFunc]

func setLogFunc(f native.LogFunc) {
	if f == nil {
		logFunc.Store(nil)
		return
	}
	logFunc.Store(&f)
}

// goRTMPLog receives lines already rendered by librtmp's vsnprintf.
//
//export goRTMPLog
func goRTMPLog(level C.int, msg *C.char) {
	f := logFunc.Load()
	if f == nil {
		return
	}
	(*f)(native.LogLevel(level), "%s", C.GoString(msg))
}
