package safe

import (
	"runtime/debug"

	"BeepPager/logger"

	"go.uber.org/zap"
)

// Go starts f in a new goroutine that recovers from panic, so a panic is
// logged instead of crashing the process.
func Go(name string, f func()) {
	go Run(name, f)
}

// Run calls f and recovers from its panic. It reports whether f returned normally.
func Run(name string, f func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("[safe] panic recovered",
				zap.String("goroutine", name), zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		}
	}()
	f()
	return true
}
