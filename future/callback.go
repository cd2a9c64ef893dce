package future

import (
	"runtime/debug"

	"github.com/amp-labs/fsm/logger"
)

// invokeCallback runs a user callback in its own goroutine so that slow or
// panicking callbacks can never block settlement of the future.
func invokeCallback[T any](kind string, callback func(T, error), value T, err error) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Get().Error("panic encountered in future."+kind+" callback",
					"error", PanicError(r, debug.Stack()))
			}
		}()

		callback(value, err)
	}()
}
