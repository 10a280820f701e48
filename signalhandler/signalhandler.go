package signalhandler

import (
	"context"
	"os/signal"
	"runtime"
	"syscall"
)

// NotifyContext returns a context cancelled on SIGINT or SIGTERM, so that
// workers inside cgo calls finish their current image before the process
// exits. Call stop to restore default signal behaviour.
func NotifyContext(parent context.Context) (ctx context.Context, stop context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// GetOptimalProcs returns the default number of worker goroutines
func GetOptimalProcs() int {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	return n
}
