// Package logutil holds the process-wide logger used by the engine.
// The default is a nop logger; callers opt in via SetLogger.
package logutil

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
)

// SetLogger installs the logger used by kernel launches and the UDF cache.
// Passing nil restores the nop logger.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// L returns the current logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}
