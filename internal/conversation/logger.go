package conversation

import (
	"sync"

	"github.com/tphakala/leafscan/internal/logger"
)

var (
	serviceLogger logger.Logger
	initOnce      sync.Once
)

// GetLogger returns the conversation package logger.
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		serviceLogger = logger.Global().Module("conversation")
	})
	return serviceLogger
}
