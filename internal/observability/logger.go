package observability

import (
	"fmt"
	"sync"

	"github.com/tphakala/leafscan/internal/logger"
)

var (
	serviceLogger logger.Logger
	initOnce      sync.Once
)

// GetLogger returns the observability package logger.
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		serviceLogger = logger.Global().Module("metrics")
	})
	return serviceLogger
}

// promLogger adapts the package logger to promhttp.Logger.
type promLogger struct{}

func (promLogger) Println(v ...any) {
	GetLogger().Error("metrics handler error", logger.String("detail", fmt.Sprint(v...)))
}
