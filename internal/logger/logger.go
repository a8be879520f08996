// internal/logger/logger.go
package logger

import "go.uber.org/zap"

// New builds the process-wide sugared logger. Callers pass it down
// explicitly; there is no package-level singleton.
func New() (*zap.SugaredLogger, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}
