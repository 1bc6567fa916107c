package obs

import (
	"sync"

	"go.uber.org/zap"
)

var (
	loggerMu sync.Mutex
	logger   *zap.SugaredLogger
)

// InitLogger builds the shared production logger at the given level.
func InitLogger(level string) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	base, err := cfg.Build()
	if err != nil {
		return err
	}
	loggerMu.Lock()
	logger = base.Sugar()
	loggerMu.Unlock()
	return nil
}

// Logger returns the shared logger. Before InitLogger it falls back to a
// no-op logger so tests do not have to initialize logging.
func Logger() *zap.SugaredLogger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return logger
}

// SetLogger replaces the shared logger. Intended for tests capturing output.
func SetLogger(l *zap.SugaredLogger) {
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

// Sync flushes buffered log entries.
func Sync() error {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logger == nil {
		return nil
	}
	return logger.Sync()
}
