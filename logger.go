package dtanet

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const loggerName = "dta"

// logger is process-wide. It stays no-op until InitLogger or SetLogger is called
var logger = zap.NewNop().Sugar()

// InitLogger sets up console logger. Debug level is enabled when verbose is set
func InitLogger(verbose bool) error {
	level := zap.InfoLevel
	if verbose {
		level = zap.DebugLevel
	}
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.AddSync(os.Stderr),
		level,
	)
	SetLogger(zap.New(core))
	return nil
}

// SetLogger replaces the package logger with given one (named "dta")
func SetLogger(l *zap.Logger) {
	if l == nil {
		logger = zap.NewNop().Sugar()
		return
	}
	logger = l.Named(loggerName).Sugar()
}

// Logger returns the package logger
func Logger() *zap.SugaredLogger {
	return logger
}

// SyncLogger flushes buffered log entries. Should be called at teardown
func SyncLogger() {
	_ = logger.Sync()
}
