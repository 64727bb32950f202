package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Logger = zap.NewNop()
	mu     sync.Mutex
)

// InitializeLogger builds the global logger for the given environment.
func InitializeLogger(env string) {
	var (
		l   *zap.Logger
		err error
	)
	if env == "production" {
		l, err = zap.NewProduction()
	} else {
		l, err = zap.NewDevelopment()
	}
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	SetLogger(l)
}

// SetLogger replaces the global logger. Tests install a zaptest/observer
// core through it to assert on log output.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	Logger = l
}

func GetLogger() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	return Logger
}

// Close flushes buffered entries.
func Close() {
	_ = GetLogger().Sync()
}

func Info(msg string, fields ...zapcore.Field) {
	GetLogger().Info(msg, fields...)
}

func Warn(msg string, fields ...zapcore.Field) {
	GetLogger().Warn(msg, fields...)
}

func Error(msg string, fields ...zapcore.Field) {
	GetLogger().Error(msg, fields...)
}

func Fatal(msg string, fields ...zapcore.Field) {
	GetLogger().Fatal(msg, fields...)
}

func Debug(msg string, fields ...zapcore.Field) {
	GetLogger().Debug(msg, fields...)
}
