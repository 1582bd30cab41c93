package logger

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	Level string    // "debug","info","warn","error"
	JSON  bool      // JSON lines instead of console output
	Out   io.Writer // default os.Stdout
}

var (
	mu   sync.RWMutex
	zlog = newSugared(Options{})
)

// Configure replaces the process logger.
func Configure(opts Options) {
	l := newSugared(opts)

	mu.Lock()
	zlog = l
	mu.Unlock()
}

// UseTestMode silences logs during tests.
func UseTestMode() {
	Configure(Options{Level: "error", Out: io.Discard})
}

// L returns the current sugared logger.
func L() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return zlog
}

// With returns a child logger carrying structured fields.
func With(keysAndValues ...interface{}) *zap.SugaredLogger {
	return L().With(keysAndValues...)
}

func Debug(msg string, args ...interface{}) { L().Debugf(msg, args...) }

func Info(msg string, args ...interface{}) { L().Infof(msg, args...) }

func Warn(msg string, args ...interface{}) { L().Warnf(msg, args...) }

func Error(msg string, args ...interface{}) { L().Errorf(msg, args...) }

// Sync flushes buffered entries.
func Sync() {
	_ = L().Sync()
}

func newSugared(opts Options) *zap.SugaredLogger {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if opts.JSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(out), parseLevel(opts.Level))
	return zap.New(core).Sugar()
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
