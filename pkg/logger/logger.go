// Package logger is the process-wide structured logger. Every event is one JSON
// line produced by zap.
package logger

import (
	"io"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu    sync.RWMutex
	level = zap.NewAtomicLevelAt(zap.InfoLevel)
	base  = build(zapcore.Lock(os.Stderr))
)

func build(w zapcore.WriteSyncer) *zap.Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.MessageKey = "msg"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	return zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(enc), w, level))
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// SetOutput redirects all subsequent log lines to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	base = build(zapcore.AddSync(w))
	mu.Unlock()
}

// SetLevel accepts zap level names ("debug", "info", "warn", "error").
func SetLevel(name string) error {
	return level.UnmarshalText([]byte(name))
}

func Debug(msg string) { current().Debug(msg) }
func Info(msg string)  { current().Info(msg) }
func Warn(msg string)  { current().Warn(msg) }
func Error(msg string) { current().Error(msg) }

// InfoJ logs event with the given fields flattened into the JSON object.
func InfoJ(event string, fields map[string]any) { current().Info(event, toFields(fields)...) }

// WarnJ is InfoJ at warn level.
func WarnJ(event string, fields map[string]any) { current().Warn(event, toFields(fields)...) }

// ErrorJ is InfoJ at error level.
func ErrorJ(event string, fields map[string]any) { current().Error(event, toFields(fields)...) }

// Sync flushes buffered entries.
func Sync() error { return current().Sync() }

func toFields(m map[string]any) []zap.Field {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, zap.Any(k, m[k]))
	}
	return out
}
