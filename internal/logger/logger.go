package logger

import (
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu    sync.RWMutex
	base  = zap.NewNop()
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Init installs the JSON stdout logger. It is safe to call more than once.
func Init() {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.MessageKey = "msg"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(os.Stdout),
		level,
	)

	Replace(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2)))
	Info("logger initialized", nil)
}

// SetLevel changes the minimum level of the installed logger.
func SetLevel(name string) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(name))); err != nil {
		return err
	}
	level.SetLevel(lvl)
	return nil
}

// Replace swaps the backing logger and returns a func restoring the previous one.
func Replace(l *zap.Logger) func() {
	mu.Lock()
	prev := base
	base = l
	mu.Unlock()

	return func() {
		mu.Lock()
		base = prev
		mu.Unlock()
	}
}

func Info(msg string, fields map[string]any) {
	write(zapcore.InfoLevel, msg, fields)
}

func Warn(msg string, fields map[string]any) {
	write(zapcore.WarnLevel, msg, fields)
}

func Error(msg string, fields map[string]any) {
	write(zapcore.ErrorLevel, msg, fields)
}

func Fatal(msg string, fields map[string]any) {
	write(zapcore.FatalLevel, msg, fields)
	os.Exit(1)
}

func write(lvl zapcore.Level, msg string, fields map[string]any) {
	mu.RLock()
	l := base
	mu.RUnlock()

	if ce := l.Check(lvl, msg); ce != nil {
		ce.Write(toZap(fields)...)
	}
}

// toZap converts fields in key order so output is stable.
func toZap(fields map[string]any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}
