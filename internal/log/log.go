package log

import (
	"io"
	"os"
	"strings"
	"sync"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	mu       sync.RWMutex
	base     kitlog.Logger
	logger   kitlog.Logger
	minLevel = LevelInfo
	initOnce sync.Once
)

// initLogger sets up the global logfmt logger on stderr with UTC timestamps.
func initLogger() {
	initOnce.Do(func() {
		setOutputLocked(os.Stderr)
	})
}

func setOutputLocked(w io.Writer) {
	base = kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(w))
	base = kitlog.With(base, "ts", kitlog.DefaultTimestampUTC)
	logger = level.NewFilter(base, levelOption(minLevel))
}

// SetOutput redirects log output. Tests use it to capture lines.
func SetOutput(w io.Writer) {
	initLogger()
	mu.Lock()
	defer mu.Unlock()
	setOutputLocked(w)
}

func SetLevel(l Level) {
	initLogger()
	mu.Lock()
	defer mu.Unlock()
	minLevel = l
	logger = level.NewFilter(base, levelOption(l))
}

// ParseLevel maps a flag value like "debug" to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func levelOption(l Level) level.Option {
	switch l {
	case LevelDebug:
		return level.AllowDebug()
	case LevelWarn:
		return level.AllowWarn()
	case LevelError:
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}

func Debug(msg string, kv ...any) {
	logWith(level.Debug, msg, kv...)
}

func Info(msg string, kv ...any) {
	logWith(level.Info, msg, kv...)
}

func Warn(msg string, kv ...any) {
	logWith(level.Warn, msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	logWith(level.Error, msg, extended...)
}

func logWith(lvl func(kitlog.Logger) kitlog.Logger, msg string, kv ...any) {
	initLogger()
	mu.RLock()
	l := logger
	mu.RUnlock()

	// Odd trailing values are dropped rather than logged as a missing pair.
	if len(kv)%2 != 0 {
		kv = kv[:len(kv)-1]
	}
	_ = lvl(l).Log(append([]any{"msg", msg}, kv...)...)
}
