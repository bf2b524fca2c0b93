package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lmittmann/tint"
)

var (
	debugMode atomic.Bool
	level     = new(slog.LevelVar)
	base      atomic.Pointer[slog.Logger]
)

func init() {
	// DEBUG 환경변수로 활성화
	if os.Getenv("DEBUG") == "1" || os.Getenv("DEBUG") == "true" {
		SetDebugMode(true)
	} else {
		level.Set(slog.LevelInfo)
	}
	SetOutput(os.Stderr)
}

// SetOutput replaces the log destination. Colors are disabled for non-terminal writers.
func SetOutput(w io.Writer) {
	noColor := true
	if f, ok := w.(*os.File); ok {
		if fi, err := f.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
			noColor = false
		}
	}
	base.Store(slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
		NoColor:    noColor,
	})))
}

// SetDebugMode enables/disables debug logging
func SetDebugMode(enabled bool) {
	debugMode.Store(enabled)
	if enabled {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}
}

// IsDebugMode returns current debug mode status
func IsDebugMode() bool {
	return debugMode.Load()
}

// L returns the underlying structured logger
func L() *slog.Logger {
	return base.Load()
}

// Debug logs a debug message with caller info
func Debug(format string, args ...interface{}) {
	if !IsDebugMode() {
		return
	}
	_, file, line, _ := runtime.Caller(1)
	// 파일 경로에서 파일명만 추출
	parts := strings.Split(file, "/")
	shortFile := parts[len(parts)-1]
	msg := fmt.Sprintf(format, args...)
	L().Debug(msg, slog.String("src", fmt.Sprintf("%s:%d", shortFile, line)))
}

// DebugFunc logs function entry/exit
func DebugFunc(name string) func() {
	if !IsDebugMode() {
		return func() {}
	}
	start := time.Now()
	L().Debug("→ " + name + "()")
	return func() {
		L().Debug("← "+name+"()", slog.Duration("elapsed", time.Since(start)))
	}
}

// Info logs with key/value attributes
func Info(msg string, attrs ...any) {
	L().Log(context.Background(), slog.LevelInfo, msg, attrs...)
}

// Warn logs with key/value attributes
func Warn(msg string, attrs ...any) {
	L().Log(context.Background(), slog.LevelWarn, msg, attrs...)
}

// Error logs with key/value attributes
func Error(msg string, attrs ...any) {
	L().Log(context.Background(), slog.LevelError, msg, attrs...)
}
