package system

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger writes structured logs to stdout and a daily rotated file
type Logger struct {
	mu     sync.Mutex
	file   *os.File
	zl     *zap.Logger
	logDir string
	date   string
	level  zapcore.Level
}

// Global logger instance
var (
	globalMu     sync.RWMutex
	globalLogger *Logger
	fallback     = zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.Lock(os.Stderr),
		zapcore.InfoLevel,
	))
)

// InitLogger initializes the global logger
func InitLogger(logDir string, level string) error {
	if logDir == "" {
		logDir = "./logs"
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}

	l := &Logger{logDir: logDir, level: lvl}
	if err := l.rotateIfNeeded(); err != nil {
		return err
	}

	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
	return nil
}

// SetLogger replaces the logger used by the package functions.
// A nil logger restores the stderr fallback.
func SetLogger(zl *zap.Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if zl == nil {
		globalLogger = nil
		return
	}
	globalLogger = &Logger{zl: zl}
}

// rotateIfNeeded reopens the log file when the day changes
func (l *Logger) rotateIfNeeded() error {
	if l.logDir == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	today := time.Now().Format("2006-01-02")
	if l.date == today && l.file != nil {
		return nil
	}

	logPath := filepath.Join(l.logDir, fmt.Sprintf("vpuppets-%s.log", today))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	// Also write to stdout for systemd journal
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), l.level),
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(file), l.level),
	)

	if l.zl != nil {
		_ = l.zl.Sync()
	}
	if l.file != nil {
		l.file.Close()
	}

	l.file = file
	l.zl = zap.New(core)
	l.date = today
	return nil
}

func (l *Logger) logger() *zap.Logger {
	_ = l.rotateIfNeeded()
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.zl
}

// L returns the structured logger behind the package functions
func L() *zap.Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l == nil {
		return fallback
	}
	return l.logger()
}

// Package-level logging functions

// Debug logs a debug message
func Debug(format string, args ...interface{}) {
	L().Sugar().Debugf(format, args...)
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	L().Sugar().Infof(format, args...)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	L().Sugar().Warnf(format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	L().Sugar().Errorf(format, args...)
}

// Close flushes and closes the logger
func Close() {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		return
	}
	if globalLogger.zl != nil {
		_ = globalLogger.zl.Sync()
	}
	if globalLogger.file != nil {
		globalLogger.file.Close()
	}
}
