package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

var (
	logger  = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	logFile *os.File
	mu      sync.Mutex
	isSetup bool
)

// SetupLogger routes log output to the given file, or to stderr when
// logFilePath is empty. Debug enables debug-level records.
func SetupLogger(logFilePath string, debug bool) error {
	mu.Lock()
	defer mu.Unlock()

	if isSetup {
		return nil
	}

	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	if logFilePath != "" {
		f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = f
		w = f
	}

	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	logger.Debug("debug log started", "at", time.Now().Format(time.RFC3339))

	isSetup = true
	return nil
}

// SetLogger replaces the package logger, mostly useful in tests
func SetLogger(l *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

// Logger returns the current package logger
func Logger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// CloseLogger closes the log file
func CloseLogger() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logger.Debug("debug log closed", "at", time.Now().Format(time.RFC3339))
		logFile.Close()
		logFile = nil
	}
	isSetup = false
}

// LogInfo logs an information message
func LogInfo(format string, args ...interface{}) {
	Logger().Info(fmt.Sprintf(format, args...))
}

// DebugLog logs a message at debug level
func DebugLog(format string, args ...interface{}) {
	Logger().Debug(fmt.Sprintf(format, args...))
}

// LogError logs an error message
func LogError(format string, args ...interface{}) {
	Logger().Error(fmt.Sprintf(format, args...))
}

// LogWarning logs a warning message
func LogWarning(format string, args ...interface{}) {
	Logger().Warn(fmt.Sprintf(format, args...))
}

// LogImageProcessed logs the outcome of fingerprinting one image
func LogImageProcessed(path string, success bool, errMsg string) {
	if success {
		Logger().Debug("processed", "path", path)
	} else {
		Logger().Warn("skipped", "path", path, "error", errMsg)
	}
}
