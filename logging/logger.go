package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/grovetools/uireload/pkg/paths"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex
)

// NewLogger creates and returns a pre-configured logger for a specific component.
// Loggers are cached per component.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	cfg := loadConfig()
	logger := logrus.New()
	logger.SetLevel(cfg.level())
	logger.SetReportCaller(cfg.ReportCaller)
	logger.SetFormatter(cfg.formatter())

	var writers []io.Writer

	if file := openLogFile(component, cfg.File); file != nil {
		writers = append(writers, file)
	}

	if shouldLogToStderr(cfg.Format.Stderr, logger.GetLevel()) {
		writers = append(writers, GetGlobalOutput())
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}

	entry := logger.WithField("component", component)
	loggers[component] = entry
	return entry
}

// LogFilePath returns the default log file for a component on the given day:
// .uireload/logs/<component>-<date>.log under the working directory.
func LogFilePath(component string, day time.Time) string {
	base, err := os.Getwd()
	if err != nil {
		if base, err = os.UserHomeDir(); err != nil {
			return ""
		}
	}
	return filepath.Join(paths.LogDir(base), fmt.Sprintf("%s-%s.log", component, day.Format("2006-01-02")))
}

func openLogFile(component string, sink FileSink) *os.File {
	logFilePath := LogFilePath(component, time.Now())
	if sink.Enabled && sink.Path != "" {
		logFilePath = expandPath(sink.Path)
	}
	if logFilePath == "" {
		return nil
	}

	dir := filepath.Dir(logFilePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		// Only an explicitly configured sink is worth a warning.
		if sink.Enabled {
			logrus.Warnf("Failed to create log directory %s: %v", dir, err)
		}
		return nil
	}
	file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		if sink.Enabled {
			logrus.Warnf("Failed to open log file %s: %v", logFilePath, err)
		}
		return nil
	}
	return file
}

// shouldLogToStderr resolves format.stderr. "auto" logs to
// stderr when debugging or when stderr is not an interactive terminal.
func shouldLogToStderr(mode string, level logrus.Level) bool {
	switch mode {
	case StderrAlways:
		return true
	case StderrNever:
		return false
	default:
		isDebug := os.Getenv("UIRELOAD_DEBUG") == "1" || level >= logrus.DebugLevel
		isInteractive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
		return isDebug || !isInteractive
	}
}

// expandPath expands tilde in file paths
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
