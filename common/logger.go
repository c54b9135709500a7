package common

import (
	"compress/gzip"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LevelFromEngineSeverity maps the numeric severities reported by the VPN
// engine's log callback (0=fatal, 1=error, 2=warning, 3=info, >3=debug)
// onto application log levels.
func LevelFromEngineSeverity(severity int) LogLevel {
	switch {
	case severity <= 1:
		return LevelError
	case severity == 2:
		return LevelWarn
	case severity == 3:
		return LevelInfo
	default:
		return LevelDebug
	}
}

// AppLogger is the application logger. It writes leveled, timestamped lines
// to stdout and optionally to a size-rotated file under the config directory.
type AppLogger struct {
	mu         sync.Mutex
	level      LogLevel
	out        *log.Logger
	file       *os.File
	filePath   string
	maxSize    int64
	maxBackups int
}

// LogConfig holds configuration options for the logger.
type LogConfig struct {
	Level      LogLevel
	EnableFile bool
	MaxSize    int64 // bytes before rotation, default 5MB
	MaxBackups int   // rotated files to keep, default 5
}

const (
	defaultLogMaxSize    = 5 * 1024 * 1024
	defaultLogMaxBackups = 5
)

var (
	defaultLogger *AppLogger
	loggerOnce    sync.Once
)

// GetLogger returns the singleton logger instance.
func GetLogger() *AppLogger {
	loggerOnce.Do(func() {
		defaultLogger = &AppLogger{
			level:      LevelInfo,
			out:        log.New(os.Stdout, "", 0),
			maxSize:    defaultLogMaxSize,
			maxBackups: defaultLogMaxBackups,
		}
	})
	return defaultLogger
}

// InitLogger configures the singleton logger. Call early in startup.
func InitLogger(cfg LogConfig) error {
	l := GetLogger()
	l.SetLevel(cfg.Level)
	if cfg.MaxSize > 0 {
		l.maxSize = cfg.MaxSize
	}
	if cfg.MaxBackups > 0 {
		l.maxBackups = cfg.MaxBackups
	}
	if cfg.EnableFile {
		return l.enableFile()
	}
	return nil
}

// SetLevel sets the minimum log level.
func (l *AppLogger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetOutput redirects log output. Used by tests and by the TUI, which owns
// the terminal while running.
func (l *AppLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = log.New(w, "", 0)
}

// enableFile opens the rotating log file and tees output to it.
func (l *AppLogger) enableFile() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	logDir := filepath.Join(dir, "logs")
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return err
	}
	path := filepath.Join(logDir, LogFileName)

	l.rotateIfNeeded(path)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
	}
	l.file = f
	l.filePath = path
	l.out = log.New(io.MultiWriter(os.Stdout, f), "", 0)
	return nil
}

// rotateIfNeeded rotates the log file once it exceeds maxSize. The rotated
// file is gzip-compressed and stamped; backups beyond maxBackups are pruned.
func (l *AppLogger) rotateIfNeeded(path string) {
	info, err := os.Stat(path)
	if err != nil || info.Size() < l.maxSize {
		return
	}

	l.mu.Lock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	l.mu.Unlock()

	rotated := fmt.Sprintf("%s.%s.gz", path, time.Now().Format("20060102-150405"))
	if err := gzipFile(path, rotated); err != nil {
		os.Rename(path, rotated[:len(rotated)-3])
	} else {
		os.Remove(path)
	}
	l.pruneBackups(filepath.Dir(path))
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := gzip.NewWriter(out)
	defer zw.Close()
	_, err = io.Copy(zw, in)
	return err
}

func (l *AppLogger) pruneBackups(logDir string) {
	matches, err := filepath.Glob(filepath.Join(logDir, LogFileName+".*"))
	if err != nil || len(matches) <= l.maxBackups {
		return
	}
	sort.Slice(matches, func(i, j int) bool {
		a, _ := os.Stat(matches[i])
		b, _ := os.Stat(matches[j])
		if a == nil || b == nil {
			return false
		}
		return a.ModTime().Before(b.ModTime())
	})
	for _, old := range matches[:len(matches)-l.maxBackups] {
		os.Remove(old)
	}
}

func (l *AppLogger) write(level LogLevel, msg string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	l.out.Printf("%s [%s] %s", time.Now().Format("2006/01/02 15:04:05"), level, msg)
}

// Debug logs a debug message.
func (l *AppLogger) Debug(msg string, args ...interface{}) { l.write(LevelDebug, msg, args...) }

// Info logs an informational message.
func (l *AppLogger) Info(msg string, args ...interface{}) { l.write(LevelInfo, msg, args...) }

// Warn logs a warning message.
func (l *AppLogger) Warn(msg string, args ...interface{}) { l.write(LevelWarn, msg, args...) }

// Error logs an error message.
func (l *AppLogger) Error(msg string, args ...interface{}) { l.write(LevelError, msg, args...) }

// Close closes the log file. Should be called on application shutdown.
func (l *AppLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Shorthand functions for the default logger.

// LogDebug logs a debug message to the default logger.
func LogDebug(msg string, args ...interface{}) { GetLogger().Debug(msg, args...) }

// LogInfo logs an info message to the default logger.
func LogInfo(msg string, args ...interface{}) { GetLogger().Info(msg, args...) }

// LogWarn logs a warning message to the default logger.
func LogWarn(msg string, args ...interface{}) { GetLogger().Warn(msg, args...) }

// LogError logs an error message to the default logger.
func LogError(msg string, args ...interface{}) { GetLogger().Error(msg, args...) }

// CloseLogger closes the default logger.
func CloseLogger() error { return GetLogger().Close() }
