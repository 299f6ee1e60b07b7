package logger

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/zfogg/sidechain/community/pkg/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger *log.Logger

// discard is handed out before Init so library code can log unconditionally.
var discard = log.New(io.Discard)

// Options controls where and how log lines are written.
type Options struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// OptionsFromConfig reads the log.* keys.
func OptionsFromConfig(verbose bool) Options {
	opts := Options{
		Level:      config.GetString("log.level"),
		Format:     config.GetString("log.format"),
		File:       config.GetString("log.file"),
		MaxSizeMB:  config.GetInt("log.max_size_mb"),
		MaxBackups: config.GetInt("log.max_backups"),
		MaxAgeDays: config.GetInt("log.max_age_days"),
	}
	if verbose {
		opts.Level = "debug"
	}
	return opts
}

// Init initializes the logger from configuration
func Init(verbose bool) {
	logger = New(OptionsFromConfig(verbose))
}

// New builds a logger. An empty file or "-" logs to stderr.
func New(opts Options) *log.Logger {
	var w io.Writer = os.Stderr
	if opts.File != "" && opts.File != "-" {
		w = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
	}

	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Formatter:       parseFormatter(opts.Format),
	})
	l.SetLevel(parseLevel(opts.Level))
	return l
}

func parseLevel(level string) log.Level {
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

func parseFormatter(format string) log.Formatter {
	switch strings.ToLower(format) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}

// SetLogger replaces the package logger. Tests use it to capture output.
func SetLogger(l *log.Logger) {
	logger = l
}

// Component returns a sub-logger prefixed with name.
func Component(name string) *log.Logger {
	if logger == nil {
		return discard
	}
	return logger.WithPrefix(name)
}

// Debug logs a debug message
func Debug(msg string, args ...interface{}) {
	if logger != nil {
		logger.Debug(msg, args...)
	}
}

// Info logs an info message
func Info(msg string, args ...interface{}) {
	if logger != nil {
		logger.Info(msg, args...)
	}
}

// Warn logs a warning message
func Warn(msg string, args ...interface{}) {
	if logger != nil {
		logger.Warn(msg, args...)
	}
}

// Error logs an error message
func Error(msg string, args ...interface{}) {
	if logger != nil {
		logger.Error(msg, args...)
	}
}

// Fatal logs a fatal message and exits
func Fatal(msg string, args ...interface{}) {
	if logger != nil {
		logger.Fatal(msg, args...)
	} else {
		os.Exit(1)
	}
}

// GetLogger returns the logger instance
func GetLogger() *log.Logger {
	return logger
}
