// Package logging builds the logrus logger shared by the inspection core
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ludo-technologies/jsinspect/internal/config"
)

// New creates a logger from the log configuration. With a file configured,
// output goes to a size-rotated file; otherwise to fallback.
func New(cfg config.LogConfig, fallback io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	logger.SetLevel(level)

	if cfg.File == "" {
		logger.SetOutput(fallback)
		return logger, nil
	}

	if st, err := os.Stat(cfg.File); err == nil && st.IsDir() {
		return nil, fmt.Errorf("log file %s is a directory", cfg.File)
	}
	logger.SetOutput(&lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxAge:     cfg.MaxAgeDays,
		MaxBackups: cfg.MaxBackups,
		LocalTime:  true,
		Compress:   cfg.Compress,
	})
	logger.SetFormatter(&logrus.JSONFormatter{})
	return logger, nil
}

// Discard returns a logger that drops everything, for tests and library use
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
