// Package logging provides the CLI logger: human-readable colored
// output when attached to a terminal, JSON into size-rotated files
// otherwise. The long-lived application components log through slog;
// this package only serves the command-line tools.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"trailmark/internal/config"
)

type Options struct {
	Level      string
	Directory  string
	FileName   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewLogger builds a logrus logger from the options. An empty
// Directory disables file logging entirely.
func NewLogger(opts Options) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	if interactive {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05",
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	var out io.Writer = os.Stdout
	if opts.Directory != "" {
		fileName := opts.FileName
		if fileName == "" {
			fileName = "trailmarkctl.log"
		}
		rotator := &lumberjack.Logger{
			Filename:   filepath.Join(opts.Directory, fileName),
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		if interactive {
			out = io.MultiWriter(os.Stdout, rotator)
		} else {
			out = rotator
		}
	}
	logger.SetOutput(out)

	return logger
}

// FromConfig derives CLI logger options from the application config.
func FromConfig(cfg *config.Config, fileName string) *logrus.Logger {
	return NewLogger(Options{
		Level:      cfg.GetLogLevel(),
		Directory:  cfg.GetLogDirectory(),
		FileName:   fileName,
		MaxSizeMB:  cfg.GetLogMaxSizeMB(),
		MaxBackups: cfg.GetLogMaxBackups(),
		MaxAgeDays: cfg.GetLogMaxAgeDays(),
	})
}
