// Package logging builds the zerolog logger shared by the console and web
// front-ends. Conversation output goes to stdout; logs go to stderr and, when
// configured, to a file.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/m4xw311/mcpchat/config"
	"github.com/m4xw311/mcpchat/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger owns the optional log file behind a zerolog.Logger.
type Logger struct {
	zerolog.Logger
	file *os.File
}

// New creates a logger from cfg and installs it as the global zerolog logger.
// An unparsable level falls back to warn.
func New(cfg config.Log) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.WarnLevel
	}

	var console io.Writer = os.Stderr
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	writers := []io.Writer{console}

	var file *os.File
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, errors.Wrapf(err, "failed to create log directory")
		}
		file, err = os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open log file")
		}
		writers = append(writers, file)
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	log.Logger = logger

	return &Logger{Logger: logger, file: file}, nil
}

// Close closes the log file, if one was opened.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
