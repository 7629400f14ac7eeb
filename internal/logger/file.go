package logger

import (
	"io"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig configures a rotated log file.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Compress   bool
}

// NewFileWriter returns a size-rotated writer for cfg.Path.
func NewFileWriter(cfg FileConfig) io.WriteCloser {
	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}

	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    maxSize,
		MaxAge:     cfg.MaxAgeDays,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	}
}

// Output combines the console writer with an optional rotated file.
// The returned closer must be called on shutdown.
func Output(console io.Writer, file FileConfig) (io.Writer, func() error) {
	if file.Path == "" {
		return console, func() error { return nil }
	}

	fw := NewFileWriter(file)
	if console == io.Discard {
		return fw, fw.Close
	}
	return io.MultiWriter(console, fw), fw.Close
}
