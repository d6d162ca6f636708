package logger

import (
	"io"

	"gopkg.in/natefinch/lumberjack.v2"
)

const logDirPermission = 0o755

type options struct {
	format string
	output io.Writer
	file   *lumberjack.Logger
}

// Option configures Init.
type Option func(*options)

// WithFormat selects the handler encoding: "text" (default) or "json".
func WithFormat(format string) Option {
	return func(o *options) {
		o.format = format
	}
}

// WithOutput replaces stdout as the primary sink.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.output = w
		}
	}
}

// WithFile tees log output into a size-rotated file. An empty path is a no-op.
func WithFile(path string, maxSizeMB, maxBackups, maxAgeDays int) Option {
	return func(o *options) {
		if path == "" {
			return
		}
		o.file = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   true,
		}
	}
}
