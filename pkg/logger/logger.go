package logger

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// Options selects the handlers New builds.
type Options struct {
	Development bool
	// Output receives every record. Defaults to os.Stdout.
	Output io.Writer
	// ErrorOutput, when set, additionally receives Error records as JSON.
	ErrorOutput io.Writer
}

// New builds the process logger.
// Development: Text format with Debug level
// Production: JSON format with Info level
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	var handlers []slog.Handler
	if opts.Development {
		handlers = append(handlers, slog.NewTextHandler(out, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	} else {
		handlers = append(handlers, slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	if opts.ErrorOutput != nil {
		handlers = append(handlers, slog.NewJSONHandler(opts.ErrorOutput, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	var handler slog.Handler
	if len(handlers) > 1 {
		handler = slogmulti.Fanout(handlers...)
	} else {
		handler = handlers[0]
	}
	return slog.New(handler)
}

// Init builds the logger and installs it as the slog default.
func Init(opts Options) *slog.Logger {
	log := New(opts)
	slog.SetDefault(log)
	return log
}
