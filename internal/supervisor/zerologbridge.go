package supervisor

import (
	"context"
	"io"
	"log/slog"

	"github.com/rs/zerolog"
)

// NewSubprocessLogger returns an [slog.Logger] that writes through a
// [zerolog.Logger] instead of slog's own text/JSON handlers. Every log call
// a Supervisor makes about a session (ready, failed readiness) picks up zerolog's structured, allocation-light JSON encoding, while the
// rest of the process keeps using the default slog handler — this bridge
// exists so subprocess lifecycle events get consistently enriched fields
// (model, pid, restart_count) without making zerolog the program-wide logger.
func NewSubprocessLogger(w io.Writer) *slog.Logger {
	return slog.New(&zerologHandler{zl: zerolog.New(w).With().Timestamp().Logger()})
}

// zerologHandler adapts a [zerolog.Logger] to the [slog.Handler] interface.
type zerologHandler struct {
	zl    zerolog.Logger
	attrs []slog.Attr
}

func (h *zerologHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelDebug
}

func (h *zerologHandler) Handle(_ context.Context, record slog.Record) error {
	evt := levelEvent(h.zl, record.Level)
	for _, a := range h.attrs {
		addAttr(evt, a)
	}
	record.Attrs(func(a slog.Attr) bool {
		addAttr(evt, a)
		return true
	})
	evt.Msg(record.Message)
	return nil
}

func (h *zerologHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *zerologHandler) WithGroup(name string) slog.Handler {
	// Subprocess log lines are flat; group nesting isn't needed here.
	return h
}

func levelEvent(zl zerolog.Logger, level slog.Level) *zerolog.Event {
	switch {
	case level >= slog.LevelError:
		return zl.Error()
	case level >= slog.LevelWarn:
		return zl.Warn()
	case level >= slog.LevelInfo:
		return zl.Info()
	default:
		return zl.Debug()
	}
}

func addAttr(evt *zerolog.Event, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	switch a.Value.Kind() {
	case slog.KindInt64:
		evt.Int64(a.Key, a.Value.Int64())
	case slog.KindUint64:
		evt.Uint64(a.Key, a.Value.Uint64())
	case slog.KindFloat64:
		evt.Float64(a.Key, a.Value.Float64())
	case slog.KindBool:
		evt.Bool(a.Key, a.Value.Bool())
	default:
		evt.Str(a.Key, a.Value.String())
	}
}
