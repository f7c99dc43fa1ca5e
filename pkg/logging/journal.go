package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
)

// journalAvailable is replaced in tests.
var journalAvailable = journal.Enabled

// journalSend is replaced in tests.
var journalSend = journal.Send

// journalHandler is a slog.Handler that forwards records to systemd-journald.
// Attributes become journal fields; keys are upper-cased and anything outside
// [A-Z0-9_] is replaced with '_' as journald requires.
type journalHandler struct {
	level  slog.Level
	attrs  []slog.Attr
	prefix string
}

func newJournalHandler(level slog.Level) *journalHandler {
	return &journalHandler{level: level}
}

func (h *journalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *journalHandler) Handle(_ context.Context, r slog.Record) error {
	vars := make(map[string]string, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		vars[journalFieldName(h.prefix+a.Key)] = a.Value.String()
	}
	r.Attrs(func(a slog.Attr) bool {
		vars[journalFieldName(h.prefix+a.Key)] = a.Value.String()
		return true
	})
	if err := journalSend(r.Message, journalPriority(r.Level), vars); err != nil {
		return fmt.Errorf("sending to journal: %w", err)
	}
	return nil
}

func (h *journalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		next.attrs = append(next.attrs, a)
	}
	return &next
}

func (h *journalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "_"
	return &next
}

func journalPriority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

func journalFieldName(key string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(key) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	name := strings.TrimLeft(b.String(), "_")
	if name == "" {
		return "FIELD"
	}
	return name
}
