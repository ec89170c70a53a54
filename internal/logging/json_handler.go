package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
)

const jsonTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// jsonHandler emits one object per line with short keys (ts, level, msg) and
// attaches the cycle_id carried by the record's context when the logger has
// not already bound one.
type jsonHandler struct {
	inner      slog.Handler
	boundCycle bool
}

func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	opts := slog.HandlerOptions{
		Level:       lvl,
		AddSource:   addSource,
		ReplaceAttr: replaceJSONAttr,
	}
	return &jsonHandler{inner: slog.NewJSONHandler(w, &opts)}
}

func (h *jsonHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *jsonHandler) Handle(ctx context.Context, record slog.Record) error {
	if !h.boundCycle {
		if id, ok := CycleIDFromContext(ctx); ok {
			record = record.Clone()
			record.AddAttrs(slog.String(FieldCycleID, id))
		}
	}
	return h.inner.Handle(ctx, record)
}

func (h *jsonHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := h.boundCycle
	for _, attr := range attrs {
		if attr.Key == FieldCycleID {
			bound = true
		}
	}
	return &jsonHandler{inner: h.inner.WithAttrs(attrs), boundCycle: bound}
}

func (h *jsonHandler) WithGroup(name string) slog.Handler {
	return &jsonHandler{inner: h.inner.WithGroup(name), boundCycle: h.boundCycle}
}

func replaceJSONAttr(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return attr
	}
	switch attr.Key {
	case slog.TimeKey:
		attr.Key = "ts"
		if attr.Value.Kind() == slog.KindTime {
			attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(jsonTimeLayout))
		}
	case slog.LevelKey:
		if level, ok := attr.Value.Any().(slog.Level); ok {
			attr.Value = slog.StringValue(strings.ToLower(levelLabel(level)))
		}
	case slog.SourceKey:
		if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
			attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
		}
	}
	return attr
}
