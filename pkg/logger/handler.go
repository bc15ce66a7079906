package logger

import (
	"context"
	"log/slog"
	"strings"
)

// ContextExtractor pulls an attribute out of a context.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

// Redacted replaces the value of credential attributes.
const Redacted = "[REDACTED]"

var secretKeys = map[string]struct{}{
	"access_token":  {},
	"refresh_token": {},
	"password":      {},
	"apikey":        {},
	"authorization": {},
	"token":         {},
	"sso":           {},
}

// IsSecret reports whether values logged under key are masked.
func IsSecret(key string) bool {
	_, ok := secretKeys[strings.ToLower(key)]
	return ok
}

// Redact masks a when its key names a credential, descending into groups.
func Redact(a slog.Attr) slog.Attr {
	if IsSecret(a.Key) {
		return slog.String(a.Key, Redacted)
	}
	if a.Value.Kind() != slog.KindGroup {
		return a
	}
	group := a.Value.Group()
	out := make([]slog.Attr, len(group))
	for i, ga := range group {
		out[i] = Redact(ga)
	}
	return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
}

// handler masks credentials and adds context attributes at Handle time.
type handler struct {
	next       slog.Handler
	extractors []ContextExtractor
}

func newHandler(next slog.Handler, extractors []ContextExtractor) *handler {
	clean := make([]ContextExtractor, 0, len(extractors))
	for _, ex := range extractors {
		if ex != nil {
			clean = append(clean, ex)
		}
	}
	return &handler{next: next, extractors: clean}
}

func (h *handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *handler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(Redact(a))
		return true
	})
	for _, ex := range h.extractors {
		if attr, ok := ex(ctx); ok {
			out.AddAttrs(Redact(attr))
		}
	}
	return h.next.Handle(ctx, out)
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = Redact(a)
	}
	return &handler{next: h.next.WithAttrs(masked), extractors: h.extractors}
}

func (h *handler) WithGroup(name string) slog.Handler {
	return &handler{next: h.next.WithGroup(name), extractors: h.extractors}
}
