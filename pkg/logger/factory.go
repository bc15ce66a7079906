package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dmitrymomot/ssokit/pkg/environment"
)

// Format selects the record encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Option tunes New.
type Option func(*settings)

type settings struct {
	level      slog.Leveler
	format     Format
	output     io.Writer
	static     []slog.Attr
	extractors []ContextExtractor
}

// New returns a logger whose records pass through credential redaction.
// Without options it writes JSON at info level to stdout.
func New(opts ...Option) *slog.Logger {
	s := settings{level: slog.LevelInfo, format: FormatJSON, output: os.Stdout}
	for _, opt := range opts {
		opt(&s)
	}
	return slog.New(newHandler(s.base(), s.extractors))
}

func (s settings) base() slog.Handler {
	ho := &slog.HandlerOptions{Level: s.level}

	var h slog.Handler = slog.NewJSONHandler(s.output, ho)
	if s.format == FormatText {
		h = slog.NewTextHandler(s.output, ho)
	}
	if len(s.static) == 0 {
		return h
	}
	redacted := make([]slog.Attr, len(s.static))
	for i, a := range s.static {
		redacted[i] = Redact(a)
	}
	return h.WithAttrs(redacted)
}

func WithLevel(l slog.Leveler) Option {
	return func(s *settings) { s.level = l }
}

// WithLevelName parses names such as "debug" or "WARN+2". Unknown names keep
// the current level.
func WithLevelName(name string) Option {
	return func(s *settings) {
		var l slog.Level
		if err := l.UnmarshalText([]byte(name)); err == nil {
			s.level = l
		}
	}
}

// WithFormat panics on anything but FormatJSON or FormatText.
func WithFormat(f Format) Option {
	if f != FormatJSON && f != FormatText {
		panic(fmt.Errorf("logger: unknown format %q", f))
	}
	return func(s *settings) { s.format = f }
}

func WithOutput(w io.Writer) Option {
	return func(s *settings) {
		if w != nil {
			s.output = w
		}
	}
}

// WithAttr attaches attrs to every record.
func WithAttr(attrs ...slog.Attr) Option {
	return func(s *settings) { s.static = append(s.static, attrs...) }
}

// WithContextValue logs ctx.Value(key) as name whenever it is set.
func WithContextValue(name string, key any) Option {
	return func(s *settings) {
		if name == "" || key == nil {
			return
		}
		s.extractors = append(s.extractors, func(ctx context.Context) (slog.Attr, bool) {
			v := ctx.Value(key)
			return slog.Any(name, v), v != nil
		})
	}
}

// WithExtractor adds attributes derived from the record's context.
func WithExtractor(fns ...ContextExtractor) Option {
	return func(s *settings) {
		for _, fn := range fns {
			if fn != nil {
				s.extractors = append(s.extractors, fn)
			}
		}
	}
}

// WithEnvironment picks text at debug level for development and JSON at
// info level elsewhere, and tags records with service and env.
func WithEnvironment(env environment.Environment, service string) Option {
	return func(s *settings) {
		s.level, s.format = slog.LevelInfo, FormatJSON
		if env.IsDevelopment() {
			s.level, s.format = slog.LevelDebug, FormatText
		}
		if service != "" {
			s.static = append(s.static, slog.String("service", service))
		}
		s.static = append(s.static, slog.String("env", string(env)))
	}
}
