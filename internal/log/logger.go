package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is a slog.Logger bound to one component of sobres. Records
// written through the *Context methods also pick up the request id
// stored by ContextWithRequestID.
type Logger struct {
	*slog.Logger
	root      *slog.Logger
	component string
}

type Config struct {
	Level     slog.Level
	Format    string // text | json
	Component string
	Output    io.Writer

	// Handler overrides Level, Format and Output when set.
	Handler slog.Handler
}

func New(config Config) *Logger {
	h := config.Handler
	if h == nil {
		out := config.Output
		if out == nil {
			out = os.Stdout
		}
		opts := &slog.HandlerOptions{Level: config.Level}
		switch strings.ToLower(config.Format) {
		case "json":
			h = slog.NewJSONHandler(out, opts)
		default:
			h = slog.NewTextHandler(out, opts)
		}
	}
	return bind(slog.New(requestHandler{h}), config.Component)
}

func bind(root *slog.Logger, component string) *Logger {
	if component == "" {
		component = ComponentApp
	}
	return &Logger{
		Logger:    root.With(FieldComponent, component),
		root:      root,
		component: component,
	}
}

// Nop discards everything.
func Nop() *Logger {
	return New(Config{Handler: slog.DiscardHandler})
}

// ParseLevel maps LOG_LEVEL values to slog levels. Unknown values are info.
func ParseLevel(s string) slog.Level {
	var lvl slog.Level
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		s = "warn"
	}
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// With keeps the component and adds args to every record.
func (l *Logger) With(args ...any) *Logger {
	return bind(l.root.With(args...), l.component)
}

// WithComponent replaces the component while keeping attributes
// added through With.
func (l *Logger) WithComponent(component string) *Logger {
	return bind(l.root, component)
}

func (l *Logger) Component() string { return l.component }

func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}

type requestIDKey struct{}

// ContextWithRequestID tags ctx so that records logged with it carry
// the request id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the id stored by ContextWithRequestID, or "".
func RequestIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type requestHandler struct {
	slog.Handler
}

func (h requestHandler) Handle(ctx context.Context, rec slog.Record) error {
	if id := RequestIDFrom(ctx); id != "" {
		rec.AddAttrs(slog.String(FieldRequestID, id))
	}
	return h.Handler.Handle(ctx, rec)
}

func (h requestHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return requestHandler{h.Handler.WithAttrs(attrs)}
}

func (h requestHandler) WithGroup(name string) slog.Handler {
	return requestHandler{h.Handler.WithGroup(name)}
}
