package logger

import (
	"log/slog"
	"time"
)

// Error records err under "error". Nil errors produce an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records the emitting component.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event records a named lifecycle event.
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// UserID records the identity id. Nil ids produce an empty Attr.
func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("user_id", id)
}

// OrganizationID records an organization id. Nil ids produce an empty Attr.
func OrganizationID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("organization_id", id)
}

// State records a lifecycle state name.
func State(name string) slog.Attr {
	return slog.String("state", name)
}

// Transition records a from -> to state change.
func Transition(from, to string) slog.Attr {
	return slog.Group("transition", slog.String("from", from), slog.String("to", to))
}

// Attempt records a retry or reconnect attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int("attempt", n)
}

// Duration records an elapsed duration.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Resource records a backend resource name.
func Resource(name string) slog.Attr {
	return slog.String("resource", name)
}

// Status records an HTTP status code. Zero produces an empty Attr.
func Status(code int) slog.Attr {
	if code == 0 {
		return slog.Attr{}
	}
	return slog.Int("status", code)
}
