package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes flight events to an slog.Logger. Useful during
// development to watch the drone link in the console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter writing to the given logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session", shortID(event.SessionID)),
		slog.String("direction", event.Direction.String()),
		slog.String("category", event.Category.String()),
	}

	if event.DeviceSerial != "" {
		attrs = append(attrs, slog.String("serial", event.DeviceSerial))
	}
	if event.DeviceNum != 0 {
		attrs = append(attrs, slog.Int("num", event.DeviceNum))
	}
	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("addr", event.RemoteAddr))
	}

	switch {
	case event.Command != nil:
		attrs = append(attrs,
			slog.Uint64("cmd_id", event.Command.ID),
			slog.String("cmd", event.Command.Text),
			slog.String("class", event.Command.Class),
		)
		if event.Command.Outcome != "" {
			attrs = append(attrs, slog.String("outcome", event.Command.Outcome))
		}
		if event.Command.Response != "" {
			attrs = append(attrs, slog.String("response", event.Command.Response))
		}
		if event.Command.RTT != nil {
			attrs = append(attrs, slog.Duration("rtt", *event.Command.RTT))
		}
	case event.Telemetry != nil:
		attrs = append(attrs, slog.Int("fields", len(event.Telemetry.Fields)))
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs, slog.String("error", event.Error.Message))
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "flight event", attrs...)
}

// shortID returns the first 8 characters of a session ID.
func shortID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
