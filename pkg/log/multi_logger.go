package log

// MultiLogger fans out events to multiple loggers, e.g. console and
// file capture at the same time.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a logger that forwards each event to every
// given logger in order. Nil entries are skipped.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	kept := make([]Logger, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			kept = append(kept, l)
		}
	}
	return &MultiLogger{loggers: kept}
}

// Log forwards the event to all configured loggers.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

// Compile-time interface satisfaction check.
var _ Logger = (*MultiLogger)(nil)
