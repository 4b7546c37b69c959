package log

import (
	"time"

	"github.com/google/uuid"
)

// NewSessionID returns a fresh flight session identifier. Every event
// of one coordinator run carries the same session ID so flights can be
// separated in merged logs.
func NewSessionID() string {
	return uuid.NewString()
}

// Event is one flight log record. CBOR encoding uses integer keys for
// compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the flight session (UUID).
	SessionID string `cbor:"2,keyasint"`

	// DeviceSerial is the drone serial number, if known.
	DeviceSerial string `cbor:"3,keyasint,omitempty"`

	// DeviceNum is the fleet number assigned at discovery (1-based).
	DeviceNum int `cbor:"4,keyasint,omitempty"`

	// RemoteAddr is the drone address (IP:port).
	RemoteAddr string `cbor:"5,keyasint,omitempty"`

	// Direction indicates datagram flow relative to the coordinator.
	Direction Direction `cbor:"6,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"7,keyasint"`

	// Type-specific payload (one of these will be set).
	Command     *CommandEvent     `cbor:"8,keyasint,omitempty"`
	Telemetry   *TelemetryEvent   `cbor:"9,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"10,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"11,keyasint,omitempty"`
}

// Direction indicates the direction of datagram flow.
type Direction uint8

const (
	// DirectionIn indicates a datagram from a drone.
	DirectionIn Direction = 0
	// DirectionOut indicates a datagram to a drone.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryCommand indicates a command send.
	CategoryCommand Category = 0
	// CategoryReply indicates an acknowledgment or read reply.
	CategoryReply Category = 1
	// CategoryTelemetry indicates a telemetry datagram.
	CategoryTelemetry Category = 2
	// CategoryState indicates a device state change.
	CategoryState Category = 3
	// CategoryError indicates an error event.
	CategoryError Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryCommand:
		return "COMMAND"
	case CategoryReply:
		return "REPLY"
	case CategoryTelemetry:
		return "TELEMETRY"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// CommandEvent captures a command send or its resolution.
type CommandEvent struct {
	// ID correlates the send event with its resolution event.
	ID uint64 `cbor:"1,keyasint"`

	// Text is the wire string, e.g. "forward 50".
	Text string `cbor:"2,keyasint"`

	// Class is the command class name (CONTROL, SET, READ).
	Class string `cbor:"3,keyasint"`

	// Outcome is the resolution state name, empty on the send event.
	Outcome string `cbor:"4,keyasint,omitempty"`

	// Response is the reply payload, if any.
	Response string `cbor:"5,keyasint,omitempty"`

	// RTT is the send-to-resolution latency in nanoseconds.
	RTT *time.Duration `cbor:"6,keyasint,omitempty"`
}

// TelemetryEvent captures one decoded telemetry datagram.
type TelemetryEvent struct {
	// Fields holds the decoded key:value pairs.
	Fields map[string]string `cbor:"1,keyasint"`
}

// StateChangeEvent captures a device state transition.
type StateChangeEvent struct {
	// OldState is the previous state name.
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state name.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change, if available.
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures errors such as late acknowledgments or
// datagrams from unknown addresses.
type ErrorEventData struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Context describes what was happening, e.g. "late ack".
	Context string `cbor:"2,keyasint,omitempty"`
}
