package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// Well-known protocol constants, fixed by the drone firmware.
const (
	// CommandPort is the UDP port the drone listens on for commands
	// and replies from. The controller binds the same port locally.
	CommandPort = 8889

	// TelemetryPort is the local UDP port drones stream telemetry to.
	TelemetryPort = 8890

	// Probe is the command that switches a drone into SDK mode. It is
	// also used as the discovery probe: any host that answers "ok" is
	// a drone.
	Probe = "command"

	// AckOK is the success reply for Control and Set commands.
	AckOK = "ok"

	// MaxDatagram is the largest datagram the firmware sends.
	MaxDatagram = 1024
)

// Class identifies how a command's reply is interpreted.
type Class uint8

const (
	// ClassControl is a flight maneuver; reply is "ok" or an error.
	ClassControl Class = 0
	// ClassSet is a configuration command; reply as for ClassControl.
	ClassSet Class = 1
	// ClassRead is a query; the reply is the value and never an error.
	ClassRead Class = 2
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassControl:
		return "CONTROL"
	case ClassSet:
		return "SET"
	case ClassRead:
		return "READ"
	default:
		return "UNKNOWN"
	}
}

// Validation errors.
var (
	ErrParamRange  = fmt.Errorf("parameter out of range")
	ErrParamOption = fmt.Errorf("parameter not an allowed option")
)

// IntParam is an integer command parameter with its validation range.
type IntParam struct {
	Name     string
	Value    int
	Min, Max int
}

// OptParam is a string command parameter validated against a fixed
// option list.
type OptParam struct {
	Name    string
	Value   string
	Allowed []string
}

// Pads lists the mission pad IDs accepted by pad-relative commands.
// "m-1" means any pad, "m-2" the nearest pad.
var Pads = []string{"m1", "m2", "m3", "m4", "m5", "m6", "m7", "m8", "m-1", "m-2"}

// Encode builds the wire string for a command, validating every
// parameter first. Parameters are appended in the order given, which
// must match the SDK's expected order.
func Encode(name string, ints []IntParam, opts []OptParam) (string, error) {
	var b strings.Builder
	b.WriteString(name)
	for _, p := range ints {
		if p.Value < p.Min || p.Value > p.Max {
			return "", fmt.Errorf("%s: %s=%d must be %d-%d: %w",
				name, p.Name, p.Value, p.Min, p.Max, ErrParamRange)
		}
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(p.Value))
	}
	for _, p := range opts {
		ok := false
		for _, a := range p.Allowed {
			if p.Value == a {
				ok = true
				break
			}
		}
		if !ok {
			return "", fmt.Errorf("%s: %s=%q not in %v: %w",
				name, p.Name, p.Value, p.Allowed, ErrParamOption)
		}
		b.WriteByte(' ')
		b.WriteString(p.Value)
	}
	return b.String(), nil
}

// EncodeValue builds "name value" with range validation, the common
// single-parameter form ("up 50", "cw 90", "speed 30").
func EncodeValue(name string, value, min, max int) (string, error) {
	return Encode(name, []IntParam{{Name: name, Value: value, Min: min, Max: max}}, nil)
}

// Ack is a decoded command reply.
type Ack struct {
	// OK reports whether the command succeeded.
	OK bool

	// Response is the raw reply text. For Read commands this is the
	// requested value; for failed commands it is the error code.
	Response string
}

// DecodeAck interprets a raw reply for a command of the given class.
// Control and Set replies succeed only on "ok" (case-insensitive,
// surrounding whitespace ignored); anything else is a device-reported
// error code. Read replies carry the value and always succeed.
func DecodeAck(class Class, raw string) Ack {
	trimmed := strings.TrimSpace(raw)
	if class == ClassRead {
		return Ack{OK: true, Response: trimmed}
	}
	if strings.EqualFold(trimmed, AckOK) {
		return Ack{OK: true, Response: trimmed}
	}
	return Ack{OK: false, Response: trimmed}
}

// Opcode returns the command name portion of a wire string, used for
// per-opcode timeout policy lookups.
func Opcode(command string) string {
	if i := strings.IndexByte(command, ' '); i >= 0 {
		return command[:i]
	}
	return command
}
