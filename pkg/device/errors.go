package device

import (
	"errors"
	"fmt"
)

// Command admission and resolution errors.
var (
	// ErrNotReady indicates the device is not in StateReady.
	ErrNotReady = errors.New("device not ready")

	// ErrBusy indicates a command is already pending for the device.
	ErrBusy = errors.New("command already pending")

	// ErrTimeout indicates no acknowledgment arrived within the
	// policy window.
	ErrTimeout = errors.New("command timed out")

	// ErrFaulted indicates the device was removed from service while
	// the command was outstanding.
	ErrFaulted = errors.New("device faulted")
)

// DeviceError is a failure reported by the drone itself, e.g.
// "error Motor stop" or "out of range". It resolves the command but
// does not fault the device: the caller decides how to react.
type DeviceError struct {
	// Code is the raw error string from the reply.
	Code string
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	return fmt.Sprintf("device error: %s", e.Code)
}
