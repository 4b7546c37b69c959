package swarm

import "errors"

// Coordinator errors. Admission and resolution errors from individual
// devices (NotReady, Busy, Timeout, Faulted, DeviceError) are defined
// in the device package and pass through unwrapped targets.
var (
	// ErrSwarmClosed indicates the swarm has been shut down.
	ErrSwarmClosed = errors.New("swarm closed")

	// ErrBarrierAborted indicates a participant faulted while a
	// synchronized block was outstanding. The block still waits for
	// every other participant to resolve before reporting this.
	ErrBarrierAborted = errors.New("barrier aborted")

	// ErrUnknownDevice indicates a lookup by fleet number or serial
	// found no device.
	ErrUnknownDevice = errors.New("unknown device")
)
