// Package device provides the per-drone handle: connection state,
// the single pending-command slot, and the telemetry snapshot.
//
// # Pending Slot
//
// Each device admits at most one command at a time. Admit fails with
// ErrBusy while a command is pending rather than buffering, forcing
// callers to serialize explicitly. This is the structural replacement
// for "wait a bit before the next command" sleeps: overlapping
// commands to a physical actuator are the race this package exists to
// prevent.
//
// # Ownership
//
// The command-state fields are mutated only by the dispatcher that
// owns the device; telemetry fields are mutated only by the transport
// receive path and read by anyone (single-writer snapshot behind an
// atomic pointer). The two never interact.
package device
