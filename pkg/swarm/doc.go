// Package swarm implements the command dispatch and synchronization
// engine for a fleet of drones.
//
// The Swarm owns one shared command socket and one telemetry socket,
// a handle per drone, and a dispatch loop per drone. It enforces the
// single-outstanding-command discipline: each device admits at most
// one command, further submissions fail with Busy instead of
// buffering, and a command resolves exactly once - by acknowledgment,
// policy timeout, device-reported error, or device fault.
//
// # Execution Modes
//
// Three modes cover all flight control patterns:
//
//   - Broadcast: one command to every ready drone, returning when the
//     whole group has resolved.
//   - Sync: a scoped block submitting a different command per drone.
//     Nothing reaches the wire until the block body returns; all
//     sends then release together and the block exits only after the
//     slowest participant resolves.
//   - Independent: a per-drone control loop running caller logic
//     against that drone alone, never blocked by other drones,
//     cancelled cooperatively at command-submission checkpoints.
//
// Sync groups and independent contexts are variants of one internal
// execution scope, so teardown is uniform: Close cancels and joins
// every scope, then issues a best-effort landing to every drone still
// in service before the sockets go down.
//
// # Telemetry
//
// Telemetry updates flow on their own socket straight into per-device
// snapshots. They never interact with command state and are advisory:
// malformed datagrams are discarded.
package swarm
