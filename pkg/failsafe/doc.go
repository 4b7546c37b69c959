// Package failsafe provides link-loss supervision for drones.
//
// A drone that stops answering is still airborne. The Monitor keeps a
// silence timer per device, fed by every acknowledgment and telemetry
// datagram; when a device stays silent beyond the threshold the
// monitor trips and the coordinator faults the device and issues a
// best-effort landing.
//
// Supervision is advisory: tripping never blocks the receive path,
// and a zero threshold disables the monitor entirely.
package failsafe
