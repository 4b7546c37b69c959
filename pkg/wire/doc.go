// Package wire implements the Tello SDK v2 text protocol.
//
// The wire format is fixed by the drone firmware and reproduced here
// bit-exact:
//   - Commands are UTF-8 text datagrams sent to UDP port 8889, e.g.
//     "forward 50" or "battery?".
//   - The drone replies on the same socket with "ok", an error string,
//     or (for read commands) the requested value.
//   - Telemetry is streamed to UDP port 8890 as semicolon-delimited
//     "key:value" fields, e.g. "bat:87;h:30;...".
//
// # Command Classes
//
// The SDK distinguishes three command classes, which determine how a
// reply is interpreted:
//   - Control: flight maneuvers ("takeoff", "cw 90"). Reply is "ok" or
//     an error string.
//   - Set: configuration ("speed 50", "mon"). Reply as for Control.
//   - Read: queries ("sn?"). The reply is the value itself and is never
//     treated as an error.
//
// # Validation
//
// Encode validates integer ranges and option lists before anything
// touches the network. Validation follows the SDK tables (distances
// 20-500cm, rotations 1-360 degrees, coordinates within +/-500cm,
// speed 10-100cm/s or 10-60cm/s on curves). It does not attempt
// semantic checks the firmware itself performs, such as curve radius.
package wire
