// Package transport provides the UDP endpoint pair for drone
// communication.
//
// The drone firmware dictates the socket topology:
//
//	┌─────────────────────────────────────┐
//	│        UTF-8 text commands          │
//	├─────────────────────────────────────┤
//	│  command socket (bidirectional,     │
//	│  one shared, local port 8889)       │
//	├─────────────────────────────────────┤
//	│  telemetry socket (receive-only,    │
//	│  local port 8890)                   │
//	├─────────────────────────────────────┤
//	│              UDP/IPv4               │
//	└─────────────────────────────────────┘
//
// One command socket serves every drone; replies are demultiplexed by
// source address, which the Conn surfaces to its reply handler. The
// telemetry socket is independent: telemetry reception never blocks
// on, nor is blocked by, command traffic.
//
// Datagrams are unreliable and unordered. The transport makes no
// delivery promises; acknowledgment correlation and timeout policy
// live in the dispatcher above.
package transport
