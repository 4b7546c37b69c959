// Package flight provides the high-level maneuver catalogue on top of
// the swarm engine.
//
// Every firmware command has a validated encoder returning a Command
// value, usable directly with swarm.Group.Submit or swarm.Pilot.Send
// inside synchronized blocks and independent contexts. The Flight
// wrapper adds the convenience layer for sequential flight logic: each
// catalogue method encodes, targets one drone or the whole fleet, and
// blocks until resolution.
//
// Validation happens before anything reaches the wire, so a bad
// parameter fails fast instead of costing a ten second timeout.
package flight
