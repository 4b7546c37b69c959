// Package discovery enumerates candidate drone addresses for the
// probe sweep.
//
// Drones advertise nothing: discovery is an active sweep that sends
// the SDK probe command to every candidate host and adopts whoever
// answers "ok". This package produces the candidate list from the
// directly attached IPv4 networks; the sweep itself is driven by the
// swarm coordinator, which owns the command socket the replies arrive
// on.
//
// Only /24 networks are swept. Larger networks make the sweep
// impractically slow and are almost certainly not a drone network.
package discovery
