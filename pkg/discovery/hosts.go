package discovery

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/flock-protocol/flock-go/pkg/wire"
)

// Host range defaults: the full /24 host space.
const (
	FirstHost = 1
	LastHost  = 254
)

// Hosts returns candidate drone addresses on every directly attached
// IPv4 /24 network, with host parts in [first, last]. Our own
// addresses are excluded. When first or last is zero the default
// range boundary is used.
func Hosts(first, last int) ([]netip.Addr, error) {
	if first == 0 {
		first = FirstHost
	}
	if last == 0 {
		last = LastHost
	}
	if first < 1 || last > 254 || first > last {
		return nil, fmt.Errorf("invalid host range %d-%d", first, last)
	}

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate interfaces: %w", err)
	}

	var candidates []netip.Addr
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipNet.IP.To4()
		if ip4 == nil {
			continue
		}
		ones, bits := ipNet.Mask.Size()
		if bits != 32 || ones != 24 {
			continue
		}
		self, ok := netip.AddrFromSlice(ip4)
		if !ok {
			continue
		}
		prefix, err := self.Prefix(24)
		if err != nil {
			continue
		}
		candidates = append(candidates, hostsIn(prefix, self, first, last)...)
	}
	return candidates, nil
}

// hostsIn enumerates the hosts of one /24 prefix, excluding self.
func hostsIn(prefix netip.Prefix, self netip.Addr, first, last int) []netip.Addr {
	base := prefix.Masked().Addr().As4()
	hosts := make([]netip.Addr, 0, last-first+1)
	for h := first; h <= last; h++ {
		base[3] = byte(h)
		addr := netip.AddrFrom4(base)
		if addr == self {
			continue
		}
		hosts = append(hosts, addr)
	}
	return hosts
}

// Candidates attaches the drone command port to a list of addresses.
// A zero port takes wire.CommandPort.
func Candidates(addrs []netip.Addr, port uint16) []netip.AddrPort {
	if port == 0 {
		port = wire.CommandPort
	}
	out := make([]netip.AddrPort, len(addrs))
	for i, a := range addrs {
		out[i] = netip.AddrPortFrom(a, port)
	}
	return out
}
