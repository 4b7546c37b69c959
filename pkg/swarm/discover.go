package swarm

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flock-protocol/flock-go/pkg/device"
	"github.com/flock-protocol/flock-go/pkg/discovery"
	"github.com/flock-protocol/flock-go/pkg/wire"
)

// DefaultProbeInterval is the pause between probe rounds of the sweep.
const DefaultProbeInterval = 500 * time.Millisecond

// DiscoverOptions configure the probe sweep.
type DiscoverOptions struct {
	// Candidates overrides the swept address list, e.g. for known drone
	// addresses or test harnesses. When empty the directly attached
	// /24 networks are enumerated.
	Candidates []netip.AddrPort

	// FirstHost and LastHost narrow the swept host range (defaults:
	// the full /24 host space). Ignored when Candidates is set.
	FirstHost int
	LastHost  int

	// ProbeInterval overrides DefaultProbeInterval.
	ProbeInterval time.Duration
}

// Discover sweeps for drones until one device per entry in serials has
// answered the probe, then identifies each and assigns fleet numbers
// by list position: serials[0] becomes device 1. A drone reporting a
// serial not in the list is faulted. Discover blocks until the fleet
// is complete or ctx expires.
func (s *Swarm) Discover(ctx context.Context, serials []string, opts DiscoverOptions) error {
	if len(serials) == 0 {
		return errors.New("no serials to discover")
	}
	interval := opts.ProbeInterval
	if interval <= 0 {
		interval = DefaultProbeInterval
	}

	candidates := opts.Candidates
	if len(candidates) == 0 {
		hosts, err := discovery.Hosts(opts.FirstHost, opts.LastHost)
		if err != nil {
			return err
		}
		if len(hosts) == 0 {
			return errors.New("no candidate networks for discovery sweep")
		}
		candidates = discovery.Candidates(hosts, 0)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSwarmClosed
	}
	s.discovering = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.discovering = false
		s.mu.Unlock()
	}()

	s.slog.Info("discovery sweep started",
		"fleetSize", len(serials), "candidates", len(candidates))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for s.deviceCount() < len(serials) {
		for _, c := range candidates {
			if s.deviceByIP(c.Addr()) != nil {
				continue
			}
			_ = s.conn.Send(c, wire.Probe)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("discovery incomplete, found %d of %d drones: %w",
				s.deviceCount(), len(serials), ctx.Err())
		case <-s.closeCh:
			return ErrSwarmClosed
		case <-ticker.C:
		}
	}

	eg, ictx := errgroup.WithContext(ctx)
	for _, dev := range s.Devices() {
		if dev.State() != device.StateConnecting {
			continue
		}
		dev := dev
		eg.Go(func() error {
			return s.identify(ictx, dev, serials)
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	s.sortDevices()
	s.slog.Info("fleet discovered", "devices", len(serials))
	return nil
}

// adoptIfDiscovering turns an "ok" probe answer from an unknown address
// into a new device handle with its own dispatch loop. Called from the
// receive path; returns false when the datagram is not ours to claim.
func (s *Swarm) adoptIfDiscovering(from netip.AddrPort, text string) bool {
	if !wire.DecodeAck(wire.ClassControl, text).OK {
		return false
	}

	s.mu.Lock()
	if !s.discovering || s.closed {
		s.mu.Unlock()
		return false
	}
	if _, ok := s.byAddr[from.Addr()]; ok {
		s.mu.Unlock()
		return true
	}
	dev := device.New(from)
	s.byAddr[from.Addr()] = dev
	s.devices = append(s.devices, dev)
	q := make(chan *device.Command, 1)
	s.queues[dev] = q
	s.wg.Add(1)
	go s.dispatchLoop(dev, q)
	s.mu.Unlock()

	dev.Touch()
	s.slog.Info("drone answered probe", "addr", from.String())
	s.logState(dev, device.StateDisconnected, device.StateConnecting, "answered probe")
	return true
}

// identify asks one connecting drone for its serial and admits it to
// service under the fleet number its serial maps to.
func (s *Swarm) identify(ctx context.Context, dev *device.Device, serials []string) error {
	cmd := device.NewCommand("sn?", wire.ClassRead)
	if err := s.submit(dev, cmd, admitHandshake); err != nil {
		return fmt.Errorf("identify %s: %w", dev.Addr(), err)
	}
	sn, err := s.await(ctx, dev, cmd)
	if err != nil {
		dev.MarkFaulted("identification failed")
		s.logState(dev, device.StateConnecting, device.StateFaulted, "identification failed")
		return fmt.Errorf("identify %s: %w", dev.Addr(), err)
	}

	idx := slices.Index(serials, sn)
	if idx < 0 {
		dev.MarkFaulted("serial not in fleet")
		s.logState(dev, device.StateConnecting, device.StateFaulted, "serial not in fleet")
		return fmt.Errorf("drone %s reports serial %q not in fleet", dev.Addr(), sn)
	}

	dev.SetSerial(sn)
	dev.SetNum(idx + 1)
	dev.MarkReady()
	s.monitor.Watch(deviceKey(dev))
	s.logState(dev, device.StateConnecting, device.StateReady, "identified")
	s.slog.Info("drone identified",
		"device", idx+1, "serial", sn, "addr", dev.Addr().String())
	return nil
}
