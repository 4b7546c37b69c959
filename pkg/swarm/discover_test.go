package swarm

import (
	"context"
	"io"
	"log/slog"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flock-protocol/flock-go/internal/testharness/mock"
	"github.com/flock-protocol/flock-go/pkg/device"
	"github.com/flock-protocol/flock-go/pkg/transport"
	"github.com/flock-protocol/flock-go/pkg/wire"
)

func newBareSwarm(t *testing.T, cfg Config) *Swarm {
	t.Helper()
	cfg.Transport = transport.Config{
		CommandPort:   transport.PortEphemeral,
		TelemetryPort: transport.PortEphemeral,
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.GracePeriod == 0 {
		cfg.GracePeriod = 500 * time.Millisecond
	}
	if cfg.LinkLossThreshold == 0 {
		cfg.LinkLossThreshold = -1
	}
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func TestDiscoverAssignsFleetNumbersBySerialOrder(t *testing.T) {
	serials := []string{"SN-A", "SN-B", "SN-C"}
	drones := make([]*mock.Drone, len(serials))
	candidates := make([]netip.AddrPort, len(serials))
	for i, sn := range serials {
		d, err := mock.NewDrone(sn)
		require.NoError(t, err)
		t.Cleanup(d.Close)
		drones[i] = d
		// Reverse candidate order: numbering must follow the serial
		// list, not reply arrival.
		candidates[len(serials)-1-i] = d.Addr()
	}

	s := newBareSwarm(t, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Discover(ctx, serials, DiscoverOptions{
		Candidates:    candidates,
		ProbeInterval: 20 * time.Millisecond,
	}))

	devs := s.Devices()
	require.Len(t, devs, 3)
	for i, sn := range serials {
		assert.Equal(t, i+1, devs[i].Num())
		assert.Equal(t, sn, devs[i].Serial())
		assert.Equal(t, device.StateReady, devs[i].State())
	}

	// Every drone completed the probe and identification handshake.
	for _, d := range drones {
		cmds := d.Commands()
		assert.GreaterOrEqual(t, countOf(cmds, wire.Probe), 1)
		assert.Equal(t, 1, countOf(cmds, "sn?"))
	}
}

func TestDiscoverTimesOutOnMissingDrone(t *testing.T) {
	d, err := mock.NewDrone("SN-A")
	require.NoError(t, err)
	t.Cleanup(d.Close)

	s := newBareSwarm(t, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err = s.Discover(ctx, []string{"SN-A", "SN-MISSING"}, DiscoverOptions{
		Candidates:    []netip.AddrPort{d.Addr()},
		ProbeInterval: 20 * time.Millisecond,
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorContains(t, err, "found 1 of 2")
}

func TestDiscoverFaultsUnknownSerial(t *testing.T) {
	d, err := mock.NewDrone("SN-IMPOSTOR")
	require.NoError(t, err)
	t.Cleanup(d.Close)

	s := newBareSwarm(t, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = s.Discover(ctx, []string{"SN-EXPECTED"}, DiscoverOptions{
		Candidates:    []netip.AddrPort{d.Addr()},
		ProbeInterval: 20 * time.Millisecond,
	})
	require.ErrorContains(t, err, "not in fleet")

	devs := s.Devices()
	require.Len(t, devs, 1)
	assert.Equal(t, device.StateFaulted, devs[0].State())
	assert.Equal(t, "serial not in fleet", devs[0].FaultReason())
}

func TestLinkLossFaultsAndLands(t *testing.T) {
	s, drones := newTestSwarm(t, Config{LinkLossThreshold: 150 * time.Millisecond}, "SN1")

	dev, err := s.Device(1)
	require.NoError(t, err)
	require.Equal(t, device.StateReady, dev.State())

	// Total silence past the threshold trips the failsafe.
	drones[0].SetSilent(true)
	require.Eventually(t, func() bool {
		return dev.State() == device.StateFaulted
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "link lost", dev.FaultReason())

	// The failsafe fires one last landing at the lost drone.
	require.Eventually(t, func() bool {
		return countOf(drones[0].Commands(), "land") >= 1
	}, time.Second, 10*time.Millisecond)

	_, err = s.Send(context.Background(), dev, "takeoff", wire.ClassControl)
	assert.ErrorIs(t, err, device.ErrNotReady)
}

func TestTelemetryFeedsFailsafe(t *testing.T) {
	s, drones := newTestSwarm(t, Config{LinkLossThreshold: 150 * time.Millisecond}, "SN1")

	dev, err := s.Device(1)
	require.NoError(t, err)

	target := netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), uint16(s.TelemetryPort()))
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(40 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				drones[0].SendTelemetry(target, "bat:87;h:120;baro:44.25;")
			}
		}
	}()

	// Telemetry alone keeps the link alive well past the threshold.
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, device.StateReady, dev.State())

	snap := dev.Telemetry()
	require.NotNil(t, snap)
	bat, ok := snap.Fields.Int("bat")
	require.True(t, ok)
	assert.Equal(t, 87, bat)
}

func TestTelemetryIgnoresMalformedDatagrams(t *testing.T) {
	s, drones := newTestSwarm(t, Config{}, "SN1")

	dev, err := s.Device(1)
	require.NoError(t, err)

	target := netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), uint16(s.TelemetryPort()))
	require.NoError(t, drones[0].SendTelemetry(target, "garbage"))
	require.NoError(t, drones[0].SendTelemetry(target, "bat:55;h:10;"))

	require.Eventually(t, func() bool {
		return dev.Telemetry() != nil
	}, time.Second, 10*time.Millisecond)
	bat, ok := dev.Telemetry().Fields.Int("bat")
	require.True(t, ok)
	assert.Equal(t, 55, bat)
}
