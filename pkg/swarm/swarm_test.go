package swarm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flock-protocol/flock-go/internal/testharness/mock"
	"github.com/flock-protocol/flock-go/pkg/device"
	"github.com/flock-protocol/flock-go/pkg/transport"
	"github.com/flock-protocol/flock-go/pkg/wire"
)

// newTestSwarm starts mock drones for the given serials and a swarm on
// ephemeral ports, discovered and ready. Zero cfg fields get test
// defaults: discarded operational log, link supervision off.
func newTestSwarm(t *testing.T, cfg Config, serials ...string) (*Swarm, []*mock.Drone) {
	t.Helper()

	drones := make([]*mock.Drone, len(serials))
	candidates := make([]netip.AddrPort, len(serials))
	for i, sn := range serials {
		d, err := mock.NewDrone(sn)
		require.NoError(t, err)
		t.Cleanup(d.Close)
		drones[i] = d
		candidates[i] = d.Addr()
	}

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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Discover(ctx, serials, DiscoverOptions{
		Candidates:    candidates,
		ProbeInterval: 20 * time.Millisecond,
	}))
	return s, drones
}

func countOf(cmds []string, text string) int {
	n := 0
	for _, c := range cmds {
		if c == text {
			n++
		}
	}
	return n
}

func TestSendReturnsReadReply(t *testing.T) {
	s, drones := newTestSwarm(t, Config{}, "0TQZK1AED0021X")
	drones[0].SetHandler(func(text string) (string, bool) {
		switch text {
		case "battery?":
			return "87", true
		case "sn?":
			return "0TQZK1AED0021X", true
		}
		return "ok", true
	})

	dev, err := s.Device(1)
	require.NoError(t, err)

	got, err := s.Send(context.Background(), dev, "battery?", wire.ClassRead)
	require.NoError(t, err)
	assert.Equal(t, "87", got)
}

func TestSecondCommandRejectedBusy(t *testing.T) {
	s, drones := newTestSwarm(t, Config{}, "SN1")
	drones[0].SetDelay(200 * time.Millisecond)

	dev, err := s.Device(1)
	require.NoError(t, err)

	firstDone := make(chan error, 1)
	go func() {
		_, err := s.Send(context.Background(), dev, "takeoff", wire.ClassControl)
		firstDone <- err
	}()

	// Let the first command reach the wire.
	require.Eventually(t, func() bool {
		return countOf(drones[0].Commands(), "takeoff") == 1
	}, time.Second, 5*time.Millisecond)

	_, err = s.Send(context.Background(), dev, "land", wire.ClassControl)
	assert.ErrorIs(t, err, device.ErrBusy)

	require.NoError(t, <-firstDone)
	// The rejected command never reached the wire.
	assert.Zero(t, countOf(drones[0].Commands(), "land"))
}

func TestSingleSlotUnderContention(t *testing.T) {
	s, drones := newTestSwarm(t, Config{}, "SN1")
	drones[0].SetDelay(300 * time.Millisecond)

	dev, err := s.Device(1)
	require.NoError(t, err)

	const callers = 16
	var acked, busy atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Send(context.Background(), dev, "up 50", wire.ClassControl)
			switch {
			case err == nil:
				acked.Add(1)
			case errors.Is(err, device.ErrBusy):
				busy.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), acked.Load())
	assert.Equal(t, int32(callers-1), busy.Load())
	assert.Equal(t, 1, countOf(drones[0].Commands(), "up 50"))
}

func TestFaultedDeviceRejectsAndSendsNothing(t *testing.T) {
	s, drones := newTestSwarm(t, Config{}, "SN1")

	dev, err := s.Device(1)
	require.NoError(t, err)
	dev.MarkFaulted("forced offline")

	before := len(drones[0].Commands())
	_, err = s.Send(context.Background(), dev, "takeoff", wire.ClassControl)
	assert.ErrorIs(t, err, device.ErrNotReady)

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, drones[0].Commands(), before)
}

func TestTimeoutResolvesOnceAndLateAckDropped(t *testing.T) {
	cfg := Config{}
	cfg.Policy.Control = 100 * time.Millisecond
	s, drones := newTestSwarm(t, cfg, "SN1")
	drones[0].SetDelay(250 * time.Millisecond)

	dev, err := s.Device(1)
	require.NoError(t, err)

	_, err = s.Send(context.Background(), dev, "takeoff", wire.ClassControl)
	assert.ErrorIs(t, err, device.ErrTimeout)

	// Timeout released the slot; the device stays in service.
	assert.Equal(t, device.StateReady, dev.State())
	assert.Nil(t, dev.Pending())

	// Let the late acknowledgment arrive and be dropped before the
	// next command goes out.
	time.Sleep(300 * time.Millisecond)
	drones[0].SetDelay(0)

	_, err = s.Send(context.Background(), dev, "land", wire.ClassControl)
	assert.NoError(t, err)
}

func TestDeviceErrorDoesNotFault(t *testing.T) {
	s, drones := newTestSwarm(t, Config{}, "SN1")
	drones[0].SetHandler(func(text string) (string, bool) {
		if text == "flip l" {
			return "error Motor stop", true
		}
		return "ok", true
	})

	dev, err := s.Device(1)
	require.NoError(t, err)

	_, err = s.Send(context.Background(), dev, "flip l", wire.ClassControl)
	var devErr *device.DeviceError
	require.ErrorAs(t, err, &devErr)
	assert.Equal(t, "error Motor stop", devErr.Code)

	// The error resolved the command; the device keeps flying.
	assert.Equal(t, device.StateReady, dev.State())
	_, err = s.Send(context.Background(), dev, "land", wire.ClassControl)
	assert.NoError(t, err)
}

func TestCancelledCallerDoesNotAbortInFlight(t *testing.T) {
	s, drones := newTestSwarm(t, Config{GracePeriod: 50 * time.Millisecond}, "SN1")
	drones[0].SetDelay(250 * time.Millisecond)

	dev, err := s.Device(1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err = s.Send(ctx, dev, "takeoff", wire.ClassControl)
	assert.ErrorIs(t, err, context.Canceled)

	// The command keeps running and resolves by acknowledgment.
	require.Eventually(t, func() bool {
		return dev.Pending() == nil
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, device.StateReady, dev.State())
}

func TestWaitIdle(t *testing.T) {
	s, drones := newTestSwarm(t, Config{}, "SN1", "SN2")
	drones[0].SetDelay(150 * time.Millisecond)

	dev, err := s.Device(1)
	require.NoError(t, err)

	go s.Send(context.Background(), dev, "takeoff", wire.ClassControl)
	require.Eventually(t, func() bool {
		return dev.Pending() != nil
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.WaitIdle(ctx))
	assert.Nil(t, dev.Pending())
}

func TestBackToBackSendsNeverBusy(t *testing.T) {
	s, _ := newTestSwarm(t, Config{}, "SN1")

	dev, err := s.Device(1)
	require.NoError(t, err)

	// Strict serialization must suffice: the slot is free the moment a
	// Send returns, starting with the first one after discovery.
	for i := 0; i < 200; i++ {
		_, err := s.Send(context.Background(), dev, "forward 50", wire.ClassControl)
		require.NoError(t, err, "iteration %d", i)
	}
}

func TestCloseResolvesQueuedCommands(t *testing.T) {
	s, drones := newTestSwarm(t, Config{}, "SN1")
	drones[0].SetDelay(20 * time.Millisecond)

	dev, err := s.Device(1)
	require.NoError(t, err)

	// Race a burst of submissions against shutdown. Every caller must
	// get an answer; a command admitted as the swarm closes resolves
	// with ErrSwarmClosed instead of stranding its submitter.
	const callers = 64
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Send(context.Background(), dev, "up 50", wire.ClassControl)
			errs <- err
		}()
	}
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.Close(context.Background()))

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("a Send never returned after Close")
	}

	close(errs)
	for err := range errs {
		if err == nil || errors.Is(err, device.ErrBusy) || errors.Is(err, ErrSwarmClosed) {
			continue
		}
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLateAckAttributedToNextCommand(t *testing.T) {
	cfg := Config{}
	cfg.Policy.Control = 100 * time.Millisecond
	cfg.Policy.Overrides = map[string]time.Duration{"land": 2 * time.Second}
	s, drones := newTestSwarm(t, cfg, "SN1")

	// The drone acknowledges the first command late and never answers
	// the second.
	drones[0].SetHandler(func(text string) (string, bool) {
		if text == "land" {
			return "", false
		}
		return "ok", true
	})
	drones[0].SetDelay(250 * time.Millisecond)

	dev, err := s.Device(1)
	require.NoError(t, err)

	_, err = s.Send(context.Background(), dev, "forward 50", wire.ClassControl)
	require.ErrorIs(t, err, device.ErrTimeout)

	// Replies carry no correlation ID, so the late acknowledgment for
	// the timed-out command resolves the next one. Were it dropped
	// instead, this Send would time out after its 2s window.
	resp, err := s.Send(context.Background(), dev, "land", wire.ClassControl)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Equal(t, 1, countOf(drones[0].Commands(), "land"))
}

func TestCloseLandsReadyDrones(t *testing.T) {
	s, drones := newTestSwarm(t, Config{}, "SN1", "SN2")

	require.NoError(t, s.Close(context.Background()))

	for _, d := range drones {
		assert.Equal(t, 1, countOf(d.Commands(), "land"))
	}

	// The swarm rejects work after shutdown.
	dev := s.Devices()[0]
	_, err := s.Send(context.Background(), dev, "takeoff", wire.ClassControl)
	assert.ErrorIs(t, err, ErrSwarmClosed)
}
