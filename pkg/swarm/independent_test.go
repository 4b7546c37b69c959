package swarm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flock-protocol/flock-go/pkg/device"
	"github.com/flock-protocol/flock-go/pkg/wire"
)

func TestIndependentContextsRunConcurrently(t *testing.T) {
	s, drones := newTestSwarm(t, Config{}, "SN1", "SN2")
	drones[0].SetDelay(50 * time.Millisecond)

	dev1, err := s.Device(1)
	require.NoError(t, err)
	dev2, err := s.Device(2)
	require.NoError(t, err)

	// A slow drone stepping through a long route must not pace the
	// fast one.
	ic1, err := s.Independent(context.Background(), dev1, func(ctx context.Context, p *Pilot) error {
		for _, step := range []string{"forward 50", "cw 90", "forward 50"} {
			if _, err := p.Send(step, wire.ClassControl); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	ic2, err := s.Independent(context.Background(), dev2, func(ctx context.Context, p *Pilot) error {
		_, err := p.Send("flip b", wire.ClassControl)
		return err
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, ic2.Join(ctx))
	// The fast behavior finished while the slow one is still working.
	assert.Equal(t, ContextRunning, ic1.State())

	require.NoError(t, ic1.Join(ctx))
	assert.Equal(t, ContextCompleted, ic1.State())
	assert.Equal(t, ContextCompleted, ic2.State())

	assert.Equal(t, 2, countOf(drones[0].Commands(), "forward 50"))
	assert.Equal(t, 1, countOf(drones[1].Commands(), "flip b"))
}

func TestIndependentSurvivesDeviceError(t *testing.T) {
	s, drones := newTestSwarm(t, Config{}, "SN1")
	drones[0].SetHandler(func(text string) (string, bool) {
		if text == "flip r" {
			return "error Not joystick", true
		}
		return "ok", true
	})

	dev, err := s.Device(1)
	require.NoError(t, err)

	ic, err := s.Independent(context.Background(), dev, func(ctx context.Context, p *Pilot) error {
		if _, err := p.Send("flip r", wire.ClassControl); err != nil {
			var devErr *device.DeviceError
			if !errors.As(err, &devErr) {
				return err
			}
			// Fall back to a plain climb when the maneuver is refused.
			if _, err := p.Send("up 50", wire.ClassControl); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, ic.Join(ctx))
	assert.Equal(t, ContextCompleted, ic.State())
	assert.Equal(t, 1, countOf(drones[0].Commands(), "up 50"))
}

func TestIndependentCancelStopsAtCheckpoint(t *testing.T) {
	s, drones := newTestSwarm(t, Config{}, "SN1")
	drones[0].SetDelay(40 * time.Millisecond)

	dev, err := s.Device(1)
	require.NoError(t, err)

	ic, err := s.Independent(context.Background(), dev, func(ctx context.Context, p *Pilot) error {
		for {
			if _, err := p.Send("cw 10", wire.ClassControl); err != nil {
				return err
			}
		}
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return countOf(drones[0].Commands(), "cw 10") >= 2
	}, time.Second, 5*time.Millisecond)
	ic.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = ic.Join(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ContextCancelled, ic.State())

	// Nothing further reaches the wire after the checkpoint fired.
	time.Sleep(100 * time.Millisecond)
	n := countOf(drones[0].Commands(), "cw 10")
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, n, countOf(drones[0].Commands(), "cw 10"))
	assert.Equal(t, device.StateReady, dev.State())
}

func TestIndependentFaultedDevice(t *testing.T) {
	s, drones := newTestSwarm(t, Config{}, "SN1")
	drones[0].SetSilent(true)

	dev, err := s.Device(1)
	require.NoError(t, err)

	go func() {
		time.Sleep(80 * time.Millisecond)
		dev.MarkFaulted("forced offline")
	}()

	ic, err := s.Independent(context.Background(), dev, func(ctx context.Context, p *Pilot) error {
		_, err := p.Send("takeoff", wire.ClassControl)
		return err
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = ic.Join(ctx)
	assert.ErrorIs(t, err, device.ErrFaulted)
	assert.Equal(t, ContextFaulted, ic.State())
}

func TestCloseCancelsIndependentContexts(t *testing.T) {
	s, drones := newTestSwarm(t, Config{}, "SN1")

	dev, err := s.Device(1)
	require.NoError(t, err)

	ic, err := s.Independent(context.Background(), dev, func(ctx context.Context, p *Pilot) error {
		for {
			if _, err := p.Send("cw 10", wire.ClassControl); err != nil {
				return err
			}
		}
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return countOf(drones[0].Commands(), "cw 10") >= 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, ContextCancelled, ic.State())
}
