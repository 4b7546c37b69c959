package swarm

import (
	"context"
	"errors"
	"fmt"

	"github.com/flock-protocol/flock-go/pkg/device"
	"github.com/flock-protocol/flock-go/pkg/wire"
)

type participant struct {
	dev *device.Device
	cmd *device.Command
}

// Group collects the commands of one synchronized block. Commands are
// admitted as they are submitted but held behind a shared gate; when
// the block body returns cleanly the gate opens and every command goes
// out together. A Group is not safe for concurrent use; the block body
// runs in a single goroutine.
type Group struct {
	s       *Swarm
	release chan struct{}
	parts   []participant
}

// Sync runs fn as a synchronized block. No submitted command reaches
// the wire until fn returns nil; Sync then releases them all at once
// and blocks until the slowest participant resolves. If fn returns an
// error the gate never opens and every admitted command is failed.
//
// A participant fault aborts the barrier: Sync still waits for the
// remaining participants to resolve, then reports ErrBarrierAborted.
func (s *Swarm) Sync(ctx context.Context, fn func(g *Group) error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSwarmClosed
	}
	sc := &scope{done: make(chan struct{})}
	s.scopes[sc] = struct{}{}
	s.mu.Unlock()
	defer s.finishScope(sc)

	g := &Group{s: s, release: make(chan struct{})}
	if err := fn(g); err != nil {
		g.abort(err)
		return err
	}
	close(g.release)
	return g.wait(ctx)
}

// Submit admits one gated command for a device. A rejection (NotReady,
// Busy) is returned immediately; the block body decides whether that
// aborts the whole group.
func (g *Group) Submit(dev *device.Device, text string, class wire.Class) error {
	cmd := device.NewGatedCommand(text, class, g.release)
	if err := g.s.submit(dev, cmd, admitNormal); err != nil {
		return fmt.Errorf("submit %q to device %d: %w", text, dev.Num(), err)
	}
	g.parts = append(g.parts, participant{dev: dev, cmd: cmd})
	return nil
}

// Len returns the number of admitted participants.
func (g *Group) Len() int { return len(g.parts) }

// abort fails every admitted command without opening the gate, so
// nothing reaches the wire.
func (g *Group) abort(cause error) {
	for _, p := range g.parts {
		p.cmd.Resolve(device.OutcomeFailed, "",
			fmt.Errorf("%w: %w", ErrBarrierAborted, cause))
	}
}

// wait blocks until every participant has resolved. Release of the
// barrier is evaluated only after the last resolution, so one slow or
// faulted drone never leaves the others in limbo.
func (g *Group) wait(ctx context.Context) error {
	var errs []error
	aborted := false
	for _, p := range g.parts {
		select {
		case <-p.cmd.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
		if err := p.cmd.Err(); err != nil {
			if errors.Is(err, device.ErrFaulted) {
				aborted = true
			}
			errs = append(errs, fmt.Errorf("device %d: %q: %w",
				p.dev.Num(), p.cmd.Text(), err))
		}
	}
	if aborted {
		return fmt.Errorf("%w: %w", ErrBarrierAborted, errors.Join(errs...))
	}
	return errors.Join(errs...)
}

// Broadcast sends the same command to every ready drone as a
// synchronized group and blocks until all of them resolve.
func (s *Swarm) Broadcast(ctx context.Context, text string, class wire.Class) error {
	return s.Sync(ctx, func(g *Group) error {
		for _, dev := range s.Devices() {
			if dev.State() != device.StateReady {
				continue
			}
			if err := g.Submit(dev, text, class); err != nil {
				return err
			}
		}
		return nil
	})
}
