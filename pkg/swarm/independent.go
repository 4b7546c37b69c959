package swarm

import (
	"context"
	"errors"
	"sync"

	"github.com/flock-protocol/flock-go/pkg/device"
	"github.com/flock-protocol/flock-go/pkg/wire"
)

// scope is the common lifecycle handle behind synchronized blocks and
// independent contexts. Close cancels and joins scopes uniformly.
type scope struct {
	cancel context.CancelFunc // nil for synchronized blocks
	done   chan struct{}
}

func (s *Swarm) finishScope(sc *scope) {
	close(sc.done)
	s.mu.Lock()
	delete(s.scopes, sc)
	s.mu.Unlock()
}

// ContextState is the lifecycle state of an independent context.
type ContextState uint8

const (
	// ContextCreated indicates the behavior has not started yet.
	ContextCreated ContextState = 0
	// ContextRunning indicates the behavior is executing.
	ContextRunning ContextState = 1
	// ContextCompleted indicates the behavior returned on its own.
	ContextCompleted ContextState = 2
	// ContextCancelled indicates the behavior stopped at a cancellation
	// checkpoint after Cancel or swarm teardown.
	ContextCancelled ContextState = 3
	// ContextFaulted indicates the device faulted while the behavior
	// was running.
	ContextFaulted ContextState = 4
)

// String returns the state name.
func (c ContextState) String() string {
	switch c {
	case ContextCreated:
		return "CREATED"
	case ContextRunning:
		return "RUNNING"
	case ContextCompleted:
		return "COMPLETED"
	case ContextCancelled:
		return "CANCELLED"
	case ContextFaulted:
		return "FAULTED"
	default:
		return "UNKNOWN"
	}
}

// BehaviorFunc is the caller-supplied control loop of one independent
// context. Every Pilot submission is a cancellation checkpoint; the
// function should return promptly once ctx is done. Returning a
// *device.DeviceError-wrapped error is the caller's choice, not a
// requirement: device errors do not terminate the context by
// themselves.
type BehaviorFunc func(ctx context.Context, p *Pilot) error

// Independent is a handle on one running per-drone behavior.
type Independent struct {
	s   *Swarm
	dev *device.Device
	sc  *scope

	mu    sync.Mutex
	state ContextState
	err   error
}

// Independent starts fn as an independent context for one device. The
// behavior runs on its own goroutine, pacing only its own drone, and
// is cancelled cooperatively: Cancel (or swarm Close) stops it at the
// next command submission, never mid-command.
func (s *Swarm) Independent(ctx context.Context, dev *device.Device, fn BehaviorFunc) (*Independent, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSwarmClosed
	}
	runCtx, cancel := context.WithCancel(ctx)
	sc := &scope{cancel: cancel, done: make(chan struct{})}
	s.scopes[sc] = struct{}{}
	s.mu.Unlock()

	ic := &Independent{s: s, dev: dev, sc: sc, state: ContextCreated}
	go ic.run(runCtx, fn)
	return ic, nil
}

func (ic *Independent) run(ctx context.Context, fn BehaviorFunc) {
	defer ic.s.finishScope(ic.sc)

	ic.setState(ContextRunning, nil)
	ic.s.slog.Debug("independent context started", "device", ic.dev.Num())

	err := fn(ctx, &Pilot{s: ic.s, dev: ic.dev, ctx: ctx})

	final := ContextCompleted
	switch {
	case ic.dev.State() == device.StateFaulted || errors.Is(err, device.ErrFaulted):
		final = ContextFaulted
	case errors.Is(err, ErrSwarmClosed):
		// Teardown is a cancellation from the behavior's point of view.
		final = ContextCancelled
	case ctx.Err() != nil &&
		(err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		final = ContextCancelled
	}
	ic.setState(final, err)

	ic.s.slog.Debug("independent context finished",
		"device", ic.dev.Num(), "state", final.String())
}

func (ic *Independent) setState(st ContextState, err error) {
	ic.mu.Lock()
	ic.state = st
	ic.err = err
	ic.mu.Unlock()
}

// Device returns the device this context controls.
func (ic *Independent) Device() *device.Device { return ic.dev }

// State returns the lifecycle state.
func (ic *Independent) State() ContextState {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.state
}

// Cancel requests cooperative termination. The behavior stops at its
// next submission checkpoint; a command already in flight resolves
// normally first.
func (ic *Independent) Cancel() { ic.sc.cancel() }

// Done is closed when the behavior has returned.
func (ic *Independent) Done() <-chan struct{} { return ic.sc.done }

// Join waits for the behavior to finish and returns its error.
func (ic *Independent) Join(ctx context.Context) error {
	select {
	case <-ic.sc.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.err
}

// Pilot issues commands for one device inside an independent context.
type Pilot struct {
	s   *Swarm
	dev *device.Device
	ctx context.Context
}

// Device returns the device under control.
func (p *Pilot) Device() *device.Device { return p.dev }

// Send submits one command and blocks until it resolves. The context
// is checked first: once cancelled, nothing further reaches the wire,
// but a command already in flight is never aborted.
func (p *Pilot) Send(text string, class wire.Class) (string, error) {
	if err := p.ctx.Err(); err != nil {
		return "", err
	}
	return p.s.Send(p.ctx, p.dev, text, class)
}

// Telemetry returns the device's latest snapshot, nil if none yet.
func (p *Pilot) Telemetry() *device.Snapshot { return p.dev.Telemetry() }
