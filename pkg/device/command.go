package device

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/flock-protocol/flock-go/pkg/wire"
)

// Outcome is the completion state of a command.
type Outcome uint8

const (
	// OutcomePending indicates the command has not resolved yet.
	OutcomePending Outcome = 0
	// OutcomeAcked indicates the drone acknowledged success.
	OutcomeAcked Outcome = 1
	// OutcomeTimedOut indicates the policy window elapsed.
	OutcomeTimedOut Outcome = 2
	// OutcomeFailed indicates a device-reported error, a send failure,
	// or a device fault.
	OutcomeFailed Outcome = 3
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "PENDING"
	case OutcomeAcked:
		return "ACKED"
	case OutcomeTimedOut:
		return "TIMED_OUT"
	case OutcomeFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

var nextCommandID atomic.Uint64

// Command is one admitted wire command. It is owned by the device's
// pending slot from Admit until resolution. A command resolves exactly
// once: racing ack, timeout and fault paths all funnel through a
// sync.Once, so a late acknowledgment after a timeout is a no-op.
type Command struct {
	id          uint64
	text        string
	class       wire.Class
	submittedAt time.Time

	// gate, when non-nil, withholds the wire send until closed. Used
	// by synchronized groups so all participants release together.
	gate <-chan struct{}

	done chan struct{}
	once sync.Once

	// release frees the owning device's pending slot. Bound at
	// admission; Resolve runs it before Done becomes observable.
	release func()

	mu       sync.Mutex
	outcome  Outcome
	response string
	err      error
	sentAt   time.Time
	rtt      time.Duration
}

// NewCommand creates an ungated command, sent as soon as dispatched.
func NewCommand(text string, class wire.Class) *Command {
	return NewGatedCommand(text, class, nil)
}

// NewGatedCommand creates a command whose wire send is withheld until
// gate is closed. A nil gate means send immediately.
func NewGatedCommand(text string, class wire.Class, gate <-chan struct{}) *Command {
	return &Command{
		id:          nextCommandID.Add(1),
		text:        text,
		class:       class,
		submittedAt: time.Now(),
		gate:        gate,
		done:        make(chan struct{}),
	}
}

// ID returns the command's unique identifier.
func (c *Command) ID() uint64 { return c.id }

// Text returns the wire string.
func (c *Command) Text() string { return c.text }

// Class returns the command class.
func (c *Command) Class() wire.Class { return c.class }

// SubmittedAt returns the admission timestamp.
func (c *Command) SubmittedAt() time.Time { return c.submittedAt }

// Gate returns the release gate, nil for ungated commands.
func (c *Command) Gate() <-chan struct{} { return c.gate }

// Done is closed when the command has resolved.
func (c *Command) Done() <-chan struct{} { return c.done }

// MarkSent records the moment the command went out on the wire.
func (c *Command) MarkSent() {
	c.mu.Lock()
	c.sentAt = time.Now()
	c.mu.Unlock()
}

// Sent reports whether the command has reached the wire. The receive
// path uses this to distinguish a real acknowledgment from a stray
// datagram arriving while the command is still gated.
func (c *Command) Sent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.sentAt.IsZero()
}

// Resolve completes the command. The first call wins and closes Done;
// later calls report false and change nothing. The pending slot is
// freed before Done closes, so a waiter woken by the resolution can
// submit its next command immediately.
func (c *Command) Resolve(outcome Outcome, response string, err error) bool {
	resolved := false
	c.once.Do(func() {
		c.mu.Lock()
		c.outcome = outcome
		c.response = response
		c.err = err
		if !c.sentAt.IsZero() {
			c.rtt = time.Since(c.sentAt)
		}
		c.mu.Unlock()
		if c.release != nil {
			c.release()
		}
		close(c.done)
		resolved = true
	})
	return resolved
}

// Outcome returns the completion state, OutcomePending if unresolved.
func (c *Command) Outcome() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}

// Response returns the reply payload, if any.
func (c *Command) Response() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.response
}

// Err returns the resolution error: nil for OutcomeAcked, ErrTimeout,
// ErrFaulted, a *DeviceError, or a transport error.
func (c *Command) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// RTT returns the send-to-resolution latency, zero if the command
// never reached the wire.
func (c *Command) RTT() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rtt
}
