package swarm

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flock-protocol/flock-go/pkg/device"
	"github.com/flock-protocol/flock-go/pkg/failsafe"
	"github.com/flock-protocol/flock-go/pkg/log"
	"github.com/flock-protocol/flock-go/pkg/policy"
	"github.com/flock-protocol/flock-go/pkg/transport"
	"github.com/flock-protocol/flock-go/pkg/wire"
)

// DefaultGracePeriod bounds how long teardown and cancelled callers
// wait for an in-flight command to resolve on its own before giving up
// on it.
const DefaultGracePeriod = 5 * time.Second

const landCommand = "land"

// Config configures a Swarm. The zero value is usable: default timeout
// policy, well-known ports, slog default logger, no flight log capture.
type Config struct {
	// Policy is the acknowledgment timeout policy. The zero value falls
	// back to policy.DefaultTimeout for every command.
	Policy policy.Policy

	// Transport configures the UDP endpoint pair.
	Transport transport.Config

	// Logger receives operational log records (default: slog.Default).
	Logger *slog.Logger

	// FlightLog receives flight events for capture (default: none).
	FlightLog log.Logger

	// SessionID tags every flight event of this run. Generated when
	// empty.
	SessionID string

	// GracePeriod overrides DefaultGracePeriod.
	GracePeriod time.Duration

	// LinkLossThreshold is the silence window before a device is
	// faulted as lost (default failsafe.DefaultThreshold; negative
	// disables supervision).
	LinkLossThreshold time.Duration
}

// Swarm coordinates a fleet of drones over one shared command socket.
// All methods are safe for concurrent use.
type Swarm struct {
	policy  policy.Policy
	slog    *slog.Logger
	flog    log.Logger
	session string
	grace   time.Duration

	conn    *transport.Conn
	monitor *failsafe.Monitor

	mu          sync.Mutex
	devices     []*device.Device
	byAddr      map[netip.Addr]*device.Device
	queues      map[*device.Device]chan *device.Command
	scopes      map[*scope]struct{}
	discovering bool
	closed      bool

	closeCh chan struct{}
	wg      sync.WaitGroup
}

// New binds the sockets and starts the receive paths. The swarm has no
// devices until Discover runs.
func New(cfg Config) (*Swarm, error) {
	if err := cfg.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid timeout policy: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var flog log.Logger = cfg.FlightLog
	if flog == nil {
		flog = log.NoopLogger{}
	}
	session := cfg.SessionID
	if session == "" {
		session = log.NewSessionID()
	}
	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	threshold := cfg.LinkLossThreshold
	if threshold == 0 {
		threshold = failsafe.DefaultThreshold
	}

	conn, err := transport.Listen(cfg.Transport)
	if err != nil {
		return nil, err
	}

	s := &Swarm{
		policy:  cfg.Policy,
		slog:    logger,
		flog:    flog,
		session: session,
		grace:   grace,
		conn:    conn,
		byAddr:  make(map[netip.Addr]*device.Device),
		queues:  make(map[*device.Device]chan *device.Command),
		scopes:  make(map[*scope]struct{}),
		closeCh: make(chan struct{}),
	}
	s.monitor = failsafe.NewMonitor(threshold, s.onLinkLoss)

	conn.Start(s.onReply, s.onTelemetry)

	s.slog.Info("swarm up",
		"session", session,
		"commandPort", conn.CommandPort(),
		"telemetryPort", conn.TelemetryPort())
	return s, nil
}

// SessionID returns the flight session identifier.
func (s *Swarm) SessionID() string { return s.session }

// CommandPort returns the bound local command port.
func (s *Swarm) CommandPort() int { return s.conn.CommandPort() }

// TelemetryPort returns the bound local telemetry port, 0 if disabled.
func (s *Swarm) TelemetryPort() int { return s.conn.TelemetryPort() }

// Devices returns the fleet in discovery order.
func (s *Swarm) Devices() []*device.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*device.Device, len(s.devices))
	copy(out, s.devices)
	return out
}

// Device returns the device with the given fleet number (1-based).
func (s *Swarm) Device(num int) (*device.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.devices {
		if d.Num() == num {
			return d, nil
		}
	}
	return nil, fmt.Errorf("device %d: %w", num, ErrUnknownDevice)
}

// DeviceBySerial returns the device with the given serial number.
func (s *Swarm) DeviceBySerial(sn string) (*device.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.devices {
		if d.Serial() == sn {
			return d, nil
		}
	}
	return nil, fmt.Errorf("serial %q: %w", sn, ErrUnknownDevice)
}

func (s *Swarm) deviceByIP(a netip.Addr) *device.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byAddr[a]
}

func (s *Swarm) deviceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.devices)
}

func (s *Swarm) sortDevices() {
	s.mu.Lock()
	defer s.mu.Unlock()
	sort.Slice(s.devices, func(i, j int) bool {
		return s.devices[i].Num() < s.devices[j].Num()
	})
}

// deviceKey identifies a device for link supervision.
func deviceKey(dev *device.Device) string {
	return dev.Addr().Addr().String()
}

type admitMode uint8

const (
	admitNormal    admitMode = 0
	admitHandshake admitMode = 1
)

// submit claims the device's pending slot for cmd and hands it to the
// dispatch loop. Rejections (ErrNotReady, ErrBusy, ErrSwarmClosed)
// are immediate; nothing is buffered. Admission and enqueue run under
// the same lock Close takes to flip closed, so no command can land in
// a queue once shutdown has begun.
func (s *Swarm) submit(dev *device.Device, cmd *device.Command, mode admitMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSwarmClosed
	}
	q, ok := s.queues[dev]
	if !ok {
		return ErrUnknownDevice
	}

	var err error
	if mode == admitHandshake {
		err = dev.AdmitHandshake(cmd)
	} else {
		err = dev.Admit(cmd)
	}
	if err != nil {
		return err
	}

	// The slot admits one command at a time, so the queue has room;
	// the dispatch loop drains it without taking s.mu.
	q <- cmd
	return nil
}

// Send submits one command to a device and blocks until it resolves.
// The reply payload is returned for read commands. A cancelled ctx
// does not abort the command in flight; after the grace period Send
// returns the ctx error and the command resolves in the background.
func (s *Swarm) Send(ctx context.Context, dev *device.Device, text string, class wire.Class) (string, error) {
	cmd := device.NewCommand(text, class)
	if err := s.submit(dev, cmd, admitNormal); err != nil {
		return "", fmt.Errorf("submit %q to device %d: %w", text, dev.Num(), err)
	}
	return s.await(ctx, dev, cmd)
}

func (s *Swarm) await(ctx context.Context, dev *device.Device, cmd *device.Command) (string, error) {
	select {
	case <-cmd.Done():
	case <-ctx.Done():
		timer := time.NewTimer(s.grace)
		defer timer.Stop()
		select {
		case <-cmd.Done():
		case <-timer.C:
			s.slog.Warn("caller gave up on in-flight command",
				"device", dev.Num(), "command", cmd.Text())
			return "", ctx.Err()
		}
	}

	if err := cmd.Err(); err != nil {
		return cmd.Response(), fmt.Errorf("device %d: %q: %w", dev.Num(), cmd.Text(), err)
	}
	return cmd.Response(), nil
}

// WaitIdle blocks until no device has a command in flight.
func (s *Swarm) WaitIdle(ctx context.Context) error {
	for {
		idle := true
		for _, dev := range s.Devices() {
			cmd := dev.Pending()
			if cmd == nil {
				continue
			}
			idle = false
			select {
			case <-cmd.Done():
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if idle {
			return nil
		}
		// Re-check; new commands may have been admitted meanwhile.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// Close tears the swarm down: cancels and joins every execution scope
// within the grace period, issues a best-effort landing to every drone
// still in service, then shuts the sockets. Idempotent.
func (s *Swarm) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	scopes := make([]*scope, 0, len(s.scopes))
	for sc := range s.scopes {
		scopes = append(scopes, sc)
	}
	devices := make([]*device.Device, len(s.devices))
	copy(devices, s.devices)
	s.mu.Unlock()

	for _, sc := range scopes {
		if sc.cancel != nil {
			sc.cancel()
		}
	}

	graceCtx, cancel := context.WithTimeout(ctx, s.grace)
	defer cancel()
	var eg errgroup.Group
	for _, sc := range scopes {
		sc := sc
		eg.Go(func() error {
			select {
			case <-sc.done:
				return nil
			case <-graceCtx.Done():
				return graceCtx.Err()
			}
		})
	}
	joinErr := eg.Wait()
	if joinErr != nil {
		s.slog.Warn("grace period elapsed with scopes still active",
			"scopes", len(scopes))
	}

	// Best-effort landing while the socket is still up. Faulted
	// devices already got theirs on the fault path.
	for _, dev := range devices {
		st := dev.State()
		if st != device.StateReady && st != device.StateConnecting {
			continue
		}
		if err := s.conn.Send(dev.Addr(), landCommand); err == nil {
			s.slog.Info("landing on shutdown", "device", dev.Num())
		}
	}

	s.monitor.Stop()
	close(s.closeCh)
	connErr := s.conn.Close()
	s.wg.Wait()

	s.slog.Info("swarm closed", "session", s.session)
	if joinErr != nil {
		return fmt.Errorf("scopes still active at shutdown: %w", joinErr)
	}
	return connErr
}

// onReply handles command-socket datagrams, demultiplexed by sender
// address. Runs on the single receive goroutine.
func (s *Swarm) onReply(from netip.AddrPort, text string) {
	dev := s.deviceByIP(from.Addr())
	if dev == nil {
		if s.adoptIfDiscovering(from, text) {
			return
		}
		s.slog.Debug("datagram from unknown address",
			"from", from.String(), "text", text)
		ev := s.event(nil, log.DirectionIn, log.CategoryError)
		ev.RemoteAddr = from.String()
		ev.Error = &log.ErrorEventData{
			Message: "datagram from unknown address",
			Context: text,
		}
		s.flog.Log(ev)
		return
	}

	dev.Touch()
	s.monitor.Feed(deviceKey(dev))

	cmd := dev.Pending()
	if cmd == nil || !cmd.Sent() {
		// Stray probe acks keep arriving while the sweep runs.
		s.slog.Debug("reply with no command in flight",
			"device", dev.Num(), "text", text)
		return
	}

	// The protocol carries no correlation ID; a reply is matched to
	// the pending command by source address alone. A late
	// acknowledgment for a timed-out command that arrives after the
	// next command went out is attributed to the new command.
	ack := wire.DecodeAck(cmd.Class(), text)
	var resolved bool
	if ack.OK {
		resolved = cmd.Resolve(device.OutcomeAcked, ack.Response, nil)
	} else {
		resolved = cmd.Resolve(device.OutcomeFailed, ack.Response,
			&device.DeviceError{Code: ack.Response})
	}
	if !resolved {
		s.slog.Warn("late acknowledgment dropped",
			"device", dev.Num(), "command", cmd.Text(), "text", text)
		ev := s.event(dev, log.DirectionIn, log.CategoryError)
		ev.Error = &log.ErrorEventData{
			Message: "late acknowledgment dropped",
			Context: cmd.Text(),
		}
		s.flog.Log(ev)
	}
}

// onTelemetry handles telemetry datagrams. Telemetry never touches
// command state.
func (s *Swarm) onTelemetry(from netip.AddrPort, raw string) {
	fields, ok := wire.ParseTelemetry(raw)
	if !ok {
		return
	}
	dev := s.deviceByIP(from.Addr())
	if dev == nil {
		return
	}
	dev.UpdateTelemetry(fields)
	s.monitor.Feed(deviceKey(dev))

	ev := s.event(dev, log.DirectionIn, log.CategoryTelemetry)
	ev.Telemetry = &log.TelemetryEvent{Fields: fields}
	s.flog.Log(ev)
}

// onLinkLoss faults a device that went silent past the threshold and
// fires one last landing command at it.
func (s *Swarm) onLinkLoss(key string) {
	addr, err := netip.ParseAddr(key)
	if err != nil {
		return
	}
	dev := s.deviceByIP(addr)
	if dev == nil {
		return
	}

	s.slog.Error("link lost, removing device from service",
		"device", dev.Num(), "serial", dev.Serial(), "addr", key,
		"lastSeen", dev.LastSeen())
	old := dev.State()
	dev.MarkFaulted("link lost")
	s.logState(dev, old, device.StateFaulted, "link lost")

	_ = s.conn.Send(dev.Addr(), landCommand)
}
