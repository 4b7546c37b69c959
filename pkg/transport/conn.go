package transport

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"

	"github.com/flock-protocol/flock-go/pkg/wire"
)

// ErrConnClosed is returned by Send after Close.
var ErrConnClosed = errors.New("transport closed")

// PortEphemeral requests an OS-assigned port instead of the
// well-known one. Used by tests that run against mock drones.
const PortEphemeral = -1

// Config configures the UDP endpoint pair.
type Config struct {
	// CommandPort is the local port for the bidirectional command
	// socket (default: wire.CommandPort, or PortEphemeral for an
	// OS-assigned port).
	CommandPort int

	// TelemetryPort is the local port for the receive-only telemetry
	// socket (default: wire.TelemetryPort, or PortEphemeral).
	TelemetryPort int

	// DisableTelemetry skips binding the telemetry socket.
	DisableTelemetry bool

	// ListenHost restricts the bind address (default: all interfaces).
	ListenHost string
}

// ReplyHandler receives command-socket datagrams, keyed by the sender.
type ReplyHandler func(from netip.AddrPort, text string)

// TelemetryHandler receives raw telemetry datagrams.
type TelemetryHandler func(from netip.AddrPort, raw string)

// Conn owns the command and telemetry sockets. Safe for concurrent
// Send from multiple goroutines; Close is idempotent.
type Conn struct {
	cmd  *net.UDPConn
	tele *net.UDPConn

	closeCh   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Listen binds the sockets described by cfg. Receive loops do not run
// until Start is called.
func Listen(cfg Config) (*Conn, error) {
	cmd, err := net.ListenUDP("udp4", &net.UDPAddr{
		IP:   net.ParseIP(cfg.ListenHost),
		Port: resolvePort(cfg.CommandPort, wire.CommandPort),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to bind command socket: %w", err)
	}

	c := &Conn{
		cmd:     cmd,
		closeCh: make(chan struct{}),
	}

	if !cfg.DisableTelemetry {
		tele, err := net.ListenUDP("udp4", &net.UDPAddr{
			IP:   net.ParseIP(cfg.ListenHost),
			Port: resolvePort(cfg.TelemetryPort, wire.TelemetryPort),
		})
		if err != nil {
			cmd.Close()
			return nil, fmt.Errorf("failed to bind telemetry socket: %w", err)
		}
		c.tele = tele
	}

	return c, nil
}

// resolvePort maps the config value to a bindable port: zero takes
// the well-known default, PortEphemeral asks the OS for one.
func resolvePort(configured, wellKnown int) int {
	switch configured {
	case 0:
		return wellKnown
	case PortEphemeral:
		return 0
	default:
		return configured
	}
}

// Start launches the receive loops. onTelemetry may be nil when the
// telemetry socket is disabled or unwanted.
func (c *Conn) Start(onReply ReplyHandler, onTelemetry TelemetryHandler) {
	c.wg.Add(1)
	go c.receiveLoop(c.cmd, func(from netip.AddrPort, text string) {
		if onReply != nil {
			onReply(from, text)
		}
	})

	if c.tele != nil {
		c.wg.Add(1)
		go c.receiveLoop(c.tele, func(from netip.AddrPort, text string) {
			if onTelemetry != nil {
				onTelemetry(from, text)
			}
		})
	}
}

// receiveLoop reads datagrams until the socket is closed. Transient
// read errors are skipped: a malformed or oversized datagram must
// never take the link down.
func (c *Conn) receiveLoop(sock *net.UDPConn, deliver func(netip.AddrPort, string)) {
	defer c.wg.Done()

	buf := make([]byte, wire.MaxDatagram)
	for {
		n, from, err := sock.ReadFromUDPAddrPort(buf)
		if err != nil {
			select {
			case <-c.closeCh:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		deliver(from, string(buf[:n]))
	}
}

// Send transmits one command datagram.
func (c *Conn) Send(addr netip.AddrPort, text string) error {
	select {
	case <-c.closeCh:
		return ErrConnClosed
	default:
	}

	_, err := c.cmd.WriteToUDPAddrPort([]byte(text), addr)
	if err != nil {
		return fmt.Errorf("send to %s: %w", addr, err)
	}
	return nil
}

// CommandPort returns the bound local command port.
func (c *Conn) CommandPort() int {
	return c.cmd.LocalAddr().(*net.UDPAddr).Port
}

// TelemetryPort returns the bound local telemetry port, 0 if disabled.
func (c *Conn) TelemetryPort() int {
	if c.tele == nil {
		return 0
	}
	return c.tele.LocalAddr().(*net.UDPAddr).Port
}

// Close shuts both sockets and waits for the receive loops to exit.
// Safe to call multiple times.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.cmd.Close()
		if c.tele != nil {
			if terr := c.tele.Close(); err == nil {
				err = terr
			}
		}
		c.wg.Wait()
	})
	return err
}
