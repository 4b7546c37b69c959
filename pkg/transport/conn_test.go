package transport

import (
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"
)

func newTestConn(t *testing.T) *Conn {
	t.Helper()
	c, err := Listen(Config{
		CommandPort:   PortEphemeral,
		TelemetryPort: PortEphemeral,
		ListenHost:    "127.0.0.1",
	})
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// peerSocket is a bare UDP socket standing in for a drone.
func peerSocket(t *testing.T) *net.UDPConn {
	t.Helper()
	sock, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("peer socket: %v", err)
	}
	t.Cleanup(func() { sock.Close() })
	return sock
}

func TestSendAndReply(t *testing.T) {
	c := newTestConn(t)
	peer := peerSocket(t)
	peerAddr := peer.LocalAddr().(*net.UDPAddr).AddrPort()

	replies := make(chan string, 1)
	c.Start(func(from netip.AddrPort, text string) {
		replies <- text
	}, nil)

	if err := c.Send(peerAddr, "command"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	// The peer should see the command and reply to its source.
	buf := make([]byte, 64)
	peer.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, from, err := peer.ReadFromUDPAddrPort(buf)
	if err != nil {
		t.Fatalf("peer read: %v", err)
	}
	if got := string(buf[:n]); got != "command" {
		t.Errorf("peer received %q, want %q", got, "command")
	}
	if _, err := peer.WriteToUDPAddrPort([]byte("ok"), from); err != nil {
		t.Fatalf("peer reply: %v", err)
	}

	select {
	case got := <-replies:
		if got != "ok" {
			t.Errorf("reply = %q, want %q", got, "ok")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reply")
	}
}

func TestTelemetryPath(t *testing.T) {
	c := newTestConn(t)
	peer := peerSocket(t)

	telemetry := make(chan string, 1)
	c.Start(nil, func(from netip.AddrPort, raw string) {
		telemetry <- raw
	})

	teleAddr := netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), uint16(c.TelemetryPort()))
	if _, err := peer.WriteToUDPAddrPort([]byte("bat:87;h:30;"), teleAddr); err != nil {
		t.Fatalf("peer telemetry send: %v", err)
	}

	select {
	case got := <-telemetry:
		if got != "bat:87;h:30;" {
			t.Errorf("telemetry = %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for telemetry")
	}
}

func TestTelemetryDisabled(t *testing.T) {
	c, err := Listen(Config{
		CommandPort:      PortEphemeral,
		DisableTelemetry: true,
		ListenHost:       "127.0.0.1",
	})
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer c.Close()

	if c.TelemetryPort() != 0 {
		t.Errorf("TelemetryPort() = %d, want 0 when disabled", c.TelemetryPort())
	}
}

func TestCloseIdempotent(t *testing.T) {
	c := newTestConn(t)
	c.Start(nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Close()
		}()
	}
	wg.Wait()

	addr := netip.MustParseAddrPort("127.0.0.1:8889")
	if err := c.Send(addr, "land"); err != ErrConnClosed {
		t.Errorf("Send() after Close = %v, want ErrConnClosed", err)
	}
}
