// Package mock provides a scriptable in-process drone for testing.
//
// Each drone is a real UDP responder on its own loopback address
// (127.0.0.N), so a coordinator under test can demultiplex replies by
// source IP exactly as it does with a real fleet. Behavior is
// scripted per drone: acknowledge, report an error, stay silent, or
// delay.
package mock

import (
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"
)

// Handler decides the reply for one received command. Return ok=false
// to stay silent for that command.
type Handler func(text string) (reply string, ok bool)

// Received is one command datagram the drone saw.
type Received struct {
	// Text is the command wire string.
	Text string

	// At is the arrival time.
	At time.Time

	// From is the coordinator's command endpoint.
	From netip.AddrPort
}

// hostCounter hands out distinct loopback addresses, one per drone.
var hostCounter atomic.Uint32

// Drone is a mock drone. Create with NewDrone; Close releases the
// socket.
type Drone struct {
	serial string

	conn *net.UDPConn
	addr netip.AddrPort

	mu       sync.Mutex
	received []Received
	handler  Handler
	silent   bool
	delay    time.Duration

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewDrone starts a drone that acknowledges every command with "ok"
// and answers "sn?" with its serial. Script other behavior with
// SetHandler, SetSilent and SetDelay.
func NewDrone(serial string) (*Drone, error) {
	host := fmt.Sprintf("127.0.0.%d", 1+hostCounter.Add(1))
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP(host)})
	if err != nil {
		return nil, fmt.Errorf("bind mock drone: %w", err)
	}

	d := &Drone{
		serial: serial,
		conn:   conn,
		addr:   conn.LocalAddr().(*net.UDPAddr).AddrPort(),
	}
	d.wg.Add(1)
	go d.serve()
	return d, nil
}

// Serial returns the drone's serial number.
func (d *Drone) Serial() string { return d.serial }

// Addr returns the drone's command endpoint.
func (d *Drone) Addr() netip.AddrPort { return d.addr }

// SetHandler overrides the default reply behavior.
func (d *Drone) SetHandler(h Handler) {
	d.mu.Lock()
	d.handler = h
	d.mu.Unlock()
}

// SetSilent makes the drone swallow commands without replying.
func (d *Drone) SetSilent(on bool) {
	d.mu.Lock()
	d.silent = on
	d.mu.Unlock()
}

// SetDelay postpones every reply by delay.
func (d *Drone) SetDelay(delay time.Duration) {
	d.mu.Lock()
	d.delay = delay
	d.mu.Unlock()
}

// Received returns all commands seen so far, in arrival order.
func (d *Drone) Received() []Received {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Received, len(d.received))
	copy(out, d.received)
	return out
}

// Commands returns the wire strings of all received commands.
func (d *Drone) Commands() []string {
	recv := d.Received()
	out := make([]string, len(recv))
	for i, r := range recv {
		out[i] = r.Text
	}
	return out
}

// SendTelemetry emits one telemetry datagram to the coordinator's
// telemetry endpoint, from the drone's own address.
func (d *Drone) SendTelemetry(to netip.AddrPort, raw string) error {
	_, err := d.conn.WriteToUDPAddrPort([]byte(raw), to)
	return err
}

// Close releases the socket and stops the serve loop.
func (d *Drone) Close() {
	d.closeOnce.Do(func() {
		d.conn.Close()
		d.wg.Wait()
	})
}

func (d *Drone) serve() {
	defer d.wg.Done()

	buf := make([]byte, 1024)
	for {
		n, from, err := d.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			return
		}
		text := string(buf[:n])

		d.mu.Lock()
		d.received = append(d.received, Received{Text: text, At: time.Now(), From: from})
		handler, silent, delay := d.handler, d.silent, d.delay
		d.mu.Unlock()

		if silent {
			continue
		}

		reply, ok := d.reply(handler, text)
		if !ok {
			continue
		}
		if delay > 0 {
			go func() {
				time.Sleep(delay)
				d.conn.WriteToUDPAddrPort([]byte(reply), from)
			}()
			continue
		}
		d.conn.WriteToUDPAddrPort([]byte(reply), from)
	}
}

func (d *Drone) reply(handler Handler, text string) (string, bool) {
	if handler != nil {
		return handler(text)
	}
	if text == "sn?" {
		return d.serial, true
	}
	return "ok", true
}
