package device

import (
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flock-protocol/flock-go/pkg/wire"
)

// State is the connection state of a device.
type State uint8

const (
	// StateDisconnected indicates the device has not been contacted.
	StateDisconnected State = 0
	// StateConnecting indicates the device answered the probe but has
	// not completed the identification handshake.
	StateConnecting State = 1
	// StateReady indicates the device accepts commands.
	StateReady State = 2
	// StateFaulted indicates the device was removed from service.
	StateFaulted State = 3
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateReady:
		return "READY"
	case StateFaulted:
		return "FAULTED"
	default:
		return "UNKNOWN"
	}
}

// Snapshot is one decoded telemetry datagram with its arrival time.
// Snapshots are immutable once published; readers never see a
// partially updated one.
type Snapshot struct {
	Fields wire.Fields
	At     time.Time
}

// Device is the handle for one drone: identity, connection state, the
// single pending-command slot, and the last telemetry snapshot.
type Device struct {
	addr netip.AddrPort

	mu          sync.Mutex
	serial      string
	num         int
	state       State
	pending     *Command
	faultReason string

	snapshot atomic.Pointer[Snapshot]
	lastSeen atomic.Int64 // unix nanos of the last datagram from this device
}

// New creates a handle for a device that answered the discovery probe.
// It starts in StateConnecting; MarkReady admits it to service once
// identified.
func New(addr netip.AddrPort) *Device {
	return &Device{addr: addr, state: StateConnecting}
}

// Addr returns the device's command endpoint.
func (d *Device) Addr() netip.AddrPort { return d.addr }

// Serial returns the drone serial number, empty until identification.
func (d *Device) Serial() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.serial
}

// SetSerial records the serial number reported by "sn?".
func (d *Device) SetSerial(sn string) {
	d.mu.Lock()
	d.serial = sn
	d.mu.Unlock()
}

// Num returns the fleet number assigned at discovery (1-based), 0 if
// unassigned.
func (d *Device) Num() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.num
}

// SetNum assigns the fleet number.
func (d *Device) SetNum(n int) {
	d.mu.Lock()
	d.num = n
	d.mu.Unlock()
}

// State returns the connection state.
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// FaultReason returns why the device was faulted, empty otherwise.
func (d *Device) FaultReason() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.faultReason
}

// MarkReady admits the device to service. It is a no-op on a faulted
// device: faults are terminal.
func (d *Device) MarkReady() {
	d.mu.Lock()
	if d.state != StateFaulted {
		d.state = StateReady
	}
	d.mu.Unlock()
}

// MarkFaulted removes the device from service and fails any pending
// command with ErrFaulted. It returns the command it failed, nil if
// the slot was empty, so the caller can surface the abort.
func (d *Device) MarkFaulted(reason string) *Command {
	d.mu.Lock()
	d.state = StateFaulted
	d.faultReason = reason
	cmd := d.pending
	d.pending = nil
	d.mu.Unlock()

	if cmd != nil {
		cmd.Resolve(OutcomeFailed, "", ErrFaulted)
	}
	return cmd
}

// Admit claims the pending slot for cmd. It fails with ErrNotReady
// unless the device is in StateReady, and with ErrBusy while another
// command holds the slot. On success the command is pending; its
// resolution releases the slot.
func (d *Device) Admit(cmd *Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateReady {
		return ErrNotReady
	}
	if d.pending != nil {
		return ErrBusy
	}
	d.pending = cmd
	cmd.release = func() { d.Finish(cmd) }
	return nil
}

// AdmitHandshake claims the pending slot during the identification
// handshake, while the device is still StateConnecting. Only the
// discovery path uses this; user commands go through Admit.
func (d *Device) AdmitHandshake(cmd *Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateConnecting && d.state != StateReady {
		return ErrNotReady
	}
	if d.pending != nil {
		return ErrBusy
	}
	d.pending = cmd
	cmd.release = func() { d.Finish(cmd) }
	return nil
}

// Pending returns the command currently holding the slot, nil if idle.
func (d *Device) Pending() *Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Finish releases the pending slot if cmd still holds it. Resolution
// calls this itself; it is idempotent and safe after a fault already
// cleared the slot.
func (d *Device) Finish(cmd *Command) {
	d.mu.Lock()
	if d.pending == cmd {
		d.pending = nil
	}
	d.mu.Unlock()
}

// UpdateTelemetry publishes a new telemetry snapshot. Called only by
// the transport receive path.
func (d *Device) UpdateTelemetry(fields wire.Fields) {
	d.snapshot.Store(&Snapshot{Fields: fields, At: time.Now()})
	d.Touch()
}

// Telemetry returns the most recent snapshot, nil if none arrived yet.
func (d *Device) Telemetry() *Snapshot {
	return d.snapshot.Load()
}

// Touch records that a datagram arrived from the device.
func (d *Device) Touch() {
	d.lastSeen.Store(time.Now().UnixNano())
}

// LastSeen returns when the device was last heard from, zero time if
// never.
func (d *Device) LastSeen() time.Time {
	ns := d.lastSeen.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
