package device

import (
	"errors"
	"net/netip"
	"sync"
	"testing"

	"github.com/flock-protocol/flock-go/pkg/wire"
)

func testAddr() netip.AddrPort {
	return netip.MustParseAddrPort("192.168.10.130:8889")
}

func TestNewDeviceState(t *testing.T) {
	d := New(testAddr())

	if d.State() != StateConnecting {
		t.Errorf("State() = %v, want StateConnecting", d.State())
	}
	if d.Pending() != nil {
		t.Error("new device should have an empty pending slot")
	}
	if d.Telemetry() != nil {
		t.Error("new device should have no telemetry snapshot")
	}
}

func TestAdmitRequiresReady(t *testing.T) {
	d := New(testAddr())
	cmd := NewCommand("takeoff", wire.ClassControl)

	if err := d.Admit(cmd); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Admit() on connecting device = %v, want ErrNotReady", err)
	}

	d.MarkReady()
	if err := d.Admit(cmd); err != nil {
		t.Fatalf("Admit() on ready device = %v", err)
	}
}

func TestAdmitBusy(t *testing.T) {
	d := New(testAddr())
	d.MarkReady()

	first := NewCommand("forward 50", wire.ClassControl)
	if err := d.Admit(first); err != nil {
		t.Fatalf("Admit() = %v", err)
	}

	second := NewCommand("back 50", wire.ClassControl)
	if err := d.Admit(second); !errors.Is(err, ErrBusy) {
		t.Fatalf("Admit() with pending command = %v, want ErrBusy", err)
	}

	// Resolution frees the slot; no separate release step.
	first.Resolve(OutcomeAcked, "ok", nil)
	if err := d.Admit(second); err != nil {
		t.Fatalf("Admit() after resolution = %v", err)
	}
}

func TestResolveReleasesSlot(t *testing.T) {
	d := New(testAddr())
	d.MarkReady()

	cmd := NewCommand("up 50", wire.ClassControl)
	if err := d.Admit(cmd); err != nil {
		t.Fatalf("Admit() = %v", err)
	}

	// The slot must be free by the time Done is observable, so a
	// caller woken by the resolution never sees ErrBusy.
	cmd.Resolve(OutcomeAcked, "ok", nil)
	select {
	case <-cmd.Done():
	default:
		t.Fatal("Done() not closed after resolution")
	}
	if d.Pending() != nil {
		t.Error("slot still held after resolution")
	}
	if err := d.Admit(NewCommand("down 50", wire.ClassControl)); err != nil {
		t.Errorf("Admit() immediately after resolution = %v", err)
	}
}

func TestSinglePendingUnderConcurrency(t *testing.T) {
	d := New(testAddr())
	d.MarkReady()

	const callers = 32
	var admitted int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cmd := NewCommand("cw 90", wire.ClassControl)
			if err := d.Admit(cmd); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 1 {
		t.Errorf("admitted = %d concurrent commands, want exactly 1", admitted)
	}
}

func TestResolveExactlyOnce(t *testing.T) {
	cmd := NewCommand("flip l", wire.ClassControl)

	if !cmd.Resolve(OutcomeTimedOut, "", ErrTimeout) {
		t.Fatal("first Resolve() = false, want true")
	}
	// A late acknowledgment must not overwrite the timeout.
	if cmd.Resolve(OutcomeAcked, "ok", nil) {
		t.Fatal("second Resolve() = true, want false")
	}

	if cmd.Outcome() != OutcomeTimedOut {
		t.Errorf("Outcome() = %v, want OutcomeTimedOut", cmd.Outcome())
	}
	if !errors.Is(cmd.Err(), ErrTimeout) {
		t.Errorf("Err() = %v, want ErrTimeout", cmd.Err())
	}
	select {
	case <-cmd.Done():
	default:
		t.Error("Done() not closed after resolution")
	}
}

func TestMarkFaultedFailsPending(t *testing.T) {
	d := New(testAddr())
	d.MarkReady()

	cmd := NewCommand("land", wire.ClassControl)
	if err := d.Admit(cmd); err != nil {
		t.Fatalf("Admit() = %v", err)
	}

	failed := d.MarkFaulted("link lost")

	if failed != cmd {
		t.Error("MarkFaulted() should return the pending command it failed")
	}
	if d.State() != StateFaulted {
		t.Errorf("State() = %v, want StateFaulted", d.State())
	}
	if d.FaultReason() != "link lost" {
		t.Errorf("FaultReason() = %q, want %q", d.FaultReason(), "link lost")
	}
	if !errors.Is(cmd.Err(), ErrFaulted) {
		t.Errorf("pending command Err() = %v, want ErrFaulted", cmd.Err())
	}
	if d.Pending() != nil {
		t.Error("slot not cleared by fault")
	}

	// Faults are terminal.
	d.MarkReady()
	if d.State() != StateFaulted {
		t.Error("MarkReady() revived a faulted device")
	}
}

func TestTelemetrySnapshot(t *testing.T) {
	d := New(testAddr())

	fields, ok := wire.ParseTelemetry("bat:87;h:30;")
	if !ok {
		t.Fatal("ParseTelemetry failed")
	}
	d.UpdateTelemetry(fields)

	snap := d.Telemetry()
	if snap == nil {
		t.Fatal("Telemetry() = nil after update")
	}
	if bat, _ := snap.Fields.Int("bat"); bat != 87 {
		t.Errorf("bat = %d, want 87", bat)
	}
	if snap.At.IsZero() {
		t.Error("snapshot timestamp not set")
	}
	if d.LastSeen().IsZero() {
		t.Error("LastSeen() not updated by telemetry")
	}

	// Telemetry never touches command state.
	if d.Pending() != nil || d.State() != StateConnecting {
		t.Error("telemetry update disturbed command or connection state")
	}
}

func TestDeviceError(t *testing.T) {
	err := &DeviceError{Code: "error Motor stop"}
	if err.Error() != "device error: error Motor stop" {
		t.Errorf("Error() = %q", err.Error())
	}

	var devErr *DeviceError
	wrapped := error(err)
	if !errors.As(wrapped, &devErr) {
		t.Error("errors.As failed to match *DeviceError")
	}
}
