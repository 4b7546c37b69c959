package failsafe

import (
	"sync"
	"time"
)

// DefaultThreshold is the silence window after which a watched device
// is considered lost. Telemetry streams at 10Hz when enabled, so this
// allows for substantial packet loss before tripping.
const DefaultThreshold = 15 * time.Second

// Monitor supervises per-device link liveness. The zero value is not
// usable; construct with NewMonitor.
type Monitor struct {
	threshold time.Duration
	onTrip    func(key string)

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// NewMonitor creates a monitor that calls onTrip (on a timer
// goroutine) when a watched device has been silent for threshold.
// A non-positive threshold disables supervision: Watch and Feed
// become no-ops.
func NewMonitor(threshold time.Duration, onTrip func(key string)) *Monitor {
	return &Monitor{
		threshold: threshold,
		onTrip:    onTrip,
		timers:    make(map[string]*time.Timer),
	}
}

// Enabled reports whether supervision is active.
func (m *Monitor) Enabled() bool {
	return m.threshold > 0
}

// Watch arms the silence timer for a device. Watching an already
// watched device resets its timer.
func (m *Monitor) Watch(key string) {
	if !m.Enabled() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}
	if t, ok := m.timers[key]; ok {
		t.Reset(m.threshold)
		return
	}
	m.timers[key] = time.AfterFunc(m.threshold, func() {
		m.trip(key)
	})
}

// Feed resets the silence timer for a device. Unwatched devices are
// ignored, so the receive path can feed unconditionally.
func (m *Monitor) Feed(key string) {
	if !m.Enabled() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.timers[key]; ok {
		t.Reset(m.threshold)
	}
}

// Unwatch disarms the timer for a device, e.g. after an orderly fault.
func (m *Monitor) Unwatch(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.timers[key]; ok {
		t.Stop()
		delete(m.timers, key)
	}
}

// Stop disarms all timers. No trips fire after Stop returns.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	for key, t := range m.timers {
		t.Stop()
		delete(m.timers, key)
	}
}

// trip fires the callback for a silent device. The timer is removed
// first so a concurrent Feed cannot rearm a tripped device.
func (m *Monitor) trip(key string) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	if _, ok := m.timers[key]; !ok {
		m.mu.Unlock()
		return
	}
	delete(m.timers, key)
	onTrip := m.onTrip
	m.mu.Unlock()

	if onTrip != nil {
		onTrip(key)
	}
}
