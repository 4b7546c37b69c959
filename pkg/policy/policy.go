// Package policy defines the acknowledgment timeout policy for drone
// commands.
//
// The firmware gives no upper bound on how long a command may take: a
// flip completes in a couple of seconds, a long curve can take tens.
// Rather than bake in a single number, the window is configurable per
// command class with per-opcode overrides, loadable from a YAML file:
//
//	control: 10s
//	set: 10s
//	read: 10s
//	overrides:
//	  flip: 15s
//	  curve: 30s
package policy

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flock-protocol/flock-go/pkg/wire"
)

// DefaultTimeout is the acknowledgment window applied when no class
// value or override matches.
const DefaultTimeout = 10 * time.Second

// ErrInvalidTimeout indicates a non-positive timeout in a policy file.
var ErrInvalidTimeout = errors.New("timeout must be positive")

// Policy holds acknowledgment timeout windows keyed by command class,
// with optional per-opcode overrides. The zero value is usable and
// resolves everything to DefaultTimeout.
type Policy struct {
	// Control is the window for flight maneuvers.
	Control time.Duration `yaml:"control"`

	// Set is the window for configuration commands.
	Set time.Duration `yaml:"set"`

	// Read is the window for query commands.
	Read time.Duration `yaml:"read"`

	// Overrides maps an opcode ("flip", "curve", ...) to a window that
	// takes precedence over the class value.
	Overrides map[string]time.Duration `yaml:"overrides"`
}

// Default returns the shipped policy: 10s per class, with longer
// windows for the maneuvers known to overrun it.
func Default() Policy {
	return Policy{
		Control: DefaultTimeout,
		Set:     DefaultTimeout,
		Read:    DefaultTimeout,
		Overrides: map[string]time.Duration{
			"flip":  15 * time.Second,
			"curve": 30 * time.Second,
			"jump":  30 * time.Second,
		},
	}
}

// Timeout resolves the acknowledgment window for a command. The opcode
// override wins, then the class value, then DefaultTimeout.
func (p Policy) Timeout(class wire.Class, opcode string) time.Duration {
	if d, ok := p.Overrides[opcode]; ok {
		return d
	}
	var d time.Duration
	switch class {
	case wire.ClassControl:
		d = p.Control
	case wire.ClassSet:
		d = p.Set
	case wire.ClassRead:
		d = p.Read
	}
	if d <= 0 {
		return DefaultTimeout
	}
	return d
}

// Validate reports the first non-positive window found. Zero class
// values are allowed (they fall back to DefaultTimeout); explicit
// overrides must be positive.
func (p Policy) Validate() error {
	if p.Control < 0 || p.Set < 0 || p.Read < 0 {
		return ErrInvalidTimeout
	}
	for opcode, d := range p.Overrides {
		if d <= 0 {
			return fmt.Errorf("override %q: %w", opcode, ErrInvalidTimeout)
		}
	}
	return nil
}

// Parse decodes a YAML policy document.
func Parse(data []byte) (Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("failed to parse policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Load reads and parses a YAML policy file.
func Load(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, err
	}
	return Parse(data)
}
