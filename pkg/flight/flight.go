package flight

import (
	"context"

	"github.com/flock-protocol/flock-go/pkg/swarm"
)

// Target selects which drones a catalogue method addresses.
type Target struct {
	num int
	all bool
}

// All targets every ready drone as a synchronized broadcast.
func All() Target { return Target{all: true} }

// To targets one drone by fleet number.
func To(num int) Target { return Target{num: num} }

// Flight wraps a Swarm with the maneuver catalogue. Methods block
// until the whole target has resolved.
type Flight struct {
	s *swarm.Swarm
}

// New wraps a discovered swarm.
func New(s *swarm.Swarm) *Flight { return &Flight{s: s} }

// Swarm returns the underlying engine, for Sync blocks and independent
// contexts.
func (f *Flight) Swarm() *swarm.Swarm { return f.s }

// Exec submits an encoded command to the target. Passing the encoder's
// error through lets calls chain: f.Exec(ctx, t, flight.Forward(50)).
func (f *Flight) Exec(ctx context.Context, t Target, cmd Command, err error) error {
	if err != nil {
		return err
	}
	if t.all {
		return f.s.Broadcast(ctx, cmd.Text, cmd.Class)
	}
	dev, err := f.s.Device(t.num)
	if err != nil {
		return err
	}
	_, err = f.s.Send(ctx, dev, cmd.Text, cmd.Class)
	return err
}

// readRaw submits a read command to one drone and returns the reply.
func (f *Flight) readRaw(ctx context.Context, num int, cmd Command) (string, error) {
	dev, err := f.s.Device(num)
	if err != nil {
		return "", err
	}
	return f.s.Send(ctx, dev, cmd.Text, cmd.Class)
}

// TakeOff starts the motors and climbs to hover height.
func (f *Flight) TakeOff(ctx context.Context, t Target) error {
	return f.Exec(ctx, t, TakeOff(), nil)
}

// Land descends and stops the motors.
func (f *Flight) Land(ctx context.Context, t Target) error {
	return f.Exec(ctx, t, Land(), nil)
}

// Stop halts all movement and hovers.
func (f *Flight) Stop(ctx context.Context, t Target) error {
	return f.Exec(ctx, t, Stop(), nil)
}

// Emergency cuts the motors immediately.
func (f *Flight) Emergency(ctx context.Context, t Target) error {
	return f.Exec(ctx, t, Emergency(), nil)
}

// Up climbs by cm.
func (f *Flight) Up(ctx context.Context, t Target, cm int) error {
	cmd, err := Up(cm)
	return f.Exec(ctx, t, cmd, err)
}

// Down descends by cm.
func (f *Flight) Down(ctx context.Context, t Target, cm int) error {
	cmd, err := Down(cm)
	return f.Exec(ctx, t, cmd, err)
}

// Left strafes left by cm.
func (f *Flight) Left(ctx context.Context, t Target, cm int) error {
	cmd, err := Left(cm)
	return f.Exec(ctx, t, cmd, err)
}

// Right strafes right by cm.
func (f *Flight) Right(ctx context.Context, t Target, cm int) error {
	cmd, err := Right(cm)
	return f.Exec(ctx, t, cmd, err)
}

// Forward moves forward by cm.
func (f *Flight) Forward(ctx context.Context, t Target, cm int) error {
	cmd, err := Forward(cm)
	return f.Exec(ctx, t, cmd, err)
}

// Back moves backward by cm.
func (f *Flight) Back(ctx context.Context, t Target, cm int) error {
	cmd, err := Back(cm)
	return f.Exec(ctx, t, cmd, err)
}

// RotateCW rotates clockwise by deg.
func (f *Flight) RotateCW(ctx context.Context, t Target, deg int) error {
	cmd, err := RotateCW(deg)
	return f.Exec(ctx, t, cmd, err)
}

// RotateCCW rotates counter-clockwise by deg.
func (f *Flight) RotateCCW(ctx context.Context, t Target, deg int) error {
	cmd, err := RotateCCW(deg)
	return f.Exec(ctx, t, cmd, err)
}

// Flip performs a flip ("l", "r", "f", "b").
func (f *Flight) Flip(ctx context.Context, t Target, dir string) error {
	cmd, err := Flip(dir)
	return f.Exec(ctx, t, cmd, err)
}

// Straight flies straight to the relative position (x, y, z).
func (f *Flight) Straight(ctx context.Context, t Target, x, y, z, speed int) error {
	cmd, err := Straight(x, y, z, speed)
	return f.Exec(ctx, t, cmd, err)
}

// Curve flies a curve through (x1, y1, z1) to (x2, y2, z2).
func (f *Flight) Curve(ctx context.Context, t Target, x1, y1, z1, x2, y2, z2, speed int) error {
	cmd, err := Curve(x1, y1, z1, x2, y2, z2, speed)
	return f.Exec(ctx, t, cmd, err)
}

// StraightToPad flies to (x, y, z) relative to a mission pad.
func (f *Flight) StraightToPad(ctx context.Context, t Target, x, y, z, speed int, pad string) error {
	cmd, err := StraightToPad(x, y, z, speed, pad)
	return f.Exec(ctx, t, cmd, err)
}

// CurveToPad flies a curve relative to a mission pad.
func (f *Flight) CurveToPad(ctx context.Context, t Target, x1, y1, z1, x2, y2, z2, speed int, pad string) error {
	cmd, err := CurveToPad(x1, y1, z1, x2, y2, z2, speed, pad)
	return f.Exec(ctx, t, cmd, err)
}

// JumpBetweenPads flies from pad1 to pad2, ending at the given yaw.
func (f *Flight) JumpBetweenPads(ctx context.Context, t Target, x, y, z, speed, yaw int, pad1, pad2 string) error {
	cmd, err := JumpBetweenPads(x, y, z, speed, yaw, pad1, pad2)
	return f.Exec(ctx, t, cmd, err)
}

// Reorient re-centers the target above a mission pad.
func (f *Flight) Reorient(ctx context.Context, t Target, height int, pad string) error {
	cmd, err := Reorient(height, pad)
	return f.Exec(ctx, t, cmd, err)
}

// SetSpeed sets the default flight speed in cm/s.
func (f *Flight) SetSpeed(ctx context.Context, t Target, cms int) error {
	cmd, err := SetSpeed(cms)
	return f.Exec(ctx, t, cmd, err)
}

// PadDetectionOn enables mission pad detection.
func (f *Flight) PadDetectionOn(ctx context.Context, t Target) error {
	return f.Exec(ctx, t, PadDetectionOn(), nil)
}

// PadDetectionOff disables mission pad detection.
func (f *Flight) PadDetectionOff(ctx context.Context, t Target) error {
	return f.Exec(ctx, t, PadDetectionOff(), nil)
}

// PadDetectionDirection selects which cameras look for pads.
func (f *Flight) PadDetectionDirection(ctx context.Context, t Target, dir int) error {
	cmd, err := PadDetectionDirection(dir)
	return f.Exec(ctx, t, cmd, err)
}
