package flight

import (
	"context"
	"errors"
	"fmt"

	"github.com/flock-protocol/flock-go/pkg/device"
)

// MaxSpirals bounds SearchSpiral: beyond three revolutions the search
// area exceeds the pad detection envelope of a practical flying space.
const MaxSpirals = 3

// Step is one relative movement of a search pattern, in pattern units
// (multiplied by the dist parameter at flight time).
type Step struct {
	X, Y int
}

// SearchSpiral flies an expanding square spiral around the current
// position until the mission pad is detected, returning true with the
// drone hovering centered above it. Each revolution extends the square
// by dist cm. When the pad is not found the drone returns to its
// starting point and the result is false.
func (f *Flight) SearchSpiral(ctx context.Context, num, dist, spirals, height, speed int, pad string) (bool, error) {
	if spirals < 1 || spirals > MaxSpirals {
		return false, fmt.Errorf("spirals must be 1-%d, got %d", MaxSpirals, spirals)
	}
	return f.SearchPattern(ctx, num, spiralPattern(spirals), dist, height, speed, pad)
}

// SearchPattern flies the given steps, attempting to center above the
// mission pad before each one. A pad-not-found error from the drone
// substitutes the step's movement; any other failure aborts the
// search. Returns true as soon as a centering attempt succeeds.
func (f *Flight) SearchPattern(ctx context.Context, num int, pattern []Step, dist, height, speed int, pad string) (bool, error) {
	dev, err := f.s.Device(num)
	if err != nil {
		return false, err
	}

	for _, step := range pattern {
		centre, err := StraightToPad(0, 0, height, speed, pad)
		if err != nil {
			return false, err
		}
		_, err = f.s.Send(ctx, dev, centre.Text, centre.Class)
		if err == nil {
			return true, nil
		}
		var devErr *device.DeviceError
		if !errors.As(err, &devErr) {
			return false, err
		}

		// No pad in sight here; move to the next search position.
		next, err := Straight(step.X*dist, step.Y*dist, 0, speed)
		if err != nil {
			return false, err
		}
		if _, err := f.s.Send(ctx, dev, next.Text, next.Class); err != nil {
			return false, err
		}
	}
	return false, nil
}

// spiralPattern builds the step list for an n-revolution square
// spiral, ending with the move back to the starting point.
func spiralPattern(spirals int) []Step {
	steps := []Step{{1, 1}, {0, -2}, {-2, 0}, {0, 2}}
	if spirals == 1 {
		return append(steps, Step{1, -1})
	}

	steps = append(steps,
		Step{1, 1}, Step{2, 0},
		Step{0, -2}, Step{0, -2},
		Step{-2, 0}, Step{-2, 0},
		Step{0, 2}, Step{0, 2})
	if spirals == 2 {
		return append(steps, Step{2, -2})
	}

	steps = append(steps,
		Step{1, 1}, Step{2, 0}, Step{2, 0},
		Step{0, -2}, Step{0, -2}, Step{0, -2},
		Step{-2, 0}, Step{-2, 0}, Step{-2, 0},
		Step{0, 2}, Step{0, 2}, Step{0, 2})
	return append(steps, Step{3, -3})
}
