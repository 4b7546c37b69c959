package flight

import (
	"fmt"

	"github.com/flock-protocol/flock-go/pkg/wire"
)

// Movement limits fixed by the firmware.
const (
	MinMove = 20
	MaxMove = 500

	MinRotate = 1
	MaxRotate = 360

	MinSpeed = 10
	MaxSpeed = 100

	// MaxCurveSpeed is lower than MaxSpeed; curves fly slower.
	MaxCurveSpeed = 60

	// MinCoord and MaxCoord bound the coordinates of go/curve/jump.
	MinCoord = -500
	MaxCoord = 500
)

// FlipDirections lists the accepted flip directions: left, right,
// forward, back.
var FlipDirections = []string{"l", "r", "f", "b"}

// Command is an encoded, validated wire command ready to submit.
type Command struct {
	Text  string
	Class wire.Class
}

func control(text string) Command { return Command{Text: text, Class: wire.ClassControl} }
func set(text string) Command     { return Command{Text: text, Class: wire.ClassSet} }
func read(text string) Command    { return Command{Text: text, Class: wire.ClassRead} }

// TakeOff starts the motors and climbs to hover height.
func TakeOff() Command { return control("takeoff") }

// Land descends and stops the motors.
func Land() Command { return control("land") }

// Stop halts all movement and hovers in place.
func Stop() Command { return control("stop") }

// Emergency cuts the motors immediately. The drone drops.
func Emergency() Command { return control("emergency") }

// StreamOn enables the video stream.
func StreamOn() Command { return control("streamon") }

// StreamOff disables the video stream.
func StreamOff() Command { return control("streamoff") }

// Up climbs by cm.
func Up(cm int) (Command, error) { return move("up", cm) }

// Down descends by cm.
func Down(cm int) (Command, error) { return move("down", cm) }

// Left strafes left by cm.
func Left(cm int) (Command, error) { return move("left", cm) }

// Right strafes right by cm.
func Right(cm int) (Command, error) { return move("right", cm) }

// Forward moves forward by cm.
func Forward(cm int) (Command, error) { return move("forward", cm) }

// Back moves backward by cm.
func Back(cm int) (Command, error) { return move("back", cm) }

func move(name string, cm int) (Command, error) {
	text, err := wire.EncodeValue(name, cm, MinMove, MaxMove)
	if err != nil {
		return Command{}, err
	}
	return control(text), nil
}

// RotateCW rotates clockwise by deg.
func RotateCW(deg int) (Command, error) { return rotate("cw", deg) }

// RotateCCW rotates counter-clockwise by deg.
func RotateCCW(deg int) (Command, error) { return rotate("ccw", deg) }

func rotate(name string, deg int) (Command, error) {
	text, err := wire.EncodeValue(name, deg, MinRotate, MaxRotate)
	if err != nil {
		return Command{}, err
	}
	return control(text), nil
}

// Flip performs a flip in the given direction ("l", "r", "f", "b").
func Flip(dir string) (Command, error) {
	text, err := wire.Encode("flip", nil, []wire.OptParam{
		{Name: "direction", Value: dir, Allowed: FlipDirections},
	})
	if err != nil {
		return Command{}, err
	}
	return control(text), nil
}

// Straight flies in a straight line to the relative position (x, y, z)
// in cm at the given speed.
func Straight(x, y, z, speed int) (Command, error) {
	text, err := wire.Encode("go", []wire.IntParam{
		{Name: "x", Value: x, Min: MinCoord, Max: MaxCoord},
		{Name: "y", Value: y, Min: MinCoord, Max: MaxCoord},
		{Name: "z", Value: z, Min: MinCoord, Max: MaxCoord},
		{Name: "speed", Value: speed, Min: MinSpeed, Max: MaxSpeed},
	}, nil)
	if err != nil {
		return Command{}, err
	}
	return control(text), nil
}

// Curve flies a curve through (x1, y1, z1) to (x2, y2, z2).
func Curve(x1, y1, z1, x2, y2, z2, speed int) (Command, error) {
	text, err := wire.Encode("curve", []wire.IntParam{
		{Name: "x1", Value: x1, Min: MinCoord, Max: MaxCoord},
		{Name: "y1", Value: y1, Min: MinCoord, Max: MaxCoord},
		{Name: "z1", Value: z1, Min: MinCoord, Max: MaxCoord},
		{Name: "x2", Value: x2, Min: MinCoord, Max: MaxCoord},
		{Name: "y2", Value: y2, Min: MinCoord, Max: MaxCoord},
		{Name: "z2", Value: z2, Min: MinCoord, Max: MaxCoord},
		{Name: "speed", Value: speed, Min: MinSpeed, Max: MaxCurveSpeed},
	}, nil)
	if err != nil {
		return Command{}, err
	}
	return control(text), nil
}

// StraightToPad flies to (x, y, z) relative to a mission pad.
func StraightToPad(x, y, z, speed int, pad string) (Command, error) {
	text, err := wire.Encode("go", []wire.IntParam{
		{Name: "x", Value: x, Min: MinCoord, Max: MaxCoord},
		{Name: "y", Value: y, Min: MinCoord, Max: MaxCoord},
		{Name: "z", Value: z, Min: MinCoord, Max: MaxCoord},
		{Name: "speed", Value: speed, Min: MinSpeed, Max: MaxSpeed},
	}, []wire.OptParam{
		{Name: "mid", Value: pad, Allowed: wire.Pads},
	})
	if err != nil {
		return Command{}, err
	}
	return control(text), nil
}

// CurveToPad flies a curve relative to a mission pad.
func CurveToPad(x1, y1, z1, x2, y2, z2, speed int, pad string) (Command, error) {
	text, err := wire.Encode("curve", []wire.IntParam{
		{Name: "x1", Value: x1, Min: MinCoord, Max: MaxCoord},
		{Name: "y1", Value: y1, Min: MinCoord, Max: MaxCoord},
		{Name: "z1", Value: z1, Min: MinCoord, Max: MaxCoord},
		{Name: "x2", Value: x2, Min: MinCoord, Max: MaxCoord},
		{Name: "y2", Value: y2, Min: MinCoord, Max: MaxCoord},
		{Name: "z2", Value: z2, Min: MinCoord, Max: MaxCoord},
		{Name: "speed", Value: speed, Min: MinSpeed, Max: MaxCurveSpeed},
	}, []wire.OptParam{
		{Name: "mid", Value: pad, Allowed: wire.Pads},
	})
	if err != nil {
		return Command{}, err
	}
	return control(text), nil
}

// JumpBetweenPads flies to (x, y, z) relative to pad1, then finds pad2
// and rotates to the given yaw above it.
func JumpBetweenPads(x, y, z, speed, yaw int, pad1, pad2 string) (Command, error) {
	text, err := wire.Encode("jump", []wire.IntParam{
		{Name: "x", Value: x, Min: MinCoord, Max: MaxCoord},
		{Name: "y", Value: y, Min: MinCoord, Max: MaxCoord},
		{Name: "z", Value: z, Min: MinCoord, Max: MaxCoord},
		{Name: "speed", Value: speed, Min: MinSpeed, Max: MaxSpeed},
		{Name: "yaw", Value: yaw, Min: -MaxRotate, Max: MaxRotate},
	}, []wire.OptParam{
		{Name: "mid1", Value: pad1, Allowed: wire.Pads},
		{Name: "mid2", Value: pad2, Allowed: wire.Pads},
	})
	if err != nil {
		return Command{}, err
	}
	return control(text), nil
}

// Reorient re-centers the drone at the given height above a mission
// pad, correcting the positional drift that builds up over a flight.
func Reorient(height int, pad string) (Command, error) {
	return StraightToPad(0, 0, height, MaxSpeed, pad)
}

// SetSpeed sets the default flight speed in cm/s.
func SetSpeed(cms int) (Command, error) {
	text, err := wire.EncodeValue("speed", cms, MinSpeed, MaxSpeed)
	if err != nil {
		return Command{}, err
	}
	return set(text), nil
}

// RC encodes one stick-stream datagram (left/right, forward/back,
// up/down, yaw; each -100..100). The firmware never acknowledges rc,
// so there is no catalogue method for it; callers with a joystick
// channel send the text directly.
func RC(lr, fb, ud, yaw int) (Command, error) {
	text, err := wire.Encode("rc", []wire.IntParam{
		{Name: "a", Value: lr, Min: -100, Max: 100},
		{Name: "b", Value: fb, Min: -100, Max: 100},
		{Name: "c", Value: ud, Min: -100, Max: 100},
		{Name: "d", Value: yaw, Min: -100, Max: 100},
	}, nil)
	if err != nil {
		return Command{}, err
	}
	return set(text), nil
}

// Wifi sets the drone's own access point credentials. Encoder only;
// no orchestration exists around network reconfiguration.
func Wifi(ssid, pass string) Command {
	return set(fmt.Sprintf("wifi %s %s", ssid, pass))
}

// AccessPoint switches the drone to station mode on the given network.
// Encoder only, as for Wifi.
func AccessPoint(ssid, pass string) Command {
	return set(fmt.Sprintf("ap %s %s", ssid, pass))
}

// PadDetectionOn enables mission pad detection.
func PadDetectionOn() Command { return set("mon") }

// PadDetectionOff disables mission pad detection.
func PadDetectionOff() Command { return set("moff") }

// Pad detection directions.
const (
	DetectDown    = 0
	DetectForward = 1
	DetectBoth    = 2
)

// PadDetectionDirection selects which cameras look for pads.
func PadDetectionDirection(dir int) (Command, error) {
	text, err := wire.EncodeValue("mdirection", dir, DetectDown, DetectBoth)
	if err != nil {
		return Command{}, err
	}
	return set(text), nil
}

// ReadSpeed queries the current speed setting.
func ReadSpeed() Command { return read("speed?") }

// ReadBattery queries the battery percentage.
func ReadBattery() Command { return read("battery?") }

// ReadFlightTime queries the accumulated motor-on time.
func ReadFlightTime() Command { return read("time?") }

// ReadWifiSNR queries the WiFi signal-to-noise ratio.
func ReadWifiSNR() Command { return read("wifi?") }

// ReadSDKVersion queries the firmware SDK version.
func ReadSDKVersion() Command { return read("sdk?") }

// ReadSerialNumber queries the drone serial number.
func ReadSerialNumber() Command { return read("sn?") }
