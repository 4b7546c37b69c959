package flight

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Battery reads the battery percentage of one drone.
func (f *Flight) Battery(ctx context.Context, num int) (int, error) {
	raw, err := f.readRaw(ctx, num, ReadBattery())
	if err != nil {
		return 0, err
	}
	pct, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("unexpected battery reply %q: %w", raw, err)
	}
	return pct, nil
}

// Speed reads the current speed setting in cm/s.
func (f *Flight) Speed(ctx context.Context, num int) (float64, error) {
	raw, err := f.readRaw(ctx, num, ReadSpeed())
	if err != nil {
		return 0, err
	}
	cms, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected speed reply %q: %w", raw, err)
	}
	return cms, nil
}

// FlightTime reads the accumulated motor-on time. The firmware reports
// whole seconds ("127s").
func (f *Flight) FlightTime(ctx context.Context, num int) (time.Duration, error) {
	raw, err := f.readRaw(ctx, num, ReadFlightTime())
	if err != nil {
		return 0, err
	}
	secs, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(raw), "s"))
	if err != nil {
		return 0, fmt.Errorf("unexpected flight time reply %q: %w", raw, err)
	}
	return time.Duration(secs) * time.Second, nil
}

// WifiSNR reads the WiFi signal-to-noise ratio. Known to be flaky on
// some firmware versions.
func (f *Flight) WifiSNR(ctx context.Context, num int) (int, error) {
	raw, err := f.readRaw(ctx, num, ReadWifiSNR())
	if err != nil {
		return 0, err
	}
	snr, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("unexpected wifi reply %q: %w", raw, err)
	}
	return snr, nil
}

// SDKVersion reads the firmware SDK version string.
func (f *Flight) SDKVersion(ctx context.Context, num int) (string, error) {
	raw, err := f.readRaw(ctx, num, ReadSDKVersion())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

// SerialNumber reads the drone serial number.
func (f *Flight) SerialNumber(ctx context.Context, num int) (string, error) {
	raw, err := f.readRaw(ctx, num, ReadSerialNumber())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}
