// Command flock-demo flies a short demonstration with a single drone.
//
// The demo discovers the drone, takes off, flies a square at fixed
// height, reads the battery, and lands. It exercises the full stack:
// discovery sweep, dispatch, timeout policy, flight log capture.
//
// Usage:
//
//	flock-demo -serial <drone-serial> [flags]
//
// Flags:
//
//	-serial string       Drone serial number (required)
//	-policy string       Timeout policy YAML file
//	-flight-log string   Write flight events to this .flog file
//	-log-level string    Log level: debug, info, warn, error (default "info")
//	-timeout duration    Discovery timeout (default 30s)
//
// Example:
//
//	flock-demo -serial 0TQZK1AED0021X -flight-log demo.flog -log-level debug
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flock-protocol/flock-go/pkg/flight"
	"github.com/flock-protocol/flock-go/pkg/log"
	"github.com/flock-protocol/flock-go/pkg/policy"
	"github.com/flock-protocol/flock-go/pkg/swarm"
)

func main() {
	serial := flag.String("serial", "", "Drone serial number (required)")
	policyFile := flag.String("policy", "", "Timeout policy YAML file")
	flightLog := flag.String("flight-log", "", "Write flight events to this .flog file")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	timeout := flag.Duration("timeout", 30*time.Second, "Discovery timeout")
	flag.Parse()

	if *serial == "" {
		fmt.Fprintln(os.Stderr, "Error: -serial required")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(*serial, *policyFile, *flightLog, *logLevel, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(serial, policyFile, flightLog, logLevel string, timeout time.Duration) error {
	logger := newLogger(logLevel)

	cfg := swarm.Config{Logger: logger, Policy: policy.Default()}
	if policyFile != "" {
		pol, err := policy.Load(policyFile)
		if err != nil {
			return err
		}
		cfg.Policy = pol
	}
	if flightLog != "" {
		fl, err := log.NewFileLogger(flightLog)
		if err != nil {
			return err
		}
		defer fl.Close()
		cfg.FlightLog = fl
	}

	s, err := swarm.New(cfg)
	if err != nil {
		return err
	}
	defer s.Close(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	discoverCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.Discover(discoverCtx, []string{serial}, swarm.DiscoverOptions{}); err != nil {
		return err
	}

	f := flight.New(s)
	one := flight.To(1)

	bat, err := f.Battery(ctx, 1)
	if err != nil {
		return err
	}
	logger.Info("pre-flight", "battery", bat)
	if bat < 20 {
		return fmt.Errorf("battery too low for demo: %d%%", bat)
	}

	if err := f.TakeOff(ctx, one); err != nil {
		return err
	}
	// Land whatever happens after the motors started.
	defer f.Land(context.Background(), one)

	if err := f.Up(ctx, one, 50); err != nil {
		return err
	}
	for i := 0; i < 4; i++ {
		if err := f.Forward(ctx, one, 60); err != nil {
			return err
		}
		if err := f.RotateCW(ctx, one, 90); err != nil {
			return err
		}
	}
	if err := f.Flip(ctx, one, "b"); err != nil {
		logger.Warn("flip refused, continuing", "err", err)
	}

	bat, err = f.Battery(ctx, 1)
	if err != nil {
		return err
	}
	logger.Info("demo complete", "battery", bat)
	return nil
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
