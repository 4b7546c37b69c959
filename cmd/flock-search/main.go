// Command flock-search flies a two-drone mission pad search.
//
// Both drones take off together, then each runs an independent spiral
// search for its own mission pad. Once both searches finish the fleet
// re-synchronizes, reorients above the pads that were found, and lands
// together. This is the canonical mixed-mode flight: synchronized
// maneuvers bracketing independent per-drone behaviors.
//
// Usage:
//
//	flock-search -serials <sn1>,<sn2> [flags]
//
// Flags:
//
//	-serials string      Comma-separated drone serials, fleet order (required)
//	-pads string         Comma-separated pad IDs, one per drone (default "m1,m2")
//	-height int          Search height in cm (default 80)
//	-speed int           Search speed in cm/s (default 20)
//	-dist int            Spiral step distance in cm (default 50)
//	-flight-log string   Write flight events to this .flog file
//	-log-level string    Log level: debug, info, warn, error (default "info")
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/flock-protocol/flock-go/pkg/flight"
	"github.com/flock-protocol/flock-go/pkg/log"
	"github.com/flock-protocol/flock-go/pkg/policy"
	"github.com/flock-protocol/flock-go/pkg/swarm"
	"github.com/flock-protocol/flock-go/pkg/wire"
)

func main() {
	serialsFlag := flag.String("serials", "", "Comma-separated drone serials, fleet order (required)")
	padsFlag := flag.String("pads", "m1,m2", "Comma-separated pad IDs, one per drone")
	height := flag.Int("height", 80, "Search height in cm")
	speed := flag.Int("speed", 20, "Search speed in cm/s")
	dist := flag.Int("dist", 50, "Spiral step distance in cm")
	flightLog := flag.String("flight-log", "", "Write flight events to this .flog file")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	serials := split(*serialsFlag)
	pads := split(*padsFlag)
	if len(serials) != 2 || len(pads) != 2 {
		fmt.Fprintln(os.Stderr, "Error: exactly two serials and two pads required")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(serials, pads, *height, *speed, *dist, *flightLog, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func split(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func run(serials, pads []string, height, speed, dist int, flightLog, logLevel string) error {
	var level slog.Level
	if logLevel == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := swarm.Config{Logger: logger, Policy: policy.Default()}
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

	discoverCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.Discover(discoverCtx, serials, swarm.DiscoverOptions{}); err != nil {
		return err
	}

	f := flight.New(s)

	// Pad detection must be on before anything pad-relative flies.
	if err := f.PadDetectionOn(ctx, flight.All()); err != nil {
		return err
	}
	if err := f.TakeOff(ctx, flight.All()); err != nil {
		return err
	}
	defer f.Land(context.Background(), flight.All())

	// Split formation so the searches don't collide.
	err = s.Sync(ctx, func(g *swarm.Group) error {
		left, err := flight.Left(100)
		if err != nil {
			return err
		}
		right, err := flight.Right(100)
		if err != nil {
			return err
		}
		dev1, err := s.Device(1)
		if err != nil {
			return err
		}
		dev2, err := s.Device(2)
		if err != nil {
			return err
		}
		if err := g.Submit(dev1, left.Text, left.Class); err != nil {
			return err
		}
		return g.Submit(dev2, right.Text, right.Class)
	})
	if err != nil {
		return err
	}

	// Each drone searches for its own pad at its own pace.
	found := make([]bool, 2)
	handles := make([]*swarm.Independent, 2)
	for i := 0; i < 2; i++ {
		num, pad := i+1, pads[i]
		dev, err := s.Device(num)
		if err != nil {
			return err
		}
		ic, err := s.Independent(ctx, dev, func(bctx context.Context, p *swarm.Pilot) error {
			ok, err := f.SearchSpiral(bctx, num, dist, 2, height, speed, pad)
			if err != nil {
				return err
			}
			found[num-1] = ok
			logger.Info("search finished", "device", num, "pad", pad, "found", ok)
			return nil
		})
		if err != nil {
			return err
		}
		handles[i] = ic
	}
	for _, ic := range handles {
		if err := ic.Join(ctx); err != nil {
			return err
		}
	}

	// Back in formation: reorient the finders above their pads, then
	// land everyone together.
	err = s.Sync(ctx, func(g *swarm.Group) error {
		for i := 0; i < 2; i++ {
			if !found[i] {
				continue
			}
			cmd, err := flight.Reorient(height, pads[i])
			if err != nil {
				return err
			}
			dev, err := s.Device(i + 1)
			if err != nil {
				return err
			}
			if err := g.Submit(dev, cmd.Text, cmd.Class); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.Broadcast(ctx, "land", wire.ClassControl)
}
