// Command flock-estop is the emergency kill switch.
//
// It sweeps every candidate host on the local /24 networks and blasts
// "emergency" (motor cut) or "land" at all of them, several rounds,
// without waiting for acknowledgments. Run it when a flight goes wrong
// and the controlling process is gone or wedged. The socket binds an
// ephemeral port so a crashed controller still holding the well-known
// port does not block the stop.
//
// Usage:
//
//	flock-estop [flags]
//
// Flags:
//
//	-land            Send "land" instead of cutting the motors
//	-first int       First host of the sweep range (default 1)
//	-last int        Last host of the sweep range (default 254)
//	-rounds int      Number of sweep rounds (default 5)
//	-interval duration  Pause between rounds (default 500ms)
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/flock-protocol/flock-go/pkg/discovery"
	"github.com/flock-protocol/flock-go/pkg/transport"
)

func main() {
	land := flag.Bool("land", false, "Send \"land\" instead of cutting the motors")
	first := flag.Int("first", 0, "First host of the sweep range")
	last := flag.Int("last", 0, "Last host of the sweep range")
	rounds := flag.Int("rounds", 5, "Number of sweep rounds")
	interval := flag.Duration("interval", 500*time.Millisecond, "Pause between rounds")
	flag.Parse()

	command := "emergency"
	if *land {
		command = "land"
	}

	if err := run(command, *first, *last, *rounds, *interval); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(command string, first, last, rounds int, interval time.Duration) error {
	hosts, err := discovery.Hosts(first, last)
	if err != nil {
		return err
	}
	if len(hosts) == 0 {
		return fmt.Errorf("no /24 networks to sweep")
	}
	candidates := discovery.Candidates(hosts, 0)

	conn, err := transport.Listen(transport.Config{
		CommandPort:      transport.PortEphemeral,
		DisableTelemetry: true,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("sweeping %d hosts with %q, %d rounds\n", len(candidates), command, rounds)
	for r := 0; r < rounds; r++ {
		for _, c := range candidates {
			_ = conn.Send(c, command)
		}
		time.Sleep(interval)
	}
	return nil
}
