// Command flock-console is an interactive fleet console.
//
// It discovers the fleet, then drops into a prompt for manual control:
// listing devices, inspecting telemetry, sending raw commands, and
// landing everything in a hurry.
//
// Usage:
//
//	flock-console -serials <sn1>,<sn2>,... [flags]
//
// Flags:
//
//	-serials string      Comma-separated drone serials, fleet order (required)
//	-policy string       Timeout policy YAML file
//	-flight-log string   Write flight events to this .flog file
//	-log-level string    Log level: debug, info, warn, error (default "warn")
//
// Interactive Commands:
//
//	list                      - List devices with state and last telemetry
//	status <num>              - Show one device in detail
//	send <num|all> <command>  - Send a raw command, e.g. "send 1 cw 90"
//	read <num> <query>        - Send a read command, e.g. "read 1 battery?"
//	takeoff [num]             - Take off (whole fleet without num)
//	land [num]                - Land (whole fleet without num)
//	quit                      - Land everything and exit
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/flock-protocol/flock-go/pkg/device"
	"github.com/flock-protocol/flock-go/pkg/flight"
	"github.com/flock-protocol/flock-go/pkg/log"
	"github.com/flock-protocol/flock-go/pkg/policy"
	"github.com/flock-protocol/flock-go/pkg/swarm"
	"github.com/flock-protocol/flock-go/pkg/wire"
)

func main() {
	serialsFlag := flag.String("serials", "", "Comma-separated drone serials, fleet order (required)")
	policyFile := flag.String("policy", "", "Timeout policy YAML file")
	flightLog := flag.String("flight-log", "", "Write flight events to this .flog file")
	logLevel := flag.String("log-level", "warn", "Log level: debug, info, warn, error")
	flag.Parse()

	serials := splitList(*serialsFlag)
	if len(serials) == 0 {
		fmt.Fprintln(os.Stderr, "Error: -serials required")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(serials, *policyFile, *flightLog, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func run(serials []string, policyFile, flightLog, logLevel string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "flock> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}
	// Log output goes through readline so it does not mangle the prompt.
	logger := slog.New(slog.NewTextHandler(rl.Stderr(), &slog.HandlerOptions{Level: level}))

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

	fmt.Fprintf(rl.Stdout(), "Discovering %d drone(s)...\n", len(serials))
	discoverCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := s.Discover(discoverCtx, serials, swarm.DiscoverOptions{}); err != nil {
		return err
	}
	fmt.Fprintln(rl.Stdout(), "Fleet ready. Type \"help\" for commands.")

	c := &console{s: s, f: flight.New(s), rl: rl}
	return c.loop()
}

type console struct {
	s  *swarm.Swarm
	f  *flight.Flight
	rl *readline.Instance
}

func (c *console) loop() error {
	for {
		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			// EOF: land and leave.
			return c.s.Close(context.Background())
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()
		case "list", "l":
			c.cmdList()
		case "status":
			c.cmdStatus(args)
		case "send":
			c.cmdSend(args, wire.ClassControl)
		case "read":
			c.cmdSend(args, wire.ClassRead)
		case "takeoff":
			c.cmdSimple(args, "takeoff")
		case "land":
			c.cmdSimple(args, "land")
		case "quit", "exit", "q":
			return c.s.Close(context.Background())
		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s\n", cmd)
		}
	}
}

func (c *console) printHelp() {
	fmt.Fprint(c.rl.Stdout(), `Commands:
  list                      - List devices with state and last telemetry
  status <num>              - Show one device in detail
  send <num|all> <command>  - Send a raw command, e.g. "send 1 cw 90"
  read <num> <query>        - Send a read command, e.g. "read 1 battery?"
  takeoff [num]             - Take off (whole fleet without num)
  land [num]                - Land (whole fleet without num)
  quit                      - Land everything and exit
`)
}

func (c *console) cmdList() {
	for _, dev := range c.s.Devices() {
		bat := "-"
		if snap := dev.Telemetry(); snap != nil {
			if v, ok := snap.Fields.Int("bat"); ok {
				bat = strconv.Itoa(v) + "%"
			}
		}
		fmt.Fprintf(c.rl.Stdout(), "  %d  %-16s %-12s %-15s bat=%s\n",
			dev.Num(), dev.Serial(), dev.State(), dev.Addr(), bat)
	}
}

func (c *console) cmdStatus(args []string) {
	dev, ok := c.device(args)
	if !ok {
		return
	}
	out := c.rl.Stdout()
	fmt.Fprintf(out, "device %d\n", dev.Num())
	fmt.Fprintf(out, "  serial:    %s\n", dev.Serial())
	fmt.Fprintf(out, "  address:   %s\n", dev.Addr())
	fmt.Fprintf(out, "  state:     %s\n", dev.State())
	if r := dev.FaultReason(); r != "" {
		fmt.Fprintf(out, "  fault:     %s\n", r)
	}
	if !dev.LastSeen().IsZero() {
		fmt.Fprintf(out, "  last seen: %s ago\n", time.Since(dev.LastSeen()).Round(time.Millisecond))
	}
	if snap := dev.Telemetry(); snap != nil {
		fmt.Fprintf(out, "  telemetry (%s ago):\n", time.Since(snap.At).Round(time.Millisecond))
		for k, v := range snap.Fields {
			fmt.Fprintf(out, "    %s: %s\n", k, v)
		}
	}
}

func (c *console) cmdSend(args []string, class wire.Class) {
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: send <num|all> <command>")
		return
	}
	text := strings.Join(args[1:], " ")
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if strings.EqualFold(args[0], "all") {
		if err := c.s.Broadcast(ctx, text, class); err != nil {
			fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
			return
		}
		fmt.Fprintln(c.rl.Stdout(), "ok (all)")
		return
	}

	dev, ok := c.device(args[:1])
	if !ok {
		return
	}
	resp, err := c.s.Send(ctx, dev, text, class)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return
	}
	if resp == "" {
		resp = "ok"
	}
	fmt.Fprintln(c.rl.Stdout(), resp)
}

func (c *console) cmdSimple(args []string, text string) {
	if len(args) == 0 {
		c.cmdSend([]string{"all", text}, wire.ClassControl)
		return
	}
	c.cmdSend([]string{args[0], text}, wire.ClassControl)
}

func (c *console) device(args []string) (*device.Device, bool) {
	if len(args) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: <command> <num>")
		return nil, false
	}
	num, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Bad device number %q\n", args[0])
		return nil, false
	}
	dev, err := c.s.Device(num)
	if err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Error: %v\n", err)
		return nil, false
	}
	return dev, true
}
