// Command flock-log views and analyzes flight log files.
//
// Flight logs are created by passing -flight-log to flock-demo,
// flock-search, or flock-console, or by wiring a log.FileLogger into
// swarm.Config.
//
// Usage:
//
//	flock-log <command> [flags] <file.flog>
//
// Commands:
//
//	view     View events in human-readable format
//	stats    Show per-device and per-category statistics
//
// Examples:
//
//	# View all events
//	flock-log view flight.flog
//
//	# View only commands and replies of device 2
//	flock-log view -device 2 -category command flight.flog
//
//	# Show statistics
//	flock-log stats flight.flog
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/flock-protocol/flock-go/pkg/log"
)

const usage = `flock-log - Flight Log Analyzer

Usage:
  flock-log <command> [flags] <file.flog>

Commands:
  view     View events in human-readable format
  stats    Show per-device and per-category statistics

Use "flock-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	session := fs.String("session", "", "Filter by session ID")
	serial := fs.String("serial", "", "Filter by drone serial")
	deviceNum := fs.Int("device", 0, "Filter by fleet number")
	category := fs.String("category", "", "Filter by category (command, reply, telemetry, state, error)")
	direction := fs.String("direction", "", "Filter by direction (in, out)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		os.Exit(1)
	}

	filter := log.Filter{
		SessionID:    *session,
		DeviceSerial: *serial,
		DeviceNum:    *deviceNum,
	}
	if *category != "" {
		c, err := parseCategory(*category)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		filter.Category = &c
	}
	if *direction != "" {
		d, err := parseDirection(*direction)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		filter.Direction = &d
	}

	if err := view(fs.Arg(0), filter, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "command":
		return log.CategoryCommand, nil
	case "reply":
		return log.CategoryReply, nil
	case "telemetry":
		return log.CategoryTelemetry, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

func parseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

func view(path string, filter log.Filter, w io.Writer) error {
	r, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return err
	}
	defer r.Close()

	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(w, formatEvent(ev))
	}
}

func formatEvent(ev log.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-3s %-9s",
		ev.Timestamp.Format("15:04:05.000"), ev.Direction, ev.Category)
	if ev.DeviceNum != 0 {
		fmt.Fprintf(&b, " dev=%d", ev.DeviceNum)
	} else if ev.RemoteAddr != "" {
		fmt.Fprintf(&b, " addr=%s", ev.RemoteAddr)
	}

	switch {
	case ev.Command != nil:
		fmt.Fprintf(&b, " %q", ev.Command.Text)
		if ev.Command.Outcome != "" {
			fmt.Fprintf(&b, " -> %s", ev.Command.Outcome)
		}
		if ev.Command.Response != "" {
			fmt.Fprintf(&b, " (%s)", ev.Command.Response)
		}
		if ev.Command.RTT != nil {
			fmt.Fprintf(&b, " rtt=%s", ev.Command.RTT.Round(time.Millisecond))
		}
	case ev.Telemetry != nil:
		fmt.Fprintf(&b, " %d fields", len(ev.Telemetry.Fields))
		if bat, ok := ev.Telemetry.Fields["bat"]; ok {
			fmt.Fprintf(&b, " bat=%s", bat)
		}
	case ev.StateChange != nil:
		fmt.Fprintf(&b, " %s -> %s", ev.StateChange.OldState, ev.StateChange.NewState)
		if ev.StateChange.Reason != "" {
			fmt.Fprintf(&b, " (%s)", ev.StateChange.Reason)
		}
	case ev.Error != nil:
		fmt.Fprintf(&b, " %s", ev.Error.Message)
		if ev.Error.Context != "" {
			fmt.Fprintf(&b, " (%s)", ev.Error.Context)
		}
	}
	return b.String()
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		os.Exit(1)
	}

	if err := stats(fs.Arg(0), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type deviceStats struct {
	commands  int
	timeouts  int
	errors    int
	telemetry int
	rttSum    time.Duration
	rttCount  int
}

func stats(path string, w io.Writer) error {
	r, err := log.NewReader(path)
	if err != nil {
		return err
	}
	defer r.Close()

	perDevice := make(map[int]*deviceStats)
	sessions := make(map[string]struct{})
	var total int
	var first, last time.Time

	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		total++
		sessions[ev.SessionID] = struct{}{}
		if first.IsZero() || ev.Timestamp.Before(first) {
			first = ev.Timestamp
		}
		if ev.Timestamp.After(last) {
			last = ev.Timestamp
		}

		ds := perDevice[ev.DeviceNum]
		if ds == nil {
			ds = &deviceStats{}
			perDevice[ev.DeviceNum] = ds
		}
		switch {
		case ev.Category == log.CategoryCommand:
			ds.commands++
		case ev.Category == log.CategoryReply && ev.Command != nil:
			switch ev.Command.Outcome {
			case "TIMED_OUT":
				ds.timeouts++
			case "FAILED":
				ds.errors++
			}
			if ev.Command.RTT != nil {
				ds.rttSum += *ev.Command.RTT
				ds.rttCount++
			}
		case ev.Category == log.CategoryTelemetry:
			ds.telemetry++
		}
	}

	fmt.Fprintf(w, "events:   %d\n", total)
	fmt.Fprintf(w, "sessions: %d\n", len(sessions))
	if !first.IsZero() {
		fmt.Fprintf(w, "span:     %s (%s - %s)\n",
			last.Sub(first).Round(time.Millisecond),
			first.Format(time.RFC3339), last.Format(time.RFC3339))
	}

	nums := make([]int, 0, len(perDevice))
	for n := range perDevice {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	for _, n := range nums {
		ds := perDevice[n]
		name := fmt.Sprintf("device %d", n)
		if n == 0 {
			name = "fleet"
		}
		fmt.Fprintf(w, "%s: commands=%d timeouts=%d errors=%d telemetry=%d",
			name, ds.commands, ds.timeouts, ds.errors, ds.telemetry)
		if ds.rttCount > 0 {
			fmt.Fprintf(w, " avg-rtt=%s", (ds.rttSum / time.Duration(ds.rttCount)).Round(time.Millisecond))
		}
		fmt.Fprintln(w)
	}
	return nil
}
