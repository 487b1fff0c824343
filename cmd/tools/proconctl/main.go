package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/robertfraefel/procon-bridge/internal/procon"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  proconctl get --host HOST [--port PORT] [--user USER] [--pass PASS]
  proconctl set --host HOST --col COL --mode MODE [--port PORT] [--user USER] [--pass PASS]

Commands:
  get   Fetch GetState.csv and print the active channels
  set   Switch one relay (columns 16-23 internal, 28-35 external)

Flags:
  --host     (string)   Controller hostname or IP (required)
  --port     (int)      Controller port (default: 80)
  --user     (string)   Basic auth username (optional)
  --pass     (string)   Basic auth password (optional)
  --col      (int)      Relay column to switch ('set' only)
  --mode     (string)   auto, on or off ('set' only)
  --timeout  (int)      Request timeout in milliseconds (default: 10000)

`)
}

func newClient(fs *flag.FlagSet) (*procon.Client, *int, *string) {
	host := fs.String("host", "", "Controller hostname or IP (required)")
	port := fs.Int("port", 80, "Controller port")
	user := fs.String("user", "", "Basic auth username")
	pass := fs.String("pass", "", "Basic auth password")
	timeoutMs := fs.Int("timeout", 10000, "Request timeout in milliseconds")
	col := fs.Int("col", -1, "Relay column to switch")
	mode := fs.String("mode", "", "auto, on or off")

	fs.Usage = usage
	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}
	if *host == "" {
		fmt.Fprintf(os.Stderr, "--host is required\n")
		usage()
		os.Exit(2)
	}

	client := procon.NewClient(procon.ClientConfig{
		Host:     *host,
		Port:     *port,
		Username: *user,
		Password: *pass,
		Timeout:  time.Duration(*timeoutMs) * time.Millisecond,
	})
	return client, col, mode
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Missing command (get or set)\n")
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "get":
		client, _, _ := newClient(flag.NewFlagSet("get", flag.ExitOnError))
		runGet(client)
	case "set":
		client, col, mode := newClient(flag.NewFlagSet("set", flag.ExitOnError))
		runSet(client, *col, *mode)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func runGet(client *procon.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	snap, err := client.FetchState(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fetch failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Firmware %s, device id %s, %s\n\n", snap.Firmware(), snap.DeviceID(), client.BaseURL())

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COL\tNAME\tVALUE\tUNIT\tMODE")
	for col := range snap.Values {
		if !snap.IsActive(col) {
			continue
		}
		mode := ""
		if procon.IsRelayColumn(col) {
			mode = string(snap.RelayMode(col))
		}
		fmt.Fprintf(w, "%d\t%s\t%g\t%s\t%s\n", col, snap.Name(col), snap.Values[col], snap.Unit(col), mode)
	}
	w.Flush()
}

func runSet(client *procon.Client, col int, modeArg string) {
	mode, err := procon.ParseMode(modeArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		usage()
		os.Exit(2)
	}
	bitIndex, err := procon.RelayBitIndex(col)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// the device only takes the full pattern, so read-modify-write
	snap, err := client.FetchState(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fetch failed: %v\n", err)
		os.Exit(1)
	}

	manual, on := procon.ComputeWritePattern(snap)
	manual, on, err = procon.ApplyMode(manual, on, bitIndex, mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if err := client.WriteRelays(ctx, manual, on); err != nil {
		fmt.Fprintf(os.Stderr, "relay write failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Relay %s (col %d) set to %s: ENA=%d,%d\n", snap.Name(col), col, mode, manual, on)
}
