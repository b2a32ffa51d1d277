package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"btctl/internal/scan"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for BLE devices",
	Long: `Scan for and display Bluetooth Low Energy devices in the vicinity.

Sightings weaker than the RSSI floor are dropped. Every device is listed
once, in discovery order, with its most recent signal strength.`,
	RunE: runScan,
}

var (
	scanDuration time.Duration
	scanFormat   string
	scanMinRSSI  int
	scanWatch    bool
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 0, "Scan duration (default from config)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
	scanCmd.Flags().IntVar(&scanMinRSSI, "min-rssi", 0, "RSSI floor in dBm (default from config)")
	scanCmd.Flags().BoolVarP(&scanWatch, "watch", "w", false, "Continuously scan and update results")
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanFormat != "table" && scanFormat != "json" {
		return fmt.Errorf("invalid format '%s': must be one of [table json]", scanFormat)
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	opts := a.scanOptions()
	if scanDuration > 0 {
		opts.Duration = scanDuration
	}
	if cmd.Flags().Changed("min-rssi") {
		opts.MinRSSI = scanMinRSSI
	}

	scanner := scan.NewScanner(a.logger)

	if scanWatch {
		return runWatchScan(scanner, opts)
	}
	return runSingleScan(scanner, opts)
}

func runSingleScan(scanner *scan.Scanner, opts *scan.Options) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Listen for Ctrl+C to cancel
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nCtrl+C pressed, cancelling scan...")
		cancel()
	}()

	progress := NewCountdownProgressPrinter("Scanning for BLE devices", "scanning", opts.Duration)
	progress.Start()

	sightings, err := scanner.Scan(ctx, opts)
	progress.Stop()
	if err != nil {
		return err
	}

	return displaySightings(sightings, scanFormat)
}

// runWatchScan keeps one long scan running and redraws the table as new
// devices appear, until the user interrupts.
func runWatchScan(scanner *scan.Scanner, opts *scan.Options) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nCtrl+C pressed, cancelling scan...")
		cancel()
	}()

	// Watch mode scans until interrupted.
	watchOpts := *opts
	watchOpts.Duration = 0

	scanErrCh := make(chan error, 1)
	go func() {
		_, err := scanner.Scan(ctx, &watchOpts)
		scanErrCh <- err
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			clearScreen()
			return displaySightings(scanner.Sightings(), scanFormat)

		case err := <-scanErrCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			clearScreen()
			return displaySightings(scanner.Sightings(), scanFormat)

		case <-ticker.C:
			if len(scanner.DrainEvents()) > 0 {
				clearScreen()
				if err := displaySightings(scanner.Sightings(), scanFormat); err != nil {
					return err
				}
			}
		}
	}
}

func displaySightings(sightings []scan.Sighting, format string) error {
	if format == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if sightings == nil {
			sightings = []scan.Sighting{}
		}
		return encoder.Encode(sightings)
	}

	if len(sightings) == 0 {
		fmt.Println("No devices discovered")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, s := range sightings {
		name := s.Name
		if len(name) > 28 {
			name = name[:25] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%d dBm\n", name, s.Address, s.RSSI)
	}
	return w.Flush()
}

func clearScreen() {
	var w io.Writer = os.Stdout
	if w == nil {
		w = io.Discard
	}
	fmt.Fprint(w, "\033[2J\033[H")
}
