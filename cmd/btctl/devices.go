package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"btctl/internal/identity"
)

// devicesCmd represents the devices command
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List known devices with their BLE identities",
	Long: `List OS-paired devices merged with a BLE scan into a unified catalog.

Paired devices are matched to BLE sightings by display name, so each entry
carries both its system (classic) address and its BLE address when the scan
saw it advertising. Devices seen only over BLE are listed too.`,
	RunE: runDevices,
}

var (
	devicesFormat string
	devicesNoScan bool
)

func init() {
	devicesCmd.Flags().StringVarP(&devicesFormat, "format", "f", "table", "Output format (table, json)")
	devicesCmd.Flags().BoolVar(&devicesNoScan, "no-scan", false, "Skip the BLE scan, list paired devices only")
}

func runDevices(cmd *cobra.Command, args []string) error {
	if devicesFormat != "table" && devicesFormat != "json" {
		return fmt.Errorf("invalid format '%s': must be one of [table json]", devicesFormat)
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true

	withScan := !devicesNoScan
	var progress *ProgressPrinter
	if withScan {
		progress = NewCountdownProgressPrinter("Resolving devices", "scanning", a.cfg.ScanDuration)
		progress.Start()
	}

	records := a.catalog(context.Background(), withScan)

	if progress != nil {
		progress.Stop()
	}

	return displayDevices(records, devicesFormat)
}

func displayDevices(records []identity.DeviceRecord, format string) error {
	if format == "json" {
		if records == nil {
			records = []identity.DeviceRecord{}
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(records)
	}

	if len(records) == 0 {
		fmt.Println("No devices found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSYSTEM ADDRESS\tBLE ADDRESS\tCONNECTED")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, rec := range records {
		ble := rec.BLEAddress
		if len(rec.BLEAddressesAll) > 1 {
			ble = fmt.Sprintf("%s (+%d)", rec.BLEAddress, len(rec.BLEAddressesAll)-1)
		}
		connected := "no"
		if rec.SystemConnected {
			connected = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.DisplayName, dashIfEmpty(rec.SystemAddress), dashIfEmpty(ble), connected)
	}
	return w.Flush()
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
