package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

// batteryCmd represents the battery command
var batteryCmd = &cobra.Command{
	Use:   "battery <device>",
	Short: "Read a device's battery level",
	Long: `Read a device's battery level.

The host's own battery table is consulted first; it is free and needs no
radio traffic. Only when the host has no reading does the command open a
GATT session and read the Battery Service (0x180F) directly. With
--all-components every battery characteristic is read and labeled, which is
how split accessories (left bud, right bud, case) report per-part levels.`,
	Args: cobra.ExactArgs(1),
	RunE: runBattery,
}

var (
	batteryAllComponents bool
	batteryNoScan        bool
	batteryJSON          bool
)

func init() {
	batteryCmd.Flags().BoolVar(&batteryAllComponents, "all-components", false, "Read every battery characteristic over GATT, labeled per component")
	batteryCmd.Flags().BoolVar(&batteryNoScan, "no-scan", false, "Skip the BLE scan when resolving the device")
	batteryCmd.Flags().BoolVar(&batteryJSON, "json", false, "Output JSON")
}

func runBattery(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true
	defer a.close()

	ctx, cancel := signalContext(context.Background())
	defer cancel()

	rec, err := a.findDevice(ctx, args[0], !batteryNoScan)
	if err != nil {
		return err
	}

	reader := a.batteryReader()

	if batteryAllComponents {
		progress := NewProgressPrinter(fmt.Sprintf("Reading battery of %s", rec.DisplayName), "reading")
		progress.Start()
		levels, err := reader.Levels(ctx, rec)
		progress.Stop()
		if err != nil {
			return err
		}
		return displayComponentLevels(rec.DisplayName, levels)
	}

	progress := NewProgressPrinter(fmt.Sprintf("Reading battery of %s", rec.DisplayName), "reading")
	progress.Start()
	level, err := reader.Level(ctx, rec)
	progress.Stop()
	if err != nil {
		return err
	}

	if batteryJSON {
		encoder := json.NewEncoder(os.Stdout)
		return encoder.Encode(map[string]any{"device": rec.DisplayName, "battery": level})
	}
	fmt.Printf("%s: %d%%\n", rec.DisplayName, level)
	return nil
}

func displayComponentLevels(name string, levels map[string]int) error {
	if batteryJSON {
		encoder := json.NewEncoder(os.Stdout)
		return encoder.Encode(map[string]any{"device": name, "components": levels})
	}

	components := make([]string, 0, len(levels))
	for c := range levels {
		components = append(components, c)
	}
	sort.Strings(components)

	fmt.Printf("%s:\n", name)
	for _, c := range components {
		fmt.Printf("  %s: %d%%\n", c, levels[c])
	}
	return nil
}
