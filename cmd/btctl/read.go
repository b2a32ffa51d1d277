package main

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"btctl/internal/gatt"
)

// readCmd represents the read command
var readCmd = &cobra.Command{
	Use:   "read <device> <characteristic>",
	Short: "Read a GATT characteristic",
	Long: `Read a GATT characteristic by attribute handle or UUID.

The characteristic may be given as a decimal attribute handle (e.g. 42), a
16-bit short UUID (e.g. 2a19), or a full 128-bit UUID. A purely numeric
argument is always treated as a handle.

Examples:
  btctl read "My Earbuds" 2a19
  btctl read AA:BB:CC:DD:EE:FF 42`,
	Args: cobra.ExactArgs(2),
	RunE: runRead,
}

var readNoScan bool

func init() {
	readCmd.Flags().BoolVar(&readNoScan, "no-scan", false, "Skip the BLE scan when resolving the device")
}

func runRead(cmd *cobra.Command, args []string) error {
	// Parse the attribute reference up front so a bad argument fails before
	// any radio work.
	ref, err := gatt.ParseAttributeRef(args[1])
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true
	defer a.close()

	ctx, cancel := signalContext(context.Background())
	defer cancel()

	rec, err := a.findDevice(ctx, args[0], !readNoScan)
	if err != nil {
		return err
	}

	progress := NewProgressPrinter(fmt.Sprintf("Reading %s from %s", ref, rec.DisplayName), "connecting")
	progress.Start()

	sess, err := a.session(ctx, rec)
	if err != nil {
		progress.Stop()
		return err
	}

	value, err := a.access().Read(ctx, sess, ref)
	progress.Stop()
	if err != nil {
		return err
	}

	displayValue(value)
	return nil
}

func displayValue(value gatt.Value) {
	fmt.Printf("hex:   %s\n", value.Hex())
	fmt.Printf("bytes: %v\n", value.Uints())
	if utf8.Valid(value.Bytes) && isPrintable(value.Bytes) {
		fmt.Printf("text:  %s\n", string(value.Bytes))
	}
}

func isPrintable(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	for _, b := range data {
		if b < 0x20 && b != '\n' && b != '\t' {
			return false
		}
	}
	return true
}
