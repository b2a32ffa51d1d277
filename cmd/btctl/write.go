package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"btctl/internal/gatt"
)

// writeCmd represents the write command
var writeCmd = &cobra.Command{
	Use:   "write <device> <characteristic> <data>",
	Short: "Write to a GATT characteristic",
	Long: `Write data to a GATT characteristic by attribute handle or UUID.

Data may be given as a 0x-prefixed hex string, a comma-separated byte list,
or plain text (written as UTF-8).

Examples:
  btctl write "My Earbuds" 2a06 0x01
  btctl write AA:BB:CC:DD:EE:FF 42 1,0
  btctl write "My Earbuds" 2a06 "high" --no-response`,
	Args: cobra.ExactArgs(3),
	RunE: runWrite,
}

var (
	writeNoResponse bool
	writeNoScan     bool
)

func init() {
	writeCmd.Flags().BoolVar(&writeNoResponse, "no-response", false, "Write without response (no ACK from the device)")
	writeCmd.Flags().BoolVar(&writeNoScan, "no-scan", false, "Skip the BLE scan when resolving the device")
}

func runWrite(cmd *cobra.Command, args []string) error {
	ref, err := gatt.ParseAttributeRef(args[1])
	if err != nil {
		return err
	}

	data, err := parseWriteData(args[2])
	if err != nil {
		return fmt.Errorf("failed to parse data: %w", err)
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true
	defer a.close()

	ctx, cancel := signalContext(context.Background())
	defer cancel()

	rec, err := a.findDevice(ctx, args[0], !writeNoScan)
	if err != nil {
		return err
	}

	progress := NewProgressPrinter(fmt.Sprintf("Writing %d bytes to %s on %s", len(data), ref, rec.DisplayName), "connecting")
	progress.Start()

	sess, err := a.session(ctx, rec)
	if err != nil {
		progress.Stop()
		return err
	}

	err = a.access().Write(ctx, sess, ref, data, writeNoResponse)
	progress.Stop()
	if err != nil {
		return err
	}

	fmt.Println("Write successful")
	return nil
}

// parseWriteData converts a data argument to bytes. Three forms are accepted:
// a 0x-prefixed hex string, a comma-separated list of decimal bytes, and
// plain text written as UTF-8.
func parseWriteData(dataStr string) ([]byte, error) {
	if strings.HasPrefix(dataStr, "0x") || strings.HasPrefix(dataStr, "0X") {
		cleaned := dataStr[2:]
		data, err := hex.DecodeString(cleaned)
		if err != nil {
			return nil, fmt.Errorf("invalid hex data %q: %w", dataStr, err)
		}
		return data, nil
	}

	if isByteList(dataStr) {
		parts := strings.Split(dataStr, ",")
		data := make([]byte, 0, len(parts))
		for _, p := range parts {
			v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
			if err != nil {
				return nil, fmt.Errorf("invalid byte value %q: %w", p, err)
			}
			data = append(data, byte(v))
		}
		return data, nil
	}

	return []byte(dataStr), nil
}

// isByteList reports whether s is a comma-separated list of decimal numbers.
// A single bare number is NOT a byte list; it would be ambiguous with text.
func isByteList(s string) bool {
	if !strings.Contains(s, ",") {
		return false
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return false
		}
		for _, r := range part {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}
