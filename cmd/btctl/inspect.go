package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"btctl/internal/bledb"
	"btctl/internal/gatt"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <device>",
	Short: "Inspect the GATT profile of a device",
	Long: `Connect to a device and list its services and characteristics.

Each characteristic is shown with its value handle, UUID, assigned name (for
Bluetooth SIG UUIDs), and property flags. With --read-values every readable
characteristic is also read and its value shown as hex.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

var (
	inspectJSON       bool
	inspectReadValues bool
	inspectNoScan     bool
)

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Output JSON")
	inspectCmd.Flags().BoolVar(&inspectReadValues, "read-values", false, "Read every readable characteristic")
	inspectCmd.Flags().BoolVar(&inspectNoScan, "no-scan", false, "Skip the BLE scan when resolving the device")
}

type inspectChar struct {
	Handle      uint16 `json:"handle"`
	UUID        string `json:"uuid"`
	Name        string `json:"name,omitempty"`
	Properties  string `json:"properties"`
	Description string `json:"description,omitempty"`
	Value       string `json:"value,omitempty"`
	ReadError   string `json:"read_error,omitempty"`
}

type inspectService struct {
	UUID            string        `json:"uuid"`
	Name            string        `json:"name,omitempty"`
	Characteristics []inspectChar `json:"characteristics"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true
	defer a.close()

	ctx, cancel := signalContext(context.Background())
	defer cancel()

	rec, err := a.findDevice(ctx, args[0], !inspectNoScan)
	if err != nil {
		return err
	}

	progress := NewProgressPrinter(fmt.Sprintf("Inspecting %s", rec.DisplayName), "connecting")
	progress.Start()

	sess, err := a.session(ctx, rec)
	if err != nil {
		progress.Stop()
		return err
	}

	profile := buildProfile(sess, inspectReadValues)
	progress.Stop()

	if inspectJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(profile)
	}

	displayProfile(rec.DisplayName, sess.Address(), profile)
	return nil
}

func buildProfile(sess gatt.Session, readValues bool) []inspectService {
	services := sess.Services()
	out := make([]inspectService, 0, len(services))

	for _, svc := range services {
		entry := inspectService{
			UUID: svc.UUID(),
			Name: svc.Name(),
		}
		for _, char := range svc.Characteristics() {
			c := inspectChar{
				Handle:      char.Handle(),
				UUID:        char.UUID(),
				Name:        bledb.LookupCharacteristic(char.UUID()),
				Properties:  char.Properties(),
				Description: char.Description(),
			}
			if readValues && char.Readable() {
				if data, err := char.Read(); err != nil {
					c.ReadError = err.Error()
				} else {
					c.Value = hex.EncodeToString(data)
				}
			}
			entry.Characteristics = append(entry.Characteristics, c)
		}
		out = append(out, entry)
	}
	return out
}

func displayProfile(name, address string, profile []inspectService) {
	fmt.Printf("%s (%s)\n", name, address)
	for _, svc := range profile {
		if svc.Name != "" {
			fmt.Printf("\nservice %s (%s)\n", svc.UUID, svc.Name)
		} else {
			fmt.Printf("\nservice %s\n", svc.UUID)
		}
		for _, c := range svc.Characteristics {
			line := fmt.Sprintf("  [%4d] %s", c.Handle, c.UUID)
			if c.Name != "" {
				line += fmt.Sprintf(" (%s)", c.Name)
			}
			if c.Properties != "" {
				line += fmt.Sprintf("  [%s]", c.Properties)
			}
			fmt.Println(line)
			if c.Description != "" {
				fmt.Printf("         description: %s\n", c.Description)
			}
			if c.Value != "" {
				fmt.Printf("         value: %s\n", c.Value)
			}
			if c.ReadError != "" {
				fmt.Printf("         read failed: %s\n", c.ReadError)
			}
		}
	}
}
