package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"btctl/internal/bterr"
)

// forgetCmd represents the forget command
var forgetCmd = &cobra.Command{
	Use:   "forget <device>",
	Short: "Remove a device from the known-devices file",
	Long: `Remove a remembered device from the known-devices file.

The device may be given by the stored address or by the name it was
remembered under. This only affects the local name cache; OS pairing is
untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: runForget,
}

func runForget(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true

	address, ok := findKnownAddress(a.known.Load(), args[0])
	if !ok {
		return fmt.Errorf("no known device %q: %w", args[0], bterr.ErrNotFound)
	}

	if err := a.known.Forget(address); err != nil {
		return err
	}
	fmt.Printf("Forgot %s\n", address)
	return nil
}

// findKnownAddress resolves a query against the stored address -> name map,
// matching the address first and the remembered name second, both
// case-insensitively.
func findKnownAddress(known map[string]string, query string) (string, bool) {
	q := strings.ToLower(query)
	for addr := range known {
		if strings.ToLower(addr) == q {
			return addr, true
		}
	}
	for addr, name := range known {
		if strings.ToLower(name) == q {
			return addr, true
		}
	}
	return "", false
}
