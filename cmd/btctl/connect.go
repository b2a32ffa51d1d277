package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"btctl/internal/bterr"
)

// connectCmd represents the connect command
var connectCmd = &cobra.Command{
	Use:   "connect <device>",
	Short: "Connect a paired device's system transport",
	Long: `Connect the system (classic) transport of a paired device.

The device may be given by name or system address. The command returns once
the OS actually reports the link up, not merely once the connect request was
issued.`,
	Args: cobra.ExactArgs(1),
	RunE: runConnect,
}

func runConnect(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ExecTimeout+a.cfg.StabilizeTimeout)
	defer cancel()

	rec, err := a.findDevice(ctx, args[0], false)
	if err != nil {
		return err
	}
	if rec.SystemAddress == "" {
		return &bterr.ValidationError{Field: "device", Msg: fmt.Sprintf("%q has no system address; only paired devices can be connected", args[0])}
	}

	progress := NewProgressPrinter(fmt.Sprintf("Connecting %s", rec.DisplayName), "connecting")
	progress.Start()

	err = a.orch.ConnectSystem(ctx, rec.SystemAddress, rec.DisplayName)
	progress.Stop()
	if err != nil {
		return err
	}

	fmt.Printf("Connected %s (%s)\n", rec.DisplayName, rec.SystemAddress)
	return nil
}
