package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"btctl/internal/bterr"
)

// disconnectCmd represents the disconnect command
var disconnectCmd = &cobra.Command{
	Use:   "disconnect <device>",
	Short: "Disconnect a device's system transport",
	Args:  cobra.ExactArgs(1),
	RunE:  runDisconnect,
}

func runDisconnect(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ExecTimeout+a.cfg.SettleTimeout)
	defer cancel()

	rec, err := a.findDevice(ctx, args[0], false)
	if err != nil {
		return err
	}
	if rec.SystemAddress == "" {
		return &bterr.ValidationError{Field: "device", Msg: fmt.Sprintf("%q has no system address", args[0])}
	}

	progress := NewProgressPrinter(fmt.Sprintf("Disconnecting %s", rec.DisplayName), "disconnecting")
	progress.Start()

	err = a.orch.DisconnectSystem(ctx, rec.SystemAddress)
	progress.Stop()
	if err != nil {
		return err
	}

	fmt.Printf("Disconnected %s (%s)\n", rec.DisplayName, rec.SystemAddress)
	return nil
}
