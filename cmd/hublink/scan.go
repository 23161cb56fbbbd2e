package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/go-ble/ble"
	"github.com/spf13/cobra"

	"github.com/srg/hublink/manager"
	"github.com/srg/hublink/transport/gatt"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for LEGO hubs",
	Long:  "Scan BLE advertisements and list the LEGO hubs in range, ordered by address.",
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().DurationP("duration", "d", 10*time.Second, "Scan duration")
}

func runScan(cmd *cobra.Command, _ []string) error {
	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	duration, _ := cmd.Flags().GetDuration("duration")

	mgr := newManager(cfg, logger)
	mgr.Start()
	defer mgr.Stop()

	if err := gatt.SetupDefaultDevice(); err != nil {
		return err
	}

	fmt.Printf("Scanning for %s...\n", duration)
	ctx, cancel := context.WithTimeout(cmd.Context(), duration)
	defer cancel()
	err = ble.Scan(ctx, true, func(adv ble.Advertisement) {
		mgr.Observe(manager.ObservationFromAdvertisement(adv))
	}, nil)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("scan failed: %w", err)
	}

	hubs := mgr.Hubs()
	if len(hubs) == 0 {
		fmt.Println("No LEGO hubs found.")
		return nil
	}

	bold := color.New(color.Bold)
	dim := color.New(color.Faint)
	bold.Printf("%-20s %-24s %6s\n", "ADDRESS", "NAME", "RSSI")
	for _, h := range hubs {
		s := h.Snapshot()
		name := s.Name
		if name == "" {
			name = dim.Sprint("(unnamed)")
		}
		fmt.Printf("%-20s %-24s %6d\n", s.Identifier, name, s.RSSI)
	}
	return nil
}
