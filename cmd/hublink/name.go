package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/srg/hublink/hub"
	"github.com/srg/hublink/lwp3"
)

// hubNameRequest asks an LWP3 hub for its advertising name.
func hubNameRequest() []byte {
	return lwp3.HubPropertyRequest(lwp3.PropAdvertisingName)
}

var nameCmd = &cobra.Command{
	Use:   "name <address> [new-name]",
	Short: "Show or set a hub's name",
	Long: `Connect to a hub and print its name, or rename it when a new name is
given. Renaming works on both the LWP3 and SPIKE binary protocols.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runName,
}

func runName(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	linePath, _ := cmd.Flags().GetString("line")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := connectTarget(ctx, args[0], linePath, cfg, logger)
	if err != nil {
		return err
	}
	defer h.Close()

	if len(args) == 2 {
		if err := h.Send(hub.SetNameCommand{Name: args[1]}); err != nil {
			return err
		}
		time.Sleep(200 * time.Millisecond)
		fmt.Printf("Renamed %s to %q\n", h.Identifier(), args[1])
		return h.Disconnect()
	}

	// The LWP3 bootstrap does not request the name; ask explicitly and wait
	// for the name event.
	sub := h.Subscribe()
	defer sub.Close()
	if h.Protocol() == hub.ProtocolLWP3BLE {
		_ = h.Send(hub.RawFrameCommand{Frame: hubNameRequest()})
	}
	if name := h.Name(); name != "" {
		fmt.Println(name)
		return h.Disconnect()
	}
	select {
	case <-ctx.Done():
	case evt, ok := <-sub.C():
		if ok && evt.Type == hub.EventName {
			fmt.Println(evt.Name)
		}
	case <-time.After(5 * time.Second):
		fmt.Println(h.Name())
	}
	return h.Disconnect()
}
