package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hublink",
	Short: "LEGO hub protocol engine CLI",
	Long: `Command-line front end for the hublink protocol engine:

- Scan for LEGO Powered Up, BOOST, Technic and SPIKE Prime hubs
- Connect and stream live device telemetry (motors, sensors, battery, IMU)
- Drive motors and the hub LED
- Rename hubs over either protocol
- Attach SPIKE hubs over the serial accessory stream when BLE exposes no
  usable protocol

Useful for robotics prototyping, classroom debugging, and protocol
exploration.`,
	Version: version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(motorCmd)
	rootCmd.AddCommand(nameCmd)

	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().String("line", "", "Serial accessory path (use the line transport instead of BLE)")
}
