package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/srg/hublink/hub"
	"github.com/srg/hublink/lwp3"
)

var watchCmd = &cobra.Command{
	Use:   "watch [address]",
	Short: "Connect to a hub and stream its device state",
	Long: `Connect to a hub over BLE (or the serial accessory stream with --line)
and print attached devices, sensor readings, battery and console output as
they change. Interrupt with Ctrl+C.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	linePath, _ := cmd.Flags().GetString("line")
	target := ""
	if len(args) > 0 {
		target = args[0]
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := connectTarget(ctx, target, linePath, cfg, logger)
	if err != nil {
		return err
	}
	defer h.Close()

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)
	dim := color.New(color.Faint)

	green.Printf("Connected to %s (%s)\n", h.Identifier(), h.Protocol())

	sub := h.Subscribe()
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			_ = h.Disconnect()
			return nil
		case evt, ok := <-sub.C():
			if !ok {
				return nil
			}
			switch evt.Type {
			case hub.EventState:
				yellow.Printf("state: %s\n", evt.State)
				if evt.State == hub.Disconnected {
					return nil
				}
			case hub.EventAttachedDevices:
				printAttached(h.Snapshot())
			case hub.EventDeviceData:
				printDeviceData(h.Snapshot())
			case hub.EventBattery:
				cyan.Printf("battery: %d%%\n", evt.Battery)
			case hub.EventRSSI:
				dim.Printf("rssi: %d dBm\n", evt.RSSI)
			case hub.EventName:
				fmt.Printf("name: %s\n", evt.Name)
			case hub.EventConsole:
				dim.Printf("console: %s\n", evt.Text)
			case hub.EventDiagnostic:
				dim.Printf("diag: %s\n", evt.Text)
			}
		}
	}
}

func printAttached(s hub.Snapshot) {
	ports := make([]int, 0, len(s.Attached))
	for p := range s.Attached {
		ports = append(ports, int(p))
	}
	sort.Ints(ports)
	fmt.Print("attached:")
	for _, p := range ports {
		dev := s.Attached[byte(p)]
		fmt.Printf(" %s=%s", lwp3.PortName(byte(p)), dev.Label)
	}
	fmt.Println()
}

func printDeviceData(s hub.Snapshot) {
	ports := make([]int, 0, len(s.Motors)+len(s.Distances)+len(s.Colors)+len(s.Forces))
	seen := make(map[int]struct{})
	add := func(p byte) {
		if _, ok := seen[int(p)]; !ok {
			seen[int(p)] = struct{}{}
			ports = append(ports, int(p))
		}
	}
	for p := range s.Motors {
		add(p)
	}
	for p := range s.Distances {
		add(p)
	}
	for p := range s.Colors {
		add(p)
	}
	for p := range s.Forces {
		add(p)
	}
	sort.Ints(ports)

	for _, pi := range ports {
		p := byte(pi)
		name := lwp3.PortName(p)
		if m, ok := s.Motors[p]; ok {
			fmt.Printf("  %s motor speed=%d pos=%d abs=%d\n", name, m.Speed, m.Position, m.AbsolutePosition)
		}
		if d, ok := s.Distances[p]; ok {
			if d < 0 {
				fmt.Printf("  %s distance=none\n", name)
			} else {
				fmt.Printf("  %s distance=%dmm\n", name, d)
			}
		}
		if c, ok := s.Colors[p]; ok {
			fmt.Printf("  %s color=%d rgb=(%d,%d,%d)\n", name, c.Color, c.Red, c.Green, c.Blue)
		}
		if f, ok := s.Forces[p]; ok {
			fmt.Printf("  %s force=%d pressed=%v\n", name, f.Force, f.Pressed)
		}
	}
	if s.IMU != nil {
		fmt.Printf("  imu yaw/pitch/roll=%v accel=%v gyro=%v\n", s.IMU.Orientation, s.IMU.Accel, s.IMU.Gyro)
	}
}
