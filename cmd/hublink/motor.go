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

var motorCmd = &cobra.Command{
	Use:   "motor <address> <port> <speed>",
	Short: "Run a motor",
	Long: `Connect to a hub and run the motor on the given port (a letter such as A,
or a numeric port ID) at the given speed (-100..100). With --duration the
motor stops after that long; otherwise it runs until Ctrl+C.`,
	Args: cobra.ExactArgs(3),
	RunE: runMotor,
}

func init() {
	motorCmd.Flags().DurationP("duration", "d", 0, "Run duration (0 = until interrupted)")
	motorCmd.Flags().Bool("brake", false, "Brake instead of floating when stopping")
}

// parsePort accepts a single letter A..Z or a numeric port ID.
func parsePort(s string) (byte, error) {
	if len(s) == 1 {
		c := s[0]
		if c >= 'A' && c <= 'Z' {
			return c - 'A', nil
		}
		if c >= 'a' && c <= 'z' {
			return c - 'a', nil
		}
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil || n < 0 || n > 255 {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	return byte(n), nil
}

func runMotor(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	linePath, _ := cmd.Flags().GetString("line")
	duration, _ := cmd.Flags().GetDuration("duration")
	brake, _ := cmd.Flags().GetBool("brake")

	port, err := parsePort(args[1])
	if err != nil {
		return err
	}
	var speed int
	if _, err := fmt.Sscanf(args[2], "%d", &speed); err != nil || speed < -100 || speed > 100 {
		return fmt.Errorf("invalid speed %q (must be -100..100)", args[2])
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := connectTarget(ctx, args[0], linePath, cfg, logger)
	if err != nil {
		return err
	}
	defer h.Close()

	if err := h.Send(hub.StartSpeed(port, int8(speed), 100)); err != nil {
		return err
	}
	fmt.Printf("Running %s at %d on %s\n", lwp3.PortName(port), speed, h.Identifier())

	if duration > 0 {
		select {
		case <-time.After(duration):
		case <-ctx.Done():
		}
	} else {
		<-ctx.Done()
	}

	if brake {
		err = h.Send(hub.StartPower(port, 127))
	} else {
		err = h.Send(hub.StartPower(port, 0))
	}
	if err != nil {
		return err
	}
	// Give the stop command a moment to leave before tearing down.
	time.Sleep(100 * time.Millisecond)
	return h.Disconnect()
}
