package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Config is the optional YAML configuration file.
type Config struct {
	Line struct {
		Path string `yaml:"path"`
		Baud int    `yaml:"baud"`
	} `yaml:"line"`
	BLE struct {
		DialTimeout time.Duration `yaml:"dial_timeout"`
	} `yaml:"ble"`
}

// loadConfig reads the file named by --config, or returns defaults when the
// flag is unset.
func loadConfig(cmd *cobra.Command) (*Config, error) {
	cfg := &Config{}
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}
