// Package config persists CLI defaults for the friend tool.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/OpenTraceLab/OpenTraceFriend/pkg/bitbang"
)

// AppConfig stores persistent session settings. Zero fields fall back to the
// driver defaults.
type AppConfig struct {
	Adapter       string `json:"adapter,omitempty"` // "ftdi" or "simulator"
	VendorID      uint16 `json:"vendor_id,omitempty"`
	ProductID     uint16 `json:"product_id,omitempty"`
	Latency       *uint8 `json:"latency,omitempty"`
	SpeedKHz      int    `json:"speed_khz,omitempty"`
	BufferSize    int    `json:"buffer_size,omitempty"`
	FrameSize     int    `json:"frame_size,omitempty"`
	Overflow      string `json:"overflow,omitempty"`
	SRSTPullsTRST bool   `json:"srst_pulls_trst,omitempty"`
}

// Path returns the config file location, creating its directory.
func Path() (string, error) {
	var configDir string
	if appData := os.Getenv("APPDATA"); appData != "" {
		// Windows: %APPDATA%\OpenTraceFriend
		configDir = filepath.Join(appData, "OpenTraceFriend")
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(homeDir, ".config", "opentracefriend")
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// Load reads the config file. A missing file yields an empty config.
func Load() (*AppConfig, error) {
	configPath, err := Path()
	if err != nil {
		return &AppConfig{}, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &AppConfig{}, nil
		}
		return nil, err
	}

	var cfg AppConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}
	return &cfg, nil
}

// Save writes cfg to the config file.
func Save(cfg *AppConfig) error {
	configPath, err := Path()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0644)
}

// Session merges the stored settings over the driver defaults.
func (c *AppConfig) Session() (bitbang.Config, error) {
	cfg := bitbang.DefaultConfig()
	if c.VendorID != 0 {
		cfg.VendorID = c.VendorID
	}
	if c.ProductID != 0 {
		cfg.ProductID = c.ProductID
	}
	if c.Latency != nil {
		cfg.Latency = *c.Latency
	}
	if c.SpeedKHz != 0 {
		cfg.SpeedKHz = c.SpeedKHz
	}
	if c.BufferSize != 0 {
		cfg.BufferSize = c.BufferSize
	}
	if c.FrameSize != 0 {
		cfg.FrameSize = c.FrameSize
	}
	if c.Overflow != "" {
		p, err := bitbang.ParseOverflowPolicy(c.Overflow)
		if err != nil {
			return cfg, err
		}
		cfg.Overflow = p
	}
	cfg.SRSTPullsTRST = c.SRSTPullsTRST
	return cfg, cfg.Validate()
}
