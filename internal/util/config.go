// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds beaker build settings
type Config struct {
	Network        string        `yaml:"network" description:"Network whose algod compiles programs (localnet, mainnet, testnet, betanet)" default:"localnet"`
	TealVersion    int           `yaml:"teal_version" description:"TEAL version programs are rendered for" default:"10"`
	PageSize       int           `yaml:"page_size" description:"Program page size in bytes" default:"2048"`
	CompileTimeout time.Duration `yaml:"compile_timeout" description:"Timeout for a single algod compile call" default:"30s"`
	OutputDir      string        `yaml:"output_dir" description:"Artifact output directory (relative to the working directory)" default:"artifacts"`
	Concurrency    int           `yaml:"concurrency" description:"Number of applications built in parallel" default:"4"`

	// Localnet algod settings
	LocalnetAlgodServer string `yaml:"localnet_algod_server" description:"Localnet algod server URL" default:"http://localhost"`
	LocalnetAlgodPort   int    `yaml:"localnet_algod_port" description:"Localnet algod port" default:"4001"`
	LocalnetAlgodToken  string `yaml:"localnet_algod_token" description:"Localnet algod API token"`

	// Mainnet algod settings
	MainnetAlgodServer string `yaml:"mainnet_algod_server" description:"Mainnet algod server URL"`
	MainnetAlgodPort   int    `yaml:"mainnet_algod_port" description:"Mainnet algod port (if separate from URL)"`
	MainnetAlgodToken  string `yaml:"mainnet_algod_token" description:"Mainnet algod API token"`

	// Testnet algod settings
	TestnetAlgodServer string `yaml:"testnet_algod_server" description:"Testnet algod server URL"`
	TestnetAlgodPort   int    `yaml:"testnet_algod_port" description:"Testnet algod port (if separate from URL)"`
	TestnetAlgodToken  string `yaml:"testnet_algod_token" description:"Testnet algod API token"`

	// Betanet algod settings
	BetanetAlgodServer string `yaml:"betanet_algod_server" description:"Betanet algod server URL"`
	BetanetAlgodPort   int    `yaml:"betanet_algod_port" description:"Betanet algod port (if separate from URL)"`
	BetanetAlgodToken  string `yaml:"betanet_algod_token" description:"Betanet algod API token"`
}

// LocalnetToken is the API token of a default localnet algod.
const LocalnetToken = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

// DefaultConfig returns the default configuration for runtime use.
// Only localnet has a default algod; other networks must be configured.
func DefaultConfig() Config {
	return Config{
		Network:             "localnet",
		TealVersion:         10,
		PageSize:            2048,
		CompileTimeout:      30 * time.Second,
		OutputDir:           "artifacts",
		Concurrency:         4,
		LocalnetAlgodServer: "http://localhost",
		LocalnetAlgodPort:   4001,
		LocalnetAlgodToken:  LocalnetToken,
	}
}

// DefaultDataDir is the default data directory for beaker
const DefaultDataDir = "~/.beaker"

// DataDirEnv overrides the default data directory.
const DataDirEnv = "BEAKER_DATA"

// GetDataDir returns the data directory for beaker.
// Resolution order: -d flag > BEAKER_DATA env var > ~/.beaker
func GetDataDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envDir := os.Getenv(DataDirEnv); envDir != "" {
		return envDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "" // Can't determine default
	}
	return filepath.Join(home, ".beaker")
}

// GetConfigPath returns the path to the config file in the data directory.
// Returns empty string if dataDir is empty.
func GetConfigPath(dataDir string) string {
	if dataDir == "" {
		return ""
	}
	return filepath.Join(dataDir, "config.yaml")
}

// LoadConfig loads configuration from config.yaml in the data directory.
// If dataDir is empty or file doesn't exist, returns default config.
func LoadConfig(dataDir string) (Config, error) {
	return LoadConfigFromPath(GetConfigPath(dataDir))
}

var validNetworks = map[string]bool{
	"localnet": true,
	"mainnet":  true,
	"testnet":  true,
	"betanet":  true,
}

// LoadConfigFromPath loads configuration from the specified path.
// If path is empty, returns default config.
// If the file doesn't exist, returns default config.
func LoadConfigFromPath(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults, then overlay config file values
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate checks that every setting is in range.
func (c *Config) Validate() error {
	if !validNetworks[c.Network] {
		return fmt.Errorf("invalid network '%s' in config (must be localnet, mainnet, testnet, or betanet)", c.Network)
	}
	if c.TealVersion < 8 || c.TealVersion > 11 {
		return fmt.Errorf("invalid teal_version %d (supported 8-11)", c.TealVersion)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", c.PageSize)
	}
	if c.CompileTimeout <= 0 {
		return fmt.Errorf("compile_timeout must be positive, got %s", c.CompileTimeout)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("output_dir must not be empty")
	}
	return nil
}

// AlgodConfig holds algod connection settings for a network
type AlgodConfig struct {
	Server string
	Port   int
	Token  string
}

// Address returns the full algod address, including port if specified
func (a *AlgodConfig) Address() string {
	if a.Port > 0 {
		return fmt.Sprintf("%s:%d", a.Server, a.Port)
	}
	return a.Server
}

// GetAlgodConfig returns the algod settings for the specified network.
// Returns an error if the network has no server configured.
func (c *Config) GetAlgodConfig(network string) (*AlgodConfig, error) {
	var a AlgodConfig
	switch network {
	case "localnet":
		a = AlgodConfig{Server: c.LocalnetAlgodServer, Port: c.LocalnetAlgodPort, Token: c.LocalnetAlgodToken}
	case "mainnet":
		a = AlgodConfig{Server: c.MainnetAlgodServer, Port: c.MainnetAlgodPort, Token: c.MainnetAlgodToken}
	case "testnet":
		a = AlgodConfig{Server: c.TestnetAlgodServer, Port: c.TestnetAlgodPort, Token: c.TestnetAlgodToken}
	case "betanet":
		a = AlgodConfig{Server: c.BetanetAlgodServer, Port: c.BetanetAlgodPort, Token: c.BetanetAlgodToken}
	default:
		return nil, fmt.Errorf("invalid network: %s", network)
	}
	if a.Server == "" {
		return nil, fmt.Errorf("no algod server configured for %s (set %s_algod_server in config.yaml)", network, network)
	}
	return &a, nil
}
