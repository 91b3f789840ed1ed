package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/crashforbots/internal/auth"
)

// Config represents the complete server configuration
type Config struct {
	Server  *ServerSettings  `hcl:"server,block"`
	Auth    *AuthSettings    `hcl:"auth,block"`
	Game    *GameSettings    `hcl:"game,block"`
	History *HistorySettings `hcl:"history,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
	LogFile  string `hcl:"log_file,optional"`
}

// AuthSettings selects how tokens resolve to identities
type AuthSettings struct {
	Mode   string        `hcl:"mode,optional"` // none, static or http
	URL    string        `hcl:"url,optional"`
	Secret string        `hcl:"secret,optional"`
	Tokens []TokenConfig `hcl:"token,block"`
}

// TokenConfig defines one static token entry
type TokenConfig struct {
	Token    string `hcl:"value,label"`
	Address  string `hcl:"address"`
	Operator bool   `hcl:"operator,optional"`
}

// GameSettings contains round engine configuration
type GameSettings struct {
	RefundWindowSeconds int   `hcl:"refund_window_seconds,optional"`
	HouseFloat          int64 `hcl:"house_float,optional"`
	DepositOnAuth       int64 `hcl:"deposit_on_auth,optional"`
}

// HistorySettings contains round history recording configuration
type HistorySettings struct {
	Enabled        bool   `hcl:"enabled,optional"`
	Dir            string `hcl:"dir,optional"`
	FlushSeconds   int    `hcl:"flush_seconds,optional"`
	FlushThreshold int    `hcl:"flush_threshold,optional"`
}

// DefaultConfig returns the default server configuration
func DefaultConfig() *Config {
	return &Config{
		Server: &ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Auth: &AuthSettings{
			Mode: "none",
		},
		Game: &GameSettings{
			RefundWindowSeconds: 600,
			HouseFloat:          10000000, // 1000.0000 in base units
			DepositOnAuth:       1000000,  // 100.0000 in base units
		},
		History: &HistorySettings{
			Enabled:        true,
			Dir:            "round-history",
			FlushSeconds:   30,
			FlushThreshold: 10,
		},
	}
}

// LoadConfig loads configuration from an HCL file, falling back to
// defaults when the file does not exist
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	config.applyDefaults()
	return &config, nil
}

// applyDefaults fills missing blocks and values
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Server == nil {
		c.Server = defaults.Server
	}
	if c.Server.Address == "" {
		c.Server.Address = defaults.Server.Address
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaults.Server.Port
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = defaults.Server.LogLevel
	}

	if c.Auth == nil {
		c.Auth = defaults.Auth
	}
	if c.Auth.Mode == "" {
		c.Auth.Mode = defaults.Auth.Mode
	}

	if c.Game == nil {
		c.Game = defaults.Game
	}
	if c.Game.RefundWindowSeconds == 0 {
		c.Game.RefundWindowSeconds = defaults.Game.RefundWindowSeconds
	}
	if c.Game.HouseFloat == 0 {
		c.Game.HouseFloat = defaults.Game.HouseFloat
	}
	if c.Game.DepositOnAuth == 0 {
		c.Game.DepositOnAuth = defaults.Game.DepositOnAuth
	}

	if c.History == nil {
		c.History = defaults.History
	}
	if c.History.Dir == "" {
		c.History.Dir = defaults.History.Dir
	}
	if c.History.FlushSeconds == 0 {
		c.History.FlushSeconds = defaults.History.FlushSeconds
	}
	if c.History.FlushThreshold == 0 {
		c.History.FlushThreshold = defaults.History.FlushThreshold
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	switch c.Auth.Mode {
	case "none":
	case "static":
		if len(c.Auth.Tokens) == 0 {
			return fmt.Errorf("auth mode static requires at least one token block")
		}
		for _, token := range c.Auth.Tokens {
			if token.Address == "" {
				return fmt.Errorf("token %q: address is required", token.Token)
			}
		}
	case "http":
		if c.Auth.URL == "" {
			return fmt.Errorf("auth mode http requires url")
		}
	default:
		return fmt.Errorf("invalid auth mode: %s", c.Auth.Mode)
	}

	if c.Game.RefundWindowSeconds <= 0 {
		return fmt.Errorf("refund window must be positive, got %d", c.Game.RefundWindowSeconds)
	}
	if c.Game.HouseFloat < 0 {
		return fmt.Errorf("house float must not be negative, got %d", c.Game.HouseFloat)
	}
	if c.Game.DepositOnAuth < 0 {
		return fmt.Errorf("deposit on auth must not be negative, got %d", c.Game.DepositOnAuth)
	}

	if c.History.Enabled {
		if c.History.FlushSeconds <= 0 {
			return fmt.Errorf("history flush interval must be positive, got %d", c.History.FlushSeconds)
		}
		if c.History.FlushThreshold <= 0 {
			return fmt.Errorf("history flush threshold must be positive, got %d", c.History.FlushThreshold)
		}
	}

	return nil
}

// GetListenAddress returns the full listen address
func (c *Config) GetListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// GetRefundWindow returns the refund cooldown as a duration
func (c *Config) GetRefundWindow() time.Duration {
	return time.Duration(c.Game.RefundWindowSeconds) * time.Second
}

// GetFlushInterval returns the history flush interval as a duration
func (c *Config) GetFlushInterval() time.Duration {
	return time.Duration(c.History.FlushSeconds) * time.Second
}

// BuildValidator constructs the token validator the config describes
func (c *Config) BuildValidator() (auth.Validator, error) {
	switch c.Auth.Mode {
	case "none":
		return auth.NewNoopValidator(), nil
	case "static":
		entries := make(map[string]auth.Identity, len(c.Auth.Tokens))
		for _, token := range c.Auth.Tokens {
			entries[token.Token] = auth.Identity{
				Address:  token.Address,
				Operator: token.Operator,
			}
		}
		return auth.NewStaticValidator(entries), nil
	case "http":
		return auth.NewHTTPValidator(c.Auth.URL, c.Auth.Secret), nil
	default:
		return nil, fmt.Errorf("invalid auth mode: %s", c.Auth.Mode)
	}
}
