// Package config provides configuration management for the perpengine
// control plane. It loads settings from environment variables and .env
// files, with validation and a hot-reload path for the fields that support it.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TradingMode is the operating mode of the trading engine.
type TradingMode string

const (
	ModePaper TradingMode = "paper"
	ModeLive  TradingMode = "live"
)

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true,
	"warn": true, "error": true, "fatal": true,
	"panic": true, "disabled": true,
}

// validStrategies mirrors the strategy Registry's built-in entries; kept
// here (rather than importing strategy) to avoid a config->strategy
// dependency edge purely for name validation.
var validStrategies = map[string]bool{
	"custom":       true,
	"standard":     true,
	"rsi_momentum": true,
}

// ValidationError aggregates every configuration problem found in one pass.
type ValidationError struct {
	Errors []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("%d configuration error(s):\n  - %s",
		len(ve.Errors), strings.Join(ve.Errors, "\n  - "))
}

// ReloadChange describes one field changed (or flagged as restart-required)
// during a hot-reload.
type ReloadChange struct {
	Field    string      `json:"field"`
	OldValue interface{} `json:"oldValue"`
	NewValue interface{} `json:"newValue"`
	Applied  bool        `json:"applied"`
}

// ReloadResult summarizes a Reload call.
type ReloadResult struct {
	Changes         []ReloadChange `json:"changes"`
	RequiresRestart bool           `json:"requiresRestart"`
	RestartReasons  []string       `json:"restartReasons,omitempty"`
}

// Config holds every setting the control plane reads at startup, plus the
// subset that supports hot-reload.
type Config struct {
	mu sync.RWMutex

	// Server settings (restart-required).
	ServerPort int
	ServerHost string

	// APIKey authenticates frontend HTTP commands under /api/v1
	// (hot-reloadable). The /ws route is not checked against it.
	APIKey string

	// TradingMode is paper or live (restart-required). Live mode adds
	// credential checks to Validate; the order path does not consult it, so
	// orders reach the exchange in either mode.
	TradingMode TradingMode

	// LogLevel is a zerolog level name (hot-reloadable).
	LogLevel string

	// DefaultLeverage and DefaultMarginFraction are validated and
	// hot-reloaded; nothing outside this package reads them, and AddMarket
	// requests carry their own leverage and margin allocation.
	DefaultLeverage       int
	DefaultMarginFraction float64

	// BinanceAPIKey/Secret authenticate the exchange client
	// (restart-required: rotating them needs a fresh BinanceClient).
	BinanceAPIKey    string
	BinanceAPISecret string
	BinanceBaseURL   string

	// EnabledStrategies is checked against the known strategy names
	// (restart-required). AddMarket resolves its strategy name through
	// strategy.Registry without consulting this list.
	EnabledStrategies []string

	// MarginDBPath is the SQLite file the margin book journals its last
	// synced equity snapshot to, for crash recovery (restart-required).
	MarginDBPath string

	// EnvFile is the dotenv file Load/Reload read from.
	EnvFile string
}

// Load reads configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:            getEnvInt("PORT", 8090),
		ServerHost:            getEnv("HOST", "0.0.0.0"),
		APIKey:                os.Getenv("API_KEY"),
		TradingMode:           TradingMode(getEnv("TRADING_MODE", string(ModePaper))),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		DefaultLeverage:       getEnvInt("DEFAULT_LEVERAGE", 5),
		DefaultMarginFraction: getEnvFloat("DEFAULT_MARGIN_FRACTION", 0.1),
		BinanceAPIKey:         os.Getenv("BINANCE_API_KEY"),
		BinanceAPISecret:      os.Getenv("BINANCE_API_SECRET"),
		BinanceBaseURL:        getEnv("BINANCE_BASE_URL", "https://fapi.binance.com"),
		EnabledStrategies:     parseList(getEnv("ENABLED_STRATEGIES", "custom")),
		MarginDBPath:          getEnv("MARGIN_DB_PATH", "margin.db"),
		EnvFile:               ".env",
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate aggregates every configuration problem into one ValidationError.
func (c *Config) Validate() error {
	var errs []string

	if c.TradingMode != ModePaper && c.TradingMode != ModeLive {
		errs = append(errs, fmt.Sprintf("invalid TRADING_MODE %q: must be 'paper' or 'live'", c.TradingMode))
	}
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Sprintf("invalid PORT %d: must be between 1 and 65535", c.ServerPort))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("invalid LOG_LEVEL %q: must be one of trace, debug, info, warn, error, fatal, panic, disabled", c.LogLevel))
	}
	if c.DefaultLeverage < 1 {
		errs = append(errs, fmt.Sprintf("invalid DEFAULT_LEVERAGE %d: must be >= 1", c.DefaultLeverage))
	}
	if c.DefaultMarginFraction <= 0 || c.DefaultMarginFraction > 1 {
		errs = append(errs, fmt.Sprintf("invalid DEFAULT_MARGIN_FRACTION %f: must be in (0, 1]", c.DefaultMarginFraction))
	}
	errs = append(errs, c.validateStrategies()...)
	errs = append(errs, c.validateMode()...)

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func (c *Config) validateStrategies() []string {
	var errs []string
	for _, name := range c.EnabledStrategies {
		if !validStrategies[name] {
			available := make([]string, 0, len(validStrategies))
			for k := range validStrategies {
				available = append(available, k)
			}
			errs = append(errs, fmt.Sprintf("unknown strategy %q in ENABLED_STRATEGIES: available strategies are %v", name, available))
		}
	}
	return errs
}

func (c *Config) validateMode() []string {
	var errs []string
	if c.IsLive() {
		if c.APIKey == "" {
			errs = append(errs, "live mode requires API_KEY for authentication: generate one with GenerateAPIKey or set API_KEY in .env")
		}
		if c.BinanceAPIKey == "" || c.BinanceAPISecret == "" {
			errs = append(errs, "live mode requires BINANCE_API_KEY and BINANCE_API_SECRET")
		}
	}
	return errs
}

// IsPaper reports whether TradingMode is paper. Nothing outside this package
// consults it; the order path is the same in both modes.
func (c *Config) IsPaper() bool { return c.TradingMode == ModePaper }

// IsLive reports whether TradingMode is live, which makes Validate require
// API and exchange credentials.
func (c *Config) IsLive() bool { return c.TradingMode == ModeLive }

// Reload re-reads the environment, applying only hot-reloadable fields to
// the live config and reporting restart-required fields without applying
// them.
func (c *Config) Reload() (*ReloadResult, error) {
	envFile := c.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Overload(envFile)

	newCfg := &Config{
		ServerPort:            getEnvInt("PORT", 8090),
		ServerHost:            getEnv("HOST", "0.0.0.0"),
		APIKey:                os.Getenv("API_KEY"),
		TradingMode:           TradingMode(getEnv("TRADING_MODE", string(ModePaper))),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		DefaultLeverage:       getEnvInt("DEFAULT_LEVERAGE", 5),
		DefaultMarginFraction: getEnvFloat("DEFAULT_MARGIN_FRACTION", 0.1),
		BinanceAPIKey:         os.Getenv("BINANCE_API_KEY"),
		BinanceAPISecret:      os.Getenv("BINANCE_API_SECRET"),
		BinanceBaseURL:        getEnv("BINANCE_BASE_URL", "https://fapi.binance.com"),
		EnabledStrategies:     parseList(getEnv("ENABLED_STRATEGIES", "custom")),
		MarginDBPath:          getEnv("MARGIN_DB_PATH", "margin.db"),
		EnvFile:               envFile,
	}
	if err := newCfg.Validate(); err != nil {
		return nil, fmt.Errorf("reloaded config validation failed: %w", err)
	}

	result := &ReloadResult{Changes: make([]ReloadChange, 0)}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.detectRestartChange(result, "ServerPort", c.ServerPort, newCfg.ServerPort)
	c.detectRestartChange(result, "ServerHost", c.ServerHost, newCfg.ServerHost)
	c.detectRestartChange(result, "TradingMode", string(c.TradingMode), string(newCfg.TradingMode))
	c.detectRestartChange(result, "BinanceBaseURL", c.BinanceBaseURL, newCfg.BinanceBaseURL)
	c.detectRestartChange(result, "MarginDBPath", c.MarginDBPath, newCfg.MarginDBPath)
	if c.BinanceAPIKey != newCfg.BinanceAPIKey || c.BinanceAPISecret != newCfg.BinanceAPISecret {
		result.Changes = append(result.Changes, ReloadChange{Field: "BinanceCredentials", OldValue: "[redacted]", NewValue: "[redacted]", Applied: false})
		result.RequiresRestart = true
		result.RestartReasons = append(result.RestartReasons, "BinanceCredentials changed")
	}
	if !stringSlicesEqual(c.EnabledStrategies, newCfg.EnabledStrategies) {
		result.Changes = append(result.Changes, ReloadChange{Field: "EnabledStrategies", OldValue: c.EnabledStrategies, NewValue: newCfg.EnabledStrategies, Applied: false})
		result.RequiresRestart = true
		result.RestartReasons = append(result.RestartReasons, "EnabledStrategies changed")
	}

	if c.LogLevel != newCfg.LogLevel {
		result.Changes = append(result.Changes, ReloadChange{Field: "LogLevel", OldValue: c.LogLevel, NewValue: newCfg.LogLevel, Applied: true})
		c.LogLevel = newCfg.LogLevel
		if lvl, err := zerolog.ParseLevel(newCfg.LogLevel); err == nil {
			zerolog.SetGlobalLevel(lvl)
		}
	}
	if c.DefaultLeverage != newCfg.DefaultLeverage {
		result.Changes = append(result.Changes, ReloadChange{Field: "DefaultLeverage", OldValue: c.DefaultLeverage, NewValue: newCfg.DefaultLeverage, Applied: true})
		c.DefaultLeverage = newCfg.DefaultLeverage
	}
	if c.DefaultMarginFraction != newCfg.DefaultMarginFraction {
		result.Changes = append(result.Changes, ReloadChange{Field: "DefaultMarginFraction", OldValue: c.DefaultMarginFraction, NewValue: newCfg.DefaultMarginFraction, Applied: true})
		c.DefaultMarginFraction = newCfg.DefaultMarginFraction
	}
	if c.APIKey != newCfg.APIKey {
		result.Changes = append(result.Changes, ReloadChange{Field: "APIKey", OldValue: "[redacted]", NewValue: "[redacted]", Applied: true})
		c.APIKey = newCfg.APIKey
	}

	log.Info().Int("totalChanges", len(result.Changes)).Bool("requiresRestart", result.RequiresRestart).Msg("configuration reloaded")
	return result, nil
}

func (c *Config) detectRestartChange(result *ReloadResult, field string, oldVal, newVal interface{}) {
	if fmt.Sprintf("%v", oldVal) != fmt.Sprintf("%v", newVal) {
		result.Changes = append(result.Changes, ReloadChange{Field: field, OldValue: oldVal, NewValue: newVal, Applied: false})
		result.RequiresRestart = true
		result.RestartReasons = append(result.RestartReasons, field+" changed")
	}
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// GenerateAPIKey returns a fresh 32-byte API key, hex-encoded.
func GenerateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// RotateAPIKey generates a new API key, applies it to the live config, and
// rewrites it into the .env file.
func (c *Config) RotateAPIKey() (string, error) {
	newKey, err := GenerateAPIKey()
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.APIKey = newKey
	envFile := c.EnvFile
	c.mu.Unlock()
	if envFile == "" {
		envFile = ".env"
	}

	content, err := os.ReadFile(envFile)
	if err != nil {
		if os.IsNotExist(err) {
			return newKey, os.WriteFile(envFile, []byte("API_KEY="+newKey+"\n"), 0644)
		}
		return "", err
	}

	lines := strings.Split(string(content), "\n")
	found := false
	for i, line := range lines {
		if strings.HasPrefix(line, "API_KEY=") {
			lines[i] = "API_KEY=" + newKey
			found = true
			break
		}
	}
	if !found {
		lines = append(lines, "API_KEY="+newKey)
	}

	if err := os.WriteFile(envFile, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return "", fmt.Errorf("write .env: %w", err)
	}
	return newKey, nil
}
