package config

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseList(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []string
	}{
		{"single", "custom", []string{"custom"}},
		{"multiple", "custom,standard,rsi_momentum", []string{"custom", "standard", "rsi_momentum"}},
		{"with spaces", "custom , standard , rsi_momentum", []string{"custom", "standard", "rsi_momentum"}},
		{"empty string", "", nil},
		{"single with spaces", "  custom  ", []string{"custom"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, parseList(tc.input))
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8090, cfg.ServerPort)
	assert.Equal(t, ModePaper, cfg.TradingMode)
	assert.Equal(t, []string{"custom"}, cfg.EnabledStrategies)
}

func TestLoadFull(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("HOST", "0.0.0.0")
	t.Setenv("API_KEY", "secret-key")
	t.Setenv("TRADING_MODE", "live")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ENABLED_STRATEGIES", "custom")
	t.Setenv("BINANCE_API_KEY", "key")
	t.Setenv("BINANCE_API_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, "0.0.0.0", cfg.ServerHost)
	assert.Equal(t, "secret-key", cfg.APIKey)
	assert.True(t, cfg.IsLive())
}

func TestRotateAPIKey(t *testing.T) {
	tmpfile, err := os.CreateTemp("", ".env")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.Write([]byte("PORT=8080\nAPI_KEY=old-key\nLOG_LEVEL=info"))
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg := &Config{EnvFile: tmpfile.Name(), APIKey: "old-key"}

	newKey, err := cfg.RotateAPIKey()
	require.NoError(t, err)
	assert.NotEmpty(t, newKey)
	assert.NotEqual(t, "old-key", newKey)
	assert.Equal(t, newKey, cfg.APIKey)

	content, err := os.ReadFile(tmpfile.Name())
	require.NoError(t, err)
	contentStr := string(content)
	assert.Contains(t, contentStr, "API_KEY="+newKey)
	assert.Contains(t, contentStr, "PORT=8080")
}

func validBaseConfig() *Config {
	return &Config{
		TradingMode:           ModePaper,
		ServerPort:            8090,
		LogLevel:              "info",
		DefaultLeverage:       5,
		DefaultMarginFraction: 0.1,
		EnabledStrategies:     []string{"custom"},
	}
}

func TestValidateValidPaperConfig(t *testing.T) {
	require.NoError(t, validBaseConfig().Validate())
}

func TestValidateValidLiveConfig(t *testing.T) {
	cfg := validBaseConfig()
	cfg.TradingMode = ModeLive
	cfg.APIKey = "some-secret-key"
	cfg.BinanceAPIKey = "key"
	cfg.BinanceAPISecret = "secret"
	require.NoError(t, cfg.Validate())
}

func TestValidateInvalidTradingMode(t *testing.T) {
	cfg := validBaseConfig()
	cfg.TradingMode = "invalid"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRADING_MODE")
}

func TestValidateInvalidPort(t *testing.T) {
	cfg := validBaseConfig()
	cfg.ServerPort = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
}

func TestValidateInvalidLogLevel(t *testing.T) {
	cfg := validBaseConfig()
	cfg.LogLevel = "verbose"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_LEVEL")
}

func TestValidateValidLogLevels(t *testing.T) {
	levels := []string{"trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled"}
	for _, level := range levels {
		t.Run(level, func(t *testing.T) {
			cfg := validBaseConfig()
			cfg.LogLevel = level
			require.NoError(t, cfg.Validate())
		})
	}
}

func TestValidateInvalidStrategy(t *testing.T) {
	cfg := validBaseConfig()
	cfg.EnabledStrategies = []string{"custom", "fake_strategy"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fake_strategy")
	assert.Contains(t, err.Error(), "ENABLED_STRATEGIES")
}

func TestValidateAllValidStrategies(t *testing.T) {
	cfg := validBaseConfig()
	cfg.EnabledStrategies = []string{"custom", "standard", "rsi_momentum"}
	require.NoError(t, cfg.Validate())
}

func TestValidateLiveModeMissingAPIKey(t *testing.T) {
	cfg := validBaseConfig()
	cfg.TradingMode = ModeLive
	cfg.BinanceAPIKey = "key"
	cfg.BinanceAPISecret = "secret"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_KEY")
	assert.Contains(t, err.Error(), "live mode")
}

func TestValidateLiveModeMissingBinanceCreds(t *testing.T) {
	cfg := validBaseConfig()
	cfg.TradingMode = ModeLive
	cfg.APIKey = "some-key"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BINANCE_API_KEY")
}

func TestValidateInvalidDefaultLeverage(t *testing.T) {
	cfg := validBaseConfig()
	cfg.DefaultLeverage = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEFAULT_LEVERAGE")
}

func TestValidateInvalidMarginFraction(t *testing.T) {
	cfg := validBaseConfig()
	cfg.DefaultMarginFraction = 1.5
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEFAULT_MARGIN_FRACTION")
}

func TestValidateMultipleErrorsAggregated(t *testing.T) {
	cfg := &Config{
		TradingMode:       "bogus",
		ServerPort:        0,
		LogLevel:          "verbose",
		EnabledStrategies: []string{"nonexistent"},
	}
	err := cfg.Validate()
	require.Error(t, err)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.GreaterOrEqual(t, len(ve.Errors), 5, "expected aggregated errors, got %d: %v", len(ve.Errors), ve.Errors)
}

func TestValidationErrorFormat(t *testing.T) {
	ve := &ValidationError{Errors: []string{"error one", "error two"}}
	errStr := ve.Error()
	assert.Contains(t, errStr, "2 configuration error(s)")
	assert.Contains(t, errStr, "error one")
	assert.Contains(t, errStr, "error two")
}

func TestValidateEmptyStrategiesOK(t *testing.T) {
	cfg := validBaseConfig()
	cfg.EnabledStrategies = nil
	require.NoError(t, cfg.Validate())
}

func TestReloadAppliesHotFieldsAndFlagsRestart(t *testing.T) {
	tmpfile, err := os.CreateTemp("", ".env")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())
	require.NoError(t, tmpfile.Close())

	cfg := validBaseConfig()
	cfg.EnvFile = tmpfile.Name()

	t.Setenv("PORT", "9999")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TRADING_MODE", "paper")
	t.Setenv("ENABLED_STRATEGIES", "custom")

	result, err := cfg.Reload()
	require.NoError(t, err)
	assert.True(t, result.RequiresRestart, "port change must require a restart")
	assert.Equal(t, "debug", cfg.LogLevel, "log level is hot-reloadable")
}
