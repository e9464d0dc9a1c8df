package config

import (
	"errors"
	"strconv"

	"os"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// DefaultSlippageBps is the slippage tolerance applied when a request does
	// not carry its own, in basis points.
	DefaultSlippageBps int

	// RefreshIntervalMinutes is the cadence of the background APY refresh loop.
	RefreshIntervalMinutes int

	// QuoteTimeoutSeconds bounds every outbound quote/aggregator HTTP call.
	QuoteTimeoutSeconds int

	// VeloraAPIBase is the base URL of the Velora aggregator API.
	VeloraAPIBase string
	// LiFiAPIBase is the base URL of the LiFi cross-venue API.
	LiFiAPIBase string
	// PriceAPIBase is the base URL of the USD price source.
	PriceAPIBase string
	// YieldAPIBase is the base URL of the staking/borrow market data source.
	YieldAPIBase string
	// RewardsAPIBase is the base URL of the incentive campaign source.
	RewardsAPIBase string

	// WebServerPort is the HTTP listen port. Optional; defaults to 8080.
	WebServerPort string

	// SignerPrivateKey is the hex private key of the executing account.
	// Optional; when empty the service plans but never executes.
	SignerPrivateKey string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	DefaultSlippageBps, err = getEnvAsInt("DEFAULT_SLIPPAGE_BPS")
	if err != nil {
		return err
	}
	if DefaultSlippageBps < 0 || DefaultSlippageBps > 10000 {
		return errors.New("DEFAULT_SLIPPAGE_BPS must be within [0, 10000]")
	}

	RefreshIntervalMinutes, err = getEnvAsInt("REFRESH_INTERVAL_MINUTES")
	if err != nil {
		return err
	}
	if RefreshIntervalMinutes <= 0 {
		return errors.New("REFRESH_INTERVAL_MINUTES must be positive")
	}

	QuoteTimeoutSeconds, err = getEnvAsInt("QUOTE_TIMEOUT_SECONDS")
	if err != nil {
		return err
	}
	if QuoteTimeoutSeconds <= 0 {
		return errors.New("QUOTE_TIMEOUT_SECONDS must be positive")
	}

	VeloraAPIBase, err = getEnv("VELORA_API_BASE")
	if err != nil {
		return err
	}

	LiFiAPIBase, err = getEnv("LIFI_API_BASE")
	if err != nil {
		return err
	}

	PriceAPIBase, err = getEnv("PRICE_API_BASE")
	if err != nil {
		return err
	}

	YieldAPIBase, err = getEnv("YIELD_API_BASE")
	if err != nil {
		return err
	}

	RewardsAPIBase, err = getEnv("REWARDS_API_BASE")
	if err != nil {
		return err
	}

	// Optional settings
	WebServerPort = os.Getenv("WEB_SERVER_PORT")
	if WebServerPort == "" {
		WebServerPort = "8080"
	}
	SignerPrivateKey = os.Getenv("SIGNER_PRIVATE_KEY")

	// Load per-chain RPC endpoint configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Int("DefaultSlippageBps", DefaultSlippageBps).
		Int("RefreshIntervalMinutes", RefreshIntervalMinutes).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsInt retrieves an environment variable as an int. Returns error if not set or invalid.
func getEnvAsInt(key string) (int, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid integer, got: " + valueStr)
	}
	return value, nil
}
