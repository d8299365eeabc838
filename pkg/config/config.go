package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/speedrun-hq/speedrun-settlement/pkg/logger"
)

// Config holds the configuration for the settlement service
type Config struct {
	QuoteEndpoint  string
	SweepInterval  time.Duration
	PrivateKey     string
	Chains         map[int]ChainConfig
	WorkerCount    int
	QueueSize      int
	MetricsPort    string
	MetricsAPIKey  string
	CircuitBreaker CircuitBreakerConfig
	Settlement     SettlementConfig
	LoggerConfig   LoggerConfig
}

// SettlementConfig holds the order defaults applied by the engine
type SettlementConfig struct {
	TimeLock         time.Duration
	SecretsRequired  int
	CommitmentScheme string
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled        bool
	Threshold      int
	WindowDuration time.Duration
	ResetTimeout   time.Duration
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// ChainConfig holds the configuration for a specific blockchain
type ChainConfig struct {
	ChainID       int
	RPCURL        string
	EscrowAddress string
	GasMultiplier float64
	TokenDecimals int32
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}
	return FromEnv()
}

// FromEnv reads the configuration from the process environment only
func FromEnv() (*Config, error) {
	sweepInterval, err := GetEnvSweepInterval()
	if err != nil {
		return nil, err
	}

	workerCount, err := GetEnvWorkerCount()
	if err != nil {
		return nil, err
	}

	queueSize, err := GetEnvQueueSize()
	if err != nil {
		return nil, err
	}

	metricsPort, err := GetEnvMetricsPort()
	if err != nil {
		return nil, err
	}

	cbEnabled, err := GetEnvCircuitBreakerEnabled()
	if err != nil {
		return nil, err
	}

	cbThreshold, err := GetEnvCircuitBreakerThreshold()
	if err != nil {
		return nil, err
	}

	cbWindow, err := GetEnvCircuitBreakerWindow()
	if err != nil {
		return nil, err
	}

	cbReset, err := GetEnvCircuitBreakerReset()
	if err != nil {
		return nil, err
	}

	timeLock, err := GetEnvTimeLock()
	if err != nil {
		return nil, err
	}

	secretsRequired, err := GetEnvSecretsRequired()
	if err != nil {
		return nil, err
	}

	commitment, err := GetEnvCommitmentScheme()
	if err != nil {
		return nil, err
	}

	quoteEndpoint, err := GetEnvQuoteEndpoint()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	chainConfigs, err := GetEnvChainConfigs()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		QuoteEndpoint: quoteEndpoint,
		SweepInterval: sweepInterval,
		PrivateKey:    os.Getenv("PRIVATE_KEY"),
		Chains:        chainConfigs,
		WorkerCount:   workerCount,
		QueueSize:     queueSize,
		MetricsPort:   metricsPort,
		MetricsAPIKey: os.Getenv("METRICS_API_KEY"),
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:        cbEnabled,
			Threshold:      cbThreshold,
			WindowDuration: cbWindow,
			ResetTimeout:   cbReset,
		},
		Settlement: SettlementConfig{
			TimeLock:         timeLock,
			SecretsRequired:  secretsRequired,
			CommitmentScheme: commitment,
		},
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig validates the configuration.
// Without chains the service runs against the simulated chain client and needs no key.
func validateConfig(cfg *Config) error {
	if len(cfg.Chains) == 0 {
		return nil
	}
	if cfg.PrivateKey == "" {
		return fmt.Errorf("PRIVATE_KEY environment variable is required when chains are configured")
	}
	for chainID, chainConfig := range cfg.Chains {
		if chainConfig.EscrowAddress == "" {
			return fmt.Errorf("CHAIN_%d_ESCROW_ADDRESS for chain %d is required", chainID, chainID)
		}
		if !common.IsHexAddress(chainConfig.EscrowAddress) {
			return fmt.Errorf("invalid CHAIN_%d_ESCROW_ADDRESS value: %s, must be a valid Ethereum address",
				chainID, chainConfig.EscrowAddress)
		}
	}
	return nil
}
