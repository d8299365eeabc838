package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/speedrun-hq/speedrun-settlement/pkg/logger"
	"github.com/speedrun-hq/speedrun-settlement/pkg/secrets"
)

const (
	// DefaultSweepInterval defines the default timelock sweep interval in seconds
	DefaultSweepInterval = 30

	// DefaultWorkerCount defines the default number of workers driving orders
	DefaultWorkerCount = 5

	// DefaultQueueSize defines the default capacity of the driver queue
	DefaultQueueSize = 100

	// DefaultMetricsPort defines the default port for the metrics server
	DefaultMetricsPort = "8080"

	// DefaultCircuitBreakerEnabled defines whether the circuit breaker is enabled
	DefaultCircuitBreakerEnabled = true

	// DefaultCircuitBreakerThreshold defines the number of failures before the circuit breaker trips
	DefaultCircuitBreakerThreshold = 5

	// DefaultCircuitBreakerWindow defines the time window for the circuit breaker
	DefaultCircuitBreakerWindow = 5 * time.Minute

	// DefaultCircuitBreakerReset defines the reset timeout for the circuit breaker
	DefaultCircuitBreakerReset = 15 * time.Minute

	// DefaultTimeLock defines how long an order may settle before it can be refunded
	DefaultTimeLock = 24 * time.Hour

	// DefaultSecretsRequired defines how many secrets guard an order
	DefaultSecretsRequired = 1

	// DefaultCommitmentScheme defines the hash used for secret commitments
	DefaultCommitmentScheme = "keccak256"

	// DefaultQuoteEndpoint defines the default quote API endpoint
	DefaultQuoteEndpoint = "https://api.speedrun.exchange"

	// DefaultLogLevel defines the default log level
	DefaultLogLevel = "info"

	// DefaultGasMultiplier defines the default gas price multiplier
	DefaultGasMultiplier = 1.1

	// DefaultTokenDecimals defines the default token decimals used for base units
	DefaultTokenDecimals = 18
)

// GetEnvSweepInterval returns the sweep interval in seconds from environment variables
func GetEnvSweepInterval() (time.Duration, error) {
	sweepInterval := os.Getenv("SWEEP_INTERVAL")
	if sweepInterval == "" {
		return time.Duration(DefaultSweepInterval) * time.Second, nil
	}

	interval, err := strconv.Atoi(sweepInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid SWEEP_INTERVAL value: %s, must be an integer", sweepInterval)
	}
	if interval <= 0 {
		return 0, fmt.Errorf("SWEEP_INTERVAL must be greater than 0")
	}
	return time.Duration(interval) * time.Second, nil
}

// GetEnvWorkerCount returns the number of workers from environment variables
func GetEnvWorkerCount() (int, error) {
	return getEnvPositiveInt("WORKER_COUNT", DefaultWorkerCount)
}

// GetEnvQueueSize returns the driver queue capacity from environment variables
func GetEnvQueueSize() (int, error) {
	return getEnvPositiveInt("QUEUE_SIZE", DefaultQueueSize)
}

// GetEnvSecretsRequired returns the number of secrets per order from environment variables
func GetEnvSecretsRequired() (int, error) {
	return getEnvPositiveInt("SECRETS_REQUIRED", DefaultSecretsRequired)
}

// GetEnvMetricsPort returns the metrics server port from environment variables
func GetEnvMetricsPort() (string, error) {
	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		return DefaultMetricsPort, nil
	}

	if _, err := strconv.Atoi(metricsPort); err != nil {
		return "", fmt.Errorf("invalid METRICS_PORT value: %s, must be a valid integer", metricsPort)
	}
	return metricsPort, nil
}

// GetEnvCircuitBreakerEnabled returns whether the circuit breaker is enabled from environment variables
func GetEnvCircuitBreakerEnabled() (bool, error) {
	enabled := os.Getenv("CIRCUIT_BREAKER_ENABLED")
	if enabled == "" {
		return DefaultCircuitBreakerEnabled, nil
	}

	if enabled == "true" {
		return true, nil
	} else if enabled == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid CIRCUIT_BREAKER_ENABLED value: %s, must be 'true' or 'false'", enabled)
}

// GetEnvCircuitBreakerThreshold returns the circuit breaker threshold from environment variables
func GetEnvCircuitBreakerThreshold() (int, error) {
	return getEnvPositiveInt("CIRCUIT_BREAKER_THRESHOLD", DefaultCircuitBreakerThreshold)
}

// GetEnvCircuitBreakerWindow returns the circuit breaker window duration from environment variables
func GetEnvCircuitBreakerWindow() (time.Duration, error) {
	return getEnvDuration("CIRCUIT_BREAKER_WINDOW", DefaultCircuitBreakerWindow)
}

// GetEnvCircuitBreakerReset returns the circuit breaker reset timeout from environment variables
func GetEnvCircuitBreakerReset() (time.Duration, error) {
	return getEnvDuration("CIRCUIT_BREAKER_RESET", DefaultCircuitBreakerReset)
}

// GetEnvTimeLock returns the order timelock duration from environment variables
func GetEnvTimeLock() (time.Duration, error) {
	return getEnvDuration("TIMELOCK_DURATION", DefaultTimeLock)
}

// GetEnvCommitmentScheme returns the secret commitment scheme from environment variables
func GetEnvCommitmentScheme() (string, error) {
	scheme := strings.ToLower(os.Getenv("COMMITMENT_SCHEME"))
	if scheme == "" {
		return DefaultCommitmentScheme, nil
	}
	if _, err := secrets.CommitmentByName(scheme); err != nil {
		return "", fmt.Errorf("invalid COMMITMENT_SCHEME value: %s: %v", scheme, err)
	}
	return scheme, nil
}

// GetEnvQuoteEndpoint returns the quote API endpoint from environment variables
func GetEnvQuoteEndpoint() (string, error) {
	endpoint := os.Getenv("QUOTE_API_ENDPOINT")
	if endpoint == "" {
		return DefaultQuoteEndpoint, nil
	}

	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return "", fmt.Errorf("invalid QUOTE_API_ENDPOINT value: %s, must be a valid URL", endpoint)
	}
	return endpoint, nil
}

// GetEnvLogLevel returns the log level from environment variables
func GetEnvLogLevel() (logger.Level, error) {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = DefaultLogLevel
	}

	parsed, err := logger.ParseLevel(level)
	if err != nil {
		return logger.InfoLevel, fmt.Errorf("invalid LOG_LEVEL value: %s, must be one of debug, info, notice, error", level)
	}
	return parsed, nil
}

// GetEnvLogColoring returns whether log output is colored from environment variables
func GetEnvLogColoring() (bool, error) {
	coloring := os.Getenv("LOG_COLORING")
	if coloring == "" {
		return true, nil
	}

	parsed, err := strconv.ParseBool(coloring)
	if err != nil {
		return false, fmt.Errorf("invalid LOG_COLORING value: %s, must be a boolean", coloring)
	}
	return parsed, nil
}

func getEnvPositiveInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s, must be an integer", key, raw)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return value, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s, must be a valid duration string", key, raw)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return parsed, nil
}
