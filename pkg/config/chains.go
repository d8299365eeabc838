package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/speedrun-hq/speedrun-settlement/pkg/chains"
)

// defaultRPCURLs maps chain IDs to public RPC endpoints used when CHAIN_<id>_RPC_URL is unset
var defaultRPCURLs = map[int]string{
	1:     "https://eth.llamarpc.com",
	137:   "https://polygon-rpc.com",
	42161: "https://arb1.arbitrum.io/rpc",
	43114: "https://avalanche-c-chain-rpc.publicnode.com",
	56:    "https://bsc-dataseed.bnbchain.org",
	7000:  "https://zetachain-evm.blockpi.network/v1/rpc/public",
	8453:  "https://mainnet.base.org",
}

// GetDefaultRPCURL returns the public RPC endpoint for a chain, or empty if none is known
func GetDefaultRPCURL(chainID int) string {
	return defaultRPCURLs[chainID]
}

// GetEnvChainIDs returns the chains listed in SETTLEMENT_CHAINS as a comma separated list
func GetEnvChainIDs() ([]int, error) {
	raw := strings.TrimSpace(os.Getenv("SETTLEMENT_CHAINS"))
	if raw == "" {
		return nil, nil
	}

	var chainIDs []int
	seen := make(map[int]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		chainID, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid SETTLEMENT_CHAINS entry: %s, must be an integer", part)
		}
		if !chains.IsSupported(chainID) {
			return nil, fmt.Errorf("chain %d in SETTLEMENT_CHAINS is not supported", chainID)
		}
		if seen[chainID] {
			continue
		}
		seen[chainID] = true
		chainIDs = append(chainIDs, chainID)
	}
	return chainIDs, nil
}

// GetEnvChainConfigs returns the configuration of every chain in SETTLEMENT_CHAINS
func GetEnvChainConfigs() (map[int]ChainConfig, error) {
	chainIDs, err := GetEnvChainIDs()
	if err != nil {
		return nil, err
	}

	configs := make(map[int]ChainConfig, len(chainIDs))
	for _, chainID := range chainIDs {
		chainConfig, err := GetEnvChainConfig(chainID)
		if err != nil {
			return nil, err
		}
		configs[chainID] = chainConfig
	}
	return configs, nil
}

// GetEnvChainConfig reads the CHAIN_<id>_* variables for one chain
func GetEnvChainConfig(chainID int) (ChainConfig, error) {
	prefix := fmt.Sprintf("CHAIN_%d_", chainID)

	rpc := os.Getenv(prefix + "RPC_URL")
	if rpc == "" {
		rpc = GetDefaultRPCURL(chainID)
	}
	if rpc == "" {
		return ChainConfig{}, fmt.Errorf("%sRPC_URL for chain %d is required", prefix, chainID)
	}

	gasMultiplier := DefaultGasMultiplier
	if raw := os.Getenv(prefix + "GAS_MULTIPLIER"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 1 {
			return ChainConfig{}, fmt.Errorf("invalid %sGAS_MULTIPLIER value: %s, must be a number >= 1", prefix, raw)
		}
		gasMultiplier = parsed
	}

	tokenDecimals := int32(DefaultTokenDecimals)
	if raw := os.Getenv(prefix + "TOKEN_DECIMALS"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || parsed < 0 || parsed > 36 {
			return ChainConfig{}, fmt.Errorf("invalid %sTOKEN_DECIMALS value: %s, must be between 0 and 36", prefix, raw)
		}
		tokenDecimals = int32(parsed)
	}

	return ChainConfig{
		ChainID:       chainID,
		RPCURL:        rpc,
		EscrowAddress: os.Getenv(prefix + "ESCROW_ADDRESS"),
		GasMultiplier: gasMultiplier,
		TokenDecimals: tokenDecimals,
	}, nil
}
