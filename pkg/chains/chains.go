package chains

import "fmt"

// ChainList contains the list of supported chain IDs
var ChainList = []int{
	1,        // Ethereum
	137,      // Polygon
	42161,    // Arbitrum
	43114,    // Avalanche
	56,       // Binance Smart Chain
	7000,     // ZetaChain
	8453,     // Base
	11155111, // Sepolia
	84532,    // Base Sepolia
}

// chainNames maps chain IDs to their names
var chainNames = map[int]string{
	1:        "ETHEREUM",
	137:      "POLYGON",
	42161:    "ARBITRUM",
	43114:    "AVALANCHE",
	56:       "BSC",
	7000:     "ZETACHAIN",
	8453:     "BASE",
	11155111: "SEPOLIA",
	84532:    "BASE_SEPOLIA",
}

// testnets cannot be paired with mainnets
var testnets = map[int]bool{
	11155111: true,
	84532:    true,
}

// GetChainName returns the name of the chain for a given chain ID
func GetChainName(chainID int) string {
	name, exists := chainNames[chainID]
	if !exists {
		return ""
	}
	return name
}

// IsSupported returns true if the chain ID is known
func IsSupported(chainID int) bool {
	_, exists := chainNames[chainID]
	return exists
}

// ValidatePair checks that funds can be settled from src to dst.
// Both chains must be supported, distinct, and on the same network.
func ValidatePair(src, dst int) error {
	if !IsSupported(src) {
		return fmt.Errorf("source chain %d is not supported", src)
	}
	if !IsSupported(dst) {
		return fmt.Errorf("destination chain %d is not supported", dst)
	}
	if src == dst {
		return fmt.Errorf("source and destination chains are the same: %d", src)
	}
	if testnets[src] != testnets[dst] {
		return fmt.Errorf("cannot settle between %s and %s", GetChainName(src), GetChainName(dst))
	}
	return nil
}
