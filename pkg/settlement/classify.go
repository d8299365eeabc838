package settlement

import (
	"context"
	"errors"
	"strings"

	"github.com/speedrun-hq/speedrun-settlement/pkg/pipeline"
)

// Error types used as metric labels
const (
	ErrorTypeNone              = "none"
	ErrorTypeNetwork           = "network_error"
	ErrorTypeGas               = "gas_error"
	ErrorTypeNonce             = "nonce_error"
	ErrorTypeInsufficientFunds = "insufficient_funds"
	ErrorTypeContract          = "contract_error"
	ErrorTypeCancelled         = "cancelled"
	ErrorTypeUnknown           = "unknown_error"
)

// ClassifyError maps a chain-call failure to an error type
func ClassifyError(err error) string {
	if err == nil {
		return ErrorTypeNone
	}
	if errors.Is(err, context.Canceled) {
		return ErrorTypeCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeNetwork
	}
	if errors.Is(err, pipeline.ErrReverted) {
		return ErrorTypeContract
	}

	errStr := err.Error()

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "timed out") ||
		strings.Contains(errStr, "no response") ||
		strings.Contains(errStr, "EOF") {
		return ErrorTypeNetwork
	}

	if strings.Contains(errStr, "gas required exceeds allowance") ||
		strings.Contains(errStr, "insufficient funds for gas") ||
		strings.Contains(errStr, "gas price too low") {
		return ErrorTypeGas
	}

	if strings.Contains(errStr, "nonce too low") ||
		strings.Contains(errStr, "nonce too high") ||
		strings.Contains(errStr, "replacement transaction underpriced") {
		return ErrorTypeNonce
	}

	if strings.Contains(errStr, "insufficient balance") ||
		strings.Contains(errStr, "insufficient funds") {
		return ErrorTypeInsufficientFunds
	}

	if strings.Contains(errStr, "execution reverted") {
		return ErrorTypeContract
	}

	return ErrorTypeUnknown
}

// IsChainFault reports whether an error type points at the chain or its RPC
// rather than at the order, so it should count against the chain's breaker.
func IsChainFault(errorType string) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeGas, ErrorTypeNonce, ErrorTypeUnknown:
		return true
	}
	return false
}
