// Package chainclient defines how the settlement engine talks to blockchains.
package chainclient

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Action is a settlement operation submitted to a chain
type Action string

const (
	ActionLockFunds      Action = "lock_funds"
	ActionInitiateBridge Action = "initiate_bridge"
	ActionVerifyBridge   Action = "verify_bridge"
	ActionExecuteSwap    Action = "execute_swap"
	ActionReleaseFunds   Action = "release_funds"
)

// Query kinds understood by Read
const (
	QueryEscrowAddress = "escrow_address"
	QueryBlockNumber   = "block_number"
)

var (
	ErrUnknownChain  = errors.New("no client configured for chain")
	ErrUnknownAction = errors.New("unknown action")
	ErrUnknownQuery  = errors.New("unknown query")
)

// Args carries the order data a chain action needs
type Args struct {
	OrderID    string
	OrderHash  string
	HashLock   string
	Token      string
	Amount     decimal.Decimal
	Recipient  string
	SrcChainID int
	DstChainID int
	TimeLockAt time.Time
}

// SubmitResult is the receipt of a submitted action
type SubmitResult struct {
	TxRef       string
	BlockNumber uint64
	Success     bool
}

// Query is a read-only lookup against a chain
type Query struct {
	Kind      string
	OrderHash string
}

// Client submits settlement actions and reads chain state.
// Submit may block for as long as the chain takes to include the transaction.
type Client interface {
	Submit(ctx context.Context, chainID int, action Action, args Args) (SubmitResult, error)
	Read(ctx context.Context, chainID int, query Query) (string, error)
}

// Provisioner funds an account with test tokens before settlement starts
type Provisioner interface {
	Provision(ctx context.Context, chainID int, token string, owner string, amount decimal.Decimal) error
}
