package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of a cross-chain order
type OrderStatus string

const (
	OrderPending         OrderStatus = "pending"
	OrderSecretsRequired OrderStatus = "secrets_required"
	OrderExecuting       OrderStatus = "executing"
	OrderCompleted       OrderStatus = "completed"
	OrderFailed          OrderStatus = "failed"
	OrderRefunded        OrderStatus = "refunded"
)

// IsTerminal reports whether the order can no longer change state
func (s OrderStatus) IsTerminal() bool {
	return s == OrderCompleted || s == OrderFailed || s == OrderRefunded
}

// StepStatus is the state of a single execution step
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

// Secret is a 256-bit preimage committed to by a hashlock
type Secret [32]byte

// Hex returns the 0x-prefixed hex encoding of the secret
func (s Secret) Hex() string {
	return common.Hash(s).Hex()
}

// ExecutionStep is one of the fixed settlement steps of a cross-chain order
type ExecutionStep struct {
	StepIndex   int        `json:"step_index"`
	Description string     `json:"description"`
	Action      string     `json:"action"`
	Status      StepStatus `json:"status"`
	ChainID     int        `json:"chain_id"`
	TxRef       string     `json:"tx_ref,omitempty"`
	BlockNumber uint64     `json:"block_number,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// CrossChainOrder is the destination-chain settlement of an intent
type CrossChainOrder struct {
	OrderID         string          `json:"order_id"`
	OrderHash       string          `json:"order_hash"`
	IntentID        string          `json:"intent_id"`
	IntentHash      string          `json:"intent_hash"`
	User            string          `json:"user"`
	SrcChainID      int             `json:"src_chain_id"`
	DstChainID      int             `json:"dst_chain_id"`
	SrcToken        string          `json:"src_token"`
	DstToken        string          `json:"dst_token"`
	SrcAmount       decimal.Decimal `json:"src_amount"`
	DstAmount       decimal.Decimal `json:"dst_amount"`
	AuctionOrderID  string          `json:"auction_order_id,omitempty"`
	SecretsRequired int             `json:"secrets_required"`
	Secrets         []Secret        `json:"-"`
	SecretHashes    []common.Hash   `json:"secret_hashes"`
	HashLock        common.Hash     `json:"hash_lock"`
	TimeLockAt      time.Time       `json:"time_lock_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Status          OrderStatus     `json:"status"`
	Steps           []ExecutionStep `json:"steps"`
}

// Clone returns a deep copy so callers never share slices with the store
func (o *CrossChainOrder) Clone() *CrossChainOrder {
	if o == nil {
		return nil
	}
	c := *o
	c.Secrets = append([]Secret(nil), o.Secrets...)
	c.SecretHashes = append([]common.Hash(nil), o.SecretHashes...)
	c.Steps = make([]ExecutionStep, len(o.Steps))
	for i, step := range o.Steps {
		if step.CompletedAt != nil {
			t := *step.CompletedAt
			step.CompletedAt = &t
		}
		c.Steps[i] = step
	}
	return &c
}

// TimeLockExpired reports whether the refund deadline has passed at now
func (o *CrossChainOrder) TimeLockExpired(now time.Time) bool {
	return now.After(o.TimeLockAt)
}

// AllStepsCompleted reports whether every step finished successfully
func (o *CrossChainOrder) AllStepsCompleted() bool {
	if len(o.Steps) == 0 {
		return false
	}
	for _, step := range o.Steps {
		if step.Status != StepCompleted {
			return false
		}
	}
	return true
}

// FailedSteps returns the indices of failed steps
func (o *CrossChainOrder) FailedSteps() []int {
	var failed []int
	for _, step := range o.Steps {
		if step.Status == StepFailed {
			failed = append(failed, step.StepIndex)
		}
	}
	return failed
}

// StepResult is the outcome of advancing one step
type StepResult struct {
	Step   ExecutionStep `json:"step"`
	Last   bool          `json:"last"`
	Failed bool          `json:"failed"`
	Err    error         `json:"-"`
}
