package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OnChainEvidence records that a settlement step occurred on-chain.
// Values are immutable once appended to the store.
type OnChainEvidence struct {
	OrderID       string          `json:"order_id"`
	StepIndex     int             `json:"step_index"`
	TxRef         string          `json:"tx_ref"`
	BlockNumber   uint64          `json:"block_number"`
	Timestamp     time.Time       `json:"timestamp"`
	SrcChainID    int             `json:"src_chain_id"`
	DstChainID    int             `json:"dst_chain_id"`
	EscrowAddress string          `json:"escrow_address"`
	IntentHash    string          `json:"intent_hash"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	AuctionActive bool            `json:"auction_active"`
}
