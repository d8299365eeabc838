package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionStatus is the lifecycle state of a Dutch auction
type AuctionStatus string

const (
	AuctionActive    AuctionStatus = "active"
	AuctionFilled    AuctionStatus = "filled"
	AuctionCancelled AuctionStatus = "cancelled"
	AuctionExpired   AuctionStatus = "expired"
)

// IsTerminal reports whether no further transition is possible
func (s AuctionStatus) IsTerminal() bool {
	return s == AuctionFilled || s == AuctionCancelled || s == AuctionExpired
}

// AuctionOrder is a source-chain Dutch auction for an intent
type AuctionOrder struct {
	OrderID           string          `json:"order_id"`
	IntentID          string          `json:"intent_id"`
	IntentHash        string          `json:"intent_hash"`
	SourceToken       string          `json:"source_token"`
	DestinationToken  string          `json:"destination_token"`
	SourceAmount      decimal.Decimal `json:"source_amount"`
	StartPrice        decimal.Decimal `json:"start_price"`
	EndPrice          decimal.Decimal `json:"end_price"`
	DurationSeconds   int64           `json:"duration_seconds"`
	StartedAt         time.Time       `json:"started_at"`
	Status            AuctionStatus   `json:"status"`
	FillPrice         decimal.Decimal `json:"fill_price"`
	FilledAt          *time.Time      `json:"filled_at,omitempty"`
	// CrossChainOrderID is the order that consumed the fill
	CrossChainOrderID string          `json:"cross_chain_order_id,omitempty"`
}

// Duration returns the auction length
func (a AuctionOrder) Duration() time.Duration {
	return time.Duration(a.DurationSeconds) * time.Second
}

// EndsAt returns the instant at which the price reaches EndPrice
func (a AuctionOrder) EndsAt() time.Time {
	return a.StartedAt.Add(a.Duration())
}
