package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Intent is a user-declared desire to exchange a source asset for a destination asset
type Intent struct {
	ID                 string          `json:"id"`
	Hash               string          `json:"hash"`
	User               string          `json:"user"`
	IntentText         string          `json:"intent_text"`
	SourceToken        string          `json:"source_token"`
	DestinationToken   string          `json:"destination_token"`
	SourceAmount       decimal.Decimal `json:"source_amount"`
	DestinationChainID int             `json:"destination_chain_id"`
	CreatedAt          time.Time       `json:"created_at"`
	Executed           bool            `json:"executed"`
}

// Quote carries the destination-side terms used to open a cross-chain order
type Quote struct {
	DstAmount       decimal.Decimal `json:"dst_amount"`
	SecretsRequired int             `json:"secrets_required"`
	AuctionOrderID  string          `json:"auction_order_id,omitempty"`
}
