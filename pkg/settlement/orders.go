package settlement

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/speedrun-hq/speedrun-settlement/pkg/chains"
	"github.com/speedrun-hq/speedrun-settlement/pkg/metrics"
	"github.com/speedrun-hq/speedrun-settlement/pkg/models"
	"github.com/speedrun-hq/speedrun-settlement/pkg/pipeline"
	"github.com/speedrun-hq/speedrun-settlement/pkg/store"
)

// OrderSnapshot is a read-only view of an order. When the order was opened
// from an auction it carries that auction's price at read time.
type OrderSnapshot struct {
	*models.CrossChainOrder
	CurrentPrice  decimal.NullDecimal  `json:"current_price"`
	AuctionStatus models.AuctionStatus `json:"auction_status,omitempty"`
}

// CreateCrossChainOrder opens the settlement of intent from srcChainID to dstChainID.
// The order is returned in secrets_required with five pending steps.
func (e *Engine) CreateCrossChainOrder(intent models.Intent, srcChainID, dstChainID int, srcAmount decimal.Decimal, quote models.Quote) (*models.CrossChainOrder, error) {
	if err := chains.ValidatePair(srcChainID, dstChainID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedChainPair, err)
	}
	if intent.DestinationChainID != 0 && intent.DestinationChainID != dstChainID {
		return nil, fmt.Errorf("%w: intent targets chain %d, not %d", ErrUnsupportedChainPair, intent.DestinationChainID, dstChainID)
	}

	stored, err := e.GetIntent(intent.ID)
	if err != nil {
		return nil, err
	}

	if srcAmount.IsZero() {
		srcAmount = stored.SourceAmount
	}
	if !srcAmount.IsPositive() {
		return nil, fmt.Errorf("%w: source amount must be positive, got %s", ErrInvalidOrderParams, srcAmount)
	}

	secretsRequired := quote.SecretsRequired
	if secretsRequired == 0 {
		secretsRequired = e.secretsRequired
	}
	if secretsRequired < 0 {
		return nil, fmt.Errorf("%w: secrets required must be positive, got %d", ErrInvalidOrderParams, secretsRequired)
	}

	dstAmount, err := e.quotedAmount(stored, srcAmount, quote)
	if err != nil {
		return nil, err
	}

	secretValues, hashes, lock, err := e.vault.Commit(secretsRequired)
	if err != nil {
		return nil, fmt.Errorf("failed to generate secrets: %w", err)
	}

	now := e.now()
	orderID := e.newID()
	order := &models.CrossChainOrder{
		OrderID:         orderID,
		OrderHash:       orderHash(orderID, stored.Hash, srcChainID, dstChainID, lock.Hex()),
		IntentID:        stored.ID,
		IntentHash:      stored.Hash,
		User:            stored.User,
		SrcChainID:      srcChainID,
		DstChainID:      dstChainID,
		SrcToken:        stored.SourceToken,
		DstToken:        stored.DestinationToken,
		SrcAmount:       srcAmount,
		DstAmount:       dstAmount,
		AuctionOrderID:  quote.AuctionOrderID,
		SecretsRequired: secretsRequired,
		Secrets:         secretValues,
		SecretHashes:    hashes,
		HashLock:        lock,
		TimeLockAt:      now.Add(e.timeLock),
		CreatedAt:       now,
		UpdatedAt:       now,
		Status:          models.OrderPending,
		Steps:           pipeline.NewSteps(srcChainID, dstChainID),
	}
	if err := store.ApplyOrderEvent(order, store.OrderEventSecretsGenerated); err != nil {
		return nil, err
	}
	if err := e.store.CreateCrossChainOrder(order); err != nil {
		if errors.Is(err, store.ErrAuctionConsumed) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOrderParams, err)
		}
		return nil, err
	}

	metrics.OrdersCreated.WithLabelValues(strconv.Itoa(srcChainID), strconv.Itoa(dstChainID)).Inc()
	e.logger.InfoWithChain(srcChainID, "Created order %s for intent %s to chain %d, %d secret(s), time lock %s",
		orderID, stored.ID, dstChainID, secretsRequired, order.TimeLockAt.Format(time.RFC3339))
	return order, nil
}

// quotedAmount resolves the destination amount, checking any linked auction
func (e *Engine) quotedAmount(intent models.Intent, srcAmount decimal.Decimal, quote models.Quote) (decimal.Decimal, error) {
	if quote.DstAmount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: destination amount is negative", ErrInvalidOrderParams)
	}
	if quote.AuctionOrderID == "" {
		if quote.DstAmount.IsPositive() {
			return quote.DstAmount, nil
		}
		return srcAmount, nil
	}

	auction, err := e.expireAuctionIfDue(quote.AuctionOrderID, e.now())
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidOrderParams, err)
	}
	if auction.IntentID != intent.ID {
		return decimal.Zero, fmt.Errorf("%w: auction %s belongs to intent %s", ErrInvalidOrderParams, auction.OrderID, auction.IntentID)
	}
	if auction.Status != models.AuctionFilled {
		return decimal.Zero, fmt.Errorf("%w: auction %s is %s, not filled", ErrInvalidOrderParams, auction.OrderID, auction.Status)
	}
	if auction.CrossChainOrderID != "" {
		return decimal.Zero, fmt.Errorf("%w: auction %s already backs order %s", ErrInvalidOrderParams, auction.OrderID, auction.CrossChainOrderID)
	}
	if quote.DstAmount.IsPositive() {
		return quote.DstAmount, nil
	}
	return srcAmount.Mul(auction.FillPrice), nil
}

// GetOrderStatus returns a snapshot of the order after applying a due refund
func (e *Engine) GetOrderStatus(orderID string) (OrderSnapshot, error) {
	order, err := e.refundIfDue(orderID)
	if err != nil {
		return OrderSnapshot{}, err
	}

	snapshot := OrderSnapshot{CrossChainOrder: order}
	if order.AuctionOrderID == "" {
		return snapshot, nil
	}
	now := e.now()
	auction, err := e.expireAuctionIfDue(order.AuctionOrderID, now)
	if err != nil {
		e.logger.Error("Order %s: failed to load auction %s: %v", orderID, order.AuctionOrderID, err)
		return snapshot, nil
	}
	snapshot.CurrentPrice = decimal.NewNullDecimal(auctionPrice(auction, now))
	snapshot.AuctionStatus = auction.Status
	return snapshot, nil
}

// ProvisionTokens asks the configured provisioner to fund the order's user on
// the source chain. It is a pre-step outside the settlement sequence and only
// allowed while the order awaits execution.
func (e *Engine) ProvisionTokens(ctx context.Context, orderID string) error {
	if e.provisioner == nil {
		return ErrNoProvisioner
	}
	order, err := e.refundIfDue(orderID)
	if err != nil {
		return err
	}
	if order.Status != models.OrderSecretsRequired {
		return fmt.Errorf("%w: order %s is %s", ErrInvalidTransition, orderID, order.Status)
	}
	if err := e.provisioner.Provision(ctx, order.SrcChainID, order.SrcToken, order.User, order.SrcAmount); err != nil {
		return fmt.Errorf("failed to provision %s for order %s: %w", order.SrcToken, orderID, err)
	}
	e.logger.InfoWithChain(order.SrcChainID, "Provisioned %s %s for %s", order.SrcAmount, order.SrcToken, order.User)
	return nil
}

// ProvisionIntent funds the intent's user on srcChainID before any order
// exists, so a failed mint never leaves an open order behind. A zero amount
// provisions the intent's source amount.
func (e *Engine) ProvisionIntent(ctx context.Context, intentID string, srcChainID int, amount decimal.Decimal) error {
	if e.provisioner == nil {
		return ErrNoProvisioner
	}
	intent, err := e.GetIntent(intentID)
	if err != nil {
		return err
	}
	if intent.Executed {
		return fmt.Errorf("%w: intent %s already executed", ErrInvalidTransition, intentID)
	}
	if err := chains.ValidatePair(srcChainID, intent.DestinationChainID); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedChainPair, err)
	}
	if amount.IsZero() {
		amount = intent.SourceAmount
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: source amount must be positive, got %s", ErrInvalidOrderParams, amount)
	}
	if err := e.provisioner.Provision(ctx, srcChainID, intent.SourceToken, intent.User, amount); err != nil {
		return fmt.Errorf("failed to provision %s for intent %s: %w", intent.SourceToken, intentID, err)
	}
	e.logger.InfoWithChain(srcChainID, "Provisioned %s %s for %s", amount, intent.SourceToken, intent.User)
	return nil
}

func orderHash(orderID, intentHash string, srcChainID, dstChainID int, hashLock string) string {
	return crypto.Keccak256Hash(
		[]byte(orderID),
		[]byte(intentHash),
		[]byte(strconv.Itoa(srcChainID)),
		[]byte(strconv.Itoa(dstChainID)),
		[]byte(hashLock),
	).Hex()
}
