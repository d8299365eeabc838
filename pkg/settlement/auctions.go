package settlement

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/speedrun-hq/speedrun-settlement/pkg/metrics"
	"github.com/speedrun-hq/speedrun-settlement/pkg/models"
	"github.com/speedrun-hq/speedrun-settlement/pkg/pricing"
	"github.com/speedrun-hq/speedrun-settlement/pkg/store"
)

// AuctionSnapshot is an auction together with its price at read time
type AuctionSnapshot struct {
	models.AuctionOrder
	CurrentPrice decimal.Decimal `json:"current_price"`
}

// CreateAuctionOrder starts a Dutch auction for intent on its source chain
func (e *Engine) CreateAuctionOrder(intent models.Intent, startPrice, endPrice decimal.Decimal, durationSeconds int64) (models.AuctionOrder, error) {
	switch {
	case durationSeconds <= 0:
		return models.AuctionOrder{}, fmt.Errorf("%w: duration must be positive, got %d", ErrInvalidAuctionParams, durationSeconds)
	case endPrice.IsNegative():
		return models.AuctionOrder{}, fmt.Errorf("%w: end price %s is negative", ErrInvalidAuctionParams, endPrice)
	case endPrice.GreaterThan(startPrice):
		return models.AuctionOrder{}, fmt.Errorf("%w: end price %s above start price %s", ErrInvalidAuctionParams, endPrice, startPrice)
	}

	if _, err := e.GetIntent(intent.ID); err != nil {
		return models.AuctionOrder{}, err
	}

	auction := models.AuctionOrder{
		OrderID:          e.newID(),
		IntentID:         intent.ID,
		IntentHash:       intent.Hash,
		SourceToken:      intent.SourceToken,
		DestinationToken: intent.DestinationToken,
		SourceAmount:     intent.SourceAmount,
		StartPrice:       startPrice,
		EndPrice:         endPrice,
		DurationSeconds:  durationSeconds,
		StartedAt:        e.now(),
		Status:           models.AuctionActive,
	}
	if err := e.store.CreateAuctionOrder(auction); err != nil {
		return models.AuctionOrder{}, err
	}

	metrics.AuctionsCreated.Inc()
	e.logger.Debug("Started auction %s for intent %s: %s -> %s over %ds", auction.OrderID, intent.ID, startPrice, endPrice, durationSeconds)
	return auction, nil
}

// GetAuctionOrder returns an auction and its current price, expiring it first if its time ran out
func (e *Engine) GetAuctionOrder(id string) (AuctionSnapshot, error) {
	now := e.now()
	auction, err := e.expireAuctionIfDue(id, now)
	if err != nil {
		return AuctionSnapshot{}, err
	}
	return AuctionSnapshot{AuctionOrder: auction, CurrentPrice: auctionPrice(auction, now)}, nil
}

// FillAuctionOrder accepts an active auction at the current clock price
func (e *Engine) FillAuctionOrder(id string) (models.AuctionOrder, error) {
	now := e.now()
	auction, err := e.expireAuctionIfDue(id, now)
	if err != nil {
		return models.AuctionOrder{}, err
	}
	if auction.Status != models.AuctionActive {
		return auction, fmt.Errorf("%w: auction %s is %s", ErrInvalidTransition, id, auction.Status)
	}

	filled, err := e.store.TransitionAuction(id, store.AuctionEventFill, func(a *models.AuctionOrder) {
		a.FillPrice = pricing.CurrentPrice(*a, now)
		filledAt := now
		a.FilledAt = &filledAt
	})
	if err != nil {
		return filled, err
	}

	metrics.AuctionsClosed.WithLabelValues(string(models.AuctionFilled)).Inc()
	e.logger.Info("Auction %s filled at %s", id, filled.FillPrice)
	return filled, nil
}

// CancelAuctionOrder cancels an auction that is still active
func (e *Engine) CancelAuctionOrder(id string) (models.AuctionOrder, error) {
	if _, err := e.expireAuctionIfDue(id, e.now()); err != nil {
		return models.AuctionOrder{}, err
	}
	cancelled, err := e.store.TransitionAuction(id, store.AuctionEventCancel, nil)
	if err != nil {
		return cancelled, err
	}
	metrics.AuctionsClosed.WithLabelValues(string(models.AuctionCancelled)).Inc()
	e.logger.Info("Auction %s cancelled", id)
	return cancelled, nil
}

func (e *Engine) expireAuctionIfDue(id string, now time.Time) (models.AuctionOrder, error) {
	auction, err := e.store.GetAuctionOrder(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.AuctionOrder{}, fmt.Errorf("%w: %s", ErrAuctionNotFound, id)
		}
		return models.AuctionOrder{}, err
	}
	if auction.Status != models.AuctionActive || !pricing.Expired(auction, now) {
		return auction, nil
	}

	expired, err := e.store.TransitionAuction(id, store.AuctionEventExpire, nil)
	if errors.Is(err, store.ErrInvalidTransition) {
		// closed concurrently; report whatever won
		return e.store.GetAuctionOrder(id)
	}
	if err != nil {
		return models.AuctionOrder{}, err
	}
	metrics.AuctionsClosed.WithLabelValues(string(models.AuctionExpired)).Inc()
	e.logger.Debug("Auction %s expired at %s", id, auction.EndsAt().Format(time.RFC3339))
	return expired, nil
}

// auctionPrice is the price an auction stands at: the clock price while it
// runs, the fill price once filled.
func auctionPrice(auction models.AuctionOrder, now time.Time) decimal.Decimal {
	if auction.Status == models.AuctionFilled {
		return auction.FillPrice
	}
	return pricing.CurrentPrice(auction, now)
}
