// Package pricing implements the Dutch-auction price curve used by auction orders.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/speedrun-hq/speedrun-settlement/pkg/models"
)

// CurrentPrice returns the auction price at now.
// The price decays linearly from StartPrice to EndPrice over the auction duration
// and is clamped to [EndPrice, StartPrice], so it never increases as now advances.
func CurrentPrice(order models.AuctionOrder, now time.Time) decimal.Decimal {
	duration := order.Duration()
	if duration <= 0 {
		return order.EndPrice
	}

	elapsed := now.Sub(order.StartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > duration {
		elapsed = duration
	}

	// multiply before dividing so exact midpoints stay exact
	drop := order.StartPrice.Sub(order.EndPrice).
		Mul(decimal.NewFromInt(int64(elapsed))).
		Div(decimal.NewFromInt(int64(duration)))
	price := order.StartPrice.Sub(drop)

	if price.LessThan(order.EndPrice) {
		return order.EndPrice
	}
	if price.GreaterThan(order.StartPrice) {
		return order.StartPrice
	}
	return price
}

// Expired reports whether the auction has reached its end price without a fill
func Expired(order models.AuctionOrder, now time.Time) bool {
	return !now.Before(order.EndsAt())
}

// Remaining returns how long the auction still runs at now, never negative
func Remaining(order models.AuctionOrder, now time.Time) time.Duration {
	left := order.EndsAt().Sub(now)
	if left < 0 {
		return 0
	}
	return left
}
