package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/speedrun-hq/speedrun-settlement/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuction(start, end string, seconds int64, startedAt time.Time) models.AuctionOrder {
	return models.AuctionOrder{
		OrderID:         "auction-1",
		StartPrice:      decimal.RequireFromString(start),
		EndPrice:        decimal.RequireFromString(end),
		DurationSeconds: seconds,
		StartedAt:       startedAt,
		Status:          models.AuctionActive,
	}
}

func TestCurrentPrice(t *testing.T) {
	startedAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	auction := newAuction("250", "240", 3600, startedAt)

	tests := []struct {
		name     string
		now      time.Time
		expected string
	}{
		{name: "At start", now: startedAt, expected: "250"},
		{name: "Before start", now: startedAt.Add(-time.Hour), expected: "250"},
		{name: "Halfway", now: startedAt.Add(1800 * time.Second), expected: "245"},
		{name: "Quarter", now: startedAt.Add(900 * time.Second), expected: "247.5"},
		{name: "At end", now: startedAt.Add(3600 * time.Second), expected: "240"},
		{name: "Long after end", now: startedAt.Add(48 * time.Hour), expected: "240"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price := CurrentPrice(auction, tt.now)
			assert.True(t, decimal.RequireFromString(tt.expected).Equal(price),
				"expected %s, got %s", tt.expected, price.String())
		})
	}
}

func TestCurrentPriceMonotonic(t *testing.T) {
	startedAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	auctions := []models.AuctionOrder{
		newAuction("250", "240", 3600, startedAt),
		newAuction("1", "0.333", 7, startedAt),
		newAuction("1000000", "1", 86400, startedAt),
		newAuction("5", "5", 60, startedAt),
	}

	for _, auction := range auctions {
		prev := CurrentPrice(auction, startedAt.Add(-time.Second))
		step := auction.Duration() / 97
		for now := startedAt; now.Before(auction.EndsAt().Add(2 * step)); now = now.Add(step) {
			price := CurrentPrice(auction, now)
			require.True(t, price.LessThanOrEqual(prev), "price increased at %v: %s > %s", now, price, prev)
			require.True(t, price.GreaterThanOrEqual(auction.EndPrice), "price below end price")
			require.True(t, price.LessThanOrEqual(auction.StartPrice), "price above start price")
			prev = price
		}
	}
}

func TestExpired(t *testing.T) {
	startedAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	auction := newAuction("250", "240", 60, startedAt)

	assert.False(t, Expired(auction, startedAt))
	assert.False(t, Expired(auction, startedAt.Add(59*time.Second)))
	assert.True(t, Expired(auction, startedAt.Add(60*time.Second)))
	assert.Equal(t, 30*time.Second, Remaining(auction, startedAt.Add(30*time.Second)))
	assert.Equal(t, time.Duration(0), Remaining(auction, startedAt.Add(time.Hour)))
}
