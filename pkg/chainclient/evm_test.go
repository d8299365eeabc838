package chainclient

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestApplyGasMultiplier(t *testing.T) {
	tests := []struct {
		name       string
		gasPrice   int64
		multiplier float64
		expected   int64
	}{
		{"ten percent buffer", 20_000_000_000, 1.1, 22_000_000_000},
		{"no buffer", 1_000_000_000, 1.0, 1_000_000_000},
		{"zero price", 0, 1.5, 0},
		{"double", 3, 2.0, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := applyGasMultiplier(big.NewInt(tt.gasPrice), tt.multiplier)
			assert.Equal(t, tt.expected, got.Int64())
		})
	}
}

func TestBaseUnits(t *testing.T) {
	c := &EVMClient{tokenDecimals: 6}
	assert.Equal(t, "1500000", c.baseUnits(decimal.RequireFromString("1.5")).String())

	c = &EVMClient{tokenDecimals: 18}
	assert.Equal(t, "1000000000000000000", c.baseUnits(decimal.NewFromInt(1)).String())
}
