package sweeper

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/speedrun-hq/speedrun-settlement/pkg/chainclient"
	"github.com/speedrun-hq/speedrun-settlement/pkg/models"
	"github.com/speedrun-hq/speedrun-settlement/pkg/settlement"
	"github.com/speedrun-hq/speedrun-settlement/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, n int) (*settlement.Engine, *testutil.Clock, []*models.CrossChainOrder) {
	t.Helper()
	clock := testutil.NewClock(testutil.Epoch)
	engine := settlement.New(settlement.Config{Now: clock.Now, TimeLock: time.Hour}, chainclient.NewFakeClient(0), nil, nil)

	orders := make([]*models.CrossChainOrder, n)
	for i := range orders {
		intent, err := engine.CreateIntent("swap", "USDC", "USDT", decimal.NewFromInt(1), 8453, "0xuser")
		require.NoError(t, err)
		orders[i], err = engine.CreateCrossChainOrder(intent, 1, 8453, decimal.NewFromInt(1), models.Quote{})
		require.NoError(t, err)
		clock.Advance(10 * time.Minute)
	}
	return engine, clock, orders
}

func TestSweepRefundsExpiredOrders(t *testing.T) {
	engine, clock, orders := setup(t, 3)

	var mu sync.Mutex
	var handled []string
	s := New(engine, time.Minute, func(id string) bool {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, id)
		return true
	}, nil)

	assert.Equal(t, 0, s.Sweep())
	assert.Len(t, handled, 3)

	// orders were created 10 minutes apart with a one hour lock
	clock.Set(orders[1].TimeLockAt.Add(time.Second))
	handled = nil
	assert.Equal(t, 2, s.Sweep())
	assert.Equal(t, []string{orders[2].OrderID}, handled)

	open := engine.ListOpenOrders()
	require.Len(t, open, 1)
	assert.Equal(t, orders[2].OrderID, open[0].OrderID)

	assert.Equal(t, 0, s.Sweep(), "refunded orders are no longer swept")
}

func TestSweeperStartStop(t *testing.T) {
	engine, clock, orders := setup(t, 1)
	clock.Set(orders[0].TimeLockAt.Add(time.Second))

	s := New(engine, 10*time.Millisecond, nil, nil)
	assert.False(t, s.IsRunning())

	s.Start()
	s.Start()
	assert.True(t, s.IsRunning())

	testutil.Eventually(t, func() bool {
		return len(engine.ListOpenOrders()) == 0
	})

	s.Stop()
	s.Stop()
	assert.False(t, s.IsRunning())

	stored, err := engine.Store().GetCrossChainOrder(orders[0].OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderRefunded, stored.Status)
}
