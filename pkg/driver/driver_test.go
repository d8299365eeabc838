package driver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/speedrun-hq/speedrun-settlement/pkg/chainclient"
	"github.com/speedrun-hq/speedrun-settlement/pkg/circuitbreaker"
	"github.com/speedrun-hq/speedrun-settlement/pkg/models"
	"github.com/speedrun-hq/speedrun-settlement/pkg/settlement"
	"github.com/speedrun-hq/speedrun-settlement/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUser = "0xuser"

func newEngine(t *testing.T) (*settlement.Engine, *chainclient.FakeClient, *testutil.Clock) {
	t.Helper()
	clock := testutil.NewClock(testutil.Epoch)
	fake := chainclient.NewFakeClient(0)
	return settlement.New(settlement.Config{Now: clock.Now}, fake, nil, nil), fake, clock
}

func newOrder(t *testing.T, engine *settlement.Engine, src, dst int) *models.CrossChainOrder {
	t.Helper()
	intent, err := engine.CreateIntent("swap", "USDC", "USDT", decimal.NewFromInt(10), dst, testUser)
	require.NoError(t, err)
	order, err := engine.CreateCrossChainOrder(intent, src, dst, decimal.NewFromInt(10), models.Quote{})
	require.NoError(t, err)
	return order
}

func TestDriveRunsToAwaitingSecrets(t *testing.T) {
	engine, fake, _ := newEngine(t)
	order := newOrder(t, engine, 1, 8453)
	d := New(engine, nil, 1, 10, nil)

	outcome := d.Drive(context.Background(), order.OrderID)
	assert.Equal(t, OutcomeAwaitingSecrets, outcome)
	assert.Len(t, fake.Calls(), 5)

	ok, err := engine.CompleteWithSecrets(order.OrderID, order.Secrets)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, OutcomeTerminal, d.Drive(context.Background(), order.OrderID))
}

func TestDriveStopsOnStepFailureAndTripsBreaker(t *testing.T) {
	engine, fake, _ := newEngine(t)
	fake.FailOn(chainclient.ActionVerifyBridge, errors.New("dial tcp: connection refused"))
	breaker := circuitbreaker.NewCircuitBreaker(true, 2, time.Minute, time.Hour, nil)
	d := New(engine, map[int]*circuitbreaker.CircuitBreaker{8453: breaker}, 1, 10, nil)

	first := newOrder(t, engine, 1, 8453)
	assert.Equal(t, OutcomeStepFailed, d.Drive(context.Background(), first.OrderID))
	assert.False(t, breaker.IsOpen())

	second := newOrder(t, engine, 1, 8453)
	assert.Equal(t, OutcomeStepFailed, d.Drive(context.Background(), second.OrderID))
	assert.True(t, breaker.IsOpen())

	third := newOrder(t, engine, 1, 8453)
	assert.Equal(t, OutcomeCircuitOpen, d.Drive(context.Background(), third.OrderID))

	snapshot, err := engine.GetOrderStatus(third.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.StepCompleted, snapshot.Steps[1].Status, "source-chain steps still ran")
	assert.Equal(t, models.StepPending, snapshot.Steps[2].Status)
	assert.Equal(t, models.OrderExecuting, snapshot.Status)
}

func TestContractErrorsDoNotTripBreaker(t *testing.T) {
	engine, fake, _ := newEngine(t)
	fake.RevertOn(chainclient.ActionLockFunds)
	breaker := circuitbreaker.NewCircuitBreaker(true, 1, time.Minute, time.Hour, nil)
	d := New(engine, map[int]*circuitbreaker.CircuitBreaker{1: breaker}, 1, 10, nil)

	order := newOrder(t, engine, 1, 8453)
	assert.Equal(t, OutcomeStepFailed, d.Drive(context.Background(), order.OrderID))
	assert.False(t, breaker.IsOpen())
}

func TestDriveRefundedOrder(t *testing.T) {
	engine, _, clock := newEngine(t)
	order := newOrder(t, engine, 1, 8453)
	clock.Advance(settlement.DefaultTimeLock + time.Second)

	d := New(engine, nil, 1, 10, nil)
	assert.Equal(t, OutcomeTerminal, d.Drive(context.Background(), order.OrderID))
	assert.Equal(t, OutcomeError, d.Drive(context.Background(), "missing"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, OutcomeCancelled, d.Drive(ctx, order.OrderID))
}

func TestEnqueueDeduplicates(t *testing.T) {
	engine, _, _ := newEngine(t)
	d := New(engine, nil, 1, 2, nil)

	assert.True(t, d.Enqueue("a"))
	assert.False(t, d.Enqueue("a"), "already queued")
	assert.True(t, d.Enqueue("b"))
	assert.False(t, d.Enqueue("c"), "queue full")
}

func TestWorkersDriveManyOrders(t *testing.T) {
	engine, _, _ := newEngine(t)
	d := New(engine, nil, 4, 50, nil)

	orders := make([]*models.CrossChainOrder, 12)
	for i := range orders {
		orders[i] = newOrder(t, engine, 1, 8453)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)
	for _, order := range orders {
		require.True(t, d.Enqueue(order.OrderID))
	}

	testutil.Eventually(t, func() bool {
		for _, order := range orders {
			snapshot, err := engine.GetOrderStatus(order.OrderID)
			if err != nil || !snapshot.AllStepsCompleted() {
				return false
			}
		}
		return true
	}, "all orders should reach the last step")

	cancel()
	done := make(chan struct{})
	go func() {
		d.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(testutil.DefaultTestTimeout):
		t.Fatal("workers did not stop")
	}

	var wg sync.WaitGroup
	for _, order := range orders {
		wg.Add(1)
		go func(order *models.CrossChainOrder) {
			defer wg.Done()
			ok, err := engine.CompleteWithSecrets(order.OrderID, order.Secrets)
			assert.NoError(t, err)
			assert.True(t, ok)
		}(order)
	}
	wg.Wait()
	assert.Empty(t, engine.ListOpenOrders())
}
