package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/speedrun-hq/speedrun-settlement/pkg/chainclient"
	"github.com/speedrun-hq/speedrun-settlement/pkg/chainclient/mocks"
	"github.com/speedrun-hq/speedrun-settlement/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newOrder() *models.CrossChainOrder {
	return &models.CrossChainOrder{
		OrderID:    "order-1",
		OrderHash:  "0x01",
		User:       "0xuser",
		SrcChainID: 1,
		DstChainID: 8453,
		SrcToken:   "USDC",
		DstToken:   "USDT",
		SrcAmount:  decimal.NewFromInt(100),
		DstAmount:  decimal.NewFromInt(99),
		TimeLockAt: testNow.Add(24 * time.Hour),
		Status:     models.OrderExecuting,
		Steps:      NewSteps(1, 8453),
	}
}

func TestNewSteps(t *testing.T) {
	steps := NewSteps(1, 8453)
	require.Len(t, steps, 5)

	expectedChains := []int{1, 1, 8453, 8453, 8453}
	expectedActions := []chainclient.Action{
		chainclient.ActionLockFunds,
		chainclient.ActionInitiateBridge,
		chainclient.ActionVerifyBridge,
		chainclient.ActionExecuteSwap,
		chainclient.ActionReleaseFunds,
	}
	for i, step := range steps {
		assert.Equal(t, i+1, step.StepIndex)
		assert.Equal(t, models.StepPending, step.Status)
		assert.Equal(t, expectedChains[i], step.ChainID)
		assert.Equal(t, string(expectedActions[i]), step.Action)
		assert.NotEmpty(t, step.Description)
	}
}

func TestArgsFor(t *testing.T) {
	order := newOrder()

	lock := ArgsFor(order, order.Steps[0])
	assert.Equal(t, "USDC", lock.Token)
	assert.True(t, decimal.NewFromInt(100).Equal(lock.Amount))
	assert.Equal(t, order.TimeLockAt, lock.TimeLockAt)

	release := ArgsFor(order, order.Steps[4])
	assert.Equal(t, "USDT", release.Token)
	assert.True(t, decimal.NewFromInt(99).Equal(release.Amount))
	assert.Equal(t, "0xuser", release.Recipient)
}

func TestAdvanceRunsStepsInOrder(t *testing.T) {
	fake := chainclient.NewFakeClient(10)
	p := New(fake, nil, func() time.Time { return testNow })
	order := newOrder()

	for i := 1; i <= 5; i++ {
		step, err := p.Advance(context.Background(), order)
		require.NoError(t, err)
		assert.Equal(t, i, step.StepIndex)
		assert.Equal(t, models.StepCompleted, step.Status)
		assert.NotEmpty(t, step.TxRef)
		assert.Equal(t, uint64(10+i), step.BlockNumber)
		require.NotNil(t, step.CompletedAt)

		for j, later := range order.Steps[i:] {
			assert.Equal(t, models.StepPending, later.Status, "step %d", i+j+1)
		}
	}
	assert.True(t, order.AllStepsCompleted())

	_, err := p.Advance(context.Background(), order)
	assert.ErrorIs(t, err, ErrNoPendingStep)

	calls := fake.Calls()
	require.Len(t, calls, 5)
	for i, call := range calls {
		assert.Equal(t, Definitions[i].Action, call.Action)
	}
}

func TestBeginRejectsSecondInFlightStep(t *testing.T) {
	p := New(chainclient.NewFakeClient(0), nil, nil)
	order := newOrder()

	step, err := p.Begin(order)
	require.NoError(t, err)
	assert.Equal(t, 1, step.StepIndex)

	before := order.Clone()
	_, err = p.Begin(order)
	assert.ErrorIs(t, err, ErrStepInFlight)
	assert.Equal(t, before, order)
}

func TestFailedStepStopsPipeline(t *testing.T) {
	client := new(mocks.Client)
	boom := errors.New("bridge relayer unavailable")
	client.On("Submit", mock.Anything, 1, chainclient.ActionLockFunds, mock.Anything).
		Return(chainclient.SubmitResult{TxRef: "0xa", BlockNumber: 1, Success: true}, nil).Once()
	client.On("Submit", mock.Anything, 1, chainclient.ActionInitiateBridge, mock.Anything).
		Return(chainclient.SubmitResult{TxRef: "0xb", BlockNumber: 2, Success: true}, nil).Once()
	client.On("Submit", mock.Anything, 8453, chainclient.ActionVerifyBridge, mock.Anything).
		Return(chainclient.SubmitResult{}, boom).Once()

	p := New(client, nil, nil)
	order := newOrder()

	for i := 0; i < 2; i++ {
		_, err := p.Advance(context.Background(), order)
		require.NoError(t, err)
	}

	step, err := p.Advance(context.Background(), order)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, step.StepIndex)
	assert.Equal(t, models.StepFailed, step.Status)
	assert.Contains(t, step.Error, "bridge relayer unavailable")
	assert.Equal(t, []int{3}, order.FailedSteps())
	assert.Equal(t, models.StepPending, order.Steps[3].Status)
	assert.Equal(t, models.StepPending, order.Steps[4].Status)

	_, err = p.Advance(context.Background(), order)
	assert.ErrorIs(t, err, ErrNoPendingStep)
	client.AssertExpectations(t)
}

func TestRevertedTransactionFailsStep(t *testing.T) {
	fake := chainclient.NewFakeClient(0)
	fake.RevertOn(chainclient.ActionLockFunds)
	p := New(fake, nil, nil)
	order := newOrder()

	step, err := p.Advance(context.Background(), order)
	assert.ErrorIs(t, err, ErrReverted)
	assert.Equal(t, models.StepFailed, step.Status)
	assert.NotEmpty(t, step.TxRef)
}

func TestFinishRequiresInProgress(t *testing.T) {
	p := New(chainclient.NewFakeClient(0), nil, nil)
	order := newOrder()

	_, err := p.Finish(order, 1, chainclient.SubmitResult{}, nil)
	assert.ErrorIs(t, err, ErrStepNotInProgress)

	_, err = p.Finish(order, 9, chainclient.SubmitResult{}, nil)
	assert.Error(t, err)
}
