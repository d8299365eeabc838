package chainclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeClientSubmit(t *testing.T) {
	ctx := context.Background()
	fake := NewFakeClient(100)
	args := Args{OrderID: "order-1", OrderHash: "0x01"}

	first, err := fake.Submit(ctx, 1, ActionLockFunds, args)
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.Equal(t, uint64(101), first.BlockNumber)
	assert.Len(t, first.TxRef, 66)

	second, err := fake.Submit(ctx, 1, ActionInitiateBridge, args)
	require.NoError(t, err)
	assert.Equal(t, uint64(102), second.BlockNumber)
	assert.NotEqual(t, first.TxRef, second.TxRef)

	again := NewFakeClient(0)
	replay, err := again.Submit(ctx, 1, ActionLockFunds, args)
	require.NoError(t, err)
	assert.Equal(t, first.TxRef, replay.TxRef, "tx refs are deterministic")

	calls := fake.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, ActionLockFunds, calls[0].Action)
	assert.Equal(t, ActionInitiateBridge, calls[1].Action)
}

func TestFakeClientFailures(t *testing.T) {
	ctx := context.Background()
	fake := NewFakeClient(0)
	boom := errors.New("rpc unavailable")
	fake.FailOn(ActionVerifyBridge, boom)
	fake.RevertOn(ActionExecuteSwap)

	_, err := fake.Submit(ctx, 2, ActionVerifyBridge, Args{})
	assert.ErrorIs(t, err, boom)

	res, err := fake.Submit(ctx, 2, ActionExecuteSwap, Args{})
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestFakeClientGate(t *testing.T) {
	fake := NewFakeClient(0)
	release := fake.Gate(ActionLockFunds)

	done := make(chan error, 1)
	go func() {
		_, err := fake.Submit(context.Background(), 1, ActionLockFunds, Args{})
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("submission should block until released")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("submission did not complete after release")
	}

	ctx, cancel := context.WithCancel(context.Background())
	fake.Gate(ActionReleaseFunds)
	cancel()
	_, err := fake.Submit(ctx, 1, ActionReleaseFunds, Args{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFakeClientRead(t *testing.T) {
	ctx := context.Background()
	fake := NewFakeClient(7)

	addr, err := fake.Read(ctx, 1, Query{Kind: QueryEscrowAddress, OrderHash: "0xabc"})
	require.NoError(t, err)
	assert.Len(t, addr, 42)

	other, err := fake.Read(ctx, 8453, Query{Kind: QueryEscrowAddress, OrderHash: "0xabc"})
	require.NoError(t, err)
	assert.NotEqual(t, addr, other)

	block, err := fake.Read(ctx, 1, Query{Kind: QueryBlockNumber})
	require.NoError(t, err)
	assert.Equal(t, "7", block)

	_, err = fake.Read(ctx, 1, Query{Kind: "balance"})
	assert.ErrorIs(t, err, ErrUnknownQuery)
}

func TestFakeClientProvision(t *testing.T) {
	fake := NewFakeClient(0)
	require.NoError(t, fake.Provision(context.Background(), 1, "USDC", "0xuser", decimal.NewFromInt(10)))
	require.NoError(t, fake.Provision(context.Background(), 1, "USDC", "0xuser", decimal.NewFromInt(5)))
	assert.True(t, decimal.NewFromInt(15).Equal(fake.Provisioned(1, "USDC", "0xuser")))
	assert.True(t, fake.Provisioned(2, "USDC", "0xuser").IsZero())
}
