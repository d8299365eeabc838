package chainclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

// Call records one Submit invocation on a FakeClient
type Call struct {
	ChainID int
	Action  Action
	Args    Args
}

// FakeClient emulates chains in memory. Transaction references are derived by
// hashing the payload so they are deterministic across runs.
type FakeClient struct {
	mu          sync.Mutex
	blockNumber uint64
	failures    map[Action]error
	reverts     map[Action]bool
	gates       map[Action]chan struct{}
	calls       []Call
	provisioned map[string]decimal.Decimal
}

var (
	_ Client      = (*FakeClient)(nil)
	_ Provisioner = (*FakeClient)(nil)
)

// NewFakeClient creates a fake starting at the given block height
func NewFakeClient(startBlock uint64) *FakeClient {
	return &FakeClient{
		blockNumber: startBlock,
		failures:    make(map[Action]error),
		reverts:     make(map[Action]bool),
		gates:       make(map[Action]chan struct{}),
		provisioned: make(map[string]decimal.Decimal),
	}
}

// FailOn makes every later submission of action return err
func (f *FakeClient) FailOn(action Action, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[action] = err
}

// RevertOn makes action mine but report an unsuccessful receipt
func (f *FakeClient) RevertOn(action Action) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reverts[action] = true
}

// Gate blocks submissions of action until the returned function is called
func (f *FakeClient) Gate(action Action) (release func()) {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[action] = ch
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Calls returns the submissions seen so far
func (f *FakeClient) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

func (f *FakeClient) Submit(ctx context.Context, chainID int, action Action, args Args) (SubmitResult, error) {
	f.mu.Lock()
	gate := f.gates[action]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return SubmitResult{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{ChainID: chainID, Action: action, Args: args})
	if err := f.failures[action]; err != nil {
		return SubmitResult{}, err
	}
	f.blockNumber++
	txRef := crypto.Keccak256Hash(
		[]byte(fmt.Sprintf("%d", chainID)),
		[]byte(action),
		[]byte(args.OrderID),
		[]byte(args.OrderHash),
	)
	return SubmitResult{
		TxRef:       txRef.Hex(),
		BlockNumber: f.blockNumber,
		Success:     !f.reverts[action],
	}, nil
}

func (f *FakeClient) Read(_ context.Context, chainID int, query Query) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch query.Kind {
	case QueryEscrowAddress:
		digest := crypto.Keccak256([]byte(fmt.Sprintf("escrow:%d:%s", chainID, query.OrderHash)))
		return common.BytesToAddress(digest).Hex(), nil
	case QueryBlockNumber:
		return fmt.Sprintf("%d", f.blockNumber), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownQuery, query.Kind)
}

// Provision records a test-token mint
func (f *FakeClient) Provision(_ context.Context, chainID int, token string, owner string, amount decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("%d:%s:%s", chainID, token, owner)
	f.provisioned[key] = f.provisioned[key].Add(amount)
	return nil
}

// Provisioned returns the amount minted for owner
func (f *FakeClient) Provisioned(chainID int, token string, owner string) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.provisioned[fmt.Sprintf("%d:%s:%s", chainID, token, owner)]
}
