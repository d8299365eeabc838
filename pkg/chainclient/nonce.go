package chainclient

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/speedrun-hq/speedrun-settlement/pkg/logger"
)

// NonceSource reports the next nonce the chain expects from an account
type NonceSource interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// pendingTx tracks a submitted transaction until it is mined or dropped
type pendingTx struct {
	hash      common.Hash
	orderID   string
	createdAt time.Time
}

// NonceManager allocates nonces for one signer on one chain so concurrent
// settlement steps never race on PendingNonceAt
type NonceManager struct {
	chainID      int
	source       NonceSource
	address      common.Address
	syncInterval time.Duration
	now          func() time.Time
	logger       logger.Logger

	mu           sync.Mutex
	currentNonce uint64
	lastSync     time.Time
	pending      map[uint64]*pendingTx
}

// NewNonceManager creates a nonce manager for address on chainID
func NewNonceManager(chainID int, source NonceSource, address common.Address, log logger.Logger) *NonceManager {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &NonceManager{
		chainID:      chainID,
		source:       source,
		address:      address,
		syncInterval: 5 * time.Minute,
		now:          time.Now,
		logger:       log,
		pending:      make(map[uint64]*pendingTx),
	}
}

// Next reserves the next nonce, resyncing with the chain when stale
func (nm *NonceManager) Next(ctx context.Context) (uint64, error) {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	if nm.lastSync.IsZero() || nm.now().Sub(nm.lastSync) > nm.syncInterval {
		nonce, err := nm.source.PendingNonceAt(ctx, nm.address)
		if err != nil {
			return 0, fmt.Errorf("failed to get pending nonce: %v", err)
		}
		if nonce > nm.currentNonce {
			nm.logger.DebugWithChain(nm.chainID, "Updating nonce: %d -> %d", nm.currentNonce, nonce)
			nm.currentNonce = nonce
		}
		nm.lastSync = nm.now()
	}

	nonce := nm.currentNonce
	nm.currentNonce++
	return nonce, nil
}

// Track records a sent transaction under its nonce
func (nm *NonceManager) Track(nonce uint64, hash common.Hash, orderID string) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.pending[nonce] = &pendingTx{hash: hash, orderID: orderID, createdAt: nm.now()}
}

// Confirm drops a mined transaction from tracking
func (nm *NonceManager) Confirm(nonce uint64) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	delete(nm.pending, nonce)
}

// Release returns a nonce whose transaction never reached the chain.
// The nonce is reused only if nothing above it is still pending.
func (nm *NonceManager) Release(nonce uint64) bool {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	delete(nm.pending, nonce)
	for pendingNonce := range nm.pending {
		if pendingNonce > nonce {
			nm.logger.NoticeWithChain(nm.chainID, "Cannot reuse nonce %d, higher nonce %d still pending", nonce, pendingNonce)
			nm.lastSync = time.Time{}
			return false
		}
	}
	if nm.currentNonce == nonce+1 {
		nm.currentNonce = nonce
		return true
	}
	nm.lastSync = time.Time{}
	return false
}

// DropStale forgets transactions pending longer than timeout and forces a
// resync with the chain on the next allocation. It returns the dropped nonces, lowest first.
func (nm *NonceManager) DropStale(timeout time.Duration) []uint64 {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	var stale []uint64
	for nonce, tx := range nm.pending {
		if nm.now().Sub(tx.createdAt) > timeout {
			nm.logger.NoticeWithChain(nm.chainID, "Transaction %s for order %s pending since %s",
				tx.hash.Hex(), tx.orderID, tx.createdAt.Format(time.RFC3339))
			stale = append(stale, nonce)
			delete(nm.pending, nonce)
		}
	}
	if len(stale) > 0 {
		nm.lastSync = time.Time{}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i] < stale[j] })
	return stale
}

// PendingCount returns the number of unmined transactions
func (nm *NonceManager) PendingCount() int {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	return len(nm.pending)
}
