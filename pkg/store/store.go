// Package store holds intents, auctions, cross-chain orders and their evidence.
//
// The Store is the single writer of every record. Reads return deep copies and
// every mutation is validated on a private copy before it becomes visible, so a
// reader never observes a half-applied transition.
package store

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/speedrun-hq/speedrun-settlement/pkg/models"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicate         = errors.New("record already exists")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvariant         = errors.New("invariant violated")
	ErrAlreadyExecuted   = errors.New("intent already executed")
	ErrAuctionConsumed   = errors.New("auction already backs an order")
)

// StepCount is the fixed number of settlement steps per order
const StepCount = 5

// Store is an in-memory record store safe for concurrent use
type Store struct {
	mu       sync.RWMutex
	intents  map[string]models.Intent
	auctions map[string]models.AuctionOrder
	orders   map[string]*models.CrossChainOrder
	evidence map[string][]models.OnChainEvidence
	now      func() time.Time
	hashLock func([]common.Hash) common.Hash
}

// New creates an empty store
func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		intents:  make(map[string]models.Intent),
		auctions: make(map[string]models.AuctionOrder),
		orders:   make(map[string]*models.CrossChainOrder),
		evidence: make(map[string][]models.OnChainEvidence),
		now:      now,
	}
}

// WithHashLock makes every order write check that the hash lock is derived
// from the order's secret hashes with fn
func (s *Store) WithHashLock(fn func([]common.Hash) common.Hash) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashLock = fn
	return s
}

// CreateIntent stores a new intent
func (s *Store) CreateIntent(intent models.Intent) error {
	if intent.ID == "" {
		return fmt.Errorf("%w: intent id is empty", ErrInvariant)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.intents[intent.ID]; exists {
		return fmt.Errorf("%w: intent %s", ErrDuplicate, intent.ID)
	}
	s.intents[intent.ID] = intent
	return nil
}

// GetIntent returns an intent by id
func (s *Store) GetIntent(id string) (models.Intent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	intent, ok := s.intents[id]
	if !ok {
		return models.Intent{}, fmt.Errorf("%w: intent %s", ErrNotFound, id)
	}
	return intent, nil
}

// MarkIntentExecuted flips the executed flag; it can only happen once
func (s *Store) MarkIntentExecuted(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markIntentExecutedLocked(id)
}

func (s *Store) markIntentExecutedLocked(id string) error {
	intent, ok := s.intents[id]
	if !ok {
		return fmt.Errorf("%w: intent %s", ErrNotFound, id)
	}
	if intent.Executed {
		return fmt.Errorf("%w: %s", ErrAlreadyExecuted, id)
	}
	intent.Executed = true
	s.intents[id] = intent
	return nil
}

// CreateAuctionOrder stores a new active auction
func (s *Store) CreateAuctionOrder(order models.AuctionOrder) error {
	if err := validateAuction(order); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.auctions[order.OrderID]; exists {
		return fmt.Errorf("%w: auction %s", ErrDuplicate, order.OrderID)
	}
	s.auctions[order.OrderID] = order
	return nil
}

// GetAuctionOrder returns an auction by id
func (s *Store) GetAuctionOrder(id string) (models.AuctionOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.auctions[id]
	if !ok {
		return models.AuctionOrder{}, fmt.Errorf("%w: auction %s", ErrNotFound, id)
	}
	return order, nil
}

// TransitionAuction applies event to an auction.
// mutate, if not nil, runs on the updated copy before it is committed.
func (s *Store) TransitionAuction(id string, event AuctionEvent, mutate func(*models.AuctionOrder)) (models.AuctionOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.auctions[id]
	if !ok {
		return models.AuctionOrder{}, fmt.Errorf("%w: auction %s", ErrNotFound, id)
	}
	to, err := NextAuctionStatus(order.Status, event)
	if err != nil {
		return order, err
	}
	order.Status = to
	if mutate != nil {
		mutate(&order)
	}
	if err := validateAuction(order); err != nil {
		return models.AuctionOrder{}, err
	}
	s.auctions[id] = order
	return order, nil
}

// CreateCrossChainOrder stores a new order after checking its invariants.
// An order opened from an auction consumes that auction's fill in the same
// critical section; a fill backs at most one order.
func (s *Store) CreateCrossChainOrder(order *models.CrossChainOrder) error {
	if order == nil {
		return fmt.Errorf("%w: nil order", ErrInvariant)
	}
	stored := order.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validateOrder(stored, s.hashLock); err != nil {
		return err
	}
	if _, exists := s.orders[stored.OrderID]; exists {
		return fmt.Errorf("%w: order %s", ErrDuplicate, stored.OrderID)
	}
	if _, ok := s.intents[stored.IntentID]; !ok {
		return fmt.Errorf("%w: intent %s", ErrNotFound, stored.IntentID)
	}
	if stored.AuctionOrderID != "" {
		auction, ok := s.auctions[stored.AuctionOrderID]
		if !ok {
			return fmt.Errorf("%w: auction %s", ErrNotFound, stored.AuctionOrderID)
		}
		if auction.Status != models.AuctionFilled {
			return fmt.Errorf("%w: auction %s is %s", ErrInvalidTransition, auction.OrderID, auction.Status)
		}
		if auction.CrossChainOrderID != "" {
			return fmt.Errorf("%w: auction %s is held by order %s", ErrAuctionConsumed, auction.OrderID, auction.CrossChainOrderID)
		}
		auction.CrossChainOrderID = stored.OrderID
		s.auctions[auction.OrderID] = auction
	}
	s.orders[stored.OrderID] = stored
	return nil
}

// GetCrossChainOrder returns a snapshot of an order
func (s *Store) GetCrossChainOrder(id string) (*models.CrossChainOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	return order.Clone(), nil
}

// UpdateCrossChainOrder runs fn on a copy of the order and commits the copy only
// if fn succeeds and every invariant still holds. A terminal status can never be
// left, and when the order reaches completed the originating intent is marked
// executed in the same critical section.
func (s *Store) UpdateCrossChainOrder(id string, fn func(*models.CrossChainOrder) error) (*models.CrossChainOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return current.Clone(), err
	}
	if current.Status.IsTerminal() && next.Status != current.Status {
		return current.Clone(), fmt.Errorf("%w: order %s is %s", ErrInvalidTransition, id, current.Status)
	}
	if next.OrderID != current.OrderID || next.IntentID != current.IntentID || next.HashLock != current.HashLock ||
		next.AuctionOrderID != current.AuctionOrderID || !slices.Equal(next.SecretHashes, current.SecretHashes) ||
		!slices.Equal(next.Secrets, current.Secrets) {
		return current.Clone(), fmt.Errorf("%w: identity fields are immutable", ErrInvariant)
	}
	if err := validateOrder(next, s.hashLock); err != nil {
		return current.Clone(), err
	}
	if next.Status == models.OrderCompleted && current.Status != models.OrderCompleted {
		intent, ok := s.intents[next.IntentID]
		if !ok {
			return current.Clone(), fmt.Errorf("%w: intent %s", ErrNotFound, next.IntentID)
		}
		if !intent.Executed {
			intent.Executed = true
			s.intents[intent.ID] = intent
		}
	}
	next.UpdatedAt = s.now()
	s.orders[id] = next
	return next.Clone(), nil
}

// TransitionOrder applies a single state-machine edge to an order
func (s *Store) TransitionOrder(id string, event OrderEvent) (*models.CrossChainOrder, error) {
	return s.UpdateCrossChainOrder(id, func(order *models.CrossChainOrder) error {
		return ApplyOrderEvent(order, event)
	})
}

// ListOpenOrders returns every order that is not in a terminal state, oldest first
func (s *Store) ListOpenOrders() []*models.CrossChainOrder {
	return s.listOrders(func(o *models.CrossChainOrder) bool {
		return !o.Status.IsTerminal()
	})
}

// ListOrdersByUser returns every order created for user, oldest first
func (s *Store) ListOrdersByUser(user string) []*models.CrossChainOrder {
	return s.listOrders(func(o *models.CrossChainOrder) bool {
		return o.User == user
	})
}

func (s *Store) listOrders(keep func(*models.CrossChainOrder) bool) []*models.CrossChainOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.CrossChainOrder
	for _, order := range s.orders {
		if keep(order) {
			out = append(out, order.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].OrderID < out[j].OrderID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// AppendEvidence records evidence for user. Evidence is never removed.
func (s *Store) AppendEvidence(user string, evidence models.OnChainEvidence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evidence[user] = append(s.evidence[user], evidence)
}

// Evidence returns a copy of all evidence recorded for user
func (s *Store) Evidence(user string) []models.OnChainEvidence {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.evidence[user]
	out := make([]models.OnChainEvidence, len(records))
	copy(out, records)
	return out
}

// Stats returns record counts, used by the status endpoint
func (s *Store) Stats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]int{
		"intents":  len(s.intents),
		"auctions": len(s.auctions),
		"orders":   len(s.orders),
	}
	for _, order := range s.orders {
		stats["orders_"+string(order.Status)]++
	}
	return stats
}
