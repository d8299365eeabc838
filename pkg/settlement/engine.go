// Package settlement orchestrates intents, Dutch auctions and cross-chain
// orders. The engine never schedules itself: state only moves when a caller
// invokes one of its operations, and timelock expiry is applied lazily.
package settlement

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/speedrun-hq/speedrun-settlement/pkg/chainclient"
	"github.com/speedrun-hq/speedrun-settlement/pkg/logger"
	"github.com/speedrun-hq/speedrun-settlement/pkg/metrics"
	"github.com/speedrun-hq/speedrun-settlement/pkg/models"
	"github.com/speedrun-hq/speedrun-settlement/pkg/pipeline"
	"github.com/speedrun-hq/speedrun-settlement/pkg/secrets"
	"github.com/speedrun-hq/speedrun-settlement/pkg/store"
)

const (
	DefaultTimeLock        = 24 * time.Hour
	DefaultSecretsRequired = 1
)

// Config holds engine settings; zero values select defaults
type Config struct {
	TimeLock        time.Duration
	SecretsRequired int
	Commitment      secrets.Commitment
	Random          io.Reader
	Now             func() time.Time
	NewID           func() string
}

// Engine is the settlement orchestrator. It is safe for concurrent use; calls
// for different orders never wait on each other's chain calls.
type Engine struct {
	store       *store.Store
	vault       *secrets.Vault
	pipeline    *pipeline.Pipeline
	client      chainclient.Client
	provisioner chainclient.Provisioner
	logger      logger.Logger

	now             func() time.Time
	newID           func() string
	timeLock        time.Duration
	secretsRequired int
}

// New creates an engine. provisioner may be nil.
func New(cfg Config, client chainclient.Client, provisioner chainclient.Provisioner, log logger.Logger) *Engine {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.TimeLock <= 0 {
		cfg.TimeLock = DefaultTimeLock
	}
	if cfg.SecretsRequired <= 0 {
		cfg.SecretsRequired = DefaultSecretsRequired
	}

	vault := secrets.NewVault(cfg.Commitment, cfg.Random)
	return &Engine{
		store:           store.New(cfg.Now).WithHashLock(vault.BuildHashLock),
		vault:           vault,
		pipeline:        pipeline.New(client, log, cfg.Now),
		client:          client,
		provisioner:     provisioner,
		logger:          log,
		now:             cfg.Now,
		newID:           cfg.NewID,
		timeLock:        cfg.TimeLock,
		secretsRequired: cfg.SecretsRequired,
	}
}

// Store exposes the underlying record store for read-only views
func (e *Engine) Store() *store.Store {
	return e.store
}

// Vault returns the secret vault used for commitments
func (e *Engine) Vault() *secrets.Vault {
	return e.vault
}

// Stats returns record counts
func (e *Engine) Stats() map[string]int {
	return e.store.Stats()
}

// ListOpenOrders returns every order that has not reached a terminal status
func (e *Engine) ListOpenOrders() []*models.CrossChainOrder {
	return e.store.ListOpenOrders()
}

// ListOrdersByUser returns the orders created for user
func (e *Engine) ListOrdersByUser(user string) []*models.CrossChainOrder {
	return e.store.ListOrdersByUser(user)
}

// GetEvidence returns every evidence record emitted for user's orders.
// The result is empty, never nil, until a step completes.
func (e *Engine) GetEvidence(user string) []models.OnChainEvidence {
	return e.store.Evidence(user)
}

// applyTimeLock refunds an open order whose time lock has passed.
// It reports whether the order was refunded by this call.
func (e *Engine) applyTimeLock(order *models.CrossChainOrder, now time.Time) bool {
	if order.Status.IsTerminal() || !order.TimeLockExpired(now) {
		return false
	}
	if err := store.ApplyOrderEvent(order, store.OrderEventRefund); err != nil {
		return false
	}
	e.logger.NoticeWithChain(order.SrcChainID, "Order %s: time lock passed at %s, refunded", order.OrderID, order.TimeLockAt.Format(time.RFC3339))
	metrics.OrdersFinished.WithLabelValues(fmt.Sprintf("%d", order.SrcChainID), string(models.OrderRefunded)).Inc()
	return true
}

// refundIfDue loads an order and applies a due refund before returning it
func (e *Engine) refundIfDue(orderID string) (*models.CrossChainOrder, error) {
	now := e.now()
	order, err := e.store.GetCrossChainOrder(orderID)
	if err != nil {
		return nil, orderNotFound(orderID, err)
	}
	if order.Status.IsTerminal() || !order.TimeLockExpired(now) {
		return order, nil
	}
	order, err = e.store.UpdateCrossChainOrder(orderID, func(o *models.CrossChainOrder) error {
		e.applyTimeLock(o, now)
		return nil
	})
	if err != nil {
		return nil, orderNotFound(orderID, err)
	}
	return order, nil
}
