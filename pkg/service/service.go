// Package service wires the settlement engine to chain clients, the order
// driver, the timelock sweeper, and the HTTP server.
package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/speedrun-hq/speedrun-settlement/pkg/chainclient"
	"github.com/speedrun-hq/speedrun-settlement/pkg/chains"
	"github.com/speedrun-hq/speedrun-settlement/pkg/circuitbreaker"
	"github.com/speedrun-hq/speedrun-settlement/pkg/config"
	"github.com/speedrun-hq/speedrun-settlement/pkg/driver"
	"github.com/speedrun-hq/speedrun-settlement/pkg/health"
	"github.com/speedrun-hq/speedrun-settlement/pkg/logger"
	"github.com/speedrun-hq/speedrun-settlement/pkg/models"
	"github.com/speedrun-hq/speedrun-settlement/pkg/quoteclient"
	"github.com/speedrun-hq/speedrun-settlement/pkg/secrets"
	"github.com/speedrun-hq/speedrun-settlement/pkg/settlement"
	"github.com/speedrun-hq/speedrun-settlement/pkg/sweeper"
)

// QuoteSource prices a route before an order is opened
type QuoteSource interface {
	FetchQuote(ctx context.Context, req quoteclient.Request) (models.Quote, error)
}

// SettleRequest asks for an order settling an existing intent
type SettleRequest struct {
	IntentID       string          `json:"intent_id"`
	SrcChainID     int             `json:"src_chain_id"`
	SrcAmount      decimal.Decimal `json:"src_amount"`
	AuctionOrderID string          `json:"auction_order_id,omitempty"`
	Provision      bool            `json:"provision,omitempty"`
}

// Service handles the settlement process
type Service struct {
	config          *config.Config
	logger          logger.Logger
	engine          *settlement.Engine
	chainIDs        []int
	quotes          QuoteSource
	driver          *driver.Driver
	sweeper         *sweeper.Sweeper
	circuitBreakers map[int]*circuitbreaker.CircuitBreaker
	health          *health.Server
	closers         []func()
}

// NewService connects to every configured chain and builds the engine.
// With no chains configured it runs against the simulated chain client.
func NewService(ctx context.Context, cfg *config.Config, log logger.Logger) (*Service, error) {
	if log == nil {
		log = &logger.EmptyLogger{}
	}

	commitment, err := secrets.CommitmentByName(cfg.Settlement.CommitmentScheme)
	if err != nil {
		return nil, err
	}

	var (
		client      chainclient.Client
		provisioner chainclient.Provisioner
		chainIDs    []int
		closers     []func()
	)
	if len(cfg.Chains) == 0 {
		log.Notice("No chains configured, settling against the simulated chain client")
		fake := chainclient.NewFakeClient(1)
		client, provisioner = fake, fake
		chainIDs = append(chainIDs, chains.ChainList...)
	} else {
		clients := make(map[int]chainclient.Client, len(cfg.Chains))
		for chainID, chainConfig := range cfg.Chains {
			evm, err := chainclient.NewEVMClient(ctx, chainclient.EVMConfig{
				ChainID:       chainID,
				RPCURL:        chainConfig.RPCURL,
				EscrowAddress: chainConfig.EscrowAddress,
				PrivateKey:    cfg.PrivateKey,
				GasMultiplier: chainConfig.GasMultiplier,
				TokenDecimals: chainConfig.TokenDecimals,
			}, log)
			if err != nil {
				for _, closeFn := range closers {
					closeFn()
				}
				return nil, fmt.Errorf("failed to connect to chain %d: %v", chainID, err)
			}
			log.InfoWithChain(chainID, "Connected, escrow at %s", chainConfig.EscrowAddress)
			clients[chainID] = evm
			closers = append(closers, evm.Close)
		}
		router := chainclient.NewRouter(clients)
		client = router
		chainIDs = router.Chains()
	}
	sort.Ints(chainIDs)

	engine := settlement.New(settlement.Config{
		TimeLock:        cfg.Settlement.TimeLock,
		SecretsRequired: cfg.Settlement.SecretsRequired,
		Commitment:      commitment,
	}, client, provisioner, log)

	s := newService(cfg, engine, client, chainIDs, quoteclient.New(cfg.QuoteEndpoint, log), log)
	s.closers = closers
	return s, nil
}

func newService(cfg *config.Config, engine *settlement.Engine, client chainclient.Client, chainIDs []int, quotes QuoteSource, log logger.Logger) *Service {
	if log == nil {
		log = &logger.EmptyLogger{}
	}

	circuitBreakers := make(map[int]*circuitbreaker.CircuitBreaker, len(chainIDs))
	for _, chainID := range chainIDs {
		circuitBreakers[chainID] = circuitbreaker.NewCircuitBreaker(
			cfg.CircuitBreaker.Enabled,
			cfg.CircuitBreaker.Threshold,
			cfg.CircuitBreaker.WindowDuration,
			cfg.CircuitBreaker.ResetTimeout,
			log,
		)
	}

	d := driver.New(engine, circuitBreakers, cfg.WorkerCount, cfg.QueueSize, log)
	s := &Service{
		config:          cfg,
		logger:          log,
		engine:          engine,
		chainIDs:        chainIDs,
		quotes:          quotes,
		driver:          d,
		sweeper:         sweeper.New(engine, cfg.SweepInterval, d.Enqueue, log),
		circuitBreakers: circuitBreakers,
		health:          health.NewServer(cfg.MetricsPort, chainIDs, client, engine, circuitBreakers, cfg.MetricsAPIKey, log),
	}
	s.registerRoutes()
	return s
}

// Engine returns the settlement engine
func (s *Service) Engine() *settlement.Engine {
	return s.engine
}

// Start runs the service until ctx is cancelled
func (s *Service) Start(ctx context.Context) {
	go func() {
		if err := s.health.Start(ctx); err != nil {
			s.logger.Error("Health server stopped: %v", err)
		}
	}()

	s.logger.Info("Starting %d driver workers", s.config.WorkerCount)
	s.driver.Start(ctx)

	s.logger.Info("Starting timelock sweeper with interval %v", s.config.SweepInterval)
	s.sweeper.Start()

	<-ctx.Done()
	s.logger.Info("Context cancelled, shutting down service")
	s.sweeper.Stop()
	s.driver.Wait()
	for _, closeFn := range s.closers {
		closeFn()
	}
}

// Settle opens an order for an intent, quoting the route unless an auction
// fixes the price, and queues it for execution. Provisioning runs before the
// order is opened; when it fails no order exists.
func (s *Service) Settle(ctx context.Context, req SettleRequest) (*models.CrossChainOrder, error) {
	intent, err := s.engine.GetIntent(req.IntentID)
	if err != nil {
		return nil, err
	}
	amount := req.SrcAmount
	if amount.IsZero() {
		amount = intent.SourceAmount
	}

	quote := models.Quote{AuctionOrderID: req.AuctionOrderID}
	if s.quotes != nil && req.AuctionOrderID == "" {
		quote, err = s.quotes.FetchQuote(ctx, quoteclient.Request{
			SrcChainID: req.SrcChainID,
			DstChainID: intent.DestinationChainID,
			SrcToken:   intent.SourceToken,
			DstToken:   intent.DestinationToken,
			Amount:     amount,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch quote: %v", err)
		}
	}

	if req.Provision {
		if err := s.engine.ProvisionIntent(ctx, intent.ID, req.SrcChainID, amount); err != nil {
			return nil, fmt.Errorf("failed to provision tokens for intent %s: %w", intent.ID, err)
		}
	}

	order, err := s.engine.CreateCrossChainOrder(intent, req.SrcChainID, intent.DestinationChainID, amount, quote)
	if err != nil {
		return nil, err
	}

	if !s.driver.Enqueue(order.OrderID) {
		s.logger.Notice("Order %s not queued, the sweeper will pick it up", order.OrderID)
	}
	return order, nil
}
