// Package sweeper periodically touches open orders so that expired time locks
// are turned into refunds even when nobody else reads the order.
package sweeper

import (
	"sync"
	"time"

	"github.com/speedrun-hq/speedrun-settlement/pkg/logger"
	"github.com/speedrun-hq/speedrun-settlement/pkg/metrics"
	"github.com/speedrun-hq/speedrun-settlement/pkg/models"
	"github.com/speedrun-hq/speedrun-settlement/pkg/settlement"
)

// Engine is the part of the settlement engine the sweeper uses
type Engine interface {
	ListOpenOrders() []*models.CrossChainOrder
	GetOrderStatus(orderID string) (settlement.OrderSnapshot, error)
}

// Sweeper runs a sweep on a fixed interval. Orders still open after a sweep
// are handed to the optional handler, typically a driver's Enqueue.
type Sweeper struct {
	engine   Engine
	interval time.Duration
	handler  func(orderID string) bool
	logger   logger.Logger
	stopChan chan struct{}
	done     chan struct{}
	mu       sync.RWMutex
	running  bool
}

// New creates a sweeper; handler may be nil
func New(engine Engine, interval time.Duration, handler func(orderID string) bool, log logger.Logger) *Sweeper {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Sweeper{
		engine:   engine,
		interval: interval,
		handler:  handler,
		logger:   log,
	}
}

// Start begins the periodic sweeps
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	s.running = true

	go s.run(s.stopChan, s.done)
}

// Stop halts the periodic sweeps and waits for a sweep in progress to finish
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.stopChan = nil
	s.running = false
	s.mu.Unlock()

	<-done
}

// IsRunning returns whether the sweeper is currently running
func (s *Sweeper) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Sweeper) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-stop:
			return
		}
	}
}

// Sweep checks every open order once and returns how many were refunded
func (s *Sweeper) Sweep() int {
	orders := s.engine.ListOpenOrders()
	refunded := 0
	open := 0

	for _, order := range orders {
		snapshot, err := s.engine.GetOrderStatus(order.OrderID)
		if err != nil {
			s.logger.Error("Sweeper: failed to check order %s: %v", order.OrderID, err)
			continue
		}
		switch {
		case snapshot.Status == models.OrderRefunded:
			refunded++
		case !snapshot.Status.IsTerminal():
			open++
			if s.handler != nil {
				s.handler(order.OrderID)
			}
		}
	}

	metrics.OpenOrders.Set(float64(open))
	if refunded > 0 {
		s.logger.Info("Sweeper: refunded %d order(s) past their time lock", refunded)
	}
	return refunded
}
