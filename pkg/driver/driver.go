// Package driver advances cross-chain orders with a bounded pool of workers.
package driver

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/speedrun-hq/speedrun-settlement/pkg/circuitbreaker"
	"github.com/speedrun-hq/speedrun-settlement/pkg/logger"
	"github.com/speedrun-hq/speedrun-settlement/pkg/metrics"
	"github.com/speedrun-hq/speedrun-settlement/pkg/models"
	"github.com/speedrun-hq/speedrun-settlement/pkg/pipeline"
	"github.com/speedrun-hq/speedrun-settlement/pkg/settlement"
)

// Outcome tells why the driver stopped advancing an order
type Outcome string

const (
	OutcomeAwaitingSecrets Outcome = "awaiting_secrets"
	OutcomeTerminal        Outcome = "terminal"
	OutcomeCircuitOpen     Outcome = "circuit_open"
	OutcomeInFlight        Outcome = "in_flight"
	OutcomeStepFailed      Outcome = "step_failed"
	OutcomeError           Outcome = "error"
	OutcomeCancelled       Outcome = "cancelled"
)

// Engine is the part of the settlement engine the driver uses
type Engine interface {
	AdvanceOrder(ctx context.Context, orderID string) (models.ExecutionStep, error)
	GetOrderStatus(orderID string) (settlement.OrderSnapshot, error)
}

// Driver feeds queued order ids to workers. Each worker advances one order
// step by step until it is terminal, waits for secrets, or its chain's
// circuit breaker is open.
type Driver struct {
	engine   Engine
	breakers map[int]*circuitbreaker.CircuitBreaker
	workers  int
	queue    chan string
	logger   logger.Logger

	mu     sync.Mutex
	queued map[string]bool
	wg     sync.WaitGroup
}

// New creates a driver; breakers may be nil
func New(engine Engine, breakers map[int]*circuitbreaker.CircuitBreaker, workers, queueSize int, log logger.Logger) *Driver {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Driver{
		engine:   engine,
		breakers: breakers,
		workers:  workers,
		queue:    make(chan string, queueSize),
		logger:   log,
		queued:   make(map[string]bool),
	}
}

// Enqueue schedules an order. It returns false if the order is already queued
// or the queue is full.
func (d *Driver) Enqueue(orderID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.queued[orderID] {
		return false
	}
	select {
	case d.queue <- orderID:
		d.queued[orderID] = true
		metrics.DriverQueueSize.Set(float64(len(d.queue)))
		return true
	default:
		d.logger.Notice("Driver queue full, dropping order %s", orderID)
		return false
	}
}

// Start launches the workers; they stop when ctx is cancelled
func (d *Driver) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
}

// Wait blocks until every worker has returned
func (d *Driver) Wait() {
	d.wg.Wait()
}

func (d *Driver) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	d.logger.Debug("Starting driver worker %d", id)
	for {
		select {
		case <-ctx.Done():
			d.logger.Debug("Driver worker %d shutting down", id)
			return
		case orderID := <-d.queue:
			d.mu.Lock()
			delete(d.queued, orderID)
			metrics.DriverQueueSize.Set(float64(len(d.queue)))
			d.mu.Unlock()

			outcome := d.Drive(ctx, orderID)
			d.logger.Debug("Driver worker %d: order %s stopped: %s", id, orderID, outcome)
		}
	}
}

// Drive advances one order until it cannot make further progress
func (d *Driver) Drive(ctx context.Context, orderID string) Outcome {
	for {
		if ctx.Err() != nil {
			return OutcomeCancelled
		}

		snapshot, err := d.engine.GetOrderStatus(orderID)
		if err != nil {
			d.logger.Error("Driver: failed to load order %s: %v", orderID, err)
			return OutcomeError
		}
		order := snapshot.CrossChainOrder
		if order.Status.IsTerminal() {
			return OutcomeTerminal
		}

		pos, ok := pipeline.Next(order)
		if !ok {
			return OutcomeAwaitingSecrets
		}
		step := order.Steps[pos]
		if step.Status == models.StepInProgress {
			return OutcomeInFlight
		}

		chainLabel := strconv.Itoa(step.ChainID)
		cb := d.breakers[step.ChainID]
		if cb != nil && cb.IsOpen() {
			state := cb.State()
			d.logger.InfoWithChain(step.ChainID, "Circuit breaker open (last failure: %v, failure count: %d), skipping order %s",
				state.LastFailure, state.FailureCount, orderID)
			metrics.DriverSkipped.WithLabelValues(chainLabel, string(OutcomeCircuitOpen)).Inc()
			return OutcomeCircuitOpen
		}

		_, err = d.engine.AdvanceOrder(ctx, orderID)
		if err == nil {
			if cb != nil {
				cb.RecordSuccess()
			}
			continue
		}

		var stepErr *settlement.StepError
		switch {
		case errors.As(err, &stepErr):
			errorType := settlement.ClassifyError(stepErr.Err)
			d.logger.ErrorWithChain(step.ChainID, "Order %s step %d failed, classified as %s: %v", orderID, stepErr.StepIndex, errorType, stepErr.Err)
			if cb != nil && settlement.IsChainFault(errorType) {
				if cb.RecordFailure() {
					state := cb.State()
					d.logger.NoticeWithChain(step.ChainID, "Circuit breaker tripped: %d failures in %v window", state.FailureCount, state.FailureWindow)
					metrics.CircuitBreakerTrips.WithLabelValues(chainLabel).Inc()
				}
			}
			return OutcomeStepFailed
		case errors.Is(err, settlement.ErrStepInFlight):
			metrics.DriverSkipped.WithLabelValues(chainLabel, string(OutcomeInFlight)).Inc()
			return OutcomeInFlight
		case errors.Is(err, settlement.ErrInvalidTransition):
			return OutcomeTerminal
		default:
			d.logger.Error("Driver: failed to advance order %s: %v", orderID, err)
			return OutcomeError
		}
	}
}
