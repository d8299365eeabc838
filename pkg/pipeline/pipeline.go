package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/speedrun-hq/speedrun-settlement/pkg/chainclient"
	"github.com/speedrun-hq/speedrun-settlement/pkg/logger"
	"github.com/speedrun-hq/speedrun-settlement/pkg/metrics"
	"github.com/speedrun-hq/speedrun-settlement/pkg/models"
)

var (
	ErrStepInFlight      = errors.New("a step is already in progress")
	ErrNoPendingStep     = errors.New("no step left to advance")
	ErrStepNotInProgress = errors.New("step is not in progress")
	ErrReverted          = errors.New("transaction reverted")
)

// Pipeline advances order steps through a chain client. It holds no order
// state; callers pass the order in and persist what comes back.
type Pipeline struct {
	client chainclient.Client
	logger logger.Logger
	now    func() time.Time
}

// New creates a pipeline
func New(client chainclient.Client, log logger.Logger, now func() time.Time) *Pipeline {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	if now == nil {
		now = time.Now
	}
	return &Pipeline{client: client, logger: log, now: now}
}

// Begin marks the next pending step in progress and returns it.
// The order is modified in place.
func (p *Pipeline) Begin(order *models.CrossChainOrder) (models.ExecutionStep, error) {
	pos, ok := Next(order)
	if !ok {
		return models.ExecutionStep{}, fmt.Errorf("%w: order %s", ErrNoPendingStep, order.OrderID)
	}
	if order.Steps[pos].Status == models.StepInProgress {
		return models.ExecutionStep{}, fmt.Errorf("%w: order %s step %d", ErrStepInFlight, order.OrderID, order.Steps[pos].StepIndex)
	}
	order.Steps[pos].Status = models.StepInProgress
	order.Steps[pos].Error = ""
	return order.Steps[pos], nil
}

// Execute submits the step's action. It holds no locks and may block for as
// long as the chain takes. A mined but unsuccessful transaction is reported
// as ErrReverted together with its result.
func (p *Pipeline) Execute(ctx context.Context, order *models.CrossChainOrder, step models.ExecutionStep) (chainclient.SubmitResult, error) {
	action := chainclient.Action(step.Action)
	start := p.now()

	p.logger.DebugWithChain(step.ChainID, "Order %s: step %d %s", order.OrderID, step.StepIndex, action)

	result, err := p.client.Submit(ctx, step.ChainID, action, ArgsFor(order, step))

	chainLabel := fmt.Sprintf("%d", step.ChainID)
	metrics.StepDuration.WithLabelValues(chainLabel, string(action)).Observe(p.now().Sub(start).Seconds())

	if err != nil {
		metrics.StepsExecuted.WithLabelValues(chainLabel, string(action), "error").Inc()
		return result, err
	}
	if !result.Success {
		metrics.StepsExecuted.WithLabelValues(chainLabel, string(action), "reverted").Inc()
		return result, fmt.Errorf("%w: %s", ErrReverted, result.TxRef)
	}
	metrics.StepsExecuted.WithLabelValues(chainLabel, string(action), "success").Inc()
	return result, nil
}

// Finish records the outcome of an executed step on the order in place
func (p *Pipeline) Finish(order *models.CrossChainOrder, stepIndex int, result chainclient.SubmitResult, execErr error) (models.ExecutionStep, error) {
	pos := stepIndex - 1
	if pos < 0 || pos >= len(order.Steps) {
		return models.ExecutionStep{}, fmt.Errorf("step %d out of range", stepIndex)
	}
	step := &order.Steps[pos]
	if step.Status != models.StepInProgress {
		return *step, fmt.Errorf("%w: order %s step %d is %s", ErrStepNotInProgress, order.OrderID, stepIndex, step.Status)
	}

	step.TxRef = result.TxRef
	step.BlockNumber = result.BlockNumber
	if execErr != nil {
		step.Status = models.StepFailed
		step.Error = execErr.Error()
		p.logger.ErrorWithChain(step.ChainID, "Order %s: step %d failed: %v", order.OrderID, stepIndex, execErr)
		return *step, nil
	}

	completedAt := p.now()
	step.Status = models.StepCompleted
	step.CompletedAt = &completedAt
	p.logger.InfoWithChain(step.ChainID, "Order %s: step %d completed in tx %s", order.OrderID, stepIndex, result.TxRef)
	return *step, nil
}

// Advance runs Begin, Execute and Finish on order in one call. A chain failure
// is recorded on the step and also returned.
func (p *Pipeline) Advance(ctx context.Context, order *models.CrossChainOrder) (models.ExecutionStep, error) {
	step, err := p.Begin(order)
	if err != nil {
		return step, err
	}
	result, execErr := p.Execute(ctx, order, step)
	step, err = p.Finish(order, step.StepIndex, result, execErr)
	if err != nil {
		return step, err
	}
	return step, execErr
}
