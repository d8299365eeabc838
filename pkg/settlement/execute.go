package settlement

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/speedrun-hq/speedrun-settlement/pkg/chainclient"
	"github.com/speedrun-hq/speedrun-settlement/pkg/metrics"
	"github.com/speedrun-hq/speedrun-settlement/pkg/models"
	"github.com/speedrun-hq/speedrun-settlement/pkg/store"
)

// AdvanceOrder executes the next settlement step of an order.
//
// The step is marked in progress in one atomic update, the chain call runs
// with no store lock held, and its outcome is recorded in a second update.
// A second call for the same order while the first is in flight fails with
// ErrStepInFlight. A failed chain call returns a *StepError and fails the
// order, unless the time lock passed meanwhile, in which case it is refunded.
func (e *Engine) AdvanceOrder(ctx context.Context, orderID string) (models.ExecutionStep, error) {
	var (
		begun    models.ExecutionStep
		refunded bool
	)
	now := e.now()
	order, err := e.store.UpdateCrossChainOrder(orderID, func(o *models.CrossChainOrder) error {
		if e.applyTimeLock(o, now) {
			refunded = true
			return nil
		}
		if o.Status != models.OrderSecretsRequired && o.Status != models.OrderExecuting {
			return fmt.Errorf("%w: cannot advance order %s in status %s", ErrInvalidTransition, o.OrderID, o.Status)
		}
		step, err := e.pipeline.Begin(o)
		if err != nil {
			return err
		}
		if o.Status == models.OrderSecretsRequired {
			if err := store.ApplyOrderEvent(o, store.OrderEventExecutionStarted); err != nil {
				return err
			}
		}
		begun = step
		return nil
	})
	if err != nil {
		return models.ExecutionStep{}, orderNotFound(orderID, err)
	}
	if refunded {
		return models.ExecutionStep{}, fmt.Errorf("%w: order %s was refunded, time lock passed", ErrInvalidTransition, orderID)
	}

	result, execErr := e.pipeline.Execute(ctx, order, begun)

	var failedNow, refundedNow bool
	finished := begun
	order, err = e.store.UpdateCrossChainOrder(orderID, func(o *models.CrossChainOrder) error {
		step, err := e.pipeline.Finish(o, begun.StepIndex, result, execErr)
		if err != nil {
			return err
		}
		finished = step
		switch {
		case o.Status == models.OrderRefunded:
			refundedNow = true
		case e.applyTimeLock(o, e.now()):
			refundedNow = true
		case step.Status == models.StepFailed:
			if err := store.ApplyOrderEvent(o, store.OrderEventFail); err != nil {
				return err
			}
			failedNow = true
		}
		return nil
	})
	if err != nil {
		return finished, fmt.Errorf("failed to record step %d of order %s: %w", begun.StepIndex, orderID, err)
	}

	chainLabel := strconv.Itoa(begun.ChainID)
	if finished.Status == models.StepCompleted {
		e.recordEvidence(ctx, order, finished)
	}
	if failedNow {
		metrics.OrdersFinished.WithLabelValues(strconv.Itoa(order.SrcChainID), string(models.OrderFailed)).Inc()
		metrics.SettlementErrors.WithLabelValues(chainLabel, ClassifyError(execErr)).Inc()
	}

	if execErr != nil {
		return finished, &StepError{
			OrderID:   orderID,
			StepIndex: finished.StepIndex,
			Action:    finished.Action,
			ChainID:   finished.ChainID,
			Err:       execErr,
		}
	}
	if refundedNow {
		return finished, fmt.Errorf("%w: order %s was refunded while step %d was in flight", ErrInvalidTransition, orderID, finished.StepIndex)
	}
	return finished, nil
}

// CompleteWithSecrets settles an order whose steps all completed once the
// revealed secrets open its hashlock. A reveal that does not match returns
// false with no error and leaves the order unchanged, so the caller may retry
// until the time lock passes.
func (e *Engine) CompleteWithSecrets(orderID string, revealed []models.Secret) (bool, error) {
	var refunded bool
	now := e.now()
	order, err := e.store.UpdateCrossChainOrder(orderID, func(o *models.CrossChainOrder) error {
		if e.applyTimeLock(o, now) {
			refunded = true
			return nil
		}
		if o.Status != models.OrderExecuting {
			if o.Status == models.OrderSecretsRequired {
				return fmt.Errorf("%w: order %s has not started", ErrStepsIncomplete, o.OrderID)
			}
			return fmt.Errorf("%w: cannot complete order %s in status %s", ErrInvalidTransition, o.OrderID, o.Status)
		}
		if !o.AllStepsCompleted() {
			return fmt.Errorf("%w: order %s", ErrStepsIncomplete, o.OrderID)
		}
		if !e.vault.VerifyReveal(o, revealed) {
			return errRevealRejected
		}
		return store.ApplyOrderEvent(o, store.OrderEventComplete)
	})
	if errors.Is(err, errRevealRejected) {
		metrics.SecretVerifications.WithLabelValues("rejected").Inc()
		e.logger.Notice("Order %s: revealed secrets do not open the hashlock", orderID)
		return false, nil
	}
	if err != nil {
		return false, orderNotFound(orderID, err)
	}
	if refunded {
		return false, fmt.Errorf("%w: order %s was refunded, time lock passed", ErrInvalidTransition, orderID)
	}

	metrics.SecretVerifications.WithLabelValues("accepted").Inc()
	metrics.OrdersFinished.WithLabelValues(strconv.Itoa(order.SrcChainID), string(models.OrderCompleted)).Inc()
	e.logger.InfoWithChain(order.DstChainID, "Order %s completed, intent %s executed", orderID, order.IntentID)
	return true, nil
}

// Refund returns an order's funds once its time lock has passed. It reports
// false with no error while the lock still holds, and true for an order that
// is already refunded. Completed and failed orders cannot be refunded.
func (e *Engine) Refund(orderID string) (bool, error) {
	var already bool
	now := e.now()
	_, err := e.store.UpdateCrossChainOrder(orderID, func(o *models.CrossChainOrder) error {
		switch o.Status {
		case models.OrderRefunded:
			already = true
			return nil
		case models.OrderCompleted, models.OrderFailed:
			return fmt.Errorf("%w: cannot refund order %s in status %s", ErrInvalidTransition, o.OrderID, o.Status)
		}
		if !o.TimeLockExpired(now) {
			return errNotDue
		}
		if !e.applyTimeLock(o, now) {
			return fmt.Errorf("%w: cannot refund order %s in status %s", ErrInvalidTransition, o.OrderID, o.Status)
		}
		return nil
	})
	if errors.Is(err, errNotDue) {
		return false, nil
	}
	if err != nil {
		return false, orderNotFound(orderID, err)
	}
	if already {
		e.logger.Debug("Order %s already refunded", orderID)
	}
	return true, nil
}

// recordEvidence appends evidence for a completed step. The escrow lookup is
// best effort; a failed read leaves the address empty.
func (e *Engine) recordEvidence(ctx context.Context, order *models.CrossChainOrder, step models.ExecutionStep) {
	escrow, err := e.client.Read(ctx, order.SrcChainID, chainclient.Query{
		Kind:      chainclient.QueryEscrowAddress,
		OrderHash: order.OrderHash,
	})
	if err != nil {
		e.logger.ErrorWithChain(order.SrcChainID, "Order %s: failed to read escrow address: %v", order.OrderID, err)
		escrow = ""
	}

	now := e.now()
	evidence := models.OnChainEvidence{
		OrderID:       order.OrderID,
		StepIndex:     step.StepIndex,
		TxRef:         step.TxRef,
		BlockNumber:   step.BlockNumber,
		Timestamp:     now,
		SrcChainID:    order.SrcChainID,
		DstChainID:    order.DstChainID,
		EscrowAddress: escrow,
		IntentHash:    order.IntentHash,
	}
	if order.AuctionOrderID != "" {
		if auction, err := e.store.GetAuctionOrder(order.AuctionOrderID); err == nil {
			evidence.CurrentPrice = auctionPrice(auction, now)
			evidence.AuctionActive = auction.Status == models.AuctionActive
		}
	}

	e.store.AppendEvidence(order.User, evidence)
	metrics.EvidenceRecorded.WithLabelValues(strconv.Itoa(step.ChainID)).Inc()
}
