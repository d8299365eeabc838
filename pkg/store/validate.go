package store

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/speedrun-hq/speedrun-settlement/pkg/models"
)

func validateAuction(order models.AuctionOrder) error {
	if order.OrderID == "" {
		return fmt.Errorf("%w: auction id is empty", ErrInvariant)
	}
	if order.EndPrice.GreaterThan(order.StartPrice) {
		return fmt.Errorf("%w: end price %s above start price %s", ErrInvariant, order.EndPrice, order.StartPrice)
	}
	if order.DurationSeconds <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvariant)
	}
	return nil
}

// validateOrder checks an order's invariants. hashLock, when set, derives the
// expected lock from the secret hashes.
func validateOrder(order *models.CrossChainOrder, hashLock func([]common.Hash) common.Hash) error {
	if order.OrderID == "" {
		return fmt.Errorf("%w: order id is empty", ErrInvariant)
	}
	if order.SecretsRequired <= 0 {
		return fmt.Errorf("%w: secrets required must be positive", ErrInvariant)
	}
	if len(order.Secrets) != order.SecretsRequired || len(order.SecretHashes) != order.SecretsRequired {
		return fmt.Errorf("%w: %d secrets and %d hashes for %d required",
			ErrInvariant, len(order.Secrets), len(order.SecretHashes), order.SecretsRequired)
	}
	if hashLock != nil {
		if want := hashLock(order.SecretHashes); order.HashLock != want {
			return fmt.Errorf("%w: hash lock %s does not match secret hashes (want %s)", ErrInvariant, order.HashLock.Hex(), want.Hex())
		}
	}
	if !order.TimeLockAt.After(order.CreatedAt) {
		return fmt.Errorf("%w: time lock must be after creation", ErrInvariant)
	}
	if len(order.Steps) != StepCount {
		return fmt.Errorf("%w: expected %d steps, got %d", ErrInvariant, StepCount, len(order.Steps))
	}
	return validateSteps(order.Steps)
}

// validateSteps checks the ordering rule: a step can only be started or finished
// once its predecessor completed, and at most one step is in progress.
func validateSteps(steps []models.ExecutionStep) error {
	inProgress := 0
	for i, step := range steps {
		if step.StepIndex != i+1 {
			return fmt.Errorf("%w: step %d has index %d", ErrInvariant, i+1, step.StepIndex)
		}
		if step.Status == models.StepInProgress {
			inProgress++
		}
		if i == 0 {
			continue
		}
		if step.Status == models.StepInProgress || step.Status == models.StepCompleted {
			if steps[i-1].Status != models.StepCompleted {
				return fmt.Errorf("%w: step %d is %s while step %d is %s",
					ErrInvariant, step.StepIndex, step.Status, steps[i-1].StepIndex, steps[i-1].Status)
			}
		}
	}
	if inProgress > 1 {
		return fmt.Errorf("%w: %d steps in progress", ErrInvariant, inProgress)
	}
	return nil
}
