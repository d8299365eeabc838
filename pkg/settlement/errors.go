package settlement

import (
	"errors"
	"fmt"

	"github.com/speedrun-hq/speedrun-settlement/pkg/pipeline"
	"github.com/speedrun-hq/speedrun-settlement/pkg/store"
)

var (
	ErrInvalidAuctionParams = errors.New("invalid auction parameters")
	ErrInvalidIntent        = errors.New("invalid intent")
	ErrInvalidOrderParams   = errors.New("invalid order parameters")
	ErrUnsupportedChainPair = errors.New("unsupported chain pair")
	ErrOrderNotFound        = errors.New("order not found")
	ErrIntentNotFound       = errors.New("intent not found")
	ErrAuctionNotFound      = errors.New("auction not found")
	ErrStepsIncomplete      = errors.New("settlement steps are not all completed")
	ErrNoProvisioner        = errors.New("no token provisioner configured")

	ErrInvalidTransition = store.ErrInvalidTransition
	ErrStepInFlight      = pipeline.ErrStepInFlight
	ErrNoPendingStep     = pipeline.ErrNoPendingStep

	// aborts a store update when the reveal does not open the hashlock
	errRevealRejected = errors.New("reveal rejected")
	errNotDue         = errors.New("time lock not reached")
)

// StepError is returned by AdvanceOrder when the chain call of a step failed.
// The step is recorded as failed on the order.
type StepError struct {
	OrderID   string
	StepIndex int
	Action    string
	ChainID   int
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("order %s step %d (%s on chain %d) failed: %v", e.OrderID, e.StepIndex, e.Action, e.ChainID, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func orderNotFound(id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return err
}
