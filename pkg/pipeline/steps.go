// Package pipeline runs the fixed five-step settlement sequence of an order.
package pipeline

import (
	"github.com/speedrun-hq/speedrun-settlement/pkg/chainclient"
	"github.com/speedrun-hq/speedrun-settlement/pkg/models"
)

// Definition describes one settlement step
type Definition struct {
	Description string
	Action      chainclient.Action
	OnSource    bool
}

// Definitions is the settlement sequence; index i is step i+1
var Definitions = []Definition{
	{Description: "Lock funds on source chain", Action: chainclient.ActionLockFunds, OnSource: true},
	{Description: "Initiate cross-chain bridge", Action: chainclient.ActionInitiateBridge, OnSource: true},
	{Description: "Verify bridge on destination chain", Action: chainclient.ActionVerifyBridge},
	{Description: "Execute swap on destination chain", Action: chainclient.ActionExecuteSwap},
	{Description: "Release funds to user", Action: chainclient.ActionReleaseFunds},
}

// NewSteps returns the pending steps for an order between src and dst
func NewSteps(srcChainID, dstChainID int) []models.ExecutionStep {
	steps := make([]models.ExecutionStep, len(Definitions))
	for i, def := range Definitions {
		chainID := dstChainID
		if def.OnSource {
			chainID = srcChainID
		}
		steps[i] = models.ExecutionStep{
			StepIndex:   i + 1,
			Description: def.Description,
			Action:      string(def.Action),
			Status:      models.StepPending,
			ChainID:     chainID,
		}
	}
	return steps
}

// Next returns the position of the first step that is pending or in progress.
// ok is false when every step completed or a step failed.
func Next(order *models.CrossChainOrder) (pos int, ok bool) {
	for i, step := range order.Steps {
		switch step.Status {
		case models.StepPending, models.StepInProgress:
			return i, true
		case models.StepFailed:
			return -1, false
		}
	}
	return -1, false
}

// ArgsFor builds the chain-client arguments of a step from the order
func ArgsFor(order *models.CrossChainOrder, step models.ExecutionStep) chainclient.Args {
	args := chainclient.Args{
		OrderID:    order.OrderID,
		OrderHash:  order.OrderHash,
		HashLock:   order.HashLock.Hex(),
		SrcChainID: order.SrcChainID,
		DstChainID: order.DstChainID,
		TimeLockAt: order.TimeLockAt,
		Recipient:  order.User,
	}
	switch chainclient.Action(step.Action) {
	case chainclient.ActionLockFunds, chainclient.ActionInitiateBridge:
		args.Token = order.SrcToken
		args.Amount = order.SrcAmount
	default:
		args.Token = order.DstToken
		args.Amount = order.DstAmount
	}
	return args
}
