package store

import (
	"fmt"

	"github.com/speedrun-hq/speedrun-settlement/pkg/models"
)

// AuctionEvent drives the auction state machine
type AuctionEvent string

const (
	AuctionEventExpire AuctionEvent = "expire"
	AuctionEventFill   AuctionEvent = "fill"
	AuctionEventCancel AuctionEvent = "cancel"
)

// OrderEvent drives the cross-chain order state machine
type OrderEvent string

const (
	OrderEventSecretsGenerated OrderEvent = "secrets_generated"
	OrderEventExecutionStarted OrderEvent = "execution_started"
	OrderEventComplete         OrderEvent = "complete"
	OrderEventFail             OrderEvent = "fail"
	OrderEventRefund           OrderEvent = "refund"
)

var auctionEdges = map[models.AuctionStatus]map[AuctionEvent]models.AuctionStatus{
	models.AuctionActive: {
		AuctionEventExpire: models.AuctionExpired,
		AuctionEventFill:   models.AuctionFilled,
		AuctionEventCancel: models.AuctionCancelled,
	},
}

var orderEdges = map[models.OrderStatus]map[OrderEvent]models.OrderStatus{
	models.OrderPending: {
		OrderEventSecretsGenerated: models.OrderSecretsRequired,
	},
	models.OrderSecretsRequired: {
		OrderEventExecutionStarted: models.OrderExecuting,
		OrderEventRefund:           models.OrderRefunded,
	},
	models.OrderExecuting: {
		OrderEventComplete: models.OrderCompleted,
		OrderEventFail:     models.OrderFailed,
		OrderEventRefund:   models.OrderRefunded,
	},
}

// NextAuctionStatus returns the state reached by applying event, or ErrInvalidTransition
func NextAuctionStatus(from models.AuctionStatus, event AuctionEvent) (models.AuctionStatus, error) {
	if to, ok := auctionEdges[from][event]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%w: auction %s on %s", ErrInvalidTransition, event, from)
}

// NextOrderStatus returns the state reached by applying event, or ErrInvalidTransition
func NextOrderStatus(from models.OrderStatus, event OrderEvent) (models.OrderStatus, error) {
	if to, ok := orderEdges[from][event]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%w: order %s on %s", ErrInvalidTransition, event, from)
}

// ApplyOrderEvent moves order along one edge in place
func ApplyOrderEvent(order *models.CrossChainOrder, event OrderEvent) error {
	to, err := NextOrderStatus(order.Status, event)
	if err != nil {
		return err
	}
	order.Status = to
	return nil
}
