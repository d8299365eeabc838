package settlement

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/speedrun-hq/speedrun-settlement/pkg/chains"
	"github.com/speedrun-hq/speedrun-settlement/pkg/models"
	"github.com/speedrun-hq/speedrun-settlement/pkg/store"
)

// CreateIntent records a user's desire to swap amount of srcToken for dstToken on dstChainID
func (e *Engine) CreateIntent(text, srcToken, dstToken string, amount decimal.Decimal, dstChainID int, user string) (models.Intent, error) {
	switch {
	case strings.TrimSpace(user) == "":
		return models.Intent{}, fmt.Errorf("%w: user is empty", ErrInvalidIntent)
	case srcToken == "" || dstToken == "":
		return models.Intent{}, fmt.Errorf("%w: tokens must be set", ErrInvalidIntent)
	case !amount.IsPositive():
		return models.Intent{}, fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidIntent, amount)
	case !chains.IsSupported(dstChainID):
		return models.Intent{}, fmt.Errorf("%w: destination chain %d", ErrUnsupportedChainPair, dstChainID)
	}

	intent := models.Intent{
		ID:                 e.newID(),
		User:               user,
		IntentText:         text,
		SourceToken:        srcToken,
		DestinationToken:   dstToken,
		SourceAmount:       amount,
		DestinationChainID: dstChainID,
		CreatedAt:          e.now(),
	}
	intent.Hash = intentHash(intent)

	if err := e.store.CreateIntent(intent); err != nil {
		return models.Intent{}, err
	}
	e.logger.Debug("Created intent %s for %s: %s %s -> %s", intent.ID, user, amount, srcToken, dstToken)
	return intent, nil
}

// GetIntent returns an intent by id
func (e *Engine) GetIntent(id string) (models.Intent, error) {
	intent, err := e.store.GetIntent(id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Intent{}, fmt.Errorf("%w: %s", ErrIntentNotFound, id)
	}
	return intent, err
}

func intentHash(intent models.Intent) string {
	return crypto.Keccak256Hash(
		[]byte(intent.ID),
		[]byte(intent.User),
		[]byte(intent.IntentText),
		[]byte(intent.SourceToken),
		[]byte(intent.DestinationToken),
		[]byte(intent.SourceAmount.String()),
		[]byte(strconv.Itoa(intent.DestinationChainID)),
		[]byte(strconv.FormatInt(intent.CreatedAt.UnixNano(), 10)),
	).Hex()
}
