package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/speedrun-hq/speedrun-settlement/pkg/chainclient"
	"github.com/speedrun-hq/speedrun-settlement/pkg/chainclient/mocks"
	"github.com/speedrun-hq/speedrun-settlement/pkg/config"
	"github.com/speedrun-hq/speedrun-settlement/pkg/driver"
	"github.com/speedrun-hq/speedrun-settlement/pkg/models"
	"github.com/speedrun-hq/speedrun-settlement/pkg/quoteclient"
	"github.com/speedrun-hq/speedrun-settlement/pkg/settlement"
	"github.com/speedrun-hq/speedrun-settlement/pkg/store"
	"github.com/speedrun-hq/speedrun-settlement/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testUser = "0xuser"

type stubQuotes struct {
	quote    models.Quote
	err      error
	requests []quoteclient.Request
}

func (s *stubQuotes) FetchQuote(_ context.Context, req quoteclient.Request) (models.Quote, error) {
	s.requests = append(s.requests, req)
	return s.quote, s.err
}

type harness struct {
	service *Service
	clock   *testutil.Clock
	fake    *chainclient.FakeClient
	handler http.Handler
}

func newHarness(t *testing.T, quotes QuoteSource) *harness {
	t.Helper()
	return newHarnessWithProvisioner(t, quotes, nil)
}

// newHarnessWithProvisioner funds users through provisioner, or through the
// fake chain client when provisioner is nil
func newHarnessWithProvisioner(t *testing.T, quotes QuoteSource, provisioner chainclient.Provisioner) *harness {
	t.Helper()
	clock := testutil.NewClock(testutil.Epoch)
	fake := chainclient.NewFakeClient(100)
	if provisioner == nil {
		provisioner = fake
	}
	engine := settlement.New(settlement.Config{
		Now:   clock.Now,
		NewID: testutil.SequentialIDs("id"),
	}, fake, provisioner, nil)

	cfg := &config.Config{
		WorkerCount:   1,
		QueueSize:     10,
		SweepInterval: time.Hour,
		MetricsPort:   "0",
		CircuitBreaker: config.CircuitBreakerConfig{
			Enabled:        true,
			Threshold:      3,
			WindowDuration: time.Minute,
			ResetTimeout:   time.Minute,
		},
	}
	s := newService(cfg, engine, fake, []int{1, 8453}, quotes, nil)
	return &harness{service: s, clock: clock, fake: fake, handler: s.health.Handler()}
}

func (h *harness) post(t *testing.T, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func (h *harness) createIntent(t *testing.T) models.Intent {
	t.Helper()
	rec := h.post(t, "/intents", map[string]interface{}{
		"intent_text":          "swap 100 USDC for USDT on Base",
		"source_token":         "USDC",
		"destination_token":    "USDT",
		"source_amount":        "100",
		"destination_chain_id": 8453,
		"user":                 testUser,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var intent models.Intent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &intent))
	require.NotEmpty(t, intent.ID)
	return intent
}

func decodeOrder(t *testing.T, rec *httptest.ResponseRecorder) orderResponse {
	t.Helper()
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Order)
	return resp
}

func TestSettleWithQuoteAndReveal(t *testing.T) {
	quotes := &stubQuotes{quote: models.Quote{DstAmount: decimal.NewFromInt(99), SecretsRequired: 2}}
	h := newHarness(t, quotes)
	intent := h.createIntent(t)

	resp := decodeOrder(t, h.post(t, "/orders", map[string]interface{}{
		"intent_id":    intent.ID,
		"src_chain_id": 1,
	}))
	order := resp.Order
	assert.Equal(t, models.OrderSecretsRequired, order.Status)
	assert.True(t, order.DstAmount.Equal(decimal.NewFromInt(99)))
	assert.Equal(t, 2, order.SecretsRequired)
	require.Len(t, resp.Secrets, 2)

	require.Len(t, quotes.requests, 1)
	assert.Equal(t, 8453, quotes.requests[0].DstChainID)
	assert.True(t, quotes.requests[0].Amount.Equal(decimal.NewFromInt(100)), "quote uses the intent amount")

	outcome := h.service.driver.Drive(context.Background(), order.OrderID)
	assert.Equal(t, driver.OutcomeAwaitingSecrets, outcome)

	rec := h.post(t, fmt.Sprintf("/orders/%s/secrets", order.OrderID), revealRequest{Secrets: resp.Secrets[:1]})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"completed": false}`, rec.Body.String())

	rec = h.post(t, fmt.Sprintf("/orders/%s/secrets", order.OrderID), revealRequest{Secrets: resp.Secrets})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"completed": true}`, rec.Body.String())

	rec = h.get(t, "/orders/"+order.OrderID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"completed"`)

	rec = h.post(t, fmt.Sprintf("/orders/%s/refund", order.OrderID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.get(t, "/evidence?user="+testUser)
	require.Equal(t, http.StatusOK, rec.Code)
	var evidence []models.OnChainEvidence
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &evidence))
	assert.Len(t, evidence, 5)
}

func TestSettleThroughAuction(t *testing.T) {
	quotes := &stubQuotes{}
	h := newHarness(t, quotes)
	intent := h.createIntent(t)

	rec := h.post(t, "/auctions", map[string]interface{}{
		"intent_id":        intent.ID,
		"start_price":      "2.5",
		"end_price":        "2.4",
		"duration_seconds": 3600,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var auction models.AuctionOrder
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &auction))

	h.clock.Advance(30 * time.Minute)
	rec = h.get(t, "/auctions/"+auction.OrderID)
	require.Equal(t, http.StatusOK, rec.Code)
	var snapshot settlement.AuctionSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.True(t, snapshot.CurrentPrice.Equal(decimal.RequireFromString("2.45")), "got %s", snapshot.CurrentPrice)

	rec = h.post(t, "/auctions/"+auction.OrderID+"/fill", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.post(t, "/auctions/"+auction.OrderID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "filled auctions cannot be cancelled")

	resp := decodeOrder(t, h.post(t, "/orders", map[string]interface{}{
		"intent_id":        intent.ID,
		"src_chain_id":     1,
		"auction_order_id": auction.OrderID,
	}))
	assert.True(t, resp.Order.DstAmount.Equal(decimal.NewFromInt(245)), "got %s", resp.Order.DstAmount)
	assert.Empty(t, quotes.requests, "auction price replaces the quote")
}

func TestSettleProvisionAndRefund(t *testing.T) {
	h := newHarness(t, nil)
	intent := h.createIntent(t)

	order, err := h.service.Settle(context.Background(), SettleRequest{
		IntentID:   intent.ID,
		SrcChainID: 1,
		SrcAmount:  decimal.NewFromInt(40),
		Provision:  true,
	})
	require.NoError(t, err)
	assert.True(t, h.fake.Provisioned(1, "USDC", testUser).Equal(decimal.NewFromInt(40)))

	rec := h.post(t, fmt.Sprintf("/orders/%s/refund", order.OrderID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"refunded": false}`, rec.Body.String())

	h.clock.Advance(settlement.DefaultTimeLock + time.Second)
	rec = h.post(t, fmt.Sprintf("/orders/%s/refund", order.OrderID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"refunded": true}`, rec.Body.String())

	assert.Equal(t, driver.OutcomeTerminal, h.service.driver.Drive(context.Background(), order.OrderID))
}

func TestSettleProvisionFailureOpensNoOrder(t *testing.T) {
	provisioner := new(mocks.Provisioner)
	provisioner.On("Provision", mock.Anything, 1, "USDC", testUser, mock.Anything).Return(errors.New("mint reverted"))
	h := newHarnessWithProvisioner(t, nil, provisioner)
	intent := h.createIntent(t)

	order, err := h.service.Settle(context.Background(), SettleRequest{
		IntentID:   intent.ID,
		SrcChainID: 1,
		SrcAmount:  decimal.NewFromInt(40),
		Provision:  true,
	})
	require.ErrorContains(t, err, "mint reverted")
	assert.Nil(t, order)

	rec := h.post(t, "/orders", map[string]interface{}{"intent_id": intent.ID, "src_chain_id": 1, "provision": true})
	assert.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())

	assert.Empty(t, h.service.Engine().ListOpenOrders())
	assert.Zero(t, h.service.Engine().Stats()["orders"])
	assert.Zero(t, h.service.sweeper.Sweep())
	assert.Empty(t, h.fake.Calls(), "no settlement step may reach a chain")
	provisioner.AssertNumberOfCalls(t, "Provision", 2)
}

func TestSettleErrors(t *testing.T) {
	quotes := &stubQuotes{err: errors.New("unexpected status code: 503")}
	h := newHarness(t, quotes)
	intent := h.createIntent(t)

	tests := []struct {
		name string
		body interface{}
		code int
	}{
		{"quote unavailable", map[string]interface{}{"intent_id": intent.ID, "src_chain_id": 1}, http.StatusInternalServerError},
		{"unknown intent", map[string]interface{}{"intent_id": "missing", "src_chain_id": 1}, http.StatusNotFound},
		{"same chain", map[string]interface{}{"intent_id": intent.ID, "src_chain_id": 8453, "auction_order_id": "x"}, http.StatusBadRequest},
		{"malformed body", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.post(t, "/orders", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}

	rec := h.post(t, "/orders/missing/secrets", revealRequest{Secrets: []string{"0x1234"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.post(t, "/orders/missing/refund", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("wrapped: %w", settlement.ErrOrderNotFound), http.StatusNotFound},
		{settlement.ErrAuctionNotFound, http.StatusNotFound},
		{settlement.ErrInvalidIntent, http.StatusBadRequest},
		{settlement.ErrInvalidAuctionParams, http.StatusBadRequest},
		{store.ErrInvalidTransition, http.StatusConflict},
		{settlement.ErrStepInFlight, http.StatusConflict},
		{settlement.ErrStepsIncomplete, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, statusFor(tt.err), tt.err.Error())
	}
}
