// Package quoteclient fetches destination-side quotes for a settlement route.
package quoteclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/speedrun-hq/speedrun-settlement/pkg/logger"
	"github.com/speedrun-hq/speedrun-settlement/pkg/models"
)

// Request describes the route to quote
type Request struct {
	SrcChainID int
	DstChainID int
	SrcToken   string
	DstToken   string
	Amount     decimal.Decimal
}

// quoteBody is the quote payload; some deployments wrap it in "data"
type quoteBody struct {
	DstAmount       decimal.Decimal `json:"dst_amount"`
	SecretsRequired int             `json:"secrets_required"`
	Data            *quoteBody      `json:"data,omitempty"`
}

// Client is a quote API client
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     logger.Logger
}

// New creates a new quote API client
func New(endpoint string, log logger.Logger) *Client {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: createHTTPClient(),
		logger:     log,
	}
}

// FetchQuote asks the API for the destination amount and secret count of a route
func (c *Client) FetchQuote(ctx context.Context, req Request) (models.Quote, error) {
	query := url.Values{}
	query.Set("src_chain", strconv.Itoa(req.SrcChainID))
	query.Set("dst_chain", strconv.Itoa(req.DstChainID))
	query.Set("src_token", req.SrcToken)
	query.Set("dst_token", req.DstToken)
	query.Set("amount", req.Amount.String())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/v1/quote?"+query.Encode(), nil)
	if err != nil {
		return models.Quote{}, fmt.Errorf("failed to create request: %v", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return models.Quote{}, fmt.Errorf("failed to fetch quote: %v", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Error("Failed to close response body: %v", closeErr)
		}
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Quote{}, fmt.Errorf("failed to read response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return models.Quote{}, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var body quoteBody
	if err := json.Unmarshal(bodyBytes, &body); err != nil {
		return models.Quote{}, fmt.Errorf("failed to decode quote: %v, body: %s", err, string(bodyBytes))
	}
	if body.Data != nil {
		body = *body.Data
	}
	if body.DstAmount.IsNegative() {
		return models.Quote{}, fmt.Errorf("quote has negative destination amount %s", body.DstAmount)
	}
	if body.SecretsRequired < 0 {
		return models.Quote{}, fmt.Errorf("quote has negative secret count %d", body.SecretsRequired)
	}

	c.logger.Debug("Quote %d->%d %s %s: %s %s, %d secret(s)",
		req.SrcChainID, req.DstChainID, req.Amount, req.SrcToken, body.DstAmount, req.DstToken, body.SecretsRequired)

	return models.Quote{DstAmount: body.DstAmount, SecretsRequired: body.SecretsRequired}, nil
}

// Helper function to create an HTTP client with timeouts
func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
