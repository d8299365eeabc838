package quoteclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchQuote(t *testing.T) {
	tests := []struct {
		name            string
		status          int
		body            string
		expectErr       bool
		expectedAmount  string
		expectedSecrets int
	}{
		{
			name:            "flat response with string amount",
			status:          http.StatusOK,
			body:            `{"dst_amount": "99.5", "secrets_required": 2}`,
			expectedAmount:  "99.5",
			expectedSecrets: 2,
		},
		{
			name:            "numeric amount wrapped in data",
			status:          http.StatusOK,
			body:            `{"data": {"dst_amount": 42, "secrets_required": 1}}`,
			expectedAmount:  "42",
			expectedSecrets: 1,
		},
		{
			name:      "server error",
			status:    http.StatusInternalServerError,
			body:      `{"error": "boom"}`,
			expectErr: true,
		},
		{
			name:      "malformed body",
			status:    http.StatusOK,
			body:      `not json`,
			expectErr: true,
		},
		{
			name:      "negative amount",
			status:    http.StatusOK,
			body:      `{"dst_amount": "-1"}`,
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotQuery map[string]string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/quote", r.URL.Path)
				gotQuery = map[string]string{
					"src_chain": r.URL.Query().Get("src_chain"),
					"dst_chain": r.URL.Query().Get("dst_chain"),
					"src_token": r.URL.Query().Get("src_token"),
					"dst_token": r.URL.Query().Get("dst_token"),
					"amount":    r.URL.Query().Get("amount"),
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := New(server.URL, nil)
			quote, err := client.FetchQuote(context.Background(), Request{
				SrcChainID: 1,
				DstChainID: 8453,
				SrcToken:   "USDC",
				DstToken:   "USDT",
				Amount:     decimal.RequireFromString("100.25"),
			})

			assert.Equal(t, map[string]string{
				"src_chain": "1",
				"dst_chain": "8453",
				"src_token": "USDC",
				"dst_token": "USDT",
				"amount":    "100.25",
			}, gotQuery)

			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.expectedAmount).Equal(quote.DstAmount), quote.DstAmount.String())
			assert.Equal(t, tt.expectedSecrets, quote.SecretsRequired)
			assert.Empty(t, quote.AuctionOrderID)
		})
	}
}

func TestFetchQuoteUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	_, err := New(server.URL, nil).FetchQuote(context.Background(), Request{Amount: decimal.NewFromInt(1)})
	assert.Error(t, err)
}
