package mollie

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/garyjia/invoicing/internal/application/port"
	"github.com/garyjia/invoicing/internal/domain/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{APIKey: "test_key", BaseURL: srv.URL, Timeout: time.Second}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(Config{}, zap.NewNop())
	assert.ErrorIs(t, err, entity.ErrConfiguration)
}

func TestClient_CreatePayment(t *testing.T) {
	var got createPaymentBody
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments", r.URL.Path)
		assert.Equal(t, "Bearer test_key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{
			"id": "tr_WDqYK6vllg",
			"status": "open",
			"amount": {"currency": "EUR", "value": "24.20"},
			"_links": {"checkout": {"href": "https://www.mollie.com/checkout/tr_WDqYK6vllg"}}
		}`))
	})

	payment, err := c.CreatePayment(context.Background(), port.GatewayPaymentRequest{
		Amount:      decimal.RequireFromString("24.2"),
		Currency:    "EUR",
		Description: "Invoice test-2024-001",
		Reference:   "test-2024-001",
		Issuer:      "ideal_ABNANL2A",
		RedirectURL: "https://invoicing.example/checkout/return/1/s",
		WebhookURL:  "https://invoicing.example/webhook/mollie/1/s",
	})
	require.NoError(t, err)

	assert.Equal(t, "24.20", got.Amount.Value)
	assert.Equal(t, "ideal", got.Method)
	assert.Equal(t, "test-2024-001", got.Metadata["reference"])
	assert.Equal(t, "tr_WDqYK6vllg", payment.ID)
	assert.Equal(t, entity.GatewayStatusOpen, payment.Status)
	assert.True(t, decimal.RequireFromString("24.20").Equal(payment.Amount))
	assert.Equal(t, "https://www.mollie.com/checkout/tr_WDqYK6vllg", payment.CheckoutURL)
}

func TestClient_GetPayment(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/tr_1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id": "tr_1", "status": "paid", "amount": {"currency": "EUR", "value": "10.00"}}`))
	})

	payment, err := c.GetPayment(context.Background(), "tr_1")
	require.NoError(t, err)
	assert.Equal(t, entity.GatewayStatusPaid, payment.Status)

	_, err = c.GetPayment(context.Background(), "")
	assert.ErrorIs(t, err, entity.ErrValidation)
}

func TestClient_ErrorStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"status": 422, "title": "Unprocessable Entity", "detail": "The amount is lower than the minimum"}`))
	})

	_, err := c.GetPayment(context.Background(), "tr_1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrExternal))
	assert.Contains(t, err.Error(), "lower than the minimum")
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, zap.NewNop())
	require.NoError(t, err)

	_, err = c.ListIssuers(context.Background())
	assert.ErrorIs(t, err, entity.ErrGatewayUnavailable)
}

func TestClient_ListIssuers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/methods/ideal", r.URL.Path)
		assert.Equal(t, "issuers", r.URL.Query().Get("include"))
		_, _ = w.Write([]byte(`{"id": "ideal", "issuers": [{"id": "ideal_ABNANL2A", "name": "ABN AMRO"}, {"id": "ideal_INGBNL2A", "name": "ING"}]}`))
	})

	issuers, err := c.ListIssuers(context.Background())
	require.NoError(t, err)
	require.Len(t, issuers, 2)
	assert.Equal(t, "ING", issuers[1].Name)
}
