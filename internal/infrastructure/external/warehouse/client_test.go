package warehouse

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/garyjia/invoicing/internal/application/port"
	"github.com/garyjia/invoicing/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClient_AdjustStock(t *testing.T) {
	var got bulkStockRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/products/bulk_stock", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "wh-key"}, zap.NewNop())
	err := c.AdjustStock(context.Background(), "test-2024-001", []port.StockLine{
		{SKU: "W-1", Quantity: 2},
		{Name: "Manual", Quantity: -1},
	})
	require.NoError(t, err)

	assert.Equal(t, "wh-key", got.APIKey)
	assert.Equal(t, "test-2024-001", got.Reference)
	require.Len(t, got.Products, 2)
	assert.Equal(t, -1, got.Products[1].Quantity)
}

func TestClient_AdjustStockNothingToDo(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, zap.NewNop())
	assert.NoError(t, c.AdjustStock(context.Background(), "x", nil))
}

func TestClient_AdjustStockFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown sku", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, zap.NewNop())
	err := c.AdjustStock(context.Background(), "ref", []port.StockLine{{SKU: "nope", Quantity: 1}})
	assert.ErrorIs(t, err, entity.ErrExternal)
	assert.Contains(t, err.Error(), "unknown sku")
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, zap.NewNop())
	err := c.AdjustStock(context.Background(), "ref", []port.StockLine{{SKU: "W-1", Quantity: 1}})
	assert.ErrorIs(t, err, entity.ErrWarehouseUnavailable)
}

func TestClient_ListProducts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "wh-key", r.URL.Query().Get("apikey"))
		_, _ = w.Write([]byte(`[{"sku": "W-1", "name": "Widget", "stock": 12, "price": "10.00"}]`))
	}))
	defer srv.Close()

	products, err := NewClient(Config{BaseURL: srv.URL, APIKey: "wh-key"}, zap.NewNop()).ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, 12, products[0].Stock)
	assert.Equal(t, "10", products[0].Price.String())
}
