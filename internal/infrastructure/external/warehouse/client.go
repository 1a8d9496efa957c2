// Package warehouse talks to the external stock administration.
package warehouse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/garyjia/invoicing/internal/application/port"
	"github.com/garyjia/invoicing/internal/domain/entity"
	"go.uber.org/zap"
)

// Config holds warehouse client configuration
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client implements port.StockAdjuster over HTTP
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a new warehouse client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

type bulkStockRequest struct {
	APIKey    string           `json:"apikey"`
	Products  []port.StockLine `json:"products"`
	Reference string           `json:"reference"`
}

// AdjustStock changes the stock of every line. Positive quantities take
// stock out, negative quantities return it.
func (c *Client) AdjustStock(ctx context.Context, reference string, lines []port.StockLine) error {
	if len(lines) == 0 {
		return nil
	}

	payload, err := json.Marshal(bulkStockRequest{APIKey: c.apiKey, Products: lines, Reference: reference})
	if err != nil {
		return fmt.Errorf("failed to marshal stock request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/products/bulk_stock", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if _, err := c.send(req); err != nil {
		c.logger.Error("Stock adjustment failed",
			zap.String("reference", reference),
			zap.Int("lines", len(lines)),
			zap.Error(err))
		return err
	}

	c.logger.Info("Stock adjusted", zap.String("reference", reference), zap.Int("lines", len(lines)))
	return nil
}

// ListProducts returns the warehouse catalogue
func (c *Client) ListProducts(ctx context.Context) ([]port.WarehouseProduct, error) {
	endpoint := c.baseURL + "/products?apikey=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	body, err := c.send(req)
	if err != nil {
		return nil, err
	}

	var products []port.WarehouseProduct
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, fmt.Errorf("%w: failed to decode products: %v", entity.ErrWarehouseUnavailable, err)
	}
	return products, nil
}

func (c *Client) send(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrWarehouseUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", entity.ErrWarehouseUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", entity.ErrWarehouseUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// NoopAdjuster is used when no warehouse is configured
type NoopAdjuster struct {
	logger *zap.Logger
}

// NewNoopAdjuster creates a stock adjuster that only logs
func NewNoopAdjuster(logger *zap.Logger) *NoopAdjuster {
	return &NoopAdjuster{logger: logger}
}

// AdjustStock implements port.StockAdjuster
func (a *NoopAdjuster) AdjustStock(ctx context.Context, reference string, lines []port.StockLine) error {
	a.logger.Debug("Stock adjustment skipped, warehouse disabled", zap.String("reference", reference))
	return nil
}

// ListProducts implements port.StockAdjuster
func (a *NoopAdjuster) ListProducts(ctx context.Context) ([]port.WarehouseProduct, error) {
	return nil, nil
}

var (
	_ port.StockAdjuster = (*Client)(nil)
	_ port.StockAdjuster = (*NoopAdjuster)(nil)
)
