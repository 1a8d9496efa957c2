// Package mollie is a minimal client for the Mollie v2 payments API.
package mollie

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
	"github.com/garyjia/invoicing/internal/domain/money"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultBaseURL is the production API endpoint
const DefaultBaseURL = "https://api.mollie.com/v2"

// Config holds gateway client configuration
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client implements port.PaymentGateway
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a new gateway client. An empty API key is a
// configuration error.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, entity.ErrGatewayNotConfigured
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}, nil
}

type amount struct {
	Currency string `json:"currency"`
	Value    string `json:"value"`
}

type createPaymentBody struct {
	Amount      amount            `json:"amount"`
	Description string            `json:"description"`
	RedirectURL string            `json:"redirectUrl"`
	WebhookURL  string            `json:"webhookUrl,omitempty"`
	Method      string            `json:"method,omitempty"`
	Issuer      string            `json:"issuer,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type paymentResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount amount `json:"amount"`
	Links  struct {
		Checkout struct {
			Href string `json:"href"`
		} `json:"checkout"`
	} `json:"_links"`
}

type methodResponse struct {
	Issuers []port.Issuer `json:"issuers"`
}

type errorResponse struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// CreatePayment opens a checkout at the gateway
func (c *Client) CreatePayment(ctx context.Context, req port.GatewayPaymentRequest) (*port.GatewayPayment, error) {
	body := createPaymentBody{
		Amount:      amount{Currency: req.Currency, Value: money.Format(req.Amount)},
		Description: req.Description,
		RedirectURL: req.RedirectURL,
		WebhookURL:  req.WebhookURL,
	}
	if req.Issuer != "" {
		body.Method = "ideal"
		body.Issuer = req.Issuer
	}
	if req.Reference != "" {
		body.Metadata = map[string]string{"reference": req.Reference}
	}

	var resp paymentResponse
	if err := c.do(ctx, http.MethodPost, "/payments", body, &resp); err != nil {
		return nil, err
	}

	c.logger.Info("Gateway payment created",
		zap.String("payment_id", resp.ID),
		zap.String("status", resp.Status),
		zap.String("reference", req.Reference))

	return toPayment(resp)
}

// GetPayment fetches the current state of a payment
func (c *Client) GetPayment(ctx context.Context, id string) (*port.GatewayPayment, error) {
	if id == "" {
		return nil, entity.NewValidationError("id", "payment id is required")
	}

	var resp paymentResponse
	if err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return toPayment(resp)
}

// ListIssuers returns the iDEAL issuing banks
func (c *Client) ListIssuers(ctx context.Context) ([]port.Issuer, error) {
	var resp methodResponse
	if err := c.do(ctx, http.MethodGet, "/methods/ideal?include=issuers", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Issuers, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "application/json")
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Error("Gateway request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %s %s: %v", entity.ErrGatewayUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", entity.ErrGatewayUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr errorResponse
		_ = json.Unmarshal(respBody, &apiErr)
		c.logger.Error("Gateway returned error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("detail", apiErr.Detail))
		return fmt.Errorf("%w: %s %s: status %d: %s", entity.ErrGatewayUnavailable, method, path, resp.StatusCode, apiErr.Detail)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", entity.ErrGatewayUnavailable, err)
	}
	return nil
}

func toPayment(resp paymentResponse) (*port.GatewayPayment, error) {
	value, err := decimal.NewFromString(resp.Amount.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid amount %q in gateway response", entity.ErrGatewayUnavailable, resp.Amount.Value)
	}
	return &port.GatewayPayment{
		ID:          resp.ID,
		Status:      entity.GatewayStatus(resp.Status),
		Amount:      value,
		Currency:    resp.Amount.Currency,
		CheckoutURL: resp.Links.Checkout.Href,
	}, nil
}

var _ port.PaymentGateway = (*Client)(nil)
