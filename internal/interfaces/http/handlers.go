package http

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/invoicing/internal/application/port"
	"github.com/garyjia/invoicing/internal/application/service"
	"github.com/garyjia/invoicing/internal/domain/entity"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Response is the standard API response envelope
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Field   string      `json:"field,omitempty"`
}

// Handlers contains HTTP handlers for the API
type Handlers struct {
	services      Services
	maxUploadSize int64
	logger        Logger
}

// NewHandlers creates new HTTP handlers
func NewHandlers(services Services, maxUploadSize int64, logger Logger) *Handlers {
	return &Handlers{
		services:      services,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
		},
	})
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// pathID parses a positive integer path parameter
func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, entity.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, entity.NewValidationError(name, "must be a non-negative integer")
	}
	return n, nil
}

// ListInvoices handles GET /api/v1/invoices
func (h *Handlers) ListInvoices(c *gin.Context) {
	filter := port.InvoiceFilter{Status: entity.InvoiceStatus(c.Query("status"))}
	if filter.Status != "" && !filter.Status.IsValid() {
		h.writeError(c, entity.NewValidationError("status", "unknown invoice status"))
		return
	}

	var err error
	if raw := c.Query("client_id"); raw != "" {
		if filter.ClientID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			h.writeError(c, entity.NewValidationError("client_id", "must be an integer"))
			return
		}
	}
	if filter.Limit, err = queryInt(c, "limit"); err != nil {
		h.writeError(c, err)
		return
	}
	if filter.Offset, err = queryInt(c, "offset"); err != nil {
		h.writeError(c, err)
		return
	}

	items, err := h.services.Invoices.List(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// CreateInvoice handles POST /api/v1/invoices
func (h *Handlers) CreateInvoice(c *gin.Context) {
	var req service.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, entity.NewValidationError("body", err.Error()))
		return
	}

	view, err := h.services.Invoices.Create(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, view)
}

// GetInvoice handles GET /api/v1/invoices/:id
func (h *Handlers) GetInvoice(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}

	view, err := h.services.Invoices.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, view)
}

// invoiceAction adapts a single-id state transition to a handler
func (h *Handlers) invoiceAction(action func(*gin.Context, int64) (*entity.Invoice, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := pathID(c, "id")
		if err != nil {
			h.writeError(c, err)
			return
		}

		invoice, err := action(c, id)
		if err != nil {
			h.writeError(c, err)
			return
		}
		ok(c, http.StatusOK, invoice)
	}
}

// MarkSent handles POST /api/v1/invoices/:id/send
func (h *Handlers) MarkSent(c *gin.Context) {
	h.invoiceAction(func(c *gin.Context, id int64) (*entity.Invoice, error) {
		return h.services.Invoices.MarkSent(c.Request.Context(), id)
	})(c)
}

// SetPayed handles POST /api/v1/invoices/:id/pay
func (h *Handlers) SetPayed(c *gin.Context) {
	h.invoiceAction(func(c *gin.Context, id int64) (*entity.Invoice, error) {
		return h.services.Invoices.SetPayed(c.Request.Context(), id)
	})(c)
}

// ConvertProForma handles POST /api/v1/invoices/:id/convert
func (h *Handlers) ConvertProForma(c *gin.Context) {
	h.invoiceAction(func(c *gin.Context, id int64) (*entity.Invoice, error) {
		return h.services.Invoices.ProFormaToRealInvoice(c.Request.Context(), id)
	})(c)
}

// CancelProForma handles POST /api/v1/invoices/:id/cancel
func (h *Handlers) CancelProForma(c *gin.Context) {
	h.invoiceAction(func(c *gin.Context, id int64) (*entity.Invoice, error) {
		return h.services.Invoices.CancelProFormaInvoice(c.Request.Context(), id)
	})(c)
}

// ListPayments handles GET /api/v1/invoices/:id/payments
func (h *Handlers) ListPayments(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}

	payments, err := h.services.Ledger.Payments(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, payments)
}

// AddPaymentRequest is the body of POST /api/v1/invoices/:id/payments
type AddPaymentRequest struct {
	Platform string          `json:"platform"`
	Amount   decimal.Decimal `json:"amount"`
	// Apply marks the invoice paid once it is settled
	Apply bool `json:"apply"`
}

// AddPayment handles POST /api/v1/invoices/:id/payments
func (h *Handlers) AddPayment(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}

	var req AddPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, entity.NewValidationError("body", err.Error()))
		return
	}

	ctx := c.Request.Context()
	if req.Apply {
		result, err := h.services.Ledger.ApplyPayment(ctx, id, req.Platform, req.Amount)
		if err != nil {
			h.writeError(c, err)
			return
		}
		ok(c, http.StatusCreated, result)
		return
	}

	payment, err := h.services.Ledger.AddPayment(ctx, id, req.Platform, req.Amount)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, payment)
}

// Checkout handles POST /api/v1/invoices/:id/checkout
func (h *Handlers) Checkout(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}

	var req service.CreateTransactionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.writeError(c, entity.NewValidationError("body", err.Error()))
			return
		}
	}
	req.InvoiceID = id

	result, err := h.services.Gateway.CreateTransaction(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, result)
}

// MollieWebhook handles POST /webhook/mollie/:transaction_id/:secret.
// The gateway only needs an acknowledgement, so the reply is always ok.
func (h *Handlers) MollieWebhook(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("transaction_id"), 10, 64)
	if err != nil {
		h.logger.Error("Webhook with malformed transaction id", "transaction_id", c.Param("transaction_id"))
		c.String(http.StatusOK, "ok")
		return
	}

	h.services.Gateway.HandleWebhook(c.Request.Context(), id, c.Param("secret"), c.PostForm("id"))
	c.String(http.StatusOK, "ok")
}

// CheckoutReturn handles GET /checkout/return/:transaction_id/:secret
func (h *Handlers) CheckoutReturn(c *gin.Context) {
	id, err := pathID(c, "transaction_id")
	if err != nil {
		h.writeError(c, err)
		return
	}

	target, err := h.services.Gateway.Redirect(c.Request.Context(), id, c.Param("secret"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Redirect(http.StatusFound, target)
}

// statementFiles reads the multipart "files" field
func (h *Handlers) statementFiles(c *gin.Context) ([]service.StatementFile, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, entity.NewValidationError("files", "multipart form required")
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		return nil, entity.NewValidationError("files", "at least one statement file is required")
	}

	files := make([]service.StatementFile, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > h.maxUploadSize {
			return nil, entity.NewValidationError("files", fmt.Sprintf("%s exceeds the upload limit", fh.Filename))
		}

		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read upload %s: %w", fh.Filename, err)
		}

		files = append(files, service.StatementFile{Name: fh.Filename, Content: content})
	}
	return files, nil
}

// Reconcile handles POST /api/v1/reconciliations. With ?format=xlsx the
// result is returned as a spreadsheet.
func (h *Handlers) Reconcile(c *gin.Context) {
	files, err := h.statementFiles(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	result, err := h.services.Reconcile.Reconcile(c.Request.Context(), files)
	if err != nil {
		// Payments booked before the failure are reported so the operator
		// does not upload them again.
		if result != nil {
			h.writeErrorWithData(c, err, result)
			return
		}
		h.writeError(c, err)
		return
	}

	if c.Query("format") == "xlsx" && h.services.Reports != nil {
		c.Header("Content-Disposition", `attachment; filename="reconciliation.xlsx"`)
		c.Header("Content-Type", xlsxContentType)
		c.Status(http.StatusOK)
		if err := h.services.Reports.ReconciliationReport(c.Writer, result); err != nil {
			h.logger.Error("Failed to write reconciliation report", "error", err)
		}
		return
	}

	ok(c, http.StatusOK, result)
}

// PreviewReconciliation handles POST /api/v1/reconciliations/preview.
// Nothing is booked.
func (h *Handlers) PreviewReconciliation(c *gin.Context) {
	files, err := h.statementFiles(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	candidates, err := h.services.Reconcile.Parse(c.Request.Context(), files)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, candidates)
}

// ListClients handles GET /api/v1/clients
func (h *Handlers) ListClients(c *gin.Context) {
	clients, err := h.services.Clients.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, clients)
}

// ListIssuers handles GET /api/v1/issuers
func (h *Handlers) ListIssuers(c *gin.Context) {
	issuers, err := h.services.Gateway.ListIssuers(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, issuers)
}

// ListPlatforms handles GET /api/v1/platforms
func (h *Handlers) ListPlatforms(c *gin.Context) {
	platforms, err := h.services.Ledger.Platforms(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	ok(c, http.StatusOK, platforms)
}
