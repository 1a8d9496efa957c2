// Package http provides HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to application service calls.
package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/invoicing/internal/application/port"
	"github.com/garyjia/invoicing/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ReportWriter renders a reconciliation result as a spreadsheet
type ReportWriter interface {
	ReconciliationReport(w io.Writer, result *service.ReconcileResult) error
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host          string
	Port          int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	MaxUploadSize int64
	Auth          AuthConfig
}

// Services are the application services exposed over HTTP
type Services struct {
	Invoices  service.InvoiceService
	Ledger    service.LedgerService
	Reconcile service.ReconcileService
	Gateway   service.GatewayService
	Clients   port.ClientDirectory
	Reports   ReportWriter
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger) *Server {
	if config.MaxUploadSize <= 0 {
		config.MaxUploadSize = 10 << 20
	}

	router := gin.New()
	router.MaxMultipartMemory = config.MaxUploadSize

	server := &Server{
		config:   config,
		router:   router,
		services: services,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(clientCacheMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString(requestIDKey),
		)
	}
}

func (s *Server) setupRoutes() {
	h := NewHandlers(s.services, s.config.MaxUploadSize, s.logger)

	s.router.GET("/health", h.HealthCheck)

	// Gateway callbacks authenticate with the per-transaction secret
	s.router.POST("/webhook/mollie/:transaction_id/:secret", h.MollieWebhook)
	s.router.GET("/checkout/return/:transaction_id/:secret", h.CheckoutReturn)

	api := s.router.Group("/api/v1")
	api.Use(JWTAuthMiddleware(s.config.Auth))
	{
		api.GET("/invoices", h.ListInvoices)
		api.POST("/invoices", h.CreateInvoice)
		api.GET("/invoices/:id", h.GetInvoice)
		api.POST("/invoices/:id/send", h.MarkSent)
		api.POST("/invoices/:id/pay", h.SetPayed)
		api.POST("/invoices/:id/convert", h.ConvertProForma)
		api.POST("/invoices/:id/cancel", h.CancelProForma)
		api.GET("/invoices/:id/payments", h.ListPayments)
		api.POST("/invoices/:id/payments", h.AddPayment)
		api.POST("/invoices/:id/checkout", h.Checkout)

		api.POST("/reconciliations", h.Reconcile)
		api.POST("/reconciliations/preview", h.PreviewReconciliation)

		api.GET("/clients", h.ListClients)
		api.GET("/issuers", h.ListIssuers)
		api.GET("/platforms", h.ListPlatforms)
	}
}

// Start starts the HTTP server and blocks until ctx is done
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
