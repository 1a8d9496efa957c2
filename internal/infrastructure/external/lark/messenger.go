package lark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/garyjia/invoicing/internal/application/port"
	"github.com/garyjia/invoicing/internal/domain/entity"
	"github.com/garyjia/invoicing/internal/domain/money"
	"github.com/garyjia/invoicing/pkg/utils"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

// DocumentRenderer renders the invoice document attached to invoice mail
type DocumentRenderer interface {
	InvoiceDocument(w io.Writer, view *entity.InvoiceView) error
}

// Messenger delivers invoices by Lark mail-style post messages and raises
// operator alerts in a group chat.
type Messenger struct {
	sender         sender
	renderer       DocumentRenderer
	operatorChatID string
	logger         *zap.Logger
}

// NewMessenger creates a new Lark messenger. Invoice mail carries the
// document from renderer; a nil renderer sends the message body only.
func NewMessenger(client *SDKClient, cfg Config, renderer DocumentRenderer, logger *zap.Logger) *Messenger {
	return newMessenger(client, cfg.OperatorChatID, renderer, logger)
}

func newMessenger(s sender, operatorChatID string, renderer DocumentRenderer, logger *zap.Logger) *Messenger {
	return &Messenger{
		sender:         s,
		renderer:       renderer,
		operatorChatID: operatorChatID,
		logger:         logger,
	}
}

// SendInvoice implements port.InvoiceMailer
func (m *Messenger) SendInvoice(ctx context.Context, view *entity.InvoiceView, recipient string) error {
	if err := utils.ValidateEmail(recipient); err != nil {
		return entity.NewValidationError("recipient", err.Error())
	}
	if view == nil || view.Invoice == nil {
		return fmt.Errorf("invoice cannot be nil")
	}

	content, err := json.Marshal(invoicePost(view))
	if err != nil {
		return fmt.Errorf("failed to marshal invoice message: %w", err)
	}

	if _, err := m.sender.Send(ctx, "email", recipient, "post", string(content)); err != nil {
		return fmt.Errorf("failed to send invoice %s: %w", view.Invoice.SequenceNumber, err)
	}
	if m.renderer == nil {
		return nil
	}
	return m.sendDocument(ctx, view, recipient)
}

// sendDocument uploads the rendered invoice and sends it as a file message
func (m *Messenger) sendDocument(ctx context.Context, view *entity.InvoiceView, recipient string) error {
	number := view.Invoice.SequenceNumber

	var doc bytes.Buffer
	if err := m.renderer.InvoiceDocument(&doc, view); err != nil {
		return fmt.Errorf("failed to render invoice %s: %w", number, err)
	}

	fileKey, err := m.sender.Upload(ctx, number+".xlsx", larkim.FileTypeXls, &doc)
	if err != nil {
		return fmt.Errorf("failed to attach invoice %s: %w", number, err)
	}

	content, err := json.Marshal(map[string]string{"file_key": fileKey})
	if err != nil {
		return fmt.Errorf("failed to marshal attachment message: %w", err)
	}
	if _, err := m.sender.Send(ctx, "email", recipient, "file", string(content)); err != nil {
		return fmt.Errorf("failed to attach invoice %s: %w", number, err)
	}
	return nil
}

// NotifyOperator implements port.OperatorNotifier
func (m *Messenger) NotifyOperator(ctx context.Context, subject, body string) error {
	if m.operatorChatID == "" {
		m.logger.Warn("No operator chat configured, dropping alert", zap.String("subject", subject))
		return nil
	}

	content, err := json.Marshal(map[string]string{"text": subject + "\n" + body})
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	if _, err := m.sender.Send(ctx, "chat_id", m.operatorChatID, "text", string(content)); err != nil {
		return fmt.Errorf("failed to notify operator: %w", err)
	}
	return nil
}

type postElement struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
}

type postBody struct {
	Title   string          `json:"title"`
	Content [][]postElement `json:"content"`
}

// invoicePost renders the invoice as a Lark "post" rich-text message
func invoicePost(view *entity.InvoiceView) map[string]postBody {
	inv := view.Invoice
	text := func(format string, args ...interface{}) []postElement {
		return []postElement{{Tag: "text", Text: fmt.Sprintf(format, args...)}}
	}

	lines := [][]postElement{
		text("%s", inv.Description),
		text("Due: %s", inv.DateDue.Format("2006-01-02")),
	}
	for _, p := range view.Products {
		lines = append(lines, text("%d x %s @ %s (%d%% VAT)", p.Quantity, p.Name, money.Format(p.Price), p.VATPercentage))
	}
	if view.Totals != nil {
		lines = append(lines,
			text("Total excl. VAT: %s", money.Format(view.Totals.TotalPriceWithoutVAT)),
			text("VAT: %s", money.Format(view.Totals.TotalVAT)),
			text("Total: %s", money.Format(view.Totals.TotalPrice)),
		)
	}

	return map[string]postBody{
		"en_us": {
			Title:   fmt.Sprintf("Invoice %s: %s", inv.SequenceNumber, inv.Title),
			Content: lines,
		},
	}
}

// NoopMessenger logs instead of sending when Lark is disabled
type NoopMessenger struct {
	logger *zap.Logger
}

// NewNoopMessenger creates a messenger that only logs
func NewNoopMessenger(logger *zap.Logger) *NoopMessenger {
	return &NoopMessenger{logger: logger}
}

// SendInvoice implements port.InvoiceMailer
func (m *NoopMessenger) SendInvoice(ctx context.Context, view *entity.InvoiceView, recipient string) error {
	m.logger.Info("Invoice mail skipped, messaging disabled",
		zap.String("sequence_number", view.Invoice.SequenceNumber),
		zap.String("recipient", recipient))
	return nil
}

// NotifyOperator implements port.OperatorNotifier
func (m *NoopMessenger) NotifyOperator(ctx context.Context, subject, body string) error {
	m.logger.Warn("Operator alert", zap.String("subject", subject), zap.String("body", body))
	return nil
}

var (
	_ port.InvoiceMailer    = (*Messenger)(nil)
	_ port.OperatorNotifier = (*Messenger)(nil)
	_ port.InvoiceMailer    = (*NoopMessenger)(nil)
	_ port.OperatorNotifier = (*NoopMessenger)(nil)
)
