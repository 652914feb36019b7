package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"greybackend/internal/credential"
	"greybackend/internal/model"
	"greybackend/internal/transport"
	"greybackend/pkg/circuitbreaker"
	"greybackend/pkg/logger"
	"greybackend/pkg/metrics"
	"greybackend/pkg/otel"
)

// DefaultRecentLimit is the page size of the sent-mail listing.
const DefaultRecentLimit = 50

// TransportProvider hands out a ready transport per send.
// *credential.Manager satisfies it.
type TransportProvider interface {
	GetTransport(ctx context.Context) (transport.Transport, error)
	Sender(ctx context.Context, fallback string) string
}

// AuditLog is the append-only delivery record store.
type AuditLog interface {
	Insert(ctx context.Context, rec *model.DeliveryRecord) error
	ListRecent(ctx context.Context, limit int) ([]model.DeliveryRecord, error)
}

// EventPublisher receives delivery events. *mq.Publisher satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type Options struct {
	SenderName    string
	DefaultSender string
	MockDelay     time.Duration
	ErrorCap      int
	// Events is optional; nil disables delivery events.
	Events EventPublisher
}

// Receipt is returned for every successful send, live or mock.
type Receipt struct {
	ID         string   `json:"id"`
	Recipients []string `json:"recipients"`
	MessageID  string   `json:"messageId,omitempty"`
	Mock       bool     `json:"mock"`
	Message    string   `json:"message"`
}

// SendError is returned when a send was attempted and failed. Detail is the
// capped message that was also written to the audit log.
type SendError struct {
	ReceiptID string
	Detail    string
	Err       error
}

func (e *SendError) Error() string { return "Failed to send email: " + e.Detail }

func (e *SendError) Unwrap() error { return e.Err }

type Dispatcher struct {
	provider TransportProvider
	audit    AuditLog
	opts     Options
	breaker  *circuitbreaker.CircuitBreaker
	logger   *zap.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(provider TransportProvider, audit AuditLog, opts Options, log *zap.Logger) *Dispatcher {
	if opts.ErrorCap <= 0 {
		opts.ErrorCap = 500
	}
	return &Dispatcher{
		provider: provider,
		audit:    audit,
		opts:     opts,
		// event publishing never affects the send result; skipped while open
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
			FailureThreshold:    3,
			SuccessThreshold:    1,
			Timeout:             30 * time.Second,
			HalfOpenMaxRequests: 1,
		}),
		logger: logger.OrNop(log),
		now:    time.Now,
		sleep:  sleepContext,
	}
}

const (
	modeLive = "live"
	modeMock = "mock"
)

// Send validates, renders and dispatches req. With no credential configured
// it takes the mock path and reports success without contacting anything.
// Every attempt past validation writes exactly one delivery record.
func (d *Dispatcher) Send(ctx context.Context, req SendRequest) (receipt *Receipt, err error) {
	ctx, span := otel.StartSpan(ctx, "mail.send")
	defer func() {
		if receipt != nil {
			span.SetAttributes(attribute.Bool("mail.mock", receipt.Mock))
		}
		otel.End(span, err)
	}()
	return d.send(ctx, req)
}

func (d *Dispatcher) send(ctx context.Context, req SendRequest) (*Receipt, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	recipients := ParseRecipients(req.To)
	if len(recipients) == 0 {
		return nil, &ValidationError{Fields: []string{"to"}, Message: "At least one recipient is required"}
	}

	receiptID := uuid.NewString()
	log := logger.WithTrace(ctx, d.logger).With(
		zap.String("receipt_id", receiptID),
		zap.Int("recipients", len(recipients)))

	msg := MailMessage{
		FromName:    d.opts.SenderName,
		To:          recipients,
		Subject:     req.Subject,
		HTML:        RenderHTML(req.Subject, req.Body, d.now().Year()),
		Attachments: NormalizeAttachments(req.Attachments),
	}

	tr, err := d.provider.GetTransport(ctx)
	if errors.Is(err, credential.ErrUnavailable) {
		return d.sendMock(ctx, log, receiptID, req, msg)
	}
	if err != nil {
		return nil, d.fail(ctx, log, modeLive, receiptID, req, recipients, err)
	}

	msg.From = tr.Account()
	raw, err := Compose(msg)
	if err != nil {
		return nil, d.fail(ctx, log, modeLive, receiptID, req, recipients, err)
	}
	messageID, err := tr.Send(ctx, transport.Envelope{From: msg.From, To: recipients, Raw: raw})
	if err != nil {
		return nil, d.fail(ctx, log, modeLive, receiptID, req, recipients, err)
	}

	log.Info("email sent", zap.String("message_id", messageID), zap.String("from", msg.From))
	metrics.IncrementEmailDelivery(string(model.DeliverySent), modeLive)
	d.record(ctx, log, req, model.DeliverySent, nil)

	receipt := &Receipt{
		ID:         receiptID,
		Recipients: recipients,
		MessageID:  messageID,
		Message:    fmt.Sprintf("Email sent successfully to %d recipient(s)", len(recipients)),
	}
	d.publish(ctx, log, "email.sent", deliveryEvent(receipt, req.Subject, model.DeliverySent, "", d.now()))
	return receipt, nil
}

func (d *Dispatcher) sendMock(ctx context.Context, log *zap.Logger, receiptID string, req SendRequest, msg MailMessage) (*Receipt, error) {
	msg.From = d.provider.Sender(ctx, d.opts.DefaultSender)
	log.Info("mock email (no credentials)",
		zap.String("from", msg.From),
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("attachments", len(msg.Attachments)))

	if err := d.sleep(ctx, d.opts.MockDelay); err != nil {
		return nil, d.fail(ctx, log, modeMock, receiptID, req, msg.To, err)
	}

	metrics.IncrementEmailDelivery(string(model.DeliverySent), modeMock)
	d.record(ctx, log, req, model.DeliverySent, nil)

	receipt := &Receipt{
		ID:         receiptID,
		Recipients: msg.To,
		Mock:       true,
		Message:    fmt.Sprintf("Email sent successfully to %d recipient(s)", len(msg.To)),
	}
	d.publish(ctx, log, "email.sent", deliveryEvent(receipt, req.Subject, model.DeliverySent, "", d.now()))
	return receipt, nil
}

// fail audits the failed attempt and returns the error for the caller. The
// audit write can fail without changing what is returned. mode labels the
// delivery metric with the path the attempt took.
func (d *Dispatcher) fail(ctx context.Context, log *zap.Logger, mode, receiptID string, req SendRequest, recipients []string, cause error) error {
	detail := capMessage(errorMessage(cause), d.opts.ErrorCap)
	log.Error("send email failed", zap.Error(cause))
	metrics.IncrementEmailDelivery(string(model.DeliveryFailed), mode)

	d.record(ctx, log, req, model.DeliveryFailed, &detail)

	receipt := &Receipt{ID: receiptID, Recipients: recipients}
	d.publish(ctx, log, "email.failed", deliveryEvent(receipt, req.Subject, model.DeliveryFailed, detail, d.now()))
	return &SendError{ReceiptID: receiptID, Detail: detail, Err: cause}
}

func (d *Dispatcher) record(ctx context.Context, log *zap.Logger, req SendRequest, status model.DeliveryStatus, errMsg *string) {
	rec := &model.DeliveryRecord{
		SenderID:     req.SenderID,
		Recipients:   req.To,
		Subject:      req.Subject,
		Body:         req.Body,
		Attachments:  auditJSON(req.Attachments),
		Status:       status,
		ErrorMessage: errMsg,
	}
	// audit writes complete even after the request is cancelled
	if err := d.audit.Insert(context.WithoutCancel(ctx), rec); err != nil {
		metrics.IncrementAuditWriteFailure()
		log.Error("failed to save email to audit log", zap.String("status", string(status)), zap.Error(err))
	}
}

// Recent lists the latest delivery records, newest first.
func (d *Dispatcher) Recent(ctx context.Context, limit int) ([]model.DeliveryRecord, error) {
	if limit <= 0 || limit > DefaultRecentLimit {
		limit = DefaultRecentLimit
	}
	recs, err := d.audit.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list sent emails: %w", err)
	}
	return recs, nil
}

func errorMessage(err error) string {
	if err == nil || err.Error() == "" {
		return "Unknown error occurred"
	}
	return err.Error()
}

// capMessage keeps at most limit runes, marking the cut with "...".
func capMessage(msg string, limit int) string {
	if utf8.RuneCountInString(msg) <= limit {
		return msg
	}
	runes := []rune(msg)
	return string(runes[:limit]) + "..."
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
