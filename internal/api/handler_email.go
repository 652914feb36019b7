package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"greybackend/internal/credential"
	"greybackend/internal/mailer"
	"greybackend/internal/model"
	"greybackend/pkg/logger"
)

const idempotencyHeader = "Idempotency-Key"

type MailSender interface {
	Send(ctx context.Context, req mailer.SendRequest) (*mailer.Receipt, error)
	Recent(ctx context.Context, limit int) ([]model.DeliveryRecord, error)
}

type CredentialChecker interface {
	Check(ctx context.Context) (*credential.Status, error)
}

// Deduper drops repeated Idempotency-Key values. *util.Deduper satisfies it.
type Deduper interface {
	AcquireOnce(ctx context.Context, scope, key string) bool
	Release(ctx context.Context, scope, key string)
}

type EmailHandler struct {
	mail    MailSender
	creds   CredentialChecker
	deduper Deduper
	logger  *zap.Logger
}

// NewEmailHandler builds the email routes. deduper may be nil.
func NewEmailHandler(mail MailSender, creds CredentialChecker, deduper Deduper, log *zap.Logger) *EmailHandler {
	return &EmailHandler{mail: mail, creds: creds, deduper: deduper, logger: logger.OrNop(log)}
}

// Send handles POST /api/email/send
func (h *EmailHandler) Send(c *gin.Context) {
	var req mailer.SendRequest
	if !bindJSON(c, &req) {
		return
	}
	var senderID int64
	if uid, ok := c.Get(ctxUserID); ok {
		senderID = int64(uid.(int))
		req.SenderID = &senderID
	}

	ctx := c.Request.Context()
	key := c.GetHeader(idempotencyHeader)
	// keys are only unique per caller
	scope := fmt.Sprintf("email.send:%d", senderID)
	if key != "" && h.deduper != nil {
		if !h.deduper.AcquireOnce(ctx, scope, key) {
			fail(c, http.StatusConflict, "Duplicate request")
			return
		}
	}

	receipt, err := h.mail.Send(ctx, req)
	if err != nil {
		if key != "" && h.deduper != nil {
			h.deduper.Release(ctx, scope, key)
		}
		var ve *mailer.ValidationError
		if errors.As(err, &ve) {
			fail(c, http.StatusBadRequest, ve.Error())
			return
		}
		logger.WithTrace(ctx, h.logger).Error("send email error", zap.Error(err))
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": receipt.Message, "receipt": receipt})
}

// TestCredentials handles GET /api/email/test-credentials
func (h *EmailHandler) TestCredentials(c *gin.Context) {
	status, err := h.creds.Check(c.Request.Context())
	if err != nil {
		if errors.Is(err, credential.ErrUnavailable) {
			fail(c, http.StatusInternalServerError, "Gmail credentials not found")
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Credential test failed",
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, status)
}

// Sent handles GET /api/email/sent
func (h *EmailHandler) Sent(c *gin.Context) {
	emails, err := h.mail.Recent(c.Request.Context(), mailer.DefaultRecentLimit)
	if err != nil {
		logger.WithTrace(c.Request.Context(), h.logger).Error("get sent emails error", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to fetch sent emails")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "emails": emails})
}
