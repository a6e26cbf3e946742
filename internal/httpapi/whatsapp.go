package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/HendryAvila/recordpilot/internal/logging"
	"github.com/HendryAvila/recordpilot/internal/whatsapp"
)

const maxWebhookBody = 1 << 20

// Outbox sends WhatsApp text messages.
type Outbox interface {
	Send(ctx context.Context, to, body, replyTo string) (*whatsapp.SendResult, error)
}

// Inbox accepts inbound WhatsApp messages for processing.
type Inbox interface {
	Enqueue(ctx context.Context, msgs []whatsapp.Inbound) (int, error)
}

// WhatsAppConfig carries the webhook secrets and the default region.
type WhatsAppConfig struct {
	VerifyToken string
	AppSecret   string // empty skips signature checks
	Region      string
}

// WhatsAppHandler serves the Cloud API webhook and the manual send endpoint.
type WhatsAppHandler struct {
	out Outbox
	in  Inbox
	cfg WhatsAppConfig
	log *logging.Logger
}

func NewWhatsAppHandler(out Outbox, in Inbox, cfg WhatsAppConfig, log *logging.Logger) *WhatsAppHandler {
	if log == nil {
		log = logging.Nop()
	}
	return &WhatsAppHandler{out: out, in: in, cfg: cfg, log: log}
}

// SendRequest is the body of POST /api/whatsapp/send.
type SendRequest struct {
	To      string `json:"to" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// Send delivers a message to any number.
func (h *WhatsAppHandler) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	to, err := whatsapp.Normalize(req.To, h.cfg.Region)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_phone", err)
		return
	}
	res, err := h.out.Send(c.Request.Context(), to, req.Message, "")
	if err != nil {
		_ = c.Error(err)
		RespondError(c, http.StatusBadGateway, "send_failed", err)
		return
	}
	RespondOK(c, res)
}

// Verify answers the webhook subscription handshake.
func (h *WhatsAppHandler) Verify(c *gin.Context) {
	challenge, ok := whatsapp.Verify(
		c.Query("hub.mode"),
		c.Query("hub.verify_token"),
		c.Query("hub.challenge"),
		h.cfg.VerifyToken,
	)
	if !ok {
		h.log.Warn("Webhook verification failed", "mode", c.Query("hub.mode"))
		RespondError(c, http.StatusForbidden, "forbidden", errors.New("forbidden"))
		return
	}
	h.log.Info("Webhook verified")
	c.String(http.StatusOK, challenge)
}

// Receive accepts a webhook delivery. Messages are answered in the
// background; the Cloud API only needs a quick 200.
func (h *WhatsAppHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if h.cfg.AppSecret != "" && !whatsapp.VerifySignature(body, c.GetHeader("X-Hub-Signature-256"), h.cfg.AppSecret) {
		RespondError(c, http.StatusUnauthorized, "bad_signature", errors.New("invalid webhook signature"))
		return
	}

	var hook whatsapp.Webhook
	if err := json.Unmarshal(body, &hook); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	msgs := hook.Messages()
	if len(msgs) > 0 {
		n, err := h.in.Enqueue(c.Request.Context(), msgs)
		if err != nil {
			_ = c.Error(err)
			RespondError(c, http.StatusServiceUnavailable, "busy", err)
			return
		}
		h.log.Info("Webhook received", "messages", len(msgs), "accepted", n)
	}
	RespondOK(c, gin.H{"status": "success"})
}
