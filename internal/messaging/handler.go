package messaging

import (
	"net/http"

	"fridgeops_backend/platform/config"
	"fridgeops_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// Handler terminates the WhatsApp Cloud API webhook.
type Handler struct {
	service *Service
	cfg     config.WhatsAppConfig
	log     *logger.Logger
}

// NewHandler creates a webhook handler.
func NewHandler(service *Service, cfg config.WhatsAppConfig, log *logger.Logger) *Handler {
	return &Handler{service: service, cfg: cfg, log: log}
}

// HandleVerify answers Meta's webhook verification handshake.
// GET /webhook/whatsapp?hub.mode=subscribe&hub.verify_token=...&hub.challenge=...
func (h *Handler) HandleVerify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == h.cfg.GetWhatsAppVerifyToken() {
		h.log.Info("webhook verified")
		c.String(http.StatusOK, challenge)
		return
	}
	c.String(http.StatusForbidden, "Forbidden")
}

// HandleInbound receives webhook deliveries. Apart from unparseable bodies
// it always acknowledges with 200 EVENT_RECEIVED: WhatsApp redelivers on
// anything else, and processing failures are not fixed by a replay.
// POST /webhook/whatsapp
func (h *Handler) HandleInbound(c *gin.Context) {
	var payload WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.String(http.StatusBadRequest, "Bad Request")
		return
	}

	ctx := c.Request.Context()
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			value := change.Value

			for _, status := range value.Statuses {
				// Delivery and read receipts are logged, never replied to.
				h.log.WebhookEvent("status:"+status.Status, status.RecipientID, false)
			}

			for _, msg := range value.Messages {
				in := Inbound{
					WaID:        msg.From,
					ProfileName: value.ProfileName(msg.From),
					Text:        msg.Body(),
				}
				if media, ok := msg.MediaAttachment(); ok {
					in.Media = &media
				}

				if err := h.service.HandleInbound(ctx, in); err != nil {
					h.log.Error("inbound message processing failed", "waId", msg.From, "messageId", msg.ID, "error", err)
					h.log.WebhookEvent("message:"+msg.Type, msg.From, false)
					continue
				}
				h.log.WebhookEvent("message:"+msg.Type, msg.From, true)
			}
		}
	}

	c.String(http.StatusOK, "EVENT_RECEIVED")
}
