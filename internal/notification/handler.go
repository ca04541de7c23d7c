package notification

import (
	"strconv"

	"fridgeops_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Handler exposes the manual outbox processing endpoint used by cron when
// the Redis worker is not running.
type Handler struct {
	service *Service
}

// NewHandler creates a notification handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleProcess claims and delivers due notifications, at most 50 per call.
// POST /api/v1/notifications/process
func (h *Handler) HandleProcess(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 50 {
		limit = 50
	}

	processed, succeeded, err := h.service.ProcessDue(c.Request.Context(), limit)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{
		"processed": processed,
		"success":   succeeded,
		"failed":    processed - succeeded,
	})
}
