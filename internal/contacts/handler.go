package contacts

import (
	"net/http"
	"strconv"

	"fridgeops_backend/platform/httpkit"
	"fridgeops_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Handler handles contact dashboard HTTP requests.
type Handler struct {
	service *Service
	val     *validator.Validator
}

// NewHandler creates a new contacts handler.
func NewHandler(service *Service, val *validator.Validator) *Handler {
	return &Handler{service: service, val: val}
}

// HandleList lists contacts.
// GET /api/v1/contacts?status=&limit=
func (h *Handler) HandleList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	results, err := h.service.List(c.Request.Context(), c.Query("status"), limit)
	if httpkit.HandleError(c, err) {
		return
	}
	if results == nil {
		results = []Contact{}
	}
	httpkit.OK(c, gin.H{"contacts": results})
}

// HandleGet fetches a single contact.
// GET /api/v1/contacts/:id
func (h *Handler) HandleGet(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid contact id", nil)
		return
	}

	contact, err := h.service.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, contact)
}

// UpdateStatusRequest is the request body for a contact status change.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=new qualified converted archived"`
}

// HandleUpdateStatus changes a contact's pipeline status.
// PATCH /api/v1/contacts/:id/status
func (h *Handler) HandleUpdateStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid contact id", nil)
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	contact, err := h.service.ChangeStatus(c.Request.Context(), id, req.Status)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, contact)
}
