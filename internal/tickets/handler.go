package tickets

import (
	"net/http"
	"strconv"
	"time"

	"fridgeops_backend/platform/httpkit"
	"fridgeops_backend/platform/validator"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"
)

// Handler handles ticket dashboard HTTP requests.
type Handler struct {
	service *Service
	val     *validator.Validator
}

// NewHandler creates a new tickets handler.
func NewHandler(service *Service, val *validator.Validator) *Handler {
	return &Handler{service: service, val: val}
}

// HandleList lists tickets.
// GET /api/v1/tickets?status=&limit=
func (h *Handler) HandleList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	results, err := h.service.List(c.Request.Context(), c.Query("status"), limit)
	if httpkit.HandleError(c, err) {
		return
	}
	if results == nil {
		results = []Ticket{}
	}
	httpkit.OK(c, gin.H{"tickets": results})
}

// HandleGetByCode fetches a ticket by code.
// GET /api/v1/tickets/:code
func (h *Handler) HandleGetByCode(c *gin.Context) {
	ticket, err := h.service.GetByCode(c.Request.Context(), c.Param("code"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, ticket)
}

// CreateTicketRequest is the request body for manual ticket creation.
type CreateTicketRequest struct {
	ContactID    int64      `json:"contactId" validate:"required"`
	Type         string     `json:"type" validate:"required,oneof=sell repair"`
	Category     string     `json:"category,omitempty"`
	Description  string     `json:"description" validate:"required,min=3"`
	ScheduledFor *time.Time `json:"scheduledFor,omitempty"`
}

// HandleCreate creates a ticket from the dashboard.
// POST /api/v1/tickets
func (h *Handler) HandleCreate(c *gin.Context) {
	var req CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	ticket, err := h.service.CreateManual(c.Request.Context(), CreateManualParams{
		ContactID:    req.ContactID,
		Type:         req.Type,
		Category:     req.Category,
		Description:  req.Description,
		ScheduledFor: req.ScheduledFor,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

// UpdateTicketStatusRequest is the request body for a status transition.
type UpdateTicketStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=open assigned in_progress completed closed"`
}

// HandleUpdateStatus applies a status transition to a ticket.
// PATCH /api/v1/tickets/:id/status
func (h *Handler) HandleUpdateStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid ticket id", nil)
		return
	}

	var req UpdateTicketStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	ticket, err := h.service.ChangeStatus(c.Request.Context(), id, req.Status)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, ticket)
}

// AssignTicketRequest is the request body for handing a ticket to a runner.
type AssignTicketRequest struct {
	Assignee string `json:"assignee" validate:"required,min=2,max=120"`
}

// HandleAssign hands a ticket to a runner.
// PATCH /api/v1/tickets/:id/assign
func (h *Handler) HandleAssign(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid ticket id", nil)
		return
	}

	var req AssignTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	ticket, err := h.service.Assign(c.Request.Context(), id, req.Assignee)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, ticket)
}

// HandleQR renders the ticket code as a QR PNG for runner scan sheets.
// GET /api/v1/tickets/:code/qr
func (h *Handler) HandleQR(c *gin.Context) {
	ticket, err := h.service.GetByCode(c.Request.Context(), c.Param("code"))
	if httpkit.HandleError(c, err) {
		return
	}

	png, err := qrcode.Encode(ticket.Code, qrcode.Medium, 256)
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to render QR code", nil)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
