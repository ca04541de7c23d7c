package pricing

import (
	"net/http"

	"fridgeops_backend/platform/httpkit"
	"fridgeops_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Handler handles offer calculation HTTP requests.
type Handler struct {
	calc *Calculator
	val  *validator.Validator
}

// NewHandler creates a new pricing handler.
func NewHandler(calc *Calculator, val *validator.Validator) *Handler {
	return &Handler{calc: calc, val: val}
}

// OfferRequest is the request body for an offer calculation.
type OfferRequest struct {
	Condition   string `json:"condition" validate:"required,oneof=excellent good fair poor"`
	VillageID   *int64 `json:"village_id,omitempty"`
	VillageName string `json:"village_name,omitempty"`
}

// HandleCalculateOffer computes an offer for the given condition and village.
// POST /api/v1/offer
func (h *Handler) HandleCalculateOffer(c *gin.Context) {
	var req OfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "Invalid condition. Must be: excellent, good, fair, or poor", nil)
		return
	}

	offer := h.calc.CalculateOffer(c.Request.Context(), req.Condition, req.VillageID, req.VillageName)
	httpkit.OK(c, offer)
}
