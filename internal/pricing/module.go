// Package pricing provides the offer engine bounded context module.
package pricing

import (
	apphttp "fridgeops_backend/internal/http"
	"fridgeops_backend/platform/logger"
	"fridgeops_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the pricing bounded context module implementing http.Module.
type Module struct {
	calc    *Calculator
	handler *Handler
}

// NewModule creates and initializes the pricing module.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	calc := NewCalculator(repo, log)
	return &Module{calc: calc, handler: NewHandler(calc, val)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "pricing"
}

// Calculator exposes the offer calculator for cross-module wiring.
func (m *Module) Calculator() *Calculator {
	return m.calc
}

// RegisterRoutes mounts the offer endpoint on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.POST("/offer", m.handler.HandleCalculateOffer)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
