// Package tickets provides the ticket bounded context module.
package tickets

import (
	"fridgeops_backend/internal/events"
	apphttp "fridgeops_backend/internal/http"
	"fridgeops_backend/platform/logger"
	"fridgeops_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the tickets bounded context module implementing http.Module.
type Module struct {
	service *Service
	handler *Handler
}

// NewModule creates and initializes the tickets module.
func NewModule(pool *pgxpool.Pool, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	service := NewService(repo, bus, log)
	handler := NewHandler(service, val)
	return &Module{service: service, handler: handler}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "tickets"
}

// Service exposes the tickets service for cross-module wiring.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts ticket dashboard routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/tickets")
	group.GET("", m.handler.HandleList)
	group.POST("", m.handler.HandleCreate)
	group.GET("/:code", m.handler.HandleGetByCode)
	group.GET("/:code/qr", m.handler.HandleQR)
	group.PATCH("/:id/status", m.handler.HandleUpdateStatus)
	group.PATCH("/:id/assign", m.handler.HandleAssign)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
