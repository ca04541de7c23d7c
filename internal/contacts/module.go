// Package contacts provides the contact store bounded context module.
package contacts

import (
	"time"

	"fridgeops_backend/internal/events"
	apphttp "fridgeops_backend/internal/http"
	"fridgeops_backend/platform/logger"
	"fridgeops_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the contacts bounded context module implementing http.Module.
type Module struct {
	service *Service
	handler *Handler
}

// NewModule creates and initializes the contacts module with its dependencies.
func NewModule(pool *pgxpool.Pool, bus events.Bus, retention time.Duration, val *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	service := NewService(repo, bus, retention, log)
	handler := NewHandler(service, val)

	return &Module{service: service, handler: handler}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "contacts"
}

// Service exposes the contacts service for cross-module wiring.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts contact dashboard routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/contacts")
	group.GET("", m.handler.HandleList)
	group.GET("/:id", m.handler.HandleGet)
	group.PATCH("/:id/status", m.handler.HandleUpdateStatus)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
