// Package villages provides the village directory bounded context module.
package villages

import (
	apphttp "fridgeops_backend/internal/http"
	"fridgeops_backend/platform/httpkit"
	"fridgeops_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the villages bounded context module implementing http.Module.
type Module struct {
	service *Service
}

// NewModule creates and initializes the villages module.
func NewModule(pool *pgxpool.Pool, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	return &Module{service: NewService(repo, log)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "villages"
}

// Service exposes the villages service for cross-module wiring.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts village routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/villages", func(c *gin.Context) {
		results, err := m.service.ListActive(c.Request.Context())
		if httpkit.HandleError(c, err) {
			return
		}
		if results == nil {
			results = []Village{}
		}
		httpkit.OK(c, gin.H{"villages": results})
	})
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
