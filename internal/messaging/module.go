// Package messaging terminates the WhatsApp webhook and drives the inbound
// conversation pipeline.
package messaging

import (
	"context"
	"errors"

	"fridgeops_backend/internal/contacts"
	"fridgeops_backend/internal/conversation"
	"fridgeops_backend/internal/events"
	"fridgeops_backend/internal/flow"
	apphttp "fridgeops_backend/internal/http"
	"fridgeops_backend/internal/pricing"
	"fridgeops_backend/internal/tickets"
	"fridgeops_backend/internal/villages"
	"fridgeops_backend/platform/config"
	"fridgeops_backend/platform/logger"
)

// Module is the messaging bounded context module implementing http.Module.
type Module struct {
	service *Service
	handler *Handler
}

// Deps are the collaborating services the messaging module wires together.
type Deps struct {
	Contacts *contacts.Service
	States   *conversation.Repository
	Villages *villages.Service
	Pricing  *pricing.Calculator
	Tickets  *tickets.Service
	Photos   PhotoStore
	Bus      events.Bus
	Config   config.WhatsAppConfig
	Logger   *logger.Logger
}

// NewModule creates and initializes the messaging module.
func NewModule(d Deps) *Module {
	client := NewClient(d.Config, d.Logger)
	engine := flow.NewEngine(
		villageDirectory{d.Villages},
		offerCalculator{d.Pricing},
		ticketCreator{d.Tickets},
		d.Logger,
	)
	service := NewService(d.Contacts, d.States, engine, client, client, d.Photos, d.Tickets, d.Bus, d.Logger)
	handler := NewHandler(service, d.Config, d.Logger)
	return &Module{service: service, handler: handler}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "messaging"
}

// Service exposes the inbound pipeline for tests and cross-module wiring.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts the webhook endpoints. They sit outside /api/v1 and
// carry the webhook rate limiter instead of the default IP limiter.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Webhook.GET("/whatsapp", m.handler.HandleVerify)
	ctx.Webhook.POST("/whatsapp", m.handler.HandleInbound)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)

// villageDirectory adapts the villages service to the flow engine port.
type villageDirectory struct {
	svc *villages.Service
}

func (v villageDirectory) Resolve(ctx context.Context, input string) (flow.Village, bool, error) {
	village, err := v.svc.Resolve(ctx, input)
	if errors.Is(err, villages.ErrVillageNotFound) {
		return flow.Village{}, false, nil
	}
	if err != nil {
		return flow.Village{}, false, err
	}
	return flow.Village{ID: village.ID, Name: village.Name}, true, nil
}

func (v villageDirectory) ListPrompt(ctx context.Context) string {
	return v.svc.ListPrompt(ctx)
}

// offerCalculator adapts the pricing calculator to the flow engine port.
type offerCalculator struct {
	calc *pricing.Calculator
}

func (o offerCalculator) CalculateOffer(ctx context.Context, condition string, villageID *int64, villageName string) flow.Offer {
	offer := o.calc.CalculateOffer(ctx, condition, villageID, villageName)
	return flow.Offer{Amount: offer.Amount, Currency: offer.Currency, VillageName: offer.VillageName}
}

// ticketCreator adapts the tickets service to the flow engine port.
type ticketCreator struct {
	svc *tickets.Service
}

func (t ticketCreator) CreateRepair(ctx context.Context, contactID int64, description string) (flow.TicketRef, error) {
	ticket, err := t.svc.CreateRepair(ctx, contactID, description)
	if err != nil {
		return flow.TicketRef{}, err
	}
	return flow.TicketRef{ID: ticket.ID, Code: ticket.Code}, nil
}
