package villages

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"fridgeops_backend/platform/logger"
)

// Service resolves village input and renders the selection prompt.
type Service struct {
	repo *Repository
	log  *logger.Logger
}

// NewService creates a new villages service.
func NewService(repo *Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// ListActive returns all active villages ordered by name.
func (s *Service) ListActive(ctx context.Context) ([]Village, error) {
	return s.repo.ListActive(ctx)
}

// Resolve interprets user input as a 1-based index into the active village
// list (ordered by name), falling back to a case-insensitive substring match
// on the name. Returns ErrVillageNotFound when neither resolves. Resolution
// is deterministic: the same input against the same active set always yields
// the same village.
func (s *Service) Resolve(ctx context.Context, input string) (Village, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return Village{}, ErrVillageNotFound
	}

	if num, err := strconv.Atoi(trimmed); err == nil {
		active, err := s.repo.ListActive(ctx)
		if err != nil {
			return Village{}, err
		}
		if num >= 1 && num <= len(active) {
			return active[num-1], nil
		}
		return Village{}, ErrVillageNotFound
	}

	return s.repo.FindByName(ctx, trimmed)
}

// ListPrompt renders the numbered village selection message, or a free-text
// fallback prompt when no villages are configured.
func (s *Service) ListPrompt(ctx context.Context) string {
	active, err := s.repo.ListActive(ctx)
	if err != nil || len(active) == 0 {
		return "Please tell me your village name:"
	}

	var b strings.Builder
	b.WriteString("Which village are you in? Reply with the number:\n\n")
	for i, v := range active {
		fmt.Fprintf(&b, "%d. %s\n", i+1, v.Name)
	}
	b.WriteString("\nOr type your village name if it's not listed.")
	return b.String()
}
