package moderation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/JustIkra/rksi-hackotone/constants"
	"github.com/JustIkra/rksi-hackotone/internal/entity"
	"github.com/JustIkra/rksi-hackotone/internal/repository"
)

// Invalidator lets the service drop the vocabulary cache after a
// decision changes what is usable.
type Invalidator interface {
	Invalidate()
}

// Service handles the review queue for AI-proposed metric definitions.
// Decisions are first-writer-wins; a second reviewer gets a conflict.
type Service struct {
	defs  repository.MetricDefRepository
	cache Invalidator
	log   *slog.Logger
}

func NewService(defs repository.MetricDefRepository, cache Invalidator, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{defs: defs, cache: cache, log: log}
}

// Queue is one page of pending proposals plus the queue size.
type Queue struct {
	Items []*entity.MetricDef `json:"items"`
	Total int                 `json:"total"`
}

func (s *Service) ListPending(ctx context.Context, limit, offset int) (*Queue, error) {
	items, total, err := s.defs.ListPending(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return &Queue{Items: items, Total: total}, nil
}

// Approve makes a proposed definition part of the usable vocabulary.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) error {
	if err := s.defs.SetModeration(ctx, id, constants.ModerationApproved, nil); err != nil {
		return err
	}
	s.cache.Invalidate()
	s.log.Info("moderation.approved", "metric_id", id)
	return nil
}

// Reject is terminal: a rejected definition never resolves and cannot be
// re-approved. The reason is optional and stored as NULL when absent.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, reason string) error {
	var stored *string
	if r := strings.TrimSpace(reason); r != "" {
		stored = &r
	}
	if err := s.defs.SetModeration(ctx, id, constants.ModerationRejected, stored); err != nil {
		return err
	}
	s.cache.Invalidate()
	s.log.Info("moderation.rejected", "metric_id", id, "reason", stored)
	return nil
}
