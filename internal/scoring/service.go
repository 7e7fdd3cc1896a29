package scoring

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JustIkra/rksi-hackotone/constants"
	"github.com/JustIkra/rksi-hackotone/internal/async"
	"github.com/JustIkra/rksi-hackotone/internal/common"
	"github.com/JustIkra/rksi-hackotone/internal/entity"
	"github.com/JustIkra/rksi-hackotone/internal/repository"
	"github.com/JustIkra/rksi-hackotone/internal/vocab"
)

type Config struct {
	TopK                   int
	RecommendationsEnabled bool
}

// Service runs suitability scoring for a participant against a
// professional activity and appends the result to the history.
type Service struct {
	cfg       Config
	weights   repository.WeightTableRepository
	extracted repository.ExtractedMetricRepository
	results   repository.ScoringResultRepository
	cache     *vocab.Cache
	recQueue  async.Queue
	log       *slog.Logger
}

func NewService(
	cfg Config,
	weights repository.WeightTableRepository,
	extracted repository.ExtractedMetricRepository,
	results repository.ScoringResultRepository,
	cache *vocab.Cache,
	recQueue async.Queue,
	log *slog.Logger,
) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		cfg:       cfg,
		weights:   weights,
		extracted: extracted,
		results:   results,
		cache:     cache,
		recQueue:  recQueue,
		log:       log,
	}
}

// Score computes and stores one scoring run. History is append-only; a
// re-score never mutates earlier results.
func (s *Service) Score(ctx context.Context, participantID uuid.UUID, activityCode string) (*entity.ScoringResult, error) {
	start := time.Now()

	wt, err := s.weights.GetByActivityCode(ctx, activityCode)
	if err != nil {
		return nil, err
	}
	if !wt.Active {
		return nil, common.NewAppError("WEIGHTS_INACTIVE",
			"weight table for this activity is disabled", common.ErrInvalidInput)
	}

	snap, err := s.cache.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	values, err := s.latestValues(ctx, participantID)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(wt.Entries))
	for _, we := range wt.Entries {
		def := snap.ByID(we.MetricDefID)
		if def == nil {
			// pending or rejected defs never contribute
			continue
		}
		v, ok := values[we.MetricDefID]
		if !ok {
			continue
		}
		entries = append(entries, Entry{Def: def, Value: v, Weight: we.Weight})
	}

	outcome, err := Compute(entries, s.cfg.TopK)
	if err != nil {
		return nil, err
	}

	recStatus := constants.RecommendationsDisabled
	if s.cfg.RecommendationsEnabled {
		recStatus = constants.RecommendationsPending
	}
	result := &entity.ScoringResult{
		ID:                    uuid.New(),
		ParticipantID:         participantID,
		ProfActivityCode:      activityCode,
		ProfActivityName:      wt.ProfActivityName,
		ScorePct:              outcome.ScorePct,
		Strengths:             outcome.Strengths,
		DevAreas:              outcome.DevAreas,
		RecommendationsStatus: recStatus,
		CreatedAt:             time.Now().UTC(),
	}
	if err := s.results.Create(ctx, result); err != nil {
		return nil, err
	}

	if s.cfg.RecommendationsEnabled && s.recQueue != nil {
		if err := s.recQueue.Enqueue(ctx, async.Job{ID: result.ID, SubmittedAt: time.Now()}); err != nil {
			s.log.Error("scoring.recommend_enqueue_failed", "result_id", result.ID, "error", err)
		}
	}

	s.log.Info("scoring.ok",
		"participant_id", participantID,
		"activity", activityCode,
		"score_pct", result.ScorePct,
		"metrics_scored", len(entries),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// History returns every past run for the participant, newest first.
func (s *Service) History(ctx context.Context, participantID uuid.UUID) ([]*entity.ScoringResult, error) {
	return s.results.ListByParticipant(ctx, participantID)
}

// Result fetches one run by id.
func (s *Service) Result(ctx context.Context, id uuid.UUID) (*entity.ScoringResult, error) {
	return s.results.GetByID(ctx, id)
}

// latestValues collapses the participant's reports to one value per
// metric. Rows arrive newest report first, so the first occurrence wins.
func (s *Service) latestValues(ctx context.Context, participantID uuid.UUID) (map[uuid.UUID]float64, error) {
	rows, err := s.extracted.ListByParticipant(ctx, participantID)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]float64, len(rows))
	for _, m := range rows {
		if _, seen := out[m.MetricDefID]; !seen {
			out[m.MetricDefID] = m.Value
		}
	}
	return out, nil
}
