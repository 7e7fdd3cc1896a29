package recommend

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JustIkra/rksi-hackotone/constants"
	"github.com/JustIkra/rksi-hackotone/internal/common"
	"github.com/JustIkra/rksi-hackotone/internal/entity"
	"github.com/JustIkra/rksi-hackotone/internal/llm"
	"github.com/JustIkra/rksi-hackotone/internal/repository"
)

// Generator turns a stored scoring result into narrative development
// recommendations. It runs behind a worker queue; the guarded repository
// transitions make READY/ERROR terminal exactly once even if a job is
// retried or raced.
type Generator struct {
	results     repository.ScoringResultRepository
	weights     repository.WeightTableRepository
	recommender llm.Recommender
	log         *slog.Logger
}

func NewGenerator(
	results repository.ScoringResultRepository,
	weights repository.WeightTableRepository,
	recommender llm.Recommender,
	log *slog.Logger,
) *Generator {
	if log == nil {
		log = slog.Default()
	}
	return &Generator{results: results, weights: weights, recommender: recommender, log: log}
}

// Handle processes one queued scoring result id.
func (g *Generator) Handle(ctx context.Context, resultID uuid.UUID) error {
	start := time.Now()

	res, err := g.results.GetByID(ctx, resultID)
	if err != nil {
		return err
	}
	if res.RecommendationsStatus != constants.RecommendationsPending {
		g.log.Info("recommend.skip_terminal",
			"result_id", resultID, "status", res.RecommendationsStatus)
		return nil
	}

	activityName := res.ProfActivityCode
	if wt, err := g.weights.GetByActivityCode(ctx, res.ProfActivityCode); err == nil {
		activityName = wt.ProfActivityName
	}

	out, _, err := g.recommender.Recommend(ctx, llm.RecommendRequest{
		ProfActivityName: activityName,
		ScorePct:         res.ScorePct,
		Strengths:        toItems(res.Strengths),
		DevAreas:         toItems(res.DevAreas),
	})
	if err != nil {
		g.log.Error("recommend.generation_failed",
			"result_id", resultID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		if terr := g.results.SetRecommendationsError(ctx, resultID, err.Error()); terr != nil {
			if errors.Is(terr, common.ErrConflict) {
				// someone else already finalized; the first writer wins
				return nil
			}
			return terr
		}
		return err
	}

	if err := g.results.SetRecommendationsReady(ctx, resultID, out.Recommendations); err != nil {
		if errors.Is(err, common.ErrConflict) {
			g.log.Warn("recommend.already_finalized", "result_id", resultID)
			return nil
		}
		return err
	}

	g.log.Info("recommend.ok",
		"result_id", resultID,
		"items", len(out.Recommendations),
		"elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

func toItems(entries []entity.ScoredEntry) []llm.ScoredItem {
	out := make([]llm.ScoredItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, llm.ScoredItem{Name: e.Name, Value: e.Value})
	}
	return out
}
