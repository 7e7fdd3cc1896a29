package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustIkra/rksi-hackotone/constants"
	"github.com/JustIkra/rksi-hackotone/internal/async"
	"github.com/JustIkra/rksi-hackotone/internal/common"
	"github.com/JustIkra/rksi-hackotone/internal/entity"
	"github.com/JustIkra/rksi-hackotone/internal/repository"
	"github.com/JustIkra/rksi-hackotone/internal/vocab"
)

type recordingQueue struct{ jobs []async.Job }

func (q *recordingQueue) Enqueue(_ context.Context, job async.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}
func (q *recordingQueue) Shutdown(context.Context) {}

type scoringEnv struct {
	db        *repository.DB
	defs      repository.MetricDefRepository
	reports   repository.ReportRepository
	extracted repository.ExtractedMetricRepository
	weights   repository.WeightTableRepository
	results   repository.ScoringResultRepository
	queue     *recordingQueue
	svc       *Service
}

func newScoringEnv(t *testing.T, cfg Config) *scoringEnv {
	t.Helper()
	db, err := repository.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.DB.Close() })

	env := &scoringEnv{
		db:        db,
		defs:      repository.NewMetricDefRepository(db, nil),
		reports:   repository.NewReportRepository(db, nil),
		extracted: repository.NewExtractedMetricRepository(db, nil),
		weights:   repository.NewWeightTableRepository(db, nil),
		results:   repository.NewScoringResultRepository(db, nil),
		queue:     &recordingQueue{},
	}
	cache := vocab.NewCache(env.defs, time.Minute, nil)
	env.svc = NewService(cfg, env.weights, env.extracted, env.results, cache, env.queue, nil)
	return env
}

func (e *scoringEnv) approveDef(t *testing.T, code string, min, max float64) *entity.MetricDef {
	t.Helper()
	def, err := e.defs.Create(context.Background(), repository.CreateDefRequest{
		Code: code, Name: "Metric " + code, MinValue: min, MaxValue: max,
		Moderation: constants.ModerationApproved,
	})
	require.NoError(t, err)
	return def
}

func (e *scoringEnv) storeValue(t *testing.T, participantID, defID uuid.UUID, value float64) {
	t.Helper()
	rep, err := e.reports.Create(context.Background(), participantID, "report.pdf", constants.PDF)
	require.NoError(t, err)
	require.NoError(t, e.extracted.Upsert(context.Background(), &entity.ExtractedMetric{
		ReportID: rep.ID, MetricDefID: defID, Value: value,
		Source: constants.SourceLLM, Page: 1,
	}))
}

func TestScoreWeightedScenario(t *testing.T) {
	env := newScoringEnv(t, Config{TopK: 3, RecommendationsEnabled: true})
	ctx := context.Background()
	pid := uuid.New()

	a := env.approveDef(t, "A", 0, 1)
	b := env.approveDef(t, "B", 0, 1)
	c := env.approveDef(t, "C", 0, 1)

	require.NoError(t, env.weights.Upsert(ctx, &entity.WeightTable{
		ProfActivityCode: "06.001",
		ProfActivityName: "Software Developer",
		Entries: []entity.WeightEntry{
			{MetricDefID: a.ID, Weight: 2},
			{MetricDefID: b.ID, Weight: 1},
			{MetricDefID: c.ID, Weight: 1},
		},
		Active: true,
	}))

	env.storeValue(t, pid, a.ID, 0.8)
	env.storeValue(t, pid, b.ID, 0.4)
	// C stays absent: its weight must not drag the score down

	res, err := env.svc.Score(ctx, pid, "06.001")
	require.NoError(t, err)
	assert.Equal(t, 66.7, res.ScorePct)
	assert.Equal(t, "Software Developer", res.ProfActivityName)
	assert.Equal(t, constants.RecommendationsPending, res.RecommendationsStatus)

	require.Len(t, env.queue.jobs, 1)
	assert.Equal(t, res.ID, env.queue.jobs[0].ID)
}

func TestScoreRecommendationsDisabled(t *testing.T) {
	env := newScoringEnv(t, Config{TopK: 3, RecommendationsEnabled: false})
	ctx := context.Background()
	pid := uuid.New()

	a := env.approveDef(t, "A", 0, 1)
	require.NoError(t, env.weights.Upsert(ctx, &entity.WeightTable{
		ProfActivityCode: "06.001", ProfActivityName: "Dev",
		Entries: []entity.WeightEntry{{MetricDefID: a.ID, Weight: 1}},
		Active:  true,
	}))
	env.storeValue(t, pid, a.ID, 0.5)

	res, err := env.svc.Score(ctx, pid, "06.001")
	require.NoError(t, err)
	assert.Equal(t, constants.RecommendationsDisabled, res.RecommendationsStatus)
	assert.Empty(t, env.queue.jobs)
}

func TestScoreUnknownActivity(t *testing.T) {
	env := newScoringEnv(t, Config{})
	_, err := env.svc.Score(context.Background(), uuid.New(), "99.999")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestScoreNoUsableData(t *testing.T) {
	env := newScoringEnv(t, Config{})
	ctx := context.Background()

	a := env.approveDef(t, "A", 0, 1)
	require.NoError(t, env.weights.Upsert(ctx, &entity.WeightTable{
		ProfActivityCode: "06.001", ProfActivityName: "Dev",
		Entries: []entity.WeightEntry{{MetricDefID: a.ID, Weight: 1}},
		Active:  true,
	}))

	_, err := env.svc.Score(ctx, uuid.New(), "06.001")
	assert.ErrorIs(t, err, common.ErrNoUsableData)
}

func TestScoreIgnoresUnmoderatedMetrics(t *testing.T) {
	env := newScoringEnv(t, Config{})
	ctx := context.Background()
	pid := uuid.New()

	pending, err := env.defs.Create(ctx, repository.CreateDefRequest{
		Code: "PENDING", Name: "Pending", MinValue: 0, MaxValue: 1,
		Moderation: constants.ModerationPending,
	})
	require.NoError(t, err)
	approved := env.approveDef(t, "OK", 0, 1)

	require.NoError(t, env.weights.Upsert(ctx, &entity.WeightTable{
		ProfActivityCode: "06.001", ProfActivityName: "Dev",
		Entries: []entity.WeightEntry{
			{MetricDefID: pending.ID, Weight: 5},
			{MetricDefID: approved.ID, Weight: 1},
		},
		Active: true,
	}))
	env.storeValue(t, pid, pending.ID, 1.0)
	env.storeValue(t, pid, approved.ID, 0.5)

	res, err := env.svc.Score(ctx, pid, "06.001")
	require.NoError(t, err)
	// only the approved metric contributes
	assert.Equal(t, 50.0, res.ScorePct)
}

func TestScoreHistoryAppends(t *testing.T) {
	env := newScoringEnv(t, Config{})
	ctx := context.Background()
	pid := uuid.New()

	a := env.approveDef(t, "A", 0, 1)
	require.NoError(t, env.weights.Upsert(ctx, &entity.WeightTable{
		ProfActivityCode: "06.001", ProfActivityName: "Dev",
		Entries: []entity.WeightEntry{{MetricDefID: a.ID, Weight: 1}},
		Active:  true,
	}))
	env.storeValue(t, pid, a.ID, 0.5)

	_, err := env.svc.Score(ctx, pid, "06.001")
	require.NoError(t, err)
	_, err = env.svc.Score(ctx, pid, "06.001")
	require.NoError(t, err)

	hist, err := env.svc.History(ctx, pid)
	require.NoError(t, err)
	assert.Len(t, hist, 2)
}
