package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustIkra/rksi-hackotone/constants"
	"github.com/JustIkra/rksi-hackotone/internal/common"
	"github.com/JustIkra/rksi-hackotone/internal/entity"
	"github.com/JustIkra/rksi-hackotone/internal/repository"
	"github.com/JustIkra/rksi-hackotone/internal/vocab"
)

type env struct {
	defs      repository.MetricDefRepository
	reports   repository.ReportRepository
	extracted repository.ExtractedMetricRepository
	svc       *Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := repository.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.DB.Close() })

	e := &env{
		defs:      repository.NewMetricDefRepository(db, nil),
		reports:   repository.NewReportRepository(db, nil),
		extracted: repository.NewExtractedMetricRepository(db, nil),
	}
	cache := vocab.NewCache(e.defs, time.Minute, nil)
	e.svc = NewService(e.reports, e.extracted, cache, nil)
	return e
}

func (e *env) approveDef(t *testing.T, code string, min, max float64) *entity.MetricDef {
	t.Helper()
	def, err := e.defs.Create(context.Background(), repository.CreateDefRequest{
		Code: code, Name: "Metric " + code, MinValue: min, MaxValue: max,
		Moderation: constants.ModerationApproved,
	})
	require.NoError(t, err)
	return def
}

func (e *env) newReport(t *testing.T) *entity.Report {
	t.Helper()
	rep, err := e.reports.Create(context.Background(), uuid.New(), "report.pdf", constants.PDF)
	require.NoError(t, err)
	return rep
}

func TestTemplateCountsFilledAndMissing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := e.approveDef(t, "A", 0, 10)
	e.approveDef(t, "B", 0, 10)
	rep := e.newReport(t)

	require.NoError(t, e.extracted.Upsert(ctx, &entity.ExtractedMetric{
		ReportID: rep.ID, MetricDefID: a.ID, Value: 7,
		Source: constants.SourceLLM, Page: 2,
	}))

	tpl, err := e.svc.Template(ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, tpl.FilledCount)
	assert.Equal(t, 1, tpl.MissingCount)
	require.Len(t, tpl.Rows, 2)
	assert.Equal(t, "A", tpl.Rows[0].Def.Code)
	require.NotNil(t, tpl.Rows[0].Value)
	assert.Equal(t, 7.0, tpl.Rows[0].Value.Value)
	assert.Nil(t, tpl.Rows[1].Value)
}

func TestTemplateUnknownReport(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Template(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSetManualOverridesExtracted(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	def := e.approveDef(t, "A", 0, 10)
	rep := e.newReport(t)
	require.NoError(t, e.extracted.Upsert(ctx, &entity.ExtractedMetric{
		ReportID: rep.ID, MetricDefID: def.ID, Value: 4,
		Source: constants.SourceLLM, Page: 1,
	}))

	_, err := e.svc.SetManual(ctx, rep.ID, def.ID, 8)
	require.NoError(t, err)

	got, err := e.extracted.Get(ctx, rep.ID, def.ID)
	require.NoError(t, err)
	assert.Equal(t, 8.0, got.Value)
	assert.Equal(t, constants.SourceManual, got.Source)
}

func TestSetManualRangeValidation(t *testing.T) {
	e := newEnv(t)
	def := e.approveDef(t, "A", 0, 10)
	rep := e.newReport(t)

	_, err := e.svc.SetManual(context.Background(), rep.ID, def.ID, 11)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = e.svc.SetManual(context.Background(), rep.ID, def.ID, -0.5)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestSetManualRejectsUnapprovedMetric(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	pending, err := e.defs.Create(ctx, repository.CreateDefRequest{
		Code: "WAIT", Name: "Pending", MinValue: 0, MaxValue: 10,
		Moderation: constants.ModerationPending,
	})
	require.NoError(t, err)
	rep := e.newReport(t)

	_, err = e.svc.SetManual(ctx, rep.ID, pending.ID, 5)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestClear(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	def := e.approveDef(t, "A", 0, 10)
	rep := e.newReport(t)
	_, err := e.svc.SetManual(ctx, rep.ID, def.ID, 5)
	require.NoError(t, err)

	require.NoError(t, e.svc.Clear(ctx, rep.ID, def.ID))
	_, err = e.extracted.Get(ctx, rep.ID, def.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	assert.ErrorIs(t, e.svc.Clear(ctx, rep.ID, def.ID), common.ErrNotFound)
}
