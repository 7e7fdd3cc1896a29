package pipeline

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
	"github.com/JustIkra/rksi-hackotone/internal/extract"
	"github.com/JustIkra/rksi-hackotone/internal/llm"
	"github.com/JustIkra/rksi-hackotone/internal/repository"
	"github.com/JustIkra/rksi-hackotone/internal/resolve"
	"github.com/JustIkra/rksi-hackotone/internal/vocab"
)

type fakeExtractor struct {
	pages []extract.Page
	err   error
}

func (f *fakeExtractor) ExtractPages(context.Context, string, string) (extract.Result, error) {
	if f.err != nil {
		return extract.Result{}, f.err
	}
	return extract.Result{Pages: f.pages, Format: constants.PDF}, nil
}

type fakeParser struct {
	byPage map[int][]llm.PageMetric
}

func (f *fakeParser) ParsePage(_ context.Context, req llm.ParseRequest) (llm.PageExtraction, []byte, error) {
	return llm.PageExtraction{Metrics: f.byPage[req.PageNumber]}, nil, nil
}

type pipelineEnv struct {
	db        *repository.DB
	reports   repository.ReportRepository
	tasks     repository.ExtractionTaskRepository
	extracted repository.ExtractedMetricRepository
	defs      repository.MetricDefRepository
	cache     *vocab.Cache
}

func newPipelineEnv(t *testing.T) *pipelineEnv {
	t.Helper()
	db, err := repository.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.DB.Close() })
	defs := repository.NewMetricDefRepository(db, nil)
	return &pipelineEnv{
		db:        db,
		reports:   repository.NewReportRepository(db, nil),
		tasks:     repository.NewExtractionTaskRepository(db, nil),
		extracted: repository.NewExtractedMetricRepository(db, nil),
		defs:      defs,
		cache:     vocab.NewCache(defs, time.Minute, nil),
	}
}

func (e *pipelineEnv) coordinator(extractor extract.PageExtractor, parser llm.MetricParser) *Coordinator {
	resolver := resolve.NewResolver(resolve.Config{SimilarityThreshold: 0.5, MinMargin: 0.05}, nil, nil, nil)
	return NewCoordinator(Config{MinConfidence: 0.6},
		e.reports, e.tasks, e.extracted, e.defs, extractor, parser, resolver, e.cache, nil)
}

func (e *pipelineEnv) approveDef(t *testing.T, code string) *entity.MetricDef {
	t.Helper()
	def, err := e.defs.Create(context.Background(), repository.CreateDefRequest{
		Code: code, Name: "Metric " + code, MinValue: 0, MaxValue: 10,
		Moderation: constants.ModerationApproved,
	})
	require.NoError(t, err)
	return def
}

func (e *pipelineEnv) newReport(t *testing.T) *entity.Report {
	t.Helper()
	rep, err := e.reports.Create(context.Background(), uuid.New(), "/data/report.pdf", constants.PDF)
	require.NoError(t, err)
	return rep
}

func TestProcessTaskHappyPath(t *testing.T) {
	env := newPipelineEnv(t)
	ctx := context.Background()

	teamwork := env.approveDef(t, "TEAMWORK")
	comm := env.approveDef(t, "COMM")
	_, err := env.defs.CreateSynonym(ctx, comm.ID, "communication skills")
	require.NoError(t, err)

	extractor := &fakeExtractor{pages: []extract.Page{
		{Number: 1, Text: "page one"},
		{Number: 2, Text: "page two"},
	}}
	parser := &fakeParser{byPage: map[int][]llm.PageMetric{
		1: {{Label: "Teamwork", Value: 7, Confidence: 0.9}},
		2: {{Label: "Communication Skills", Value: 5, Confidence: 0.8}},
	}}
	c := env.coordinator(extractor, parser)

	rep := env.newReport(t)
	task, err := c.Submit(ctx, rep.ID)
	require.NoError(t, err)
	require.NoError(t, c.ProcessTask(ctx, task.ID))

	got, err := env.tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusCompleted, got.Status)
	assert.Equal(t, 100, got.ProgressPct)
	assert.Equal(t, 2, got.MetricsFound)

	repGot, err := env.reports.GetByID(ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.ReportStatusExtracted, repGot.Status)
	assert.Nil(t, repGot.ExtractWarning)

	stored, err := env.extracted.Get(ctx, rep.ID, teamwork.ID)
	require.NoError(t, err)
	assert.Equal(t, 7.0, stored.Value)
	assert.Equal(t, constants.SourceLLM, stored.Source)
	assert.Equal(t, 1, stored.Page)
}

func TestProcessTaskUnresolvedLabelProposed(t *testing.T) {
	env := newPipelineEnv(t)
	ctx := context.Background()

	extractor := &fakeExtractor{pages: []extract.Page{{Number: 1, Text: "page"}}}
	parser := &fakeParser{byPage: map[int][]llm.PageMetric{
		1: {{Label: "Mystery Trait", Value: 4, Confidence: 0.9, Quote: "Mystery Trait: 4"}},
	}}
	c := env.coordinator(extractor, parser)

	rep := env.newReport(t)
	task, err := c.Submit(ctx, rep.ID)
	require.NoError(t, err)
	require.NoError(t, c.ProcessTask(ctx, task.ID))

	repGot, err := env.reports.GetByID(ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.ReportStatusExtracted, repGot.Status)
	require.NotNil(t, repGot.ExtractWarning)
	assert.Contains(t, *repGot.ExtractWarning, "mystery trait")

	pending, total, err := env.defs.ListPending(ctx, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, "MYSTERY_TRAIT", pending[0].Code)
	require.NotNil(t, pending[0].AIRationale)
	assert.Equal(t, []string{"Mystery Trait: 4"}, pending[0].AIRationale.Quotes)
	assert.Equal(t, []int{1}, pending[0].AIRationale.PageNumbers)
}

func TestProcessTaskManualValueSurvives(t *testing.T) {
	env := newPipelineEnv(t)
	ctx := context.Background()

	def := env.approveDef(t, "TEAMWORK")
	rep := env.newReport(t)
	require.NoError(t, env.extracted.Upsert(ctx, &entity.ExtractedMetric{
		ReportID: rep.ID, MetricDefID: def.ID, Value: 9,
		Source: constants.SourceManual, Page: 0,
	}))

	extractor := &fakeExtractor{pages: []extract.Page{{Number: 1, Text: "page"}}}
	parser := &fakeParser{byPage: map[int][]llm.PageMetric{
		1: {{Label: "Metric TEAMWORK", Value: 2, Confidence: 0.99}},
	}}
	c := env.coordinator(extractor, parser)

	task, err := c.Submit(ctx, rep.ID)
	require.NoError(t, err)
	require.NoError(t, c.ProcessTask(ctx, task.ID))

	stored, err := env.extracted.Get(ctx, rep.ID, def.ID)
	require.NoError(t, err)
	assert.Equal(t, 9.0, stored.Value)
	assert.Equal(t, constants.SourceManual, stored.Source)
}

func TestProcessTaskLowConfidenceDropped(t *testing.T) {
	env := newPipelineEnv(t)
	ctx := context.Background()

	def := env.approveDef(t, "TEAMWORK")
	extractor := &fakeExtractor{pages: []extract.Page{{Number: 1, Text: "page"}}}
	parser := &fakeParser{byPage: map[int][]llm.PageMetric{
		1: {{Label: "Metric TEAMWORK", Value: 3, Confidence: 0.2}},
	}}
	c := env.coordinator(extractor, parser)

	rep := env.newReport(t)
	task, err := c.Submit(ctx, rep.ID)
	require.NoError(t, err)
	require.NoError(t, c.ProcessTask(ctx, task.ID))

	_, err = env.extracted.Get(ctx, rep.ID, def.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	repGot, err := env.reports.GetByID(ctx, rep.ID)
	require.NoError(t, err)
	require.NotNil(t, repGot.ExtractWarning)
	assert.Contains(t, *repGot.ExtractWarning, "confidence")
}

func TestProcessTaskCancellation(t *testing.T) {
	env := newPipelineEnv(t)
	ctx := context.Background()

	extractor := &fakeExtractor{pages: []extract.Page{{Number: 1, Text: "page"}}}
	parser := &fakeParser{byPage: map[int][]llm.PageMetric{}}
	c := env.coordinator(extractor, parser)

	rep := env.newReport(t)
	task, err := c.Submit(ctx, rep.ID)
	require.NoError(t, err)
	require.NoError(t, env.tasks.RequestCancel(ctx, task.ID))

	require.Error(t, c.ProcessTask(ctx, task.ID))

	got, err := env.tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "cancelled")

	repGot, err := env.reports.GetByID(ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.ReportStatusFailed, repGot.Status)
}

func TestProcessTaskExtractionFailure(t *testing.T) {
	env := newPipelineEnv(t)
	ctx := context.Background()

	extractor := &fakeExtractor{err: assert.AnError}
	c := env.coordinator(extractor, &fakeParser{})

	rep := env.newReport(t)
	task, err := c.Submit(ctx, rep.ID)
	require.NoError(t, err)
	require.Error(t, c.ProcessTask(ctx, task.ID))

	got, err := env.tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusFailed, got.Status)
}

func TestProcessTaskBlankDocumentFails(t *testing.T) {
	env := newPipelineEnv(t)
	ctx := context.Background()

	// pdftotext succeeds on a scanned PDF but yields only whitespace
	extractor := &fakeExtractor{pages: []extract.Page{
		{Number: 1, Text: ""},
		{Number: 2, Text: " \n\t"},
	}}
	c := env.coordinator(extractor, &fakeParser{})

	rep := env.newReport(t)
	task, err := c.Submit(ctx, rep.ID)
	require.NoError(t, err)
	require.Error(t, c.ProcessTask(ctx, task.ID))

	got, err := env.tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "no readable text")

	gotRep, err := env.reports.GetByID(ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.ReportStatusFailed, gotRep.Status)

	values, err := env.extracted.ListByReport(ctx, rep.ID)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestSubmitSingleFlightAndReExtract(t *testing.T) {
	env := newPipelineEnv(t)
	ctx := context.Background()

	extractor := &fakeExtractor{pages: []extract.Page{{Number: 1, Text: "page"}}}
	c := env.coordinator(extractor, &fakeParser{byPage: map[int][]llm.PageMetric{}})

	rep := env.newReport(t)
	task, err := c.Submit(ctx, rep.ID)
	require.NoError(t, err)

	_, err = c.Submit(ctx, rep.ID)
	assert.ErrorIs(t, err, common.ErrConflict)

	require.NoError(t, c.ProcessTask(ctx, task.ID))

	// a finished run frees the report for re-extraction
	_, err = c.Submit(ctx, rep.ID)
	require.NoError(t, err)
}

func TestSubmitUnknownReport(t *testing.T) {
	env := newPipelineEnv(t)
	c := env.coordinator(&fakeExtractor{}, &fakeParser{})
	_, err := c.Submit(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}
