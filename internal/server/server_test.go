package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustIkra/rksi-hackotone/constants"
	"github.com/JustIkra/rksi-hackotone/internal/async"
	"github.com/JustIkra/rksi-hackotone/internal/entity"
	"github.com/JustIkra/rksi-hackotone/internal/export"
	"github.com/JustIkra/rksi-hackotone/internal/extract"
	"github.com/JustIkra/rksi-hackotone/internal/llm"
	"github.com/JustIkra/rksi-hackotone/internal/metrics"
	"github.com/JustIkra/rksi-hackotone/internal/moderation"
	"github.com/JustIkra/rksi-hackotone/internal/pipeline"
	"github.com/JustIkra/rksi-hackotone/internal/repository"
	"github.com/JustIkra/rksi-hackotone/internal/resolve"
	"github.com/JustIkra/rksi-hackotone/internal/scoring"
	"github.com/JustIkra/rksi-hackotone/internal/vocab"
)

const testMaxUpload = 1 << 10

type noopQueue struct{ jobs []async.Job }

func (q *noopQueue) Enqueue(_ context.Context, job async.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}
func (q *noopQueue) Shutdown(context.Context) {}

type emptyExtractor struct{}

func (emptyExtractor) ExtractPages(context.Context, string, string) (extract.Result, error) {
	return extract.Result{Pages: []extract.Page{{Number: 1, Text: ""}}, Format: constants.PDF}, nil
}

type emptyParser struct{}

func (emptyParser) ParsePage(context.Context, llm.ParseRequest) (llm.PageExtraction, []byte, error) {
	return llm.PageExtraction{}, nil, nil
}

type apiEnv struct {
	router  *gin.Engine
	defs    repository.MetricDefRepository
	reports repository.ReportRepository
	results repository.ScoringResultRepository
	weights repository.WeightTableRepository
	queue   *noopQueue
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := repository.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.DB.Close() })

	reports := repository.NewReportRepository(db, nil)
	tasks := repository.NewExtractionTaskRepository(db, nil)
	extracted := repository.NewExtractedMetricRepository(db, nil)
	defs := repository.NewMetricDefRepository(db, nil)
	weights := repository.NewWeightTableRepository(db, nil)
	results := repository.NewScoringResultRepository(db, nil)

	cache := vocab.NewCache(defs, time.Minute, nil)
	resolver := resolve.NewResolver(resolve.Config{SimilarityThreshold: 0.5, MinMargin: 0.05}, nil, nil, nil)
	coordinator := pipeline.NewCoordinator(pipeline.Config{MinConfidence: 0.6},
		reports, tasks, extracted, defs, emptyExtractor{}, emptyParser{}, resolver, cache, nil)

	queue := &noopQueue{}
	scoringSvc := scoring.NewService(scoring.Config{TopK: 3, RecommendationsEnabled: true},
		weights, extracted, results, cache, queue, nil)

	router := NewRouter(RouterConfig{
		Reports:    NewReportHandler(reports, tasks, coordinator, queue, t.TempDir(), testMaxUpload, nil),
		Metrics:    NewMetricsHandler(metrics.NewService(reports, extracted, cache, nil), defs, cache, nil),
		Moderation: NewModerationHandler(moderation.NewService(defs, cache, nil), nil),
		Scoring:    NewScoringHandler(scoringSvc, weights, nil),
		Export:     NewExportHandler(export.NewService(results, weights, nil), nil),
	})
	return &apiEnv{router: router, defs: defs, reports: reports, results: results, weights: weights, queue: queue}
}

func (e *apiEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeErr(t *testing.T, w *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestHealthcheck(t *testing.T) {
	e := newAPIEnv(t)
	w := e.do(t, http.MethodGet, "/healthcheck", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	e := newAPIEnv(t)

	var buf bytes.Buffer
	mw := newMultipart(t, &buf, "report.txt", "plain text")
	req := httptest.NewRequest(http.MethodPost,
		"/api/participants/"+uuid.New().String()+"/reports", &buf)
	req.Header.Set("Content-Type", mw)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "FORMAT_UNSUPPORTED", decodeErr(t, w).Error.Code)
}

func TestUploadAcceptsPDFAndAdmitsTask(t *testing.T) {
	e := newAPIEnv(t)

	var buf bytes.Buffer
	mw := newMultipart(t, &buf, "report.pdf", "%PDF-1.4")
	req := httptest.NewRequest(http.MethodPost,
		"/api/participants/"+uuid.New().String()+"/reports", &buf)
	req.Header.Set("Content-Type", mw)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var resp struct {
		Report entity.Report         `json:"report"`
		Task   entity.ExtractionTask `json:"task"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, constants.TaskStatusPending, resp.Task.Status)
	require.Len(t, e.queue.jobs, 1)
	assert.Equal(t, resp.Task.ID, e.queue.jobs[0].ID)
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	e := newAPIEnv(t)

	var buf bytes.Buffer
	mw := newMultipart(t, &buf, "report.pdf", strings.Repeat("x", testMaxUpload+1))
	req := httptest.NewRequest(http.MethodPost,
		"/api/participants/"+uuid.New().String()+"/reports", &buf)
	req.Header.Set("Content-Type", mw)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "FILE_TOO_LARGE", decodeErr(t, w).Error.Code)
}

func TestGetUnknownReport(t *testing.T) {
	e := newAPIEnv(t)
	w := e.do(t, http.MethodGet, "/api/reports/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBadUUIDPathParam(t *testing.T) {
	e := newAPIEnv(t)
	w := e.do(t, http.MethodGet, "/api/reports/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_ID", decodeErr(t, w).Error.Code)
}

func TestRejectWithoutReason(t *testing.T) {
	e := newAPIEnv(t)

	def, err := e.defs.Create(context.Background(), repository.CreateDefRequest{
		Code: "X", Name: "X", MinValue: 0, MaxValue: 10,
		Moderation: constants.ModerationPending,
	})
	require.NoError(t, err)

	w := e.do(t, http.MethodPost, "/api/moderation/"+def.ID.String()+"/reject", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got, err := e.defs.GetByID(context.Background(), def.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.ModerationRejected, got.ModerationStatus)
	assert.Nil(t, got.ModerationReason)
}

func TestModerationApproveThenConflict(t *testing.T) {
	e := newAPIEnv(t)

	def, err := e.defs.Create(context.Background(), repository.CreateDefRequest{
		Code: "Y", Name: "Y", MinValue: 0, MaxValue: 10,
		Moderation: constants.ModerationPending,
	})
	require.NoError(t, err)

	w := e.do(t, http.MethodPost, "/api/moderation/"+def.ID.String()+"/approve", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, "/api/moderation/"+def.ID.String()+"/reject",
		map[string]string{"reason": "duplicate"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateDefAndListUsable(t *testing.T) {
	e := newAPIEnv(t)

	w := e.do(t, http.MethodPost, "/api/metric-defs", map[string]any{
		"code": "LEADERSHIP", "name": "Leadership", "min_value": 0, "max_value": 10,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(t, http.MethodGet, "/api/metric-defs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "LEADERSHIP")
}

func TestWeightsUpsertAndList(t *testing.T) {
	e := newAPIEnv(t)

	w := e.do(t, http.MethodPut, "/api/weights/06.001", map[string]any{
		"prof_activity_name": "Software Developer",
		"entries":            []map[string]any{{"metric_def_id": uuid.New().String(), "weight": 2}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(t, http.MethodGet, "/api/weights", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Software Developer")
}

func TestScoreWithoutDataIsUnprocessable(t *testing.T) {
	e := newAPIEnv(t)

	w := e.do(t, http.MethodPut, "/api/weights/06.001", map[string]any{
		"prof_activity_name": "Software Developer",
		"entries":            []map[string]any{{"metric_def_id": uuid.New().String(), "weight": 2}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, "/api/participants/"+uuid.New().String()+"/score",
		map[string]string{"prof_activity_code": "06.001"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestExportPendingResultConflicts(t *testing.T) {
	e := newAPIEnv(t)

	res := &entity.ScoringResult{
		ID:                    uuid.New(),
		ParticipantID:         uuid.New(),
		ProfActivityCode:      "06.001",
		ScorePct:              66.7,
		RecommendationsStatus: constants.RecommendationsPending,
	}
	require.NoError(t, e.results.Create(context.Background(), res))

	w := e.do(t, http.MethodGet, "/api/scores/"+res.ID.String()+"/export", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "EXPORT_NOT_READY", decodeErr(t, w).Error.Code)
}

// newMultipart writes a single-file multipart body and returns the
// content type with its boundary.
func newMultipart(t *testing.T, buf *bytes.Buffer, filename, content string) string {
	t.Helper()
	mw := multipart.NewWriter(buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return mw.FormDataContentType()
}
