package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/JustIkra/rksi-hackotone/constants"
	"github.com/JustIkra/rksi-hackotone/internal/common"
	"github.com/JustIkra/rksi-hackotone/internal/metrics"
	"github.com/JustIkra/rksi-hackotone/internal/repository"
	"github.com/JustIkra/rksi-hackotone/internal/vocab"
)

type MetricsHandler struct {
	svc   *metrics.Service
	defs  repository.MetricDefRepository
	cache *vocab.Cache
	log   *slog.Logger
}

func NewMetricsHandler(svc *metrics.Service, defs repository.MetricDefRepository, cache *vocab.Cache, log *slog.Logger) *MetricsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &MetricsHandler{svc: svc, defs: defs, cache: cache, log: log}
}

// GET /api/reports/:reportID/metrics
// The full metric sheet: every usable definition plus the report's
// current value where one exists.
func (h *MetricsHandler) Template(c *gin.Context) {
	reportID, err := uuid.Parse(c.Param("reportID"))
	if err != nil {
		respondError(c, common.NewAppError("BAD_ID", "report id is not a uuid", common.ErrInvalidInput))
		return
	}
	tpl, err := h.svc.Template(c.Request.Context(), reportID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, tpl)
}

// PUT /api/reports/:reportID/metrics/:metricID
// Body: {"value": 7.5}
func (h *MetricsHandler) SetManual(c *gin.Context) {
	reportID, err := uuid.Parse(c.Param("reportID"))
	if err != nil {
		respondError(c, common.NewAppError("BAD_ID", "report id is not a uuid", common.ErrInvalidInput))
		return
	}
	metricID, err := uuid.Parse(c.Param("metricID"))
	if err != nil {
		respondError(c, common.NewAppError("BAD_ID", "metric id is not a uuid", common.ErrInvalidInput))
		return
	}
	var body struct {
		Value *float64 `json:"value"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Value == nil {
		respondError(c, common.NewAppError("BAD_BODY", "json body with numeric 'value' is required", common.ErrInvalidInput))
		return
	}
	m, err := h.svc.SetManual(c.Request.Context(), reportID, metricID, *body.Value)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, m)
}

// DELETE /api/reports/:reportID/metrics/:metricID
func (h *MetricsHandler) Clear(c *gin.Context) {
	reportID, err := uuid.Parse(c.Param("reportID"))
	if err != nil {
		respondError(c, common.NewAppError("BAD_ID", "report id is not a uuid", common.ErrInvalidInput))
		return
	}
	metricID, err := uuid.Parse(c.Param("metricID"))
	if err != nil {
		respondError(c, common.NewAppError("BAD_ID", "metric id is not a uuid", common.ErrInvalidInput))
		return
	}
	if err := h.svc.Clear(c.Request.Context(), reportID, metricID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/metric-defs
// Admin-created definitions skip moderation and land APPROVED.
func (h *MetricsHandler) CreateDef(c *gin.Context) {
	var body struct {
		Code     string  `json:"code"`
		Name     string  `json:"name"`
		MinValue float64 `json:"min_value"`
		MaxValue float64 `json:"max_value"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, common.NewAppError("BAD_BODY", "metric definition body is malformed", common.ErrInvalidInput))
		return
	}
	def, err := h.defs.Create(c.Request.Context(), repository.CreateDefRequest{
		Code:       body.Code,
		Name:       body.Name,
		MinValue:   body.MinValue,
		MaxValue:   body.MaxValue,
		Moderation: constants.ModerationApproved,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	h.cache.Invalidate()
	c.JSON(http.StatusCreated, def)
}

// GET /api/metric-defs
func (h *MetricsHandler) ListDefs(c *gin.Context) {
	defs, err := h.defs.ListUsable(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"items": defs})
}

// POST /api/metric-defs/:metricID/synonyms
// Body: {"text": "умение работать в команде"}
func (h *MetricsHandler) CreateSynonym(c *gin.Context) {
	metricID, err := uuid.Parse(c.Param("metricID"))
	if err != nil {
		respondError(c, common.NewAppError("BAD_ID", "metric id is not a uuid", common.ErrInvalidInput))
		return
	}
	var body struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Text == "" {
		respondError(c, common.NewAppError("BAD_BODY", "json body with 'text' is required", common.ErrInvalidInput))
		return
	}
	syn, err := h.defs.CreateSynonym(c.Request.Context(), metricID, body.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	h.cache.Invalidate()
	c.JSON(http.StatusCreated, syn)
}
