package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/JustIkra/rksi-hackotone/internal/common"
	"github.com/JustIkra/rksi-hackotone/internal/entity"
	"github.com/JustIkra/rksi-hackotone/internal/repository"
	"github.com/JustIkra/rksi-hackotone/internal/scoring"
)

type ScoringHandler struct {
	svc     *scoring.Service
	weights repository.WeightTableRepository
	log     *slog.Logger
}

func NewScoringHandler(svc *scoring.Service, weights repository.WeightTableRepository, log *slog.Logger) *ScoringHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ScoringHandler{svc: svc, weights: weights, log: log}
}

// POST /api/participants/:participantID/score
// Body: {"prof_activity_code": "06.001"}
func (h *ScoringHandler) Score(c *gin.Context) {
	participantID, err := uuid.Parse(c.Param("participantID"))
	if err != nil {
		respondError(c, common.NewAppError("BAD_ID", "participant id is not a uuid", common.ErrInvalidInput))
		return
	}
	var body struct {
		ProfActivityCode string `json:"prof_activity_code"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.ProfActivityCode == "" {
		respondError(c, common.NewAppError("BAD_BODY", "json body with 'prof_activity_code' is required", common.ErrInvalidInput))
		return
	}

	result, err := h.svc.Score(c.Request.Context(), participantID, body.ProfActivityCode)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// GET /api/participants/:participantID/scores
func (h *ScoringHandler) History(c *gin.Context) {
	participantID, err := uuid.Parse(c.Param("participantID"))
	if err != nil {
		respondError(c, common.NewAppError("BAD_ID", "participant id is not a uuid", common.ErrInvalidInput))
		return
	}
	history, err := h.svc.History(c.Request.Context(), participantID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"items": history})
}

// GET /api/scores/:resultID
// Clients poll this while recommendations are PENDING.
func (h *ScoringHandler) Get(c *gin.Context) {
	resultID, err := uuid.Parse(c.Param("resultID"))
	if err != nil {
		respondError(c, common.NewAppError("BAD_ID", "result id is not a uuid", common.ErrInvalidInput))
		return
	}
	result, err := h.svc.Result(c.Request.Context(), resultID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

// PUT /api/weights/:activityCode
// Replaces the whole weight table for an activity.
func (h *ScoringHandler) UpsertWeights(c *gin.Context) {
	code := c.Param("activityCode")
	var body struct {
		ProfActivityName string               `json:"prof_activity_name"`
		Entries          []entity.WeightEntry `json:"entries"`
		Active           *bool                `json:"active"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, common.NewAppError("BAD_BODY", "weight table body is malformed", common.ErrInvalidInput))
		return
	}
	active := true
	if body.Active != nil {
		active = *body.Active
	}
	wt := &entity.WeightTable{
		ProfActivityCode: code,
		ProfActivityName: body.ProfActivityName,
		Entries:          body.Entries,
		Active:           active,
	}
	if err := h.weights.Upsert(c.Request.Context(), wt); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, wt)
}

// GET /api/weights
func (h *ScoringHandler) ListWeights(c *gin.Context) {
	tables, err := h.weights.ListActive(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"items": tables})
}
