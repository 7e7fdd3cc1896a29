package server

import (
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/JustIkra/rksi-hackotone/internal/common"
	"github.com/JustIkra/rksi-hackotone/internal/moderation"
)

type ModerationHandler struct {
	svc *moderation.Service
	log *slog.Logger
}

func NewModerationHandler(svc *moderation.Service, log *slog.Logger) *ModerationHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ModerationHandler{svc: svc, log: log}
}

// GET /api/moderation/pending?limit=&offset=
// Each item carries the AI rationale (quotes and page numbers) so a
// reviewer can decide without opening the source report.
func (h *ModerationHandler) ListPending(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	queue, err := h.svc.ListPending(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, queue)
}

// POST /api/moderation/:metricID/approve
func (h *ModerationHandler) Approve(c *gin.Context) {
	metricID, err := uuid.Parse(c.Param("metricID"))
	if err != nil {
		respondError(c, common.NewAppError("BAD_ID", "metric id is not a uuid", common.ErrInvalidInput))
		return
	}
	if err := h.svc.Approve(c.Request.Context(), metricID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"approved": true})
}

// POST /api/moderation/:metricID/reject
func (h *ModerationHandler) Reject(c *gin.Context) {
	metricID, err := uuid.Parse(c.Param("metricID"))
	if err != nil {
		respondError(c, common.NewAppError("BAD_ID", "metric id is not a uuid", common.ErrInvalidInput))
		return
	}
	// reason is optional; so is the body itself
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&body)
	if err := h.svc.Reject(c.Request.Context(), metricID, body.Reason); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"rejected": true})
}
