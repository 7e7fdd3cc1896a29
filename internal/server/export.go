package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/JustIkra/rksi-hackotone/internal/common"
	"github.com/JustIkra/rksi-hackotone/internal/export"
)

type ExportHandler struct {
	svc *export.Service
	log *slog.Logger
}

func NewExportHandler(svc *export.Service, log *slog.Logger) *ExportHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ExportHandler{svc: svc, log: log}
}

// GET /api/scores/:resultID/export
// Streams the assessment workbook. Returns 409 while recommendations
// are still pending.
func (h *ExportHandler) ResultXLSX(c *gin.Context) {
	resultID, err := uuid.Parse(c.Param("resultID"))
	if err != nil {
		respondError(c, common.NewAppError("BAD_ID", "result id is not a uuid", common.ErrInvalidInput))
		return
	}
	data, err := h.svc.ExportResultXLSX(c.Request.Context(), resultID)
	if err != nil {
		respondError(c, err)
		return
	}
	filename := fmt.Sprintf("assessment_%s.xlsx", resultID.String())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
