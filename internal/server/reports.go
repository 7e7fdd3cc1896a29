package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/JustIkra/rksi-hackotone/constants"
	"github.com/JustIkra/rksi-hackotone/internal/async"
	"github.com/JustIkra/rksi-hackotone/internal/common"
	"github.com/JustIkra/rksi-hackotone/internal/pipeline"
	"github.com/JustIkra/rksi-hackotone/internal/repository"
)

type ReportHandler struct {
	reports     repository.ReportRepository
	tasks       repository.ExtractionTaskRepository
	coordinator *pipeline.Coordinator
	queue       async.Queue
	uploadDir   string
	maxUploadB  int64
	log         *slog.Logger
}

func NewReportHandler(
	reports repository.ReportRepository,
	tasks repository.ExtractionTaskRepository,
	coordinator *pipeline.Coordinator,
	queue async.Queue,
	uploadDir string,
	maxUploadB int64,
	log *slog.Logger,
) *ReportHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ReportHandler{
		reports:     reports,
		tasks:       tasks,
		coordinator: coordinator,
		queue:       queue,
		uploadDir:   uploadDir,
		maxUploadB:  maxUploadB,
		log:         log,
	}
}

// POST /api/participants/:participantID/reports
// Accepts a PDF or DOCX upload and starts extraction immediately.
func (h *ReportHandler) Upload(c *gin.Context) {
	participantID, err := uuid.Parse(c.Param("participantID"))
	if err != nil {
		respondError(c, common.NewAppError("BAD_ID", "participant id is not a uuid", common.ErrInvalidInput))
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		respondError(c, common.NewAppError("FILE_REQUIRED", "multipart field 'file' is required", common.ErrInvalidInput))
		return
	}
	if h.maxUploadB > 0 && file.Size > h.maxUploadB {
		respondError(c, common.NewAppError("FILE_TOO_LARGE",
			fmt.Sprintf("file is %d bytes, limit is %d", file.Size, h.maxUploadB),
			common.ErrInvalidInput))
		return
	}
	format := constants.MapExtToFormat(filepath.Ext(file.Filename))
	if format == "" {
		respondError(c, common.NewAppError("FORMAT_UNSUPPORTED",
			fmt.Sprintf("unsupported file extension %q, allowed: pdf, docx", filepath.Ext(file.Filename)),
			common.ErrInvalidInput))
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		respondError(c, err)
		return
	}
	dst := filepath.Join(h.uploadDir, uuid.New().String()+"_"+filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, dst); err != nil {
		respondError(c, err)
		return
	}

	report, err := h.reports.Create(c.Request.Context(), participantID, dst, format)
	if err != nil {
		respondError(c, err)
		return
	}
	task, err := h.coordinator.Submit(c.Request.Context(), report.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	_ = h.queue.Enqueue(c.Request.Context(), async.Job{ID: task.ID, SubmittedAt: time.Now()})

	c.JSON(http.StatusAccepted, gin.H{"report": report, "task": task})
}

// POST /api/reports/:reportID/extract
// Re-runs extraction over an already uploaded report. Manual metric
// values survive the re-run.
func (h *ReportHandler) ReExtract(c *gin.Context) {
	reportID, err := uuid.Parse(c.Param("reportID"))
	if err != nil {
		respondError(c, common.NewAppError("BAD_ID", "report id is not a uuid", common.ErrInvalidInput))
		return
	}
	task, err := h.coordinator.Submit(c.Request.Context(), reportID)
	if err != nil {
		respondError(c, err)
		return
	}
	_ = h.queue.Enqueue(c.Request.Context(), async.Job{ID: task.ID, SubmittedAt: time.Now()})
	c.JSON(http.StatusAccepted, gin.H{"task": task})
}

// GET /api/reports/:reportID
func (h *ReportHandler) Get(c *gin.Context) {
	reportID, err := uuid.Parse(c.Param("reportID"))
	if err != nil {
		respondError(c, common.NewAppError("BAD_ID", "report id is not a uuid", common.ErrInvalidInput))
		return
	}
	report, err := h.reports.GetByID(c.Request.Context(), reportID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, report)
}

// GET /api/participants/:participantID/reports
func (h *ReportHandler) ListByParticipant(c *gin.Context) {
	participantID, err := uuid.Parse(c.Param("participantID"))
	if err != nil {
		respondError(c, common.NewAppError("BAD_ID", "participant id is not a uuid", common.ErrInvalidInput))
		return
	}
	reports, err := h.reports.ListByParticipant(c.Request.Context(), participantID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"items": reports})
}

// GET /api/reports/:reportID/task
// Polling endpoint for extraction progress.
func (h *ReportHandler) TaskStatus(c *gin.Context) {
	reportID, err := uuid.Parse(c.Param("reportID"))
	if err != nil {
		respondError(c, common.NewAppError("BAD_ID", "report id is not a uuid", common.ErrInvalidInput))
		return
	}
	task, err := h.tasks.GetLatestByReport(c.Request.Context(), reportID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, task)
}

// POST /api/tasks/:taskID/cancel
// Cancellation is honored between pages; a terminal task is unaffected.
func (h *ReportHandler) CancelTask(c *gin.Context) {
	taskID, err := uuid.Parse(c.Param("taskID"))
	if err != nil {
		respondError(c, common.NewAppError("BAD_ID", "task id is not a uuid", common.ErrInvalidInput))
		return
	}
	if err := h.tasks.RequestCancel(c.Request.Context(), taskID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"cancel_requested": true})
}
