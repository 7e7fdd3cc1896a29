package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/JustIkra/rksi-hackotone/constants"
)

// Report represents an uploaded participant document.
type Report struct {
	ID             uuid.UUID              `json:"id"`
	ParticipantID  uuid.UUID              `json:"participant_id"`
	SourceFile     string                 `json:"source_file"`
	Format         string                 `json:"format"` // constants.PDF | constants.DOCX
	Status         constants.ReportStatus `json:"status"`
	ExtractWarning *string                `json:"extract_warning,omitempty"`
	ExtractError   *string                `json:"extract_error,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// ExtractionTask tracks one asynchronous extraction run over a report.
type ExtractionTask struct {
	ID             uuid.UUID            `json:"id"`
	ReportID       uuid.UUID            `json:"report_id"`
	Status         constants.TaskStatus `json:"status"`
	ProgressPct    int                  `json:"progress_pct"`
	CurrentStep    string               `json:"current_step"`
	TotalPages     int                  `json:"total_pages"`
	ProcessedPages int                  `json:"processed_pages"`
	MetricsFound   int                  `json:"metrics_found"`
	ErrorMessage   *string              `json:"error_message,omitempty"`
	CancelRequest  bool                 `json:"cancel_requested"`
	StartedAt      time.Time            `json:"started_at"`
	FinishedAt     *time.Time           `json:"finished_at,omitempty"`
}
