package constants

// ReportStatus is the canonical status for rows in reports.
type ReportStatus string

// Stable values (store these exact strings in DB).
const (
	ReportStatusPending    ReportStatus = "PENDING"    // uploaded, extraction not started
	ReportStatusProcessing ReportStatus = "PROCESSING" // extraction in flight
	ReportStatusExtracted  ReportStatus = "EXTRACTED"  // extraction finished with data
	ReportStatusFailed     ReportStatus = "FAILED"     // terminal failure
)

// TaskStatus is the canonical status for rows in extraction_tasks.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusProcessing TaskStatus = "PROCESSING"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusFailed     TaskStatus = "FAILED"
)

// Terminal reports whether the task can never change status again.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// ModerationStatus gates AI-proposed metric definitions.
type ModerationStatus string

const (
	ModerationApproved ModerationStatus = "APPROVED"
	ModerationPending  ModerationStatus = "PENDING"
	ModerationRejected ModerationStatus = "REJECTED" // terminal, no re-approval
)

// RecommendationsStatus tracks narrative generation on a scoring result.
type RecommendationsStatus string

const (
	RecommendationsPending  RecommendationsStatus = "PENDING"
	RecommendationsReady    RecommendationsStatus = "READY"
	RecommendationsError    RecommendationsStatus = "ERROR"
	RecommendationsDisabled RecommendationsStatus = "DISABLED"
)

// Terminal reports whether the status can never change again.
func (s RecommendationsStatus) Terminal() bool {
	return s != RecommendationsPending
}

// Exportable reports whether the final artifact may be compiled.
func (s RecommendationsStatus) Exportable() bool {
	return s == RecommendationsReady || s == RecommendationsDisabled
}
