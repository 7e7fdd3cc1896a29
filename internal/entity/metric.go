package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/JustIkra/rksi-hackotone/constants"
)

// MetricDef is a canonical vocabulary entry for a scored trait.
type MetricDef struct {
	ID               uuid.UUID                  `json:"id"`
	Code             string                     `json:"code"`
	Name             string                     `json:"name"`
	MinValue         float64                    `json:"min_value"`
	MaxValue         float64                    `json:"max_value"`
	CategoryID       *uuid.UUID                 `json:"category_id,omitempty"`
	Active           bool                       `json:"active"`
	ModerationStatus constants.ModerationStatus `json:"moderation_status"`
	ModerationReason *string                    `json:"moderation_reason,omitempty"`
	AIRationale      *AIRationale               `json:"ai_rationale,omitempty"`
	Embedding        []float64                  `json:"-"`
	CreatedAt        time.Time                  `json:"created_at"`
}

// Usable reports whether the definition may participate in resolution
// lookups and scoring.
func (d *MetricDef) Usable() bool {
	return d.Active && d.ModerationStatus == constants.ModerationApproved
}

// AIRationale justifies an AI-proposed metric definition for moderators.
type AIRationale struct {
	Quotes      []string `json:"quotes"`
	PageNumbers []int    `json:"page_numbers"`
}

// MetricSynonym maps an alternative label to a metric definition.
// Text is unique across the whole synonym table.
type MetricSynonym struct {
	ID          uuid.UUID `json:"id"`
	MetricDefID uuid.UUID `json:"metric_def_id"`
	Text        string    `json:"text"`
}

// ExtractedMetric is the current value of one metric for one report.
// Unique per (report_id, metric_def_id), last write wins under the
// merge policy.
type ExtractedMetric struct {
	ReportID    uuid.UUID              `json:"report_id"`
	MetricDefID uuid.UUID              `json:"metric_def_id"`
	Value       float64                `json:"value"`
	Source      constants.MetricSource `json:"source"`
	Confidence  *float32               `json:"confidence,omitempty"`
	Page        int                    `json:"page"`
	Notes       *string                `json:"notes,omitempty"`
	UpdatedAt   time.Time              `json:"updated_at"`
}
