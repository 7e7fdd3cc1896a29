package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/JustIkra/rksi-hackotone/constants"
)

// WeightTable maps metrics to importance weights for one professional
// activity. Weights need not sum to 1; normalization happens at scoring.
type WeightTable struct {
	ID               uuid.UUID     `json:"id"`
	ProfActivityCode string        `json:"prof_activity_code"`
	ProfActivityName string        `json:"prof_activity_name"`
	Entries          []WeightEntry `json:"entries"`
	Active           bool          `json:"active"`
}

// WeightEntry is one (metric, weight) pair in a weight table.
type WeightEntry struct {
	MetricDefID uuid.UUID `json:"metric_def_id"`
	Weight      float64   `json:"weight"`
}

// ScoredEntry is one metric's contribution inside a scoring result.
type ScoredEntry struct {
	MetricDefID uuid.UUID `json:"metric_def_id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Value       float64   `json:"value"`
	Weight      float64   `json:"weight"`
}

// ScoringResult is one suitability computation for a participant
// against a professional activity. Immutable except the recommendation
// fields, which leave PENDING exactly once.
type ScoringResult struct {
	ID               uuid.UUID `json:"id"`
	ParticipantID    uuid.UUID `json:"participant_id"`
	ProfActivityCode string    `json:"prof_activity_code"`
	// ProfActivityName comes from the weight table at scoring time and is
	// not persisted with the result.
	ProfActivityName      string                          `json:"prof_activity_name,omitempty"`
	ScorePct              float64                         `json:"score_pct"`
	Strengths             []ScoredEntry                   `json:"strengths"`
	DevAreas              []ScoredEntry                   `json:"dev_areas"`
	RecommendationsStatus constants.RecommendationsStatus `json:"recommendations_status"`
	RecommendationsError  *string                         `json:"recommendations_error,omitempty"`
	Recommendations       []string                        `json:"recommendations,omitempty"`
	CreatedAt             time.Time                       `json:"created_at"`
}
