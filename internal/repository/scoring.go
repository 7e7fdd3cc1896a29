package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JustIkra/rksi-hackotone/constants"
	"github.com/JustIkra/rksi-hackotone/internal/common"
	"github.com/JustIkra/rksi-hackotone/internal/entity"
)

type ScoringResultRepository interface {
	Create(ctx context.Context, res *entity.ScoringResult) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.ScoringResult, error)
	// ListByParticipant returns the full history, newest first.
	ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]*entity.ScoringResult, error)
	// SetRecommendationsReady moves PENDING to READY exactly once.
	SetRecommendationsReady(ctx context.Context, id uuid.UUID, recs []string) error
	// SetRecommendationsError moves PENDING to ERROR exactly once.
	SetRecommendationsError(ctx context.Context, id uuid.UUID, errMsg string) error
}

type scoringRepo struct {
	db  *DB
	log *slog.Logger
}

func NewScoringResultRepository(db *DB, log *slog.Logger) ScoringResultRepository {
	if log == nil {
		log = slog.Default()
	}
	return &scoringRepo{db: db, log: log}
}

func (r *scoringRepo) Create(ctx context.Context, res *entity.ScoringResult) error {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	strengths, err := json.Marshal(res.Strengths)
	if err != nil {
		return common.WrapError(err, "marshal strengths")
	}
	devAreas, err := json.Marshal(res.DevAreas)
	if err != nil {
		return common.WrapError(err, "marshal dev areas")
	}
	var recs *string
	if res.Recommendations != nil {
		b, err := json.Marshal(res.Recommendations)
		if err != nil {
			return common.WrapError(err, "marshal recommendations")
		}
		s := string(b)
		recs = &s
	}
	_, err = r.db.exec(ctx,
		`INSERT INTO scoring_results (id, participant_id, prof_activity_code, score_pct,
			strengths, dev_areas, recommendations_status, recommendations_error, recommendations, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID.String(), res.ParticipantID.String(), res.ProfActivityCode, res.ScorePct,
		string(strengths), string(devAreas), string(res.RecommendationsStatus),
		res.RecommendationsError, recs, res.CreatedAt)
	if err != nil {
		r.log.Error("scoring result create failed", "participant_id", res.ParticipantID, "error", err)
		return common.WrapError(err, "insert scoring result")
	}
	r.log.Info("scoring result stored",
		"result_id", res.ID, "participant_id", res.ParticipantID,
		"activity", res.ProfActivityCode, "score_pct", res.ScorePct)
	return nil
}

const selectScoring = `SELECT id, participant_id, prof_activity_code, score_pct,
	strengths, dev_areas, recommendations_status, recommendations_error, recommendations, created_at
	FROM scoring_results`

func (r *scoringRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.ScoringResult, error) {
	row := r.db.queryRow(ctx, selectScoring+` WHERE id = ?`, id.String())
	return scanScoring(row)
}

func (r *scoringRepo) ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]*entity.ScoringResult, error) {
	rows, err := r.db.query(ctx,
		selectScoring+` WHERE participant_id = ? ORDER BY created_at DESC`, participantID.String())
	if err != nil {
		return nil, common.WrapError(err, "list scoring results")
	}
	defer rows.Close()

	var out []*entity.ScoringResult
	for rows.Next() {
		res, err := scanScoring(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *scoringRepo) SetRecommendationsReady(ctx context.Context, id uuid.UUID, recs []string) error {
	b, err := json.Marshal(recs)
	if err != nil {
		return common.WrapError(err, "marshal recommendations")
	}
	return r.recTransition(ctx, id,
		`UPDATE scoring_results SET recommendations_status = ?, recommendations = ?
		 WHERE id = ? AND recommendations_status = ?`,
		string(constants.RecommendationsReady), string(b), id.String(),
		string(constants.RecommendationsPending))
}

func (r *scoringRepo) SetRecommendationsError(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.recTransition(ctx, id,
		`UPDATE scoring_results SET recommendations_status = ?, recommendations_error = ?
		 WHERE id = ? AND recommendations_status = ?`,
		string(constants.RecommendationsError), errMsg, id.String(),
		string(constants.RecommendationsPending))
}

func (r *scoringRepo) recTransition(ctx context.Context, id uuid.UUID, query string, args ...any) error {
	res, err := r.db.exec(ctx, query, args...)
	if err != nil {
		r.log.Error("recommendations transition failed", "result_id", id, "error", err)
		return common.WrapError(err, "recommendations transition")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.WrapError(err, "rows affected")
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, id); errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return common.NewAppError("RECOMMENDATIONS_DECIDED",
			"recommendations already reached a terminal state", common.ErrConflict)
	}
	return nil
}

func scanScoring(row rowScanner) (*entity.ScoringResult, error) {
	var (
		res                 entity.ScoringResult
		idStr, pidStr       string
		status              string
		strengths, devAreas string
		recs                sql.NullString
	)
	err := row.Scan(&idStr, &pidStr, &res.ProfActivityCode, &res.ScorePct,
		&strengths, &devAreas, &status, &res.RecommendationsError, &recs, &res.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapError(err, "scan scoring result")
	}
	if res.ID, err = uuid.Parse(idStr); err != nil {
		return nil, common.WrapError(err, "parse result id")
	}
	if res.ParticipantID, err = uuid.Parse(pidStr); err != nil {
		return nil, common.WrapError(err, "parse participant id")
	}
	res.RecommendationsStatus = constants.RecommendationsStatus(status)
	if err := json.Unmarshal([]byte(strengths), &res.Strengths); err != nil {
		return nil, common.WrapError(err, "unmarshal strengths")
	}
	if err := json.Unmarshal([]byte(devAreas), &res.DevAreas); err != nil {
		return nil, common.WrapError(err, "unmarshal dev areas")
	}
	if recs.Valid && recs.String != "" {
		if err := json.Unmarshal([]byte(recs.String), &res.Recommendations); err != nil {
			return nil, common.WrapError(err, "unmarshal recommendations")
		}
	}
	return &res, nil
}
