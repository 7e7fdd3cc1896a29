package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JustIkra/rksi-hackotone/constants"
	"github.com/JustIkra/rksi-hackotone/internal/common"
	"github.com/JustIkra/rksi-hackotone/internal/entity"
)

// CreateDefRequest wraps parameters for creating a metric definition.
type CreateDefRequest struct {
	Code        string
	Name        string
	MinValue    float64
	MaxValue    float64
	CategoryID  *uuid.UUID
	Moderation  constants.ModerationStatus
	AIRationale *entity.AIRationale
}

type MetricDefRepository interface {
	Create(ctx context.Context, req CreateDefRequest) (*entity.MetricDef, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.MetricDef, error)
	GetByCode(ctx context.Context, code string) (*entity.MetricDef, error)
	// ListUsable returns APPROVED and active definitions, embeddings included.
	ListUsable(ctx context.Context) ([]*entity.MetricDef, error)
	ListPending(ctx context.Context, limit, offset int) ([]*entity.MetricDef, int, error)
	// SetModeration transitions PENDING to APPROVED/REJECTED; first writer
	// wins, the loser gets ErrConflict.
	SetModeration(ctx context.Context, id uuid.UUID, status constants.ModerationStatus, reason *string) error
	SetEmbedding(ctx context.Context, id uuid.UUID, embedding []float64) error

	CreateSynonym(ctx context.Context, metricDefID uuid.UUID, text string) (*entity.MetricSynonym, error)
	ListSynonyms(ctx context.Context) ([]*entity.MetricSynonym, error)
}

type metricDefRepo struct {
	db  *DB
	log *slog.Logger
}

func NewMetricDefRepository(db *DB, log *slog.Logger) MetricDefRepository {
	if log == nil {
		log = slog.Default()
	}
	return &metricDefRepo{db: db, log: log}
}

func (r *metricDefRepo) Create(ctx context.Context, req CreateDefRequest) (*entity.MetricDef, error) {
	if req.Code == "" || req.Name == "" {
		return nil, common.NewAppError("METRIC_INVALID", "code and name are required", common.ErrInvalidInput)
	}
	if req.MaxValue <= req.MinValue {
		return nil, common.NewAppError("METRIC_INVALID", "max_value must exceed min_value", common.ErrInvalidInput)
	}
	if existing, err := r.GetByCode(ctx, req.Code); err == nil && existing != nil {
		return nil, common.NewAppError("METRIC_CODE_TAKEN",
			fmt.Sprintf("metric code %q already exists", req.Code), common.ErrConflict)
	}

	def := &entity.MetricDef{
		ID:               uuid.New(),
		Code:             req.Code,
		Name:             req.Name,
		MinValue:         req.MinValue,
		MaxValue:         req.MaxValue,
		CategoryID:       req.CategoryID,
		Active:           true,
		ModerationStatus: req.Moderation,
		AIRationale:      req.AIRationale,
		CreatedAt:        time.Now().UTC(),
	}
	var rationale *string
	if req.AIRationale != nil {
		b, err := json.Marshal(req.AIRationale)
		if err != nil {
			return nil, common.WrapError(err, "marshal rationale")
		}
		s := string(b)
		rationale = &s
	}
	var category *string
	if req.CategoryID != nil {
		s := req.CategoryID.String()
		category = &s
	}
	_, err := r.db.exec(ctx,
		`INSERT INTO metric_defs (id, code, name, min_value, max_value, category_id, active, moderation_status, ai_rationale, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, TRUE, ?, ?, ?)`,
		def.ID.String(), def.Code, def.Name, def.MinValue, def.MaxValue, category,
		string(def.ModerationStatus), rationale, def.CreatedAt)
	if err != nil {
		r.log.Error("metric def create failed", "code", req.Code, "error", err)
		return nil, common.WrapError(err, "insert metric def")
	}
	r.log.Info("metric def created", "metric_id", def.ID, "code", def.Code, "moderation", def.ModerationStatus)
	return def, nil
}

func (r *metricDefRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.MetricDef, error) {
	row := r.db.queryRow(ctx, selectDef+` WHERE id = ?`, id.String())
	return scanDef(row)
}

func (r *metricDefRepo) GetByCode(ctx context.Context, code string) (*entity.MetricDef, error) {
	row := r.db.queryRow(ctx, selectDef+` WHERE code = ?`, code)
	return scanDef(row)
}

func (r *metricDefRepo) ListUsable(ctx context.Context) ([]*entity.MetricDef, error) {
	rows, err := r.db.query(ctx,
		selectDef+` WHERE moderation_status = ? AND active = TRUE ORDER BY code`,
		string(constants.ModerationApproved))
	if err != nil {
		return nil, common.WrapError(err, "list usable defs")
	}
	return collectDefs(rows)
}

func (r *metricDefRepo) ListPending(ctx context.Context, limit, offset int) ([]*entity.MetricDef, int, error) {
	if limit <= 0 {
		limit = 20
	}
	var total int
	err := r.db.queryRow(ctx,
		`SELECT COUNT(*) FROM metric_defs WHERE moderation_status = ?`,
		string(constants.ModerationPending)).Scan(&total)
	if err != nil {
		return nil, 0, common.WrapError(err, "count pending defs")
	}
	rows, err := r.db.query(ctx,
		selectDef+` WHERE moderation_status = ? ORDER BY created_at, code LIMIT ? OFFSET ?`,
		string(constants.ModerationPending), limit, offset)
	if err != nil {
		return nil, 0, common.WrapError(err, "list pending defs")
	}
	defs, err := collectDefs(rows)
	return defs, total, err
}

func (r *metricDefRepo) SetModeration(ctx context.Context, id uuid.UUID, status constants.ModerationStatus, reason *string) error {
	res, err := r.db.exec(ctx,
		`UPDATE metric_defs SET moderation_status = ?, moderation_reason = ?
		 WHERE id = ? AND moderation_status = ?`,
		string(status), reason, id.String(), string(constants.ModerationPending))
	if err != nil {
		r.log.Error("moderation update failed", "metric_id", id, "error", err)
		return common.WrapError(err, "set moderation")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.WrapError(err, "rows affected")
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, id); errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return common.NewAppError("MODERATION_DECIDED",
			"metric was already approved or rejected by another reviewer", common.ErrConflict)
	}
	r.log.Info("metric moderation decided", "metric_id", id, "status", status)
	return nil
}

func (r *metricDefRepo) SetEmbedding(ctx context.Context, id uuid.UUID, embedding []float64) error {
	b, err := json.Marshal(embedding)
	if err != nil {
		return common.WrapError(err, "marshal embedding")
	}
	_, err = r.db.exec(ctx, `UPDATE metric_defs SET embedding = ? WHERE id = ?`, string(b), id.String())
	return common.WrapError(err, "set embedding")
}

func (r *metricDefRepo) CreateSynonym(ctx context.Context, metricDefID uuid.UUID, text string) (*entity.MetricSynonym, error) {
	if text == "" {
		return nil, common.NewAppError("SYNONYM_INVALID", "text is required", common.ErrInvalidInput)
	}
	// surface the existing owner on duplicate text instead of a bare
	// unique-constraint failure
	var ownerID string
	err := r.db.queryRow(ctx,
		`SELECT metric_def_id FROM metric_synonyms WHERE text = ?`, text).Scan(&ownerID)
	switch {
	case err == nil:
		owner, gerr := r.GetByID(ctx, uuid.MustParse(ownerID))
		code := ownerID
		if gerr == nil {
			code = owner.Code
		}
		return nil, common.NewAppError("SYNONYM_TAKEN",
			fmt.Sprintf("synonym %q already points at metric %s", text, code), common.ErrConflict)
	case errors.Is(err, sql.ErrNoRows):
		// free to insert
	default:
		return nil, common.WrapError(err, "check synonym")
	}

	syn := &entity.MetricSynonym{ID: uuid.New(), MetricDefID: metricDefID, Text: text}
	_, err = r.db.exec(ctx,
		`INSERT INTO metric_synonyms (id, metric_def_id, text) VALUES (?, ?, ?)`,
		syn.ID.String(), metricDefID.String(), text)
	if err != nil {
		r.log.Error("synonym create failed", "text", text, "error", err)
		return nil, common.WrapError(err, "insert synonym")
	}
	return syn, nil
}

func (r *metricDefRepo) ListSynonyms(ctx context.Context) ([]*entity.MetricSynonym, error) {
	rows, err := r.db.query(ctx, `SELECT id, metric_def_id, text FROM metric_synonyms`)
	if err != nil {
		return nil, common.WrapError(err, "list synonyms")
	}
	defer rows.Close()

	var out []*entity.MetricSynonym
	for rows.Next() {
		var s entity.MetricSynonym
		var idStr, defStr string
		if err := rows.Scan(&idStr, &defStr, &s.Text); err != nil {
			return nil, common.WrapError(err, "scan synonym")
		}
		if s.ID, err = uuid.Parse(idStr); err != nil {
			return nil, common.WrapError(err, "parse synonym id")
		}
		if s.MetricDefID, err = uuid.Parse(defStr); err != nil {
			return nil, common.WrapError(err, "parse synonym metric id")
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

const selectDef = `SELECT id, code, name, min_value, max_value, category_id, active,
	moderation_status, moderation_reason, ai_rationale, embedding, created_at
	FROM metric_defs`

func scanDef(row rowScanner) (*entity.MetricDef, error) {
	var (
		d                        entity.MetricDef
		idStr, status            string
		category, rationale, emb sql.NullString
	)
	err := row.Scan(&idStr, &d.Code, &d.Name, &d.MinValue, &d.MaxValue, &category, &d.Active,
		&status, &d.ModerationReason, &rationale, &emb, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapError(err, "scan metric def")
	}
	if d.ID, err = uuid.Parse(idStr); err != nil {
		return nil, common.WrapError(err, "parse metric id")
	}
	d.ModerationStatus = constants.ModerationStatus(status)
	if category.Valid {
		cid, err := uuid.Parse(category.String)
		if err != nil {
			return nil, common.WrapError(err, "parse category id")
		}
		d.CategoryID = &cid
	}
	if rationale.Valid {
		var ar entity.AIRationale
		if err := json.Unmarshal([]byte(rationale.String), &ar); err != nil {
			return nil, common.WrapError(err, "unmarshal rationale")
		}
		d.AIRationale = &ar
	}
	if emb.Valid && emb.String != "" {
		if err := json.Unmarshal([]byte(emb.String), &d.Embedding); err != nil {
			return nil, common.WrapError(err, "unmarshal embedding")
		}
	}
	return &d, nil
}

func collectDefs(rows *sql.Rows) ([]*entity.MetricDef, error) {
	defer rows.Close()
	var out []*entity.MetricDef
	for rows.Next() {
		d, err := scanDef(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
