package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JustIkra/rksi-hackotone/constants"
	"github.com/JustIkra/rksi-hackotone/internal/common"
	"github.com/JustIkra/rksi-hackotone/internal/entity"
)

type ExtractedMetricRepository interface {
	Get(ctx context.Context, reportID, metricDefID uuid.UUID) (*entity.ExtractedMetric, error)
	// Upsert inserts or replaces the value for (report, metric). Merge
	// policy is decided by the caller; the repository writes what it is
	// given.
	Upsert(ctx context.Context, m *entity.ExtractedMetric) error
	Delete(ctx context.Context, reportID, metricDefID uuid.UUID) error
	ListByReport(ctx context.Context, reportID uuid.UUID) ([]*entity.ExtractedMetric, error)
	ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]*entity.ExtractedMetric, error)
}

type extractedRepo struct {
	db  *DB
	log *slog.Logger
}

func NewExtractedMetricRepository(db *DB, log *slog.Logger) ExtractedMetricRepository {
	if log == nil {
		log = slog.Default()
	}
	return &extractedRepo{db: db, log: log}
}

const selectExtracted = `SELECT report_id, metric_def_id, value, source, confidence, page, notes, updated_at
	FROM extracted_metrics`

func (r *extractedRepo) Get(ctx context.Context, reportID, metricDefID uuid.UUID) (*entity.ExtractedMetric, error) {
	row := r.db.queryRow(ctx, selectExtracted+` WHERE report_id = ? AND metric_def_id = ?`,
		reportID.String(), metricDefID.String())
	return scanExtracted(row)
}

func (r *extractedRepo) Upsert(ctx context.Context, m *entity.ExtractedMetric) error {
	if !m.Source.Valid() {
		return common.NewAppError("SOURCE_INVALID", "unknown metric source", common.ErrInvalidInput)
	}
	m.UpdatedAt = time.Now().UTC()
	_, err := r.db.exec(ctx,
		`INSERT INTO extracted_metrics (report_id, metric_def_id, value, source, confidence, page, notes, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (report_id, metric_def_id) DO UPDATE SET
			value = excluded.value,
			source = excluded.source,
			confidence = excluded.confidence,
			page = excluded.page,
			notes = excluded.notes,
			updated_at = excluded.updated_at`,
		m.ReportID.String(), m.MetricDefID.String(), m.Value, string(m.Source),
		m.Confidence, m.Page, m.Notes, m.UpdatedAt)
	if err != nil {
		r.log.Error("extracted metric upsert failed",
			"report_id", m.ReportID, "metric_id", m.MetricDefID, "error", err)
		return common.WrapError(err, "upsert extracted metric")
	}
	return nil
}

func (r *extractedRepo) Delete(ctx context.Context, reportID, metricDefID uuid.UUID) error {
	res, err := r.db.exec(ctx,
		`DELETE FROM extracted_metrics WHERE report_id = ? AND metric_def_id = ?`,
		reportID.String(), metricDefID.String())
	if err != nil {
		return common.WrapError(err, "delete extracted metric")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.WrapError(err, "rows affected")
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *extractedRepo) ListByReport(ctx context.Context, reportID uuid.UUID) ([]*entity.ExtractedMetric, error) {
	rows, err := r.db.query(ctx, selectExtracted+` WHERE report_id = ?`, reportID.String())
	if err != nil {
		return nil, common.WrapError(err, "list extracted metrics")
	}
	return collectExtracted(rows)
}

// ListByParticipant gathers values across every report of the
// participant, newest report first so later uploads win downstream.
func (r *extractedRepo) ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]*entity.ExtractedMetric, error) {
	rows, err := r.db.query(ctx,
		`SELECT em.report_id, em.metric_def_id, em.value, em.source, em.confidence, em.page, em.notes, em.updated_at
		 FROM extracted_metrics em
		 JOIN reports r ON r.id = em.report_id
		 WHERE r.participant_id = ?
		 ORDER BY r.created_at DESC`, participantID.String())
	if err != nil {
		return nil, common.WrapError(err, "list participant metrics")
	}
	return collectExtracted(rows)
}

func scanExtracted(row rowScanner) (*entity.ExtractedMetric, error) {
	var (
		m              entity.ExtractedMetric
		repStr, defStr string
		source         string
	)
	err := row.Scan(&repStr, &defStr, &m.Value, &source, &m.Confidence, &m.Page, &m.Notes, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapError(err, "scan extracted metric")
	}
	if m.ReportID, err = uuid.Parse(repStr); err != nil {
		return nil, common.WrapError(err, "parse report id")
	}
	if m.MetricDefID, err = uuid.Parse(defStr); err != nil {
		return nil, common.WrapError(err, "parse metric id")
	}
	m.Source = constants.MetricSource(source)
	return &m, nil
}

func collectExtracted(rows *sql.Rows) ([]*entity.ExtractedMetric, error) {
	defer rows.Close()
	var out []*entity.ExtractedMetric
	for rows.Next() {
		m, err := scanExtracted(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
