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

type ReportRepository interface {
	Create(ctx context.Context, participantID uuid.UUID, sourceFile, format string) (*entity.Report, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Report, error)
	ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]*entity.Report, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkExtracted(ctx context.Context, id uuid.UUID, warning *string) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, warning *string) error
}

type reportRepo struct {
	db  *DB
	log *slog.Logger
}

func NewReportRepository(db *DB, log *slog.Logger) ReportRepository {
	if log == nil {
		log = slog.Default()
	}
	return &reportRepo{db: db, log: log}
}

func (r *reportRepo) Create(ctx context.Context, participantID uuid.UUID, sourceFile, format string) (*entity.Report, error) {
	rep := &entity.Report{
		ID:            uuid.New(),
		ParticipantID: participantID,
		SourceFile:    sourceFile,
		Format:        format,
		Status:        constants.ReportStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	_, err := r.db.exec(ctx,
		`INSERT INTO reports (id, participant_id, source_file, format, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rep.ID.String(), rep.ParticipantID.String(), rep.SourceFile, rep.Format, string(rep.Status), rep.CreatedAt)
	if err != nil {
		r.log.Error("report create failed", "participant_id", participantID, "error", err)
		return nil, common.WrapError(err, "insert report")
	}
	r.log.Info("report created", "report_id", rep.ID, "participant_id", participantID, "format", format)
	return rep, nil
}

func (r *reportRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Report, error) {
	row := r.db.queryRow(ctx,
		`SELECT id, participant_id, source_file, format, status, extract_warning, extract_error, created_at
		 FROM reports WHERE id = ?`, id.String())
	return scanReport(row)
}

func (r *reportRepo) ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]*entity.Report, error) {
	rows, err := r.db.query(ctx,
		`SELECT id, participant_id, source_file, format, status, extract_warning, extract_error, created_at
		 FROM reports WHERE participant_id = ? ORDER BY created_at`, participantID.String())
	if err != nil {
		return nil, common.WrapError(err, "list reports")
	}
	defer rows.Close()

	var out []*entity.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

func (r *reportRepo) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.exec(ctx,
		`UPDATE reports SET status = ?, extract_warning = NULL, extract_error = NULL WHERE id = ?`,
		string(constants.ReportStatusProcessing), id.String())
	return common.WrapError(err, "mark report processing")
}

func (r *reportRepo) MarkExtracted(ctx context.Context, id uuid.UUID, warning *string) error {
	_, err := r.db.exec(ctx,
		`UPDATE reports SET status = ?, extract_warning = ?, extract_error = NULL WHERE id = ?`,
		string(constants.ReportStatusExtracted), warning, id.String())
	return common.WrapError(err, "mark report extracted")
}

func (r *reportRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, warning *string) error {
	_, err := r.db.exec(ctx,
		`UPDATE reports SET status = ?, extract_error = ?, extract_warning = ? WHERE id = ?`,
		string(constants.ReportStatusFailed), errMsg, warning, id.String())
	return common.WrapError(err, "mark report failed")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*entity.Report, error) {
	var (
		rep           entity.Report
		idStr, pidStr string
		status        string
	)
	err := row.Scan(&idStr, &pidStr, &rep.SourceFile, &rep.Format, &status,
		&rep.ExtractWarning, &rep.ExtractError, &rep.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapError(err, "scan report")
	}
	if rep.ID, err = uuid.Parse(idStr); err != nil {
		return nil, common.WrapError(err, "parse report id")
	}
	if rep.ParticipantID, err = uuid.Parse(pidStr); err != nil {
		return nil, common.WrapError(err, "parse participant id")
	}
	rep.Status = constants.ReportStatus(status)
	return &rep, nil
}
