package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JustIkra/rksi-hackotone/constants"
	"github.com/JustIkra/rksi-hackotone/internal/common"
	"github.com/JustIkra/rksi-hackotone/internal/entity"
)

type ExtractionTaskRepository interface {
	// Admit creates a new PENDING task for the report unless a
	// non-terminal task already exists; in that case ErrConflict.
	Admit(ctx context.Context, reportID uuid.UUID) (*entity.ExtractionTask, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.ExtractionTask, error)
	GetLatestByReport(ctx context.Context, reportID uuid.UUID) (*entity.ExtractionTask, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	UpdateProgress(ctx context.Context, id uuid.UUID, step string, totalPages, processedPages, metricsFound int) error
	Complete(ctx context.Context, id uuid.UUID) error
	Fail(ctx context.Context, id uuid.UUID, errMsg string) error
	RequestCancel(ctx context.Context, id uuid.UUID) error
	CancelRequested(ctx context.Context, id uuid.UUID) (bool, error)
}

type taskRepo struct {
	db  *DB
	log *slog.Logger
}

func NewExtractionTaskRepository(db *DB, log *slog.Logger) ExtractionTaskRepository {
	if log == nil {
		log = slog.Default()
	}
	return &taskRepo{db: db, log: log}
}

func (r *taskRepo) Admit(ctx context.Context, reportID uuid.UUID) (*entity.ExtractionTask, error) {
	task := &entity.ExtractionTask{
		ID:        uuid.New(),
		ReportID:  reportID,
		Status:    constants.TaskStatusPending,
		StartedAt: time.Now().UTC(),
	}
	// compare-and-set: at most one non-terminal task per report
	res, err := r.db.exec(ctx,
		`INSERT INTO extraction_tasks (id, report_id, status, current_step, started_at)
		 SELECT ?, ?, ?, ?, ?
		 WHERE NOT EXISTS (
			SELECT 1 FROM extraction_tasks
			WHERE report_id = ? AND status IN (?, ?)
		 )`,
		task.ID.String(), reportID.String(), string(task.Status), "queued", task.StartedAt,
		reportID.String(), string(constants.TaskStatusPending), string(constants.TaskStatusProcessing))
	if err != nil {
		r.log.Error("task admit failed", "report_id", reportID, "error", err)
		return nil, common.WrapError(err, "insert extraction task")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, common.WrapError(err, "rows affected")
	}
	if n == 0 {
		return nil, common.NewAppError("EXTRACTION_IN_FLIGHT",
			"an extraction task is already pending or processing for this report", common.ErrConflict)
	}
	task.CurrentStep = "queued"
	r.log.Info("extraction task admitted", "task_id", task.ID, "report_id", reportID)
	return task, nil
}

func (r *taskRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.ExtractionTask, error) {
	row := r.db.queryRow(ctx, selectTask+` WHERE id = ?`, id.String())
	return scanTask(row)
}

func (r *taskRepo) GetLatestByReport(ctx context.Context, reportID uuid.UUID) (*entity.ExtractionTask, error) {
	row := r.db.queryRow(ctx, selectTask+` WHERE report_id = ? ORDER BY started_at DESC LIMIT 1`, reportID.String())
	return scanTask(row)
}

func (r *taskRepo) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return r.transition(ctx, id,
		`UPDATE extraction_tasks SET status = ?, current_step = ? WHERE id = ? AND status = ?`,
		string(constants.TaskStatusProcessing), "starting", id.String(), string(constants.TaskStatusPending))
}

func (r *taskRepo) UpdateProgress(ctx context.Context, id uuid.UUID, step string, totalPages, processedPages, metricsFound int) error {
	pct := 0
	if totalPages > 0 {
		pct = int(float64(processedPages)/float64(totalPages)*100 + 0.5)
	}
	_, err := r.db.exec(ctx,
		`UPDATE extraction_tasks
		 SET current_step = ?, total_pages = ?, processed_pages = ?, metrics_found = ?, progress_pct = ?
		 WHERE id = ? AND status = ?`,
		step, totalPages, processedPages, metricsFound, pct,
		id.String(), string(constants.TaskStatusProcessing))
	return common.WrapError(err, "update task progress")
}

func (r *taskRepo) Complete(ctx context.Context, id uuid.UUID) error {
	return r.transition(ctx, id,
		`UPDATE extraction_tasks SET status = ?, current_step = ?, progress_pct = 100, finished_at = ? WHERE id = ? AND status = ?`,
		string(constants.TaskStatusCompleted), "done", time.Now().UTC(), id.String(), string(constants.TaskStatusProcessing))
}

func (r *taskRepo) Fail(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.transition(ctx, id,
		`UPDATE extraction_tasks SET status = ?, error_message = ?, finished_at = ? WHERE id = ? AND status IN (?, ?)`,
		string(constants.TaskStatusFailed), errMsg, time.Now().UTC(), id.String(),
		string(constants.TaskStatusPending), string(constants.TaskStatusProcessing))
}

// transition runs a guarded status update; zero affected rows means the
// task was not in a state the transition is legal from.
func (r *taskRepo) transition(ctx context.Context, id uuid.UUID, query string, args ...any) error {
	res, err := r.db.exec(ctx, query, args...)
	if err != nil {
		r.log.Error("task transition failed", "task_id", id, "error", err)
		return common.WrapError(err, "task transition")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.WrapError(err, "rows affected")
	}
	if n == 0 {
		return common.NewAppError("ILLEGAL_TRANSITION",
			fmt.Sprintf("task %s is not in a state this transition is allowed from", id), common.ErrConflict)
	}
	return nil
}

func (r *taskRepo) RequestCancel(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.exec(ctx,
		`UPDATE extraction_tasks SET cancel_requested = TRUE WHERE id = ? AND status IN (?, ?)`,
		id.String(), string(constants.TaskStatusPending), string(constants.TaskStatusProcessing))
	return common.WrapError(err, "request cancel")
}

func (r *taskRepo) CancelRequested(ctx context.Context, id uuid.UUID) (bool, error) {
	var flag bool
	err := r.db.queryRow(ctx,
		`SELECT cancel_requested FROM extraction_tasks WHERE id = ?`, id.String()).Scan(&flag)
	if errors.Is(err, sql.ErrNoRows) {
		return false, common.ErrNotFound
	}
	if err != nil {
		return false, common.WrapError(err, "read cancel flag")
	}
	return flag, nil
}

const selectTask = `SELECT id, report_id, status, progress_pct, current_step, total_pages,
	processed_pages, metrics_found, error_message, cancel_requested, started_at, finished_at
	FROM extraction_tasks`

func scanTask(row rowScanner) (*entity.ExtractionTask, error) {
	var (
		t             entity.ExtractionTask
		idStr, repStr string
		status        string
		finished      sql.NullTime
	)
	err := row.Scan(&idStr, &repStr, &status, &t.ProgressPct, &t.CurrentStep, &t.TotalPages,
		&t.ProcessedPages, &t.MetricsFound, &t.ErrorMessage, &t.CancelRequest, &t.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapError(err, "scan extraction task")
	}
	if t.ID, err = uuid.Parse(idStr); err != nil {
		return nil, common.WrapError(err, "parse task id")
	}
	if t.ReportID, err = uuid.Parse(repStr); err != nil {
		return nil, common.WrapError(err, "parse report id")
	}
	t.Status = constants.TaskStatus(status)
	if finished.Valid {
		t.FinishedAt = &finished.Time
	}
	return &t, nil
}
