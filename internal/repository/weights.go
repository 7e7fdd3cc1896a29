package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JustIkra/rksi-hackotone/internal/common"
	"github.com/JustIkra/rksi-hackotone/internal/entity"
)

type WeightTableRepository interface {
	// Upsert replaces the weight table for the activity code.
	Upsert(ctx context.Context, wt *entity.WeightTable) error
	GetByActivityCode(ctx context.Context, code string) (*entity.WeightTable, error)
	ListActive(ctx context.Context) ([]*entity.WeightTable, error)
}

type weightRepo struct {
	db  *DB
	log *slog.Logger
}

func NewWeightTableRepository(db *DB, log *slog.Logger) WeightTableRepository {
	if log == nil {
		log = slog.Default()
	}
	return &weightRepo{db: db, log: log}
}

func (r *weightRepo) Upsert(ctx context.Context, wt *entity.WeightTable) error {
	if wt.ProfActivityCode == "" {
		return common.NewAppError("WEIGHTS_INVALID", "activity code is required", common.ErrInvalidInput)
	}
	if len(wt.Entries) == 0 {
		return common.NewAppError("WEIGHTS_INVALID", "weight table needs at least one entry", common.ErrInvalidInput)
	}
	for _, e := range wt.Entries {
		if e.Weight < 0 {
			return common.NewAppError("WEIGHTS_INVALID", "weights must be non-negative", common.ErrInvalidInput)
		}
	}
	if wt.ID == uuid.Nil {
		wt.ID = uuid.New()
	}
	entries, err := json.Marshal(wt.Entries)
	if err != nil {
		return common.WrapError(err, "marshal weight entries")
	}
	_, err = r.db.exec(ctx,
		`INSERT INTO weight_tables (id, prof_activity_code, prof_activity_name, entries, active)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (prof_activity_code) DO UPDATE SET
			prof_activity_name = excluded.prof_activity_name,
			entries = excluded.entries,
			active = excluded.active`,
		wt.ID.String(), wt.ProfActivityCode, wt.ProfActivityName, string(entries), wt.Active)
	if err != nil {
		r.log.Error("weight table upsert failed", "activity", wt.ProfActivityCode, "error", err)
		return common.WrapError(err, "upsert weight table")
	}
	r.log.Info("weight table stored", "activity", wt.ProfActivityCode, "entries", len(wt.Entries))
	return nil
}

func (r *weightRepo) GetByActivityCode(ctx context.Context, code string) (*entity.WeightTable, error) {
	row := r.db.queryRow(ctx,
		`SELECT id, prof_activity_code, prof_activity_name, entries, active
		 FROM weight_tables WHERE prof_activity_code = ?`, code)
	return scanWeightTable(row)
}

func (r *weightRepo) ListActive(ctx context.Context) ([]*entity.WeightTable, error) {
	rows, err := r.db.query(ctx,
		`SELECT id, prof_activity_code, prof_activity_name, entries, active
		 FROM weight_tables WHERE active = TRUE ORDER BY prof_activity_code`)
	if err != nil {
		return nil, common.WrapError(err, "list weight tables")
	}
	defer rows.Close()

	var out []*entity.WeightTable
	for rows.Next() {
		wt, err := scanWeightTable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, wt)
	}
	return out, rows.Err()
}

func scanWeightTable(row rowScanner) (*entity.WeightTable, error) {
	var (
		wt      entity.WeightTable
		idStr   string
		entries string
	)
	err := row.Scan(&idStr, &wt.ProfActivityCode, &wt.ProfActivityName, &entries, &wt.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.WrapError(err, "scan weight table")
	}
	if wt.ID, err = uuid.Parse(idStr); err != nil {
		return nil, common.WrapError(err, "parse weight table id")
	}
	if err := json.Unmarshal([]byte(entries), &wt.Entries); err != nil {
		return nil, common.WrapError(err, "unmarshal weight entries")
	}
	return &wt, nil
}
