package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/JustIkra/rksi-hackotone/constants"
	"github.com/JustIkra/rksi-hackotone/internal/common"
	"github.com/JustIkra/rksi-hackotone/internal/entity"
	"github.com/JustIkra/rksi-hackotone/internal/repository"
	"github.com/JustIkra/rksi-hackotone/internal/vocab"
)

// TemplateRow pairs a vocabulary definition with the report's current
// value for it, when one exists.
type TemplateRow struct {
	Def   *entity.MetricDef       `json:"def"`
	Value *entity.ExtractedMetric `json:"value,omitempty"`
}

// Template is the full metric checklist for one report.
type Template struct {
	ReportID     uuid.UUID     `json:"report_id"`
	Rows         []TemplateRow `json:"rows"`
	FilledCount  int           `json:"filled_count"`
	MissingCount int           `json:"missing_count"`
}

// Service exposes the per-report metric sheet: what the vocabulary
// expects, what extraction found, and manual corrections on top.
type Service struct {
	reports   repository.ReportRepository
	extracted repository.ExtractedMetricRepository
	cache     *vocab.Cache
	log       *slog.Logger
}

func NewService(
	reports repository.ReportRepository,
	extracted repository.ExtractedMetricRepository,
	cache *vocab.Cache,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{reports: reports, extracted: extracted, cache: cache, log: log}
}

// Template returns every usable metric with the report's current value.
func (s *Service) Template(ctx context.Context, reportID uuid.UUID) (*Template, error) {
	if _, err := s.reports.GetByID(ctx, reportID); err != nil {
		return nil, err
	}
	snap, err := s.cache.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	values, err := s.extracted.ListByReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	byDef := make(map[uuid.UUID]*entity.ExtractedMetric, len(values))
	for _, v := range values {
		byDef[v.MetricDefID] = v
	}

	tpl := &Template{ReportID: reportID, Rows: make([]TemplateRow, 0, len(snap.Defs))}
	for _, d := range snap.Defs {
		row := TemplateRow{Def: d}
		if v, ok := byDef[d.ID]; ok {
			row.Value = v
			tpl.FilledCount++
		} else {
			tpl.MissingCount++
		}
		tpl.Rows = append(tpl.Rows, row)
	}
	sort.Slice(tpl.Rows, func(i, j int) bool { return tpl.Rows[i].Def.Code < tpl.Rows[j].Def.Code })
	return tpl, nil
}

// SetManual stores a hand-entered value. Manual values outrank extracted
// ones and survive re-extraction.
func (s *Service) SetManual(ctx context.Context, reportID, metricDefID uuid.UUID, value float64) (*entity.ExtractedMetric, error) {
	if _, err := s.reports.GetByID(ctx, reportID); err != nil {
		return nil, err
	}
	snap, err := s.cache.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	def := snap.ByID(metricDefID)
	if def == nil {
		return nil, common.NewAppError("METRIC_NOT_USABLE",
			"metric is unknown, unapproved, or inactive", common.ErrNotFound)
	}
	if value < def.MinValue || value > def.MaxValue {
		return nil, common.NewAppError("VALUE_OUT_OF_RANGE",
			fmt.Sprintf("value %.2f outside [%.2f, %.2f] for %s", value, def.MinValue, def.MaxValue, def.Code),
			common.ErrInvalidInput)
	}

	m := &entity.ExtractedMetric{
		ReportID:    reportID,
		MetricDefID: metricDefID,
		Value:       value,
		Source:      constants.SourceManual,
	}
	if err := s.extracted.Upsert(ctx, m); err != nil {
		return nil, err
	}
	s.log.Info("metrics.manual_set",
		"report_id", reportID, "code", def.Code, "value", value)
	return m, nil
}

// Clear removes a value entirely so re-extraction can fill it again.
func (s *Service) Clear(ctx context.Context, reportID, metricDefID uuid.UUID) error {
	if err := s.extracted.Delete(ctx, reportID, metricDefID); err != nil {
		return err
	}
	s.log.Info("metrics.cleared", "report_id", reportID, "metric_id", metricDefID)
	return nil
}
