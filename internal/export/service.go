package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/JustIkra/rksi-hackotone/internal/common"
	"github.com/JustIkra/rksi-hackotone/internal/repository"
)

// Service is a tiny façade over repositories that produces XLSX bytes for
// the final assessment report.
type Service struct {
	results repository.ScoringResultRepository
	weights repository.WeightTableRepository
	logger  *slog.Logger
}

func NewService(results repository.ScoringResultRepository, weights repository.WeightTableRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{results: results, weights: weights, logger: logger}
}

// ExportResultXLSX returns an XLSX workbook (as bytes) for one scoring
// result. Export is gated: recommendations must be READY or DISABLED,
// otherwise the caller should retry later.
func (s *Service) ExportResultXLSX(ctx context.Context, resultID uuid.UUID) ([]byte, error) {
	start := time.Now()

	res, err := s.results.GetByID(ctx, resultID)
	if err != nil {
		return nil, err
	}
	if !res.RecommendationsStatus.Exportable() {
		return nil, common.NewAppError("EXPORT_NOT_READY",
			fmt.Sprintf("recommendations are %s; export needs a settled result", res.RecommendationsStatus),
			common.ErrNotReady)
	}

	activityName := res.ProfActivityCode
	if wt, werr := s.weights.GetByActivityCode(ctx, res.ProfActivityCode); werr == nil {
		activityName = wt.ProfActivityName
	}

	f := excelize.NewFile()
	const sheet = "Assessment"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if defaultIndex, _ := f.GetSheetIndex("Sheet1"); defaultIndex != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	write := func(col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	write(1, 1, "Participant")
	write(2, 1, res.ParticipantID.String())
	write(1, 2, "Professional Activity")
	write(2, 2, activityName)
	write(1, 3, "Suitability Score %")
	write(2, 3, res.ScorePct)
	write(1, 4, "Computed At")
	write(2, 4, res.CreatedAt.Format("2006-01-02 15:04"))

	row := 6
	write(1, row, "Strengths")
	row++
	for _, st := range res.Strengths {
		write(1, row, st.Name)
		write(2, row, st.Value)
		write(3, row, st.Weight)
		row++
	}

	row++
	write(1, row, "Development Areas")
	row++
	for _, d := range res.DevAreas {
		write(1, row, d.Name)
		write(2, row, d.Value)
		write(3, row, d.Weight)
		row++
	}

	if len(res.Recommendations) > 0 {
		row++
		write(1, row, "Recommendations")
		row++
		for _, rec := range res.Recommendations {
			write(1, row, rec)
			row++
		}
	}

	// Widen a few columns
	_ = f.SetColWidth(sheet, "A", "A", 48)
	_ = f.SetColWidth(sheet, "B", "B", 40)
	_ = f.SetColWidth(sheet, "C", "C", 12)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"result_id", resultID.String(),
		"strengths", len(res.Strengths),
		"dev_areas", len(res.DevAreas),
		"recommendations", len(res.Recommendations),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
