package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JustIkra/rksi-hackotone/constants"
	"github.com/JustIkra/rksi-hackotone/internal/common"
	"github.com/JustIkra/rksi-hackotone/internal/entity"
	"github.com/JustIkra/rksi-hackotone/internal/extract"
	"github.com/JustIkra/rksi-hackotone/internal/llm"
	"github.com/JustIkra/rksi-hackotone/internal/repository"
	"github.com/JustIkra/rksi-hackotone/internal/resolve"
	"github.com/JustIkra/rksi-hackotone/internal/vocab"
)

type Config struct {
	// MinConfidence drops model readings below this confidence instead
	// of storing them.
	MinConfidence float32
}

// Coordinator drives one extraction run: page text, model parsing, label
// resolution, and the merge into stored metric values. Progress and
// status live on the extraction task so clients can poll.
type Coordinator struct {
	cfg       Config
	reports   repository.ReportRepository
	tasks     repository.ExtractionTaskRepository
	extracted repository.ExtractedMetricRepository
	defs      repository.MetricDefRepository
	extractor extract.PageExtractor
	parser    llm.MetricParser
	resolver  *resolve.Resolver
	cache     *vocab.Cache
	log       *slog.Logger
}

func NewCoordinator(
	cfg Config,
	reports repository.ReportRepository,
	tasks repository.ExtractionTaskRepository,
	extracted repository.ExtractedMetricRepository,
	defs repository.MetricDefRepository,
	extractor extract.PageExtractor,
	parser llm.MetricParser,
	resolver *resolve.Resolver,
	cache *vocab.Cache,
	log *slog.Logger,
) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		cfg:       cfg,
		reports:   reports,
		tasks:     tasks,
		extracted: extracted,
		defs:      defs,
		extractor: extractor,
		parser:    parser,
		resolver:  resolver,
		cache:     cache,
		log:       log,
	}
}

// Submit admits a new extraction task for the report. At most one task
// per report can be pending or processing; a second submission conflicts.
// Re-extraction of an already extracted or failed report is allowed.
func (c *Coordinator) Submit(ctx context.Context, reportID uuid.UUID) (*entity.ExtractionTask, error) {
	if _, err := c.reports.GetByID(ctx, reportID); err != nil {
		return nil, err
	}
	return c.tasks.Admit(ctx, reportID)
}

// ProcessTask runs one admitted task to a terminal state. Designed as an
// async.Handler; the queue's job timeout bounds the whole run.
func (c *Coordinator) ProcessTask(ctx context.Context, taskID uuid.UUID) error {
	start := time.Now()

	task, err := c.tasks.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	if err := c.tasks.MarkProcessing(ctx, taskID); err != nil {
		if errors.Is(err, common.ErrConflict) {
			// picked up twice or already finished; first worker owns it
			c.log.Warn("pipeline.task_not_pending", "task_id", taskID, "status", task.Status)
			return nil
		}
		return err
	}

	report, err := c.reports.GetByID(ctx, task.ReportID)
	if err != nil {
		return c.fail(ctx, taskID, task.ReportID, err.Error(), nil)
	}
	if err := c.reports.MarkProcessing(ctx, report.ID); err != nil {
		return c.fail(ctx, taskID, report.ID, err.Error(), nil)
	}

	c.log.Info("pipeline.start",
		"task_id", taskID, "report_id", report.ID,
		"file", report.SourceFile, "format", report.Format)

	res, err := c.extractor.ExtractPages(ctx, report.SourceFile, report.Format)
	if err != nil {
		return c.fail(ctx, taskID, report.ID, fmt.Sprintf("text extraction failed: %v", err), res.Warnings)
	}
	warnings := append([]string{}, res.Warnings...)

	if blankDocument(res.Pages) {
		return c.fail(ctx, taskID, report.ID, "document contains no readable text", warnings)
	}

	snap, err := c.cache.Snapshot(ctx)
	if err != nil {
		return c.fail(ctx, taskID, report.ID, fmt.Sprintf("vocabulary load failed: %v", err), warnings)
	}
	known := knownLabels(snap)

	var (
		metricsFound int
		unresolved   = map[string]*entity.AIRationale{}
	)
	total := len(res.Pages)
	for i, page := range res.Pages {
		// cancellation is honored between pages, never mid-page
		if cancelled, cerr := c.tasks.CancelRequested(ctx, taskID); cerr == nil && cancelled {
			return c.fail(ctx, taskID, report.ID, "cancelled by request", warnings)
		}
		if ctx.Err() != nil {
			return c.fail(ctx, taskID, report.ID, "extraction timed out", warnings)
		}

		parsed, _, perr := c.parser.ParsePage(ctx, llm.ParseRequest{
			PageText:    page.Text,
			PageNumber:  page.Number,
			KnownLabels: known,
		})
		if perr != nil {
			warnings = append(warnings, fmt.Sprintf("page %d: parse failed: %v", page.Number, perr))
			c.reportProgress(ctx, taskID, i+1, total, metricsFound)
			continue
		}

		for _, pm := range parsed.Metrics {
			if pm.Confidence > 0 && pm.Confidence < c.cfg.MinConfidence {
				warnings = append(warnings,
					fmt.Sprintf("page %d: %q dropped, confidence %.2f", page.Number, pm.Label, pm.Confidence))
				continue
			}
			def, method, rerr := c.resolver.Resolve(ctx, pm.Label, snap)
			if rerr != nil {
				warnings = append(warnings, fmt.Sprintf("page %d: resolve %q: %v", page.Number, pm.Label, rerr))
				continue
			}
			if def == nil {
				collectUnresolved(unresolved, pm, page.Number)
				continue
			}
			stored, serr := c.storeValue(ctx, report.ID, def, pm, page.Number)
			if serr != nil {
				warnings = append(warnings, fmt.Sprintf("page %d: store %q: %v", page.Number, pm.Label, serr))
				continue
			}
			if stored {
				metricsFound++
				c.log.Debug("pipeline.metric_stored",
					"report_id", report.ID, "code", def.Code, "method", method,
					"value", pm.Value, "page", page.Number)
			}
		}
		c.reportProgress(ctx, taskID, i+1, total, metricsFound)
	}

	warnings = append(warnings, c.proposeUnresolved(ctx, unresolved)...)

	var warning *string
	if len(warnings) > 0 {
		w := strings.Join(warnings, "; ")
		warning = &w
	}
	if err := c.tasks.Complete(ctx, taskID); err != nil {
		return err
	}
	if err := c.reports.MarkExtracted(ctx, report.ID, warning); err != nil {
		return err
	}

	c.log.Info("pipeline.ok",
		"task_id", taskID, "report_id", report.ID,
		"pages", total, "metrics_found", metricsFound,
		"warnings", len(warnings),
		"elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// storeValue applies the merge policy before writing. Manual entries
// survive re-extraction untouched.
func (c *Coordinator) storeValue(ctx context.Context, reportID uuid.UUID, def *entity.MetricDef, pm llm.PageMetric, page int) (bool, error) {
	incoming := &entity.ExtractedMetric{
		ReportID:    reportID,
		MetricDefID: def.ID,
		Value:       pm.Value,
		Source:      constants.SourceLLM,
		Page:        page,
	}
	if pm.Confidence > 0 {
		conf := pm.Confidence
		incoming.Confidence = &conf
	}
	if pm.Quote != "" {
		quote := pm.Quote
		incoming.Notes = &quote
	}

	existing, err := c.extracted.Get(ctx, reportID, def.ID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return false, err
	}
	if !resolve.ShouldReplace(existing, incoming) {
		return false, nil
	}
	if err := c.extracted.Upsert(ctx, incoming); err != nil {
		return false, err
	}
	return true, nil
}

// proposeUnresolved files one PENDING definition per unknown label so a
// moderator can grow the vocabulary. Duplicate codes are skipped quietly;
// another report may have proposed the same label already.
func (c *Coordinator) proposeUnresolved(ctx context.Context, unresolved map[string]*entity.AIRationale) []string {
	if len(unresolved) == 0 {
		return nil
	}
	labels := make([]string, 0, len(unresolved))
	for label, rationale := range unresolved {
		labels = append(labels, label)
		_, err := c.defs.Create(ctx, repository.CreateDefRequest{
			Code:        codeFromLabel(label),
			Name:        label,
			MinValue:    0,
			MaxValue:    defaultProposedMax,
			Moderation:  constants.ModerationPending,
			AIRationale: rationale,
		})
		if err != nil && !errors.Is(err, common.ErrConflict) {
			c.log.Error("pipeline.propose_failed", "label", label, "error", err)
		}
	}
	return []string{fmt.Sprintf("%d label(s) unresolved, sent to moderation: %s",
		len(labels), strings.Join(labels, ", "))}
}

func (c *Coordinator) reportProgress(ctx context.Context, taskID uuid.UUID, processed, total, metricsFound int) {
	step := fmt.Sprintf("page %d of %d", processed, total)
	if err := c.tasks.UpdateProgress(ctx, taskID, step, total, processed, metricsFound); err != nil {
		c.log.Warn("pipeline.progress_update_failed", "task_id", taskID, "error", err)
	}
}

func (c *Coordinator) fail(ctx context.Context, taskID, reportID uuid.UUID, msg string, warnings []string) error {
	var warning *string
	if len(warnings) > 0 {
		w := strings.Join(warnings, "; ")
		warning = &w
	}
	if err := c.tasks.Fail(ctx, taskID, msg); err != nil && !errors.Is(err, common.ErrConflict) {
		c.log.Error("pipeline.fail_transition_error", "task_id", taskID, "error", err)
	}
	if err := c.reports.MarkFailed(ctx, reportID, msg, warning); err != nil {
		c.log.Error("pipeline.report_fail_error", "report_id", reportID, "error", err)
	}
	c.log.Error("pipeline.failed", "task_id", taskID, "report_id", reportID, "reason", msg)
	return fmt.Errorf("extraction failed: %s", msg)
}

// blankDocument reports whether extraction produced no usable text at
// all. pdftotext exits cleanly on scanned or empty PDFs, so page count
// alone proves nothing.
func blankDocument(pages []extract.Page) bool {
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			return false
		}
	}
	return true
}

func knownLabels(snap *resolve.Snapshot) []string {
	out := make([]string, 0, len(snap.Defs)+len(snap.Synonyms))
	for _, d := range snap.Defs {
		out = append(out, d.Name)
	}
	for text := range snap.Synonyms {
		out = append(out, text)
	}
	return out
}

func collectUnresolved(acc map[string]*entity.AIRationale, pm llm.PageMetric, page int) {
	key := resolve.NormalizeLabel(pm.Label)
	r, ok := acc[key]
	if !ok {
		r = &entity.AIRationale{}
		acc[key] = r
	}
	if pm.Quote != "" {
		r.Quotes = append(r.Quotes, pm.Quote)
	}
	r.PageNumbers = append(r.PageNumbers, page)
}

// codeFromLabel derives a stable vocabulary code from a raw label.
func codeFromLabel(label string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToUpper(resolve.NormalizeLabel(label)) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r >= 'А' && r <= 'Я', r == 'Ё':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// defaultProposedMax is the provisional range for proposed definitions.
// Moderators adjust the range on approval if needed.
const defaultProposedMax = 10
