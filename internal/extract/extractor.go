package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JustIkra/rksi-hackotone/constants"
)

type Config struct {
	Pdftotext     string // binary name or absolute path; if empty -> "pdftotext"
	DocxConverter string // soffice binary for DOCX conversion; if empty -> "soffice"
	MaxPages      int    // 0 = no limit
}

// Page is one page of extracted report text, numbered from 1.
type Page struct {
	Number int
	Text   string
}

type Result struct {
	Pages    []Page
	Format   string // constants.PDF | constants.DOCX
	Duration time.Duration
	Warnings []string
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.DocxConverter == "" {
		cfg.DocxConverter = "soffice"
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, logger: logger}
}

// PageExtractor is the interface the pipeline depends on.
type PageExtractor interface {
	ExtractPages(ctx context.Context, path, format string) (Result, error)
}

// ExtractPages picks a strategy based on the declared format.
func (e *Extractor) ExtractPages(ctx context.Context, path, format string) (Result, error) {
	start := time.Now()
	e.logger.Debug("starting text extraction", "path", path, "format", format)

	switch format {
	case constants.PDF:
		res, err := e.extractPDF(ctx, path)
		res.Format = constants.PDF
		res.Duration = time.Since(start)
		return res, err
	case constants.DOCX:
		pdfPath, warns, cleanup, err := e.docxToPDF(ctx, path)
		if err != nil {
			e.logger.Error("docx conversion failed", "path", path, "error", err)
			return Result{Format: constants.DOCX, Warnings: warns}, err
		}
		defer cleanup()
		res, err := e.extractPDF(ctx, pdfPath)
		res.Format = constants.DOCX
		res.Duration = time.Since(start)
		res.Warnings = append(warns, res.Warnings...)
		return res, err
	default:
		e.logger.Error("unsupported report format", "format", format)
		return Result{}, fmt.Errorf("unsupported format: %q", format)
	}
}

func (e *Extractor) extractPDF(ctx context.Context, path string) (Result, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return Result{Warnings: []string{string(errb)}}, fmt.Errorf("pdftotext: %w", err)
	}
	res := Result{Pages: splitPages(string(out))}
	if e.cfg.MaxPages > 0 && len(res.Pages) > e.cfg.MaxPages {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("document has %d pages, truncated to %d", len(res.Pages), e.cfg.MaxPages))
		res.Pages = res.Pages[:e.cfg.MaxPages]
	}
	return res, nil
}

// splitPages cuts pdftotext output on the form-feed page separator.
func splitPages(text string) []Page {
	raw := strings.Split(text, "\f")
	// pdftotext emits a trailing \f after the last page
	if n := len(raw); n > 1 && strings.TrimSpace(raw[n-1]) == "" {
		raw = raw[:n-1]
	}
	pages := make([]Page, 0, len(raw))
	for i, t := range raw {
		pages = append(pages, Page{Number: i + 1, Text: t})
	}
	return pages
}
