package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// docxToPDF converts a DOCX report to PDF in a temp dir via soffice so the
// pdftotext path can take over. The caller must run cleanup.
func (e *Extractor) docxToPDF(ctx context.Context, path string) (pdfPath string, warnings []string, cleanup func(), err error) {
	tmpDir, err := os.MkdirTemp("", "report-docx-*")
	if err != nil {
		return "", nil, nil, err
	}
	cleanup = func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			e.logger.Warn("failed to remove temp dir", "path", tmpDir, "error", rmErr)
		}
	}

	// soffice --headless --convert-to pdf --outdir <tmp> <in.docx>
	_, errb, err := e.runner.Run(ctx, e.cfg.DocxConverter,
		"--headless", "--convert-to", "pdf", "--outdir", tmpDir, path)
	if err != nil {
		cleanup()
		return "", []string{string(errb)}, nil, fmt.Errorf("docx to pdf: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	pdfPath = filepath.Join(tmpDir, base+".pdf")
	if _, statErr := os.Stat(pdfPath); statErr != nil {
		cleanup()
		return "", []string{string(errb)}, nil, fmt.Errorf("converted pdf not found: %w", statErr)
	}
	return pdfPath, nil, cleanup, nil
}
