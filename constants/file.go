package constants

import "strings"

// FileFormats holds the allowed file formats for uploaded reports.
var FileFormats = []string{"PDF", "DOCX"}

const (
	PDF  = "PDF"
	DOCX = "DOCX"
)

// AllowedExtensions holds the allowed file extensions for report upload.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"docx": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a normalized extension to a file format, or "".
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "docx":
		return DOCX
	default:
		return ""
	}
}
