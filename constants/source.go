package constants

// MetricSource records which channel produced an extracted metric value.
type MetricSource string

const (
	SourceOCR    MetricSource = "OCR"
	SourceLLM    MetricSource = "LLM"
	SourceManual MetricSource = "MANUAL"
)

// sourceRank orders sources for the merge policy. MANUAL outranks every
// automatic channel and is never silently overwritten by re-extraction.
var sourceRank = map[MetricSource]int{
	SourceOCR:    1,
	SourceLLM:    1,
	SourceManual: 2,
}

// Rank returns the precedence rank of a source; unknown sources rank lowest.
func (s MetricSource) Rank() int {
	return sourceRank[s]
}

// Valid reports whether s is one of the closed set of sources.
func (s MetricSource) Valid() bool {
	_, ok := sourceRank[s]
	return ok
}
