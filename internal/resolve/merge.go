package resolve

import "github.com/JustIkra/rksi-hackotone/internal/entity"

// ShouldReplace decides whether an incoming extracted value may overwrite
// the stored one. MANUAL entries outrank automatic sources and are never
// silently replaced by re-extraction. Within the same rank, higher
// confidence wins; on equal confidence the later page wins, since summary
// sections tend to follow detail sections.
func ShouldReplace(existing, incoming *entity.ExtractedMetric) bool {
	if existing == nil {
		return true
	}
	er, ir := existing.Source.Rank(), incoming.Source.Rank()
	if ir != er {
		return ir > er
	}
	ec, ic := confidence(existing), confidence(incoming)
	if ic != ec {
		return ic > ec
	}
	return incoming.Page >= existing.Page
}

func confidence(m *entity.ExtractedMetric) float32 {
	if m.Confidence == nil {
		return 0
	}
	return *m.Confidence
}
