package scoring

import (
	"math"
	"sort"

	"github.com/JustIkra/rksi-hackotone/internal/common"
	"github.com/JustIkra/rksi-hackotone/internal/entity"
)

// Entry is one weighted metric with a present value, ready for scoring.
type Entry struct {
	Def    *entity.MetricDef
	Value  float64
	Weight float64
}

// Outcome is a pure scoring computation, not yet persisted.
type Outcome struct {
	ScorePct  float64
	Strengths []entity.ScoredEntry
	DevAreas  []entity.ScoredEntry
}

// Compute scores the present metrics against their weights. Metrics the
// weight table names but the participant has no value for are excluded
// from both sums, so missing data never counts against the score.
func Compute(entries []Entry, topK int) (Outcome, error) {
	if topK <= 0 {
		topK = 3
	}

	type scored struct {
		entry        Entry
		normalized   float64
		contribution float64
	}
	var (
		items       []scored
		weightedSum float64
		weightTotal float64
	)
	for _, e := range entries {
		if e.Weight <= 0 {
			continue
		}
		n := normalize(e.Value, e.Def.MinValue, e.Def.MaxValue)
		items = append(items, scored{entry: e, normalized: n, contribution: n * e.Weight})
		weightedSum += n * e.Weight
		weightTotal += e.Weight
	}
	if weightTotal == 0 {
		return Outcome{}, common.NewAppError("NO_SCORABLE_METRICS",
			"no weighted metrics have values for this participant", common.ErrNoUsableData)
	}

	// biggest weighted contribution first; ties broken by metric id so
	// repeated runs agree
	sort.Slice(items, func(i, j int) bool {
		if items[i].contribution != items[j].contribution {
			return items[i].contribution > items[j].contribution
		}
		return items[i].entry.Def.ID.String() < items[j].entry.Def.ID.String()
	})

	k := topK
	if k > len(items) {
		k = len(items)
	}
	strengths := make([]entity.ScoredEntry, 0, k)
	for _, it := range items[:k] {
		strengths = append(strengths, toScoredEntry(it.entry))
	}

	// weakest metrics, excluding anything already named a strength
	rest := items[k:]
	dk := topK
	if dk > len(rest) {
		dk = len(rest)
	}
	devAreas := make([]entity.ScoredEntry, 0, dk)
	for i := 0; i < dk; i++ {
		devAreas = append(devAreas, toScoredEntry(rest[len(rest)-1-i].entry))
	}

	return Outcome{
		ScorePct:  roundPct(weightedSum / weightTotal),
		Strengths: strengths,
		DevAreas:  devAreas,
	}, nil
}

// normalize maps a raw value into [0,1] over the metric's declared range.
// Out-of-range readings clamp rather than distort the total.
func normalize(v, min, max float64) float64 {
	if max <= min {
		return 0
	}
	n := (v - min) / (max - min)
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

// roundPct converts a 0..1 ratio to a percentage with one decimal.
func roundPct(ratio float64) float64 {
	return math.Round(ratio*1000) / 10
}

func toScoredEntry(e Entry) entity.ScoredEntry {
	return entity.ScoredEntry{
		MetricDefID: e.Def.ID,
		Code:        e.Def.Code,
		Name:        e.Def.Name,
		Value:       e.Value,
		Weight:      e.Weight,
	}
}
