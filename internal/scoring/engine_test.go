package scoring

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustIkra/rksi-hackotone/constants"
	"github.com/JustIkra/rksi-hackotone/internal/common"
	"github.com/JustIkra/rksi-hackotone/internal/entity"
)

func def(code string, min, max float64) *entity.MetricDef {
	return &entity.MetricDef{
		ID:               uuid.New(),
		Code:             code,
		Name:             "Metric " + code,
		MinValue:         min,
		MaxValue:         max,
		Active:           true,
		ModerationStatus: constants.ModerationApproved,
	}
}

func TestComputeMissingDataNeutrality(t *testing.T) {
	// weights A:2 B:1 C:1; A=0.8, B=0.4, C has no value.
	// weighted sum 2*0.8 + 1*0.4 = 2.0 over weight total 3 -> 66.7%
	a := def("A", 0, 1)
	b := def("B", 0, 1)
	entries := []Entry{
		{Def: a, Value: 0.8, Weight: 2},
		{Def: b, Value: 0.4, Weight: 1},
	}

	out, err := Compute(entries, 3)
	require.NoError(t, err)
	assert.Equal(t, 66.7, out.ScorePct)
}

func TestComputeNormalizesByRange(t *testing.T) {
	// value 7 on a 0..10 scale contributes 0.7
	entries := []Entry{{Def: def("A", 0, 10), Value: 7, Weight: 1}}
	out, err := Compute(entries, 3)
	require.NoError(t, err)
	assert.Equal(t, 70.0, out.ScorePct)
}

func TestComputeClampsOutOfRange(t *testing.T) {
	entries := []Entry{
		{Def: def("HIGH", 0, 10), Value: 14, Weight: 1},
		{Def: def("LOW", 0, 10), Value: -3, Weight: 1},
	}
	out, err := Compute(entries, 3)
	require.NoError(t, err)
	assert.Equal(t, 50.0, out.ScorePct)
}

func TestComputeNoUsableData(t *testing.T) {
	_, err := Compute(nil, 3)
	assert.ErrorIs(t, err, common.ErrNoUsableData)

	// zero-weight entries do not count as data
	_, err = Compute([]Entry{{Def: def("A", 0, 1), Value: 0.5, Weight: 0}}, 3)
	assert.ErrorIs(t, err, common.ErrNoUsableData)
}

func TestComputeStrengthsAndDevAreas(t *testing.T) {
	entries := []Entry{
		{Def: def("A", 0, 1), Value: 0.9, Weight: 1},
		{Def: def("B", 0, 1), Value: 0.8, Weight: 1},
		{Def: def("C", 0, 1), Value: 0.7, Weight: 1},
		{Def: def("D", 0, 1), Value: 0.3, Weight: 1},
		{Def: def("E", 0, 1), Value: 0.1, Weight: 1},
	}
	out, err := Compute(entries, 3)
	require.NoError(t, err)

	require.Len(t, out.Strengths, 3)
	assert.Equal(t, "A", out.Strengths[0].Code)
	assert.Equal(t, "B", out.Strengths[1].Code)
	assert.Equal(t, "C", out.Strengths[2].Code)

	// dev areas are the weakest metrics, never overlapping strengths
	require.Len(t, out.DevAreas, 2)
	assert.Equal(t, "E", out.DevAreas[0].Code)
	assert.Equal(t, "D", out.DevAreas[1].Code)
}

func TestComputeRanksByWeightedContribution(t *testing.T) {
	// a heavily weighted middling metric outranks a lightly weighted
	// strong one: 10*0.6 = 6.0 beats 1*0.9 = 0.9
	entries := []Entry{
		{Def: def("LIGHT", 0, 1), Value: 0.9, Weight: 1},
		{Def: def("HEAVY", 0, 1), Value: 0.6, Weight: 10},
	}
	out, err := Compute(entries, 1)
	require.NoError(t, err)

	require.Len(t, out.Strengths, 1)
	assert.Equal(t, "HEAVY", out.Strengths[0].Code)
	require.Len(t, out.DevAreas, 1)
	assert.Equal(t, "LIGHT", out.DevAreas[0].Code)
}

func TestComputeTieBreaksByMetricID(t *testing.T) {
	first := def("ZETA", 0, 1)
	first.ID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	second := def("ALPHA", 0, 1)
	second.ID = uuid.MustParse("00000000-0000-0000-0000-000000000002")
	third := def("MID", 0, 1)
	third.ID = uuid.MustParse("00000000-0000-0000-0000-000000000003")

	entries := []Entry{
		{Def: third, Value: 0.5, Weight: 1},
		{Def: first, Value: 0.5, Weight: 1},
		{Def: second, Value: 0.5, Weight: 1},
	}
	out, err := Compute(entries, 2)
	require.NoError(t, err)

	require.Len(t, out.Strengths, 2)
	assert.Equal(t, "ZETA", out.Strengths[0].Code)
	assert.Equal(t, "ALPHA", out.Strengths[1].Code)
	require.Len(t, out.DevAreas, 1)
	assert.Equal(t, "MID", out.DevAreas[0].Code)
}

func TestComputeFewerMetricsThanTopK(t *testing.T) {
	entries := []Entry{{Def: def("ONLY", 0, 1), Value: 1, Weight: 2}}
	out, err := Compute(entries, 3)
	require.NoError(t, err)
	assert.Equal(t, 100.0, out.ScorePct)
	assert.Len(t, out.Strengths, 1)
	assert.Empty(t, out.DevAreas)
}

func TestRoundPct(t *testing.T) {
	assert.Equal(t, 66.7, roundPct(2.0/3.0))
	assert.Equal(t, 0.0, roundPct(0))
	assert.Equal(t, 100.0, roundPct(1))
	assert.Equal(t, 33.3, roundPct(1.0/3.0))
}

func TestNormalizeDegenerateRange(t *testing.T) {
	assert.Equal(t, 0.0, normalize(5, 3, 3))
}
