package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePageMetrics(t *testing.T) {
	good := []byte(`{"metrics":[{"label":"Teamwork","value":7,"confidence":0.9,"quote":"works well"}]}`)
	require.NoError(t, ValidatePageMetrics(good))
	// second call hits the already-compiled schema
	require.NoError(t, ValidatePageMetrics(good))

	assert.Error(t, ValidatePageMetrics([]byte(`{"metrics":[{"label":"Teamwork"}]}`)), "value is required")
	assert.Error(t, ValidatePageMetrics([]byte(`{"metrics":[{"label":"","value":1}]}`)), "empty label")
	assert.Error(t, ValidatePageMetrics([]byte(`{}`)), "metrics array is required")
	assert.Error(t, ValidatePageMetrics([]byte(`not json`)))
}

func TestValidateRecommendations(t *testing.T) {
	require.NoError(t, ValidateRecommendations([]byte(`{"recommendations":["practice public speaking"]}`)))

	assert.Error(t, ValidateRecommendations([]byte(`{"recommendations":[]}`)), "at least one item")
	assert.Error(t, ValidateRecommendations([]byte(`{"recommendations":[1,2]}`)), "strings only")
	assert.Error(t, ValidateRecommendations([]byte(`{"other":true}`)))
}
