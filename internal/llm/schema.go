package llm

// BuildPageMetricsJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. We pass this to the model as a structured output constraint and
// also use it locally to validate.
func BuildPageMetricsJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"metrics": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties": map[string]any{
						"label":      map[string]any{"type": "string", "minLength": 1},
						"value":      map[string]any{"type": "number"},
						"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
						"quote":      map[string]any{"type": "string"},
					},
					"required": []string{"label", "value"},
				},
			},
		},
		"required": []string{"metrics"},
	}
}

// BuildRecommendationsJSONSchema constrains recommendation output to a
// short list of plain strings.
func BuildRecommendationsJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"recommendations": map[string]any{
				"type":     "array",
				"minItems": 1,
				"maxItems": 10,
				"items":    map[string]any{"type": "string", "minLength": 1},
			},
		},
		"required": []string{"recommendations"},
	}
}
