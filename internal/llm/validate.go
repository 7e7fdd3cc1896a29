package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// The two output schemas are fixed for the life of the process, so each
// is compiled exactly once and shared by every request.
var (
	pageMetricsSchema     = newLazySchema("page_metrics.json", BuildPageMetricsJSONSchema)
	recommendationsSchema = newLazySchema("recommendations.json", BuildRecommendationsJSONSchema)
)

// ValidatePageMetrics checks parser output against the page-metrics schema.
func ValidatePageMetrics(data []byte) error {
	return pageMetricsSchema.validate(data)
}

// ValidateRecommendations checks generated recommendations against their schema.
func ValidateRecommendations(data []byte) error {
	return recommendationsSchema.validate(data)
}

type lazySchema struct {
	name  string
	build func() map[string]any

	once   sync.Once
	schema *jsonschema.Schema
	err    error
}

func newLazySchema(name string, build func() map[string]any) *lazySchema {
	return &lazySchema{name: name, build: build}
}

func (l *lazySchema) validate(data []byte) error {
	l.once.Do(func() {
		l.schema, l.err = compileSchema(l.name, l.build())
	})
	if l.err != nil {
		return l.err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := l.schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

func compileSchema(name string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}
