package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JustIkra/rksi-hackotone/internal/llm"
)

// ParsePage implements llm.MetricParser using text-only chat/completions.
func (c *Client) ParsePage(ctx context.Context, req llm.ParseRequest) (llm.PageExtraction, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.parse.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"page", req.PageNumber,
		"text_len", len(req.PageText),
		"known_labels", len(req.KnownLabels),
	)

	schema := llm.BuildPageMetricsJSONSchema()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": buildParseSystemPrompt(req.KnownLabels)},
			{"role": "user", "content": buildParseUserPrompt(req) + "\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.log.Error("llm.parse.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.PageExtraction{}, nil, err
	}

	content, err := firstChoiceContent(raw)
	if err != nil {
		c.log.Error("llm.parse.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.PageExtraction{}, raw, err
	}
	rawContent := []byte(content)

	if err := llm.ValidatePageMetrics(rawContent); err != nil {
		c.log.Error("llm.parse.schema_validation_failed",
			"req_id", rid, "error", err, "content", content,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.PageExtraction{}, rawContent, fmt.Errorf("schema validation failed: %w", err)
	}

	var out llm.PageExtraction
	if err := json.Unmarshal(rawContent, &out); err != nil {
		c.log.Error("llm.parse.unmarshal_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.PageExtraction{}, rawContent, fmt.Errorf("unmarshal page metrics: %w", err)
	}

	c.log.Info("llm.parse.ok",
		"req_id", rid,
		"page", req.PageNumber,
		"metrics", len(out.Metrics),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, rawContent, nil
}

// Recommend implements llm.Recommender.
func (c *Client) Recommend(ctx context.Context, req llm.RecommendRequest) (llm.RecommendOutput, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.recommend.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"activity", req.ProfActivityName,
		"score_pct", req.ScorePct,
		"strengths", len(req.Strengths),
		"dev_areas", len(req.DevAreas),
	)

	schema := llm.BuildRecommendationsJSONSchema()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": buildRecommendSystemPrompt()},
			{"role": "user", "content": buildRecommendUserPrompt(req) + "\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.log.Error("llm.recommend.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.RecommendOutput{}, nil, err
	}

	content, err := firstChoiceContent(raw)
	if err != nil {
		c.log.Error("llm.recommend.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.RecommendOutput{}, raw, err
	}
	rawContent := []byte(content)

	if err := llm.ValidateRecommendations(rawContent); err != nil {
		c.log.Error("llm.recommend.schema_validation_failed",
			"req_id", rid, "error", err, "content", content,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.RecommendOutput{}, rawContent, fmt.Errorf("schema validation failed: %w", err)
	}

	var out llm.RecommendOutput
	if err := json.Unmarshal(rawContent, &out); err != nil {
		return llm.RecommendOutput{}, rawContent, fmt.Errorf("unmarshal recommendations: %w", err)
	}

	c.log.Info("llm.recommend.ok",
		"req_id", rid,
		"items", len(out.Recommendations),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, rawContent, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			c.log.Warn("openai response body close error", "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, string(raw))
	}
	return raw, nil
}

func firstChoiceContent(raw []byte) (string, error) {
	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return "", fmt.Errorf("no choices in openai response")
	}
	return strings.TrimSpace(cc.Choices[0].Message.Content), nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
