package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Embed implements llm.Embedder via the /embeddings endpoint. Input order
// is preserved in the returned vectors.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.embed.start",
		"req_id", rid,
		"model", c.cfg.EmbeddingModel,
		"inputs", len(texts),
	)

	body := map[string]any{
		"model": c.cfg.EmbeddingModel,
		"input": texts,
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/embeddings"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.log.Error("llm.embed.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	var resp struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode embeddings response: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings count mismatch: want %d, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}

	c.log.Info("llm.embed.ok",
		"req_id", rid,
		"vectors", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
