package resolve

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/JustIkra/rksi-hackotone/internal/entity"
	"github.com/JustIkra/rksi-hackotone/internal/llm"
)

// Method records which stage of the resolution chain matched.
type Method string

const (
	MethodCode      Method = "code"
	MethodSynonym   Method = "synonym"
	MethodSeed      Method = "seed"
	MethodEmbedding Method = "embedding"
)

// Snapshot is the vocabulary view a resolution runs against. Built by the
// vocab cache; immutable once handed out.
type Snapshot struct {
	Defs []*entity.MetricDef
	// Synonyms maps normalized synonym text to the owning definition.
	Synonyms map[string]uuid.UUID
}

// ByID returns the definition with the given id, or nil.
func (s *Snapshot) ByID(id uuid.UUID) *entity.MetricDef {
	for _, d := range s.Defs {
		if d.ID == id {
			return d
		}
	}
	return nil
}

// ByCode returns the definition with the given code, or nil. Codes are
// compared case-insensitively.
func (s *Snapshot) ByCode(code string) *entity.MetricDef {
	for _, d := range s.Defs {
		if strings.EqualFold(d.Code, code) {
			return d
		}
	}
	return nil
}

type Config struct {
	// SimilarityThreshold is the minimum cosine similarity for an
	// embedding match.
	SimilarityThreshold float64
	// MinMargin is how far the best candidate must lead the runner-up;
	// closer races are treated as ambiguous and left unresolved.
	MinMargin float64
}

// Resolver maps raw report labels onto the canonical metric vocabulary.
// Stages run cheapest first: exact code, synonym, seed mapping, embedding.
type Resolver struct {
	cfg      Config
	seed     map[string]string // normalized label -> canonical code
	embedder llm.Embedder
	log      *slog.Logger
}

func NewResolver(cfg Config, seed map[string]string, embedder llm.Embedder, log *slog.Logger) *Resolver {
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.5
	}
	if cfg.MinMargin < 0 {
		cfg.MinMargin = 0
	}
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{cfg: cfg, seed: seed, embedder: embedder, log: log}
}

// Resolve finds the canonical definition for a raw label, or nil when the
// label stays unresolved. An unresolved label is not an error.
func (r *Resolver) Resolve(ctx context.Context, label string, vocab *Snapshot) (*entity.MetricDef, Method, error) {
	norm := NormalizeLabel(label)
	if norm == "" {
		return nil, "", nil
	}

	if d := vocab.ByCode(norm); d != nil {
		return d, MethodCode, nil
	}

	if id, ok := vocab.Synonyms[norm]; ok {
		if d := vocab.ByID(id); d != nil {
			return d, MethodSynonym, nil
		}
	}

	if code, ok := r.seed[norm]; ok {
		if d := vocab.ByCode(code); d != nil {
			return d, MethodSeed, nil
		}
		r.log.Warn("seed mapping points at unknown code", "label", norm, "code", code)
	}

	if r.embedder == nil {
		return nil, "", nil
	}
	return r.resolveByEmbedding(ctx, norm, vocab)
}

func (r *Resolver) resolveByEmbedding(ctx context.Context, norm string, vocab *Snapshot) (*entity.MetricDef, Method, error) {
	// candidates need a stored vector
	var candidates []*entity.MetricDef
	for _, d := range vocab.Defs {
		if len(d.Embedding) > 0 {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return nil, "", nil
	}

	vecs, err := r.embedder.Embed(ctx, []string{norm})
	if err != nil {
		return nil, "", err
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, "", nil
	}
	query := vecs[0]

	var best, second *entity.MetricDef
	bestSim, secondSim := math.Inf(-1), math.Inf(-1)
	for _, d := range candidates {
		sim := CosineSimilarity(query, d.Embedding)
		if sim > bestSim {
			second, secondSim = best, bestSim
			best, bestSim = d, sim
		} else if sim > secondSim {
			second, secondSim = d, sim
		}
	}

	if bestSim < r.cfg.SimilarityThreshold {
		r.log.Debug("embedding match below threshold",
			"label", norm, "best_sim", bestSim, "threshold", r.cfg.SimilarityThreshold)
		return nil, "", nil
	}
	if second != nil && bestSim-secondSim < r.cfg.MinMargin {
		r.log.Info("embedding match ambiguous",
			"label", norm, "best", best.Code, "best_sim", bestSim,
			"second", second.Code, "second_sim", secondSim)
		return nil, "", nil
	}

	r.log.Info("label resolved by embedding",
		"label", norm, "code", best.Code, "similarity", bestSim)
	return best, MethodEmbedding, nil
}

// NormalizeLabel lowercases, trims, and collapses inner whitespace so the
// same printed label always resolves identically.
func NormalizeLabel(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), " ")
}

// CosineSimilarity returns the cosine of the angle between two vectors,
// or 0 when either has no magnitude or lengths differ.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
