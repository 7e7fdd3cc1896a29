package vocab

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JustIkra/rksi-hackotone/internal/llm"
	"github.com/JustIkra/rksi-hackotone/internal/repository"
	"github.com/JustIkra/rksi-hackotone/internal/resolve"
)

// Cache is a read-through snapshot of the usable metric vocabulary.
// Resolution runs against a consistent snapshot instead of hitting the
// database per label; writes that change the vocabulary call Invalidate.
type Cache struct {
	repo repository.MetricDefRepository
	ttl  time.Duration
	log  *slog.Logger

	mu       sync.Mutex
	snapshot *resolve.Snapshot
	loadedAt time.Time
}

func NewCache(repo repository.MetricDefRepository, ttl time.Duration, log *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Cache{repo: repo, ttl: ttl, log: log}
}

// Snapshot returns the current vocabulary, reloading from the database
// when the cached copy expired.
func (c *Cache) Snapshot(ctx context.Context) (*resolve.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot != nil && time.Since(c.loadedAt) < c.ttl {
		return c.snapshot, nil
	}

	start := time.Now()
	defs, err := c.repo.ListUsable(ctx)
	if err != nil {
		// keep serving a stale snapshot over failing the caller
		if c.snapshot != nil {
			c.log.Warn("vocab.reload_failed_serving_stale", "error", err)
			return c.snapshot, nil
		}
		return nil, err
	}
	syns, err := c.repo.ListSynonyms(ctx)
	if err != nil {
		if c.snapshot != nil {
			c.log.Warn("vocab.reload_failed_serving_stale", "error", err)
			return c.snapshot, nil
		}
		return nil, err
	}

	usable := make(map[uuid.UUID]bool, len(defs))
	for _, d := range defs {
		usable[d.ID] = true
	}
	synonyms := make(map[string]uuid.UUID, len(syns)+len(defs))
	for _, s := range syns {
		// synonyms of pending or rejected defs must not resolve
		if usable[s.MetricDefID] {
			synonyms[resolve.NormalizeLabel(s.Text)] = s.MetricDefID
		}
	}
	// canonical names resolve like synonyms; explicit entries win
	for _, d := range defs {
		key := resolve.NormalizeLabel(d.Name)
		if _, taken := synonyms[key]; !taken {
			synonyms[key] = d.ID
		}
	}

	c.snapshot = &resolve.Snapshot{Defs: defs, Synonyms: synonyms}
	c.loadedAt = time.Now()
	c.log.Info("vocab.loaded",
		"defs", len(defs), "synonyms", len(synonyms),
		"elapsed_ms", time.Since(start).Milliseconds())
	return c.snapshot, nil
}

// Invalidate drops the cached snapshot. Called after any write that
// changes the usable vocabulary: moderation decisions, new synonyms,
// new approved definitions.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.snapshot = nil
	c.mu.Unlock()
	c.log.Debug("vocab.invalidated")
}

// BackfillEmbeddings computes and stores vectors for usable definitions
// that do not have one yet. Batched to keep requests bounded.
func (c *Cache) BackfillEmbeddings(ctx context.Context, embedder llm.Embedder, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 32
	}
	defs, err := c.repo.ListUsable(ctx)
	if err != nil {
		return err
	}
	var missing []int
	for i, d := range defs {
		if len(d.Embedding) == 0 {
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	c.log.Info("vocab.backfill.start", "missing", len(missing))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for start := 0; start < len(missing); start += batchSize {
		end := start + batchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, idx := range batch {
				texts[i] = resolve.NormalizeLabel(defs[idx].Name)
			}
			vecs, err := embedder.Embed(gctx, texts)
			if err != nil {
				return err
			}
			for i, idx := range batch {
				if err := c.repo.SetEmbedding(gctx, defs[idx].ID, vecs[i]); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	c.Invalidate()
	c.log.Info("vocab.backfill.ok", "embedded", len(missing))
	return nil
}
