package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/medprep/mcqgen/internal/llm"
	"github.com/medprep/mcqgen/internal/logger"
	"github.com/medprep/mcqgen/internal/store"
)

// Result is one scored chunk.
type Result struct {
	Chunk store.Chunk
	Score float64
}

// Index answers similarity queries over the stored chunks. Vectors are
// loaded into memory once; query results are cached by query text.
type Index struct {
	embedder llm.Embedder
	repo     store.ChunkRepo
	topK     int
	cache    *lru.Cache[string, string]
	log      *logger.Logger

	mu     sync.RWMutex
	chunks []store.Chunk
	norms  []float64
	loaded bool
}

// NewIndex creates an Index returning topK chunks per query.
func NewIndex(embedder llm.Embedder, repo store.ChunkRepo, topK, cacheSize int, log *logger.Logger) (*Index, error) {
	if topK < 1 {
		return nil, fmt.Errorf("top-k must be >= 1, got %d", topK)
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create query cache: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Index{embedder: embedder, repo: repo, topK: topK, cache: cache, log: log}, nil
}

// Load reads all chunks from the store, replacing what is in memory and
// clearing the query cache.
func (x *Index) Load(ctx context.Context) error {
	chunks, err := x.repo.All(ctx)
	if err != nil {
		return fmt.Errorf("load index: %w", err)
	}
	norms := make([]float64, len(chunks))
	for i, c := range chunks {
		norms[i] = norm(c.Embedding)
	}

	x.mu.Lock()
	x.chunks, x.norms, x.loaded = chunks, norms, true
	x.mu.Unlock()
	x.cache.Purge()

	x.log.Debug("retrieval index loaded", "chunks", len(chunks))
	return nil
}

// Len returns the number of chunks in memory.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.chunks)
}

// Search returns the page contents of the topK most similar chunks joined
// by blank lines. An empty index yields "".
func (x *Index) Search(ctx context.Context, query string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(query))
	if v, ok := x.cache.Get(key); ok {
		return v, nil
	}

	results, err := x.SearchChunks(ctx, query, x.topK)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Chunk.Content
	}
	text := strings.Join(parts, "\n\n")
	x.cache.Add(key, text)
	return text, nil
}

// SearchChunks returns up to k chunks ordered by descending cosine
// similarity to query.
func (x *Index) SearchChunks(ctx context.Context, query string, k int) ([]Result, error) {
	x.mu.RLock()
	loaded := x.loaded
	x.mu.RUnlock()
	if !loaded {
		if err := x.Load(ctx); err != nil {
			return nil, err
		}
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	if len(x.chunks) == 0 || k < 1 {
		return nil, nil
	}

	vecs, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 query", len(vecs))
	}
	q := vecs[0]
	qn := norm(q)

	results := make([]Result, 0, len(x.chunks))
	for i, c := range x.chunks {
		if len(c.Embedding) != len(q) {
			continue
		}
		results = append(results, Result{Chunk: c, Score: cosine(q, c.Embedding, qn, x.norms[i])})
	}
	sort.SliceStable(results, func(a, b int) bool { return results[a].Score > results[b].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

// cosine returns 0 for zero vectors or mismatched dimensions.
func cosine(a, b []float32, na, nb float64) float64 {
	if len(a) != len(b) || na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}

// Ensure prepares the index at startup. With a corpus directory it builds
// the index when none exists or when it was built with a different
// embedding model; it then loads the stored chunks.
func Ensure(ctx context.Context, ing *Ingester, idx *Index, repo store.ChunkRepo, dir string, log *logger.Logger) error {
	if log == nil {
		log = logger.Nop()
	}
	meta, err := repo.Meta(ctx)
	if err != nil {
		return err
	}

	want := ing.embedder.ModelID()
	switch {
	case dir == "":
		if meta.Model != "" && meta.Model != want {
			log.Warn("stored index uses a different embedding model; run the index command to rebuild",
				"stored", meta.Model, "configured", want)
		}
	case meta.Model == "":
		log.Info("no retrieval index found, building", "dir", dir)
		if _, err := ing.Build(ctx, dir); err != nil {
			return err
		}
	case meta.Model != want:
		log.Info("embedding model changed, rebuilding index", "stored", meta.Model, "configured", want)
		if _, err := ing.Build(ctx, dir); err != nil {
			return err
		}
	}
	return idx.Load(ctx)
}
