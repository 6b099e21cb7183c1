package retrieval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medprep/mcqgen/internal/llm"
	"github.com/medprep/mcqgen/internal/store"
)

type countingEmbedder struct {
	llm.Embedder
	calls atomic.Int32
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	return c.Embedder.Embed(ctx, texts)
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	s, err := store.Open(fmt.Sprintf("file:retrieval_%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func writeCorpus(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}
	return dir
}

var corpus = map[string]string{
	"cardiology.txt":      "Atrial fibrillation requires anticoagulation based on stroke risk scores.",
	"nested/endocrine.md": "# Diabetes\nMetformin is first line therapy for type 2 diabetes mellitus.",
	"nephrology.txt":      "Nephrotic syndrome presents with proteinuria, edema and hyperlipidemia.",
	"notes.docx":          "ignored format",
}

func TestBuildAndSearch(t *testing.T) {
	s := openStore(t)
	emb := &countingEmbedder{Embedder: llm.NewHashEmbedder(128)}
	dir := writeCorpus(t, corpus)

	ing := NewIngester(emb, s.ChunkRepo(), DefaultIngestConfig(), nil)
	stats, err := ing.Build(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Files)
	assert.Equal(t, 3, stats.Chunks)
	assert.Equal(t, "hash-128", stats.Model)

	idx, err := NewIndex(emb, s.ChunkRepo(), 1, 16, nil)
	require.NoError(t, err)
	require.NoError(t, idx.Load(context.Background()))
	assert.Equal(t, 3, idx.Len())

	got, err := idx.Search(context.Background(), "metformin diabetes")
	require.NoError(t, err)
	assert.Contains(t, got, "Metformin is first line")

	results, err := idx.SearchChunks(context.Background(), "atrial fibrillation anticoagulation", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "cardiology.txt", results[0].Chunk.Source)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestSearchCachesByQuery(t *testing.T) {
	s := openStore(t)
	emb := &countingEmbedder{Embedder: llm.NewHashEmbedder(64)}
	_, err := NewIngester(emb, s.ChunkRepo(), DefaultIngestConfig(), nil).Build(context.Background(), writeCorpus(t, corpus))
	require.NoError(t, err)

	idx, err := NewIndex(emb, s.ChunkRepo(), 2, 16, nil)
	require.NoError(t, err)

	before := emb.calls.Load()
	first, err := idx.Search(context.Background(), "Nephrotic syndrome")
	require.NoError(t, err)
	second, err := idx.Search(context.Background(), "  nephrotic SYNDROME ")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, before+1, emb.calls.Load())
	assert.Contains(t, first, "\n\n")
}

func TestSearchEmptyIndex(t *testing.T) {
	s := openStore(t)
	idx, err := NewIndex(llm.NewHashEmbedder(8), s.ChunkRepo(), 5, 4, nil)
	require.NoError(t, err)

	got, err := idx.Search(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestBuildCapsDocumentsAndSplits(t *testing.T) {
	s := openStore(t)
	files := map[string]string{}
	for i := 0; i < 5; i++ {
		files[fmt.Sprintf("doc%d.txt", i)] = strings.Repeat(fmt.Sprintf("sentence %d about hepatology. ", i), 20)
	}
	dir := writeCorpus(t, files)

	cfg := IngestConfig{MaxDocuments: 2, ChunkSize: 200, ChunkOverlap: 20, BatchSize: 3}
	emb := &countingEmbedder{Embedder: llm.NewHashEmbedder(32)}
	stats, err := NewIngester(emb, s.ChunkRepo(), cfg, nil).Build(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Documents)
	assert.Greater(t, stats.Chunks, 2)
	assert.Equal(t, int32((stats.Chunks+2)/3), emb.calls.Load())

	chunks, err := s.ChunkRepo().All(context.Background())
	require.NoError(t, err)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c.Content)), 200)
		assert.Contains(t, []string{"doc0.txt", "doc1.txt"}, c.Source)
		assert.Len(t, c.Embedding, 32)
	}
}

func TestBuildEmptyDir(t *testing.T) {
	s := openStore(t)
	_, err := NewIngester(llm.NewHashEmbedder(8), s.ChunkRepo(), DefaultIngestConfig(), nil).
		Build(context.Background(), t.TempDir())
	assert.Error(t, err)
}

func TestEnsureRebuildsOnModelChange(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	dir := writeCorpus(t, corpus)
	repo := s.ChunkRepo()

	old := llm.NewHashEmbedder(16)
	require.NoError(t, Ensure(ctx, NewIngester(old, repo, DefaultIngestConfig(), nil),
		mustIndex(t, old, repo), repo, dir, nil))
	meta, err := repo.Meta(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hash-16", meta.Model)

	cur := llm.NewHashEmbedder(48)
	idx := mustIndex(t, cur, repo)
	require.NoError(t, Ensure(ctx, NewIngester(cur, repo, DefaultIngestConfig(), nil), idx, repo, dir, nil))
	meta, err = repo.Meta(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hash-48", meta.Model)
	assert.Equal(t, 3, idx.Len())
}

func TestEnsureWithoutCorpusLoadsExisting(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	repo := s.ChunkRepo()
	emb := llm.NewHashEmbedder(16)

	idx := mustIndex(t, emb, repo)
	require.NoError(t, Ensure(ctx, NewIngester(emb, repo, DefaultIngestConfig(), nil), idx, repo, "", nil))
	assert.Equal(t, 0, idx.Len())
}

func TestCosine(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	assert.InDelta(t, 0, cosine(a, b, norm(a), norm(b)), 1e-9)
	assert.InDelta(t, 1, cosine(a, a, norm(a), norm(a)), 1e-9)
	assert.Equal(t, 0.0, cosine(a, []float32{1}, 1, 1))
	assert.Equal(t, 0.0, cosine(a, []float32{0, 0}, 1, 0))
}

func mustIndex(t *testing.T, emb llm.Embedder, repo store.ChunkRepo) *Index {
	t.Helper()
	idx, err := NewIndex(emb, repo, 3, 8, nil)
	require.NoError(t, err)
	return idx
}
