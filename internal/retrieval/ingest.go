// Package retrieval indexes the syllabus corpus and finds the passages most
// similar to a generation topic.
package retrieval

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/medprep/mcqgen/internal/llm"
	"github.com/medprep/mcqgen/internal/logger"
	"github.com/medprep/mcqgen/internal/store"
)

// IngestConfig controls corpus loading and chunking.
type IngestConfig struct {
	// MaxDocuments caps how many loaded documents (PDF pages count
	// individually) are indexed.
	MaxDocuments int
	ChunkSize    int
	ChunkOverlap int
	// BatchSize is the number of chunks sent per embedding call.
	BatchSize int
}

// DefaultIngestConfig returns the standard chunking parameters.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		MaxDocuments: 50,
		ChunkSize:    2000,
		ChunkOverlap: 200,
		BatchSize:    100,
	}
}

// BuildStats summarizes an index build.
type BuildStats struct {
	Files     int
	Documents int
	Chunks    int
	Model     string
}

// Ingester loads corpus files, splits and embeds them, and stores the
// result as the retrieval index.
type Ingester struct {
	embedder llm.Embedder
	repo     store.ChunkRepo
	cfg      IngestConfig
	log      *logger.Logger
}

// NewIngester creates an Ingester.
func NewIngester(embedder llm.Embedder, repo store.ChunkRepo, cfg IngestConfig, log *logger.Logger) *Ingester {
	if log == nil {
		log = logger.Nop()
	}
	return &Ingester{embedder: embedder, repo: repo, cfg: cfg, log: log}
}

var supportedExt = map[string]bool{".pdf": true, ".txt": true, ".md": true}

// Build replaces the stored index with the contents of dir.
func (in *Ingester) Build(ctx context.Context, dir string) (BuildStats, error) {
	files, err := corpusFiles(dir)
	if err != nil {
		return BuildStats{}, err
	}
	if len(files) == 0 {
		return BuildStats{}, fmt.Errorf("no .pdf, .txt or .md files in %s", dir)
	}

	var docs []schema.Document
	loaded := 0
	for _, f := range files {
		if in.cfg.MaxDocuments > 0 && len(docs) >= in.cfg.MaxDocuments {
			break
		}
		d, err := loadFile(ctx, f)
		if err != nil {
			in.log.Warn("skipping corpus file", "path", f, "error", err)
			continue
		}
		loaded++
		docs = append(docs, d...)
	}
	if in.cfg.MaxDocuments > 0 && len(docs) > in.cfg.MaxDocuments {
		docs = docs[:in.cfg.MaxDocuments]
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(in.cfg.ChunkSize),
		textsplitter.WithChunkOverlap(in.cfg.ChunkOverlap),
	)
	pieces, err := textsplitter.SplitDocuments(splitter, docs)
	if err != nil {
		return BuildStats{}, fmt.Errorf("split documents: %w", err)
	}

	chunks := make([]store.Chunk, 0, len(pieces))
	for _, p := range pieces {
		text := strings.TrimSpace(p.PageContent)
		if text == "" {
			continue
		}
		chunks = append(chunks, store.Chunk{
			Source:  metaString(p.Metadata, "source"),
			Page:    metaInt(p.Metadata, "page"),
			Content: text,
		})
	}

	if err := in.embed(ctx, chunks); err != nil {
		return BuildStats{}, err
	}

	model := in.embedder.ModelID()
	if err := in.repo.Replace(ctx, model, chunks); err != nil {
		return BuildStats{}, fmt.Errorf("store index: %w", err)
	}

	stats := BuildStats{Files: loaded, Documents: len(docs), Chunks: len(chunks), Model: model}
	in.log.Info("retrieval index built",
		"dir", dir, "files", stats.Files, "documents", stats.Documents, "chunks", stats.Chunks, "model", model)
	return stats, nil
}

func (in *Ingester) embed(ctx context.Context, chunks []store.Chunk) error {
	batch := in.cfg.BatchSize
	if batch <= 0 {
		batch = len(chunks)
	}
	for start := 0; start < len(chunks); start += batch {
		end := min(start+batch, len(chunks))
		texts := make([]string, end-start)
		for i := range texts {
			texts[i] = chunks[start+i].Content
		}
		vecs, err := in.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)
		}
		if len(vecs) != len(texts) {
			return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(texts))
		}
		for i, v := range vecs {
			chunks[start+i].Embedding = v
		}
	}
	return nil
}

// corpusFiles lists supported files under dir in lexical order.
func corpusFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if supportedExt[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan corpus %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

func loadFile(ctx context.Context, path string) ([]schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var loader documentloaders.Loader
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		info, err := f.Stat()
		if err != nil {
			return nil, err
		}
		loader = documentloaders.NewPDF(f, info.Size())
	default:
		loader = documentloaders.NewText(f)
	}

	docs, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	for i := range docs {
		if docs[i].Metadata == nil {
			docs[i].Metadata = map[string]any{}
		}
		docs[i].Metadata["source"] = filepath.Base(path)
	}
	return docs, nil
}

func metaString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func metaInt(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
