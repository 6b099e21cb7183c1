package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medprep/mcqgen/internal/blueprint"
	"github.com/medprep/mcqgen/internal/chat"
	"github.com/medprep/mcqgen/internal/config"
	"github.com/medprep/mcqgen/internal/llm"
	"github.com/medprep/mcqgen/internal/logger"
	"github.com/medprep/mcqgen/internal/retrieval"
	"github.com/medprep/mcqgen/internal/store"
)

// loadConfig reads .env and the environment, then applies the persistent
// flags on top.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if v, _ := cmd.Flags().GetString("corpus"); v != "" {
		cfg.CorpusDir = v
	}
	if v, _ := cmd.Flags().GetString("blueprint"); v != "" {
		cfg.BlueprintFile = v
	}
	return cfg, nil
}

// deps holds everything a generation surface needs. Close releases the
// store and flushes the logger.
type deps struct {
	cfg    config.Config
	llmCfg llm.Config
	model  string
	log    *logger.Logger
	store  *store.Store
	orch   *chat.Orchestrator
}

func (d *deps) Close() {
	if d.store != nil {
		d.store.Close()
	}
	d.log.Sync()
}

// buildDeps wires config, logging, storage, the LLM provider, the
// retrieval index and the orchestrator. quiet discards logs, for the TUI
// which owns the terminal.
func buildDeps(ctx context.Context, cmd *cobra.Command, quiet bool) (*deps, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	log := logger.Nop()
	if !quiet {
		if log, err = logger.New(cfg.LogMode, cfg.LogLevel); err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}
	d := &deps{cfg: cfg, log: log}

	d.store, err = openStore(cmd, cfg.DBPath)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	provider, llmCfg, err := llm.NewProviderFromEnv(ctx, d.store.EventRepo(), log)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("configure LLM provider: %w", err)
	}
	d.llmCfg = llmCfg
	d.model = provider.ModelID()

	index, err := buildIndex(ctx, cfg, llmCfg, d.store, log)
	if err != nil {
		d.Close()
		return nil, err
	}

	table := blueprint.Default()
	if cfg.BlueprintFile != "" {
		if table, err = blueprint.LoadFile(cfg.BlueprintFile); err != nil {
			d.Close()
			return nil, err
		}
	}

	var retriever chat.Retriever
	if index.Len() > 0 {
		retriever = index
	} else {
		log.Warn("retrieval index is empty; questions will not be grounded on the corpus")
	}

	d.orch = chat.NewOrchestrator(provider, retriever, d.store.RunRepo(), chat.Config{
		FlushThreshold: cfg.FlushThreshold,
		Blueprint:      table,
		MaxTokens:      llmCfg.MaxTokens,
		Temperature:    llmCfg.Temperature,
	}, log)
	return d, nil
}

// buildIndex opens the retrieval index, building it from the corpus when
// needed.
func buildIndex(ctx context.Context, cfg config.Config, llmCfg llm.Config, st *store.Store, log *logger.Logger) (*retrieval.Index, error) {
	embedder, err := llm.NewEmbedder(ctx, llmCfg)
	if err != nil {
		return nil, fmt.Errorf("configure embedder: %w", err)
	}
	index, err := retrieval.NewIndex(embedder, st.ChunkRepo(), cfg.TopK, cfg.CacheSize, log)
	if err != nil {
		return nil, err
	}
	ing := retrieval.NewIngester(embedder, st.ChunkRepo(), ingestConfig(cfg), log)
	if err := retrieval.Ensure(ctx, ing, index, st.ChunkRepo(), cfg.CorpusDir, log); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("prepare retrieval index: %w", err)
	}
	return index, nil
}

func ingestConfig(cfg config.Config) retrieval.IngestConfig {
	ic := retrieval.DefaultIngestConfig()
	ic.MaxDocuments = cfg.MaxDocuments
	return ic
}
