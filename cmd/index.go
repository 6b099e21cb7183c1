package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medprep/mcqgen/internal/llm"
	"github.com/medprep/mcqgen/internal/logger"
	"github.com/medprep/mcqgen/internal/retrieval"
)

var indexCmd = &cobra.Command{
	Use:   "index [dir]",
	Short: "Rebuild the retrieval index from the syllabus corpus",
	Long: "Loads every PDF, text and markdown file under the corpus directory, splits it\n" +
		"into chunks, embeds them and replaces the stored index.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dir := cfg.CorpusDir
		if len(args) == 1 {
			dir = args[0]
		}
		if dir == "" {
			return errors.New("no corpus directory: pass one or set MCQGEN_CORPUS_DIR")
		}

		log, err := logger.New(cfg.LogMode, cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer log.Sync()

		s, err := openStore(cmd, cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer s.Close()

		llmCfg, err := llm.ResolveConfig()
		if err != nil {
			return err
		}
		embedder, err := llm.NewEmbedder(ctx, llmCfg)
		if err != nil {
			return fmt.Errorf("configure embedder: %w", err)
		}

		stats, err := retrieval.NewIngester(embedder, s.ChunkRepo(), ingestConfig(cfg), log).Build(ctx, dir)
		if err != nil {
			return err
		}
		fmt.Printf("Indexed %d files (%d documents) into %d chunks with %s\n",
			stats.Files, stats.Documents, stats.Chunks, stats.Model)
		return nil
	},
}
