package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/medprep/mcqgen/internal/store"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mcqgen",
	Short: "Chat-driven generator of medical board-exam MCQs",
	Long: "mcqgen turns chat requests like \"Generate 10 MCQs on cardiology\" into exam-style\n" +
		"multiple-choice questions, grounded on an indexed syllabus corpus. It runs as a\n" +
		"terminal chat, a web chat server, a Telegram bot or a one-shot command.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd)
	},
}

// Execute runs the root command. Interrupts cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides MCQGEN_DB env var)")
	rootCmd.PersistentFlags().String("corpus", "", "Syllabus corpus directory (overrides MCQGEN_CORPUS_DIR)")
	rootCmd.PersistentFlags().String("blueprint", "", "Blueprint JSON file (overrides MCQGEN_BLUEPRINT_FILE)")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(telegramCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(blueprintCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then the configured path, then MCQGEN_DB and the default XDG path.
func resolveDBPath(cmd *cobra.Command, configured string) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if configured != "" {
		return configured, store.EnsureDir(configured)
	}
	return store.DefaultDBPath()
}

// openStore resolves the database path and opens it.
func openStore(cmd *cobra.Command, configured string) (*store.Store, error) {
	dbPath, err := resolveDBPath(cmd, configured)
	if err != nil {
		return nil, err
	}
	return store.Open(dbPath)
}
