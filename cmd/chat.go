package cmd

import (
	"github.com/spf13/cobra"

	"github.com/medprep/mcqgen/internal/app"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the terminal chat (default command)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd)
	},
}

// runChat builds dependencies and launches the TUI.
func runChat(cmd *cobra.Command) error {
	ctx := cmd.Context()
	d, err := buildDeps(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer d.Close()

	return app.Run(ctx, app.Options{
		Orchestrator: d.orch,
		Runs:         d.store.RunRepo(),
		ModelID:      d.model,
		MaxQuestions: d.cfg.MaxQuestions,
		Log:          d.log,
	})
}
