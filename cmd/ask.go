package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/medprep/mcqgen/internal/chat"
)

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Handle one chat message and print the reply",
	Example: `  mcqgen ask "Generate 5 MCQs on nephrotic syndrome"
  mcqgen ask blueprint > exam.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := buildDeps(ctx, cmd, false)
		if err != nil {
			return err
		}
		defer d.Close()

		surface := chat.NewConsoleSurface(cmd.OutOrStdout())
		sess := chat.NewSession(d.orch, surface, chat.SessionOptions{
			Surface:      "console",
			MaxQuestions: d.cfg.MaxQuestions,
			Log:          d.log,
		})
		defer sess.Close()

		if err := sess.Submit(ctx, strings.Join(args, " ")); err != nil {
			return err
		}
		sess.Wait()
		if err := surface.Flush(); err != nil {
			return fmt.Errorf("write reply: %w", err)
		}
		return ctx.Err()
	},
}
