package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/medprep/mcqgen/internal/telegram"
	"github.com/medprep/mcqgen/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web chat server, plus the Telegram bot when a token is configured",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := buildDeps(ctx, cmd, false)
		if err != nil {
			return err
		}
		defer d.Close()

		addr := d.cfg.Addr
		if v, _ := cmd.Flags().GetString("addr"); v != "" {
			addr = v
		}
		origins, _ := cmd.Flags().GetStringSlice("origin")
		noTelegram, _ := cmd.Flags().GetBool("no-telegram")

		g, gctx := errgroup.WithContext(ctx)

		srv := web.NewServer(d.orch, web.Options{
			MaxQuestions:   d.cfg.MaxQuestions,
			AllowedOrigins: origins,
		}, d.log.With("component", "web"))
		g.Go(func() error {
			return srv.ListenAndServe(gctx, addr)
		})

		if d.cfg.TelegramToken != "" && !noTelegram {
			api, err := telegram.Connect(d.cfg.TelegramToken)
			if err != nil {
				return fmt.Errorf("connect telegram: %w", err)
			}
			bot := telegram.New(api, d.orch, telegram.Options{MaxQuestions: d.cfg.MaxQuestions}, d.log.With("component", "telegram"))
			g.Go(func() error {
				return bot.Run(gctx)
			})
		} else {
			d.log.Info("telegram bot disabled")
		}

		return g.Wait()
	},
}

var telegramCmd = &cobra.Command{
	Use:   "telegram",
	Short: "Run only the Telegram bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := buildDeps(ctx, cmd, false)
		if err != nil {
			return err
		}
		defer d.Close()

		api, err := telegram.Connect(d.cfg.TelegramToken)
		if err != nil {
			return fmt.Errorf("connect telegram: %w", err)
		}
		bot := telegram.New(api, d.orch, telegram.Options{MaxQuestions: d.cfg.MaxQuestions}, d.log)
		return bot.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides MCQGEN_ADDR, default :8080)")
	serveCmd.Flags().StringSlice("origin", nil, "Allowed browser origin; repeatable. Empty allows any")
	serveCmd.Flags().Bool("no-telegram", false, "Do not start the Telegram bot even if a token is set")
}
