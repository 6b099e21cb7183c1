package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/medprep/mcqgen/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent generation runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		session, _ := cmd.Flags().GetString("session")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		s, err := openStore(cmd, cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer s.Close()

		runs, err := s.RunRepo().List(cmd.Context(), store.QueryOpts{Limit: limit, Session: session})
		if err != nil {
			return fmt.Errorf("query runs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Println("No generation runs found.")
			return nil
		}

		fmt.Printf("%-19s  %-9s  %-10s  %5s  %9s  %7s  %s\n",
			"Timestamp", "Surface", "Status", "MCQs", "Vignettes", "Secs", "Topic")
		fmt.Println(strings.Repeat("─", 100))
		for _, r := range runs {
			topic := r.Topic
			if r.Category != "" {
				topic = "[blueprint] " + r.Category
			}
			fmt.Printf("%-19s  %-9s  %-10s  %5d  %4d→%-4d  %7.1f  %s\n",
				r.Timestamp.Local().Format("2006-01-02 15:04:05"),
				truncate(r.Surface, 9),
				r.Status,
				r.Requested,
				r.VignettesBefore, r.VignettesAfter,
				float64(r.LatencyMs)/1000,
				truncate(topic, 40),
			)
			if r.ErrorMessage != "" {
				fmt.Printf("    error: %s\n", r.ErrorMessage)
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Number of runs to show")
	historyCmd.Flags().String("session", "", "Only show runs from this session ID")
}
