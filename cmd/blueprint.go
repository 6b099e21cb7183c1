package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/medprep/mcqgen/internal/blueprint"
	"github.com/medprep/mcqgen/internal/intent"
)

var blueprintCmd = &cobra.Command{
	Use:   "blueprint [total]",
	Short: "Show how a full exam is allocated across blueprint categories",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		total := intent.BlueprintCount
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fmt.Errorf("invalid total %q: must be a positive integer", args[0])
			}
			total = n
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		table := blueprint.Default()
		source := "built-in"
		if cfg.BlueprintFile != "" {
			if table, err = blueprint.LoadFile(cfg.BlueprintFile); err != nil {
				return err
			}
			source = cfg.BlueprintFile
		}

		alloc := blueprint.Allocate(table, total)
		fmt.Printf("Blueprint: %s (%d categories, weight %.1f)\n", source, len(table), table.TotalWeight())
		fmt.Println(strings.Repeat("─", 60))
		for i, s := range alloc {
			fmt.Printf("%-48s  %5.1f  %4d\n", truncate(s.Category, 48), table[i].Weight, s.Count)
		}
		fmt.Println(strings.Repeat("─", 60))
		fmt.Printf("%-48s  %5s  %4d\n", "TOTAL", "", alloc.Total())
		return nil
	},
}
