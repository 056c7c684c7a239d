package cmd

import (
	"fmt"

	"econlint/internal/analyzer/detectors"
	"econlint/internal/models"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules [CODE]",
	Short: "List the available rules or explain one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(args) == 1 {
			spec, ok := detectors.Lookup(args[0])
			if !ok {
				return withCode(exitError, fmt.Errorf("unknown rule: %s", args[0]))
			}
			fmt.Fprintf(out, "%s: %s\n\n%s\n", color.YellowString(spec.Code), spec.Name, models.Explanation(spec.Code))
			return nil
		}

		cfg, _, err := loadConfig()
		if err != nil {
			return withCode(exitError, err)
		}
		for _, spec := range detectors.All() {
			state := color.GreenString("enabled")
			if !cfg.IsRuleEnabled(spec.Code) {
				state = color.RedString("disabled")
			}
			fmt.Fprintf(out, "%s  %-28s %s\n", color.YellowString(spec.Code), spec.Name, state)
		}
		return nil
	},
}
