package cmd

import (
	"fmt"

	"econlint/internal/analyzer"
	"econlint/internal/storage"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [RUN_ID]",
	Short: "Show recorded runs, or the warnings of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return withCode(exitError, err)
	}

	db, err := storage.OpenSQLite(cfg.History.Path)
	if err != nil {
		return withCode(exitError, err)
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		warnings, err := db.LoadWarnings(args[0])
		if err != nil {
			return withCode(exitError, err)
		}
		if report := analyzer.NewReportGeneratorWithConfig(cfg).Generate(warnings); report != "" {
			fmt.Fprintln(out, report)
		}
		return nil
	}

	runs, err := db.ListRuns(historyLimit)
	if err != nil {
		return withCode(exitError, err)
	}
	if len(runs) == 0 {
		color.New(color.FgYellow).Fprintf(out, "No runs recorded in %s\n", cfg.History.Path)
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(out, "%s  %s  %-30s files=%-5d warnings=%d\n",
			color.CyanString(r.ID), r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Root, r.FilesAnalyzed, r.Warnings)
	}
	return nil
}
