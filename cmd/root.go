package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"econlint/internal/analyzer"
	"econlint/internal/config"
	"econlint/internal/discovery"
	"econlint/internal/logging"
	"econlint/internal/models"
	"econlint/internal/storage"
	"econlint/internal/watcher"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Exit codes.
const (
	exitClean    = 0
	exitFindings = 1
	exitError    = 2
)

// settings resolves flags, then ECONLINT_* environment variables, then
// flag defaults.
var settings = viper.New()

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "econlint [path]",
	Short: "Detect expensive code patterns in Python files",
	Long: `econlint scans Python code for patterns with hidden runtime cost:
external calls inside loops (ECON001), unbounded retries (ECON002),
N+1 fetches (ECON003) and unbounded concurrent fan-out (ECON004).

Examples:
  econlint .                               # Analyze current directory
  econlint app/sync.py                     # Analyze a single file
  econlint --json .                        # Output results as JSON
  econlint --disable ECON001,ECON003 .     # Skip rules
  econlint --exclude 'tests' --exclude '*_pb2.py' .
  econlint --generate-config               # Generate sample config file

Suppress a finding with a trailing comment on its line:
  resp = requests.get(url)  # econlint: ignore=ECON001`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runAnalysis,
}

// codeError carries a process exit code through cobra.
type codeError struct {
	code int
	err  error
}

func (e *codeError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *codeError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	return &codeError{code: code, err: err}
}

// Execute runs the CLI and exits with 0 when nothing was found, 1 when
// warnings remain and 2 on errors.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return exitClean
	}
	var ce *codeError
	if errors.As(err, &ce) {
		if ce.err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", ce.err)
		}
		return ce.code
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return exitError
}

func init() {
	rootCmd.Flags().Bool("json", false, "Output results as JSON")
	rootCmd.Flags().String("disable", "", "Disable rules (comma-separated, e.g. ECON001,ECON003)")
	rootCmd.Flags().StringArray("exclude", nil, "Exclude paths matching pattern (repeatable)")
	rootCmd.Flags().BoolP("watch", "w", false, "Re-analyze Python files when they change")
	rootCmd.Flags().Bool("no-color", false, "Disable colored output")
	rootCmd.Flags().Bool("generate-config", false, "Generate sample configuration file")

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file (.econlint.yml or pyproject.toml)")
	rootCmd.PersistentFlags().String("history", "", "Record runs in this SQLite database")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	settings.SetEnvPrefix("ECONLINT")
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()
	_ = settings.BindPFlags(rootCmd.Flags())
	_ = settings.BindPFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(rulesCmd, historyCmd)
}

// loadConfig reads the config file and applies flag overrides shared by
// every command.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(settings.GetString("config"))
	if err != nil {
		return nil, nil, err
	}
	if lvl := settings.GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if path := settings.GetString("history"); path != "" {
		cfg.History.Enabled = true
		cfg.History.Path = path
	}
	if settings.GetBool("no-color") {
		cfg.Output.Colors = false
		color.NoColor = true
	}
	logger := logging.New(os.Stderr, cfg.Logging.Format, cfg.Logging.Level)
	return cfg, logger, nil
}

func runAnalysis(cmd *cobra.Command, args []string) error {
	if settings.GetBool("generate-config") {
		return generateConfig()
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return withCode(exitError, fmt.Errorf("loading configuration: %w", err))
	}

	if settings.GetBool("json") {
		cfg.Output.Format = "json"
	}
	if disabled := settings.GetString("disable"); disabled != "" {
		cfg.DisableRules(disabled)
	}
	cfg.Files.Exclude = append(cfg.Files.Exclude, settings.GetStringSlice("exclude")...)

	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	if _, err := os.Stat(root); err != nil {
		return withCode(exitError, fmt.Errorf("path does not exist: %s", root))
	}

	engine := analyzer.NewAnalyzerWithConfig(cfg, logger)
	reportGen := analyzer.NewReportGeneratorWithConfig(cfg)
	logger.Info("starting analysis", "path", root, "rules", engine.GetDetectorNames())

	result, err := engine.Analyze(cmd.Context(), root)
	if err != nil {
		if errors.Is(err, discovery.ErrPathNotFound) {
			return withCode(exitError, fmt.Errorf("path does not exist: %s", root))
		}
		return withCode(exitError, err)
	}
	logger.Info("analysis finished", "summary", reportGen.Summary(result), "duration", result.AnalysisDuration)

	if err := emitReport(reportGen.Generate(result.Warnings), cfg.Output.OutputFile); err != nil {
		return withCode(exitError, err)
	}
	recordRun(cfg, logger, root, result)

	if settings.GetBool("watch") {
		return watch(cmd.Context(), cfg, logger, engine, reportGen, root)
	}

	if len(result.Warnings) > 0 {
		return withCode(exitFindings, nil)
	}
	return nil
}

func emitReport(report, outputFile string) error {
	if outputFile != "" {
		if err := writeReportToFile(report, outputFile); err != nil {
			return fmt.Errorf("failed to write report to file: %w", err)
		}
		color.New(color.FgGreen).Fprintf(os.Stderr, "Report saved to: %s\n", outputFile)
		return nil
	}
	if report != "" {
		fmt.Println(report)
	}
	return nil
}

// recordRun stores the run when history is enabled. Failures are logged and
// do not change the exit code.
func recordRun(cfg *config.Config, logger *slog.Logger, root string, result *models.AnalysisResult) {
	if !cfg.History.Enabled {
		return
	}
	db, err := storage.OpenSQLite(cfg.History.Path)
	if err != nil {
		logger.Warn("cannot open run history", "path", cfg.History.Path, "error", err)
		return
	}
	defer db.Close()

	id, err := db.SaveRun(&storage.Run{
		StartedAt:     time.Now(),
		Root:          root,
		FilesAnalyzed: len(result.Files),
		Warnings:      result.Warnings,
	})
	if err != nil {
		logger.Warn("cannot record run", "path", cfg.History.Path, "error", err)
		return
	}
	logger.Info("run recorded", "id", id, "path", cfg.History.Path)
}

// watch re-analyzes changed files until the context is cancelled.
func watch(ctx context.Context, cfg *config.Config, logger *slog.Logger,
	engine *analyzer.Analyzer, reportGen *analyzer.ReportGenerator, root string) error {
	fw, err := watcher.NewFileWatcher(cfg, logger)
	if err != nil {
		return withCode(exitError, err)
	}
	defer fw.Close()

	handler := func(files []string) error {
		var existing []string
		for _, f := range files {
			if _, err := os.Stat(f); err == nil {
				existing = append(existing, f)
			}
		}
		if len(existing) == 0 {
			return nil
		}
		color.New(color.FgCyan).Fprintf(os.Stderr, "Re-analyzing %d changed file(s)...\n", len(existing))
		result, err := engine.AnalyzeFiles(ctx, existing)
		if err != nil {
			return err
		}
		if len(result.Warnings) == 0 {
			color.New(color.FgGreen).Fprintln(os.Stderr, "No expensive patterns found.")
			return nil
		}
		return emitReport(reportGen.Generate(result.Warnings), cfg.Output.OutputFile)
	}

	if err := fw.Watch([]string{root}, handler); err != nil {
		return withCode(exitError, err)
	}
	color.New(color.FgCyan).Fprintf(os.Stderr, "Watching %s for changes (Ctrl+C to stop)\n", root)
	<-ctx.Done()
	return nil
}

func writeReportToFile(report, filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(filePath, []byte(report+"\n"), 0644)
}

func generateConfig() error {
	configPath := ".econlint.yml"
	if err := config.GenerateConfig(configPath); err != nil {
		return withCode(exitError, fmt.Errorf("failed to generate config file: %w", err))
	}
	color.Green("Generated sample configuration file: %s\n", configPath)
	color.Cyan("Edit this file to customize econlint behavior\n")
	return nil
}
