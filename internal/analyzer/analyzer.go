package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"econlint/internal/analyzer/detectors"
	"econlint/internal/config"
	"econlint/internal/discovery"
	"econlint/internal/logging"
	"econlint/internal/models"
	"econlint/internal/parser"
	"econlint/internal/suppression"
)

// Analyzer runs the enabled rules over a set of Python files.
type Analyzer struct {
	config *config.Config
	rules  []detectors.Spec
	logger *slog.Logger
}

func NewAnalyzer() *Analyzer {
	return NewAnalyzerWithConfig(config.DefaultConfig(), nil)
}

// NewAnalyzerWithConfig builds an analyzer running the rules cfg enables.
// A nil logger discards log output.
func NewAnalyzerWithConfig(cfg *config.Config, logger *slog.Logger) *Analyzer {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Analyzer{
		config: cfg,
		rules:  detectors.Enabled(cfg.DisabledCodes()),
		logger: logger,
	}
}

type fileResult struct {
	lines    []string
	warnings []models.Warning
	err      error
}

// Analyze discovers the Python files under root and analyzes them. It
// returns discovery.ErrPathNotFound if root does not exist.
func (a *Analyzer) Analyze(ctx context.Context, root string) (*models.AnalysisResult, error) {
	var files []string
	for path, err := range discovery.Discover(root, a.config.Files.Exclude) {
		if err != nil {
			if errors.Is(err, discovery.ErrPathNotFound) {
				return nil, err
			}
			a.logger.Warn("cannot list path", "path", path, "error", err)
			continue
		}
		files = append(files, path)
	}
	return a.AnalyzeFiles(ctx, files)
}

// AnalyzeFiles parses and checks every file. Files that cannot be read or
// parsed are logged and recorded in Skipped; the run carries on. Warnings
// come back sorted by file, line and code with suppressed ones removed.
func (a *Analyzer) AnalyzeFiles(ctx context.Context, filenames []string) (*models.AnalysisResult, error) {
	startTime := time.Now()
	result := models.NewAnalysisResult()

	results := make([]fileResult, len(filenames))
	workers := a.config.Analysis.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, filename := range filenames {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p := parser.NewParser(a.config.Files.MaxFileSize)
			results[i] = a.analyzeFile(ctx, p, filename)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analysis interrupted: %w", err)
	}

	var all []models.Warning
	for i, fr := range results {
		filename := filenames[i]
		if fr.err != nil {
			a.logger.Warn("skipping file", "file", filename, "error", fr.err)
			result.Skipped = append(result.Skipped, models.SkippedFile{File: filename, Reason: fr.err.Error()})
			continue
		}
		result.Files = append(result.Files, filename)
		result.SourceLines[filename] = fr.lines
		all = append(all, fr.warnings...)
	}

	models.SortWarnings(all)
	if missing := suppression.Missing(all, result.SourceLines); len(missing) > 0 {
		a.logger.Warn("no source lines cached, suppression directives not applied", "files", missing)
	}
	kept, dropped := suppression.Filter(all, result.SourceLines)
	result.SetWarnings(kept)
	result.Suppressed = dropped

	result.AnalysisDuration = time.Since(startTime).String()
	a.logger.Debug("analysis complete",
		"files", len(result.Files), "skipped", len(result.Skipped),
		"warnings", len(kept), "suppressed", dropped)
	return result, nil
}

func (a *Analyzer) analyzeFile(ctx context.Context, p *parser.Parser, filename string) fileResult {
	parsed, err := p.ParseFile(ctx, filename)
	if err != nil {
		return fileResult{err: err}
	}
	defer parsed.Close()
	return fileResult{
		lines:    parsed.Lines,
		warnings: a.runRules(parsed),
	}
}

// AnalyzeSource checks source as if it were the contents of filename. The
// returned warnings are sorted but not filtered for suppressions.
func (a *Analyzer) AnalyzeSource(ctx context.Context, filename string, source []byte) ([]models.Warning, []string, error) {
	parsed, err := parser.NewParser(0).ParseSource(ctx, filename, source)
	if err != nil {
		return nil, nil, err
	}
	defer parsed.Close()
	ws := a.runRules(parsed)
	models.SortWarnings(ws)
	return ws, parsed.Lines, nil
}

// runRules builds a fresh instance of every rule for this file.
func (a *Analyzer) runRules(parsed *parser.ParsedFile) []models.Warning {
	var out []models.Warning
	root := parsed.Root()
	for _, spec := range a.rules {
		rule := spec.New(parsed.Path, parsed.Source, parsed.Lines)
		out = append(out, rule.Detect(root)...)
	}
	return out
}

// GetDetectorCount returns the number of active rules
func (a *Analyzer) GetDetectorCount() int {
	return len(a.rules)
}

// GetDetectorNames returns the codes of all active rules
func (a *Analyzer) GetDetectorNames() []string {
	names := make([]string, len(a.rules))
	for i, r := range a.rules {
		names[i] = r.Code
	}
	return names
}
