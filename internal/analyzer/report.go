package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	"econlint/internal/config"
	"econlint/internal/models"

	"github.com/fatih/color"
)

// ReportGenerator handles formatting of analysis results
type ReportGenerator struct {
	format string
	config *config.Config
}

// NewReportGenerator creates a new report generator
func NewReportGenerator(format string) *ReportGenerator {
	return &ReportGenerator{
		format: format,
		config: config.DefaultConfig(),
	}
}

func NewReportGeneratorWithConfig(cfg *config.Config) *ReportGenerator {
	return &ReportGenerator{
		format: cfg.Output.Format,
		config: cfg,
	}
}

// Generate renders warnings in the configured format. The text format is
// empty when there is nothing to report.
func (r *ReportGenerator) Generate(warnings []models.Warning) string {
	switch r.format {
	case "json":
		return r.generateJSON(warnings)
	default:
		return r.generateText(warnings)
	}
}

// generateJSON renders an indented array of warnings.
func (r *ReportGenerator) generateJSON(warnings []models.Warning) string {
	if warnings == nil {
		warnings = []models.Warning{}
	}
	data, err := json.MarshalIndent(warnings, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error generating JSON report: %v", err)
	}
	return string(data)
}

// generateText renders one block per warning:
//
//	ECON001: External call inside loop at app/sync.py:45
//
//	  Pattern: requests.get() called inside loop
//
//	  Economic risk: ...
func (r *ReportGenerator) generateText(warnings []models.Warning) string {
	if len(warnings) == 0 {
		return ""
	}

	useColors := r.config != nil && r.config.Output.Colors
	header := fmt.Sprint
	location := fmt.Sprint
	pattern := fmt.Sprint
	if useColors {
		header = color.New(color.FgRed, color.Bold).Sprint
		location = color.New(color.FgCyan).Sprint
		pattern = color.New(color.FgYellow).Sprint
	}

	parts := make([]string, 0, len(warnings))
	for _, w := range warnings {
		var block strings.Builder
		block.WriteString(fmt.Sprintf("%s: %s at %s\n\n",
			header(w.Code), w.Message, location(fmt.Sprintf("%s:%d", w.File, w.Line))))
		block.WriteString(fmt.Sprintf("  Pattern: %s\n\n", pattern(w.Pattern)))
		for _, line := range strings.Split(strings.TrimSpace(w.Explanation), "\n") {
			block.WriteString("  " + line + "\n")
		}
		parts = append(parts, block.String())
	}
	return strings.Join(parts, "\n")
}

// Summary returns a one-line overview for status output.
func (r *ReportGenerator) Summary(result *models.AnalysisResult) string {
	codes := make([]string, 0, len(result.WarningsByCode))
	for _, code := range []string{
		models.CodeExternalCallInLoop, models.CodeUnboundedRetry,
		models.CodeNPlusOne, models.CodeUnboundedFanOut,
	} {
		if n := result.WarningsByCode[code]; n > 0 {
			codes = append(codes, fmt.Sprintf("%s=%d", code, n))
		}
	}
	s := fmt.Sprintf("%d files analyzed, %d skipped, %d warnings, %d suppressed",
		len(result.Files), len(result.Skipped), len(result.Warnings), result.Suppressed)
	if len(codes) > 0 {
		s += " (" + strings.Join(codes, ", ") + ")"
	}
	return s
}
