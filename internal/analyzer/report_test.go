package analyzer

import (
	"encoding/json"
	"strings"
	"testing"

	"econlint/internal/config"
	"econlint/internal/models"
)

func plainText() *ReportGenerator {
	cfg := config.DefaultConfig()
	cfg.Output.Colors = false
	return NewReportGeneratorWithConfig(cfg)
}

func TestGenerateTextEmpty(t *testing.T) {
	if got := plainText().Generate(nil); got != "" {
		t.Errorf("empty text report = %q, want empty", got)
	}
}

func TestGenerateText(t *testing.T) {
	warnings := []models.Warning{
		{
			Code:        models.CodeExternalCallInLoop,
			Message:     "External call inside loop",
			File:        "app/sync.py",
			Line:        45,
			Pattern:     "requests.get() called inside loop",
			Explanation: "Economic risk: first line.\n\nConsider: batching.",
		},
		{
			Code:        models.CodeUnboundedFanOut,
			Message:     "Unbounded fan-out",
			File:        "app/sync.py",
			Line:        60,
			Pattern:     "ThreadPoolExecutor() without max_workers",
			Explanation: "Economic risk: second.\n",
		},
	}

	want := "ECON001: External call inside loop at app/sync.py:45\n" +
		"\n" +
		"  Pattern: requests.get() called inside loop\n" +
		"\n" +
		"  Economic risk: first line.\n" +
		"  \n" +
		"  Consider: batching.\n" +
		"\n" +
		"ECON004: Unbounded fan-out at app/sync.py:60\n" +
		"\n" +
		"  Pattern: ThreadPoolExecutor() without max_workers\n" +
		"\n" +
		"  Economic risk: second.\n"

	if got := plainText().Generate(warnings); got != want {
		t.Errorf("text report mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestGenerateJSON(t *testing.T) {
	gen := NewReportGenerator("json")
	if got := gen.Generate(nil); got != "[]" {
		t.Errorf("empty JSON report = %q, want []", got)
	}

	w := models.Warning{
		Code:        models.CodeNPlusOne,
		Message:     "N+1 query pattern",
		File:        "svc/users.py",
		Line:        12,
		Pattern:     "user_repo.get() called with loop variable (N+1 pattern)",
		Explanation: models.Explanation(models.CodeNPlusOne),
	}
	out := gen.Generate([]models.Warning{w})
	if !strings.HasPrefix(out, "[\n  {\n    \"code\": \"ECON003\",") {
		t.Errorf("unexpected layout:\n%s", out)
	}

	var decoded []map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("decoded %d entries", len(decoded))
	}
	for _, k := range []string{"code", "message", "file", "line", "pattern", "explanation"} {
		if _, ok := decoded[0][k]; !ok {
			t.Errorf("missing key %q", k)
		}
	}
	if len(decoded[0]) != 6 {
		t.Errorf("unexpected keys: %v", decoded[0])
	}
	if decoded[0]["line"] != float64(12) {
		t.Errorf("line = %v", decoded[0]["line"])
	}
}

func TestSummary(t *testing.T) {
	r := models.NewAnalysisResult()
	r.Files = []string{"a.py", "b.py"}
	r.Skipped = []models.SkippedFile{{File: "c.py", Reason: "syntax error"}}
	r.SetWarnings([]models.Warning{{Code: models.CodeUnboundedRetry}, {Code: models.CodeExternalCallInLoop}})
	r.Suppressed = 1

	want := "2 files analyzed, 1 skipped, 2 warnings, 1 suppressed (ECON001=1, ECON002=1)"
	if got := plainText().Summary(r); got != want {
		t.Errorf("Summary = %q, want %q", got, want)
	}
}
