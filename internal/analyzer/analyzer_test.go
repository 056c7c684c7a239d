//go:build cgo

package analyzer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"econlint/internal/config"
	"econlint/internal/discovery"
	"econlint/internal/models"
)

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

const syncUsers = `import requests


def sync(user_ids):
    for uid in user_ids:
        users_api.get_user(uid)
        requests.post("/audit", json=uid)  # econlint: ignore=ECON001
`

func TestAnalyzeProject(t *testing.T) {
	root := writeProject(t, map[string]string{
		"app/sync.py":          syncUsers,
		"app/pool.py":          "from concurrent.futures import ThreadPoolExecutor\n\nex = ThreadPoolExecutor()\n",
		"app/broken.py":        "def broken(:\n    pass\n",
		"app/clean.py":         "def add(a, b):\n    return a + b\n",
		"build/generated.py":   "pool = multiprocessing.Pool()\n",
		"app/notes.txt":        "requests.get(url)\n",
		"app/__pycache__/x.py": "pool = multiprocessing.Pool()\n",
	})

	cfg := config.DefaultConfig()
	cfg.Files.Exclude = append(cfg.Files.Exclude, "build")
	result, err := NewAnalyzerWithConfig(cfg, nil).Analyze(context.Background(), root)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if len(result.Files) != 3 {
		t.Errorf("analyzed %d files, want 3: %v", len(result.Files), result.Files)
	}
	if len(result.Skipped) != 1 || filepath.Base(result.Skipped[0].File) != "broken.py" {
		t.Errorf("Skipped = %+v, want broken.py", result.Skipped)
	}

	type key struct {
		file string
		line int
		code string
	}
	var got []key
	for _, w := range result.Warnings {
		got = append(got, key{filepath.Base(w.File), w.Line, w.Code})
	}
	want := []key{
		{"pool.py", 3, models.CodeUnboundedFanOut},
		{"sync.py", 6, models.CodeExternalCallInLoop},
		{"sync.py", 6, models.CodeNPlusOne},
	}
	if len(got) != len(want) {
		t.Fatalf("warnings = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("warning[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if result.Suppressed != 1 {
		t.Errorf("Suppressed = %d, want 1", result.Suppressed)
	}
	if result.WarningsByCode[models.CodeNPlusOne] != 1 {
		t.Errorf("WarningsByCode = %v", result.WarningsByCode)
	}
}

func TestAnalyzeDisabledRules(t *testing.T) {
	root := writeProject(t, map[string]string{"sync.py": syncUsers})

	cfg := config.DefaultConfig()
	cfg.DisableRules("ECON003")
	a := NewAnalyzerWithConfig(cfg, nil)
	if a.GetDetectorCount() != 3 {
		t.Errorf("GetDetectorCount = %d, want 3", a.GetDetectorCount())
	}

	result, err := a.Analyze(context.Background(), root)
	if err != nil {
		t.Fatal(err)
	}
	for _, w := range result.Warnings {
		if w.Code == models.CodeNPlusOne {
			t.Errorf("disabled rule reported %+v", w)
		}
	}
	if len(result.Warnings) != 1 {
		t.Errorf("got %d warnings, want 1", len(result.Warnings))
	}
}

func TestAnalyzeSingleFile(t *testing.T) {
	root := writeProject(t, map[string]string{"pool.py": "pool = multiprocessing.Pool()\n"})
	result, err := NewAnalyzer().Analyze(context.Background(), filepath.Join(root, "pool.py"))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Line != 1 {
		t.Errorf("Warnings = %+v", result.Warnings)
	}
}

func TestAnalyzeMissingPath(t *testing.T) {
	_, err := NewAnalyzer().Analyze(context.Background(), filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, discovery.ErrPathNotFound) {
		t.Errorf("err = %v, want ErrPathNotFound", err)
	}
}

func TestAnalyzeCancelled(t *testing.T) {
	root := writeProject(t, map[string]string{"a.py": "x = 1\n", "b.py": "y = 2\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewAnalyzer().Analyze(ctx, root); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestAnalyzeSourceKeepsSuppressed(t *testing.T) {
	src := []byte("for u in users:\n    requests.get(u)  # econlint: ignore\n")
	ws, lines, err := NewAnalyzer().AnalyzeSource(context.Background(), "inline.py", src)
	if err != nil {
		t.Fatal(err)
	}
	if len(ws) != 1 || len(lines) != 2 {
		t.Errorf("AnalyzeSource = %+v, %d lines", ws, len(lines))
	}
}

func TestAnalyzeSample(t *testing.T) {
	result, err := NewAnalyzer().Analyze(context.Background(), filepath.Join("..", "..", "testdata", "sample.py"))
	if err != nil {
		t.Fatal(err)
	}

	want := []struct {
		line int
		code string
	}{
		{13, models.CodeExternalCallInLoop},
		{22, models.CodeUnboundedRetry},
		{33, models.CodeUnboundedRetry},
		{42, models.CodeNPlusOne},
		{51, models.CodeUnboundedFanOut},
		{61, models.CodeUnboundedFanOut},
	}
	if len(result.Warnings) != len(want) {
		t.Fatalf("got %d warnings, want %d: %+v", len(result.Warnings), len(want), result.Warnings)
	}
	for i, w := range want {
		if got := result.Warnings[i]; got.Line != w.line || got.Code != w.code {
			t.Errorf("warning[%d] = %s at line %d, want %s at line %d", i, got.Code, got.Line, w.code, w.line)
		}
	}
	if result.Suppressed != 1 {
		t.Errorf("Suppressed = %d, want 1", result.Suppressed)
	}
}

func TestAnalyzeProjectBelowVenvFolder(t *testing.T) {
	base := writeProject(t, map[string]string{
		"venv/proj/a.py": "for u in us:\n    requests.get(u)\n",
	})
	root := filepath.Join(base, "venv", "proj")

	for _, target := range []string{root, filepath.Join(root, "a.py")} {
		result, err := NewAnalyzer().Analyze(context.Background(), target)
		if err != nil {
			t.Fatal(err)
		}
		if len(result.Files) != 1 || len(result.Warnings) != 1 || result.Warnings[0].Code != models.CodeExternalCallInLoop {
			t.Errorf("Analyze(%s): files=%d warnings=%+v, want 1 file and one ECON001", target, len(result.Files), result.Warnings)
		}
	}
}
