package storage

import (
	"path/filepath"
	"testing"
	"time"

	"econlint/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "history", "runs.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveRun_RoundTrip(t *testing.T) {
	db := openTestDB(t)

	run := &Run{
		Root:          "app",
		FilesAnalyzed: 3,
		Warnings: []models.Warning{
			{Code: "ECON001", Message: "External call inside loop", File: "app/sync.py", Line: 6, Pattern: "requests.get() called inside loop"},
			{Code: "ECON004", Message: "Unbounded fan-out", File: "app/work.py", Line: 2, Pattern: "ThreadPoolExecutor() without max_workers"},
		},
	}
	id, err := db.SaveRun(run)
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if id == "" || run.ID != id {
		t.Fatalf("expected generated ID on run, got %q / %q", id, run.ID)
	}

	got, err := db.LoadWarnings(id)
	if err != nil {
		t.Fatalf("LoadWarnings: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(got))
	}
	if got[0].Pattern != "requests.get() called inside loop" || got[1].Code != "ECON004" {
		t.Errorf("warnings out of order: %+v", got)
	}
	if got[0].Explanation == "" {
		t.Error("expected explanation to be filled in from the code")
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	db := openTestDB(t)

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, root := range []string{"first", "second"} {
		if _, err := db.SaveRun(&Run{Root: root, StartedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("SaveRun(%s): %v", root, err)
		}
	}

	rows, err := db.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(rows))
	}
	if rows[0].Root != "second" {
		t.Errorf("expected newest run first, got %q", rows[0].Root)
	}
	if rows[0].Warnings != 0 {
		t.Errorf("expected no warnings, got %d", rows[0].Warnings)
	}
}

func TestLoadWarnings_UnknownRun(t *testing.T) {
	db := openTestDB(t)
	got, err := db.LoadWarnings("missing")
	if err != nil {
		t.Fatalf("LoadWarnings: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no warnings, got %d", len(got))
	}
}

func TestListRuns_SubSecondOrder(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name    string
		earlier time.Time
		later   time.Time
	}{
		{"whole second then fraction", base, base.Add(500 * time.Millisecond)},
		{"trailing zero fraction", base.Add(100 * time.Millisecond), base.Add(120 * time.Millisecond)},
		{"one nanosecond", base.Add(999 * time.Millisecond), base.Add(999*time.Millisecond + time.Nanosecond)},
		{"non-UTC input", base.In(time.FixedZone("CET", 3600)), base.Add(time.Millisecond)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openTestDB(t)
			// Insert the later run first so insertion order cannot mask the sort.
			if _, err := db.SaveRun(&Run{ID: "a", Root: "later", StartedAt: tt.later}); err != nil {
				t.Fatalf("SaveRun: %v", err)
			}
			if _, err := db.SaveRun(&Run{ID: "b", Root: "earlier", StartedAt: tt.earlier}); err != nil {
				t.Fatalf("SaveRun: %v", err)
			}

			rows, err := db.ListRuns(10)
			if err != nil {
				t.Fatalf("ListRuns: %v", err)
			}
			if len(rows) != 2 || rows[0].Root != "later" {
				t.Fatalf("expected later run first, got %+v", rows)
			}
			if !rows[0].StartedAt.Equal(tt.later) || !rows[1].StartedAt.Equal(tt.earlier) {
				t.Errorf("timestamps = %v, %v; want %v, %v", rows[0].StartedAt, rows[1].StartedAt, tt.later, tt.earlier)
			}
		})
	}
}

func TestParseStartedAt(t *testing.T) {
	want := time.Date(2026, 1, 2, 3, 4, 5, 500000000, time.UTC)
	for _, s := range []string{
		"2026-01-02T03:04:05.500000000Z",
		"2026-01-02T03:04:05.5Z",
	} {
		if got := parseStartedAt(s); !got.Equal(want) {
			t.Errorf("parseStartedAt(%q) = %v, want %v", s, got, want)
		}
	}
	if got := parseStartedAt("yesterday"); !got.IsZero() {
		t.Errorf("parseStartedAt(garbage) = %v, want zero", got)
	}
}
