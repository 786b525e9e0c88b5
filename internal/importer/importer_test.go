package importer

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/claude/freecoach/internal/catalog"
	"github.com/claude/freecoach/internal/coach"
	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/service"
	"github.com/claude/freecoach/internal/storage"
)

func TestParseCSV(t *testing.T) {
	in := "date,minutes,rpe,intensity,template_id,stopped_early\n" +
		"2026-03-01,20,6,,core-basic,false\n" +
		"2026-03-02T07:30:00Z, 35, 7.5, high,,true\n"

	got, err := ParseCSV(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d sessions, want 2", len(got))
	}
	if got[0].TemplateID != "core-basic" || got[0].Minutes != 20 || got[0].RPE != 6 {
		t.Errorf("row 1 = %+v", got[0])
	}
	if !got[0].Date.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("row 1 date = %v", got[0].Date)
	}
	if got[1].Intensity != models.IntensityHigh || !got[1].StoppedEarly || got[1].RPE != 7.5 {
		t.Errorf("row 2 = %+v", got[1])
	}
	if got[1].Date.Hour() != 7 {
		t.Errorf("row 2 date = %v", got[1].Date)
	}
}

func TestParseCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"missing rpe column", "minutes,intensity\n10,low\n", `missing "rpe"`},
		{"bad minutes", "minutes,rpe\nten,5\n", "line 2: minutes"},
		{"bad date", "minutes,rpe,date\n10,5,March\n", "line 2: date"},
		{"bad id", "minutes,rpe,id\n10,5,xyz\n", "line 2: id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.in))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestParseCSVEmpty(t *testing.T) {
	got, err := ParseCSV(strings.NewReader(""))
	if err != nil || got != nil {
		t.Errorf("got %v, %v; want nil, nil", got, err)
	}
}

func TestParseJSON(t *testing.T) {
	got, err := ParseJSON(strings.NewReader(`[{"minutes":15,"rpe":4,"intensity":"low","date":"2026-03-01T08:00:00Z"}]`))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Minutes != 15 || got[0].Intensity != models.IntensityLow {
		t.Errorf("got %+v", got)
	}

	if _, err := ParseJSON(strings.NewReader(`{"minutes":15}`)); err == nil {
		t.Error("expected error for non-array JSON")
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newService(t *testing.T) (*service.Service, *storage.Memory) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := storage.NewMemory()
	return service.New(catalog.Default(), st, coach.New(st, nil, 0, log), log), st
}

func countSessions(t *testing.T, st *storage.Memory, userID int) int {
	t.Helper()
	got, err := st.QuerySessions(context.Background(), userID, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	return len(got)
}

func TestImportDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `[{"minutes":15,"rpe":4,"intensity":"low","date":"2026-03-01T08:00:00Z"}]`)
	writeFile(t, dir, "b.csv", "date,minutes,rpe,template_id\n2026-03-02,20,6,core-basic\n2026-03-03,25,7,cardio-walk\n")
	writeFile(t, dir, "notes.txt", "ignored")

	svc, st := newService(t)
	state, err := OpenStateDB(filepath.Join(t.TempDir(), "state"))
	if err != nil {
		t.Fatal(err)
	}
	defer state.Close()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	stats, err := New(svc, state, 3, false, log).Import(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesTotal != 2 || stats.FilesProcessed != 2 || stats.SessionsImported != 3 {
		t.Errorf("stats = %+v", stats)
	}
	if n := countSessions(t, st, 3); n != 3 {
		t.Errorf("stored %d sessions for user 3, want 3", n)
	}

	// Unchanged files are skipped on the next run.
	stats, err = New(svc, state, 3, false, log).Import(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesSkipped != 2 || stats.SessionsImported != 0 {
		t.Errorf("rerun stats = %+v", stats)
	}

	files, err := state.Files(3)
	if err != nil {
		t.Fatal(err)
	}
	counts := map[string]int{}
	for _, f := range files {
		counts[filepath.Base(f.Path)] = f.Sessions
		if !filepath.IsAbs(f.Path) {
			t.Errorf("recorded path %q is not absolute", f.Path)
		}
	}
	if len(files) != 2 || counts["a.json"] != 1 || counts["b.csv"] != 2 {
		t.Errorf("imported files = %+v", files)
	}

	// The same export is still pending for another user.
	stats, err = New(svc, state, 4, false, log).Import(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesSkipped != 0 || stats.SessionsImported != 3 {
		t.Errorf("other user stats = %+v", stats)
	}
	if n := countSessions(t, st, 4); n != 3 {
		t.Errorf("stored %d sessions for user 4, want 3", n)
	}
}

func TestImportRejectedRowsKeepFilePending(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "s.csv", "minutes,rpe,intensity\n20,6,med\n0,5,low\n")

	svc, st := newService(t)
	state, err := OpenStateDB(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer state.Close()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	stats, err := New(svc, state, 1, false, log).Import(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if stats.SessionsImported != 1 || stats.SessionsRejected != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if n := countSessions(t, st, 1); n != 1 {
		t.Errorf("stored %d sessions, want 1", n)
	}

	stats, _ = New(svc, state, 1, false, log).Import(context.Background(), dir)
	if stats.FilesSkipped != 0 {
		t.Errorf("file with rejected rows was marked imported: %+v", stats)
	}
	if n := countSessions(t, st, 1); n != 1 {
		t.Errorf("stored %d sessions after rerun, want 1", n)
	}
}

func TestRowIDStable(t *testing.T) {
	s := models.Session{Minutes: 20, RPE: 6, Intensity: models.IntensityMed}
	a := rowID(1, "export/s.csv", 0, s)
	if a != rowID(1, "export/s.csv", 0, s) {
		t.Error("same row produced different ids")
	}
	for name, other := range map[string]uuid.UUID{
		"row":  rowID(1, "export/s.csv", 1, s),
		"user": rowID(2, "export/s.csv", 0, s),
		"file": rowID(1, "export/t.csv", 0, s),
		"body": rowID(1, "export/s.csv", 0, models.Session{Minutes: 21, RPE: 6, Intensity: models.IntensityMed}),
	} {
		if other == a {
			t.Errorf("different %s produced the same id", name)
		}
	}
}

func TestImportDryRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "s.json", `[{"minutes":15,"rpe":4,"intensity":"low"},{"minutes":10,"rpe":3,"intensity":"low"}]`)
	writeFile(t, dir, "broken.json", `[{`)

	svc, st := newService(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	stats, err := New(svc, nil, 1, true, log).Import(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if stats.SessionsImported != 2 || stats.FilesErrored != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if n := countSessions(t, st, 1); n != 0 {
		t.Errorf("dry run stored %d sessions", n)
	}
}

func TestImportSingleFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.csv", "minutes,rpe,intensity\n12,5,low\n")

	svc, _ := newService(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	stats, err := New(svc, nil, 1, false, log).Import(context.Background(), filepath.Join(dir, "one.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesTotal != 1 || stats.SessionsImported != 1 {
		t.Errorf("stats = %+v", stats)
	}

	if _, err := New(svc, nil, 1, false, log).Import(context.Background(), filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a", "abc")
	got, err := HashFile(filepath.Join(dir, "a"))
	if err != nil {
		t.Fatal(err)
	}
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("HashFile = %s, want %s", got, want)
	}
}
