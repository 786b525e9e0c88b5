package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/claude/freecoach/internal/models"
)

var base = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

// backends returns a fresh instance of every backend that runs without
// external services.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	lite, err := OpenSQLite(filepath.Join(t.TempDir(), "data", "freecoach.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { lite.Close() })
	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": lite,
	}
}

func TestSessions(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			mk := func(user int, at time.Time) models.Session {
				return models.Session{
					ID: uuid.New(), UserID: user, Date: at, Minutes: 20, RPE: 6.5,
					Intensity: models.IntensityMed, TemplateID: "core-basic", StoppedEarly: true,
				}
			}
			later := mk(1, base.Add(2*time.Hour))
			earlier := mk(1, base)
			other := mk(2, base)
			outside := mk(1, base.Add(48*time.Hour))
			for _, s := range []models.Session{later, earlier, other, outside} {
				if err := st.InsertSession(ctx, s); err != nil {
					t.Fatalf("InsertSession: %v", err)
				}
			}
			// Duplicate ids are ignored.
			if err := st.InsertSession(ctx, earlier); err != nil {
				t.Fatalf("InsertSession duplicate: %v", err)
			}

			got, err := st.QuerySessions(ctx, 1, base, base.Add(24*time.Hour))
			if err != nil {
				t.Fatalf("QuerySessions: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("got %d sessions, want 2", len(got))
			}
			if got[0].ID != earlier.ID || got[1].ID != later.ID {
				t.Errorf("order = [%s %s], want oldest first", got[0].ID, got[1].ID)
			}
			s := got[0]
			if !s.Date.Equal(earlier.Date) || s.Minutes != 20 || s.RPE != 6.5 ||
				s.Intensity != models.IntensityMed || s.TemplateID != "core-basic" || !s.StoppedEarly || s.UserID != 1 {
				t.Errorf("round trip = %+v, want %+v", s, earlier)
			}
		})
	}
}

func TestRecoveryEvents(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			old := models.RecoveryEvent{ID: uuid.New(), UserID: 1, Date: base.Add(-10 * 24 * time.Hour), Type: models.RecoveryRest}
			recent := models.RecoveryEvent{ID: uuid.New(), UserID: 1, Date: base.Add(-time.Hour), Type: models.RecoveryLISS15}
			mid := models.RecoveryEvent{ID: uuid.New(), UserID: 1, Date: base.Add(-3 * 24 * time.Hour), Type: models.RecoveryActive}
			other := models.RecoveryEvent{ID: uuid.New(), UserID: 2, Date: base.Add(-time.Hour), Type: models.RecoveryRest}
			for _, e := range []models.RecoveryEvent{old, recent, mid, other} {
				if err := st.InsertRecoveryEvent(ctx, e); err != nil {
					t.Fatalf("InsertRecoveryEvent: %v", err)
				}
			}
			if err := st.InsertRecoveryEvent(ctx, recent); err == nil {
				t.Error("expected error re-inserting an event id")
			}

			got, err := st.ListRecoveryEvents(ctx, 1, base.Add(-7*24*time.Hour))
			if err != nil {
				t.Fatalf("ListRecoveryEvents: %v", err)
			}
			if len(got) != 2 || got[0].ID != mid.ID || got[1].ID != recent.ID {
				t.Fatalf("events = %+v, want [mid recent]", got)
			}
			if got[1].Type != models.RecoveryLISS15 || got[1].Accepted {
				t.Errorf("recent = %+v", got[1])
			}

			if err := st.MarkRecoveryAccepted(ctx, 1, recent.ID, true); err != nil {
				t.Fatalf("MarkRecoveryAccepted: %v", err)
			}
			got, _ = st.ListRecoveryEvents(ctx, 1, base.Add(-2*time.Hour))
			if len(got) != 1 || !got[0].Accepted {
				t.Errorf("after accept = %+v", got)
			}

			// Another user's event can't be accepted through user 1.
			err = st.MarkRecoveryAccepted(ctx, 1, other.ID, true)
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("cross-user accept err = %v, want ErrNotFound", err)
			}
			err = st.MarkRecoveryAccepted(ctx, 1, uuid.New(), true)
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("unknown id err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestSuggestions(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := st.GetSuggestion(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("GetSuggestion missing err = %v, want ErrNotFound", err)
			}

			in := models.Suggestion{Key: "k1", Text: "first", Source: "heuristic", CreatedAt: base}
			if err := st.PutSuggestion(ctx, in); err != nil {
				t.Fatalf("PutSuggestion: %v", err)
			}
			in.Text, in.Source = "second", "ai"
			if err := st.PutSuggestion(ctx, in); err != nil {
				t.Fatalf("PutSuggestion replace: %v", err)
			}

			got, err := st.GetSuggestion(ctx, "k1")
			if err != nil {
				t.Fatalf("GetSuggestion: %v", err)
			}
			if got.Text != "second" || got.Source != "ai" || !got.CreatedAt.Equal(base) {
				t.Errorf("got %+v", got)
			}
		})
	}
}

func TestSQLitePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coach.db")
	ctx := context.Background()

	st, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	id := uuid.New()
	if err := st.InsertSession(ctx, models.Session{ID: id, UserID: 1, Date: base, Minutes: 10, RPE: 3, Intensity: models.IntensityLow}); err != nil {
		t.Fatal(err)
	}
	st.Close()

	st, err = OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	got, err := st.QuerySessions(ctx, 1, base.Add(-time.Hour), base.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != id {
		t.Errorf("after reopen = %+v", got)
	}
}

func TestSQLiteTimeOrdering(t *testing.T) {
	if formatTime(base) >= formatTime(base.Add(500*time.Millisecond)) {
		t.Error("fractional seconds must sort after whole seconds")
	}
	local := base.In(time.FixedZone("X", 3600))
	if formatTime(local) != formatTime(base) {
		t.Errorf("formatTime not normalised to UTC: %s vs %s", formatTime(local), formatTime(base))
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, Options{Driver: "memory"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := st.(*Memory); !ok {
		t.Errorf("memory driver returned %T", st)
	}

	st, err = Open(ctx, Options{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "x.db")})
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if _, ok := st.(*SQLite); !ok {
		t.Errorf("sqlite driver returned %T", st)
	}

	if _, err := Open(ctx, Options{Driver: "mysql"}); err == nil {
		t.Error("expected error for unknown driver")
	}
}
