package records_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/HendryAvila/recordpilot/internal/records"
	"github.com/HendryAvila/recordpilot/internal/schema"
)

// newTestStore creates a Store backed by a temp directory for isolation.
func newTestStore(t *testing.T) *records.Store {
	t.Helper()
	s, err := records.New(records.Config{DataDir: t.TempDir(), FileName: "records.db"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// ─── New / Initialization ───────────────────────────────────────────────────

func TestNew_CreatesDBFile(t *testing.T) {
	s := newTestStore(t)
	if _, err := os.Stat(s.Path()); err != nil {
		t.Fatalf("database file missing: %v", err)
	}
}

func TestNew_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1, err := records.New(records.Config{DataDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	id, err := s1.Create(ctx, "clients", map[string]any{"name": "Acme"})
	if err != nil {
		t.Fatal(err)
	}
	_ = s1.Close()

	s2, err := records.New(records.Config{DataDir: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	rec, err := s2.Get(ctx, "clients", id)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if rec.Name() != "Acme" {
		t.Errorf("name = %q, want Acme", rec.Name())
	}
}

func TestEveryTableCreated(t *testing.T) {
	s := newTestStore(t)
	for _, name := range schema.TableNames() {
		n, err := s.Count(context.Background(), name)
		if err != nil {
			t.Errorf("Count(%s): %v", name, err)
		}
		if n != 0 {
			t.Errorf("Count(%s) = %d, want 0", name, n)
		}
	}
}

// ─── CRUD ────────────────────────────────────────────────────────────────────

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, "projects", map[string]any{
		"name":        "Website Redesign",
		"priority":    "P1",
		"deadline":    "2025-03-01",
		"tags":        "web, design ,",
		"client_id":   "[1, 2]",
		"circus_sync": true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id <= 0 {
		t.Fatalf("id = %d", id)
	}

	rec, err := s.Get(ctx, "projects", id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.ID() != id {
		t.Errorf("ID = %d, want %d", rec.ID(), id)
	}
	if rec["priority"] != "P1" {
		t.Errorf("priority = %v", rec["priority"])
	}

	deadline, ok := rec["deadline"].(time.Time)
	if !ok {
		t.Fatalf("deadline type %T", rec["deadline"])
	}
	if !deadline.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("deadline = %v", deadline)
	}

	tags, ok := rec["tags"].([]any)
	if !ok || len(tags) != 2 || tags[0] != "web" || tags[1] != "design" {
		t.Errorf("tags = %#v", rec["tags"])
	}
	clients, ok := rec["client_id"].([]any)
	if !ok || len(clients) != 2 || clients[0] != float64(1) {
		t.Errorf("client_id = %#v", rec["client_id"])
	}
	if rec["circus_sync"] != true {
		t.Errorf("circus_sync = %#v", rec["circus_sync"])
	}
	if rec["notes"] != nil {
		t.Errorf("notes = %#v, want nil", rec["notes"])
	}

	ser := rec.Serialize()
	if ser["deadline"] != "2025-03-01T00:00:00" {
		t.Errorf("serialized deadline = %v", ser["deadline"])
	}
}

func TestCreate_EmptyName(t *testing.T) {
	s := newTestStore(t)
	id, err := s.Create(context.Background(), "clients", map[string]any{"name": ""})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	rec, _ := s.Get(context.Background(), "clients", id)
	if rec.Name() != "" {
		t.Errorf("name = %q", rec.Name())
	}
}

func TestCreate_NoFields(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Create(context.Background(), "users", map[string]any{}); err != nil {
		t.Fatalf("Create with no fields: %v", err)
	}
}

func TestCreate_Rejects(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		table string
		data  map[string]any
		want  error
	}{
		{"unknown table", "invoices", map[string]any{"name": "x"}, schema.ErrUnknownTable},
		{"unknown field", "projects", map[string]any{"name": "x", "budget": 10}, schema.ErrUnknownField},
		{"bad int", "tasks", map[string]any{"recur_interval": "often"}, records.ErrInvalidValue},
		{"bad bool", "goals", map[string]any{"circus_sync": "maybe"}, records.ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(ctx, tt.table, tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if n, _ := s.Count(ctx, "projects"); n != 0 {
		t.Errorf("projects count = %d after rejected creates", n)
	}
}

func TestCreate_UnparseableDateStoredNull(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, err := s.Create(ctx, "tasks", map[string]any{"name": "t", "due_date": "next friday"})
	if err != nil {
		t.Fatal(err)
	}
	rec, _ := s.Get(ctx, "tasks", id)
	if rec["due_date"] != nil {
		t.Errorf("due_date = %v, want nil", rec["due_date"])
	}
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "tasks", 999)
	if !errors.Is(err, records.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.Create(ctx, "tasks", map[string]any{"name": "Call bank", "status": "Inbox"})
	if err := s.Update(ctx, "tasks", id, map[string]any{"status": "Done", "due_date": "2025-01-02 09:30:00"}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	rec, _ := s.Get(ctx, "tasks", id)
	if rec["status"] != "Done" {
		t.Errorf("status = %v", rec["status"])
	}
	if rec.Name() != "Call bank" {
		t.Errorf("name changed to %q", rec.Name())
	}
	due, _ := rec["due_date"].(time.Time)
	if due.Hour() != 9 || due.Minute() != 30 {
		t.Errorf("due_date = %v", rec["due_date"])
	}
}

func TestUpdate_NotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.Update(context.Background(), "tasks", 42, map[string]any{"status": "Done"})
	if !errors.Is(err, records.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.Create(ctx, "assets", map[string]any{"name": "Logo"})
	if err := s.Delete(ctx, "assets", id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "assets", id); !errors.Is(err, records.ErrNotFound) {
		t.Errorf("Get after delete: %v", err)
	}
	if err := s.Delete(ctx, "assets", id); !errors.Is(err, records.ErrNotFound) {
		t.Errorf("second Delete: %v", err)
	}
}

// ─── List / Count / Candidates ───────────────────────────────────────────────

func TestList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, status := range []string{"Done", "Inbox", "Done", "Done"} {
		_, err := s.Create(ctx, "tasks", map[string]any{
			"name":     "task",
			"status":   status,
			"due_date": time.Date(2025, 1, i+1, 0, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.List(ctx, "tasks", nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Errorf("len(all) = %d, want 4", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].ID() <= all[i-1].ID() {
			t.Errorf("not ordered by id")
		}
	}

	done, _ := s.List(ctx, "tasks", map[string]any{"status": "Done"}, 2)
	if len(done) != 2 {
		t.Errorf("len(done) = %d, want 2 (limit)", len(done))
	}

	byDate, _ := s.List(ctx, "tasks", map[string]any{"due_date": "2025-01-02"}, 10)
	if len(byDate) != 1 || byDate[0]["status"] != "Inbox" {
		t.Errorf("date filter returned %v", byDate)
	}

	// unparseable date filter is ignored
	ignored, _ := s.List(ctx, "tasks", map[string]any{"due_date": "soon"}, 10)
	if len(ignored) != 4 {
		t.Errorf("len(ignored) = %d, want 4", len(ignored))
	}

	if _, err := s.List(ctx, "tasks", map[string]any{"colour": "red"}, 10); !errors.Is(err, schema.ErrUnknownField) {
		t.Errorf("unknown filter: %v", err)
	}
}

func TestList_LimitCap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for range 105 {
		if _, err := s.Create(ctx, "users", map[string]any{"name": "u"}); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := s.List(ctx, "users", nil, 1000)
	if len(got) != 100 {
		t.Errorf("len = %d, want 100", len(got))
	}
}

func TestCandidates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, _ = s.Create(ctx, "projects", map[string]any{"name": "Alpha"})
	_, _ = s.Create(ctx, "projects", map[string]any{"notes": "no name"})
	_, _ = s.Create(ctx, "projects", map[string]any{"name": "Beta"})

	got, err := s.Candidates(ctx, "projects")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Name != "Alpha" || got[1].Name != "" || got[2].Name != "Beta" {
		t.Errorf("candidates = %+v", got)
	}
}

func TestDated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	day := func(d int) time.Time { return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC) }
	_, _ = s.Create(ctx, "projects", map[string]any{"name": "late", "deadline": day(1)})
	_, _ = s.Create(ctx, "projects", map[string]any{"name": "today", "deadline": day(10).Add(15 * time.Hour)})
	_, _ = s.Create(ctx, "projects", map[string]any{"name": "future", "deadline": day(20)})
	_, _ = s.Create(ctx, "projects", map[string]any{"name": "undated"})

	overdue, err := s.Dated(ctx, "projects", "deadline", records.DateRange{To: day(10)})
	if err != nil {
		t.Fatal(err)
	}
	if len(overdue) != 1 || overdue[0].Name() != "late" {
		t.Errorf("overdue = %v", overdue)
	}

	today, _ := s.Dated(ctx, "projects", "deadline", records.DateRange{From: day(10), To: day(11)})
	if len(today) != 1 || today[0].Name() != "today" {
		t.Errorf("today = %v", today)
	}

	if _, err := s.Dated(ctx, "projects", "name", records.DateRange{}); !errors.Is(err, schema.ErrUnknownField) {
		t.Errorf("non-date field: %v", err)
	}
}
