package records

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jmoiron/sqlx"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in     string
		want   time.Time
		wantOK bool
	}{
		{"2025-03-01", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"2025-03-01T14:05:09", time.Date(2025, 3, 1, 14, 5, 9, 0, time.UTC), true},
		{"2025-03-01 14:05:09", time.Date(2025, 3, 1, 14, 5, 9, 0, time.UTC), true},
		{"2025-03-01T14:05:09.250000", time.Date(2025, 3, 1, 14, 5, 9, 250000000, time.UTC), true},
		{"2025-03-01 14:05:09.5", time.Date(2025, 3, 1, 14, 5, 9, 500000000, time.UTC), true},
		{"", time.Time{}, false},
		{"tomorrow", time.Time{}, false},
		{"03/01/2025", time.Time{}, false},
		{"2025-13-01", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDate(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseList(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []any
	}{
		{"nil", nil, nil},
		{"slice", []any{"a", float64(1)}, []any{"a", float64(1)}},
		{"string slice", []string{"a", "b"}, []any{"a", "b"}},
		{"json array", `["x", "y"]`, []any{"x", "y"}},
		{"json scalar", `5`, []any{float64(5)}},
		{"comma separated", " a, b ,, c ", []any{"a", "b", "c"}},
		{"single word", "urgent", []any{"urgent"}},
		{"empty", "", []any{}},
		{"number", float64(3), []any{float64(3)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ParseList(tt.in)); diff != "" {
				t.Errorf("ParseList mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	enc, err := encodeFields("goals", map[string]any{
		"name":        "Ship",
		"current":     float64(3),
		"goal":        "10",
		"circus_sync": "true",
		"tags":        []any{"q3"},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"name":        "Ship",
		"current":     int64(3),
		"goal":        int64(10),
		"circus_sync": int64(1),
		"tags":        `["q3"]`,
	}
	if diff := cmp.Diff(want, enc); diff != "" {
		t.Errorf("encodeFields mismatch (-want +got):\n%s", diff)
	}

	if got := decodeValue("bool", int64(1)); got != true {
		t.Errorf("decode bool = %v", got)
	}
	if got := decodeValue("list", []byte(`["q3"]`)); cmp.Diff([]any{"q3"}, got) != "" {
		t.Errorf("decode list = %#v", got)
	}
}

func TestEncodeTextFromNonString(t *testing.T) {
	v, err := encodeValue("text", float64(42))
	if err != nil || v != "42" {
		t.Errorf("encode text = %v, %v", v, err)
	}
}

// ─── Failure injection ──────────────────────────────────────────────────────

func TestCreate_CommitFailureLeavesNoRecord(t *testing.T) {
	s, err := New(Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	boom := errors.New("disk full")
	s.hooks.commit = func(tx *sqlx.Tx) error {
		_ = tx.Rollback()
		return boom
	}

	ctx := context.Background()
	if _, err := s.Create(ctx, "clients", map[string]any{"name": "Acme"}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}

	s.hooks = storeHooks{}
	if n, _ := s.Count(ctx, "clients"); n != 0 {
		t.Errorf("count = %d after failed commit, want 0", n)
	}
}

func TestUpdate_ExecFailure(t *testing.T) {
	s, err := New(Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ctx := context.Background()
	id, _ := s.Create(ctx, "tasks", map[string]any{"name": "t"})

	boom := errors.New("locked")
	s.hooks.exec = func(context.Context, execer, string, ...any) (sql.Result, error) {
		return nil, boom
	}
	if err := s.Update(ctx, "tasks", id, map[string]any{"name": "u"}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestNew_OpenFailure(t *testing.T) {
	orig := openDB
	t.Cleanup(func() { openDB = orig })

	boom := errors.New("no driver")
	openDB = func(string, string) (*sql.DB, error) { return nil, boom }

	if _, err := New(Config{DataDir: t.TempDir()}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}
