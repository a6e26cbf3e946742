package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func TestCatalog_Names(t *testing.T) {
	deps, _ := newTestDeps(t)
	got := Catalog(deps).Names()
	want := []string{
		"create_record", "read_record", "update_record", "delete_record",
		"list_records", "search_records_by_name", "get_database_stats",
		"log_thought", "add_reminder", "get_current_datetime", "get_morning_briefing",
		"confirm_create_with_empty_name", "confirm_create_with_corrected_field", "confirm_field_correction",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d tools, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tool[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRegistry_Specs(t *testing.T) {
	deps, _ := newTestDeps(t)
	specs := Catalog(deps).Specs()

	var create map[string]any
	for _, s := range specs {
		if s.Parameters["type"] != "object" {
			t.Errorf("%s: schema type = %v", s.Name, s.Parameters["type"])
		}
		if _, ok := s.Parameters["properties"]; !ok {
			t.Errorf("%s: missing properties", s.Name)
		}
		if s.Name == "create_record" {
			create = s.Parameters
		}
	}
	if create == nil {
		t.Fatal("create_record spec missing")
	}
	props := create["properties"].(map[string]any)
	table := props["table"].(map[string]any)
	if enum, _ := table["enum"].([]any); len(enum) != 9 {
		t.Errorf("table enum = %v", table["enum"])
	}
}

func TestRegistry_Call(t *testing.T) {
	deps, _ := newTestDeps(t)
	r := Catalog(deps)

	text, err := r.Call(context.Background(), "create_record", map[string]any{
		"table": "clients",
		"data":  map[string]any{"name": "Acme"},
	})
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(text), &got); err != nil {
		t.Fatal(err)
	}
	if got["success"] != true {
		t.Errorf("got %v", got)
	}
}

func TestRegistry_CallUnknown(t *testing.T) {
	deps, _ := newTestDeps(t)
	_, err := Catalog(deps).Call(context.Background(), "drop_table", nil)
	if !errors.Is(err, ErrUnknownTool) {
		t.Errorf("err = %v, want ErrUnknownTool", err)
	}
}

type stubTool struct {
	name string
	text string
}

func (s stubTool) Definition() mcp.Tool { return mcp.NewTool(s.name) }

func (s stubTool) Handle(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.text), nil
}

func TestNewRegistry_LaterWins(t *testing.T) {
	r := NewRegistry(stubTool{"a", "1"}, stubTool{"b", "2"}, stubTool{"a", "3"})
	if names := r.Names(); len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("names = %v", names)
	}
	text, err := r.Call(context.Background(), "a", nil)
	if err != nil || text != "3" {
		t.Errorf("call a = %q, %v", text, err)
	}
}
