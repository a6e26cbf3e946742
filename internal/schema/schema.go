// Package schema holds the fixed table catalog for the record store.
//
// Every table the agent can touch is declared here with its fields, their
// kinds and, for closed-domain fields, the canonical enumeration. Field maps
// coming from the LLM or a transport are gated through this catalog so
// unknown tables and unknown fields are rejected before they reach storage.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnknownTable is returned when a table name is not in the catalog.
	ErrUnknownTable = errors.New("unknown table")
	// ErrUnknownField is returned when a field is not declared for its table.
	ErrUnknownField = errors.New("unknown field")
)

// --- Field kinds ---

// Kind describes how a field value is normalized and stored.
type Kind string

const (
	KindText Kind = "text"
	KindInt  Kind = "int"
	KindBool Kind = "bool"
	KindDate Kind = "date" // parsed to time.Time
	KindList Kind = "list" // ordered sequence of scalars
)

// Field declares one column of a table.
type Field struct {
	Name string   `json:"name"`
	Kind Kind     `json:"kind"`
	Enum []string `json:"enum,omitempty"` // canonical values, declared order matters
}

// Table declares one entity type.
type Table struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Field looks up a field by name.
func (t Table) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// HasName reports whether records of this table carry a searchable name.
func (t Table) HasName() bool {
	_, ok := t.Field(NameField)
	return ok
}

// NameField is the field used for fuzzy name search and the empty-name check.
const NameField = "name"

// --- Enumerations ---

var clientTypes = []string{"Family", "Privat", "Internal", "External"}

var weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// enums is the closed-domain table: table -> field -> canonical values.
var enums = map[string]map[string][]string{
	"clients": {
		"type":   clientTypes,
		"status": {"Active", "Archive"},
	},
	"goals": {
		"status": {"Not started", "In progress", "Done"},
	},
	"projects": {
		"status":   {"Not started", "In progress", "Stuck", "Done"},
		"priority": {"P1", "P2", "P3"},
		"client_v2": {
			"Mama Hanh", "Ms Hanh", "Circus Group", "Fully AI", "Gastrofüsterer",
			"DAO OS", "Mama Le Bao", "Asia Hung", "Clinic OS", "Internal",
		},
	},
	"tasks": {
		"status": {
			"Inbox", "Paused/Later (P3)", "Next (P2)", "Now (P1)",
			"In progress", "Draft Review", "Waiting for Feedback", "Done",
		},
		"days": weekdays,
		"recur_unit": {
			"Day(s)", "Week(s)", "Month(s)", "Month(s) on the First Weekday",
			"Month(s) on the Last Weekday", "Month(s) on the Last Day", "Year(s)",
		},
	},
	"milestones": {
		"status": {
			"Not started", "Backlog", "Paused", "In progress",
			"High Priority", "Under Review", "Shipped", "Done",
		},
	},
	"assets": {
		"type": {
			"Social Media Post", "Image", "Blog", "Doc", "Loom Video",
			"YouTube Video", "Sheets", "Notion Page",
		},
	},
	"briefings": {
		"client_type": clientTypes,
	},
}

// --- Table catalog ---

func text(names ...string) []Field {
	out := make([]Field, len(names))
	for i, n := range names {
		out[i] = Field{Name: n, Kind: KindText}
	}
	return out
}

func list(names ...string) []Field {
	out := make([]Field, len(names))
	for i, n := range names {
		out[i] = Field{Name: n, Kind: KindList}
	}
	return out
}

func date(names ...string) []Field {
	out := make([]Field, len(names))
	for i, n := range names {
		out[i] = Field{Name: n, Kind: KindDate}
	}
	return out
}

func fields(groups ...[]Field) []Field {
	var out []Field
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// tables is the catalog in declaration order. Enumerations are attached in
// init from the enums map.
var tables = []Table{
	{Name: "users", Fields: text("name", "email")},
	{Name: "clients", Fields: fields(
		text("name", "type", "email", "contact", "website", "notes", "cover", "status"),
		list("tags", "project_id", "asset_id", "briefing_id", "meeting_transcript_id", "milestone_id", "goal_id", "task_id"),
	)},
	{Name: "goals", Fields: fields(
		text("name", "description", "status", "corresponding_id", "id_pull", "progress"),
		list("tags", "project_id", "milestone_id", "meeting_transcript_id", "briefing_id", "client_id"),
		[]Field{{Name: "circus_sync", Kind: KindBool}, {Name: "current", Kind: KindInt}, {Name: "goal", Kind: KindInt}},
	)},
	{Name: "projects", Fields: fields(
		text("name", "priority", "status", "command_center", "notes", "client_display",
			"date_completed_display", "deadline_display", "overdue_tasks", "owner_display", "progress",
			"remaining_tasks", "space", "summary", "client_v2", "corresponding_id", "id_pull"),
		date("deadline", "date_completed"),
		list("tags", "client_id", "briefing_id", "goal_id", "milestone", "task_id", "asset_id", "meeting_transcript_id", "owner_id"),
		[]Field{{Name: "circus_sync", Kind: KindBool}},
	)},
	{Name: "tasks", Fields: fields(
		text("name", "status", "command_center", "agent", "notes", "exec_summary",
			"completed_today", "completed_yesterday", "overdue", "days", "due_date_display",
			"localization_key", "next_due", "recur_unit", "updates"),
		date("due_date", "date_completed"),
		list("tags", "project_id", "assigned_to_id", "milestone", "briefing_id", "asset_id",
			"meeting_transcript_id", "client", "occurences_id", "project_priority"),
		[]Field{{Name: "recur_interval", Kind: KindInt}},
	)},
	{Name: "milestones", Fields: fields(
		text("name", "status", "notes", "project_type", "project_owner"),
		date("due_date"),
		list("tags", "project_id", "task_id", "client_id", "meeting_transcript_id", "briefing_id", "asset_id"),
	)},
	{Name: "assets", Fields: fields(
		text("name", "type", "link", "display", "notes", "description", "corresponding_id", "id_pull", "created_date"),
		list("tags", "client", "briefing_id", "milestone_id", "project_id", "task_id"),
		[]Field{{Name: "circus_sync", Kind: KindBool}},
	)},
	{Name: "briefings", Fields: fields(
		text("name", "objective", "success_criteria", "notes", "client_type", "project_owner", "goals_header"),
		date("deadline"),
		list("tags", "client_id", "project_id", "outcome_id", "asset_id", "task_id", "meeting_transcript_id", "milestone_id"),
	)},
	{Name: "meeting_transcripts", Fields: fields(
		text("name", "transcript_link", "people", "memory_log"),
		date("meeting_date"),
		list("tags", "client_id", "project_id", "task_id", "briefing_id", "milestone_id", "goal_id"),
	)},
}

var byName map[string]Table

func init() {
	byName = make(map[string]Table, len(tables))
	for i := range tables {
		t := &tables[i]
		for j := range t.Fields {
			if values, ok := enums[t.Name][t.Fields[j].Name]; ok {
				t.Fields[j].Enum = values
			}
		}
		byName[t.Name] = *t
	}
}

// --- Lookups ---

// Tables returns the catalog in declaration order.
func Tables() []Table {
	out := make([]Table, len(tables))
	copy(out, tables)
	return out
}

// TableNames returns the table names in declaration order.
func TableNames() []string {
	out := make([]string, len(tables))
	for i, t := range tables {
		out[i] = t.Name
	}
	return out
}

// Lookup returns the table declaration or ErrUnknownTable.
func Lookup(table string) (Table, error) {
	t, ok := byName[table]
	if !ok {
		return Table{}, fmt.Errorf("%w: %q (valid tables: %s)", ErrUnknownTable, table, strings.Join(TableNames(), ", "))
	}
	return t, nil
}

// Enum returns the canonical values of a closed-domain field.
// The second result is false when the table or field carries no enumeration.
func Enum(table, field string) ([]string, bool) {
	fieldsForTable, ok := enums[table]
	if !ok {
		return nil, false
	}
	values, ok := fieldsForTable[field]
	if !ok {
		return nil, false
	}
	out := make([]string, len(values))
	copy(out, values)
	return out, true
}

// CheckFields verifies every key of data is a declared field of table.
// Unknown keys are reported in sorted order so the message is stable.
func CheckFields(table string, data map[string]any) error {
	t, err := Lookup(table)
	if err != nil {
		return err
	}
	var unknown []string
	for k := range data {
		if _, ok := t.Field(k); !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("%w for %s: %s", ErrUnknownField, table, strings.Join(unknown, ", "))
}

// KindOf returns the kind of a declared field. Undeclared fields are text.
func KindOf(table, field string) Kind {
	t, ok := byName[table]
	if !ok {
		return KindText
	}
	f, ok := t.Field(field)
	if !ok {
		return KindText
	}
	return f.Kind
}
