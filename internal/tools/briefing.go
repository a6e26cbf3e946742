package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/recordpilot/internal/records"
	"github.com/HendryAvila/recordpilot/internal/sidelog"
)

// recentThoughts is how many of the latest thoughts a briefing includes.
const recentThoughts = 5

// doneStatuses close a task or project for overdue purposes.
var doneStatuses = map[string]bool{"Done": true, "Shipped": true}

// Calendar queries records by a date column.
type Calendar interface {
	Dated(ctx context.Context, table, field string, r records.DateRange) ([]records.Record, error)
}

// BriefingTool handles the get_morning_briefing MCP tool.
type BriefingTool struct {
	calendar Calendar
	log      *sidelog.Log
}

// NewBriefingTool creates a BriefingTool.
func NewBriefingTool(calendar Calendar, log *sidelog.Log) *BriefingTool {
	return &BriefingTool{calendar: calendar, log: log}
}

// Definition returns the MCP tool definition for get_morning_briefing.
func (t *BriefingTool) Definition() mcp.Tool {
	return mcp.NewTool("get_morning_briefing",
		mcp.WithDescription(
			"Daily overview: tasks and reminders due today, overdue tasks and projects, "+
				"and optionally the latest logged thoughts.",
		),
		mcp.WithBoolean("include_today", mcp.Description("Include items due today (default: true)")),
		mcp.WithBoolean("include_overdue", mcp.Description("Include overdue tasks and projects (default: true)")),
		mcp.WithBoolean("include_recent_thoughts", mcp.Description("Include the latest thoughts (default: false)")),
	)
}

// Handle processes the get_morning_briefing tool call.
func (t *BriefingTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	now := timeNow()
	y, m, d := now.Date()
	today := records.DateRange{
		From: time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		To:   time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC),
	}

	out := map[string]any{"success": true, "date": now.Format("2006-01-02")}
	var summary []string

	if boolArg(req, "include_today", true) {
		tasks, err := t.calendar.Dated(ctx, "tasks", "due_date", today)
		if err != nil {
			return failed("Failed to build briefing: %v", err), nil
		}
		reminders, err := t.log.RemindersDue(now)
		if err != nil {
			return failed("Failed to build briefing: %v", err), nil
		}
		out["tasks_today"] = serialize(tasks)
		out["reminders_today"] = reminders
		summary = append(summary,
			fmt.Sprintf("%d tasks due today", len(tasks)),
			fmt.Sprintf("%d reminders", len(reminders)))
	}

	if boolArg(req, "include_overdue", true) {
		before := records.DateRange{To: today.From}
		tasks, err := t.calendar.Dated(ctx, "tasks", "due_date", before)
		if err != nil {
			return failed("Failed to build briefing: %v", err), nil
		}
		projects, err := t.calendar.Dated(ctx, "projects", "deadline", before)
		if err != nil {
			return failed("Failed to build briefing: %v", err), nil
		}
		tasks, projects = unfinished(tasks), unfinished(projects)
		out["overdue_tasks"] = serialize(tasks)
		out["overdue_projects"] = serialize(projects)
		summary = append(summary,
			fmt.Sprintf("%d overdue tasks", len(tasks)),
			fmt.Sprintf("%d overdue projects", len(projects)))
	}

	if boolArg(req, "include_recent_thoughts", false) {
		thoughts, err := t.log.Thoughts()
		if err != nil {
			return failed("Failed to build briefing: %v", err), nil
		}
		if len(thoughts) > recentThoughts {
			thoughts = thoughts[len(thoughts)-recentThoughts:]
		}
		out["recent_thoughts"] = thoughts
	}

	msg := "Morning briefing for " + now.Format("Monday, 2006-01-02")
	if len(summary) > 0 {
		msg += ": " + strings.Join(summary, ", ")
	}
	out["message"] = msg
	return jsonResult(out), nil
}

// unfinished drops completed records.
func unfinished(recs []records.Record) []records.Record {
	out := recs[:0]
	for _, r := range recs {
		status, _ := r["status"].(string)
		if doneStatuses[status] || r["date_completed"] != nil {
			continue
		}
		out = append(out, r)
	}
	return out
}

func serialize(recs []records.Record) []map[string]any {
	out := make([]map[string]any, len(recs))
	for i, r := range recs {
		out[i] = r.Serialize()
	}
	return out
}
