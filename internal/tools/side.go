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

// timeNow is a package-level var to allow test injection.
var timeNow = time.Now

// ThoughtTool handles the log_thought MCP tool.
type ThoughtTool struct {
	log *sidelog.Log
}

// NewThoughtTool creates a ThoughtTool.
func NewThoughtTool(log *sidelog.Log) *ThoughtTool {
	return &ThoughtTool{log: log}
}

// Definition returns the MCP tool definition for log_thought.
func (t *ThoughtTool) Definition() mcp.Tool {
	return mcp.NewTool("log_thought",
		mcp.WithDescription("Log a thought, insight or idea for future reference."),
		mcp.WithString("thought", mcp.Required(), mcp.Description("The thought text")),
		mcp.WithString("category", mcp.Description("e.g. project, health, task, insight (default: general)")),
		mcp.WithArray("tags", mcp.Description("Short tags"), mcp.WithStringItems()),
	)
}

// Handle processes the log_thought tool call.
func (t *ThoughtTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	th, err := t.log.Thought(req.GetString("thought", ""), req.GetString("category", ""), stringsArg(req, "tags"))
	if err != nil {
		return failed("Failed to log thought: %v", err), nil
	}
	return jsonResult(map[string]any{
		"success": true,
		"thought": th,
		"message": fmt.Sprintf("Thought logged at %s (%s)", th.Timestamp, th.Category),
	}), nil
}

// ─── ReminderTool ────────────────────────────────────────────────────────────

// ReminderTool handles the add_reminder MCP tool.
type ReminderTool struct {
	log *sidelog.Log
}

// NewReminderTool creates a ReminderTool.
func NewReminderTool(log *sidelog.Log) *ReminderTool {
	return &ReminderTool{log: log}
}

// Definition returns the MCP tool definition for add_reminder.
func (t *ReminderTool) Definition() mcp.Tool {
	return mcp.NewTool("add_reminder",
		mcp.WithDescription("Add a reminder for a specific time or task."),
		mcp.WithString("reminder_text", mcp.Required(), mcp.Description("What to be reminded about")),
		mcp.WithString("due_time", mcp.Description("When, e.g. '21:30' or '2025-04-03 09:00:00'")),
		mcp.WithString("priority", mcp.Description("Priority (default: medium)"), mcp.Enum("low", "medium", "high")),
		mcp.WithString("category", mcp.Description("Category (default: general)")),
	)
}

// Handle processes the add_reminder tool call.
func (t *ReminderTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := t.log.Reminder(
		req.GetString("reminder_text", ""),
		req.GetString("due_time", ""),
		strings.ToLower(req.GetString("priority", "")),
		req.GetString("category", ""),
	)
	if err != nil {
		return failed("Failed to add reminder: %v", err), nil
	}
	msg := "Reminder added: " + r.Text
	if r.DueTime != "" {
		msg += " (due " + r.DueTime + ")"
	}
	return jsonResult(map[string]any{"success": true, "reminder": r, "message": msg}), nil
}

// ─── DatetimeTool ────────────────────────────────────────────────────────────

// DatetimeTool handles the get_current_datetime MCP tool.
type DatetimeTool struct{}

// NewDatetimeTool creates a DatetimeTool.
func NewDatetimeTool() *DatetimeTool { return &DatetimeTool{} }

// Definition returns the MCP tool definition for get_current_datetime.
func (t *DatetimeTool) Definition() mcp.Tool {
	return mcp.NewTool("get_current_datetime",
		mcp.WithDescription("Get the current local date and time. Use it before setting relative deadlines."),
	)
}

// Handle processes the get_current_datetime tool call.
func (t *DatetimeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	now := timeNow()
	zone, _ := now.Zone()
	return jsonResult(map[string]any{
		"success":  true,
		"datetime": now.Format(records.DateLayout),
		"date":     now.Format("2006-01-02"),
		"time":     now.Format("15:04:05"),
		"timezone": zone,
		"message":  "Current datetime: " + now.Format("2006-01-02 15:04:05"),
	}), nil
}
