// Package resources implements MCP resource handlers for the record store.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (records://...) following MCP conventions.
package resources

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/recordpilot/internal/schema"
	"github.com/HendryAvila/recordpilot/internal/sidelog"
)

// Counter reports how many records a table holds.
type Counter interface {
	Count(ctx context.Context, table string) (int, error)
}

var timeNow = time.Now

// Handler manages record resource endpoints.
type Handler struct {
	counter Counter
	side    *sidelog.Log
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(counter Counter, side *sidelog.Log) *Handler {
	return &Handler{counter: counter, side: side}
}

// ─── records://schema ────────────────────────────────────────────────────────

// SchemaResource returns the MCP resource definition for the table catalog.
func (h *Handler) SchemaResource() mcp.Resource {
	return mcp.NewResource(
		"records://schema",
		"Record Tables",
		mcp.WithResourceDescription("Tables, their fields and the allowed values of closed fields"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleSchema returns the table catalog as JSON.
func (h *Handler) HandleSchema(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(req.Params.URI, map[string]any{"tables": schema.Tables()})
}

// ─── records://stats ─────────────────────────────────────────────────────────

// StatsResource returns the MCP resource definition for per-table counts.
func (h *Handler) StatsResource() mcp.Resource {
	return mcp.NewResource(
		"records://stats",
		"Record Counts",
		mcp.WithResourceDescription("Number of records in every table"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleStats returns the record count of every table.
func (h *Handler) HandleStats(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	counts := make(map[string]int)
	total := 0
	for _, name := range schema.TableNames() {
		n, err := h.counter.Count(ctx, name)
		if err != nil {
			return errorResource(req.Params.URI, fmt.Sprintf("counting %s: %v", name, err)), nil
		}
		counts[name] = n
		total += n
	}
	return jsonResource(req.Params.URI, map[string]any{"tables": counts, "total": total})
}

// ─── records://reminders/today ───────────────────────────────────────────────

// RemindersResource returns the MCP resource definition for today's reminders.
func (h *Handler) RemindersResource() mcp.Resource {
	return mcp.NewResource(
		"records://reminders/today",
		"Today's Reminders",
		mcp.WithResourceDescription("Reminders whose due time falls on the current day"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleReminders returns the reminders due today.
func (h *Handler) HandleReminders(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	today := timeNow()
	due, err := h.side.RemindersDue(today)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	if due == nil {
		due = []sidelog.Reminder{}
	}
	return jsonResource(req.Params.URI, map[string]any{
		"date":      today.Format("2006-01-02"),
		"reminders": due,
	})
}
