package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/recordpilot/internal/dispatch"
	"github.com/HendryAvila/recordpilot/internal/fuzzy"
)

// CreateTool handles the create_record MCP tool.
type CreateTool struct {
	dispatcher *dispatch.Dispatcher
}

// NewCreateTool creates a CreateTool.
func NewCreateTool(d *dispatch.Dispatcher) *CreateTool {
	return &CreateTool{dispatcher: d}
}

// Definition returns the MCP tool definition for create_record.
func (t *CreateTool) Definition() mcp.Tool {
	return mcp.NewTool("create_record",
		mcp.WithDescription(
			"Create a new record. Search by name first to avoid duplicates. "+
				"A blank name or a value outside a field's allowed options is not written; "+
				"the result asks for confirmation instead.",
		),
		tableParam(),
		mcp.WithObject("data",
			mcp.Required(),
			mcp.Description("Field values, e.g. {\"name\": \"Website Redesign\", \"status\": \"In progress\"}"),
		),
	)
}

// Handle processes the create_record tool call.
func (t *CreateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := mapArg(req, "data")
	if err != nil {
		return failed("%v", err), nil
	}
	if data == nil {
		data = map[string]any{}
	}
	return mutate(ctx, func() dispatch.Outcome {
		return t.dispatcher.Create(ctx, req.GetString("table", ""), data)
	}), nil
}

// ─── ReadTool ────────────────────────────────────────────────────────────────

// ReadTool handles the read_record MCP tool.
type ReadTool struct {
	dispatcher *dispatch.Dispatcher
}

// NewReadTool creates a ReadTool.
func NewReadTool(d *dispatch.Dispatcher) *ReadTool {
	return &ReadTool{dispatcher: d}
}

// Definition returns the MCP tool definition for read_record.
func (t *ReadTool) Definition() mcp.Tool {
	return mcp.NewTool("read_record",
		mcp.WithDescription("Retrieve a specific record by ID."),
		tableParam(),
		mcp.WithNumber("record_id", mcp.Required(), mcp.Description("Record ID")),
	)
}

// Handle processes the read_record tool call.
func (t *ReadTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := int64(intArg(req, "record_id", 0))
	return jsonResult(t.dispatcher.Read(ctx, req.GetString("table", ""), id).Payload()), nil
}

// ─── UpdateTool ──────────────────────────────────────────────────────────────

// UpdateTool handles the update_record MCP tool.
type UpdateTool struct {
	dispatcher *dispatch.Dispatcher
}

// NewUpdateTool creates an UpdateTool.
func NewUpdateTool(d *dispatch.Dispatcher) *UpdateTool {
	return &UpdateTool{dispatcher: d}
}

// Definition returns the MCP tool definition for update_record.
func (t *UpdateTool) Definition() mcp.Tool {
	return mcp.NewTool("update_record",
		mcp.WithDescription(
			"Modify fields of an existing record. Values outside a field's allowed options "+
				"are not written; the result asks for confirmation of the closest option instead.",
		),
		tableParam(),
		mcp.WithNumber("record_id", mcp.Required(), mcp.Description("Record ID")),
		mcp.WithObject("data", mcp.Required(), mcp.Description("Fields to update")),
	)
}

// Handle processes the update_record tool call.
func (t *UpdateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := mapArg(req, "data")
	if err != nil {
		return failed("%v", err), nil
	}
	if len(data) == 0 {
		return failed("'data' is required"), nil
	}
	id := int64(intArg(req, "record_id", 0))
	return mutate(ctx, func() dispatch.Outcome {
		return t.dispatcher.Update(ctx, req.GetString("table", ""), id, data)
	}), nil
}

// ─── DeleteTool ──────────────────────────────────────────────────────────────

// DeleteTool handles the delete_record MCP tool.
type DeleteTool struct {
	dispatcher *dispatch.Dispatcher
}

// NewDeleteTool creates a DeleteTool.
func NewDeleteTool(d *dispatch.Dispatcher) *DeleteTool {
	return &DeleteTool{dispatcher: d}
}

// Definition returns the MCP tool definition for delete_record.
func (t *DeleteTool) Definition() mcp.Tool {
	return mcp.NewTool("delete_record",
		mcp.WithDescription("Permanently remove a record. This cannot be undone."),
		tableParam(),
		mcp.WithNumber("record_id", mcp.Required(), mcp.Description("Record ID")),
	)
}

// Handle processes the delete_record tool call.
func (t *DeleteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := int64(intArg(req, "record_id", 0))
	return mutate(ctx, func() dispatch.Outcome {
		return t.dispatcher.Delete(ctx, req.GetString("table", ""), id)
	}), nil
}

// ─── ListTool ────────────────────────────────────────────────────────────────

// ListTool handles the list_records MCP tool.
type ListTool struct {
	dispatcher *dispatch.Dispatcher
}

// NewListTool creates a ListTool.
func NewListTool(d *dispatch.Dispatcher) *ListTool {
	return &ListTool{dispatcher: d}
}

// Definition returns the MCP tool definition for list_records.
func (t *ListTool) Definition() mcp.Tool {
	return mcp.NewTool("list_records",
		mcp.WithDescription("List records, optionally filtered by exact field values."),
		tableParam(),
		mcp.WithNumber("limit", mcp.Description("Maximum records to return (default 10, max 100)")),
		mcp.WithObject("filters", mcp.Description("Field equality filters, e.g. {\"status\": \"Done\"}")),
	)
}

// Handle processes the list_records tool call.
func (t *ListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filters, err := mapArg(req, "filters")
	if err != nil {
		return failed("%v", err), nil
	}
	limit := intArg(req, "limit", fuzzy.DefaultLimit)
	return jsonResult(t.dispatcher.List(ctx, req.GetString("table", ""), filters, limit).Payload()), nil
}

// ─── SearchTool ──────────────────────────────────────────────────────────────

// SearchTool handles the search_records_by_name MCP tool.
type SearchTool struct {
	dispatcher *dispatch.Dispatcher
}

// NewSearchTool creates a SearchTool.
func NewSearchTool(d *dispatch.Dispatcher) *SearchTool {
	return &SearchTool{dispatcher: d}
}

// Definition returns the MCP tool definition for search_records_by_name.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("search_records_by_name",
		mcp.WithDescription(
			"Find records by name with case-insensitive fuzzy matching. "+
				"Each hit carries a similarity_score; when nothing matches, close names are suggested.",
		),
		tableParam(),
		mcp.WithString("name_query", mcp.Required(), mcp.Description("Name or part of a name")),
		mcp.WithNumber("limit", mcp.Description("Maximum records to return (default 10, max 100)")),
		mcp.WithNumber("min_similarity", mcp.Description("Minimum similarity 0-100 (default 60)")),
	)
}

// Handle processes the search_records_by_name tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out := t.dispatcher.Search(ctx,
		req.GetString("table", ""),
		req.GetString("name_query", ""),
		intArg(req, "limit", fuzzy.DefaultLimit),
		intArg(req, "min_similarity", fuzzy.DefaultMinScore),
	)
	return jsonResult(out.Payload()), nil
}

// ─── StatsTool ───────────────────────────────────────────────────────────────

// StatsTool handles the get_database_stats MCP tool.
type StatsTool struct {
	dispatcher *dispatch.Dispatcher
}

// NewStatsTool creates a StatsTool.
func NewStatsTool(d *dispatch.Dispatcher) *StatsTool {
	return &StatsTool{dispatcher: d}
}

// Definition returns the MCP tool definition for get_database_stats.
func (t *StatsTool) Definition() mcp.Tool {
	return mcp.NewTool("get_database_stats",
		mcp.WithDescription("Count records per table and in total."),
	)
}

// Handle processes the get_database_stats tool call.
func (t *StatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(t.dispatcher.Stats(ctx).Payload()), nil
}
