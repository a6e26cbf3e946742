package tools

import (
	"context"
	"maps"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/recordpilot/internal/dispatch"
)

// The confirmation tools let a client that holds the pending payload itself
// (an MCP client, or the model) complete a blocked operation. Corrected
// values still go through validation.

// ConfirmEmptyNameTool handles the confirm_create_with_empty_name MCP tool.
type ConfirmEmptyNameTool struct {
	dispatcher *dispatch.Dispatcher
}

// NewConfirmEmptyNameTool creates a ConfirmEmptyNameTool.
func NewConfirmEmptyNameTool(d *dispatch.Dispatcher) *ConfirmEmptyNameTool {
	return &ConfirmEmptyNameTool{dispatcher: d}
}

// Definition returns the MCP tool definition for confirm_create_with_empty_name.
func (t *ConfirmEmptyNameTool) Definition() mcp.Tool {
	return mcp.NewTool("confirm_create_with_empty_name",
		mcp.WithDescription("Create a record whose blank name the user explicitly approved."),
		tableParam(),
		mcp.WithObject("data", mcp.Description("The pending_data of the blocked create")),
	)
}

// Handle processes the confirm_create_with_empty_name tool call.
func (t *ConfirmEmptyNameTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := mapArg(req, "data")
	if err != nil {
		return failed("%v", err), nil
	}
	if data == nil {
		data = map[string]any{}
	}
	return mutate(ctx, func() dispatch.Outcome {
		return t.dispatcher.CreateAllowingEmptyName(ctx, req.GetString("table", ""), data)
	}), nil
}

// ─── ConfirmCorrectedCreateTool ──────────────────────────────────────────────

// ConfirmCorrectedCreateTool handles the confirm_create_with_corrected_field MCP tool.
type ConfirmCorrectedCreateTool struct {
	dispatcher *dispatch.Dispatcher
}

// NewConfirmCorrectedCreateTool creates a ConfirmCorrectedCreateTool.
func NewConfirmCorrectedCreateTool(d *dispatch.Dispatcher) *ConfirmCorrectedCreateTool {
	return &ConfirmCorrectedCreateTool{dispatcher: d}
}

// Definition returns the MCP tool definition for confirm_create_with_corrected_field.
func (t *ConfirmCorrectedCreateTool) Definition() mcp.Tool {
	return mcp.NewTool("confirm_create_with_corrected_field",
		mcp.WithDescription("Retry a blocked create with the suggested value the user accepted."),
		tableParam(),
		mcp.WithObject("data", mcp.Required(), mcp.Description("The pending_data of the blocked create")),
		mcp.WithString("field", mcp.Required(), mcp.Description("Field to correct")),
		mcp.WithString("corrected_value", mcp.Required(), mcp.Description("Accepted value")),
	)
}

// Handle processes the confirm_create_with_corrected_field tool call.
func (t *ConfirmCorrectedCreateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, res := corrected(req)
	if res != nil {
		return res, nil
	}
	return mutate(ctx, func() dispatch.Outcome {
		return t.dispatcher.Create(ctx, req.GetString("table", ""), data)
	}), nil
}

// ─── ConfirmCorrectedUpdateTool ──────────────────────────────────────────────

// ConfirmCorrectedUpdateTool handles the confirm_field_correction MCP tool.
type ConfirmCorrectedUpdateTool struct {
	dispatcher *dispatch.Dispatcher
}

// NewConfirmCorrectedUpdateTool creates a ConfirmCorrectedUpdateTool.
func NewConfirmCorrectedUpdateTool(d *dispatch.Dispatcher) *ConfirmCorrectedUpdateTool {
	return &ConfirmCorrectedUpdateTool{dispatcher: d}
}

// Definition returns the MCP tool definition for confirm_field_correction.
func (t *ConfirmCorrectedUpdateTool) Definition() mcp.Tool {
	return mcp.NewTool("confirm_field_correction",
		mcp.WithDescription("Retry a blocked update with the suggested value the user accepted."),
		tableParam(),
		mcp.WithNumber("record_id", mcp.Required(), mcp.Description("The pending_record_id of the blocked update")),
		mcp.WithString("field", mcp.Required(), mcp.Description("Field to correct")),
		mcp.WithString("corrected_value", mcp.Required(), mcp.Description("Accepted value")),
		mcp.WithObject("data", mcp.Required(), mcp.Description("The pending_data of the blocked update")),
	)
}

// Handle processes the confirm_field_correction tool call.
func (t *ConfirmCorrectedUpdateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, res := corrected(req)
	if res != nil {
		return res, nil
	}
	id := int64(intArg(req, "record_id", 0))
	return mutate(ctx, func() dispatch.Outcome {
		return t.dispatcher.Update(ctx, req.GetString("table", ""), id, data)
	}), nil
}

// corrected returns a copy of the "data" argument with "field" set to
// "corrected_value", or a failure result.
func corrected(req mcp.CallToolRequest) (map[string]any, *mcp.CallToolResult) {
	data, err := mapArg(req, "data")
	if err != nil {
		return nil, failed("%v", err)
	}
	field := strings.TrimSpace(req.GetString("field", ""))
	if field == "" {
		return nil, failed("'field' is required")
	}
	value := req.GetString("corrected_value", "")
	if value == "" {
		return nil, failed("'corrected_value' is required")
	}
	out := maps.Clone(data)
	if out == nil {
		out = map[string]any{}
	}
	out[field] = value
	return out, nil
}
