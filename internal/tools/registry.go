package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/recordpilot/internal/dispatch"
	"github.com/HendryAvila/recordpilot/internal/llm"
	"github.com/HendryAvila/recordpilot/internal/sidelog"
)

// ErrUnknownTool is returned by Registry.Call for a name not in the catalog.
var ErrUnknownTool = errors.New("tools: unknown tool")

// Deps are the collaborators of the full tool catalog.
type Deps struct {
	Dispatcher *dispatch.Dispatcher
	Calendar   Calendar
	Side       *sidelog.Log
}

// Registry is an ordered tool catalog addressable by name.
type Registry struct {
	tools  []Tool
	byName map[string]Tool
}

// NewRegistry builds a registry. Later tools replace earlier ones with the
// same name.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{byName: make(map[string]Tool, len(tools))}
	index := make(map[string]int, len(tools))
	for _, t := range tools {
		name := t.Definition().Name
		if i, dup := index[name]; dup {
			r.tools[i] = t
		} else {
			index[name] = len(r.tools)
			r.tools = append(r.tools, t)
		}
		r.byName[name] = t
	}
	return r
}

// Catalog returns the fourteen agent tools.
func Catalog(d Deps) *Registry {
	return NewRegistry(
		NewCreateTool(d.Dispatcher),
		NewReadTool(d.Dispatcher),
		NewUpdateTool(d.Dispatcher),
		NewDeleteTool(d.Dispatcher),
		NewListTool(d.Dispatcher),
		NewSearchTool(d.Dispatcher),
		NewStatsTool(d.Dispatcher),
		NewThoughtTool(d.Side),
		NewReminderTool(d.Side),
		NewDatetimeTool(),
		NewBriefingTool(d.Calendar, d.Side),
		NewConfirmEmptyNameTool(d.Dispatcher),
		NewConfirmCorrectedCreateTool(d.Dispatcher),
		NewConfirmCorrectedUpdateTool(d.Dispatcher),
	)
}

// Tools returns the catalog in registration order.
func (r *Registry) Tools() []Tool { return r.tools }

// Names returns the tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.tools))
	for i, t := range r.tools {
		out[i] = t.Definition().Name
	}
	return out
}

// Specs describes the catalog for an llm.Oracle.
func (r *Registry) Specs() []llm.ToolSpec {
	out := make([]llm.ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		def := t.Definition()
		out = append(out, llm.ToolSpec{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  schemaMap(def.InputSchema),
		})
	}
	return out
}

// Call invokes a tool by name and returns its text result. Domain failures
// come back as JSON text with success false; only an unknown tool or a
// handler fault yields an error.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	t, ok := r.byName[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := t.Handle(ctx, req)
	if err != nil {
		return "", fmt.Errorf("tools: %s: %w", name, err)
	}
	return resultText(res), nil
}

// resultText joins the text contents of a tool result.
func resultText(res *mcp.CallToolResult) string {
	if res == nil {
		return ""
	}
	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// schemaMap converts an input schema to a plain JSON Schema object.
func schemaMap(s mcp.ToolInputSchema) map[string]any {
	out := map[string]any{"type": "object", "properties": map[string]any{}}
	b, err := json.Marshal(s)
	if err != nil {
		return out
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return out
	}
	if _, ok := m["properties"]; !ok {
		m["properties"] = map[string]any{}
	}
	return m
}
