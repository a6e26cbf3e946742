// Package tools implements the MCP tool handlers of the record agent.
//
// Each tool follows the same pattern:
//   - a struct holding its dependencies, injected via constructor
//   - Definition() returns the mcp.Tool schema
//   - Handle() processes the request and returns a JSON field-map result
//
// Every result carries "success". Domain failures never surface as Go
// errors; they are rendered into the result so the caller (an MCP client or
// the conversation agent) can read them.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/recordpilot/internal/dispatch"
	"github.com/HendryAvila/recordpilot/internal/schema"
)

// Tool is an MCP tool handler.
type Tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// ─── Outcome observer ────────────────────────────────────────────────────────

// Observer receives the outcome of every mutating tool call. A non-nil
// error replaces the tool result with a failure.
type Observer func(dispatch.Outcome) error

type observerKey struct{}

// WithObserver returns a context whose mutating tool calls report their
// outcomes to obs.
func WithObserver(ctx context.Context, obs Observer) context.Context {
	return context.WithValue(ctx, observerKey{}, obs)
}

type gateKey struct{}

// PendingMessage is the failure reported for a mutation attempted while a
// confirmation is pending.
const PendingMessage = "A confirmation is already pending; answer it first."

// WithGate returns a context whose mutating tool calls are refused without
// touching the store while blocked reports true.
func WithGate(ctx context.Context, blocked func() bool) context.Context {
	return context.WithValue(ctx, gateKey{}, blocked)
}

// Blocked reports whether the context's gate currently refuses mutations.
func Blocked(ctx context.Context) bool {
	blocked, _ := ctx.Value(gateKey{}).(func() bool)
	return blocked != nil && blocked()
}

// report passes out to the context's observer, if any.
func report(ctx context.Context, out dispatch.Outcome) error {
	obs, _ := ctx.Value(observerKey{}).(Observer)
	if obs == nil {
		return nil
	}
	return obs(out)
}

// ─── Results ─────────────────────────────────────────────────────────────────

// jsonResult renders a field-map as the text content of a tool result.
func jsonResult(fields map[string]any) *mcp.CallToolResult {
	b, err := json.Marshal(fields)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf(`{"success":false,"error":"failed to encode result: %v"}`, err))
	}
	res := mcp.NewToolResultText(string(b))
	// pending confirmations are not errors
	if _, isErr := fields["error"]; isErr {
		res.IsError = true
	}
	return res
}

// failed is the result of a request that could not be attempted.
func failed(format string, args ...any) *mcp.CallToolResult {
	return jsonResult(map[string]any{"success": false, "error": fmt.Sprintf(format, args...)})
}

// mutate runs a store mutation unless the context is blocked, reports the
// outcome and renders its payload.
func mutate(ctx context.Context, run func() dispatch.Outcome) *mcp.CallToolResult {
	if Blocked(ctx) {
		return failed(PendingMessage)
	}
	out := run()
	if err := report(ctx, out); err != nil {
		return failed(PendingMessage)
	}
	return jsonResult(out.Payload())
}

// ─── Arguments ───────────────────────────────────────────────────────────────

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
// Numeric strings are accepted since models sometimes quote ids.
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	switch v := req.GetArguments()[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return defaultVal
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// mapArg extracts an object argument. A string holding a JSON object is
// decoded. Missing yields nil.
func mapArg(req mcp.CallToolRequest, key string) (map[string]any, error) {
	switch v := req.GetArguments()[key].(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, fmt.Errorf("'%s' must be an object: %w", key, err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("'%s' must be an object", key)
	}
}

// stringsArg extracts a list of strings. A comma-separated string is split.
func stringsArg(req mcp.CallToolRequest, key string) []string {
	var out []string
	switch v := req.GetArguments()[key].(type) {
	case []any:
		for _, item := range v {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
	case []string:
		for _, s := range v {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// tableParam is the shared "table" parameter.
func tableParam() mcp.ToolOption {
	return mcp.WithString("table",
		mcp.Required(),
		mcp.Description("Target table"),
		mcp.Enum(schema.TableNames()...),
	)
}
