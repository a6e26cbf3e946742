package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// DefaultModel is used when GeminiConfig.Model is empty.
const DefaultModel = "gemini-2.5-flash"

// GeminiConfig configures the Gemini oracle.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// Gemini is an Oracle backed by the Gemini API.
type Gemini struct {
	client *genai.Client
	cfg    GeminiConfig
}

// NewGemini creates a Gemini oracle.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm: Gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: create GenAI client: %w", err)
	}
	return &Gemini{client: client, cfg: cfg}, nil
}

// Decide sends the transcript and tool catalog and returns the model's
// tool calls, or its text when it calls none.
func (g *Gemini) Decide(ctx context.Context, history []Message, tools []ToolSpec) (Decision, error) {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	system, contents := toContents(history)
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.cfg.Temperature),
		Tools:       toTools(tools),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, contents, config)
	if err != nil {
		return Decision{}, fmt.Errorf("llm: generate: %w", err)
	}

	var d Decision
	for _, fc := range resp.FunctionCalls() {
		d.ToolCalls = append(d.ToolCalls, ToolCall{ID: fc.ID, Name: fc.Name, Args: fc.Args})
	}
	if len(d.ToolCalls) == 0 {
		d.Text = strings.TrimSpace(resp.Text())
	}
	return d, nil
}

// toContents splits out the system prompt and maps the rest of the
// transcript onto Gemini contents. Tool results travel as function
// responses in user turns.
func toContents(history []Message) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleUser:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		case RoleAssistant:
			var parts []*genai.Part
			if m.Content != "" {
				parts = append(parts, genai.NewPartFromText(m.Content))
			}
			for _, tc := range m.ToolCalls {
				p := genai.NewPartFromFunctionCall(tc.Name, tc.Args)
				p.FunctionCall.ID = tc.ID
				parts = append(parts, p)
			}
			if len(parts) > 0 {
				contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
			}
		case RoleTool:
			p := genai.NewPartFromFunctionResponse(m.ToolName, map[string]any{"output": m.Content})
			p.FunctionResponse.ID = m.ToolCallID
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{p}, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}

func toTools(specs []ToolSpec) []*genai.Tool {
	if len(specs) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, len(specs))
	for i, s := range specs {
		decls[i] = &genai.FunctionDeclaration{
			Name:                 s.Name,
			Description:          s.Description,
			ParametersJsonSchema: s.Parameters,
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}
