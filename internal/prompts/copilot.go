// Package prompts holds the system prompt of the record agent and the MCP
// prompts that expose it.
//
// MCP prompts are user-triggered workflows (like slash commands). The
// copilot prompt primes an MCP host with the same instructions the built-in
// agent runs with.
package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/recordpilot/internal/schema"
)

// DefaultOwner names the person the assistant works for when none is set.
const DefaultOwner = "the user"

const guidance = `You are %[1]s's personal copilot. You manage projects, tasks, clients and
related records through the tools below, and keep %[1]s's thoughts and reminders.

## How to work
- Search by name (search_records_by_name) before creating anything that might exist.
  Matching is case-insensitive and fuzzy; mention similarity scores when showing hits.
- Before any create, update or delete, state what you will do and wait for a clear yes.
- Use get_current_datetime before setting relative dates. Dates are YYYY-MM-DD or
  YYYY-MM-DD HH:MM:SS.
- Only use the allowed values listed for closed fields. If a tool result asks for
  confirmation, relay the question and stop; the user's yes or no is handled for you.
- Report record IDs after every successful change.
- When %[1]s shares a thought, propose concrete actions first (add_reminder for time or
  health cues, create_record for work items) and log_thought only when asked or when
  nothing actionable remains. Keep replies short.
- get_morning_briefing gives today's tasks and reminders plus overdue items.
- Never run or describe raw SQL.
`

// System renders the agent's system prompt for owner.
func System(owner string) string {
	if strings.TrimSpace(owner) == "" {
		owner = DefaultOwner
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(guidance, owner))
	sb.WriteString("\n## Tables\n")
	for _, t := range schema.Tables() {
		sb.WriteString(describeTable(t))
	}
	return sb.String()
}

func describeTable(t schema.Table) string {
	var plain, closed []string
	for _, f := range t.Fields {
		if f.Name == schema.NameField {
			continue
		}
		if len(f.Enum) > 0 {
			closed = append(closed, fmt.Sprintf("  - %s: %s", f.Name, strings.Join(f.Enum, ", ")))
			continue
		}
		switch f.Kind {
		case schema.KindDate:
			plain = append(plain, f.Name+" (date)")
		case schema.KindList:
			plain = append(plain, f.Name+" (list)")
		case schema.KindBool:
			plain = append(plain, f.Name+" (bool)")
		case schema.KindInt:
			plain = append(plain, f.Name+" (int)")
		default:
			plain = append(plain, f.Name)
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("\n### %s\n", t.Name))
	if t.HasName() {
		sb.WriteString("- required: name\n")
	}
	if len(plain) > 0 {
		sb.WriteString("- fields: " + strings.Join(plain, ", ") + "\n")
	}
	if len(closed) > 0 {
		sb.WriteString("- allowed values:\n" + strings.Join(closed, "\n") + "\n")
	}
	return sb.String()
}

// ─── CopilotPrompt ───────────────────────────────────────────────────────────

// CopilotPrompt handles the copilot MCP prompt.
type CopilotPrompt struct {
	owner string
}

// NewCopilotPrompt creates a CopilotPrompt whose default owner is owner.
func NewCopilotPrompt(owner string) *CopilotPrompt {
	return &CopilotPrompt{owner: owner}
}

// Definition returns the MCP prompt definition for registration.
func (p *CopilotPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("copilot",
		mcp.WithPromptDescription(
			"Act as a personal records copilot: search first, confirm changes, "+
				"respect allowed field values.",
		),
		mcp.WithArgument("owner",
			mcp.ArgumentDescription("Name of the person being assisted"),
		),
	)
}

// Handle processes the copilot prompt request.
func (p *CopilotPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	owner := p.owner
	if name := req.Params.Arguments["owner"]; name != "" {
		owner = name
	}
	return &mcp.GetPromptResult{
		Description: "Records copilot",
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.NewTextContent(System(owner)),
			},
		},
	}, nil
}
