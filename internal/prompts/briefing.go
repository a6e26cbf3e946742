package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// BriefingPrompt handles the morning-briefing MCP prompt.
// It instructs the AI to fetch and present the daily overview.
type BriefingPrompt struct{}

// NewBriefingPrompt creates a BriefingPrompt.
func NewBriefingPrompt() *BriefingPrompt {
	return &BriefingPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *BriefingPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("morning-briefing",
		mcp.WithPromptDescription(
			"Get today's tasks and reminders plus overdue tasks and projects.",
		),
	)
}

// Handle processes the morning-briefing prompt request.
func (p *BriefingPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Morning briefing",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `get_morning_briefing` and then:\n" +
						"1. List what is due today, reminders first\n" +
						"2. Call out overdue tasks and projects with how late they are\n" +
						"3. Suggest the single most important thing to start with\n" +
						"Keep it short.",
				),
			},
		},
	}, nil
}
