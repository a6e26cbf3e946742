package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HendryAvila/recordpilot/internal/confirm"
	"github.com/HendryAvila/recordpilot/internal/dispatch"
	"github.com/HendryAvila/recordpilot/internal/llm"
	"github.com/HendryAvila/recordpilot/internal/logging"
	"github.com/HendryAvila/recordpilot/internal/tools"
)

// Fixed replies.
const (
	ResetReply      = "🔄 Conversation reset. Ready for new requests!"
	EmptyInputReply = "Please provide a message or command."
	NoResponseReply = "❌ No response generated. Please try rephrasing your request."
)

// DefaultMaxSteps bounds model round-trips per inbound message.
const DefaultMaxSteps = 8

var resetCommands = map[string]bool{"/reset": true, "/clear": true, "reset": true}

// ToolCaller exposes a tool catalog to the model.
type ToolCaller interface {
	Specs() []llm.ToolSpec
	Call(ctx context.Context, name string, args map[string]any) (string, error)
}

// AgentConfig tunes the agent loop.
type AgentConfig struct {
	// MaxSteps bounds model round-trips per message (default 8).
	MaxSteps int
	// Window is the number of retained messages after the system prompt
	// (default 16).
	Window int
}

// Agent turns user messages into replies for a Session.
type Agent struct {
	oracle llm.Oracle
	tools  ToolCaller
	exec   confirm.Executor
	log    *logging.Logger
	cfg    AgentConfig
}

// NewAgent creates an Agent. exec re-runs operations the user confirms.
// A nil logger discards output.
func NewAgent(oracle llm.Oracle, tc ToolCaller, exec confirm.Executor, log *logging.Logger, cfg AgentConfig) *Agent {
	if log == nil {
		log = logging.Nop()
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Agent{oracle: oracle, tools: tc, exec: exec, log: log, cfg: cfg}
}

// Respond handles one inbound message and returns the reply.
//
// While a confirmation is pending the message is an answer to it and the
// model is not consulted. A tool result that blocks on confirmation ends
// the turn with the confirmation question, whatever the model would have
// said next.
func (a *Agent) Respond(ctx context.Context, s *Session, input string) string {
	start := time.Now()
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return EmptyInputReply
	}
	if resetCommands[strings.ToLower(trimmed)] {
		s.Reset()
		a.log.Info("conversation reset", "conversation", s.ID)
		return ResetReply
	}

	if res, ok := s.machine.Resolve(ctx, a.exec, trimmed); ok {
		if res.Note != "" {
			s.append(
				llm.Message{Role: llm.RoleUser, Content: res.Note},
				llm.Message{Role: llm.RoleAssistant, Content: res.Text},
			)
			s.history = Truncate(s.history, a.cfg.Window)
		}
		a.log.Info("confirmation answered",
			"conversation", s.ID, "answer", answerName(res.Answer), "state", s.State().String())
		return res.Text
	}

	mark := len(s.history)
	s.append(llm.Message{Role: llm.RoleUser, Content: input})

	text, steps, err := a.loop(ctx, s)
	if err != nil {
		s.rewind(mark)
		a.log.Error("message failed", "conversation", s.ID, "steps", steps, "error", err)
		return fmt.Sprintf("❌ Error processing request: %v\n\n💡 Try rephrasing your request or use simpler terms.", err)
	}
	s.history = Truncate(s.history, a.cfg.Window)

	a.log.Info("message processed",
		"conversation", s.ID,
		"steps", steps,
		"pending", s.State().String(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if p := s.machine.Pending(); p != nil {
		return confirm.Prompt(p)
	}
	if text == "" {
		return NoResponseReply
	}
	return withHint(text)
}

// loop runs model rounds until the model answers in text, a tool call
// blocks on confirmation, or MaxSteps is reached.
func (a *Agent) loop(ctx context.Context, s *Session) (string, int, error) {
	specs := a.tools.Specs()
	toolCtx := tools.WithObserver(ctx, func(out dispatch.Outcome) error {
		return s.machine.Capture(out)
	})
	toolCtx = tools.WithGate(toolCtx, func() bool { return s.machine.Pending() != nil })

	for step := 1; step <= a.cfg.MaxSteps; step++ {
		d, err := a.oracle.Decide(ctx, s.history, specs)
		if err != nil {
			return "", step, err
		}
		if len(d.ToolCalls) == 0 {
			if d.Text != "" {
				s.append(llm.Message{Role: llm.RoleAssistant, Content: d.Text})
			}
			return d.Text, step, nil
		}

		calls := make([]llm.ToolCall, len(d.ToolCalls))
		for i, tc := range d.ToolCalls {
			if tc.ID == "" {
				tc.ID = fmt.Sprintf("call_%d_%d", step, i)
			}
			calls[i] = tc
		}
		s.append(llm.Message{Role: llm.RoleAssistant, Content: d.Text, ToolCalls: calls})

		for _, tc := range calls {
			if s.machine.Pending() != nil {
				// calls after a blocking one are answered without running
				a.log.Debug("tool call skipped", "conversation", s.ID, "tool", tc.Name)
				s.append(llm.Message{Role: llm.RoleTool, Content: errorResult(errors.New(tools.PendingMessage)), ToolCallID: tc.ID, ToolName: tc.Name})
				continue
			}
			result, err := a.tools.Call(toolCtx, tc.Name, tc.Args)
			if err != nil {
				a.log.Warn("tool call failed", "conversation", s.ID, "tool", tc.Name, "error", err)
				result = errorResult(err)
			} else {
				a.log.Debug("tool called", "conversation", s.ID, "tool", tc.Name)
			}
			s.append(llm.Message{Role: llm.RoleTool, Content: result, ToolCallID: tc.ID, ToolName: tc.Name})
		}

		if s.machine.Pending() != nil {
			return "", step, nil
		}
	}
	a.log.Warn("step limit reached", "conversation", s.ID, "max_steps", a.cfg.MaxSteps)
	return "", a.cfg.MaxSteps, nil
}

// withHint appends a follow-up hint based on the reply content.
func withHint(text string) string {
	switch {
	case strings.Contains(text, "Successfully created"):
		return text + "\n\n💡 You can now reference this record by its ID for updates or queries."
	case strings.Contains(text, "Successfully deleted"):
		return text + "\n\n⚠️ This action cannot be undone."
	case strings.Contains(strings.ToLower(text), "error"):
		return text + "\n\n🔍 Check your input format and try again, or ask for help with the command syntax."
	}
	return text
}

func errorResult(err error) string {
	b, _ := json.Marshal(map[string]any{"success": false, "error": err.Error()})
	return string(b)
}

func answerName(a confirm.Answer) string {
	switch a {
	case confirm.Accept:
		return "accept"
	case confirm.Decline:
		return "decline"
	default:
		return "other"
	}
}
