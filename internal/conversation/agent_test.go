package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/recordpilot/internal/confirm"
	"github.com/HendryAvila/recordpilot/internal/dispatch"
	"github.com/HendryAvila/recordpilot/internal/llm"
	"github.com/HendryAvila/recordpilot/internal/records"
	"github.com/HendryAvila/recordpilot/internal/sidelog"
	"github.com/HendryAvila/recordpilot/internal/tools"
)

// scripted replays decisions in order and fails once they run out.
type scripted struct {
	mu        sync.Mutex
	decisions []llm.Decision
	calls     int
	seen      [][]llm.Message
}

func (s *scripted) Decide(_ context.Context, history []llm.Message, _ []llm.ToolSpec) (llm.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, append([]llm.Message(nil), history...))
	if s.calls >= len(s.decisions) {
		s.calls++
		return llm.Decision{}, errors.New("script exhausted")
	}
	d := s.decisions[s.calls]
	s.calls++
	return d, nil
}

func toolCall(name string, args map[string]any) llm.Decision {
	return llm.Decision{ToolCalls: []llm.ToolCall{{Name: name, Args: args}}}
}

type fixture struct {
	agent  *Agent
	store  *records.Store
	oracle *scripted
}

func newFixture(t *testing.T, cfg AgentConfig, decisions ...llm.Decision) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := records.New(records.Config{DataDir: dir})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	side, err := sidelog.New(dir)
	require.NoError(t, err)

	d := dispatch.New(store, nil)
	catalog := tools.Catalog(tools.Deps{Dispatcher: d, Calendar: store, Side: side})
	oracle := &scripted{decisions: decisions}
	return &fixture{agent: NewAgent(oracle, catalog, d, nil, cfg), store: store, oracle: oracle}
}

func (f *fixture) count(t *testing.T, table string) int {
	t.Helper()
	n, err := f.store.Count(context.Background(), table)
	require.NoError(t, err)
	return n
}

func TestRespond_EmptyInput(t *testing.T) {
	f := newFixture(t, AgentConfig{})
	s := NewSession("c", "sys")
	assert.Equal(t, EmptyInputReply, f.agent.Respond(context.Background(), s, "   "))
	assert.Zero(t, f.oracle.calls)
}

func TestRespond_ResetCommands(t *testing.T) {
	for _, cmd := range []string{"/reset", "/CLEAR", " reset "} {
		f := newFixture(t, AgentConfig{},
			toolCall("create_record", map[string]any{"table": "tasks", "data": map[string]any{"name": ""}}),
		)
		s := NewSession("c", "sys")
		ctx := context.Background()

		f.agent.Respond(ctx, s, "add a task")
		require.Equal(t, confirm.AwaitingEmptyNameConfirm, s.State())

		assert.Equal(t, ResetReply, f.agent.Respond(ctx, s, cmd))
		assert.Equal(t, confirm.Idle, s.State())
		assert.Equal(t, []llm.Message{{Role: llm.RoleSystem, Content: "sys"}}, s.History())
	}
}

func TestRespond_ToolLoopThenText(t *testing.T) {
	f := newFixture(t, AgentConfig{},
		toolCall("create_record", map[string]any{"table": "projects", "data": map[string]any{"name": "Apollo"}}),
		llm.Decision{Text: "Successfully created projects record with ID 1"},
	)
	s := NewSession("c", "sys")

	reply := f.agent.Respond(context.Background(), s, "create project Apollo")
	assert.Equal(t, "Successfully created projects record with ID 1\n\n💡 You can now reference this record by its ID for updates or queries.", reply)
	assert.Equal(t, 1, f.count(t, "projects"))

	h := s.History()
	require.Len(t, h, 5)
	assert.Equal(t, llm.RoleUser, h[1].Role)
	require.Len(t, h[2].ToolCalls, 1)
	assert.NotEmpty(t, h[2].ToolCalls[0].ID)
	assert.Equal(t, h[2].ToolCalls[0].ID, h[3].ToolCallID)
	assert.Contains(t, h[3].Content, `"success":true`)
	assert.Equal(t, llm.RoleAssistant, h[4].Role)

	// the second round saw the tool result
	require.Len(t, f.oracle.seen, 2)
	assert.True(t, f.oracle.seen[1][3].IsToolResult())
}

func TestRespond_Hints(t *testing.T) {
	tests := map[string]string{
		"Successfully deleted tasks record with ID 2": "\n\n⚠️ This action cannot be undone.",
		"There was an ERROR reading that":             "\n\n🔍 Check your input format and try again, or ask for help with the command syntax.",
		"Here are your tasks":                         "",
	}
	for text, hint := range tests {
		f := newFixture(t, AgentConfig{}, llm.Decision{Text: text})
		got := f.agent.Respond(context.Background(), NewSession("c", "sys"), "hi")
		assert.Equal(t, text+hint, got)
	}
}

func TestRespond_FieldCorrectionFlow(t *testing.T) {
	f := newFixture(t, AgentConfig{},
		toolCall("create_record", map[string]any{"table": "projects", "data": map[string]any{"name": "Apollo", "status": "donee"}}),
		// never consulted: the pending confirmation ends the turn
		llm.Decision{Text: "I created it!"},
	)
	s := NewSession("c", "sys")
	ctx := context.Background()

	reply := f.agent.Respond(ctx, s, "create Apollo, status donee")
	assert.Equal(t, "⚠️ Invalid status value: 'donee'. Did you mean 'Done'?\n\nPlease respond with 'yes' to use the corrected value or 'no' to cancel.", reply)
	assert.Equal(t, confirm.AwaitingFieldCorrectionConfirm, s.State())
	assert.Equal(t, 1, f.oracle.calls)
	assert.Zero(t, f.count(t, "projects"))

	before := len(s.History())
	reply = f.agent.Respond(ctx, s, "maybe later")
	assert.Equal(t, "⚠️ Please respond with 'yes' to use 'Done' for the status field, or 'no' to cancel.", reply)
	assert.Equal(t, before, len(s.History()), "a non-answer is not recorded")
	assert.Equal(t, 1, f.oracle.calls)

	reply = f.agent.Respond(ctx, s, "Yes")
	assert.Equal(t, "✅ Successfully created projects record with ID 1\n\n💡 You can now reference this record by its ID (1) for updates or queries.", reply)
	assert.Equal(t, confirm.Idle, s.State())
	assert.Equal(t, 1, f.count(t, "projects"))

	h := s.History()
	assert.Equal(t, "Yes, use 'Done' instead of 'donee'.", h[len(h)-2].Content)
	assert.Equal(t, reply, h[len(h)-1].Content)
}

func TestRespond_EmptyNameDecline(t *testing.T) {
	f := newFixture(t, AgentConfig{},
		toolCall("create_record", map[string]any{"table": "tasks", "data": map[string]any{"notes": "x"}}),
	)
	s := NewSession("c", "sys")
	ctx := context.Background()

	reply := f.agent.Respond(ctx, s, "add a task")
	assert.True(t, strings.HasSuffix(reply, "Please respond with 'yes' to proceed or 'no' to cancel."), reply)

	reply = f.agent.Respond(ctx, s, "no")
	assert.Equal(t, "❌ Record creation cancelled. You can try again with a different name.", reply)
	assert.Equal(t, confirm.Idle, s.State())
	assert.Zero(t, f.count(t, "tasks"))

	h := s.History()
	assert.Equal(t, "No, cancel the creation.", h[len(h)-2].Content)
}

func TestRespond_SecondBlockedCallInRoundFails(t *testing.T) {
	f := newFixture(t, AgentConfig{}, llm.Decision{ToolCalls: []llm.ToolCall{
		{ID: "a", Name: "create_record", Args: map[string]any{"table": "tasks", "data": map[string]any{"name": ""}}},
		{ID: "b", Name: "create_record", Args: map[string]any{"table": "tasks", "data": map[string]any{"name": "x", "status": "donee"}}},
	}})
	s := NewSession("c", "sys")

	f.agent.Respond(context.Background(), s, "two things")
	assert.Equal(t, confirm.AwaitingEmptyNameConfirm, s.State())

	h := s.History()
	last := h[len(h)-1]
	assert.Equal(t, "b", last.ToolCallID)
	assert.Contains(t, last.Content, "A confirmation is already pending")
}

func TestRespond_CallsAfterBlockedOneDoNotRun(t *testing.T) {
	f := newFixture(t, AgentConfig{}, llm.Decision{ToolCalls: []llm.ToolCall{
		{ID: "a", Name: "create_record", Args: map[string]any{"table": "clients", "data": map[string]any{"name": ""}}},
		{ID: "b", Name: "confirm_create_with_empty_name", Args: map[string]any{"table": "clients"}},
		{ID: "c", Name: "delete_record", Args: map[string]any{"table": "clients", "record_id": 1}},
	}})
	s := NewSession("c", "sys")
	ctx := context.Background()

	f.agent.Respond(ctx, s, "add a client")
	assert.Equal(t, confirm.AwaitingEmptyNameConfirm, s.State())
	assert.Zero(t, f.count(t, "clients"), "nothing is written before the answer")

	h := s.History()
	require.Len(t, h, 6)
	for i, id := range []string{"b", "c"} {
		msg := h[4+i]
		assert.Equal(t, id, msg.ToolCallID)
		assert.Contains(t, msg.Content, tools.PendingMessage)
	}

	f.agent.Respond(ctx, s, "yes")
	assert.Equal(t, confirm.Idle, s.State())
	assert.Equal(t, 1, f.count(t, "clients"))
}

func TestRespond_OracleErrorRewinds(t *testing.T) {
	f := newFixture(t, AgentConfig{})
	s := NewSession("c", "sys")

	reply := f.agent.Respond(context.Background(), s, "hello")
	assert.Equal(t, "❌ Error processing request: script exhausted\n\n💡 Try rephrasing your request or use simpler terms.", reply)
	assert.Len(t, s.History(), 1)
}

func TestRespond_NoResponse(t *testing.T) {
	f := newFixture(t, AgentConfig{}, llm.Decision{})
	assert.Equal(t, NoResponseReply, f.agent.Respond(context.Background(), NewSession("c", "sys"), "hello"))
}

func TestRespond_StepLimit(t *testing.T) {
	clock := toolCall("get_current_datetime", nil)
	f := newFixture(t, AgentConfig{MaxSteps: 3}, clock, clock, clock, clock)

	reply := f.agent.Respond(context.Background(), NewSession("c", "sys"), "what time")
	assert.Equal(t, NoResponseReply, reply)
	assert.Equal(t, 3, f.oracle.calls)
}

func TestRespond_UnknownTool(t *testing.T) {
	f := newFixture(t, AgentConfig{},
		toolCall("drop_everything", nil),
		llm.Decision{Text: "Sorry, I can't."},
	)
	s := NewSession("c", "sys")

	f.agent.Respond(context.Background(), s, "drop it")
	h := s.History()
	require.Len(t, h, 5)
	assert.Contains(t, h[3].Content, "unknown tool")
	assert.Contains(t, h[3].Content, `"success":false`)
}

func TestRespond_TruncatesHistory(t *testing.T) {
	var ds []llm.Decision
	for i := 0; i < 20; i++ {
		ds = append(ds, llm.Decision{Text: "ok"})
	}
	f := newFixture(t, AgentConfig{Window: 4}, ds...)
	s := NewSession("c", "sys")
	for i := 0; i < 10; i++ {
		f.agent.Respond(context.Background(), s, "ping")
	}
	h := s.History()
	assert.Len(t, h, 5)
	assert.Equal(t, llm.RoleSystem, h[0].Role)
}
