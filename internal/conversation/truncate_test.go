package conversation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/recordpilot/internal/llm"
)

func sys() llm.Message { return llm.Message{Role: llm.RoleSystem, Content: "system"} }

func user(i int) llm.Message {
	return llm.Message{Role: llm.RoleUser, Content: fmt.Sprintf("u%d", i)}
}

func caller(id string) llm.Message {
	return llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: id, Name: "get_database_stats"}}}
}

func result(id string) llm.Message {
	return llm.Message{Role: llm.RoleTool, ToolCallID: id, ToolName: "get_database_stats", Content: "{}"}
}

func TestTruncate_ShortHistoryUnchanged(t *testing.T) {
	h := []llm.Message{sys(), user(1), user(2)}
	assert.Equal(t, h, Truncate(h, 16))

	h = []llm.Message{sys()}
	for i := 0; i < 16; i++ {
		h = append(h, user(i))
	}
	assert.Len(t, Truncate(h, 16), 17)
}

func TestTruncate_KeepsSystemAndTail(t *testing.T) {
	h := []llm.Message{sys()}
	for i := 0; i < 20; i++ {
		h = append(h, user(i))
	}
	got := Truncate(h, 16)
	require.Len(t, got, 17)
	assert.Equal(t, llm.RoleSystem, got[0].Role)
	assert.Equal(t, "u4", got[1].Content)
	assert.Equal(t, "u19", got[16].Content)
}

func TestTruncate_ExtendsBackToToolCaller(t *testing.T) {
	// system, u0..u3, caller, result, result, u4..u18
	h := []llm.Message{sys(), user(0), user(1), user(2), user(3), caller("c1"), result("c1"), result("c1")}
	for i := 4; i < 19; i++ {
		h = append(h, user(i))
	}
	// 22 messages after system; the plain cut would start at the second
	// result, orphaning it.
	got := Truncate(h, 16)

	require.Len(t, got, 19)
	assert.Equal(t, llm.RoleAssistant, got[1].Role)
	assert.NotEmpty(t, got[1].ToolCalls)
	assert.True(t, got[2].IsToolResult())
}

func TestTruncate_CallerInsideWindow(t *testing.T) {
	h := []llm.Message{sys()}
	for i := 0; i < 10; i++ {
		h = append(h, user(i))
	}
	h = append(h, caller("c1"), result("c1"))
	for i := 10; i < 20; i++ {
		h = append(h, user(i))
	}
	got := Truncate(h, 16)

	require.Len(t, got, 17)
	for i := 1; i < len(got); i++ {
		if got[i].IsToolResult() {
			assert.NotEmpty(t, got[i-1].ToolCalls, "tool result at %d lost its caller", i)
		}
	}
}

func TestTruncate_NoCallerFound(t *testing.T) {
	h := []llm.Message{sys(), result("orphan")}
	for i := 0; i < 20; i++ {
		h = append(h, user(i))
	}
	h = append(h, result("late"))
	got := Truncate(h, 16)
	assert.Len(t, got, 17)
}
