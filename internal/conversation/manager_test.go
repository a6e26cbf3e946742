package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/HendryAvila/recordpilot/internal/confirm"
	"github.com/HendryAvila/recordpilot/internal/llm"
)

// noTools is an empty catalog.
type noTools struct{}

func (noTools) Specs() []llm.ToolSpec { return nil }

func (noTools) Call(context.Context, string, map[string]any) (string, error) {
	return "", errors.New("no tools")
}

// echo replies with the last user message.
func echo() llm.Oracle {
	return llm.OracleFunc(func(_ context.Context, h []llm.Message, _ []llm.ToolSpec) (llm.Decision, error) {
		return llm.Decision{Text: "echo: " + h[len(h)-1].Content}, nil
	})
}

func TestManager_RequiresID(t *testing.T) {
	m := NewManager(NewAgent(echo(), noTools{}, nil, nil, AgentConfig{}), "sys")
	_, err := m.Handle(context.Background(), "", "hi")
	assert.ErrorIs(t, err, ErrNoConversation)
}

func TestManager_NewID(t *testing.T) {
	m := NewManager(nil, "sys")
	a, b := m.NewID(), m.NewID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestManager_IsolatesPendingConfirmations(t *testing.T) {
	f := newFixture(t, AgentConfig{},
		toolCall("create_record", map[string]any{"table": "tasks", "data": map[string]any{"name": ""}}),
		llm.Decision{Text: "B got a normal answer"},
	)
	m := NewManager(f.agent, "sys")
	ctx := context.Background()

	_, err := m.Handle(ctx, "A", "add a blank task")
	require.NoError(t, err)

	// "yes" in B must reach the model, not resolve A's question
	reply, err := m.Handle(ctx, "B", "yes")
	require.NoError(t, err)
	assert.Equal(t, "B got a normal answer", reply)
	assert.Zero(t, f.count(t, "tasks"))

	reply, err = m.Handle(ctx, "A", "yes")
	require.NoError(t, err)
	assert.Contains(t, reply, "(empty name)")
	assert.Equal(t, 1, f.count(t, "tasks"))
	assert.Equal(t, 2, m.Len())
}

func TestManager_SerialisesOneConversation(t *testing.T) {
	var active, peak int32
	oracle := llm.OracleFunc(func(context.Context, []llm.Message, []llm.ToolSpec) (llm.Decision, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return llm.Decision{Text: "ok"}, nil
	})
	m := NewManager(NewAgent(oracle, noTools{}, nil, nil, AgentConfig{}), "sys")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.Handle(context.Background(), "same", fmt.Sprintf("msg %d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak)
}

func TestManager_ParallelAcrossConversations(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	// each call waits until both conversations are inside the model
	var arrived sync.WaitGroup
	arrived.Add(2)
	oracle := llm.OracleFunc(func(ctx context.Context, _ []llm.Message, _ []llm.ToolSpec) (llm.Decision, error) {
		arrived.Done()
		done := make(chan struct{})
		go func() { arrived.Wait(); close(done) }()
		select {
		case <-done:
			return llm.Decision{Text: "ok"}, nil
		case <-time.After(2 * time.Second):
			return llm.Decision{}, errors.New("conversations were serialised")
		}
	})
	m := NewManager(NewAgent(oracle, noTools{}, nil, nil, AgentConfig{}), "sys")

	var wg sync.WaitGroup
	replies := make([]string, 2)
	for i, id := range []string{"A", "B"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			replies[i], _ = m.Handle(context.Background(), id, "hi")
		}(i, id)
	}
	wg.Wait()
	assert.Equal(t, []string{"ok", "ok"}, replies)
}

type fakeLocker struct {
	mu     sync.Mutex
	keys   []string
	held   int
	failed bool
}

func (l *fakeLocker) Lock(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failed {
		return nil, errors.New("redis down")
	}
	l.keys = append(l.keys, key)
	l.held++
	return func() {
		l.mu.Lock()
		l.held--
		l.mu.Unlock()
	}, nil
}

func TestManager_Locker(t *testing.T) {
	l := &fakeLocker{}
	m := NewManager(NewAgent(echo(), noTools{}, nil, nil, AgentConfig{}), "sys", WithLocker(l))

	reply, err := m.Handle(context.Background(), "+4915112345678", "hi")
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", reply)
	assert.Equal(t, []string{"recordpilot:conversation:+4915112345678"}, l.keys)
	assert.Zero(t, l.held)

	l.failed = true
	_, err = m.Handle(context.Background(), "x", "hi")
	assert.ErrorContains(t, err, "redis down")
}

func TestManager_ResetAndEvict(t *testing.T) {
	now := time.Date(2025, 4, 3, 12, 0, 0, 0, time.UTC)
	m := NewManager(NewAgent(echo(), noTools{}, nil, nil, AgentConfig{}), "sys", WithIdleTTL(time.Hour))
	m.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = m.Handle(ctx, "old", "hi")
	now = now.Add(50 * time.Minute)
	_, _ = m.Handle(ctx, "new", "hi")

	m.Reset("old")
	m.Reset("unknown")
	m.mu.Lock()
	assert.Len(t, m.entries["old"].session.History(), 1)
	assert.Equal(t, confirm.Idle, m.entries["old"].session.State())
	m.mu.Unlock()

	now = now.Add(20 * time.Minute)
	assert.Equal(t, 1, m.Evict())
	assert.Equal(t, 1, m.Len())
}

func TestManager_HandleAfterEvictionUsesLiveEntry(t *testing.T) {
	now := time.Date(2025, 4, 3, 12, 0, 0, 0, time.UTC)
	m := NewManager(NewAgent(echo(), noTools{}, nil, nil, AgentConfig{}), "sys", WithIdleTTL(time.Hour))
	m.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := m.Handle(ctx, "x", "first")
	require.NoError(t, err)
	now = now.Add(2 * time.Hour)

	evicted := 0
	m.lookedUp = func() {
		if evicted == 0 {
			evicted = m.Evict()
		}
	}
	_, err = m.Handle(ctx, "x", "second")
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)

	m.mu.Lock()
	defer m.mu.Unlock()
	require.Contains(t, m.entries, "x")
	var inputs []string
	for _, msg := range m.entries["x"].session.History() {
		if msg.Role == llm.RoleUser {
			inputs = append(inputs, msg.Content)
		}
	}
	assert.Equal(t, []string{"second"}, inputs)
}

func TestManager_RunStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	m := NewManager(NewAgent(echo(), noTools{}, nil, nil, AgentConfig{}), "sys", WithIdleTTL(time.Millisecond))
	_, _ = m.Handle(context.Background(), "a", "hi")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, time.Millisecond) }()

	require.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
