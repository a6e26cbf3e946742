package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNoConversation is returned for an empty conversation id.
var ErrNoConversation = errors.New("conversation: id is required")

// Locker serialises a conversation across processes. The returned unlock
// must be called once the message has been handled.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLocker adds a cross-process lock around every message.
func WithLocker(l Locker) Option {
	return func(m *Manager) { m.locker = l }
}

// WithIdleTTL sets how long an unused conversation is kept (default 24h).
func WithIdleTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

type entry struct {
	mu       sync.Mutex
	session  *Session
	lastUsed time.Time
}

// Manager owns the sessions of all conversations. Messages of one
// conversation are handled strictly one at a time; different conversations
// proceed in parallel.
type Manager struct {
	agent  *Agent
	system string
	locker Locker
	ttl    time.Duration
	now    func() time.Time

	// lookedUp runs between finding an entry and locking it; nil in production.
	lookedUp func()

	mu      sync.Mutex
	entries map[string]*entry
}

// NewManager creates a Manager whose sessions start with systemPrompt.
func NewManager(agent *Agent, systemPrompt string, opts ...Option) *Manager {
	m := &Manager{
		agent:   agent,
		system:  systemPrompt,
		ttl:     24 * time.Hour,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewID returns a fresh conversation id.
func (m *Manager) NewID() string { return uuid.NewString() }

// Handle processes one message of conversation id and returns the reply.
// It blocks while another message of the same conversation is in flight.
func (m *Manager) Handle(ctx context.Context, id, input string) (string, error) {
	if id == "" {
		return "", ErrNoConversation
	}
	e := m.acquire(id)
	defer e.mu.Unlock()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, "recordpilot:conversation:"+id)
		if err != nil {
			return "", fmt.Errorf("conversation: lock %s: %w", id, err)
		}
		defer unlock()
	}

	reply := m.agent.Respond(ctx, e.session, input)
	e.lastUsed = m.now()
	return reply, nil
}

// Reset clears a conversation. Unknown ids are ignored.
func (m *Manager) Reset(id string) {
	m.mu.Lock()
	e, ok := m.entries[id]
	m.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.session.Reset()
	e.mu.Unlock()
}

// Len returns the number of live conversations.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Evict drops conversations idle for longer than the TTL. Conversations
// with a message in flight are kept. Returns the number evicted.
func (m *Manager) Evict() int {
	cutoff := m.now().Add(-m.ttl)
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, e := range m.entries {
		if !e.mu.TryLock() {
			continue
		}
		if e.lastUsed.Before(cutoff) {
			delete(m.entries, id)
			n++
		}
		e.mu.Unlock()
	}
	return n
}

// Run evicts idle conversations every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Hour
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if n := m.Evict(); n > 0 {
				m.agent.log.Info("conversations evicted", "count", n)
			}
		}
	}
}

func (m *Manager) entry(id string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		e = &entry{session: NewSession(id, m.system), lastUsed: m.now()}
		m.entries[id] = e
	}
	return e
}

// acquire returns the locked entry of id. An entry evicted before its lock
// was taken is dropped and looked up again.
func (m *Manager) acquire(id string) *entry {
	for {
		e := m.entry(id)
		if m.lookedUp != nil {
			m.lookedUp()
		}
		e.mu.Lock()
		m.mu.Lock()
		live := m.entries[id] == e
		m.mu.Unlock()
		if live {
			return e
		}
		e.mu.Unlock()
	}
}
