// Package conversation drives one chat: it answers pending confirmations,
// runs the model's tool-calling loop and keeps the bounded transcript.
//
// Each conversation owns a Session. The Manager serialises messages per
// conversation id and runs independent conversations in parallel.
package conversation

import (
	"github.com/HendryAvila/recordpilot/internal/confirm"
	"github.com/HendryAvila/recordpilot/internal/llm"
)

// Session is the state of one conversation. It is not safe for concurrent
// use; the Manager serialises access.
type Session struct {
	ID string

	system  string
	history []llm.Message
	machine confirm.Machine
}

// NewSession creates a session whose transcript starts with the system prompt.
func NewSession(id, systemPrompt string) *Session {
	s := &Session{ID: id, system: systemPrompt}
	s.Reset()
	return s
}

// Reset clears the transcript back to the system prompt and drops any
// pending confirmation.
func (s *Session) Reset() {
	s.history = []llm.Message{{Role: llm.RoleSystem, Content: s.system}}
	s.machine.Reset()
}

// History returns a copy of the transcript.
func (s *Session) History() []llm.Message {
	out := make([]llm.Message, len(s.history))
	copy(out, s.history)
	return out
}

// State reports whether a confirmation is pending.
func (s *Session) State() confirm.State { return s.machine.State() }

func (s *Session) append(msgs ...llm.Message) {
	s.history = append(s.history, msgs...)
}

// rewind drops every message after the first n.
func (s *Session) rewind(n int) {
	if n < len(s.history) {
		s.history = s.history[:n]
	}
}
