// Package confirm holds the yes/no state machine for operations blocked on
// user confirmation.
//
// A Machine belongs to exactly one conversation. While it holds a pending
// operation every inbound message is interpreted as an answer to it: yes
// re-runs the operation, no discards it, anything else repeats the question.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HendryAvila/recordpilot/internal/dispatch"
)

// ErrPendingExists is returned when capturing a pending operation while
// another one is still unanswered.
var ErrPendingExists = errors.New("confirm: a confirmation is already pending")

// State is the machine state.
type State int

const (
	Idle State = iota
	AwaitingEmptyNameConfirm
	AwaitingFieldCorrectionConfirm
)

func (s State) String() string {
	switch s {
	case AwaitingEmptyNameConfirm:
		return "awaiting_empty_name_confirm"
	case AwaitingFieldCorrectionConfirm:
		return "awaiting_field_correction_confirm"
	default:
		return "idle"
	}
}

// Answer classifies a reply to a pending question.
type Answer int

const (
	Other Answer = iota
	Accept
	Decline
)

var (
	acceptWords  = map[string]bool{"yes": true, "y": true, "proceed": true, "ok": true, "confirm": true}
	declineWords = map[string]bool{"no": true, "n": true, "cancel": true, "abort": true}
)

// Classify maps a raw reply to an Answer. Matching is exact after trimming
// and lowercasing, so "yes please" is Other.
func Classify(input string) Answer {
	w := strings.ToLower(strings.TrimSpace(input))
	switch {
	case acceptWords[w]:
		return Accept
	case declineWords[w]:
		return Decline
	default:
		return Other
	}
}

// Executor re-runs blocked operations.
type Executor interface {
	Create(ctx context.Context, table string, data map[string]any) dispatch.Outcome
	CreateAllowingEmptyName(ctx context.Context, table string, data map[string]any) dispatch.Outcome
	Update(ctx context.Context, table string, id int64, data map[string]any) dispatch.Outcome
}

// Resolution is the effect of answering a pending question.
type Resolution struct {
	Answer Answer
	// Note restates a yes or no for the conversation transcript. Empty when
	// the input was not an answer.
	Note string
	// Text is the reply shown to the user.
	Text string
	// Outcome is the result of the re-run operation; nil unless accepted.
	Outcome *dispatch.Outcome
}

// Machine is the per-conversation confirmation state. The zero value is Idle.
type Machine struct {
	pending dispatch.Pending
}

// State returns the current state.
func (m *Machine) State() State {
	switch m.pending.(type) {
	case dispatch.EmptyNamePending:
		return AwaitingEmptyNameConfirm
	case dispatch.FieldCorrectionPending:
		return AwaitingFieldCorrectionConfirm
	default:
		return Idle
	}
}

// Pending returns the held operation, or nil when Idle.
func (m *Machine) Pending() dispatch.Pending { return m.pending }

// Capture holds the pending operation of a NeedsConfirmation outcome.
// Other outcomes are ignored. Returns ErrPendingExists when one is held.
func (m *Machine) Capture(out dispatch.Outcome) error {
	if out.Kind != dispatch.NeedsConfirmation || out.Pending == nil {
		return nil
	}
	if m.pending != nil {
		return ErrPendingExists
	}
	m.pending = out.Pending
	return nil
}

// Reset drops any held operation.
func (m *Machine) Reset() { m.pending = nil }

// Resolve interprets input as an answer to the held operation. The second
// result is false when the machine is Idle and input was not consumed.
func (m *Machine) Resolve(ctx context.Context, exec Executor, input string) (Resolution, bool) {
	p := m.pending
	if p == nil {
		return Resolution{}, false
	}

	switch Classify(input) {
	case Decline:
		m.pending = nil
		note := "No, cancel the operation."
		if _, ok := p.(dispatch.EmptyNamePending); ok {
			note = "No, cancel the creation."
		}
		return Resolution{Answer: Decline, Note: note, Text: p.Declined()}, true
	case Other:
		return Resolution{Answer: Other, Text: p.Reprompt()}, true
	}

	m.pending = nil
	var out dispatch.Outcome
	var note string
	switch x := p.(type) {
	case dispatch.EmptyNamePending:
		note = fmt.Sprintf("Yes, proceed with creating %s with empty name.", x.TableName)
		out = exec.CreateAllowingEmptyName(ctx, x.TableName, x.Data)
	case dispatch.FieldCorrectionPending:
		note = fmt.Sprintf("Yes, use '%s' instead of '%s'.", x.Suggested, x.UserValue)
		switch {
		case x.RecordID > 0:
			out = exec.Update(ctx, x.TableName, x.RecordID, x.Corrected())
		case x.AllowEmptyName:
			out = exec.CreateAllowingEmptyName(ctx, x.TableName, x.Corrected())
		default:
			out = exec.Create(ctx, x.TableName, x.Corrected())
		}
	}

	// Idle again, so a follow-up question from the re-run can be held.
	_ = m.Capture(out)
	return Resolution{Answer: Accept, Note: note, Text: Describe(out), Outcome: &out}, true
}

// Describe renders an outcome as a user-facing reply.
func Describe(out dispatch.Outcome) string {
	switch out.Kind {
	case dispatch.Success:
		text := "✅ " + out.Message
		if id := out.RecordID(); id > 0 {
			text += fmt.Sprintf("\n\n💡 You can now reference this record by its ID (%d) for updates or queries.", id)
		}
		return text
	case dispatch.NeedsConfirmation:
		return Prompt(out.Pending)
	default:
		return "❌ Error: " + out.Message
	}
}

// Prompt is the full question shown when an operation becomes pending.
func Prompt(p dispatch.Pending) string {
	switch p.(type) {
	case dispatch.FieldCorrectionPending:
		return p.Question() + "\n\nPlease respond with 'yes' to use the corrected value or 'no' to cancel."
	default:
		return p.Question() + "\n\nPlease respond with 'yes' to proceed or 'no' to cancel."
	}
}
