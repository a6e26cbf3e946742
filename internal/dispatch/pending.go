package dispatch

import (
	"fmt"
	"maps"
)

// Pending is an operation blocked on a yes/no answer from the user.
// It is one of EmptyNamePending or FieldCorrectionPending.
type Pending interface {
	// Question is the yes/no question put to the user.
	Question() string
	// Reprompt repeats the question for an answer that was neither yes nor no.
	Reprompt() string
	// Declined is the notice shown when the user says no.
	Declined() string
	// Table is the table the blocked operation writes to.
	Table() string

	isPending()
}

// EmptyNamePending blocks a create whose name is blank.
type EmptyNamePending struct {
	TableName string
	Data      map[string]any
}

func (p EmptyNamePending) Table() string { return p.TableName }

func (p EmptyNamePending) Question() string {
	return fmt.Sprintf("⚠️ The 'name' field is required but was empty. Would you like to proceed with creating the %s record with an empty name?", p.TableName)
}

func (p EmptyNamePending) Reprompt() string {
	return fmt.Sprintf("⚠️ Please respond with 'yes' to proceed with creating the %s with empty name, or 'no' to cancel.", p.TableName)
}

func (p EmptyNamePending) Declined() string {
	return "❌ Record creation cancelled. You can try again with a different name."
}

func (EmptyNamePending) isPending() {}

// FieldCorrectionPending blocks a create or update carrying a value outside
// a field's enumeration. RecordID is zero for creates.
type FieldCorrectionPending struct {
	TableName  string
	Field      string
	UserValue  string
	Suggested  string
	Similarity int
	Data       map[string]any
	RecordID   int64
	// AllowEmptyName carries an already-confirmed blank name through to the
	// retried create.
	AllowEmptyName bool
}

func (p FieldCorrectionPending) Table() string { return p.TableName }

func (p FieldCorrectionPending) Question() string {
	return fmt.Sprintf("⚠️ Invalid %s value: '%s'. Did you mean '%s'?", p.Field, p.UserValue, p.Suggested)
}

func (p FieldCorrectionPending) Reprompt() string {
	return fmt.Sprintf("⚠️ Please respond with 'yes' to use '%s' for the %s field, or 'no' to cancel.", p.Suggested, p.Field)
}

func (p FieldCorrectionPending) Declined() string {
	return "❌ Operation cancelled due to invalid field value. Please use the correct case or choose from the valid options."
}

// Corrected returns a copy of Data with the suggestion applied.
func (p FieldCorrectionPending) Corrected() map[string]any {
	out := maps.Clone(p.Data)
	if out == nil {
		out = map[string]any{}
	}
	out[p.Field] = p.Suggested
	return out
}

func (FieldCorrectionPending) isPending() {}
