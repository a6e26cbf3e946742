package dispatch

import "maps"

// Kind classifies an Outcome.
type Kind int

const (
	// Success means the operation completed.
	Success Kind = iota
	// InputError means the request was malformed; nothing was attempted.
	InputError
	// NotFound means the addressed record does not exist.
	NotFound
	// NeedsConfirmation means the operation is blocked on a Pending answer.
	NeedsConfirmation
	// StoreFailure means the store rejected or failed the operation.
	StoreFailure
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case InputError:
		return "input_error"
	case NotFound:
		return "not_found"
	case NeedsConfirmation:
		return "needs_confirmation"
	case StoreFailure:
		return "store_failure"
	default:
		return "unknown"
	}
}

// Outcome is the result of a dispatched operation.
type Outcome struct {
	Kind    Kind
	Message string
	// Data holds operation-specific result fields (record_id, record, records,
	// count, stats, ...). Only set on Success.
	Data map[string]any
	// Pending is set when Kind is NeedsConfirmation.
	Pending Pending
}

// OK reports whether the operation succeeded.
func (o Outcome) OK() bool { return o.Kind == Success }

// RecordID returns the id of a created record, or 0.
func (o Outcome) RecordID() int64 {
	id, _ := o.Data["record_id"].(int64)
	return id
}

// Payload renders the outcome as the field map returned to callers.
func (o Outcome) Payload() map[string]any {
	switch o.Kind {
	case Success:
		out := maps.Clone(o.Data)
		if out == nil {
			out = map[string]any{}
		}
		out["success"] = true
		out["message"] = o.Message
		return out

	case NeedsConfirmation:
		switch p := o.Pending.(type) {
		case EmptyNamePending:
			return map[string]any{
				"success":               false,
				"requires_confirmation": true,
				"pending_table":         p.TableName,
				"pending_data":          p.Data,
				"message":               p.Question(),
			}
		case FieldCorrectionPending:
			out := map[string]any{
				"success":                     false,
				"requires_field_confirmation": true,
				"pending_table":               p.TableName,
				"pending_data":                p.Data,
				"field":                       p.Field,
				"user_value":                  p.UserValue,
				"suggested_value":             p.Suggested,
				"similarity":                  p.Similarity,
				"message":                     p.Question(),
			}
			if p.RecordID > 0 {
				out["pending_record_id"] = p.RecordID
			}
			return out
		}
	}
	return map[string]any{
		"success": false,
		"error":   o.Message,
	}
}

func success(msg string, data map[string]any) Outcome {
	return Outcome{Kind: Success, Message: msg, Data: data}
}

func failure(kind Kind, msg string) Outcome {
	return Outcome{Kind: kind, Message: msg}
}

func needs(p Pending) Outcome {
	return Outcome{Kind: NeedsConfirmation, Message: p.Question(), Pending: p}
}
