// Package dispatch runs record operations behind schema gating and field
// validation, and turns every result into an explicit Outcome.
//
// Validation always completes before the store is touched: a blank name or
// an out-of-enumeration value yields a NeedsConfirmation outcome carrying a
// Pending operation, and the store is left unchanged.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/HendryAvila/recordpilot/internal/fuzzy"
	"github.com/HendryAvila/recordpilot/internal/logging"
	"github.com/HendryAvila/recordpilot/internal/records"
	"github.com/HendryAvila/recordpilot/internal/schema"
	"github.com/HendryAvila/recordpilot/internal/validate"
)

// Store is the record store the dispatcher drives.
type Store interface {
	Create(ctx context.Context, table string, data map[string]any) (int64, error)
	Get(ctx context.Context, table string, id int64) (records.Record, error)
	Update(ctx context.Context, table string, id int64, data map[string]any) error
	Delete(ctx context.Context, table string, id int64) error
	List(ctx context.Context, table string, filters map[string]any, limit int) ([]records.Record, error)
	Count(ctx context.Context, table string) (int, error)
	Candidates(ctx context.Context, table string) ([]fuzzy.Candidate, error)
}

// Dispatcher validates and executes record operations.
type Dispatcher struct {
	store Store
	log   *logging.Logger
}

// New creates a Dispatcher. A nil logger discards output.
func New(store Store, log *logging.Logger) *Dispatcher {
	if log == nil {
		log = logging.Nop()
	}
	return &Dispatcher{store: store, log: log}
}

// ─── Mutations ───────────────────────────────────────────────────────────────

// Create inserts a record after the empty-name gate and field validation.
func (d *Dispatcher) Create(ctx context.Context, table string, data map[string]any) Outcome {
	return d.create(ctx, table, data, false)
}

// CreateAllowingEmptyName inserts a record whose blank name has already been
// confirmed. Field validation still applies.
func (d *Dispatcher) CreateAllowingEmptyName(ctx context.Context, table string, data map[string]any) Outcome {
	return d.create(ctx, table, data, true)
}

func (d *Dispatcher) create(ctx context.Context, table string, data map[string]any, allowEmptyName bool) Outcome {
	t, out, ok := d.gate(table, data)
	if !ok {
		return out
	}

	if !allowEmptyName && t.HasName() && blankName(data) {
		return needs(EmptyNamePending{TableName: table, Data: data})
	}
	if f := validate.FirstInvalid(table, data); f != nil {
		return needs(FieldCorrectionPending{
			TableName:      table,
			Field:          f.Field,
			UserValue:      f.UserValue,
			Suggested:      f.Suggested,
			Similarity:     f.Similarity,
			Data:           data,
			AllowEmptyName: allowEmptyName,
		})
	}

	id, err := d.store.Create(ctx, table, validate.Canonicalize(table, data))
	if err != nil {
		return d.storeError("create", table, 0, err)
	}
	d.log.Info("record created", "table", table, "id", id)

	msg := fmt.Sprintf("Successfully created %s record with ID %d", table, id)
	if allowEmptyName && blankName(data) {
		msg += " (empty name)"
	}
	return success(msg, map[string]any{"record_id": id})
}

// Update overwrites fields of an existing record after field validation.
func (d *Dispatcher) Update(ctx context.Context, table string, id int64, data map[string]any) Outcome {
	if _, out, ok := d.gate(table, data); !ok {
		return out
	}
	if id <= 0 {
		return failure(InputError, fmt.Sprintf("Invalid record ID: %d. Record IDs are positive integers.", id))
	}
	if _, err := d.store.Get(ctx, table, id); err != nil {
		return d.storeError("update", table, id, err)
	}

	if f := validate.FirstInvalid(table, data); f != nil {
		return needs(FieldCorrectionPending{
			TableName:  table,
			Field:      f.Field,
			UserValue:  f.UserValue,
			Suggested:  f.Suggested,
			Similarity: f.Similarity,
			Data:       data,
			RecordID:   id,
		})
	}

	if err := d.store.Update(ctx, table, id, validate.Canonicalize(table, data)); err != nil {
		return d.storeError("update", table, id, err)
	}
	d.log.Info("record updated", "table", table, "id", id, "fields", len(data))
	return success(fmt.Sprintf("Successfully updated %s record with ID %d", table, id), nil)
}

// Delete removes a record.
func (d *Dispatcher) Delete(ctx context.Context, table string, id int64) Outcome {
	if _, out, ok := d.gate(table, nil); !ok {
		return out
	}
	if id <= 0 {
		return failure(InputError, fmt.Sprintf("Invalid record ID: %d. Record IDs are positive integers.", id))
	}
	if err := d.store.Delete(ctx, table, id); err != nil {
		return d.storeError("delete", table, id, err)
	}
	d.log.Info("record deleted", "table", table, "id", id)
	return success(fmt.Sprintf("Successfully deleted %s record with ID %d", table, id), nil)
}

// ─── Queries ─────────────────────────────────────────────────────────────────

// Read fetches one record.
func (d *Dispatcher) Read(ctx context.Context, table string, id int64) Outcome {
	if _, out, ok := d.gate(table, nil); !ok {
		return out
	}
	if id <= 0 {
		return failure(InputError, fmt.Sprintf("Invalid record ID: %d. Record IDs are positive integers.", id))
	}
	rec, err := d.store.Get(ctx, table, id)
	if err != nil {
		return d.storeError("read", table, id, err)
	}
	return success(
		fmt.Sprintf("Successfully retrieved %s record with ID %d", table, id),
		map[string]any{"record": rec.Serialize()},
	)
}

// List returns records matching every filter by equality.
func (d *Dispatcher) List(ctx context.Context, table string, filters map[string]any, limit int) Outcome {
	if _, out, ok := d.gate(table, filters); !ok {
		return out
	}
	recs, err := d.store.List(ctx, table, filters, fuzzy.ClampLimit(limit))
	if err != nil {
		return d.storeError("list", table, 0, err)
	}
	return success(
		fmt.Sprintf("Retrieved %d %s records", len(recs), table),
		map[string]any{"records": serializeAll(recs), "count": len(recs)},
	)
}

// Search ranks a table's named records against query. When nothing clears
// minScore but the table has named records, up to five unfiltered
// suggestions are returned alongside the empty result.
func (d *Dispatcher) Search(ctx context.Context, table, query string, limit, minScore int) Outcome {
	if _, out, ok := d.gate(table, nil); !ok {
		return out
	}
	if strings.TrimSpace(query) == "" {
		return failure(InputError, "name_query is required")
	}

	candidates, err := d.store.Candidates(ctx, table)
	if err != nil {
		return d.storeError("search", table, 0, err)
	}
	matches := fuzzy.Search(query, candidates, limit, minScore)

	recs := make([]map[string]any, 0, len(matches))
	for _, m := range matches {
		rec, err := d.store.Get(ctx, table, m.ID)
		if err != nil {
			if errors.Is(err, records.ErrNotFound) {
				// deleted between listing and fetching
				continue
			}
			return d.storeError("search", table, m.ID, err)
		}
		ser := rec.Serialize()
		ser["similarity_score"] = m.Score
		recs = append(recs, ser)
	}

	var suggestions []map[string]any
	if len(recs) == 0 && len(candidates) > 0 {
		names := make([]string, 0, len(candidates))
		for _, c := range candidates {
			names = append(names, c.Name)
		}
		for _, s := range fuzzy.Extract(query, names, fuzzy.SuggestionCount) {
			suggestions = append(suggestions, map[string]any{"name": s.Name, "similarity": s.Score})
		}
	}

	data := map[string]any{"records": recs, "count": len(recs), "suggestions": nil}
	if len(suggestions) > 0 {
		data["suggestions"] = suggestions
	}
	return success(fmt.Sprintf("Found %d %s records matching '%s'", len(recs), table, query), data)
}

// Stats counts records per table.
func (d *Dispatcher) Stats(ctx context.Context) Outcome {
	names := schema.TableNames()
	stats := make(map[string]int, len(names))
	total := 0
	for _, name := range names {
		n, err := d.store.Count(ctx, name)
		if err != nil {
			return d.storeError("stats", name, 0, err)
		}
		stats[name] = n
		total += n
	}
	return success(
		fmt.Sprintf("Database contains %d total records across %d tables", total, len(names)),
		map[string]any{"stats": stats, "total_records": total},
	)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// gate rejects unknown tables and unknown fields.
func (d *Dispatcher) gate(table string, data map[string]any) (schema.Table, Outcome, bool) {
	t, err := schema.Lookup(table)
	if err != nil {
		return schema.Table{}, failure(InputError, fmt.Sprintf(
			"Invalid table name: %s. Valid tables: %s", table, strings.Join(schema.TableNames(), ", "),
		)), false
	}
	if err := schema.CheckFields(table, data); err != nil {
		return t, failure(InputError, "Invalid fields: "+err.Error()), false
	}
	return t, Outcome{}, true
}

func (d *Dispatcher) storeError(op, table string, id int64, err error) Outcome {
	switch {
	case errors.Is(err, records.ErrNotFound):
		return failure(NotFound, fmt.Sprintf("No %s record found with ID %d", table, id))
	case errors.Is(err, records.ErrInvalidValue),
		errors.Is(err, schema.ErrUnknownField),
		errors.Is(err, schema.ErrUnknownTable):
		return failure(InputError, fmt.Sprintf("Failed to %s record: %v", op, err))
	}
	d.log.Error("store operation failed", "op", op, "table", table, "id", id, "error", err)
	return failure(StoreFailure, fmt.Sprintf("Failed to %s record: %v", op, err))
}

func blankName(data map[string]any) bool {
	v, ok := data[schema.NameField]
	if !ok || v == nil {
		return true
	}
	return strings.TrimSpace(validate.Stringify(v)) == ""
}

func serializeAll(recs []records.Record) []map[string]any {
	out := make([]map[string]any, len(recs))
	for i, r := range recs {
		out[i] = r.Serialize()
	}
	return out
}
