// Package records implements the relational record store behind the agent.
//
// Every table of the schema catalog is materialised as a SQLite table with an
// autoincrement id, one column per declared field and created/updated
// timestamps. Dates are stored as ISO-8601 text and lists as JSON arrays so
// the database stays readable with the sqlite3 CLI.
package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/HendryAvila/recordpilot/internal/fuzzy"
	"github.com/HendryAvila/recordpilot/internal/schema"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("record not found")

// ─── Types ───────────────────────────────────────────────────────────────────

// Record is one row keyed by column name. Dates decode to time.Time, lists
// to []any and booleans to bool.
type Record map[string]any

// ID returns the record id, or 0 when absent.
func (r Record) ID() int64 {
	id, _ := r["id"].(int64)
	return id
}

// Name returns the record name, or "" when absent.
func (r Record) Name() string {
	name, _ := r[schema.NameField].(string)
	return name
}

// Serialize returns a JSON-friendly copy with dates rendered as ISO-8601
// text and null lists as empty lists.
func (r Record) Serialize() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		switch x := v.(type) {
		case time.Time:
			out[k] = x.Format(DateLayout)
		default:
			out[k] = x
		}
	}
	return out
}

// DateRange bounds a date column. A zero bound is open.
type DateRange struct {
	From time.Time // inclusive
	To   time.Time // exclusive
}

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds record store configuration.
type Config struct {
	DataDir  string
	FileName string
}

// DefaultConfig returns the default configuration for the record store.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:  filepath.Join(home, ".recordpilot"),
		FileName: "records.db",
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the record store backed by SQLite.
type Store struct {
	db    *sqlx.DB
	cfg   Config
	hooks storeHooks
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type storeHooks struct {
	exec    func(ctx context.Context, db execer, query string, args ...any) (sql.Result, error)
	beginTx func(ctx context.Context, db *sqlx.DB) (*sqlx.Tx, error)
	commit  func(tx *sqlx.Tx) error
}

func (s *Store) execHook(ctx context.Context, db execer, query string, args ...any) (sql.Result, error) {
	if s.hooks.exec != nil {
		return s.hooks.exec(ctx, db, query, args...)
	}
	return db.ExecContext(ctx, query, args...)
}

func (s *Store) beginTxHook(ctx context.Context) (*sqlx.Tx, error) {
	if s.hooks.beginTx != nil {
		return s.hooks.beginTx(ctx, s.db)
	}
	return s.db.BeginTxx(ctx, nil)
}

func (s *Store) commitHook(tx *sqlx.Tx) error {
	if s.hooks.commit != nil {
		return s.hooks.commit(tx)
	}
	return tx.Commit()
}

// New creates a new Store with the given configuration.
// It creates the data directory if needed, opens SQLite with WAL mode,
// and creates any missing tables.
func New(cfg Config) (*Store, error) {
	if cfg.FileName == "" {
		cfg.FileName = DefaultConfig().FileName
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("records: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, cfg.FileName)
	raw, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("records: open database: %w", err)
	}
	db := sqlx.NewDb(raw, "sqlite")

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("records: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("records: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return filepath.Join(s.cfg.DataDir, s.cfg.FileName)
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	for _, t := range schema.Tables() {
		if _, err := s.db.Exec(createTableSQL(t)); err != nil {
			return fmt.Errorf("create %s: %w", t.Name, err)
		}
		if t.HasName() {
			idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_name ON %s (name)`, t.Name, quote(t.Name))
			if _, err := s.db.Exec(idx); err != nil {
				return fmt.Errorf("index %s: %w", t.Name, err)
			}
		}
	}
	return nil
}

func createTableSQL(t schema.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", quote(t.Name))
	b.WriteString("\tid INTEGER PRIMARY KEY AUTOINCREMENT,\n")
	for _, f := range t.Fields {
		fmt.Fprintf(&b, "\t%s %s,\n", quote(f.Name), columnType(f.Kind))
	}
	b.WriteString("\tcreated_at TEXT NOT NULL DEFAULT (datetime('now')),\n")
	b.WriteString("\tupdated_at TEXT NOT NULL DEFAULT (datetime('now'))\n")
	b.WriteString(")")
	return b.String()
}

func columnType(k schema.Kind) string {
	switch k {
	case schema.KindInt, schema.KindBool:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

// ─── CRUD ────────────────────────────────────────────────────────────────────

// Create inserts a record in a single transaction and returns its id.
// data is gated through the schema catalog and normalised per field kind.
func (s *Store) Create(ctx context.Context, table string, data map[string]any) (int64, error) {
	if err := schema.CheckFields(table, data); err != nil {
		return 0, err
	}
	enc, err := encodeFields(table, data)
	if err != nil {
		return 0, err
	}

	cols := sortedKeys(enc)
	var query string
	args := make([]any, 0, len(cols))
	if len(cols) == 0 {
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", quote(table))
	} else {
		quoted := make([]string, len(cols))
		for i, c := range cols {
			quoted[i] = quote(c)
			args = append(args, enc[c])
		}
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quote(table), strings.Join(quoted, ", "), placeholders(len(cols)))
	}

	tx, err := s.beginTxHook(ctx)
	if err != nil {
		return 0, fmt.Errorf("records: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := s.execHook(ctx, tx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("records: insert %s: %w", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("records: insert %s: %w", table, err)
	}
	if err := s.commitHook(tx); err != nil {
		return 0, fmt.Errorf("records: commit: %w", err)
	}
	return id, nil
}

// Get returns one record by id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, table string, id int64) (Record, error) {
	if _, err := schema.Lookup(table); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryxContext(ctx, fmt.Sprintf("SELECT * FROM %s WHERE id = ?", quote(table)), id)
	if err != nil {
		return nil, fmt.Errorf("records: get %s/%d: %w", table, id, err)
	}
	recs, err := scanRecords(table, rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: %s/%d", ErrNotFound, table, id)
	}
	return recs[0], nil
}

// Update overwrites the given fields of a record in a single transaction.
// Returns ErrNotFound when no record has the id.
func (s *Store) Update(ctx context.Context, table string, id int64, data map[string]any) error {
	if err := schema.CheckFields(table, data); err != nil {
		return err
	}
	enc, err := encodeFields(table, data)
	if err != nil {
		return err
	}

	cols := sortedKeys(enc)
	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+1)
	for _, c := range cols {
		sets = append(sets, quote(c)+" = ?")
		args = append(args, enc[c])
	}
	sets = append(sets, "updated_at = datetime('now')")
	args = append(args, id)

	tx, err := s.beginTxHook(ctx)
	if err != nil {
		return fmt.Errorf("records: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := s.execHook(ctx, tx,
		fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", quote(table), strings.Join(sets, ", ")),
		args...,
	)
	if err != nil {
		return fmt.Errorf("records: update %s/%d: %w", table, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s/%d", ErrNotFound, table, id)
	}
	if err := s.commitHook(tx); err != nil {
		return fmt.Errorf("records: commit: %w", err)
	}
	return nil
}

// Delete removes a record. Returns ErrNotFound when no record has the id.
func (s *Store) Delete(ctx context.Context, table string, id int64) error {
	if _, err := schema.Lookup(table); err != nil {
		return err
	}
	res, err := s.execHook(ctx, s.db, fmt.Sprintf("DELETE FROM %s WHERE id = ?", quote(table)), id)
	if err != nil {
		return fmt.Errorf("records: delete %s/%d: %w", table, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s/%d", ErrNotFound, table, id)
	}
	return nil
}

// List returns up to limit records matching every filter by equality,
// ordered by id. Filter values are normalised like writes; a date filter
// that does not parse is ignored. limit is clamped to [1, 100].
func (s *Store) List(ctx context.Context, table string, filters map[string]any, limit int) ([]Record, error) {
	if err := schema.CheckFields(table, filters); err != nil {
		return nil, err
	}
	limit = fuzzy.ClampLimit(limit)

	var where []string
	var args []any
	for _, k := range sortedKeys(filters) {
		kind := schema.KindOf(table, k)
		enc, err := encodeValue(kind, filters[k])
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", k, err)
		}
		switch {
		case enc == nil && kind == schema.KindDate && filters[k] != nil:
			continue
		case enc == nil:
			where = append(where, quote(k)+" IS NULL")
		default:
			where = append(where, quote(k)+" = ?")
			args = append(args, enc)
		}
	}

	query := "SELECT * FROM " + quote(table)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("records: list %s: %w", table, err)
	}
	return scanRecords(table, rows)
}

// Count returns the number of records in a table.
func (s *Store) Count(ctx context.Context, table string) (int, error) {
	if _, err := schema.Lookup(table); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+quote(table)); err != nil {
		return 0, fmt.Errorf("records: count %s: %w", table, err)
	}
	return n, nil
}

// Candidates returns (id, name) for every record of a table in id order.
// Null names come back as "".
func (s *Store) Candidates(ctx context.Context, table string) ([]fuzzy.Candidate, error) {
	t, err := schema.Lookup(table)
	if err != nil {
		return nil, err
	}
	if !t.HasName() {
		return nil, nil
	}
	var rows []struct {
		ID   int64          `db:"id"`
		Name sql.NullString `db:"name"`
	}
	if err := s.db.SelectContext(ctx, &rows, "SELECT id, name FROM "+quote(table)+" ORDER BY id"); err != nil {
		return nil, fmt.Errorf("records: names %s: %w", table, err)
	}
	out := make([]fuzzy.Candidate, len(rows))
	for i, r := range rows {
		out[i] = fuzzy.Candidate{ID: r.ID, Name: r.Name.String}
	}
	return out, nil
}

// Dated returns records whose date field falls within r, ordered by that
// field. Records with a null date are never returned.
func (s *Store) Dated(ctx context.Context, table, field string, r DateRange) ([]Record, error) {
	if schema.KindOf(table, field) != schema.KindDate {
		return nil, fmt.Errorf("%w: %s.%s is not a date", schema.ErrUnknownField, table, field)
	}
	where := []string{quote(field) + " IS NOT NULL"}
	var args []any
	if !r.From.IsZero() {
		where = append(where, quote(field)+" >= ?")
		args = append(args, r.From.Format(DateLayout))
	}
	if !r.To.IsZero() {
		where = append(where, quote(field)+" < ?")
		args = append(args, r.To.Format(DateLayout))
	}
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s ORDER BY %s, id",
		quote(table), strings.Join(where, " AND "), quote(field))

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("records: dated %s.%s: %w", table, field, err)
	}
	return scanRecords(table, rows)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func scanRecords(table string, rows *sqlx.Rows) ([]Record, error) {
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		raw := map[string]any{}
		if err := rows.MapScan(raw); err != nil {
			return nil, fmt.Errorf("records: scan %s: %w", table, err)
		}
		rec := make(Record, len(raw))
		for col, v := range raw {
			rec[col] = decodeValue(schema.KindOf(table, col), v)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("records: scan %s: %w", table, err)
	}
	return out, nil
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
