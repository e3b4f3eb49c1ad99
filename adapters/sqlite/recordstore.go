package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/artpar/restmodel/core/fault"
	"github.com/artpar/restmodel/core/schema"
	"github.com/artpar/restmodel/ports"
)

// RecordStore implements ports.RecordStore with one table per resource.
// Rows are kept in rowid order, which is creation order.
type RecordStore struct {
	db *DB
	mu sync.RWMutex

	tables map[string]*table
}

// table is the derived SQL shape of one schema.
type table struct {
	name    string
	columns []column
}

type column struct {
	name string
	typ  schema.Type
}

// NewRecordStore creates a record store on an open database.
func NewRecordStore(db *DB) *RecordStore {
	return &RecordStore{
		db:     db,
		tables: make(map[string]*table),
	}
}

// Migrate creates the resource table, adding columns for attributes that
// an existing table lacks.
func (s *RecordStore) Migrate(ctx context.Context, sch *schema.Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tables[sch.Name()]; exists {
		return fmt.Errorf("resource %q already migrated", sch.Name())
	}

	t := &table{name: sch.Name()}
	for _, name := range sch.PersistedNames() {
		a, _ := sch.Attribute(name)
		t.columns = append(t.columns, column{name: a.Name, typ: a.Type})
	}

	if _, err := s.db.ExecContext(ctx, buildCreateTableSQL(t)); err != nil {
		return fmt.Errorf("create table %s: %w", t.name, err)
	}

	existing, err := s.existingColumns(ctx, t.name)
	if err != nil {
		return err
	}
	for _, c := range t.columns {
		if existing[c.name] {
			continue
		}
		alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", quote(t.name), quote(c.name), sqlType(c.typ))
		if _, err := s.db.ExecContext(ctx, alter); err != nil {
			return fmt.Errorf("add column %s.%s: %w", t.name, c.name, err)
		}
	}

	s.tables[t.name] = t
	return nil
}

func (s *RecordStore) existingColumns(ctx context.Context, name string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quote(name)))
	if err != nil {
		return nil, fmt.Errorf("inspect table %s: %w", name, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			colName    string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &defaultVal, &pk); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols[colName] = true
	}
	return cols, rows.Err()
}

func (s *RecordStore) table(resource string) (*table, error) {
	s.mu.RLock()
	t, ok := s.tables[resource]
	s.mu.RUnlock()

	if !ok {
		return nil, fault.New(fault.KindUnknownResource, "resource %q not migrated", resource)
	}
	return t, nil
}

// Insert stores a new record.
func (s *RecordStore) Insert(ctx context.Context, resource string, rec ports.Record) error {
	t, err := s.table(resource)
	if err != nil {
		return err
	}

	columns := []string{quote(schema.IDField)}
	placeholders := []string{"?"}
	values := []any{rec.ID}

	for _, c := range t.columns {
		v, err := toDB(rec.Values[c.name], c.typ)
		if err != nil {
			return fmt.Errorf("encode %s: %w", c.name, err)
		}
		columns = append(columns, quote(c.name))
		placeholders = append(placeholders, "?")
		values = append(values, v)
	}

	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		quote(t.name),
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)

	if _, err := s.db.ExecContext(ctx, insertSQL, values...); err != nil {
		return fmt.Errorf("insert %s: %w", t.name, err)
	}
	return nil
}

// Fetch returns a record by id.
func (s *RecordStore) Fetch(ctx context.Context, resource string, id string) (ports.Record, error) {
	t, err := s.table(resource)
	if err != nil {
		return ports.Record{}, err
	}

	querySQL := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", t.selectList(), quote(t.name), quote(schema.IDField))
	row := s.db.QueryRowContext(ctx, querySQL, id)

	rec, err := t.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.Record{}, fault.New(fault.KindNotFound, "%s %q not found", resource, id)
	}
	return rec, err
}

// List returns matching records in creation order.
func (s *RecordStore) List(ctx context.Context, resource string, filter map[string]any) ([]ports.Record, error) {
	t, err := s.table(resource)
	if err != nil {
		return nil, err
	}

	// Sorted keys keep the generated SQL stable.
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var conditions []string
	var args []any
	for _, k := range keys {
		typ := schema.TypeString
		if k != schema.IDField {
			c, ok := t.column(k)
			if !ok {
				return nil, fault.New(fault.KindValidation, "cannot filter on %q", k).OnField(k)
			}
			typ = c.typ
		}

		v, err := toDB(filter[k], typ)
		if err != nil {
			return nil, fmt.Errorf("encode filter %s: %w", k, err)
		}
		if v == nil {
			conditions = append(conditions, quote(k)+" IS NULL")
			continue
		}
		conditions = append(conditions, quote(k)+" = ?")
		args = append(args, v)
	}

	querySQL := fmt.Sprintf("SELECT %s FROM %s", t.selectList(), quote(t.name))
	if len(conditions) > 0 {
		querySQL += " WHERE " + strings.Join(conditions, " AND ")
	}
	querySQL += " ORDER BY rowid ASC"

	rows, err := s.db.QueryContext(ctx, querySQL, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.name, err)
	}
	defer rows.Close()

	out := make([]ports.Record, 0)
	for rows.Next() {
		rec, err := t.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Replace overwrites an existing record.
func (s *RecordStore) Replace(ctx context.Context, resource string, rec ports.Record) error {
	t, err := s.table(resource)
	if err != nil {
		return err
	}
	if len(t.columns) == 0 {
		_, err := s.Fetch(ctx, resource, rec.ID)
		return err
	}

	var sets []string
	var values []any
	for _, c := range t.columns {
		v, err := toDB(rec.Values[c.name], c.typ)
		if err != nil {
			return fmt.Errorf("encode %s: %w", c.name, err)
		}
		sets = append(sets, quote(c.name)+" = ?")
		values = append(values, v)
	}
	values = append(values, rec.ID)

	updateSQL := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", quote(t.name), strings.Join(sets, ", "), quote(schema.IDField))
	result, err := s.db.ExecContext(ctx, updateSQL, values...)
	if err != nil {
		return fmt.Errorf("update %s: %w", t.name, err)
	}
	return expectRow(result, resource, rec.ID)
}

// Remove deletes a record.
func (s *RecordStore) Remove(ctx context.Context, resource string, id string) error {
	t, err := s.table(resource)
	if err != nil {
		return err
	}

	deleteSQL := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quote(t.name), quote(schema.IDField))
	result, err := s.db.ExecContext(ctx, deleteSQL, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", t.name, err)
	}
	return expectRow(result, resource, id)
}

// Close closes the database.
func (s *RecordStore) Close() error {
	return s.db.Close()
}

func expectRow(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fault.New(fault.KindNotFound, "%s %q not found", resource, id)
	}
	return nil
}

func (t *table) column(name string) (column, bool) {
	for _, c := range t.columns {
		if c.name == name {
			return c, true
		}
	}
	return column{}, false
}

func (t *table) selectList() string {
	cols := []string{quote(schema.IDField)}
	for _, c := range t.columns {
		cols = append(cols, quote(c.name))
	}
	return strings.Join(cols, ", ")
}

type scanner interface {
	Scan(dest ...any) error
}

func (t *table) scan(row scanner) (ports.Record, error) {
	raw := make([]any, len(t.columns)+1)
	dest := make([]any, len(raw))
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := row.Scan(dest...); err != nil {
		return ports.Record{}, err
	}

	rec := ports.Record{
		ID:     asString(raw[0]),
		Values: make(map[string]any, len(t.columns)),
	}
	for i, c := range t.columns {
		v, err := fromDB(raw[i+1], c.typ)
		if err != nil {
			return ports.Record{}, fmt.Errorf("decode %s.%s: %w", t.name, c.name, err)
		}
		rec.Values[c.name] = v
	}
	return rec, nil
}

func buildCreateTableSQL(t *table) string {
	defs := []string{quote(schema.IDField) + " TEXT PRIMARY KEY"}
	for _, c := range t.columns {
		defs = append(defs, quote(c.name)+" "+sqlType(c.typ))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", quote(t.name), strings.Join(defs, ",\n\t"))
}

// sqlType maps attribute types to column affinities. Dates are stored as
// RFC 3339 text so the driver never converts them on its own.
func sqlType(t schema.Type) string {
	switch t {
	case schema.TypeBoolean, schema.TypeInteger:
		return "INTEGER"
	case schema.TypeNumber:
		return "REAL"
	default:
		return "TEXT"
	}
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// toDB converts a canonical value to a database value.
func toDB(v any, t schema.Type) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch t {
	case schema.TypeBoolean:
		if b, ok := v.(bool); ok && b {
			return 1, nil
		}
		return 0, nil
	case schema.TypeDate:
		ts, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("date value is %T", v)
		}
		return ts.UTC().Format(time.RFC3339Nano), nil
	case schema.TypeJSON:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	default:
		return v, nil
	}
}

// fromDB converts a database value back to a canonical value.
func fromDB(v any, t schema.Type) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}

	switch t {
	case schema.TypeBoolean:
		switch n := v.(type) {
		case int64:
			return n != 0, nil
		case bool:
			return n, nil
		}
		return nil, fmt.Errorf("boolean column holds %T", v)
	case schema.TypeJSON:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("json column holds %T", v)
		}
		var out any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, err
		}
		return out, nil
	default:
		return t.Coerce(v)
	}
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return fmt.Sprint(v)
}

// Ensure interface compliance.
var _ ports.RecordStore = (*RecordStore)(nil)
