// Package table holds the column-ordered rows produced by the format readers
// and consumed by the merge step, the SQLite store and the previews.
package table

import (
	"fmt"
	"sort"
	"strconv"
)

// Row maps column names to values. Values are nil, string, int64, float64 or bool.
type Row map[string]any

// Field implements filter.Record. Nil values count as absent.
func (r Row) Field(name string) (string, bool) {
	v, ok := r[name]
	if !ok || v == nil {
		return "", false
	}
	return FormatValue(v), true
}

// Table is an ordered set of columns and rows.
type Table struct {
	Columns []string
	Rows    []Row
	index   map[string]struct{}
}

func New(columns ...string) *Table {
	t := &Table{}
	for _, c := range columns {
		t.AddColumn(c)
	}
	return t
}

// AddColumn appends a column unless it is already known.
func (t *Table) AddColumn(name string) {
	if t.index == nil {
		t.index = make(map[string]struct{}, len(t.Columns))
		for _, c := range t.Columns {
			t.index[c] = struct{}{}
		}
	}
	if _, ok := t.index[name]; ok {
		return
	}
	t.index[name] = struct{}{}
	t.Columns = append(t.Columns, name)
}

func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Append adds a row. Columns the table does not know yet are added in
// sorted order.
func (t *Table) Append(row Row) {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		t.AddColumn(k)
	}
	t.Rows = append(t.Rows, row)
}

func (t *Table) Len() int {
	return len(t.Rows)
}

// SetAll stores value in column for every row.
func (t *Table) SetAll(column string, value any) {
	t.AddColumn(column)
	for _, row := range t.Rows {
		row[column] = value
	}
}

// Project returns a table limited to the given columns that exist, in the
// given order. An empty list keeps every column.
func (t *Table) Project(columns []string) *Table {
	if len(columns) == 0 {
		return t
	}
	out := New()
	for _, c := range columns {
		if t.HasColumn(c) {
			out.AddColumn(c)
		}
	}
	out.Rows = t.Rows
	return out
}

// Head returns a table with at most n rows. n <= 0 keeps every row.
func (t *Table) Head(n int) *Table {
	if n <= 0 || n >= len(t.Rows) {
		return t
	}
	return &Table{Columns: t.Columns, Rows: t.Rows[:n]}
}

// FormatValue renders a cell value as text.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}

// ParseValue converts text into the narrowest of int64, float64 or string.
func ParseValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
