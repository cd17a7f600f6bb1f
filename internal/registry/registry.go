package registry

import (
	"errors"
	"fmt"
	"sort"
)

// ErrAlreadySet reports an attempt to overwrite a cell holding a different value.
var ErrAlreadySet = errors.New("registry cell already set")

// Row is one tracked item. A column absent from Values is null.
type Row struct {
	Key    string
	Values map[string]string
}

// Field implements filter.Record.
func (r Row) Field(name string) (string, bool) {
	v, ok := r.Values[name]
	return v, ok
}

func (r Row) clone() Row {
	values := make(map[string]string, len(r.Values))
	for k, v := range r.Values {
		values[k] = v
	}
	return Row{Key: r.Key, Values: values}
}

// holds reports whether value is the row key or any of its cells.
func (r Row) holds(value string) bool {
	if r.Key == value {
		return true
	}
	for _, v := range r.Values {
		if v == value {
			return true
		}
	}
	return false
}

// Link ties a produced value to the items it was produced from.
type Link struct {
	Sources []string
	Value   string
}

// Registry is the in-memory table chaining stage outputs within one run.
// It is not safe for concurrent use; only the coordinator writes to it.
type Registry struct {
	rows    []Row
	index   map[string]int
	columns []string
}

func New() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Append adds rows. A row whose key already exists is merged column by
// column; cells holding a different value are left untouched and reported.
func (r *Registry) Append(rows ...Row) error {
	var errs []error
	for _, row := range rows {
		if row.Key == "" {
			errs = append(errs, errors.New("registry row without key"))
			continue
		}
		pos, ok := r.index[row.Key]
		if !ok {
			r.index[row.Key] = len(r.rows)
			r.rows = append(r.rows, Row{Key: row.Key, Values: make(map[string]string, len(row.Values))})
			pos = len(r.rows) - 1
		}
		for _, column := range sortedKeys(row.Values) {
			if err := r.set(pos, column, row.Values[column], false); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Extend writes every link's value into column on each row that holds one of
// the link's sources, as key or cell. Links matching no row create a row
// keyed by their first source. Links with an empty value are nulls and are
// skipped. It returns the keys of the touched rows in link order.
func (r *Registry) Extend(column string, links []Link, overwrite bool) ([]string, error) {
	var errs []error
	var touched []string
	seen := make(map[string]struct{})
	touch := func(pos int) {
		key := r.rows[pos].Key
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			touched = append(touched, key)
		}
	}

	r.addColumn(column)
	for _, link := range links {
		if link.Value == "" || len(link.Sources) == 0 {
			continue
		}
		matched := r.match(link.Sources)
		if len(matched) == 0 {
			key := link.Sources[0]
			r.index[key] = len(r.rows)
			r.rows = append(r.rows, Row{Key: key, Values: map[string]string{}})
			matched = []int{len(r.rows) - 1}
		}
		for _, pos := range matched {
			if err := r.set(pos, column, link.Value, overwrite); err != nil {
				errs = append(errs, err)
				continue
			}
			touch(pos)
		}
	}
	return touched, errors.Join(errs...)
}

func (r *Registry) match(sources []string) []int {
	var positions []int
	for pos, row := range r.rows {
		for _, source := range sources {
			if source != "" && row.holds(source) {
				positions = append(positions, pos)
				break
			}
		}
	}
	return positions
}

func (r *Registry) set(pos int, column, value string, overwrite bool) error {
	if value == "" {
		return nil
	}
	row := r.rows[pos]
	if current, ok := row.Values[column]; ok && current != value && !overwrite {
		return fmt.Errorf("%w: row %q column %q holds %q, refusing %q", ErrAlreadySet, row.Key, column, current, value)
	}
	row.Values[column] = value
	r.addColumn(column)
	return nil
}

func (r *Registry) addColumn(column string) {
	for _, c := range r.columns {
		if c == column {
			return
		}
	}
	r.columns = append(r.columns, column)
}

// ColumnValues returns the distinct non-null values of the given columns in
// first-seen order, scanning row by row.
func (r *Registry) ColumnValues(columns ...string) []string {
	var values []string
	seen := make(map[string]struct{})
	for _, row := range r.rows {
		for _, column := range columns {
			v, ok := row.Values[column]
			if !ok || v == "" {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			values = append(values, v)
		}
	}
	return values
}

// Rows returns copies of the rows with the given keys, or of every row when
// no key is given. Unknown keys are ignored.
func (r *Registry) Rows(keys ...string) []Row {
	if len(keys) == 0 {
		out := make([]Row, len(r.rows))
		for i, row := range r.rows {
			out[i] = row.clone()
		}
		return out
	}
	out := make([]Row, 0, len(keys))
	for _, key := range keys {
		if pos, ok := r.index[key]; ok {
			out = append(out, r.rows[pos].clone())
		}
	}
	return out
}

// Columns lists the known columns in the order they first appeared.
func (r *Registry) Columns() []string {
	return append([]string(nil), r.columns...)
}

func (r *Registry) Len() int {
	return len(r.rows)
}

// Clear drops every row and column.
func (r *Registry) Clear() {
	r.rows = nil
	r.columns = nil
	r.index = make(map[string]int)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
