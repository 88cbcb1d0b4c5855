// Package dataset holds the in-memory table every check and fix reads
// through. A Dataset is an immutable view; successors are produced by
// SelectRows, DropRows, AppendRows and Editor.Commit, and share every column
// they did not change.
package dataset

import (
	"fmt"
	"sort"
	"strings"
)

// Dataset is a rectangular table of named columns.
type Dataset struct {
	name  string
	cols  []*Column
	index map[string]int
	rows  int
}

// New assembles a dataset. Every column must have the same length and a
// unique, non-empty name.
func New(name string, cols ...*Column) (*Dataset, error) {
	d := &Dataset{name: name, index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if c == nil {
			return nil, &ShapeError{Op: "new dataset", Reason: fmt.Sprintf("column %d is nil", i)}
		}
		if strings.TrimSpace(c.name) == "" {
			return nil, &ShapeError{Op: "new dataset", Reason: fmt.Sprintf("column %d has an empty name", i)}
		}
		if _, dup := d.index[c.name]; dup {
			return nil, &ShapeError{Op: "new dataset", Column: c.name, Reason: "duplicate column name"}
		}
		if i == 0 {
			d.rows = c.Len()
		} else if c.Len() != d.rows {
			return nil, &ShapeError{Op: "new dataset", Column: c.name,
				Reason: fmt.Sprintf("has %d rows, expected %d", c.Len(), d.rows)}
		}
		d.index[c.name] = i
		d.cols = append(d.cols, c)
	}
	return d, nil
}

// FromRecords builds a dataset from row-major records, inferring each
// column's kind.
func FromRecords(name string, header []string, records [][]any) (*Dataset, error) {
	cols := make([][]any, len(header))
	for i := range cols {
		cols[i] = make([]any, len(records))
	}
	for r, rec := range records {
		if len(rec) != len(header) {
			return nil, &ShapeError{Op: "from records",
				Reason: fmt.Sprintf("row %d has %d fields, header has %d", r, len(rec), len(header))}
		}
		for j, v := range rec {
			cols[j][r] = v
		}
	}
	out := make([]*Column, len(header))
	for j, h := range header {
		out[j] = &Column{name: h, kind: InferKind(cols[j]), values: cols[j]}
	}
	return New(name, out...)
}

func (d *Dataset) Name() string { return d.name }
func (d *Dataset) Rows() int    { return d.rows }
func (d *Dataset) Width() int   { return len(d.cols) }

// WithName returns a handle over the same columns under another name.
func (d *Dataset) WithName(name string) *Dataset {
	cp := *d
	cp.name = name
	return &cp
}

// Columns returns the columns in order. The slice is a copy.
func (d *Dataset) Columns() []*Column { return append([]*Column(nil), d.cols...) }

// Names returns column names in order.
func (d *Dataset) Names() []string {
	out := make([]string, len(d.cols))
	for i, c := range d.cols {
		out[i] = c.name
	}
	return out
}

// Column looks a column up by name.
func (d *Dataset) Column(name string) (*Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.cols[i], true
}

// Lookup resolves names to columns, failing on the first unknown name. An
// empty list resolves to every column.
func (d *Dataset) Lookup(op string, names []string) ([]*Column, error) {
	if len(names) == 0 {
		return d.Columns(), nil
	}
	out := make([]*Column, 0, len(names))
	for _, n := range names {
		c, ok := d.Column(n)
		if !ok {
			return nil, unknownColumn(op, n)
		}
		out = append(out, c)
	}
	return out, nil
}

// ColumnsOfKind returns the columns with one of the given kinds.
func (d *Dataset) ColumnsOfKind(kinds ...Kind) []*Column {
	var out []*Column
	for _, c := range d.cols {
		for _, k := range kinds {
			if c.kind == k {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// NumericColumns is ColumnsOfKind(Numeric).
func (d *Dataset) NumericColumns() []*Column { return d.ColumnsOfKind(Numeric) }

// Row returns the values of row i in column order.
func (d *Dataset) Row(i int) []any {
	out := make([]any, len(d.cols))
	for j, c := range d.cols {
		out[j] = c.values[i]
	}
	return out
}

// SelectRows returns a dataset holding the given rows in the given order.
// Rows may repeat.
func (d *Dataset) SelectRows(rows []int) *Dataset {
	cols := make([]*Column, len(d.cols))
	for j, c := range d.cols {
		cols[j] = c.pick(rows)
	}
	return &Dataset{name: d.name, cols: cols, index: d.index, rows: len(rows)}
}

// DropRows returns a dataset without the given rows, preserving order.
func (d *Dataset) DropRows(rows []int) *Dataset {
	drop := make(map[int]bool, len(rows))
	for _, r := range rows {
		drop[r] = true
	}
	keep := make([]int, 0, d.rows)
	for i := 0; i < d.rows; i++ {
		if !drop[i] {
			keep = append(keep, i)
		}
	}
	return d.SelectRows(keep)
}

// AppendRows returns a dataset with extra rows appended. Each row must carry
// one value per column.
func (d *Dataset) AppendRows(rows [][]any) (*Dataset, error) {
	cols := make([]*Column, len(d.cols))
	for j, c := range d.cols {
		vals := make([]any, d.rows, d.rows+len(rows))
		copy(vals, c.values)
		cols[j] = &Column{name: c.name, kind: c.kind, values: vals}
	}
	for r, row := range rows {
		if len(row) != len(d.cols) {
			return nil, &ShapeError{Op: "append rows",
				Reason: fmt.Sprintf("row %d has %d fields, dataset has %d columns", r, len(row), len(d.cols))}
		}
		for j, v := range row {
			cols[j].values = append(cols[j].values, v)
		}
	}
	return &Dataset{name: d.name, cols: cols, index: d.index, rows: d.rows + len(rows)}, nil
}

// SortedRows returns a sorted, de-duplicated copy of rows.
func SortedRows(rows []int) []int {
	if len(rows) == 0 {
		return nil
	}
	seen := make(map[int]bool, len(rows))
	out := make([]int, 0, len(rows))
	for _, r := range rows {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	sort.Ints(out)
	return out
}
