package dataset

import "fmt"

// Editor stages changes against a dataset. A column is cloned the first
// time a cell in it is written; untouched columns are shared with the base
// dataset.
type Editor struct {
	base    *Dataset
	cols    []*Column
	index   map[string]int
	touched map[int]bool
}

// Edit starts a copy-on-write edit session.
func (d *Dataset) Edit() *Editor {
	index := make(map[string]int, len(d.index))
	for k, v := range d.index {
		index[k] = v
	}
	return &Editor{
		base:    d,
		cols:    append([]*Column(nil), d.cols...),
		index:   index,
		touched: map[int]bool{},
	}
}

// Column returns the current version of a column.
func (e *Editor) Column(name string) (*Column, bool) {
	i, ok := e.index[name]
	if !ok {
		return nil, false
	}
	return e.cols[i], true
}

// Set writes one cell.
func (e *Editor) Set(name string, row int, v any) error {
	i, ok := e.index[name]
	if !ok {
		return unknownColumn("edit", name)
	}
	if row < 0 || row >= e.base.rows {
		return &ShapeError{Op: "edit", Column: name, Reason: fmt.Sprintf("row %d out of range", row)}
	}
	if !e.touched[i] {
		e.cols[i] = e.cols[i].clone()
		e.touched[i] = true
	}
	e.cols[i].set(row, v)
	return nil
}

// Replace swaps a column for another of the same name and length.
func (e *Editor) Replace(c *Column) error {
	i, ok := e.index[c.name]
	if !ok {
		return unknownColumn("replace column", c.name)
	}
	if c.Len() != e.base.rows {
		return &ShapeError{Op: "replace column", Column: c.name,
			Reason: fmt.Sprintf("has %d rows, expected %d", c.Len(), e.base.rows)}
	}
	e.cols[i] = c
	delete(e.touched, i)
	return nil
}

// Add appends a new column.
func (e *Editor) Add(c *Column) error {
	if _, dup := e.index[c.name]; dup {
		return &ShapeError{Op: "add column", Column: c.name, Reason: "duplicate column name"}
	}
	if c.Len() != e.base.rows {
		return &ShapeError{Op: "add column", Column: c.name,
			Reason: fmt.Sprintf("has %d rows, expected %d", c.Len(), e.base.rows)}
	}
	e.index[c.name] = len(e.cols)
	e.cols = append(e.cols, c)
	return nil
}

// Commit materialises the successor dataset. The editor must not be used
// afterwards.
func (e *Editor) Commit() *Dataset {
	return &Dataset{name: e.base.name, cols: e.cols, index: e.index, rows: e.base.rows}
}
