package dataset

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cast"
)

// Column is a named, typed sequence of nullable values. Columns held by a
// Dataset are never modified; edits go through an Editor, which works on a
// private clone.
type Column struct {
	name   string
	kind   Kind
	values []any

	mu    sync.Mutex
	stats *Stats
}

// NewColumn builds a column of the given kind. The values slice is copied.
func NewColumn(name string, kind Kind, values []any) *Column {
	return &Column{name: name, kind: kind, values: append([]any(nil), values...)}
}

// InferColumn builds a column whose kind is inferred from its values.
func InferColumn(name string, values []any) *Column {
	return NewColumn(name, InferKind(values), values)
}

// FloatColumn builds a numeric column from a float slice; NaN entries are nulls.
func FloatColumn(name string, vals []float64) *Column {
	values := make([]any, len(vals))
	for i, v := range vals {
		values[i] = v
	}
	return &Column{name: name, kind: Numeric, values: values}
}

// StringColumn builds a column of string values with an inferred kind.
func StringColumn(name string, vals []string) *Column {
	values := make([]any, len(vals))
	for i, v := range vals {
		values[i] = v
	}
	return InferColumn(name, values)
}

func (c *Column) Name() string { return c.name }
func (c *Column) Kind() Kind   { return c.kind }
func (c *Column) Len() int     { return len(c.values) }

// Value returns the raw value at row i.
func (c *Column) Value(i int) any { return c.values[i] }

// Values returns a copy of the column values.
func (c *Column) Values() []any { return append([]any(nil), c.values...) }

// IsNull reports whether row i is null.
func (c *Column) IsNull(i int) bool { return IsNull(c.values[i]) }

// NullCount counts null entries.
func (c *Column) NullCount() int {
	n := 0
	for _, v := range c.values {
		if IsNull(v) {
			n++
		}
	}
	return n
}

// Float coerces row i to a float64. The second result is false for nulls
// and values that are not numeric.
func (c *Column) Float(i int) (float64, bool) {
	v := c.values[i]
	if IsNull(v) {
		return 0, false
	}
	if _, isBool := v.(bool); isBool {
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false
	}
	return f, true
}

// String renders row i as text. The second result is false for nulls.
func (c *Column) String(i int) (string, bool) {
	v := c.values[i]
	if IsNull(v) {
		return "", false
	}
	if t, ok := v.(time.Time); ok {
		return t.Format(time.RFC3339), true
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprint(v), true
	}
	return s, true
}

// Floats returns the non-null numeric values of the column together with
// the row index each one came from.
func (c *Column) Floats() ([]float64, []int) {
	vals := make([]float64, 0, len(c.values))
	rows := make([]int, 0, len(c.values))
	for i := range c.values {
		if f, ok := c.Float(i); ok {
			vals = append(vals, f)
			rows = append(rows, i)
		}
	}
	return vals, rows
}

// Stats returns the column statistics, computing them on first use.
func (c *Column) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stats == nil {
		s := computeStats(c)
		c.stats = &s
	}
	return *c.stats
}

// Rename returns a column sharing this column's values under a new name.
func (c *Column) Rename(name string) *Column {
	return &Column{name: name, kind: c.kind, values: c.values}
}

func (c *Column) clone() *Column {
	return &Column{name: c.name, kind: c.kind, values: append([]any(nil), c.values...)}
}

func (c *Column) set(i int, v any) {
	c.values[i] = v
	c.mu.Lock()
	c.stats = nil
	c.mu.Unlock()
}

func (c *Column) pick(rows []int) *Column {
	values := make([]any, len(rows))
	for j, i := range rows {
		values[j] = c.values[i]
	}
	return &Column{name: c.name, kind: c.kind, values: values}
}
