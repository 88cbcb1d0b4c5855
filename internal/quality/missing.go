package quality

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"

	"github.com/KaramelBytes/datacheck-cli/internal/dataset"
)

// MissingOptions configures CheckMissingValues.
type MissingOptions struct {
	// Threshold flags a column when its missing ratio exceeds it. The
	// default 0 reports any missing value.
	Threshold float64
	// Columns restricts the check; empty means every column.
	Columns []string
}

// ColumnMissing is the missing-value tally of one column.
type ColumnMissing struct {
	Column  string
	Missing int
	Ratio   float64
}

// MissingDetails is the payload of a missing-values CheckResult.
type MissingDetails struct {
	Columns      []ColumnMissing
	TotalMissing int
	TotalCells   int
	CellRatio    float64
	WorstColumn  string
}

// CheckMissingValues counts null entries per column. The summary is the
// worst column's missing ratio.
func CheckMissingValues(ds *dataset.Dataset, opt MissingOptions) (CheckResult, error) {
	if opt.Threshold < 0 || opt.Threshold >= 1 || math.IsNaN(opt.Threshold) {
		return CheckResult{}, configErr("threshold", "missing threshold must be in [0,1), got %v", opt.Threshold)
	}
	cols, err := ds.Lookup("check missing values", opt.Columns)
	if err != nil {
		return CheckResult{}, err
	}
	rows := ds.Rows()
	det := &MissingDetails{}
	res := CheckResult{Check: MissingValuesCheck, Config: opt, Rows: rows, SummaryLabel: "missing_ratio", Details: det}

	worst := -1.0
	for _, c := range cols {
		var nulls []int
		for i := 0; i < c.Len(); i++ {
			if c.IsNull(i) {
				nulls = append(nulls, i)
			}
		}
		r := ratio(len(nulls), rows)
		det.Columns = append(det.Columns, ColumnMissing{Column: c.Name(), Missing: len(nulls), Ratio: r})
		det.TotalMissing += len(nulls)
		det.TotalCells += rows
		if r > worst {
			worst = r
			det.WorstColumn = c.Name()
		}
		if len(nulls) > 0 && r > opt.Threshold {
			res.Issues = append(res.Issues, Issue{
				Kind:        IssueMissing,
				Column:      c.Name(),
				Rows:        nulls,
				Severity:    r,
				Description: fmt.Sprintf("column %q has %d missing values (%.1f%%)", c.Name(), len(nulls), r*100),
			})
		}
	}
	det.CellRatio = ratio(det.TotalMissing, det.TotalCells)
	if worst > 0 {
		res.Summary = worst
	}
	if rows == 0 {
		res.note("dataset has no rows")
	}
	res.classify()
	return res, nil
}

// MissingStrategy selects how FixMissingValues fills null cells.
type MissingStrategy int

const (
	FillAuto MissingStrategy = iota
	FillMean
	FillMedian
	FillMode
	FillConstant
)

var missingStrategyNames = map[MissingStrategy]string{
	FillAuto: "auto", FillMean: "mean", FillMedian: "median", FillMode: "mode", FillConstant: "constant",
}

func (s MissingStrategy) String() string {
	if n, ok := missingStrategyNames[s]; ok {
		return n
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseMissingStrategy maps a strategy name to its value.
func ParseMissingStrategy(s string) (MissingStrategy, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for k, n := range missingStrategyNames {
		if n == want {
			return k, nil
		}
	}
	return 0, configErr("strategy", "unknown missing-value strategy %q", s)
}

// MissingFix configures FixMissingValues.
type MissingFix struct {
	Strategy MissingStrategy
	// FillValues maps column name to fill value; required for FillConstant.
	FillValues map[string]any
	// Columns restricts the fix. Empty means every column with a null
	// (or every FillValues key for FillConstant).
	Columns []string
}

// autoSkewLimit is the skew magnitude below which FillAuto uses the mean.
const autoSkewLimit = 0.5

// FixMissingValues fills null cells and leaves every non-null cell as it
// was. Columns that cannot be filled are listed in ChangeLog.Unresolved.
func FixMissingValues(ds *dataset.Dataset, fix MissingFix) (*dataset.Dataset, *ChangeLog, error) {
	const op = "fix missing values"
	if _, ok := missingStrategyNames[fix.Strategy]; !ok {
		return nil, nil, configErr("strategy", "unknown missing-value strategy %d", int(fix.Strategy))
	}
	targets, explicit, err := missingTargets(ds, fix)
	if err != nil {
		return nil, nil, err
	}
	if fix.Strategy == FillMean || fix.Strategy == FillMedian {
		for _, c := range targets {
			if explicit && c.Kind() != dataset.Numeric {
				return nil, nil, &DomainError{Op: op, Column: c.Name(),
					Reason: fmt.Sprintf("%s fill needs a numeric column, got %s", fix.Strategy, c.Kind())}
			}
		}
	}

	log := newChangeLog(op, fix.Strategy.String(), ds.Rows())
	ed := ds.Edit()
	touched := map[int]bool{}
	for _, c := range targets {
		nulls := c.NullCount()
		if nulls == 0 {
			continue
		}
		if nulls == c.Len() && fix.Strategy != FillConstant {
			log.Unresolved = append(log.Unresolved, c.Name())
			log.note("column %q is entirely null; left unchanged", c.Name())
			continue
		}
		fill, how, ok, err := fillValue(c, fix)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			log.Unresolved = append(log.Unresolved, c.Name())
			log.note("column %q (%s) cannot use %s fill; left unchanged", c.Name(), c.Kind(), fix.Strategy)
			continue
		}
		for i := 0; i < c.Len(); i++ {
			if c.IsNull(i) {
				if err := ed.Set(c.Name(), i, fill); err != nil {
					return nil, nil, err
				}
				touched[i] = true
			}
		}
		if how != "" {
			log.note("column %q filled with %s", c.Name(), how)
		}
		log.Columns = append(log.Columns, ColumnChange{
			Column: c.Name(),
			Cells:  nulls,
			Before: map[string]float64{"nulls": float64(nulls)},
			After:  map[string]float64{"nulls": 0},
		})
	}
	log.RowsAffected = len(touched)
	return ed.Commit(), log, nil
}

func missingTargets(ds *dataset.Dataset, fix MissingFix) ([]*dataset.Column, bool, error) {
	const op = "fix missing values"
	if fix.Strategy == FillConstant {
		if len(fix.FillValues) == 0 {
			return nil, false, configErr("fill_values", "constant strategy needs fill values")
		}
		for name := range fix.FillValues {
			if _, ok := ds.Column(name); !ok {
				return nil, false, configErr("fill_values", "column %q is not in the dataset", name)
			}
		}
		for _, name := range fix.Columns {
			if _, ok := fix.FillValues[name]; !ok {
				return nil, false, configErr("fill_values", "no fill value for targeted column %q", name)
			}
		}
	}
	if len(fix.Columns) > 0 {
		cols, err := ds.Lookup(op, fix.Columns)
		return cols, true, err
	}
	var out []*dataset.Column
	for _, c := range ds.Columns() {
		if fix.Strategy == FillConstant {
			if _, ok := fix.FillValues[c.Name()]; !ok {
				continue
			}
		} else if c.NullCount() == 0 {
			continue
		}
		out = append(out, c)
	}
	return out, false, nil
}

// fillValue picks the value for a column's nulls. ok is false when the
// strategy does not apply to the column's kind.
func fillValue(c *dataset.Column, fix MissingFix) (v any, how string, ok bool, err error) {
	strategy := fix.Strategy
	if strategy == FillAuto {
		if c.Kind() == dataset.Numeric {
			if math.Abs(c.Stats().Skew) < autoSkewLimit {
				strategy = FillMean
			} else {
				strategy = FillMedian
			}
		} else {
			strategy = FillMode
		}
		how = strategy.String()
	}
	switch strategy {
	case FillMean, FillMedian:
		if c.Kind() != dataset.Numeric {
			return nil, how, false, nil
		}
		st := c.Stats()
		if strategy == FillMean {
			return st.Mean, how, true, nil
		}
		return st.Median, how, true, nil
	case FillMode:
		m, found := modeOf(c)
		return m, how, found, nil
	case FillConstant:
		v, err := coerce(c, fix.FillValues[c.Name()])
		if err != nil {
			return nil, "", false, err
		}
		return v, how, true, nil
	}
	return nil, how, false, nil
}

// modeOf returns the most frequent non-null value; ties go to the value
// seen first.
func modeOf(c *dataset.Column) (any, bool) {
	counts := map[string]int{}
	first := map[string]any{}
	var order []string
	for i := 0; i < c.Len(); i++ {
		s, ok := c.String(i)
		if !ok {
			continue
		}
		if _, seen := first[s]; !seen {
			first[s] = c.Value(i)
			order = append(order, s)
		}
		counts[s]++
	}
	if len(order) == 0 {
		return nil, false
	}
	best := order[0]
	for _, s := range order[1:] {
		if counts[s] > counts[best] {
			best = s
		}
	}
	return first[best], true
}

// coerce converts a caller-supplied fill value to the column's kind so that
// filling never changes the kind.
func coerce(c *dataset.Column, v any) (any, error) {
	if dataset.IsNull(v) {
		return nil, configErr("fill_values", "fill value for %q is null", c.Name())
	}
	var (
		out any
		err error
	)
	switch c.Kind() {
	case dataset.Numeric:
		out, err = cast.ToFloat64E(v)
	case dataset.Boolean:
		out, err = cast.ToBoolE(v)
	case dataset.Datetime:
		out, err = cast.ToTimeE(v)
	default:
		out, err = cast.ToStringE(v)
	}
	if err != nil {
		return nil, configErr("fill_values", "fill value %v does not fit %s column %q", v, c.Kind(), c.Name())
	}
	return out, nil
}
