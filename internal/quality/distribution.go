package quality

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/datacheck-cli/internal/dataset"
)

// DistributionOptions configures CheckDataDistribution.
type DistributionOptions struct {
	// Threshold flags a column when |skewness| exceeds it.
	Threshold float64
	// Columns restricts the check to these numeric columns.
	Columns []string
}

// DefaultDistributionOptions returns the 1.0 skewness threshold.
func DefaultDistributionOptions() DistributionOptions {
	return DistributionOptions{Threshold: 1.0}
}

// ColumnSkew is the shape summary of one numeric column.
type ColumnSkew struct {
	Column    string
	Count     int
	Skew      float64
	Kurtosis  float64
	Suggested TransformMethod
}

// DistributionDetails is the payload of a distribution CheckResult.
type DistributionDetails struct {
	Columns     []ColumnSkew
	MaxAbsSkew  float64
	WorstColumn string
}

// skewSeverityCap is the |skew| at which an issue reaches severity 1.
const skewSeverityCap = 3.0

// CheckDataDistribution measures the skewness of every numeric column. The
// summary is the largest absolute skewness.
func CheckDataDistribution(ds *dataset.Dataset, opt DistributionOptions) (CheckResult, error) {
	if opt.Threshold == 0 {
		opt.Threshold = 1.0
	}
	if opt.Threshold < 0 || math.IsNaN(opt.Threshold) {
		return CheckResult{}, configErr("threshold", "skewness threshold must be positive, got %v", opt.Threshold)
	}
	cols, err := numericSubset(ds, "check distribution", opt.Columns)
	if err != nil {
		return CheckResult{}, err
	}
	det := &DistributionDetails{}
	res := CheckResult{Check: DistributionCheck, Config: opt, Rows: ds.Rows(), SummaryLabel: "max_abs_skew", Details: det}
	for _, c := range cols {
		st := c.Stats()
		if st.Count < 3 {
			res.note("column %q has %d values; skewness needs 3", c.Name(), st.Count)
			continue
		}
		vals, _ := c.Floats()
		cs := ColumnSkew{Column: c.Name(), Count: st.Count, Skew: st.Skew, Kurtosis: st.Kurtosis,
			Suggested: autoMethod(vals, st.Skew)}
		det.Columns = append(det.Columns, cs)
		if a := math.Abs(st.Skew); a > det.MaxAbsSkew {
			det.MaxAbsSkew = a
			det.WorstColumn = c.Name()
		}
		if math.Abs(st.Skew) > opt.Threshold {
			res.Issues = append(res.Issues, Issue{
				Kind:     IssueSkew,
				Column:   c.Name(),
				Severity: math.Min(math.Abs(st.Skew)/skewSeverityCap, 1),
				Description: fmt.Sprintf("column %q is skewed (%.3f); suggested transform: %s",
					c.Name(), st.Skew, cs.Suggested),
			})
		}
	}
	res.Summary = det.MaxAbsSkew
	res.classify()
	return res, nil
}

// TransformMethod selects the transform applied by TransformNonNormal.
type TransformMethod int

const (
	TransformAuto TransformMethod = iota
	TransformLog
	TransformBoxCox
	TransformSqrt
	TransformCustom
	TransformLog1p
	TransformReflectLog
	// TransformNone is what auto picks for an unskewed column.
	TransformNone
)

var transformNames = map[TransformMethod]string{
	TransformAuto: "auto", TransformLog: "log", TransformBoxCox: "boxcox", TransformSqrt: "sqrt",
	TransformCustom: "custom", TransformLog1p: "log1p", TransformReflectLog: "reflect_log", TransformNone: "none",
}

func (m TransformMethod) String() string {
	if n, ok := transformNames[m]; ok {
		return n
	}
	return fmt.Sprintf("transform(%d)", int(m))
}

// ParseTransformMethod maps a method name to its value. custom is not
// accepted here; it needs a function and is only reachable from Go.
func ParseTransformMethod(s string) (TransformMethod, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	switch want {
	case "box-cox", "box_cox":
		want = "boxcox"
	case "custom", "none":
		return 0, configErr("method", "transform %q cannot be selected by name", s)
	}
	for k, n := range transformNames {
		if n == want {
			return k, nil
		}
	}
	return 0, configErr("method", "unknown transform %q", s)
}

// autoMethod picks the transform auto would apply to a column.
func autoMethod(vals []float64, skew float64) TransformMethod {
	switch {
	case skew == 0 || len(vals) == 0:
		return TransformNone
	case skew < 0:
		return TransformReflectLog
	}
	for _, v := range vals {
		if v <= 0 {
			return TransformLog1p
		}
	}
	return TransformBoxCox
}

// TransformFix configures TransformNonNormal.
type TransformFix struct {
	// Columns to transform. Empty means every numeric column whose |skew|
	// exceeds Threshold.
	Columns   []string
	Method    TransformMethod
	Custom    func(float64) float64
	InPlace   bool
	Suffix    string
	Threshold float64
}

// DefaultTransformFix returns auto transforms written to new columns.
func DefaultTransformFix() TransformFix {
	return TransformFix{Method: TransformAuto, Suffix: "_transformed", Threshold: 1.0}
}

type columnTransform struct {
	col    *dataset.Column
	method TransformMethod
	values []any
	params map[string]float64
	before float64
	cells  int
}

// TransformNonNormal applies a variance-stabilizing transform to skewed
// numeric columns. Every column is validated before any is written, so a
// DomainError leaves the dataset as it was. Nulls stay null.
func TransformNonNormal(ds *dataset.Dataset, fix TransformFix) (*dataset.Dataset, *ChangeLog, error) {
	const op = "transform non-normal"
	if _, ok := transformNames[fix.Method]; !ok || fix.Method == TransformNone {
		return nil, nil, configErr("method", "unknown transform %d", int(fix.Method))
	}
	if fix.Method == TransformCustom && fix.Custom == nil {
		return nil, nil, configErr("custom", "custom transform needs a function")
	}
	if fix.Suffix == "" {
		fix.Suffix = "_transformed"
	}
	if fix.Threshold == 0 {
		fix.Threshold = 1.0
	}
	cols, err := numericSubset(ds, op, fix.Columns)
	if err != nil {
		return nil, nil, err
	}
	log := newChangeLog(op, fix.Method.String(), ds.Rows())
	if len(fix.Columns) == 0 {
		var skewed []*dataset.Column
		for _, c := range cols {
			if math.Abs(c.Stats().Skew) > fix.Threshold {
				skewed = append(skewed, c)
			}
		}
		cols = skewed
		log.Params["threshold"] = fix.Threshold
	}

	var plans []columnTransform
	for _, c := range cols {
		p, err := planTransform(op, c, fix)
		if err != nil {
			return nil, nil, err
		}
		if p.method == TransformNone {
			log.note("column %q has no skew; left unchanged", c.Name())
			continue
		}
		if !fix.InPlace {
			if _, dup := ds.Column(c.Name() + fix.Suffix); dup {
				return nil, nil, &DataShapeError{Op: op, Column: c.Name() + fix.Suffix, Reason: "output column already exists"}
			}
		}
		plans = append(plans, p)
	}

	ed := ds.Edit()
	touched := map[int]bool{}
	for _, p := range plans {
		name := p.col.Name()
		out := dataset.NewColumn(name, dataset.Numeric, p.values)
		if fix.InPlace {
			err = ed.Replace(out)
		} else {
			out = out.Rename(name + fix.Suffix)
			err = ed.Add(out)
		}
		if err != nil {
			return nil, nil, err
		}
		for i, v := range p.values {
			if !dataset.IsNull(v) {
				touched[i] = true
			}
		}
		for k, v := range p.params {
			log.Params[name+"."+k] = v
		}
		log.Columns = append(log.Columns, ColumnChange{
			Column: out.Name(),
			Cells:  p.cells,
			Before: map[string]float64{"skew": p.before},
			After:  map[string]float64{"skew": out.Stats().Skew},
		})
		if fix.Method == TransformAuto {
			log.note("column %q: auto chose %s", name, p.method)
		}
	}
	log.RowsAffected = len(touched)
	return ed.Commit(), log, nil
}

func planTransform(op string, c *dataset.Column, fix TransformFix) (columnTransform, error) {
	vals, rows := c.Floats()
	st := c.Stats()
	p := columnTransform{col: c, method: fix.Method, params: map[string]float64{}, before: st.Skew, cells: len(vals)}
	if p.method == TransformAuto {
		p.method = autoMethod(vals, st.Skew)
	}
	if p.method == TransformNone || len(vals) == 0 {
		p.method = TransformNone
		return p, nil
	}
	domainErr := func(reason string) error {
		return &DomainError{Op: op, Column: c.Name(), Reason: fmt.Sprintf("%s: %s", p.method, reason)}
	}

	var f func(float64) float64
	switch p.method {
	case TransformLog:
		if st.Min <= 0 {
			return p, domainErr(fmt.Sprintf("needs positive values, minimum is %g", st.Min))
		}
		f = math.Log
	case TransformBoxCox:
		if st.Min <= 0 {
			return p, domainErr(fmt.Sprintf("needs positive values, minimum is %g", st.Min))
		}
		lambda := boxCoxLambda(vals)
		p.params["lambda"] = lambda
		f = func(x float64) float64 { return boxCox(x, lambda) }
	case TransformSqrt:
		if st.Min < 0 {
			return p, domainErr(fmt.Sprintf("needs non-negative values, minimum is %g", st.Min))
		}
		f = math.Sqrt
	case TransformLog1p:
		shift := 0.0
		if st.Min < 0 {
			shift = -st.Min
		}
		p.params["shift"] = shift
		f = func(x float64) float64 { return math.Log1p(x + shift) }
	case TransformReflectLog:
		reflect := st.Max + 1
		p.params["reflect"] = reflect
		f = func(x float64) float64 { return -math.Log(reflect - x) }
	case TransformCustom:
		f = fix.Custom
	}

	p.values = make([]any, c.Len())
	for j, x := range vals {
		y := f(x)
		if math.IsNaN(y) || math.IsInf(y, 0) {
			return p, domainErr(fmt.Sprintf("value %g at row %d maps to %g", x, rows[j], y))
		}
		p.values[rows[j]] = y
	}
	return p, nil
}

func boxCox(x, lambda float64) float64 {
	if math.Abs(lambda) < 1e-8 {
		return math.Log(x)
	}
	return (math.Pow(x, lambda) - 1) / lambda
}

// Box-Cox lambda search range.
const (
	minLambda = -5.0
	maxLambda = 5.0
)

// boxCoxLambda maximises the Box-Cox profile log-likelihood over positive
// vals, starting Nelder-Mead from lambda=1 and falling back to a grid search
// when the optimizer fails or leaves the search range.
func boxCoxLambda(vals []float64) float64 {
	var sumLog float64
	for _, v := range vals {
		sumLog += math.Log(v)
	}
	n := float64(len(vals))
	y := make([]float64, len(vals))
	nll := func(lambda float64) float64 {
		for i, v := range vals {
			y[i] = boxCox(v, lambda)
		}
		variance := stat.Variance(y, nil)
		if !(variance > 0) || math.IsInf(variance, 0) {
			return math.Inf(1)
		}
		return n/2*math.Log(variance) - (lambda-1)*sumLog
	}
	problem := optimize.Problem{Func: func(x []float64) float64 {
		if x[0] < minLambda || x[0] > maxLambda {
			return math.Inf(1)
		}
		return nll(x[0])
	}}
	res, err := optimize.Minimize(problem, []float64{1}, nil, &optimize.NelderMead{})
	if err == nil && res != nil {
		if l := res.X[0]; l >= minLambda && l <= maxLambda && !math.IsInf(res.F, 0) {
			return l
		}
	}
	best, bestF := 1.0, math.Inf(1)
	for l := minLambda; l <= maxLambda+1e-9; l += 0.01 {
		if f := nll(l); f < bestF {
			best, bestF = l, f
		}
	}
	return best
}
