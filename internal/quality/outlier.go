package quality

import (
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/datacheck-cli/internal/dataset"
)

// OutlierMethod selects the outlier detection algorithm.
type OutlierMethod int

const (
	ZScore OutlierMethod = iota
	IQR
	IsolationForest
)

var outlierMethodNames = map[OutlierMethod]string{
	ZScore: "zscore", IQR: "iqr", IsolationForest: "isolation_forest",
}

func (m OutlierMethod) String() string {
	if n, ok := outlierMethodNames[m]; ok {
		return n
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// Univariate reports whether the method judges each column on its own and
// therefore has per-column bounds.
func (m OutlierMethod) Univariate() bool { return m == ZScore || m == IQR }

// DefaultThreshold is the cutoff used when OutlierOptions.Threshold is 0:
// |z| for zscore, the IQR multiplier for iqr. Isolation forest falls back to
// its contamination ratio.
func (m OutlierMethod) DefaultThreshold() float64 {
	switch m {
	case ZScore:
		return 3.0
	case IQR:
		return 1.5
	}
	return 0
}

// ParseOutlierMethod maps a method name to its value.
func ParseOutlierMethod(s string) (OutlierMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "zscore", "z-score", "z":
		return ZScore, nil
	case "iqr":
		return IQR, nil
	case "isolation_forest", "isolation-forest", "iforest":
		return IsolationForest, nil
	}
	return 0, configErr("method", "unknown outlier method %q", s)
}

// OutlierOptions configures CheckOutliers.
type OutlierOptions struct {
	Method OutlierMethod
	// Threshold is |z| for zscore, the IQR multiplier k for iqr and the
	// anomaly-score cutoff for isolation forest. 0 uses the method default.
	Threshold float64
	// Columns restricts the check to these numeric columns.
	Columns []string
	// Classic switches zscore from the median/MAD form to |x-mean|/std.
	Classic bool
	// Contamination is the expected anomaly share for isolation forest
	// when no score cutoff is given.
	Contamination float64
	Trees         int
	SampleSize    int
	Seed          int64
}

// DefaultOutlierOptions returns zscore with its default threshold.
func DefaultOutlierOptions() OutlierOptions {
	return OutlierOptions{Method: ZScore, Threshold: 3.0, Contamination: 0.1, Trees: 100, SampleSize: 256, Seed: 42}
}

func (o *OutlierOptions) normalize() error {
	if _, ok := outlierMethodNames[o.Method]; !ok {
		return configErr("method", "unknown outlier method %d", int(o.Method))
	}
	if o.Threshold < 0 || math.IsNaN(o.Threshold) {
		return configErr("threshold", "outlier threshold must be non-negative, got %v", o.Threshold)
	}
	if o.Threshold == 0 {
		o.Threshold = o.Method.DefaultThreshold()
	}
	if o.Method == IsolationForest {
		if o.Threshold >= 1 {
			return configErr("threshold", "isolation forest score cutoff must be in [0,1), got %v", o.Threshold)
		}
		if o.Contamination == 0 {
			o.Contamination = 0.1
		}
		if o.Contamination < 0 || o.Contamination > 0.5 {
			return configErr("contamination", "must be in (0,0.5], got %v", o.Contamination)
		}
		if o.Trees <= 0 {
			o.Trees = 100
		}
		if o.SampleSize <= 0 {
			o.SampleSize = 256
		}
	}
	return nil
}

// ColumnOutliers holds the bounds and flagged rows of one column under a
// univariate method.
type ColumnOutliers struct {
	Column string
	Rows   []int
	Lower  float64
	Upper  float64
}

// OutlierDetails is the payload of an outlier CheckResult.
type OutlierDetails struct {
	Method    OutlierMethod
	Threshold float64
	Columns   []ColumnOutliers
	// Rows is the sorted union of flagged rows.
	Rows []int
	// Scores and Cutoff are set for isolation forest only.
	Scores []float64
	Cutoff float64
}

// CheckOutliers flags outlying values. zscore and iqr judge each numeric
// column independently; isolation forest scores whole rows across all
// numeric columns. The summary is the number of distinct flagged rows.
func CheckOutliers(ds *dataset.Dataset, opt OutlierOptions) (CheckResult, error) {
	if err := opt.normalize(); err != nil {
		return CheckResult{}, err
	}
	det, notes, err := detectOutliers(ds, opt)
	if err != nil {
		return CheckResult{}, err
	}
	res := CheckResult{Check: OutliersCheck, Config: opt, Rows: ds.Rows(), SummaryLabel: "outlier_rows",
		Details: det, Notes: notes, Summary: float64(len(det.Rows))}

	if opt.Method.Univariate() {
		for _, co := range det.Columns {
			if len(co.Rows) == 0 {
				continue
			}
			c, _ := ds.Column(co.Column)
			res.Issues = append(res.Issues, Issue{
				Kind:     IssueOutlier,
				Column:   co.Column,
				Rows:     co.Rows,
				Severity: ratio(len(co.Rows), c.Stats().Count),
				Description: fmt.Sprintf("column %q has %d values outside [%.4g, %.4g] (%s)",
					co.Column, len(co.Rows), co.Lower, co.Upper, opt.Method),
			})
		}
	} else if len(det.Rows) > 0 {
		res.Issues = append(res.Issues, Issue{
			Kind:     IssueOutlier,
			Rows:     det.Rows,
			Severity: ratio(len(det.Rows), ds.Rows()),
			Description: fmt.Sprintf("%d rows have an anomaly score >= %.3f (isolation forest)",
				len(det.Rows), det.Cutoff),
		})
	}
	res.classify()
	return res, nil
}

func detectOutliers(ds *dataset.Dataset, opt OutlierOptions) (*OutlierDetails, []string, error) {
	cols, err := numericSubset(ds, "check outliers", opt.Columns)
	if err != nil {
		return nil, nil, err
	}
	det := &OutlierDetails{Method: opt.Method, Threshold: opt.Threshold}
	var notes []string
	if opt.Method == IsolationForest {
		notes = isolationOutliers(ds, cols, opt, det)
		return det, notes, nil
	}
	var all []int
	for _, c := range cols {
		co, note := columnOutliers(c, opt)
		if note != "" {
			notes = append(notes, note)
		}
		det.Columns = append(det.Columns, co)
		all = append(all, co.Rows...)
	}
	det.Rows = dataset.SortedRows(all)
	return det, notes, nil
}

// numericSubset resolves names to numeric columns. Naming a non-numeric
// column is a shape error; an empty list means every numeric column.
func numericSubset(ds *dataset.Dataset, op string, names []string) ([]*dataset.Column, error) {
	if len(names) == 0 {
		return ds.NumericColumns(), nil
	}
	cols, err := ds.Lookup(op, names)
	if err != nil {
		return nil, err
	}
	for _, c := range cols {
		if c.Kind() != dataset.Numeric {
			return nil, &DataShapeError{Op: op, Column: c.Name(), Reason: fmt.Sprintf("is %s, not numeric", c.Kind())}
		}
	}
	return cols, nil
}

// Robust z-score constants: 0.6745 scales MAD to a normal sigma, 1.253314
// does the same for the mean absolute deviation.
const (
	madScale    = 0.6745
	meanADScale = 1.253314
)

func columnOutliers(c *dataset.Column, opt OutlierOptions) (ColumnOutliers, string) {
	co := ColumnOutliers{Column: c.Name()}
	vals, rows := c.Floats()
	if len(vals) < 2 {
		return co, ""
	}
	var center, scale float64
	switch opt.Method {
	case ZScore:
		if opt.Classic {
			center, scale = dataset.MeanStd(vals)
		} else {
			var mad float64
			center, mad = dataset.MedianMAD(vals)
			scale = mad / madScale
			if mad == 0 {
				var sum float64
				for _, v := range vals {
					sum += math.Abs(v - center)
				}
				scale = meanADScale * sum / float64(len(vals))
			}
		}
		if scale == 0 {
			co.Lower, co.Upper = center, center
			return co, fmt.Sprintf("column %q has zero spread; no z-score outliers", c.Name())
		}
		co.Lower = center - opt.Threshold*scale
		co.Upper = center + opt.Threshold*scale
	case IQR:
		st := c.Stats()
		iqr := st.Q3 - st.Q1
		co.Lower = st.Q1 - opt.Threshold*iqr
		co.Upper = st.Q3 + opt.Threshold*iqr
	}
	for j, v := range vals {
		if v < co.Lower || v > co.Upper {
			co.Rows = append(co.Rows, rows[j])
		}
	}
	return co, ""
}

// OutlierStrategy selects what RemoveOutliers does with flagged values.
type OutlierStrategy int

const (
	RemoveRows OutlierStrategy = iota
	CapValues
	ReplaceMean
	ReplaceMedian
)

var outlierStrategyNames = map[OutlierStrategy]string{
	RemoveRows: "remove", CapValues: "cap", ReplaceMean: "mean", ReplaceMedian: "median",
}

func (s OutlierStrategy) String() string {
	if n, ok := outlierStrategyNames[s]; ok {
		return n
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseOutlierStrategy maps a strategy name to its value.
func ParseOutlierStrategy(s string) (OutlierStrategy, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for k, n := range outlierStrategyNames {
		if n == want {
			return k, nil
		}
	}
	return 0, configErr("strategy", "unknown outlier strategy %q", s)
}

// OutlierFix pairs a detection method with a remediation strategy. Build it
// with NewOutlierFix so invalid pairs are rejected up front.
type OutlierFix struct {
	OutlierOptions
	Strategy OutlierStrategy
}

// NewOutlierFix validates the method/strategy pair. cap, mean and median
// need per-column bounds, which isolation forest does not have; asking for
// them is a DomainError.
func NewOutlierFix(method OutlierMethod, strategy OutlierStrategy) (OutlierFix, error) {
	fix := OutlierFix{OutlierOptions: DefaultOutlierOptions(), Strategy: strategy}
	fix.Method = method
	fix.Threshold = 0
	if err := fix.validate(); err != nil {
		return OutlierFix{}, err
	}
	return fix, nil
}

func (f *OutlierFix) validate() error {
	if _, ok := outlierStrategyNames[f.Strategy]; !ok {
		return configErr("strategy", "unknown outlier strategy %d", int(f.Strategy))
	}
	if err := f.OutlierOptions.normalize(); err != nil {
		return err
	}
	if f.Strategy != RemoveRows && !f.Method.Univariate() {
		return &DomainError{Op: "remove outliers", Pairing: true,
			Reason: fmt.Sprintf("%s needs per-column bounds, which %s does not produce", f.Strategy, f.Method)}
	}
	return nil
}

// RemoveOutliers detects outliers with the fix's method and applies its
// strategy: drop the rows, clip values to the bounds, or replace them with
// the mean/median of the column's non-outlier values.
func RemoveOutliers(ds *dataset.Dataset, fix OutlierFix) (*dataset.Dataset, *ChangeLog, error) {
	if err := fix.validate(); err != nil {
		return nil, nil, err
	}
	det, notes, err := detectOutliers(ds, fix.OutlierOptions)
	if err != nil {
		return nil, nil, err
	}
	log := newChangeLog("remove outliers", fix.Strategy.String(), ds.Rows())
	log.Notes = append(log.Notes, notes...)
	log.Params["threshold"] = det.Threshold

	if fix.Strategy == RemoveRows {
		out := ds.DropRows(det.Rows)
		log.RowsRemoved = len(det.Rows)
		log.RowsAffected = len(det.Rows)
		log.RowsAfter = out.Rows()
		return out, log, nil
	}

	ed := ds.Edit()
	touched := map[int]bool{}
	for _, co := range det.Columns {
		if len(co.Rows) == 0 {
			continue
		}
		c, _ := ds.Column(co.Column)
		before := c.Stats()
		var repl float64
		if fix.Strategy != CapValues {
			repl = inlierCenter(c, co.Rows, fix.Strategy)
		}
		for _, r := range co.Rows {
			v, _ := c.Float(r)
			nv := repl
			if fix.Strategy == CapValues {
				nv = math.Min(math.Max(v, co.Lower), co.Upper)
			}
			if err := ed.Set(co.Column, r, nv); err != nil {
				return nil, nil, err
			}
			touched[r] = true
		}
		after, _ := ed.Column(co.Column)
		as := after.Stats()
		log.Columns = append(log.Columns, ColumnChange{
			Column: co.Column,
			Cells:  len(co.Rows),
			Before: map[string]float64{"min": before.Min, "max": before.Max, "mean": before.Mean},
			After:  map[string]float64{"min": as.Min, "max": as.Max, "mean": as.Mean},
		})
		log.Params[co.Column+".lower"] = co.Lower
		log.Params[co.Column+".upper"] = co.Upper
	}
	log.RowsAffected = len(touched)
	return ed.Commit(), log, nil
}

func inlierCenter(c *dataset.Column, outliers []int, strategy OutlierStrategy) float64 {
	skip := make(map[int]bool, len(outliers))
	for _, r := range outliers {
		skip[r] = true
	}
	vals, rows := c.Floats()
	in := make([]float64, 0, len(vals))
	for j, v := range vals {
		if !skip[rows[j]] {
			in = append(in, v)
		}
	}
	if strategy == ReplaceMedian {
		return dataset.Median(in)
	}
	mean, _ := dataset.MeanStd(in)
	return mean
}
