// Package quality implements the six data-quality checks and the fixes
// paired with them. Checks only read the dataset they are given; fixes
// return a successor dataset and a ChangeLog describing what they altered.
package quality

import (
	"fmt"
	"sort"
	"strings"
)

// CheckKind identifies one of the six checks. The set is closed.
type CheckKind int

const (
	MissingValuesCheck CheckKind = iota
	OutliersCheck
	DuplicatesCheck
	FormatCheck
	BalanceCheck
	DistributionCheck
)

// AllChecks lists every check in the order the orchestrator runs them.
var AllChecks = []CheckKind{MissingValuesCheck, OutliersCheck, DuplicatesCheck, FormatCheck, BalanceCheck, DistributionCheck}

var checkNames = map[CheckKind]string{
	MissingValuesCheck: "missing_values",
	OutliersCheck:      "outliers",
	DuplicatesCheck:    "duplicates",
	FormatCheck:        "format",
	BalanceCheck:       "balance",
	DistributionCheck:  "distribution",
}

func (k CheckKind) String() string {
	if s, ok := checkNames[k]; ok {
		return s
	}
	return fmt.Sprintf("check(%d)", int(k))
}

// ParseCheckKind accepts the canonical names plus a few short aliases.
func ParseCheckKind(s string) (CheckKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "missing_values", "missing":
		return MissingValuesCheck, nil
	case "outliers", "outlier":
		return OutliersCheck, nil
	case "duplicates", "duplicate":
		return DuplicatesCheck, nil
	case "format", "data_format":
		return FormatCheck, nil
	case "balance", "data_balance":
		return BalanceCheck, nil
	case "distribution", "data_distribution":
		return DistributionCheck, nil
	}
	return 0, configErr("checks", "unknown check %q", s)
}

func (k CheckKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *CheckKind) UnmarshalText(b []byte) error {
	v, err := ParseCheckKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Status classifies a CheckResult.
type Status string

const (
	StatusPass    Status = "pass"
	StatusWarn    Status = "warn"
	StatusFail    Status = "fail"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// FailSeverity is the issue severity from which a result is classified as
// failed rather than warned.
const FailSeverity = 0.5

// IssueKind names the defect an Issue describes.
type IssueKind string

const (
	IssueMissing   IssueKind = "missing"
	IssueOutlier   IssueKind = "outlier"
	IssueDuplicate IssueKind = "duplicate"
	IssueFormat    IssueKind = "format"
	IssueImbalance IssueKind = "imbalance"
	IssueSkew      IssueKind = "skew"
)

// Issue is one detected defect. Severity lies in [0,1].
type Issue struct {
	Kind        IssueKind
	Column      string
	Rows        []int
	Severity    float64
	Description string
}

// CheckResult is the outcome of one check. Summary is always defined, even
// when Issues is empty. Details holds the check-specific payload
// (*MissingDetails, *OutlierDetails, *DuplicateDetails, *FormatDetails,
// *BalanceDetails or *DistributionDetails).
type CheckResult struct {
	Check        CheckKind
	Config       any
	Issues       []Issue
	Summary      float64
	SummaryLabel string
	Status       Status
	Rows         int
	Notes        []string
	Details      any
	Err          error
}

// WorstSeverity returns the highest issue severity, 0 without issues.
func (r CheckResult) WorstSeverity() float64 {
	worst := 0.0
	for _, is := range r.Issues {
		if is.Severity > worst {
			worst = is.Severity
		}
	}
	return worst
}

// Scored reports whether the result carries a usable summary.
func (r CheckResult) Scored() bool {
	return r.Status != StatusError && r.Status != StatusSkipped
}

func (r *CheckResult) classify() {
	switch {
	case len(r.Issues) == 0:
		r.Status = StatusPass
	case r.WorstSeverity() >= FailSeverity:
		r.Status = StatusFail
	default:
		r.Status = StatusWarn
	}
}

func (r *CheckResult) note(format string, args ...any) {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

// Failed records a check that could not run.
func Failed(check CheckKind, rows int, err error) CheckResult {
	return CheckResult{Check: check, Rows: rows, Status: StatusError, Err: err,
		Notes: []string{err.Error()}}
}

// Skipped records a check the caller gave nothing to run on.
func Skipped(check CheckKind, rows int, reason string) CheckResult {
	return CheckResult{Check: check, Rows: rows, Status: StatusSkipped, Notes: []string{reason}}
}

// ColumnChange records how a fix altered one column. Before and After hold
// summary numerics for the affected scope.
type ColumnChange struct {
	Column string
	Cells  int
	Before map[string]float64
	After  map[string]float64
}

// ChangeLog records what a fix altered. RowsAffected, RowsRemoved and every
// ColumnChange.Cells are bounded by RowsBefore; RowsAdded counts
// synthesized rows and is not.
type ChangeLog struct {
	Operation    string
	Strategy     string
	Columns      []ColumnChange
	RowsBefore   int
	RowsAfter    int
	RowsAffected int
	RowsRemoved  int
	RowsAdded    int
	Params       map[string]float64
	Unresolved   []string
	Notes        []string
}

func newChangeLog(op, strategy string, rows int) *ChangeLog {
	return &ChangeLog{Operation: op, Strategy: strategy, RowsBefore: rows, RowsAfter: rows,
		Params: map[string]float64{}}
}

func (l *ChangeLog) note(format string, args ...any) {
	l.Notes = append(l.Notes, fmt.Sprintf(format, args...))
}

// CellsChanged sums the per-column cell counts.
func (l *ChangeLog) CellsChanged() int {
	n := 0
	for _, c := range l.Columns {
		n += c.Cells
	}
	return n
}

// String renders a one-paragraph digest of the change.
func (l *ChangeLog) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s): rows %d -> %d", l.Operation, l.Strategy, l.RowsBefore, l.RowsAfter)
	if l.RowsRemoved > 0 {
		fmt.Fprintf(&b, ", removed %d", l.RowsRemoved)
	}
	if l.RowsAdded > 0 {
		fmt.Fprintf(&b, ", added %d", l.RowsAdded)
	}
	if n := l.CellsChanged(); n > 0 {
		fmt.Fprintf(&b, ", %d cells changed in %d columns", n, len(l.Columns))
	}
	if len(l.Params) > 0 {
		keys := make([]string, 0, len(l.Params))
		for k := range l.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%.4g", k, l.Params[k])
		}
		fmt.Fprintf(&b, "; params: %s", strings.Join(parts, ", "))
	}
	if len(l.Unresolved) > 0 {
		fmt.Fprintf(&b, "; unresolved: %s", strings.Join(l.Unresolved, ", "))
	}
	for _, n := range l.Notes {
		b.WriteString("\n- ")
		b.WriteString(n)
	}
	return b.String()
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
