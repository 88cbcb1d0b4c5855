package quality

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/KaramelBytes/datacheck-cli/internal/dataset"
)

// BalanceOptions configures CheckDataBalance.
type BalanceOptions struct {
	Target string
	// Threshold flags the target as imbalanced when the majority/minority
	// ratio exceeds it.
	Threshold float64
}

// DefaultBalanceOptions returns the 1.5 ratio threshold.
func DefaultBalanceOptions(target string) BalanceOptions {
	return BalanceOptions{Target: target, Threshold: 1.5}
}

// ClassCount is the frequency of one target class.
type ClassCount struct {
	Class string
	Count int
	Share float64
}

// BalanceDetails is the payload of a balance CheckResult.
type BalanceDetails struct {
	Target   string
	Classes  []ClassCount
	Majority string
	Minority string
	Ratio    float64
	Nulls    int
}

// classIndex groups rows by target class. Classes are ordered by count
// descending, then by name.
type classIndex struct {
	classes []string
	rows    map[string][]int
	nulls   int
}

func indexClasses(c *dataset.Column) *classIndex {
	ix := &classIndex{rows: map[string][]int{}}
	for i := 0; i < c.Len(); i++ {
		s, ok := c.String(i)
		if !ok {
			ix.nulls++
			continue
		}
		if _, seen := ix.rows[s]; !seen {
			ix.classes = append(ix.classes, s)
		}
		ix.rows[s] = append(ix.rows[s], i)
	}
	sort.SliceStable(ix.classes, func(a, b int) bool {
		na, nb := len(ix.rows[ix.classes[a]]), len(ix.rows[ix.classes[b]])
		if na != nb {
			return na > nb
		}
		return ix.classes[a] < ix.classes[b]
	})
	return ix
}

func (ix *classIndex) count(class string) int { return len(ix.rows[class]) }

func (ix *classIndex) counts() map[string]float64 {
	out := make(map[string]float64, len(ix.classes))
	for _, cl := range ix.classes {
		out[cl] = float64(ix.count(cl))
	}
	return out
}

func targetColumn(ds *dataset.Dataset, op, target string) (*dataset.Column, error) {
	if strings.TrimSpace(target) == "" {
		return nil, configErr("target", "no target column given")
	}
	cols, err := ds.Lookup(op, []string{target})
	if err != nil {
		return nil, err
	}
	return cols[0], nil
}

// CheckDataBalance computes the class distribution of the target column.
// The summary is the imbalance ratio, majority count over minority count.
func CheckDataBalance(ds *dataset.Dataset, opt BalanceOptions) (CheckResult, error) {
	if opt.Threshold == 0 {
		opt.Threshold = 1.5
	}
	if opt.Threshold < 1 || math.IsNaN(opt.Threshold) {
		return CheckResult{}, configErr("threshold", "imbalance ratio threshold must be >= 1, got %v", opt.Threshold)
	}
	c, err := targetColumn(ds, "check balance", opt.Target)
	if err != nil {
		return CheckResult{}, err
	}
	ix := indexClasses(c)
	det := &BalanceDetails{Target: opt.Target, Nulls: ix.nulls, Ratio: 1}
	res := CheckResult{Check: BalanceCheck, Config: opt, Rows: ds.Rows(), SummaryLabel: "imbalance_ratio", Details: det}
	total := ds.Rows() - ix.nulls
	for _, cl := range ix.classes {
		det.Classes = append(det.Classes, ClassCount{Class: cl, Count: ix.count(cl), Share: ratio(ix.count(cl), total)})
	}
	if ix.nulls > 0 {
		res.note("%d rows with a null target were not counted", ix.nulls)
	}
	switch len(ix.classes) {
	case 0:
		res.note("target %q has no non-null values", opt.Target)
	case 1:
		det.Majority, det.Minority = ix.classes[0], ix.classes[0]
		res.note("target %q has a single class", opt.Target)
	default:
		det.Majority = ix.classes[0]
		det.Minority = ix.classes[len(ix.classes)-1]
		det.Ratio = float64(ix.count(det.Majority)) / float64(ix.count(det.Minority))
	}
	res.Summary = det.Ratio
	if det.Ratio > opt.Threshold {
		res.Issues = append(res.Issues, Issue{
			Kind:     IssueImbalance,
			Column:   opt.Target,
			Rows:     ix.rows[det.Minority],
			Severity: 1 - 1/det.Ratio,
			Description: fmt.Sprintf("target %q is imbalanced: %q has %d rows, %q has %d (ratio %.2f)",
				opt.Target, det.Majority, ix.count(det.Majority), det.Minority, ix.count(det.Minority), det.Ratio),
		})
	}
	res.classify()
	return res, nil
}

// BalanceMethod selects how BalanceDataset equalizes classes.
type BalanceMethod int

const (
	Undersample BalanceMethod = iota
	Oversample
	SMOTE
)

var balanceMethodNames = map[BalanceMethod]string{
	Undersample: "undersample", Oversample: "oversample", SMOTE: "smote",
}

func (m BalanceMethod) String() string {
	if n, ok := balanceMethodNames[m]; ok {
		return n
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// ParseBalanceMethod maps a method name to its value.
func ParseBalanceMethod(s string) (BalanceMethod, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for k, n := range balanceMethodNames {
		if n == want {
			return k, nil
		}
	}
	return 0, configErr("method", "unknown balance method %q", s)
}

// BalanceFix configures BalanceDataset.
type BalanceFix struct {
	Target string
	Method BalanceMethod
	// SamplingStrategy maps every class to its wanted row count. Empty means
	// every class is brought to the minority count (undersample) or the
	// majority count (oversample, smote).
	SamplingStrategy map[string]int
	// K is the SMOTE neighbour count.
	K    int
	Seed int64
}

// BalanceDataset resamples rows so the target classes reach the wanted
// counts. Undersampling keeps the surviving rows in their original order;
// oversampling appends copied or synthesized rows after the originals.
// Rows with a null target are kept untouched.
func BalanceDataset(ds *dataset.Dataset, fix BalanceFix) (*dataset.Dataset, *ChangeLog, error) {
	const op = "balance dataset"
	if _, ok := balanceMethodNames[fix.Method]; !ok {
		return nil, nil, configErr("method", "unknown balance method %d", int(fix.Method))
	}
	if fix.K == 0 {
		fix.K = 5
	}
	if fix.K < 1 {
		return nil, nil, configErr("k", "neighbour count must be positive, got %d", fix.K)
	}
	tc, err := targetColumn(ds, op, fix.Target)
	if err != nil {
		return nil, nil, err
	}
	ix := indexClasses(tc)
	want, err := wantedCounts(ix, fix)
	if err != nil {
		return nil, nil, err
	}

	log := newChangeLog(op, fix.Method.String(), ds.Rows())
	log.Params["k"] = float64(fix.K)
	if ix.nulls > 0 {
		log.note("%d rows with a null target kept as they are", ix.nulls)
	}
	rng := newRand(fix.Seed)

	var out *dataset.Dataset
	if fix.Method == Undersample {
		var drop []int
		for _, cl := range ix.classes {
			rows := ix.rows[cl]
			excess := len(rows) - want[cl]
			if excess <= 0 {
				continue
			}
			perm := rng.Perm(len(rows))
			for _, p := range perm[:excess] {
				drop = append(drop, rows[p])
			}
		}
		out = ds.DropRows(drop)
		log.RowsRemoved = len(drop)
		log.RowsAffected = len(drop)
	} else {
		extra, sources := synthesize(ds, tc, ix, want, fix, rng, log)
		if out, err = ds.AppendRows(extra); err != nil {
			return nil, nil, err
		}
		log.RowsAdded = len(extra)
		log.RowsAffected = sources
	}
	log.RowsAfter = out.Rows()

	after := map[string]float64{}
	for _, cl := range ix.classes {
		after[cl] = float64(want[cl])
	}
	log.Columns = append(log.Columns, ColumnChange{Column: fix.Target, Before: ix.counts(), After: after})
	return out, log, nil
}

// wantedCounts resolves the per-class target counts and validates an
// explicit sampling strategy against the observed classes.
func wantedCounts(ix *classIndex, fix BalanceFix) (map[string]int, error) {
	want := make(map[string]int, len(ix.classes))
	if len(ix.classes) == 0 {
		return want, nil
	}
	if len(fix.SamplingStrategy) == 0 {
		n := ix.count(ix.classes[len(ix.classes)-1])
		if fix.Method != Undersample {
			n = ix.count(ix.classes[0])
		}
		for _, cl := range ix.classes {
			want[cl] = n
		}
		return want, nil
	}
	for cl := range fix.SamplingStrategy {
		if _, ok := ix.rows[cl]; !ok {
			return nil, configErr("sampling_strategy", "class %q does not occur in %q", cl, fix.Target)
		}
	}
	for _, cl := range ix.classes {
		n, ok := fix.SamplingStrategy[cl]
		switch {
		case !ok:
			return nil, configErr("sampling_strategy", "class %q has no wanted count", cl)
		case n <= 0:
			return nil, configErr("sampling_strategy", "count for class %q must be positive, got %d", cl, n)
		case fix.Method == Undersample && n > ix.count(cl):
			return nil, configErr("sampling_strategy", "cannot undersample class %q from %d to %d rows", cl, ix.count(cl), n)
		case fix.Method != Undersample && n < ix.count(cl):
			return nil, configErr("sampling_strategy", "cannot oversample class %q from %d down to %d rows", cl, ix.count(cl), n)
		}
		want[cl] = n
	}
	return want, nil
}

// synthesize builds the rows appended by oversample and smote. It returns
// the new rows and the number of distinct original rows they were drawn
// from.
func synthesize(ds *dataset.Dataset, tc *dataset.Column, ix *classIndex, want map[string]int,
	fix BalanceFix, rng *rand.Rand, log *ChangeLog) ([][]any, int) {
	var features []int
	for j, c := range ds.Columns() {
		if c.Kind() == dataset.Numeric && c.Name() != tc.Name() {
			features = append(features, j)
		}
	}
	if fix.Method == SMOTE && len(features) == 0 {
		log.note("no numeric feature columns; smote fell back to oversampling")
	}
	var extra [][]any
	used := map[int]bool{}
	for _, cl := range ix.classes {
		need := want[cl] - ix.count(cl)
		if need <= 0 {
			continue
		}
		rows := ix.rows[cl]
		if fix.Method == SMOTE && len(features) > 0 {
			complete, vecs := featureVectors(ds, rows, features)
			if len(complete) >= fix.K+1 {
				for n := 0; n < need; n++ {
					a := rng.IntN(len(complete))
					nbrs := nearest(vecs, a, fix.K)
					b := nbrs[rng.IntN(len(nbrs))]
					gap := rng.Float64()
					row := ds.Row(complete[a])
					for f, j := range features {
						row[j] = vecs[a][f] + gap*(vecs[b][f]-vecs[a][f])
					}
					used[complete[a]] = true
					used[complete[b]] = true
					extra = append(extra, row)
				}
				continue
			}
			log.note("class %q has %d complete samples, smote needs %d; fell back to oversampling",
				cl, len(complete), fix.K+1)
		}
		for n := 0; n < need; n++ {
			r := rows[rng.IntN(len(rows))]
			used[r] = true
			extra = append(extra, ds.Row(r))
		}
	}
	return extra, len(used)
}

// featureVectors returns the rows whose numeric features are all non-null,
// with their feature vectors.
func featureVectors(ds *dataset.Dataset, rows, features []int) ([]int, [][]float64) {
	cols := ds.Columns()
	var keep []int
	var vecs [][]float64
	for _, r := range rows {
		v := make([]float64, len(features))
		ok := true
		for f, j := range features {
			if v[f], ok = cols[j].Float(r); !ok {
				break
			}
		}
		if ok {
			keep = append(keep, r)
			vecs = append(vecs, v)
		}
	}
	return keep, vecs
}

// nearest returns the indices of the k vectors closest to vecs[a] in
// Euclidean distance, excluding a itself.
func nearest(vecs [][]float64, a, k int) []int {
	type cand struct {
		i int
		d float64
	}
	cands := make([]cand, 0, len(vecs)-1)
	for i, v := range vecs {
		if i != a {
			cands = append(cands, cand{i, floats.Distance(vecs[a], v, 2)})
		}
	}
	sort.SliceStable(cands, func(x, y int) bool { return cands[x].d < cands[y].d })
	if k > len(cands) {
		k = len(cands)
	}
	out := make([]int, k)
	for i := range out {
		out[i] = cands[i].i
	}
	return out
}
