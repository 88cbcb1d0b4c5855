package quality

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/KaramelBytes/datacheck-cli/internal/dataset"
)

// DuplicateOptions configures CheckDuplicates.
type DuplicateOptions struct {
	// Columns is the subset compared. Exact mode defaults to every column;
	// fuzzy mode defaults to the text and categorical columns.
	Columns []string
	// Fuzzy compares rows by normalized edit-distance similarity. Cost is
	// quadratic in the row count; sample large datasets first.
	Fuzzy bool
	// Threshold is the fuzzy similarity from which two rows are duplicates.
	Threshold float64
}

// DefaultDuplicateOptions returns exact matching over all columns.
func DefaultDuplicateOptions() DuplicateOptions {
	return DuplicateOptions{Threshold: 0.9}
}

// DuplicateDetails is the payload of a duplicates CheckResult.
type DuplicateDetails struct {
	Columns   []string
	Fuzzy     bool
	Threshold float64
	// Clusters holds every group of two or more mutually duplicate rows,
	// rows ascending, clusters ordered by their first row.
	Clusters [][]int
	// DuplicateRows is the number of redundant rows, the sum of size-1
	// over clusters.
	DuplicateRows int
	// ClusterRows is the number of rows that belong to any cluster.
	ClusterRows int
}

// CheckDuplicates groups duplicate rows into clusters. Clusters are the
// transitive closure of the pairwise duplicate relation, so A~B and B~C put
// A, B and C together even when A and C differ more than the threshold.
func CheckDuplicates(ds *dataset.Dataset, opt DuplicateOptions) (CheckResult, error) {
	det, err := duplicateClusters(ds, &opt)
	if err != nil {
		return CheckResult{}, err
	}
	res := CheckResult{Check: DuplicatesCheck, Config: opt, Rows: ds.Rows(), SummaryLabel: "duplicate_rows",
		Details: det, Summary: float64(det.DuplicateRows)}
	for _, cl := range det.Clusters {
		res.Issues = append(res.Issues, Issue{
			Kind:        IssueDuplicate,
			Rows:        cl,
			Severity:    ratio(len(cl), ds.Rows()),
			Description: fmt.Sprintf("rows %s are duplicates", formatRows(cl, 8)),
		})
	}
	if opt.Fuzzy && ds.Rows() > 5000 {
		res.note("fuzzy comparison over %d rows is quadratic; consider sampling", ds.Rows())
	}
	res.classify()
	return res, nil
}

func duplicateClusters(ds *dataset.Dataset, opt *DuplicateOptions) (*DuplicateDetails, error) {
	const op = "check duplicates"
	if opt.Threshold == 0 {
		opt.Threshold = 0.9
	}
	if opt.Fuzzy && (opt.Threshold < 0 || opt.Threshold > 1 || math.IsNaN(opt.Threshold)) {
		return nil, configErr("threshold", "fuzzy similarity threshold must be in (0,1], got %v", opt.Threshold)
	}
	var cols []*dataset.Column
	if len(opt.Columns) == 0 && opt.Fuzzy {
		cols = ds.ColumnsOfKind(dataset.Text, dataset.Categorical)
		if len(cols) == 0 {
			cols = ds.Columns()
		}
	} else {
		var err error
		if cols, err = ds.Lookup(op, opt.Columns); err != nil {
			return nil, err
		}
	}
	det := &DuplicateDetails{Fuzzy: opt.Fuzzy, Threshold: opt.Threshold}
	for _, c := range cols {
		det.Columns = append(det.Columns, c.Name())
	}

	n := ds.Rows()
	uf := newUnionFind(n)
	fold := cases.Fold()
	if opt.Fuzzy {
		texts := make([]string, n)
		for i := range texts {
			texts[i] = fuzzyText(cols, i, fold)
		}
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if uf.find(i) == uf.find(j) {
					continue
				}
				if Similarity(texts[i], texts[j]) >= opt.Threshold {
					uf.union(i, j)
				}
			}
		}
	} else {
		firstSeen := make(map[string]int, n)
		for i := 0; i < n; i++ {
			key := exactKey(cols, i, fold)
			if j, ok := firstSeen[key]; ok {
				uf.union(j, i)
			} else {
				firstSeen[key] = i
			}
		}
	}
	det.Clusters = uf.clusters()
	for _, cl := range det.Clusters {
		det.DuplicateRows += len(cl) - 1
		det.ClusterRows += len(cl)
	}
	return det, nil
}

// Similarity is 1 - levenshtein(a,b)/max(len(a),len(b)) over runes. Two
// empty strings are identical.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

const nullToken = "\x00"

func exactKey(cols []*dataset.Column, row int, fold cases.Caser) string {
	parts := make([]string, len(cols))
	for j, c := range cols {
		switch {
		case c.IsNull(row):
			parts[j] = nullToken
		case c.Kind() == dataset.Numeric:
			f, _ := c.Float(row)
			parts[j] = strconv.FormatFloat(f, 'g', -1, 64)
		default:
			s, _ := c.String(row)
			parts[j] = fold.String(strings.TrimSpace(s))
		}
	}
	return strings.Join(parts, "\x1f")
}

func fuzzyText(cols []*dataset.Column, row int, fold cases.Caser) string {
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		if s, ok := c.String(row); ok {
			parts = append(parts, fold.String(strings.TrimSpace(s)))
		}
	}
	return strings.Join(parts, " ")
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}

// clusters returns the groups of size > 1, rows ascending, ordered by first
// row.
func (u *unionFind) clusters() [][]int {
	groups := map[int][]int{}
	for i := range u.parent {
		r := u.find(i)
		groups[r] = append(groups[r], i)
	}
	var out [][]int
	for _, g := range groups {
		if len(g) > 1 {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// Keep selects which member of a duplicate cluster survives.
type Keep int

const (
	KeepFirst Keep = iota
	KeepLast
	KeepNone
)

func (k Keep) String() string {
	switch k {
	case KeepFirst:
		return "first"
	case KeepLast:
		return "last"
	case KeepNone:
		return "none"
	}
	return fmt.Sprintf("keep(%d)", int(k))
}

// ParseKeep accepts first, last, and none (or false) for dropping every
// member of a cluster.
func ParseKeep(s string) (Keep, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "first":
		return KeepFirst, nil
	case "last":
		return KeepLast, nil
	case "none", "false":
		return KeepNone, nil
	}
	return 0, configErr("keep", "unknown keep policy %q", s)
}

// DuplicateFix configures RemoveDuplicates.
type DuplicateFix struct {
	DuplicateOptions
	Keep Keep
}

// RemoveDuplicates collapses each duplicate cluster to its first or last
// row, or drops the whole cluster with KeepNone. Surviving rows keep their
// original order.
func RemoveDuplicates(ds *dataset.Dataset, fix DuplicateFix) (*dataset.Dataset, *ChangeLog, error) {
	if fix.Keep < KeepFirst || fix.Keep > KeepNone {
		return nil, nil, configErr("keep", "unknown keep policy %d", int(fix.Keep))
	}
	det, err := duplicateClusters(ds, &fix.DuplicateOptions)
	if err != nil {
		return nil, nil, err
	}
	var drop []int
	for _, cl := range det.Clusters {
		switch fix.Keep {
		case KeepFirst:
			drop = append(drop, cl[1:]...)
		case KeepLast:
			drop = append(drop, cl[:len(cl)-1]...)
		case KeepNone:
			drop = append(drop, cl...)
		}
	}
	out := ds.DropRows(drop)
	log := newChangeLog("remove duplicates", fix.Keep.String(), ds.Rows())
	log.RowsRemoved = len(drop)
	log.RowsAffected = len(drop)
	log.RowsAfter = out.Rows()
	log.Params["clusters"] = float64(len(det.Clusters))
	if fix.Fuzzy {
		log.Params["threshold"] = det.Threshold
	}
	return out, log, nil
}

func formatRows(rows []int, limit int) string {
	parts := make([]string, 0, limit+1)
	for i, r := range rows {
		if i == limit {
			parts = append(parts, fmt.Sprintf("… (+%d)", len(rows)-limit))
			break
		}
		parts = append(parts, strconv.Itoa(r))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
