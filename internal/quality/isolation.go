package quality

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/KaramelBytes/datacheck-cli/internal/dataset"
)

// eulerGamma is used by the harmonic-number approximation in avgPathLength.
const eulerGamma = 0.5772156649015329

type isoNode struct {
	feature     int
	split       float64
	left, right *isoNode
	size        int
}

// avgPathLength is c(n), the mean depth of an unsuccessful search in a
// binary search tree of n points.
func avgPathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	h := math.Log(float64(n-1)) + eulerGamma
	return 2*h - 2*float64(n-1)/float64(n)
}

func buildIsoTree(data [][]float64, idx []int, depth, maxDepth int, rng *rand.Rand) *isoNode {
	if len(idx) <= 1 || depth >= maxDepth {
		return &isoNode{size: len(idx)}
	}
	width := len(data[idx[0]])
	var candidates []int
	for f := 0; f < width; f++ {
		lo, hi := data[idx[0]][f], data[idx[0]][f]
		for _, i := range idx[1:] {
			lo = math.Min(lo, data[i][f])
			hi = math.Max(hi, data[i][f])
		}
		if hi > lo {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return &isoNode{size: len(idx)}
	}
	f := candidates[rng.IntN(len(candidates))]
	lo, hi := data[idx[0]][f], data[idx[0]][f]
	for _, i := range idx[1:] {
		lo = math.Min(lo, data[i][f])
		hi = math.Max(hi, data[i][f])
	}
	split := lo + rng.Float64()*(hi-lo)
	var left, right []int
	for _, i := range idx {
		if data[i][f] < split {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &isoNode{
		feature: f,
		split:   split,
		left:    buildIsoTree(data, left, depth+1, maxDepth, rng),
		right:   buildIsoTree(data, right, depth+1, maxDepth, rng),
		size:    len(idx),
	}
}

func pathLength(x []float64, n *isoNode, depth int) float64 {
	for n.left != nil {
		if x[n.feature] < n.split {
			n = n.left
		} else {
			n = n.right
		}
		depth++
	}
	return float64(depth) + avgPathLength(n.size)
}

// newRand returns the deterministic generator used by every seeded
// operation in the package.
func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}

// isolationScores returns the anomaly score s = 2^(-E[h(x)]/c(psi)) of
// every row of data. Scores near 1 are anomalous; around 0.5 and below
// are normal.
func isolationScores(data [][]float64, trees, sampleSize int, seed int64) []float64 {
	n := len(data)
	psi := sampleSize
	if psi > n {
		psi = n
	}
	maxDepth := int(math.Ceil(math.Log2(float64(psi))))
	if maxDepth < 1 {
		maxDepth = 1
	}
	rng := newRand(seed)
	forest := make([]*isoNode, trees)
	for t := range forest {
		sample := rng.Perm(n)[:psi]
		forest[t] = buildIsoTree(data, sample, 0, maxDepth, rng)
	}
	norm := avgPathLength(psi)
	scores := make([]float64, n)
	for i, x := range data {
		var sum float64
		for _, tree := range forest {
			sum += pathLength(x, tree, 0)
		}
		if norm == 0 {
			scores[i] = 0.5
			continue
		}
		scores[i] = math.Pow(2, -(sum/float64(trees))/norm)
	}
	return scores
}

// isolationOutliers fills det with row-level isolation forest results over
// the given numeric columns. Nulls are imputed with the column median.
func isolationOutliers(ds *dataset.Dataset, cols []*dataset.Column, opt OutlierOptions, det *OutlierDetails) []string {
	n := ds.Rows()
	if len(cols) == 0 {
		return []string{"no numeric columns; isolation forest skipped"}
	}
	if n < 2 {
		return []string{"fewer than two rows; isolation forest skipped"}
	}
	data := make([][]float64, n)
	for i := range data {
		data[i] = make([]float64, len(cols))
	}
	for j, c := range cols {
		med := c.Stats().Median
		for i := 0; i < n; i++ {
			v, ok := c.Float(i)
			if !ok {
				v = med
			}
			data[i][j] = v
		}
	}
	det.Scores = isolationScores(data, opt.Trees, opt.SampleSize, opt.Seed)

	var notes []string
	if opt.Threshold > 0 {
		det.Cutoff = opt.Threshold
		for i, s := range det.Scores {
			if s >= opt.Threshold {
				det.Rows = append(det.Rows, i)
			}
		}
		return notes
	}
	k := int(math.Round(opt.Contamination * float64(n)))
	if k == 0 {
		notes = append(notes, fmt.Sprintf("contamination %.3g of %d rows flags no rows", opt.Contamination, n))
		det.Cutoff = 1
		return notes
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return det.Scores[order[a]] > det.Scores[order[b]] })
	det.Cutoff = det.Scores[order[k-1]]
	det.Rows = dataset.SortedRows(order[:k])
	return notes
}
