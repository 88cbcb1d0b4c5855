// Package scoring turns check results of different shapes into comparable
// sub-scores in [0,1], combines them into one weighted quality score and
// derives recommendations from the weakest checks.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/KaramelBytes/datacheck-cli/internal/quality"
)

// Caps used by the balance and distribution sub-scores: an imbalance ratio
// of 1+RatioCap or a skewness of SkewCap scores 0.
const (
	RatioCap = 9.0
	SkewCap  = 3.0
)

// DefaultWarnThreshold is the sub-score below which a recommendation is
// generated.
const DefaultWarnThreshold = 0.8

// weightTolerance bounds how far weights may sum away from 1.
const weightTolerance = 1e-6

// Weights maps each check to its share of the overall score.
type Weights map[quality.CheckKind]float64

// DefaultWeights returns the fixed default weighting.
func DefaultWeights() Weights {
	return Weights{
		quality.MissingValuesCheck: 0.25,
		quality.OutliersCheck:      0.15,
		quality.DuplicatesCheck:    0.20,
		quality.FormatCheck:        0.15,
		quality.BalanceCheck:       0.10,
		quality.DistributionCheck:  0.15,
	}
}

// ParseWeights converts check names to a Weights map. Checks that are not
// named get weight 0, so the named weights alone must sum to 1.
func ParseWeights(named map[string]float64) (Weights, error) {
	w := make(Weights, len(named))
	for name, v := range named {
		k, err := quality.ParseCheckKind(name)
		if err != nil {
			return nil, &quality.ConfigError{Field: "weights", Reason: fmt.Sprintf("unknown check %q", name)}
		}
		w[k] = v
	}
	return w, ValidateWeights(w)
}

// ValidateWeights requires known checks, non-negative weights and a sum of
// 1 within floating tolerance.
func ValidateWeights(w Weights) error {
	var sum float64
	for k, v := range w {
		if _, err := quality.ParseCheckKind(k.String()); err != nil {
			return &quality.ConfigError{Field: "weights", Reason: fmt.Sprintf("unknown check %d", int(k))}
		}
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return &quality.ConfigError{Field: "weights." + k.String(), Reason: fmt.Sprintf("must be non-negative, got %v", v)}
		}
		sum += v
	}
	if math.Abs(sum-1) > weightTolerance {
		return &quality.ConfigError{Field: "weights", Reason: fmt.Sprintf("must sum to 1, got %.6f", sum)}
	}
	return nil
}

// SubScore is one check's contribution to the overall score.
type SubScore struct {
	Check  quality.CheckKind
	Score  float64
	Weight float64
	Status quality.Status
}

// QualityScore is the aggregate of a run. Checks follows the result order
// and only holds scored results.
type QualityScore struct {
	Overall float64
	Checks  []SubScore
	// Weakest is the check with the lowest sub-score; meaningless when
	// Checks is empty.
	Weakest quality.CheckKind
}

// Score maps one result to its sub-score. ok is false for results that
// errored or were skipped.
func Score(res quality.CheckResult) (score float64, ok bool) {
	if !res.Scored() {
		return 0, false
	}
	switch res.Check {
	case quality.MissingValuesCheck:
		score = 1 - res.Summary
	case quality.OutliersCheck:
		score = 1
		if res.Rows > 0 {
			score = 1 - math.Min(res.Summary/float64(res.Rows), 1)
		}
	case quality.DuplicatesCheck:
		score = 1
		if det, isDup := res.Details.(*quality.DuplicateDetails); isDup && res.Rows > 0 {
			score = 1 - float64(det.ClusterRows)/float64(res.Rows)
		}
	case quality.FormatCheck:
		score = res.Summary
	case quality.BalanceCheck:
		score = 1 - math.Min((res.Summary-1)/RatioCap, 1)
	case quality.DistributionCheck:
		score = 1 - math.Min(math.Abs(res.Summary)/SkewCap, 1)
	default:
		return 0, false
	}
	return clamp01(score), true
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Aggregate computes the weighted mean of the scored results' sub-scores,
// renormalised over the checks that were scored. When the scored checks all
// have zero weight it is their unweighted mean. With nothing scored the
// overall score is 0.
func Aggregate(results []quality.CheckResult, w Weights) (QualityScore, error) {
	if w == nil {
		w = DefaultWeights()
	}
	if err := ValidateWeights(w); err != nil {
		return QualityScore{}, err
	}
	var qs QualityScore
	var num, den float64
	lowest := math.Inf(1)
	for _, res := range results {
		s, ok := Score(res)
		if !ok {
			continue
		}
		sub := SubScore{Check: res.Check, Score: s, Weight: w[res.Check], Status: res.Status}
		qs.Checks = append(qs.Checks, sub)
		num += sub.Score * sub.Weight
		den += sub.Weight
		if s < lowest {
			lowest = s
			qs.Weakest = res.Check
		}
	}
	switch {
	case den > 0:
		qs.Overall = clamp01(num / den)
	case len(qs.Checks) > 0:
		// every scored check carries zero weight: fall back to the plain mean
		var sum float64
		for _, sub := range qs.Checks {
			sum += sub.Score
		}
		qs.Overall = clamp01(sum / float64(len(qs.Checks)))
	}
	return qs, nil
}

// Recommendation is an actionable suggestion for one weak check.
type Recommendation struct {
	Check   quality.CheckKind
	Score   float64
	Message string
}

func (r Recommendation) String() string {
	return fmt.Sprintf("[%s %.2f] %s", r.Check, r.Score, r.Message)
}

// Recommend returns a recommendation for every sub-score below threshold,
// weakest first. results supplies the details quoted in the messages.
func Recommend(qs QualityScore, results []quality.CheckResult, threshold float64) []Recommendation {
	if threshold <= 0 {
		threshold = DefaultWarnThreshold
	}
	byCheck := make(map[quality.CheckKind]quality.CheckResult, len(results))
	for _, r := range results {
		byCheck[r.Check] = r
	}
	var out []Recommendation
	for _, sub := range qs.Checks {
		if sub.Score >= threshold {
			continue
		}
		out = append(out, Recommendation{Check: sub.Check, Score: sub.Score, Message: advice(byCheck[sub.Check])})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	return out
}

func advice(res quality.CheckResult) string {
	switch det := res.Details.(type) {
	case *quality.MissingDetails:
		return fmt.Sprintf("column %q is %.1f%% missing; impute with `fix missing` (median for skewed numerics, mode for categories) or drop it",
			det.WorstColumn, res.Summary*100)
	case *quality.OutlierDetails:
		return fmt.Sprintf("%d rows hold %s outliers; review them, then cap or remove with `fix outliers`",
			len(det.Rows), det.Method)
	case *quality.DuplicateDetails:
		return fmt.Sprintf("%d redundant rows in %d duplicate groups; deduplicate with `fix duplicates`",
			det.DuplicateRows, len(det.Clusters))
	case *quality.FormatDetails:
		worst := ""
		rate := 1.0
		for _, c := range det.Columns {
			if c.MatchRate < rate {
				worst, rate = c.Column, c.MatchRate
			}
		}
		return fmt.Sprintf("column %q matches its format in only %.1f%% of values; standardise it at the source",
			worst, rate*100)
	case *quality.BalanceDetails:
		return fmt.Sprintf("target %q has an imbalance ratio of %.2f; rebalance with `fix balance` (undersample, oversample or smote)",
			det.Target, det.Ratio)
	case *quality.DistributionDetails:
		return fmt.Sprintf("column %q has skewness %.2f; apply `fix transform` (auto picks box-cox, log1p or a reflected log)",
			det.WorstColumn, res.Summary)
	}
	return fmt.Sprintf("%s scored low; inspect its issues", res.Check)
}
