package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/datacheck-cli/internal/quality"
	"github.com/KaramelBytes/datacheck-cli/internal/scoring"
)

// Report is the immutable outcome of one Run.
type Report struct {
	id       string
	dataset  string
	rows     int
	cols     int
	created  time.Time
	duration time.Duration
	results  []quality.CheckResult
	score    scoring.QualityScore
	recs     []scoring.Recommendation
}

func (r *Report) ID() string              { return r.id }
func (r *Report) Dataset() string         { return r.dataset }
func (r *Report) CreatedAt() time.Time    { return r.created }
func (r *Report) Duration() time.Duration { return r.duration }

// Score returns the aggregate score.
func (r *Report) Score() scoring.QualityScore {
	qs := r.score
	qs.Checks = append([]scoring.SubScore(nil), r.score.Checks...)
	return qs
}

// Results returns deep copies of the check results in run order.
func (r *Report) Results() []quality.CheckResult {
	out := make([]quality.CheckResult, len(r.results))
	for i, res := range r.results {
		out[i] = res.Clone()
	}
	return out
}

// Result returns a deep copy of the result of one check.
func (r *Report) Result(k quality.CheckKind) (quality.CheckResult, bool) {
	for _, res := range r.results {
		if res.Check == k {
			return res.Clone(), true
		}
	}
	return quality.CheckResult{}, false
}

// Recommendations returns the recommendations, weakest check first.
func (r *Report) Recommendations() []scoring.Recommendation {
	return append([]scoring.Recommendation(nil), r.recs...)
}

// Errors returns the errors of checks that could not run.
func (r *Report) Errors() []error {
	var out []error
	for _, res := range r.results {
		if res.Err != nil {
			out = append(out, res.Err)
		}
	}
	return out
}

// ViewRecommendations renders the recommendations as ordered strings.
func (r *Report) ViewRecommendations() []string {
	out := make([]string, len(r.recs))
	for i, rec := range r.recs {
		out[i] = rec.String()
	}
	return out
}

func statusIcon(s quality.Status) string {
	switch s {
	case quality.StatusPass:
		return "✓"
	case quality.StatusWarn:
		return "⚠"
	case quality.StatusSkipped:
		return "-"
	}
	return "✗"
}

// Summary renders a plain-text digest: overall score, one line per check
// with its status, sub-score and summary figure, then notes and
// recommendations.
func (r *Report) Summary() string {
	sub := map[quality.CheckKind]float64{}
	for _, s := range r.score.Checks {
		sub[s.Check] = s.Score
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Data quality report %s\n", r.id)
	fmt.Fprintf(&b, "Dataset: %s (%d rows x %d columns)\n", r.dataset, r.rows, r.cols)
	fmt.Fprintf(&b, "Overall score: %.3f\n\n", r.score.Overall)
	for _, res := range r.results {
		score := "  n/a"
		if s, ok := sub[res.Check]; ok {
			score = fmt.Sprintf("%.3f", s)
		}
		line := fmt.Sprintf("%s %-15s %-7s %s", statusIcon(res.Status), res.Check, res.Status, score)
		if res.Scored() {
			line += fmt.Sprintf("  %s=%.4g  issues=%d", res.SummaryLabel, res.Summary, len(res.Issues))
		}
		b.WriteString(strings.TrimRight(line, " ") + "\n")
		for _, n := range res.Notes {
			fmt.Fprintf(&b, "    - %s\n", n)
		}
	}
	if len(r.recs) > 0 {
		b.WriteString("\nRecommendations:\n")
		for i, rec := range r.recs {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, rec)
		}
	}
	return b.String()
}
