package scoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/datacheck-cli/internal/quality"
)

func result(check quality.CheckKind, summary float64, rows int, details any) quality.CheckResult {
	return quality.CheckResult{Check: check, Summary: summary, Rows: rows, Details: details, Status: quality.StatusWarn}
}

func TestScoreFormulas(t *testing.T) {
	cases := []struct {
		name string
		res  quality.CheckResult
		want float64
	}{
		{"missing", result(quality.MissingValuesCheck, 0.1, 100, &quality.MissingDetails{}), 0.9},
		{"outliers", result(quality.OutliersCheck, 5, 100, &quality.OutlierDetails{}), 0.95},
		{"outliers capped", result(quality.OutliersCheck, 500, 100, &quality.OutlierDetails{}), 0},
		{"duplicates", result(quality.DuplicatesCheck, 2, 10, &quality.DuplicateDetails{DuplicateRows: 2, ClusterRows: 4}), 0.6},
		{"format", result(quality.FormatCheck, 0.75, 10, &quality.FormatDetails{}), 0.75},
		{"balance", result(quality.BalanceCheck, 4, 100, &quality.BalanceDetails{}), 1 - 3.0/9.0},
		{"balance perfect", result(quality.BalanceCheck, 1, 100, &quality.BalanceDetails{}), 1},
		{"distribution", result(quality.DistributionCheck, 1.5, 100, &quality.DistributionDetails{}), 0.5},
		{"distribution capped", result(quality.DistributionCheck, 12, 100, &quality.DistributionDetails{}), 0},
		{"empty dataset", result(quality.OutliersCheck, 0, 0, &quality.OutlierDetails{}), 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Score(tc.res)
			require.True(t, ok)
			assert.InDelta(t, tc.want, got, 1e-12)
		})
	}

	_, ok := Score(quality.Failed(quality.FormatCheck, 10, errors.New("x")))
	assert.False(t, ok)
}

func TestScoreIsMonotonic(t *testing.T) {
	prev := 2.0
	for _, ratio := range []float64{0, 0.1, 0.3, 0.6, 1} {
		s, _ := Score(result(quality.MissingValuesCheck, ratio, 10, nil))
		assert.Less(t, s, prev)
		prev = s
	}
}

func TestValidateWeights(t *testing.T) {
	assert.NoError(t, ValidateWeights(DefaultWeights()))

	w := DefaultWeights()
	w[quality.MissingValuesCheck] = 0.5
	assert.ErrorIs(t, ValidateWeights(w), quality.ErrConfig)

	w = Weights{quality.MissingValuesCheck: 1.2, quality.OutliersCheck: -0.2}
	assert.ErrorIs(t, ValidateWeights(w), quality.ErrConfig)

	w = Weights{quality.MissingValuesCheck: 0.5, quality.OutliersCheck: 0.5 + 1e-9}
	assert.NoError(t, ValidateWeights(w))

	_, err := ParseWeights(map[string]float64{"missing": 0.5, "freshness": 0.5})
	assert.ErrorIs(t, err, quality.ErrConfig)

	parsed, err := ParseWeights(map[string]float64{"missing": 0.5, "duplicates": 0.5})
	require.NoError(t, err)
	assert.Equal(t, 0.5, parsed[quality.DuplicatesCheck])
}

func TestAggregateWeightedMeanOverScoredChecks(t *testing.T) {
	results := []quality.CheckResult{
		result(quality.MissingValuesCheck, 0.2, 100, &quality.MissingDetails{WorstColumn: "age"}),
		result(quality.FormatCheck, 1, 100, &quality.FormatDetails{MeanMatch: 1}),
		quality.Skipped(quality.BalanceCheck, 100, "no target"),
	}
	w := Weights{quality.MissingValuesCheck: 0.25, quality.FormatCheck: 0.25, quality.BalanceCheck: 0.5}

	qs, err := Aggregate(results, w)
	require.NoError(t, err)
	assert.InDelta(t, (0.8*0.25+1*0.25)/0.5, qs.Overall, 1e-12)
	assert.Len(t, qs.Checks, 2)
	assert.Equal(t, quality.MissingValuesCheck, qs.Weakest)

	for _, sub := range qs.Checks {
		assert.GreaterOrEqual(t, sub.Score, 0.0)
		assert.LessOrEqual(t, sub.Score, 1.0)
	}
}

func TestAggregateRejectsBadWeightsAndHandlesNothingScored(t *testing.T) {
	_, err := Aggregate(nil, Weights{quality.MissingValuesCheck: 0.3})
	assert.ErrorIs(t, err, quality.ErrConfig)

	qs, err := Aggregate([]quality.CheckResult{quality.Skipped(quality.BalanceCheck, 0, "no target")}, nil)
	require.NoError(t, err)
	assert.Zero(t, qs.Overall)
	assert.Empty(t, qs.Checks)
}

func TestAggregateZeroWeightScoredChecksUsePlainMean(t *testing.T) {
	perfect := []quality.CheckResult{
		result(quality.OutliersCheck, 0, 100, &quality.OutlierDetails{}),
	}
	qs, err := Aggregate(perfect, Weights{quality.MissingValuesCheck: 1})
	require.NoError(t, err)
	require.Len(t, qs.Checks, 1)
	assert.Zero(t, qs.Checks[0].Weight)
	assert.Equal(t, 1.0, qs.Overall)

	mixed := []quality.CheckResult{
		result(quality.MissingValuesCheck, 0.2, 100, &quality.MissingDetails{}),
		result(quality.OutliersCheck, 10, 100, &quality.OutlierDetails{}),
	}
	qs, err = Aggregate(mixed, Weights{quality.DuplicatesCheck: 1})
	require.NoError(t, err)
	assert.InDelta(t, (0.8+0.9)/2, qs.Overall, 1e-12)
}

func TestRecommendSortedAscending(t *testing.T) {
	results := []quality.CheckResult{
		result(quality.MissingValuesCheck, 0.3, 100, &quality.MissingDetails{WorstColumn: "age"}),
		result(quality.DuplicatesCheck, 15, 100, &quality.DuplicateDetails{DuplicateRows: 15, ClusterRows: 25, Clusters: make([][]int, 10)}),
		result(quality.DistributionCheck, 2.4, 100, &quality.DistributionDetails{WorstColumn: "income", MaxAbsSkew: 2.4}),
	}
	qs, err := Aggregate(results, nil)
	require.NoError(t, err)

	recs := Recommend(qs, results, DefaultWarnThreshold)
	require.Len(t, recs, 3)
	assert.Equal(t, quality.DistributionCheck, recs[0].Check)
	assert.Equal(t, quality.MissingValuesCheck, recs[1].Check)
	assert.Equal(t, quality.DuplicatesCheck, recs[2].Check)
	for i := 1; i < len(recs); i++ {
		assert.LessOrEqual(t, recs[i-1].Score, recs[i].Score)
	}
	assert.Contains(t, recs[1].Message, `"age"`)
	assert.Contains(t, recs[0].String(), "[distribution 0.20]")
}
