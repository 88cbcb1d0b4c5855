package engine

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/datacheck-cli/internal/dataset"
	"github.com/KaramelBytes/datacheck-cli/internal/quality"
	"github.com/KaramelBytes/datacheck-cli/internal/scoring"
)

func customers(t *testing.T) *dataset.Dataset {
	t.Helper()
	n := 40
	age := make([]float64, n)
	income := make([]float64, n)
	email := make([]string, n)
	label := make([]string, n)
	for i := 0; i < n; i++ {
		age[i] = float64(20 + i%30)
		income[i] = math.Exp(float64(i%10) / 2)
		email[i] = "user" + string(rune('a'+i%26)) + string(rune('a'+i/26)) + "@example.com"
		label[i] = "yes"
		if i%4 == 0 {
			label[i] = "no"
		}
	}
	age[3] = math.NaN()
	age[7] = 500
	email[5] = "broken"
	ds, err := dataset.New("customers",
		dataset.FloatColumn("age", age),
		dataset.FloatColumn("income", income),
		dataset.StringColumn("email", email),
		dataset.StringColumn("churn", label),
	)
	require.NoError(t, err)
	return ds
}

func TestRunAllChecks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Target = "churn"
	rep, err := RunQualityCheck(context.Background(), customers(t), cfg)
	require.NoError(t, err)

	require.Len(t, rep.Results(), len(quality.AllChecks))
	for i, res := range rep.Results() {
		assert.Equal(t, quality.AllChecks[i], res.Check)
		assert.True(t, res.Scored(), res.Check.String())
	}
	assert.NotEmpty(t, rep.ID())
	assert.Greater(t, rep.Score().Overall, 0.0)
	assert.LessOrEqual(t, rep.Score().Overall, 1.0)

	missing, ok := rep.Result(quality.MissingValuesCheck)
	require.True(t, ok)
	assert.InDelta(t, 1.0/40.0, missing.Summary, 1e-12)

	outliers, _ := rep.Result(quality.OutliersCheck)
	assert.Contains(t, outliers.Issues[0].Rows, 7)

	balance, _ := rep.Result(quality.BalanceCheck)
	assert.InDelta(t, 3.0, balance.Summary, 1e-12)

	// email is inferred as email, churn (yes/no) as boolean.
	format, _ := rep.Result(quality.FormatCheck)
	assert.InDelta(t, (39.0/40.0+1)/2, format.Summary, 1e-12)
}

func TestParallelMatchesSequential(t *testing.T) {
	ds := customers(t)
	cfg := DefaultConfig()
	cfg.Target = "churn"

	seq, err := New(nil).Run(context.Background(), ds, cfg)
	require.NoError(t, err)
	cfg.Parallel = true
	par, err := New(nil).Run(context.Background(), ds, cfg)
	require.NoError(t, err)

	assert.Equal(t, seq.Score().Overall, par.Score().Overall)
	for i, res := range seq.Results() {
		other := par.Results()[i]
		assert.Equal(t, res.Check, other.Check)
		assert.Equal(t, res.Summary, other.Summary)
		assert.Equal(t, res.Status, other.Status)
	}
	assert.NotEqual(t, seq.ID(), par.ID())
}

func TestBalanceSkippedWithoutTarget(t *testing.T) {
	rep, err := RunQualityCheck(context.Background(), customers(t), DefaultConfig())
	require.NoError(t, err)
	res, ok := rep.Result(quality.BalanceCheck)
	require.True(t, ok)
	assert.Equal(t, quality.StatusSkipped, res.Status)
	for _, s := range rep.Score().Checks {
		assert.NotEqual(t, quality.BalanceCheck, s.Check)
	}
}

func TestCheckErrorRecordedUnlessFailFast(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutlierMethod = "dbscan"
	cfg.Target = "churn"

	rep, err := RunQualityCheck(context.Background(), customers(t), cfg)
	require.NoError(t, err)
	res, _ := rep.Result(quality.OutliersCheck)
	assert.Equal(t, quality.StatusError, res.Status)
	assert.ErrorIs(t, res.Err, quality.ErrConfig)
	require.Len(t, rep.Errors(), 1)

	others := 0
	for _, r := range rep.Results() {
		if r.Scored() {
			others++
		}
	}
	assert.Equal(t, len(quality.AllChecks)-1, others)

	cfg.FailFast = true
	for _, parallel := range []bool{false, true} {
		cfg.Parallel = parallel
		_, err = RunQualityCheck(context.Background(), customers(t), cfg)
		assert.ErrorIs(t, err, quality.ErrConfig)
	}
}

func TestMissingTargetIsRecordedAsShapeError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Checks = []quality.CheckKind{quality.BalanceCheck}
	cfg.Target = "segment"
	rep, err := RunQualityCheck(context.Background(), customers(t), cfg)
	require.NoError(t, err)
	res, _ := rep.Result(quality.BalanceCheck)
	assert.ErrorIs(t, res.Err, quality.ErrDataShape)
	assert.Zero(t, rep.Score().Overall)
}

func TestInvalidWeightsFailBeforeChecks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights = scoring.Weights{quality.MissingValuesCheck: 0.4}
	_, err := RunQualityCheck(context.Background(), customers(t), cfg)
	assert.ErrorIs(t, err, quality.ErrConfig)
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, parallel := range []bool{false, true} {
		cfg := DefaultConfig()
		cfg.Parallel = parallel
		_, err := New(nil).Run(ctx, customers(t), cfg)
		assert.True(t, errors.Is(err, context.Canceled))
	}
}

func TestSubsetAndDeduplicatedChecks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Checks = []quality.CheckKind{quality.DuplicatesCheck, quality.MissingValuesCheck, quality.DuplicatesCheck}
	rep, err := RunQualityCheck(context.Background(), customers(t), cfg)
	require.NoError(t, err)
	require.Len(t, rep.Results(), 2)
	assert.Equal(t, quality.DuplicatesCheck, rep.Results()[0].Check)
}

func TestSummaryAndRecommendations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Target = "churn"
	cfg.WarnThreshold = 0.99
	rep, err := RunQualityCheck(context.Background(), customers(t), cfg)
	require.NoError(t, err)

	s := rep.Summary()
	assert.Contains(t, s, "Data quality report "+rep.ID())
	assert.Contains(t, s, "customers (40 rows x 4 columns)")
	assert.Contains(t, s, "missing_values")
	assert.Contains(t, s, "Recommendations:")

	views := rep.ViewRecommendations()
	recs := rep.Recommendations()
	require.Len(t, views, len(recs))
	require.NotEmpty(t, recs)
	for i := 1; i < len(recs); i++ {
		assert.LessOrEqual(t, recs[i-1].Score, recs[i].Score)
	}
	assert.True(t, strings.HasPrefix(views[0], "["+recs[0].Check.String()))
}

func TestZeroWeightChecksStillScore(t *testing.T) {
	ds, err := dataset.New("clean", dataset.FloatColumn("x", []float64{1, 2, 3, 4, 5, 6}))
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.Checks = []quality.CheckKind{quality.MissingValuesCheck, quality.DuplicatesCheck}
	cfg.Weights = scoring.Weights{quality.FormatCheck: 1}

	rep, err := RunQualityCheck(context.Background(), ds, cfg)
	require.NoError(t, err)
	require.Len(t, rep.Score().Checks, 2)
	assert.Equal(t, 1.0, rep.Score().Overall)
}

func TestRepeatedRunsGiveIdenticalResults(t *testing.T) {
	ds := customers(t)
	cfg := DefaultConfig()
	cfg.Target = "churn"

	first, err := RunQualityCheck(context.Background(), ds, cfg)
	require.NoError(t, err)
	second, err := RunQualityCheck(context.Background(), ds, cfg)
	require.NoError(t, err)
	assert.Equal(t, first.Results(), second.Results())
	assert.Equal(t, first.Score(), second.Score())

	cfg.OutlierMethod = quality.IsolationForest.String()
	first, err = RunQualityCheck(context.Background(), ds, cfg)
	require.NoError(t, err)
	second, err = RunQualityCheck(context.Background(), ds, cfg)
	require.NoError(t, err)
	a, _ := first.Result(quality.OutliersCheck)
	b, _ := second.Result(quality.OutliersCheck)
	assert.Equal(t, a, b)
}

func TestReportResultsAreCopies(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Target = "churn"
	rep, err := RunQualityCheck(context.Background(), customers(t), cfg)
	require.NoError(t, err)

	res := rep.Results()
	res[0].Details.(*quality.MissingDetails).WorstColumn = "changed"
	res[0].Issues[0].Rows[0] = -1
	res[0].Notes = append(res[0].Notes, "changed")

	out, ok := rep.Result(quality.OutliersCheck)
	require.True(t, ok)
	out.Details.(*quality.OutlierDetails).Rows[0] = -1
	out.Issues[0].Rows[0] = -1

	missing, _ := rep.Result(quality.MissingValuesCheck)
	assert.Equal(t, "age", missing.Details.(*quality.MissingDetails).WorstColumn)
	assert.Equal(t, 3, missing.Issues[0].Rows[0])
	assert.NotContains(t, missing.Notes, "changed")

	again, _ := rep.Result(quality.OutliersCheck)
	assert.NotEqual(t, -1, again.Details.(*quality.OutlierDetails).Rows[0])
	assert.Contains(t, again.Issues[0].Rows, 7)
}
