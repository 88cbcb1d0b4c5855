package quality

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/datacheck-cli/internal/dataset"
)

func mustDataset(t *testing.T, cols ...*dataset.Column) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New("test", cols...)
	require.NoError(t, err)
	return ds
}

func ageWithGaps(n, gaps int) []float64 {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = float64(20 + i%40)
		if i < gaps {
			vals[i] = math.NaN()
		}
	}
	return vals
}

func TestCheckMissingValuesReportsWorstColumnRatio(t *testing.T) {
	ds := mustDataset(t,
		dataset.FloatColumn("age", ageWithGaps(100, 10)),
		dataset.FloatColumn("score", ageWithGaps(100, 0)),
	)
	res, err := CheckMissingValues(ds, MissingOptions{})
	require.NoError(t, err)

	assert.Equal(t, MissingValuesCheck, res.Check)
	assert.InDelta(t, 0.10, res.Summary, 1e-12)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, "age", res.Issues[0].Column)
	assert.Len(t, res.Issues[0].Rows, 10)
	assert.Equal(t, StatusWarn, res.Status)

	det := res.Details.(*MissingDetails)
	assert.Equal(t, "age", det.WorstColumn)
	assert.Equal(t, 10, det.TotalMissing)
	assert.InDelta(t, 0.05, det.CellRatio, 1e-12)
}

func TestCheckMissingValuesThreshold(t *testing.T) {
	ds := mustDataset(t, dataset.FloatColumn("age", ageWithGaps(100, 10)))

	res, err := CheckMissingValues(ds, MissingOptions{Threshold: 0.2})
	require.NoError(t, err)
	assert.Empty(t, res.Issues)
	assert.Equal(t, StatusPass, res.Status)
	assert.InDelta(t, 0.10, res.Summary, 1e-12)

	_, err = CheckMissingValues(ds, MissingOptions{Threshold: 1})
	assert.ErrorIs(t, err, ErrConfig)

	_, err = CheckMissingValues(ds, MissingOptions{Columns: []string{"nope"}})
	assert.ErrorIs(t, err, ErrDataShape)
}

func TestFixMissingValuesFillsOnlyNulls(t *testing.T) {
	vals := []float64{1, math.NaN(), 3, math.NaN(), 5}
	ds := mustDataset(t, dataset.FloatColumn("x", vals))

	out, log, err := FixMissingValues(ds, MissingFix{Strategy: FillMean})
	require.NoError(t, err)

	c, _ := out.Column("x")
	assert.Zero(t, c.NullCount())
	for i, v := range vals {
		got, ok := c.Float(i)
		require.True(t, ok)
		if math.IsNaN(v) {
			assert.InDelta(t, 3.0, got, 1e-12)
		} else {
			assert.Equal(t, v, got)
		}
	}
	assert.Equal(t, 2, log.RowsAffected)
	assert.Equal(t, 2, log.CellsChanged())

	orig, _ := ds.Column("x")
	assert.Equal(t, 2, orig.NullCount(), "input dataset must not change")
}

func TestFixMissingValuesAutoChoosesByKindAndSkew(t *testing.T) {
	ds := mustDataset(t,
		dataset.FloatColumn("skewed", []float64{1, 1, 1, 2, 2, 3, 50, math.NaN()}),
		dataset.StringColumn("city", []string{"Oslo", "Oslo", "Lima", "Oslo", "Lima", "Oslo", "Lima", ""}),
	)
	ed := ds.Edit()
	require.NoError(t, ed.Set("city", 7, nil))
	ds = ed.Commit()

	out, log, err := FixMissingValues(ds, MissingFix{Strategy: FillAuto})
	require.NoError(t, err)

	sk, _ := out.Column("skewed")
	v, _ := sk.Float(7)
	assert.Equal(t, 2.0, v, "skewed numeric column uses the median")

	city, _ := out.Column("city")
	s, _ := city.String(7)
	assert.Equal(t, "Oslo", s, "categorical column uses the mode")
	assert.Len(t, log.Columns, 2)
}

func TestFixMissingValuesConstant(t *testing.T) {
	ds := mustDataset(t, dataset.FloatColumn("x", []float64{1, math.NaN()}))

	_, _, err := FixMissingValues(ds, MissingFix{Strategy: FillConstant})
	assert.ErrorIs(t, err, ErrConfig)

	_, _, err = FixMissingValues(ds, MissingFix{Strategy: FillConstant, FillValues: map[string]any{"x": "abc"}})
	assert.ErrorIs(t, err, ErrConfig)

	out, _, err := FixMissingValues(ds, MissingFix{Strategy: FillConstant, FillValues: map[string]any{"x": "7"}})
	require.NoError(t, err)
	c, _ := out.Column("x")
	v, ok := c.Float(1)
	require.True(t, ok)
	assert.Equal(t, 7.0, v)
	assert.Equal(t, dataset.Numeric, c.Kind())
}

func TestFixMissingValuesDomainAndUnresolved(t *testing.T) {
	ds := mustDataset(t,
		dataset.NewColumn("empty", dataset.Numeric, []any{nil, nil}),
		dataset.NewColumn("label", dataset.Categorical, []any{"a", nil}),
	)
	_, _, err := FixMissingValues(ds, MissingFix{Strategy: FillMean, Columns: []string{"label"}})
	assert.ErrorIs(t, err, ErrDomain)

	out, log, err := FixMissingValues(ds, MissingFix{Strategy: FillMedian})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"empty", "label"}, log.Unresolved)
	assert.Equal(t, 2, out.Rows())
	assert.Zero(t, log.RowsAffected)
}

func TestParseMissingStrategy(t *testing.T) {
	s, err := ParseMissingStrategy(" Median ")
	require.NoError(t, err)
	assert.Equal(t, FillMedian, s)

	_, err = ParseMissingStrategy("interpolate")
	assert.ErrorIs(t, err, ErrConfig)
}
