package quality

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/datacheck-cli/internal/dataset"
)

func logNormal(n int, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Exp(rng.NormFloat64())
	}
	return out
}

func TestCheckDataDistributionFlagsSkew(t *testing.T) {
	ds := mustDataset(t,
		dataset.FloatColumn("income", logNormal(500, 1)),
		dataset.FloatColumn("other", logNormal(500, 9)),
	)
	res, err := CheckDataDistribution(ds, DefaultDistributionOptions())
	require.NoError(t, err)

	det := res.Details.(*DistributionDetails)
	require.Len(t, det.Columns, 2)
	assert.Greater(t, res.Summary, 1.0)
	assert.Len(t, res.Issues, 2)
	assert.Equal(t, TransformBoxCox, det.Columns[0].Suggested)
}

func mustColumn(t *testing.T, ds *dataset.Dataset, name string) *dataset.Column {
	t.Helper()
	c, ok := ds.Column(name)
	require.True(t, ok)
	return c
}

func TestCheckDataDistributionSymmetricPasses(t *testing.T) {
	ds := mustDataset(t, dataset.FloatColumn("x", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}))
	res, err := CheckDataDistribution(ds, DistributionOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 0, res.Summary, 1e-9)
	assert.Equal(t, StatusPass, res.Status)

	short := mustDataset(t, dataset.FloatColumn("x", []float64{1, 2}))
	res, err = CheckDataDistribution(short, DistributionOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Issues)
	assert.NotEmpty(t, res.Notes)
}

func TestTransformAutoReducesSkewOfLogNormal(t *testing.T) {
	ds := mustDataset(t, dataset.FloatColumn("income", logNormal(500, 2)))
	before := math.Abs(mustColumn(t, ds, "income").Stats().Skew)

	out, log, err := TransformNonNormal(ds, DefaultTransformFix())
	require.NoError(t, err)

	tc := mustColumn(t, out, "income_transformed")
	after := math.Abs(tc.Stats().Skew)
	assert.LessOrEqual(t, after, before)
	assert.Less(t, after, 0.5)
	assert.InDelta(t, 0, log.Params["income.lambda"], 0.3)
	assert.Equal(t, 2, out.Width(), "original column is kept")
	assert.Equal(t, 500, log.RowsAffected)
}

func TestTransformAutoChoosesByDomain(t *testing.T) {
	ds := mustDataset(t,
		dataset.FloatColumn("zeros", []float64{0, 0, 0, 1, 1, 2, 10, 50}),
		dataset.FloatColumn("left", []float64{1, 40, 45, 48, 49, 50, 50, 50}),
	)
	out, log, err := TransformNonNormal(ds, TransformFix{Columns: []string{"zeros", "left"}, InPlace: true})
	require.NoError(t, err)

	assert.Equal(t, 0.0, log.Params["zeros.shift"])
	assert.Equal(t, 51.0, log.Params["left.reflect"])
	assert.Equal(t, 2, out.Width())

	z := mustColumn(t, out, "zeros")
	v, _ := z.Float(7)
	assert.InDelta(t, math.Log1p(50), v, 1e-12)

	l := mustColumn(t, out, "left")
	assert.Less(t, math.Abs(l.Stats().Skew), math.Abs(mustColumn(t, ds, "left").Stats().Skew))
}

func TestTransformDomainErrorsLeaveNoPartialFix(t *testing.T) {
	ds := mustDataset(t,
		dataset.FloatColumn("pos", logNormal(50, 3)),
		dataset.FloatColumn("zero", []float64{0, 1, 2, 3, 40}),
	)
	_, _, err := TransformNonNormal(ds, TransformFix{Columns: []string{"pos", "zero"}, Method: TransformBoxCox})
	assert.ErrorIs(t, err, ErrDomain)

	_, _, err = TransformNonNormal(ds, TransformFix{Columns: []string{"zero"}, Method: TransformLog})
	assert.ErrorIs(t, err, ErrDomain)

	neg := mustDataset(t, dataset.FloatColumn("neg", []float64{-1, 2, 3}))
	_, _, err = TransformNonNormal(neg, TransformFix{Columns: []string{"neg"}, Method: TransformSqrt})
	assert.ErrorIs(t, err, ErrDomain)

	_, _, err = TransformNonNormal(neg, TransformFix{Columns: []string{"neg"}, Method: TransformCustom, Custom: math.Log})
	assert.ErrorIs(t, err, ErrDomain)

	_, _, err = TransformNonNormal(neg, TransformFix{Method: TransformCustom})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestTransformRejectsExistingOutputColumn(t *testing.T) {
	ds := mustDataset(t,
		dataset.FloatColumn("x", logNormal(50, 4)),
		dataset.FloatColumn("x_transformed", make([]float64, 50)),
	)
	_, _, err := TransformNonNormal(ds, TransformFix{Columns: []string{"x"}, Method: TransformLog})
	assert.ErrorIs(t, err, ErrDataShape)
}

func TestTransformKeepsNulls(t *testing.T) {
	ds := mustDataset(t, dataset.FloatColumn("x", []float64{1, math.NaN(), 4, 9}))
	out, _, err := TransformNonNormal(ds, TransformFix{Columns: []string{"x"}, Method: TransformSqrt, InPlace: true})
	require.NoError(t, err)
	c := mustColumn(t, out, "x")
	assert.True(t, c.IsNull(1))
	v, _ := c.Float(3)
	assert.Equal(t, 3.0, v)
}

func TestParseTransformMethod(t *testing.T) {
	m, err := ParseTransformMethod("Box-Cox")
	require.NoError(t, err)
	assert.Equal(t, TransformBoxCox, m)

	_, err = ParseTransformMethod("custom")
	assert.ErrorIs(t, err, ErrConfig)
	_, err = ParseTransformMethod("yeo-johnson")
	assert.ErrorIs(t, err, ErrConfig)
}
