package dataset

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T) *Dataset {
	t.Helper()
	ds, err := New("people",
		FloatColumn("age", []float64{25, 30, math.NaN(), 41}),
		StringColumn("city", []string{"Oslo", "Lima", "Oslo", "Lima"}),
	)
	require.NoError(t, err)
	return ds
}

func TestNewRejectsRaggedColumns(t *testing.T) {
	_, err := New("bad",
		FloatColumn("a", []float64{1, 2, 3}),
		FloatColumn("b", []float64{1, 2}),
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShape))

	var se *ShapeError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "b", se.Column)
}

func TestNewRejectsDuplicateNames(t *testing.T) {
	_, err := New("bad", FloatColumn("a", []float64{1}), FloatColumn("a", []float64{2}))
	assert.ErrorIs(t, err, ErrShape)
}

func TestFromRecordsInfersKinds(t *testing.T) {
	ts := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	ds, err := FromRecords("mixed", []string{"n", "flag", "when", "label"}, [][]any{
		{1, true, ts, "a"},
		{2.5, false, ts, "b"},
		{nil, nil, nil, "a"},
	})
	require.NoError(t, err)

	kinds := map[string]Kind{}
	for _, c := range ds.Columns() {
		kinds[c.Name()] = c.Kind()
	}
	assert.Equal(t, Numeric, kinds["n"])
	assert.Equal(t, Boolean, kinds["flag"])
	assert.Equal(t, Datetime, kinds["when"])
	assert.Equal(t, Categorical, kinds["label"])

	_, err = FromRecords("ragged", []string{"a", "b"}, [][]any{{1}})
	assert.ErrorIs(t, err, ErrShape)
}

func TestInferKindTextVersusCategorical(t *testing.T) {
	vals := make([]any, 0, 60)
	for i := 0; i < 60; i++ {
		vals = append(vals, string(rune('a'+i%26))+string(rune('A'+i/26))+"-note")
	}
	assert.Equal(t, Text, InferKind(vals))
	assert.Equal(t, Text, InferKind([]any{nil, nil}))
}

func TestStatsAreCachedAndInvalidatedOnEdit(t *testing.T) {
	ds := sample(t)
	age, ok := ds.Column("age")
	require.True(t, ok)

	st := age.Stats()
	assert.Equal(t, 3, st.Count)
	assert.Equal(t, 1, st.Nulls)
	assert.InDelta(t, 32.0, st.Mean, 1e-9)
	assert.InDelta(t, 30.0, st.Median, 1e-9)

	ed := ds.Edit()
	require.NoError(t, ed.Set("age", 2, 100.0))
	next := ed.Commit()

	edited, _ := next.Column("age")
	assert.Equal(t, 0, edited.Stats().Nulls)
	assert.InDelta(t, 49.0, edited.Stats().Mean, 1e-9)

	// the original handle is untouched
	assert.True(t, age.IsNull(2))
	assert.Equal(t, 1, age.Stats().Nulls)
}

func TestEditorSharesUntouchedColumns(t *testing.T) {
	ds := sample(t)
	ed := ds.Edit()
	require.NoError(t, ed.Set("age", 0, 26.0))
	next := ed.Commit()

	oldCity, _ := ds.Column("city")
	newCity, _ := next.Column("city")
	assert.Same(t, oldCity, newCity)

	oldAge, _ := ds.Column("age")
	newAge, _ := next.Column("age")
	assert.NotSame(t, oldAge, newAge)

	err := ds.Edit().Set("missing", 0, 1.0)
	assert.ErrorIs(t, err, ErrShape)
}

func TestSelectDropAppendRows(t *testing.T) {
	ds := sample(t)

	dropped := ds.DropRows([]int{0, 2})
	assert.Equal(t, 2, dropped.Rows())
	assert.Equal(t, []any{30.0, "Lima"}, dropped.Row(0))

	picked := ds.SelectRows([]int{3, 3})
	assert.Equal(t, 2, picked.Rows())
	assert.Equal(t, picked.Row(0), picked.Row(1))

	grown, err := ds.AppendRows([][]any{{50.0, "Rome"}})
	require.NoError(t, err)
	assert.Equal(t, 5, grown.Rows())
	assert.Equal(t, 4, ds.Rows())

	_, err = ds.AppendRows([][]any{{1.0}})
	assert.ErrorIs(t, err, ErrShape)
}

func TestLookupUnknownColumn(t *testing.T) {
	ds := sample(t)
	cols, err := ds.Lookup("test", nil)
	require.NoError(t, err)
	assert.Len(t, cols, 2)

	_, err = ds.Lookup("test", []string{"age", "nope"})
	assert.ErrorIs(t, err, ErrShape)
}

func TestQuantileAndSkewness(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.75, Quantile(sorted, 0.25), 1e-12)
	assert.InDelta(t, 2.5, Quantile(sorted, 0.5), 1e-12)
	assert.Equal(t, 0.0, Skewness([]float64{5, 5, 5, 5}))
	assert.Equal(t, 0.0, Skewness([]float64{1, 2}))
	assert.Greater(t, Skewness([]float64{1, 1, 1, 2, 10}), 1.0)

	med, mad := MedianMAD([]float64{1, 1, 2, 2, 4, 6, 9})
	assert.Equal(t, 2.0, med)
	assert.Equal(t, 1.0, mad)
}
