package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/datacheck-cli/internal/dataset"
)

func TestFormatRuleMatches(t *testing.T) {
	cases := []struct {
		rule FormatRule
		in   string
		want bool
	}{
		{RuleEmail, "jane@example.com", true},
		{RuleEmail, "jane.example.com", false},
		{RuleURL, "https://example.com/path", true},
		{RuleURL, "example", false},
		{RuleIP, "192.168.0.1", true},
		{RuleIP, "::1", true},
		{RuleIP, "999.1.1.1", false},
		{RuleDate, "2024-01-31", true},
		{RuleDate, "31/01/2024", true},
		{RuleDate, "yesterday", false},
		{RuleBoolean, "Yes", true},
		{RuleBoolean, "maybe", false},
		{RuleZipcode, "12345", true},
		{RuleZipcode, "12345-6789", true},
		{RuleZipcode, "1234", false},
		{RulePhone, "+1 (555) 123-4567", true},
		{RulePhone, "12-34", false},
		{RulePhone, "call me", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.rule.Matches(tc.in), "%s(%q)", tc.rule, tc.in)
	}
}

func TestCheckDataFormatInfersEmail(t *testing.T) {
	ds := mustDataset(t,
		dataset.StringColumn("email", []string{"a@x.com", "b@y.org", "not-an-email", "c@z.net", "d@w.io"}),
		dataset.FloatColumn("n", []float64{1, 2, 3, 4, 5}),
	)
	res, err := CheckDataFormat(ds, DefaultFormatOptions())
	require.NoError(t, err)

	det := res.Details.(*FormatDetails)
	require.Len(t, det.Columns, 1)
	assert.Equal(t, RuleEmail, det.Columns[0].Rule)
	assert.True(t, det.Columns[0].Inferred)
	assert.InDelta(t, 0.8, res.Summary, 1e-12)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, []int{2}, res.Issues[0].Rows)
	assert.InDelta(t, 0.2, res.Issues[0].Severity, 1e-12)
	assert.Equal(t, StatusWarn, res.Status)
}

func TestCheckDataFormatExplicitRules(t *testing.T) {
	ds := mustDataset(t,
		dataset.StringColumn("zip", []string{"12345", "12345-6789", "1234"}),
		dataset.StringColumn("note", []string{"hello", "world", "again"}),
	)
	res, err := CheckDataFormat(ds, FormatOptions{Rules: map[string]string{"zip": "zipcode"}})
	require.NoError(t, err)
	det := res.Details.(*FormatDetails)
	require.Len(t, det.Columns, 1)
	assert.False(t, det.Columns[0].Inferred)
	assert.InDelta(t, 2.0/3.0, res.Summary, 1e-12)

	_, err = CheckDataFormat(ds, FormatOptions{Rules: map[string]string{"zip": "postcode"}})
	assert.ErrorIs(t, err, ErrConfig)

	_, err = CheckDataFormat(ds, FormatOptions{Rules: map[string]string{"postal": "zipcode"}})
	assert.ErrorIs(t, err, ErrDataShape)
}

func TestCheckDataFormatNothingToCheck(t *testing.T) {
	ds := mustDataset(t, dataset.FloatColumn("n", []float64{1, 2}))
	res, err := CheckDataFormat(ds, FormatOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Summary)
	assert.Equal(t, StatusPass, res.Status)
}

func TestCheckDataFormatReportsFirstBadRuleByColumnName(t *testing.T) {
	ds := mustDataset(t,
		dataset.StringColumn("a", []string{"x"}),
		dataset.StringColumn("b", []string{"y"}),
		dataset.StringColumn("c", []string{"z"}),
	)
	rules := map[string]string{"c": "gamma", "a": "alpha", "b": "beta"}
	for i := 0; i < 20; i++ {
		_, err := CheckDataFormat(ds, FormatOptions{Rules: rules})
		require.ErrorIs(t, err, ErrConfig)
		assert.Contains(t, err.Error(), `"alpha"`)
	}
}
