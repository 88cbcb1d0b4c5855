package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/datacheck-cli/internal/quality"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Empty(t, c.Checks)
	assert.Equal(t, 0.8, c.WarnThreshold)
	assert.Equal(t, int64(42), c.Seed)
	assert.Equal(t, "warn", c.LogLevel)
	assert.Equal(t, slog.LevelWarn, c.Level())
	assert.Equal(t, "zscore", c.Method("outliers"))
	assert.Equal(t, "undersample", c.Method("balance"))

	ec, err := c.Engine()
	require.NoError(t, err)
	assert.Nil(t, ec.Weights)
	assert.Equal(t, "zscore", ec.OutlierMethod)
	assert.Equal(t, 0.1, ec.Contamination)
}

func TestLoadFileAndEnv(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	body := `
checks: [missing, outliers, balance]
target: churn
parallel: true
thresholds:
  outliers: 2.5
weights:
  missing_values: 0.5
  outliers: 0.3
  balance: 0.2
methods:
  outliers: iqr
delimiter: ";"
`
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	t.Setenv("DATACHECK_SEED", "7")
	t.Setenv("DATACHECK_LOG_LEVEL", "debug")

	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.Seed)
	assert.Equal(t, slog.LevelDebug, c.Level())
	assert.Equal(t, "auto", c.Method("transform"))

	ec, err := c.Engine()
	require.NoError(t, err)
	assert.Equal(t, []quality.CheckKind{quality.MissingValuesCheck, quality.OutliersCheck, quality.BalanceCheck}, ec.Checks)
	assert.Equal(t, "churn", ec.Target)
	assert.True(t, ec.Parallel)
	assert.Equal(t, 2.5, ec.Thresholds[quality.OutliersCheck])
	assert.Equal(t, 0.3, ec.Weights[quality.OutliersCheck])
	assert.Equal(t, "iqr", ec.OutlierMethod)
	assert.Equal(t, ';', c.Loader().Delimiter)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte("checks: [missing\n"), 0o644))
	_, err := Load(p)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Global)
		field  string
	}{
		{"warn threshold range", func(c *Global) { c.WarnThreshold = 1.5 }, "warn_threshold"},
		{"log level", func(c *Global) { c.LogLevel = "verbose" }, "log_level"},
		{"contamination", func(c *Global) { c.Contamination = 0.9 }, "contamination"},
		{"unknown check", func(c *Global) { c.Checks = []string{"freshness"} }, "checks"},
		{"weights sum", func(c *Global) { c.Weights = map[string]float64{"missing": 0.4} }, "weights"},
		{"negative threshold", func(c *Global) { c.Thresholds = map[string]float64{"outliers": -1} }, "thresholds[outliers]"},
		{"threshold check", func(c *Global) { c.Thresholds = map[string]float64{"freshness": 1} }, "thresholds.freshness"},
		{"method name", func(c *Global) { c.Methods["balance"] = "mixup" }, "methods.balance"},
		{"method key", func(c *Global) { c.Methods["cleanup"] = "x" }, "methods.cleanup"},
		{"delimiter", func(c *Global) { c.Delimiter = ";;" }, "delimiter"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
			require.NoError(t, err)
			tc.mutate(c)
			err = c.Validate()
			require.ErrorIs(t, err, quality.ErrConfig)
			var ce *quality.ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tc.field, ce.Field)
		})
	}
}

func TestSetAndSaveRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	c, err := Load(p)
	require.NoError(t, err)

	require.NoError(t, c.Set("parallel", "true"))
	require.NoError(t, c.Set("checks", "missing, duplicates"))
	require.NoError(t, c.Set("thresholds.duplicates", "0.85"))
	require.NoError(t, c.Set("methods.missing", "median"))
	require.NoError(t, c.Set("delimiter", "tab"))

	assert.ErrorIs(t, c.Set("warn_threshold", "abc"), quality.ErrConfig)
	assert.ErrorIs(t, c.Set("nope", "1"), quality.ErrConfig)
	assert.ErrorIs(t, c.Set("weights.missing", "0.5"), quality.ErrConfig)
	assert.Empty(t, c.Weights, "failed Set must not leave partial state")

	require.NoError(t, Save(c, p))
	back, err := Load(p)
	require.NoError(t, err)
	assert.True(t, back.Parallel)
	assert.Equal(t, []string{"missing", "duplicates"}, back.Checks)
	assert.Equal(t, 0.85, back.Thresholds["duplicates"])
	assert.Equal(t, "median", back.Method("missing"))
	assert.Equal(t, "first", back.Method("duplicates"))
	assert.Equal(t, '\t', back.Loader().Delimiter)

	assert.Contains(t, back.Lines(), "parallel: true")
	assert.Contains(t, back.Lines(), "methods.missing: median")
}

func TestSetWeightsAsList(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	require.NoError(t, c.Set("weights", "missing=0.6, outliers=0.4"))
	assert.Equal(t, map[string]float64{"missing": 0.6, "outliers": 0.4}, c.Weights)
	assert.ErrorIs(t, c.Set("weights", "missing=0.6"), quality.ErrConfig)
	assert.ErrorIs(t, c.Set("thresholds", "outliers"), quality.ErrConfig)
	assert.Len(t, c.Weights, 2)
}
