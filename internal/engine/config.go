package engine

import (
	"github.com/KaramelBytes/datacheck-cli/internal/quality"
	"github.com/KaramelBytes/datacheck-cli/internal/scoring"
)

// Config selects and parameterises the checks of one run. Zero values mean
// the per-check defaults.
type Config struct {
	// Checks to run, in this order. Empty runs every check.
	Checks []quality.CheckKind
	// Weights overrides the default score weighting.
	Weights scoring.Weights
	// Thresholds overrides each check's flagging threshold: the missing
	// ratio, |z| or IQR multiplier, fuzzy similarity, imbalance ratio and
	// |skew| respectively. Format has no threshold.
	Thresholds map[quality.CheckKind]float64
	// OutlierMethod names the outlier detection method.
	OutlierMethod string
	// Target is the class column for the balance check. Without it the
	// balance check is skipped.
	Target string
	// FormatRules maps column names to format rule names.
	FormatRules map[string]string
	// DuplicateColumns restricts duplicate detection to a column subset.
	DuplicateColumns []string
	// Fuzzy switches duplicate detection to edit-distance similarity.
	Fuzzy bool
	// Contamination is the isolation forest anomaly share.
	Contamination float64
	// WarnThreshold is the sub-score below which a recommendation is made.
	WarnThreshold float64
	// FailFast aborts the run on the first check error instead of recording
	// the failure in the report.
	FailFast bool
	// Parallel runs the checks concurrently.
	Parallel bool
	Seed     int64
}

// DefaultConfig runs every check sequentially with default parameters.
func DefaultConfig() Config {
	return Config{
		OutlierMethod: quality.ZScore.String(),
		WarnThreshold: scoring.DefaultWarnThreshold,
		Seed:          42,
	}
}

func (c Config) threshold(k quality.CheckKind) float64 {
	return c.Thresholds[k]
}

func (c Config) checks() []quality.CheckKind {
	if len(c.Checks) == 0 {
		return append([]quality.CheckKind(nil), quality.AllChecks...)
	}
	seen := map[quality.CheckKind]bool{}
	out := make([]quality.CheckKind, 0, len(c.Checks))
	for _, k := range c.Checks {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func (c Config) outlierOptions() (quality.OutlierOptions, error) {
	opt := quality.DefaultOutlierOptions()
	opt.Threshold = c.threshold(quality.OutliersCheck)
	opt.Seed = c.Seed
	if c.OutlierMethod != "" {
		m, err := quality.ParseOutlierMethod(c.OutlierMethod)
		if err != nil {
			return opt, err
		}
		opt.Method = m
	}
	if c.Contamination != 0 {
		opt.Contamination = c.Contamination
	}
	return opt, nil
}
