package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datacheck-cli/internal/engine"
	"github.com/KaramelBytes/datacheck-cli/internal/quality"
	"github.com/KaramelBytes/datacheck-cli/internal/scoring"
)

var (
	chkChecks        []string
	chkTarget        string
	chkOutlierMethod string
	chkContamination float64
	chkFuzzy         bool
	chkDupColumns    []string
	chkFormats       []string
	chkWeights       []string
	chkThresholds    []string
	chkWarn          float64
	chkParallel      bool
	chkFailFast      bool
	chkOutputDir     string
	chkMinScore      float64
	chkQuiet         bool
)

var checkCmd = &cobra.Command{
	Use:   "check <files...>",
	Short: "Run quality checks on one or more CSV/TSV/XLSX files and print a scored report",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		ec, err := checkConfig(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		eng := engine.New(logger)
		taken := map[string]bool{}
		if chkOutputDir != "" {
			if err := os.MkdirAll(chkOutputDir, 0o755); err != nil {
				return fmt.Errorf("mkdir output dir: %w", err)
			}
		}

		var below []string
		total := len(files)
		for i, path := range files {
			if total > 1 && !chkQuiet {
				fmt.Fprintf(out, "[%d/%d] Checking %s...\n", i+1, total, filepath.Base(path))
			}
			ds, err := loadDataset(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			rep, err := eng.Run(cmd.Context(), ds, ec)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			summary := rep.Summary()
			if chkOutputDir != "" {
				base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				dst := uniquePath(chkOutputDir, base, ".quality.txt", taken)
				if err := os.WriteFile(dst, []byte(summary), 0o644); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
				fmt.Fprintf(out, "✓ Wrote report for %s to %s (score %.3f)\n", filepath.Base(path), dst, rep.Score().Overall)
			} else {
				fmt.Fprintln(out, summary)
			}
			for _, e := range rep.Errors() {
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠ %s: %v\n", filepath.Base(path), e)
			}
			if cmd.Flags().Changed("min-score") && rep.Score().Overall < chkMinScore {
				below = append(below, filepath.Base(path))
			}
		}
		if len(below) > 0 {
			return fmt.Errorf("%d of %d datasets scored below %g: %s", len(below), total, chkMinScore, strings.Join(below, ", "))
		}
		return nil
	},
}

// checkConfig layers the check flags over the loaded configuration.
func checkConfig(cmd *cobra.Command) (engine.Config, error) {
	c, err := settings()
	if err != nil {
		return engine.Config{}, err
	}
	ec, err := c.Engine()
	if err != nil {
		return ec, err
	}
	f := cmd.Flags()
	if f.Changed("checks") {
		ec.Checks = nil
		for _, name := range chkChecks {
			k, err := quality.ParseCheckKind(name)
			if err != nil {
				return ec, err
			}
			ec.Checks = append(ec.Checks, k)
		}
	}
	if f.Changed("target") {
		ec.Target = chkTarget
	}
	if f.Changed("outlier-method") {
		ec.OutlierMethod = chkOutlierMethod
	}
	if f.Changed("contamination") {
		ec.Contamination = chkContamination
	}
	if f.Changed("fuzzy") {
		ec.Fuzzy = chkFuzzy
	}
	if f.Changed("columns") {
		ec.DuplicateColumns = chkDupColumns
	}
	if f.Changed("warn-threshold") {
		ec.WarnThreshold = chkWarn
	}
	if f.Changed("parallel") {
		ec.Parallel = chkParallel
	}
	if f.Changed("fail-fast") {
		ec.FailFast = chkFailFast
	}
	rules, err := parseKV("format", chkFormats)
	if err != nil {
		return ec, err
	}
	if rules != nil {
		ec.FormatRules = rules
	}
	named, err := parseFloatKV("weight", chkWeights)
	if err != nil {
		return ec, err
	}
	if named != nil {
		if ec.Weights, err = scoring.ParseWeights(named); err != nil {
			return ec, err
		}
	}
	thr, err := parseFloatKV("threshold", chkThresholds)
	if err != nil {
		return ec, err
	}
	for name, v := range thr {
		k, err := quality.ParseCheckKind(name)
		if err != nil {
			return ec, err
		}
		if ec.Thresholds == nil {
			ec.Thresholds = map[quality.CheckKind]float64{}
		}
		ec.Thresholds[k] = v
	}
	return ec, nil
}

func init() {
	rootCmd.AddCommand(checkCmd)
	f := checkCmd.Flags()
	f.StringSliceVar(&chkChecks, "checks", nil, "checks to run: missing_values, outliers, duplicates, format, balance, distribution (default all)")
	f.StringVarP(&chkTarget, "target", "t", "", "class column for the balance check (balance is skipped without it)")
	f.StringVar(&chkOutlierMethod, "outlier-method", "", "outlier method: zscore | iqr | isolation_forest")
	f.Float64Var(&chkContamination, "contamination", 0, "isolation forest anomaly share")
	f.BoolVar(&chkFuzzy, "fuzzy", false, "detect near-duplicate rows by edit-distance similarity")
	f.StringSliceVar(&chkDupColumns, "columns", nil, "columns compared by the duplicate check (default all)")
	f.StringSliceVar(&chkFormats, "format", nil, "column=rule format expectation, e.g. email=email (repeatable)")
	f.StringSliceVar(&chkWeights, "weight", nil, "check=weight score weighting; given weights must sum to 1 (repeatable)")
	f.StringSliceVar(&chkThresholds, "threshold", nil, "check=value flagging threshold (repeatable)")
	f.Float64Var(&chkWarn, "warn-threshold", scoring.DefaultWarnThreshold, "sub-score below which a recommendation is made")
	f.BoolVar(&chkParallel, "parallel", false, "run checks concurrently")
	f.BoolVar(&chkFailFast, "fail-fast", false, "abort on the first failing check instead of recording it")
	f.StringVarP(&chkOutputDir, "output-dir", "o", "", "write one <name>.quality.txt report per input into this directory")
	f.Float64Var(&chkMinScore, "min-score", 0, "exit non-zero when any dataset's overall score is below this value")
	f.BoolVarP(&chkQuiet, "quiet", "q", false, "suppress progress lines")
}
