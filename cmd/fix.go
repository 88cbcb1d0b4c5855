package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datacheck-cli/internal/dataset"
	"github.com/KaramelBytes/datacheck-cli/internal/loader"
	"github.com/KaramelBytes/datacheck-cli/internal/quality"
)

var (
	fixOutput  string
	fixColumns []string
	fixDryRun  bool

	fmStrategy string
	fmFill     []string

	foStrategy      string
	foMethod        string
	foThreshold     float64
	foContamination float64

	fdKeep       string
	fdFuzzy      bool
	fdSimilarity float64

	fbTarget   string
	fbMethod   string
	fbSampling []string
	fbK        int
	fbSeed     int64

	ftMethod    string
	ftInPlace   bool
	ftSuffix    string
	ftThreshold float64
)

var fixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Apply a remediation to a dataset and write the cleaned copy",
}

type fixFunc func(cmd *cobra.Command, ds *dataset.Dataset) (*dataset.Dataset, *quality.ChangeLog, error)

// runFix loads the input, applies fn and writes the result next to the
// input (or to --output) unless --dry-run is set.
func runFix(fn fixFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		path := args[0]
		ds, err := loadDataset(path)
		if err != nil {
			return err
		}
		fixed, log, err := fn(cmd, ds)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ %s\n", log)
		if fixDryRun {
			return nil
		}
		dst := fixOutput
		if dst == "" {
			dst = fixedPath(path)
		}
		opt, err := loaderOptions()
		if err != nil {
			return err
		}
		delim := opt.Delimiter
		if strings.EqualFold(filepath.Ext(dst), ".tsv") {
			delim = '\t'
		}
		if err := loader.WriteCSV(dst, fixed, delim); err != nil {
			return err
		}
		logger.Info("fix applied", "operation", log.Operation, "input", path, "output", dst,
			"rows_before", log.RowsBefore, "rows_after", log.RowsAfter)
		fmt.Fprintf(out, "✓ Wrote %d rows to %s\n", fixed.Rows(), dst)
		return nil
	}
}

// fixedPath maps data.csv to data.fixed.csv; spreadsheets are written as CSV.
func fixedPath(path string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	if strings.EqualFold(ext, ".xlsx") || ext == "" {
		ext = ".csv"
	}
	return base + ".fixed" + ext
}

// method returns the flag value when set, else the configured default.
func method(flag, key string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	c, err := settings()
	if err != nil {
		return "", err
	}
	return c.Method(key), nil
}

var fixMissingCmd = &cobra.Command{
	Use:   "missing <file>",
	Short: "Fill missing values (auto | mean | median | mode | constant)",
	Args:  cobra.ExactArgs(1),
	RunE: runFix(func(cmd *cobra.Command, ds *dataset.Dataset) (*dataset.Dataset, *quality.ChangeLog, error) {
		name, err := method(fmStrategy, "missing")
		if err != nil {
			return nil, nil, err
		}
		strategy, err := quality.ParseMissingStrategy(name)
		if err != nil {
			return nil, nil, err
		}
		fills, err := parseKV("fill", fmFill)
		if err != nil {
			return nil, nil, err
		}
		fix := quality.MissingFix{Strategy: strategy, Columns: fixColumns}
		if len(fills) > 0 {
			fix.FillValues = make(map[string]any, len(fills))
			for k, v := range fills {
				fix.FillValues[k] = v
			}
		}
		return quality.FixMissingValues(ds, fix)
	}),
}

var fixOutliersCmd = &cobra.Command{
	Use:   "outliers <file>",
	Short: "Remove, cap or replace outliers (remove | cap | mean | median)",
	Args:  cobra.ExactArgs(1),
	RunE: runFix(func(cmd *cobra.Command, ds *dataset.Dataset) (*dataset.Dataset, *quality.ChangeLog, error) {
		sname, err := method(foStrategy, "outlier_fix")
		if err != nil {
			return nil, nil, err
		}
		strategy, err := quality.ParseOutlierStrategy(sname)
		if err != nil {
			return nil, nil, err
		}
		mname, err := method(foMethod, "outliers")
		if err != nil {
			return nil, nil, err
		}
		m, err := quality.ParseOutlierMethod(mname)
		if err != nil {
			return nil, nil, err
		}
		fix, err := quality.NewOutlierFix(m, strategy)
		if err != nil {
			return nil, nil, err
		}
		fix.Columns = fixColumns
		fix.Threshold = foThreshold
		if foContamination > 0 {
			fix.Contamination = foContamination
		}
		if c, err := settings(); err == nil {
			fix.Seed = c.Seed
		}
		return quality.RemoveOutliers(ds, fix)
	}),
}

var fixDuplicatesCmd = &cobra.Command{
	Use:   "duplicates <file>",
	Short: "Remove duplicate rows, keeping the first, last or none of each cluster",
	Args:  cobra.ExactArgs(1),
	RunE: runFix(func(cmd *cobra.Command, ds *dataset.Dataset) (*dataset.Dataset, *quality.ChangeLog, error) {
		name, err := method(fdKeep, "duplicates")
		if err != nil {
			return nil, nil, err
		}
		keep, err := quality.ParseKeep(name)
		if err != nil {
			return nil, nil, err
		}
		opt := quality.DefaultDuplicateOptions()
		opt.Columns = fixColumns
		opt.Fuzzy = fdFuzzy
		if fdSimilarity > 0 {
			opt.Threshold = fdSimilarity
		}
		return quality.RemoveDuplicates(ds, quality.DuplicateFix{DuplicateOptions: opt, Keep: keep})
	}),
}

var fixBalanceCmd = &cobra.Command{
	Use:   "balance <file>",
	Short: "Resample rows to balance the target classes (undersample | oversample | smote)",
	Args:  cobra.ExactArgs(1),
	RunE: runFix(func(cmd *cobra.Command, ds *dataset.Dataset) (*dataset.Dataset, *quality.ChangeLog, error) {
		c, err := settings()
		if err != nil {
			return nil, nil, err
		}
		target := fbTarget
		if target == "" {
			target = c.Target
		}
		if target == "" {
			return nil, nil, fmt.Errorf("--target is required (or set target in config)")
		}
		m, err := quality.ParseBalanceMethod(c.Method("balance"))
		if fbMethod != "" {
			m, err = quality.ParseBalanceMethod(fbMethod)
		}
		if err != nil {
			return nil, nil, err
		}
		counts, err := parseKV("sampling", fbSampling)
		if err != nil {
			return nil, nil, err
		}
		fix := quality.BalanceFix{Target: target, Method: m, K: fbK, Seed: c.Seed}
		if cmd.Flags().Changed("seed") {
			fix.Seed = fbSeed
		}
		if len(counts) > 0 {
			fix.SamplingStrategy = make(map[string]int, len(counts))
			for class, v := range counts {
				n, err := cast.ToIntE(v)
				if err != nil {
					return nil, nil, fmt.Errorf("invalid --sampling count for %s: %w", class, err)
				}
				fix.SamplingStrategy[class] = n
			}
		}
		return quality.BalanceDataset(ds, fix)
	}),
}

var fixTransformCmd = &cobra.Command{
	Use:   "transform <file>",
	Short: "Reduce skew of numeric columns (auto | log | log1p | boxcox | sqrt | reflect_log)",
	Args:  cobra.ExactArgs(1),
	RunE: runFix(func(cmd *cobra.Command, ds *dataset.Dataset) (*dataset.Dataset, *quality.ChangeLog, error) {
		name, err := method(ftMethod, "transform")
		if err != nil {
			return nil, nil, err
		}
		m, err := quality.ParseTransformMethod(name)
		if err != nil {
			return nil, nil, err
		}
		fix := quality.DefaultTransformFix()
		fix.Method = m
		fix.Columns = fixColumns
		fix.InPlace = ftInPlace
		if ftSuffix != "" {
			fix.Suffix = ftSuffix
		}
		if ftThreshold > 0 {
			fix.Threshold = ftThreshold
		}
		return quality.TransformNonNormal(ds, fix)
	}),
}

func init() {
	rootCmd.AddCommand(fixCmd)
	pf := fixCmd.PersistentFlags()
	pf.StringVarP(&fixOutput, "output", "o", "", "output CSV path (default <input>.fixed.csv)")
	pf.StringSliceVar(&fixColumns, "columns", nil, "columns to fix (default all applicable)")
	pf.BoolVar(&fixDryRun, "dry-run", false, "print the change log without writing output")

	fixMissingCmd.Flags().StringVar(&fmStrategy, "strategy", "", "fill strategy (default from config methods.missing)")
	fixMissingCmd.Flags().StringSliceVar(&fmFill, "fill", nil, "column=value fill for the constant strategy (repeatable)")

	fixOutliersCmd.Flags().StringVar(&foStrategy, "strategy", "", "outlier strategy (default from config methods.outlier_fix)")
	fixOutliersCmd.Flags().StringVar(&foMethod, "method", "", "detection method (default from config methods.outliers)")
	fixOutliersCmd.Flags().Float64Var(&foThreshold, "threshold", 0, "|z| or IQR multiplier (0 = method default)")
	fixOutliersCmd.Flags().Float64Var(&foContamination, "contamination", 0, "isolation forest anomaly share")

	fixDuplicatesCmd.Flags().StringVar(&fdKeep, "keep", "", "first | last | none (default from config methods.duplicates)")
	fixDuplicatesCmd.Flags().BoolVar(&fdFuzzy, "fuzzy", false, "treat rows above the similarity threshold as duplicates")
	fixDuplicatesCmd.Flags().Float64Var(&fdSimilarity, "similarity", 0, "fuzzy similarity threshold in (0,1] (default 0.9)")

	fixBalanceCmd.Flags().StringVarP(&fbTarget, "target", "t", "", "class column (default from config target)")
	fixBalanceCmd.Flags().StringVar(&fbMethod, "method", "", "undersample | oversample | smote (default from config methods.balance)")
	fixBalanceCmd.Flags().StringSliceVar(&fbSampling, "sampling", nil, "class=count wanted per class; must name every class (repeatable)")
	fixBalanceCmd.Flags().IntVar(&fbK, "k", 5, "SMOTE neighbour count")
	fixBalanceCmd.Flags().Int64Var(&fbSeed, "seed", 0, "random seed (default from config)")

	fixTransformCmd.Flags().StringVar(&ftMethod, "method", "", "transform (default from config methods.transform)")
	fixTransformCmd.Flags().BoolVar(&ftInPlace, "in-place", false, "overwrite columns instead of adding <col><suffix>")
	fixTransformCmd.Flags().StringVar(&ftSuffix, "suffix", "", "suffix for transformed columns (default _transformed)")
	fixTransformCmd.Flags().Float64Var(&ftThreshold, "skew-threshold", 0, "|skew| above which columns are transformed when --columns is empty (default 1)")

	fixCmd.AddCommand(fixMissingCmd, fixOutliersCmd, fixDuplicatesCmd, fixBalanceCmd, fixTransformCmd)
}
