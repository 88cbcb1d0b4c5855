package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datacheck-cli/internal/dataset"
	"github.com/KaramelBytes/datacheck-cli/internal/loader"
)

var (
	inDelimiter  string
	inDecimal    string
	inThousands  string
	inMaxRows    int
	inSheetName  string
	inSheetIndex int
	inNulls      []string
)

func addInputFlags(c *cobra.Command) {
	f := c.PersistentFlags()
	f.StringVar(&inDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | '|' | 'tab' (sniffed if omitted)")
	f.StringVar(&inDecimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (auto-detect if omitted)")
	f.StringVar(&inThousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space' (auto-detect if omitted)")
	f.IntVar(&inMaxRows, "max-rows", 0, "maximum rows to load (0 = config default)")
	f.StringVar(&inSheetName, "sheet-name", "", "XLSX: sheet name to load")
	f.IntVar(&inSheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	f.StringSliceVar(&inNulls, "null", nil, "cell values read as missing (replaces the default NA tokens)")
}

// loaderOptions merges the config's ingestion settings with the input flags.
func loaderOptions() (loader.Options, error) {
	c, err := settings()
	if err != nil {
		return loader.Options{}, err
	}
	opt := c.Loader()
	if inMaxRows > 0 {
		opt.MaxRows = inMaxRows
	}
	switch inDelimiter {
	case "":
	case "tab", `\t`, "\t":
		opt.Delimiter = '\t'
	case ",", ";", "|":
		opt.Delimiter = rune(inDelimiter[0])
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", inDelimiter)
	}
	switch strings.ToLower(strings.TrimSpace(inDecimal)) {
	case ",", "comma":
		opt.DecimalSeparator = ','
	case ".", "dot":
		opt.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", inDecimal)
	}
	switch strings.ToLower(inThousands) {
	case ",":
		opt.ThousandsSeparator = ','
	case ".":
		opt.ThousandsSeparator = '.'
	case "space", " ":
		opt.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", inThousands)
	}
	opt.Sheet = inSheetName
	opt.SheetIndex = inSheetIndex
	if len(inNulls) > 0 {
		opt.NullTokens = inNulls
	}
	return opt, nil
}

// loadDataset reads one input file with the effective loader options.
func loadDataset(path string) (*dataset.Dataset, error) {
	opt, err := loaderOptions()
	if err != nil {
		return nil, err
	}
	ds, err := loader.Read(path, opt)
	if err != nil {
		return nil, err
	}
	logger.Debug("dataset loaded", "file", path, "rows", ds.Rows(), "columns", ds.Width())
	if opt.MaxRows > 0 && ds.Rows() == opt.MaxRows {
		logger.Warn("row limit reached; remaining rows were not loaded", "file", path, "max_rows", opt.MaxRows)
	}
	return ds, nil
}

// expandInputs resolves globs and literal paths, dropping repeats.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}

// parseKV splits repeated key=value flag entries.
func parseKV(flag string, pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --%s entry %q (want key=value)", flag, p)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

func parseFloatKV(flag string, pairs []string) (map[string]float64, error) {
	kv, err := parseKV(flag, pairs)
	if err != nil || kv == nil {
		return nil, err
	}
	out := make(map[string]float64, len(kv))
	for k, v := range kv {
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, fmt.Errorf("invalid --%s value for %s: %w", flag, k, err)
		}
		out[k] = f
	}
	return out, nil
}

// uniquePath appends __2, __3, ... to the base name until path is unused
// among taken.
func uniquePath(dir, base, ext string, taken map[string]bool) string {
	p := filepath.Join(dir, base+ext)
	for i := 2; taken[p]; i++ {
		p = filepath.Join(dir, fmt.Sprintf("%s__%d%s", base, i, ext))
	}
	taken[p] = true
	return p
}
