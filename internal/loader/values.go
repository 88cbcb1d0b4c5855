package loader

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/KaramelBytes/datacheck-cli/internal/dataset"
)

// DefaultNullTokens are cell values read as null, compared case-insensitively
// after trimming. The empty cell is always null.
var DefaultNullTokens = []string{"NA", "N/A", "NaN", "null", "NULL", "None", "-", "?"}

func (o Options) nullSet() map[string]struct{} {
	tokens := o.NullTokens
	if tokens == nil {
		tokens = DefaultNullTokens
	}
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return set
}

// typeColumn decides the column kind from its raw cells: numeric when every
// non-null cell parses as a number, then boolean, then datetime, otherwise
// strings whose kind (categorical or text) is inferred by the dataset.
func typeColumn(name string, raw []string, nulls map[string]struct{}, opt Options) *dataset.Column {
	cells := make([]string, len(raw))
	present := 0
	for i, s := range raw {
		s = strings.TrimSpace(s)
		if _, ok := nulls[strings.ToLower(s)]; ok {
			s = ""
		}
		cells[i] = s
		if s != "" {
			present++
		}
	}
	values := make([]any, len(cells))
	if present == 0 {
		return dataset.InferColumn(name, values)
	}

	if parseAll(cells, values, func(s string) (any, bool) {
		if leadingZero(s) {
			return nil, false
		}
		f, ok := parseNumeric(s, opt)
		return f, ok
	}) {
		return dataset.NewColumn(name, dataset.Numeric, values)
	}
	if parseAll(cells, values, func(s string) (any, bool) {
		switch strings.ToLower(s) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
		return nil, false
	}) {
		return dataset.NewColumn(name, dataset.Boolean, values)
	}
	if parseAll(cells, values, func(s string) (any, bool) {
		t, ok := dataset.ParseTime(s)
		return t, ok
	}) {
		return dataset.NewColumn(name, dataset.Datetime, values)
	}
	for i, s := range cells {
		if s == "" {
			values[i] = nil
			continue
		}
		values[i] = s
	}
	return dataset.InferColumn(name, values)
}

// parseAll fills values with parse(cell) for every non-empty cell and reports
// whether all of them parsed.
func parseAll(cells []string, values []any, parse func(string) (any, bool)) bool {
	for i, s := range cells {
		if s == "" {
			values[i] = nil
			continue
		}
		v, ok := parse(s)
		if !ok {
			return false
		}
		values[i] = v
	}
	return true
}

// leadingZero flags identifiers such as zip codes ("02134") that must keep
// their text form.
func leadingZero(s string) bool {
	s = strings.TrimPrefix(s, "-")
	return len(s) > 1 && s[0] == '0' && s[1] >= '0' && s[1] <= '9'
}

// parseNumeric parses locale-formatted numbers such as "1.000,5", "1,000.5",
// "12 %" or "3e-4". When no decimal separator is configured, the right-most
// of ',' and '.' is taken as the decimal mark.
func parseNumeric(s string, opt Options) (float64, bool) {
	raw := strings.TrimSpace(s)
	raw = strings.ReplaceAll(raw, "%", "")
	raw = strings.ReplaceAll(raw, "\u00a0", " ")
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, "xXpP_") {
		return 0, false
	}
	dec := opt.DecimalSeparator
	thou := opt.ThousandsSeparator
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		switch {
		case cpos >= 0 && dpos >= 0 && cpos > dpos:
			dec, thou = ',', '.'
		case cpos >= 0 && dpos >= 0:
			dec, thou = '.', ','
		case cpos >= 0:
			dec = ','
		default:
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// formatValue renders a cell for CSV output. Nulls become empty cells;
// midnight UTC timestamps are written as plain dates.
func formatValue(v any) string {
	if dataset.IsNull(v) {
		return ""
	}
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.Location() == time.UTC && x.Equal(x.Truncate(24*time.Hour)) {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339)
	case string:
		return x
	}
	return cast.ToString(v)
}
