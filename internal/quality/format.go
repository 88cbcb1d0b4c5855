package quality

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/KaramelBytes/datacheck-cli/internal/dataset"
)

// FormatRule names a pattern from the format library.
type FormatRule string

const (
	RuleEmail   FormatRule = "email"
	RuleURL     FormatRule = "url"
	RuleIP      FormatRule = "ip"
	RuleDate    FormatRule = "date"
	RuleBoolean FormatRule = "boolean"
	RuleZipcode FormatRule = "zipcode"
	RulePhone   FormatRule = "phone"
)

// inferenceOrder is the order rules are tried when a column has no explicit
// rule. More specific patterns come first.
var inferenceOrder = []FormatRule{RuleEmail, RuleURL, RuleIP, RuleDate, RuleBoolean, RuleZipcode, RulePhone}

// ParseFormatRule validates a rule name.
func ParseFormatRule(s string) (FormatRule, error) {
	r := FormatRule(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := formatMatchers[r]; !ok {
		return "", configErr("format_rules", "unknown format rule %q", s)
	}
	return r, nil
}

var (
	validate  = validator.New()
	zipRe     = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	phoneRe   = regexp.MustCompile(`^\+?[\d\s().-]+$`)
	boolWords = map[string]bool{
		"true": true, "false": true, "yes": true, "no": true, "y": true, "n": true,
		"t": true, "f": true, "1": true, "0": true, "on": true, "off": true,
	}
)

var formatMatchers = map[FormatRule]func(string) bool{
	RuleEmail: func(s string) bool { return validate.Var(s, "required,email") == nil },
	RuleURL:   func(s string) bool { return validate.Var(s, "required,url") == nil },
	RuleIP:    func(s string) bool { return validate.Var(s, "required,ip") == nil },
	RuleDate: func(s string) bool {
		_, ok := dataset.ParseTime(s)
		return ok
	},
	RuleBoolean: func(s string) bool { return boolWords[strings.ToLower(s)] },
	RuleZipcode: zipRe.MatchString,
	RulePhone:   matchPhone,
}

func matchPhone(s string) bool {
	if !phoneRe.MatchString(s) {
		return false
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 7 && digits <= 15
}

// Matches reports whether s matches the rule's pattern.
func (r FormatRule) Matches(s string) bool {
	m, ok := formatMatchers[r]
	return ok && m(strings.TrimSpace(s))
}

// FormatOptions configures CheckDataFormat.
type FormatOptions struct {
	// Rules maps column name to rule name. Columns without a rule are
	// inferred when they hold text.
	Rules map[string]string
	// SampleSize is the number of leading non-null values used to infer a
	// rule.
	SampleSize int
	// InferRatio is the share of the sample a rule must match to be
	// assigned.
	InferRatio float64
}

// DefaultFormatOptions infers rules from the first 100 values.
func DefaultFormatOptions() FormatOptions {
	return FormatOptions{SampleSize: 100, InferRatio: 0.8}
}

// ColumnFormat is the format verdict of one column.
type ColumnFormat struct {
	Column    string
	Rule      FormatRule
	Inferred  bool
	Checked   int
	Matched   int
	MatchRate float64
	Failing   []int
}

// FormatDetails is the payload of a format CheckResult.
type FormatDetails struct {
	Columns   []ColumnFormat
	MeanMatch float64
}

// CheckDataFormat matches each column against its explicit or inferred rule.
// The summary is the mean match fraction across checked columns, 1 when no
// column has a rule.
func CheckDataFormat(ds *dataset.Dataset, opt FormatOptions) (CheckResult, error) {
	if opt.SampleSize <= 0 {
		opt.SampleSize = 100
	}
	if opt.InferRatio == 0 {
		opt.InferRatio = 0.8
	}
	if opt.InferRatio < 0 || opt.InferRatio > 1 {
		return CheckResult{}, configErr("infer_ratio", "must be in (0,1], got %v", opt.InferRatio)
	}
	names := make([]string, 0, len(opt.Rules))
	for col := range opt.Rules {
		names = append(names, col)
	}
	sort.Strings(names)
	explicit := make(map[string]FormatRule, len(opt.Rules))
	for _, col := range names {
		r, err := ParseFormatRule(opt.Rules[col])
		if err != nil {
			return CheckResult{}, err
		}
		explicit[col] = r
	}
	if _, err := ds.Lookup("check format", names); err != nil {
		return CheckResult{}, err
	}

	det := &FormatDetails{MeanMatch: 1}
	res := CheckResult{Check: FormatCheck, Config: opt, Rows: ds.Rows(), SummaryLabel: "match_ratio", Details: det}
	var sum float64
	for _, c := range ds.Columns() {
		rule, ok := explicit[c.Name()]
		inferred := false
		if !ok {
			if c.Kind() != dataset.Text && c.Kind() != dataset.Categorical {
				continue
			}
			if rule, ok = inferRule(c, opt); !ok {
				continue
			}
			inferred = true
		}
		cf := matchColumn(c, rule)
		cf.Inferred = inferred
		if cf.Checked == 0 {
			res.note("column %q has no values to match against %s", c.Name(), rule)
			continue
		}
		det.Columns = append(det.Columns, cf)
		sum += cf.MatchRate
		if len(cf.Failing) > 0 {
			res.Issues = append(res.Issues, Issue{
				Kind:     IssueFormat,
				Column:   c.Name(),
				Rows:     cf.Failing,
				Severity: 1 - cf.MatchRate,
				Description: fmt.Sprintf("column %q has %d of %d values not matching %s",
					c.Name(), len(cf.Failing), cf.Checked, rule),
			})
		}
	}
	if len(det.Columns) > 0 {
		det.MeanMatch = sum / float64(len(det.Columns))
	}
	res.Summary = det.MeanMatch
	res.classify()
	return res, nil
}

func inferRule(c *dataset.Column, opt FormatOptions) (FormatRule, bool) {
	sample := make([]string, 0, opt.SampleSize)
	for i := 0; i < c.Len() && len(sample) < opt.SampleSize; i++ {
		if s, ok := c.String(i); ok && strings.TrimSpace(s) != "" {
			sample = append(sample, s)
		}
	}
	if len(sample) == 0 {
		return "", false
	}
	for _, r := range inferenceOrder {
		hits := 0
		for _, s := range sample {
			if r.Matches(s) {
				hits++
			}
		}
		if float64(hits)/float64(len(sample)) >= opt.InferRatio {
			return r, true
		}
	}
	return "", false
}

func matchColumn(c *dataset.Column, rule FormatRule) ColumnFormat {
	cf := ColumnFormat{Column: c.Name(), Rule: rule}
	for i := 0; i < c.Len(); i++ {
		s, ok := c.String(i)
		if !ok {
			continue
		}
		cf.Checked++
		if rule.Matches(s) {
			cf.Matched++
		} else {
			cf.Failing = append(cf.Failing, i)
		}
	}
	cf.MatchRate = ratio(cf.Matched, cf.Checked)
	return cf
}
