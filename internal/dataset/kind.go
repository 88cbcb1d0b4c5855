package dataset

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Kind is the declared or inferred type of a column.
type Kind int

const (
	Text Kind = iota
	Numeric
	Categorical
	Boolean
	Datetime
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	case Boolean:
		return "boolean"
	case Datetime:
		return "datetime"
	default:
		return "text"
	}
}

// ParseKind maps a kind name (as printed by String) back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "numeric", "number", "float", "int":
		return Numeric, nil
	case "categorical", "category":
		return Categorical, nil
	case "text", "string":
		return Text, nil
	case "boolean", "bool":
		return Boolean, nil
	case "datetime", "date", "time":
		return Datetime, nil
	}
	return Text, fmt.Errorf("unknown column kind %q", s)
}

// Categorical inference limits: a string column is categorical when it has
// few distinct values in absolute or relative terms.
const (
	maxCategoricalDistinct = 20
	maxCategoricalRatio    = 0.5
)

// InferKind decides a column kind from its values. All-null columns are Text.
func InferKind(values []any) Kind {
	var nonNull, nums, bools, times, strs int
	distinct := map[string]struct{}{}
	for _, v := range values {
		if IsNull(v) {
			continue
		}
		nonNull++
		switch x := v.(type) {
		case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			nums++
		case bool:
			bools++
		case time.Time:
			times++
		case string:
			strs++
			distinct[strings.ToLower(strings.TrimSpace(x))] = struct{}{}
		default:
			strs++
			distinct[fmt.Sprint(x)] = struct{}{}
		}
	}
	switch {
	case nonNull == 0:
		return Text
	case nums == nonNull:
		return Numeric
	case bools == nonNull:
		return Boolean
	case times == nonNull:
		return Datetime
	}
	if len(distinct) <= maxCategoricalDistinct || float64(len(distinct))/float64(nonNull) <= maxCategoricalRatio {
		return Categorical
	}
	return Text
}

// IsNull reports whether v is a null-equivalent entry (nil or NaN).
func IsNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	}
	return false
}

// TimeLayouts are the layouts ParseTime accepts, tried in order.
var TimeLayouts = []string{
	time.RFC3339, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
}

// ParseTime parses s with the first matching layout in TimeLayouts.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, l := range TimeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
