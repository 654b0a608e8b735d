// Package evaluate applies advanced filters, search and multi-key sorting to
// a page of rows already fetched from the upstream API.
package evaluate

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pcr-hr/hr-portal/internal/masterdata/query"
)

// Operators.
const (
	OpILike      = "iLike"
	OpNotILike   = "notILike"
	OpEq         = "eq"
	OpNe         = "ne"
	OpLt         = "lt"
	OpLte        = "lte"
	OpGt         = "gt"
	OpGte        = "gte"
	OpIsBetween  = "isBetween"
	OpInArray    = "inArray"
	OpNotInArray = "notInArray"
	OpIsEmpty    = "isEmpty"
	OpIsNotEmpty = "isNotEmpty"
)

// Text evaluates text operators case-insensitively.
func Text(row, op string, v query.FilterValue) bool {
	targets := v.Targets()
	for i := range targets {
		targets[i] = strings.ToLower(targets[i])
	}
	value := strings.ToLower(row)

	switch op {
	case OpILike:
		for _, t := range targets {
			if strings.Contains(value, t) {
				return true
			}
		}
		return false
	case OpNotILike:
		for _, t := range targets {
			if strings.Contains(value, t) {
				return false
			}
		}
		return true
	case OpEq:
		return len(targets) == 0 || contains(targets, value)
	case OpNe:
		return len(targets) == 0 || !contains(targets, value)
	default:
		return true
	}
}

// Select compares against the first target only.
func Select(row, op string, v query.FilterValue) bool {
	targets := v.Targets()
	if len(targets) == 0 {
		return true
	}
	switch op {
	case OpEq:
		return row == targets[0]
	case OpNe:
		return row != targets[0]
	default:
		return true
	}
}

// MultiSelect checks membership.
func MultiSelect(row, op string, v query.FilterValue) bool {
	targets := v.Targets()
	if len(targets) == 0 {
		return true
	}
	switch op {
	case OpInArray:
		return contains(targets, row)
	case OpNotInArray:
		return !contains(targets, row)
	default:
		return true
	}
}

// Boolean compares against target == "true".
func Boolean(row bool, op string, v query.FilterValue) bool {
	targets := v.Targets()
	if len(targets) == 0 {
		return true
	}
	target := targets[0] == "true"
	switch op {
	case OpEq:
		return row == target
	case OpNe:
		return row != target
	default:
		return true
	}
}

// Number evaluates numeric operators. A non-numeric row value never matches.
func Number(raw any, op string, v query.FilterValue) bool {
	value, ok := toNumber(raw)
	if !ok {
		return false
	}
	targets := numberTargets(v)
	first := math.NaN()
	if len(targets) > 0 {
		first = targets[0]
	}

	switch op {
	case OpEq:
		return value == first
	case OpNe:
		return value != first
	case OpLt:
		return value < first
	case OpLte:
		return value <= first
	case OpGt:
		return value > first
	case OpGte:
		return value >= first
	case OpIsBetween:
		// A missing bound never matches; a non-numeric one lets the row pass.
		if len(targets) < 2 {
			return false
		}
		lo, hi := targets[0], targets[1]
		if math.IsNaN(lo) || math.IsNaN(hi) {
			return true
		}
		return value >= lo && value <= hi
	default:
		return true
	}
}

// Date evaluates date operators on epoch milliseconds. An unparseable row
// never matches; an unparseable bound lets the comparison pass.
func Date(raw any, op string, v query.FilterValue) bool {
	value, ok := ParseDate(raw)
	if !ok {
		return false
	}
	var bounds []dateBound
	for _, entry := range v.Targets() {
		ms, ok := ParseDate(entry)
		bounds = append(bounds, dateBound{ms: ms, ok: ok})
	}
	first := dateBound{}
	if len(bounds) > 0 {
		first = bounds[0]
	}

	switch op {
	case OpEq:
		return first.ok && value == first.ms
	case OpNe:
		return !first.ok || value != first.ms
	case OpLt:
		return !first.ok || value < first.ms
	case OpLte:
		return !first.ok || value <= first.ms
	case OpGt:
		return !first.ok || value > first.ms
	case OpGte:
		return !first.ok || value >= first.ms
	case OpIsBetween:
		if len(bounds) < 2 || !bounds[0].ok || !bounds[1].ok {
			return true
		}
		return value >= bounds[0].ms && value <= bounds[1].ms
	default:
		return true
	}
}

// IsEmpty reports nil values and blank strings.
func IsEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case *string:
		return val == nil || strings.TrimSpace(*val) == ""
	case *int:
		return val == nil
	case *float64:
		return val == nil
	default:
		return false
	}
}

// Match dispatches one filter against a raw column value.
func Match(raw any, f query.FilterSpec) bool {
	switch f.Operator {
	case OpIsEmpty:
		return IsEmpty(raw)
	case OpIsNotEmpty:
		return !IsEmpty(raw)
	}

	switch f.Variant {
	case query.VariantText:
		return Text(toString(raw), f.Operator, f.Value)
	case query.VariantSelect:
		return Select(toString(raw), f.Operator, f.Value)
	case query.VariantMultiSelect:
		return MultiSelect(toString(raw), f.Operator, f.Value)
	case query.VariantBoolean:
		return Boolean(truthy(raw), f.Operator, f.Value)
	case query.VariantDate, query.VariantDateRange:
		return Date(raw, f.Operator, f.Value)
	case query.VariantNumber, query.VariantRange:
		return Number(raw, f.Operator, f.Value)
	default:
		return true
	}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate converts a timestamp, RFC 3339 or date string, or epoch
// milliseconds into epoch milliseconds.
func ParseDate(v any) (int64, bool) {
	switch val := v.(type) {
	case nil:
		return 0, false
	case time.Time:
		if val.IsZero() {
			return 0, false
		}
		return val.UnixMilli(), true
	case *time.Time:
		if val == nil {
			return 0, false
		}
		return ParseDate(*val)
	case int:
		return int64(val), true
	case int64:
		return val, true
	case float64:
		if math.IsNaN(val) {
			return 0, false
		}
		return int64(val), true
	case *string:
		if val == nil {
			return 0, false
		}
		return ParseDate(*val)
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, false
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return ms, true
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UnixMilli(), true
			}
		}
		return 0, false
	default:
		return 0, false
	}
}

type dateBound struct {
	ms int64
	ok bool
}

func numberTargets(v query.FilterValue) []float64 {
	targets := v.Targets()
	out := make([]float64, len(targets))
	for i, t := range targets {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		n, err := strconv.ParseFloat(t, 64)
		if err != nil {
			n = math.NaN()
		}
		out[i] = n
	}
	return out
}

func toNumber(v any) (float64, bool) {
	switch val := v.(type) {
	case nil:
		return 0, false
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case float64:
		return val, !math.IsNaN(val)
	case *int:
		if val == nil {
			return 0, false
		}
		return float64(*val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, true
		}
		n, err := strconv.ParseFloat(s, 64)
		return n, err == nil
	case *string:
		if val == nil {
			return 0, false
		}
		return toNumber(*val)
	default:
		return 0, false
	}
}

func toString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case *string:
		if val == nil {
			return ""
		}
		return *val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case *int:
		if val == nil {
			return ""
		}
		return strconv.Itoa(*val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case *string:
		return val != nil && *val != ""
	case int:
		return val != 0
	case float64:
		return val != 0 && !math.IsNaN(val)
	default:
		return true
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
