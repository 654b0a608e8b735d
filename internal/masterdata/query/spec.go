package query

import (
	"bytes"
	"encoding/json"
)

// Filter variants understood by the evaluator.
const (
	VariantText        = "text"
	VariantNumber      = "number"
	VariantRange       = "range"
	VariantDate        = "date"
	VariantDateRange   = "dateRange"
	VariantBoolean     = "boolean"
	VariantSelect      = "select"
	VariantMultiSelect = "multiSelect"
)

// Join operators.
const (
	JoinAnd = "and"
	JoinOr  = "or"
)

// SortSpec orders rows by one column.
type SortSpec struct {
	ID   string `json:"id"`
	Desc bool   `json:"desc"`
}

// FilterSpec is one advanced filter row.
type FilterSpec struct {
	ID       string      `json:"id"`
	Value    FilterValue `json:"value"`
	Variant  string      `json:"variant"`
	Operator string      `json:"operator"`
	FilterID string      `json:"filterId,omitempty"`
}

// FilterValue holds either a single string or a list of strings, keeping the
// shape it was decoded from.
type FilterValue struct {
	items []string
	list  bool
}

// Single builds a scalar filter value.
func Single(v string) FilterValue {
	if v == "" {
		return FilterValue{}
	}
	return FilterValue{items: []string{v}}
}

// List builds a list filter value.
func List(vs ...string) FilterValue {
	return FilterValue{items: append([]string(nil), vs...), list: true}
}

// Targets returns the non-empty values.
func (v FilterValue) Targets() []string {
	out := make([]string, 0, len(v.items))
	for _, item := range v.items {
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Raw returns every value including blanks, in position order.
func (v FilterValue) Raw() []string {
	return append([]string(nil), v.items...)
}

// MarshalJSON implements json.Marshaler.
func (v FilterValue) MarshalJSON() ([]byte, error) {
	if v.list {
		if v.items == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.items)
	}
	if len(v.items) == 0 {
		return []byte(`""`), nil
	}
	return json.Marshal(v.items[0])
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *FilterValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = FilterValue{}
		return nil
	case len(data) > 0 && data[0] == '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*v = FilterValue{items: items, list: true}
		return nil
	default:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Single(s)
		return nil
	}
}
