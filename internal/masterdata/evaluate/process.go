package evaluate

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/pcr-hr/hr-portal/internal/masterdata/query"
)

// Options describes how Process reads a row type.
type Options[T any] struct {
	Search       string
	SearchFields func(T) []string

	Status      string
	StatusMatch func(row T, status string) bool

	Filters      []query.FilterSpec
	JoinOperator string
	// Value returns the raw column value used by filters.
	Value func(row T, columnID string) any

	Sort []query.SortSpec
	// SortValue returns the comparable column value used by sorting.
	SortValue func(row T, columnID string) any
}

// Process applies search, status, filters and sorting, in that order. The
// input slice is never modified.
func Process[T any](rows []T, opts Options[T]) []T {
	out := make([]T, 0, len(rows))
	term := strings.ToLower(strings.TrimSpace(opts.Search))

	for _, row := range rows {
		if term != "" && opts.SearchFields != nil && !matchesSearch(opts.SearchFields(row), term) {
			continue
		}
		if opts.Status != "" && opts.Status != query.StatusAll && opts.StatusMatch != nil && !opts.StatusMatch(row, opts.Status) {
			continue
		}
		if len(opts.Filters) > 0 && opts.Value != nil && !Join(row, opts.Filters, opts.JoinOperator, opts.Value) {
			continue
		}
		out = append(out, row)
	}

	if len(opts.Sort) > 0 && opts.SortValue != nil {
		Sort(out, opts.Sort, opts.SortValue)
	}
	return out
}

// Join combines filter results with "and" (all) or "or" (any).
func Join[T any](row T, filters []query.FilterSpec, joinOperator string, value func(T, string) any) bool {
	if joinOperator == query.JoinOr {
		for _, f := range filters {
			if Match(value(row, f.ID), f) {
				return true
			}
		}
		return false
	}
	for _, f := range filters {
		if !Match(value(row, f.ID), f) {
			return false
		}
	}
	return true
}

// Sort orders rows in place by the sort keys, falling through to the next
// key on ties. Equal rows keep their relative order.
func Sort[T any](rows []T, keys []query.SortSpec, value func(T, string) any) {
	cmp := NewComparator()
	sort.SliceStable(rows, func(i, j int) bool {
		for _, key := range keys {
			c := cmp.Compare(value(rows[i], key.ID), value(rows[j], key.ID))
			if c == 0 {
				continue
			}
			if key.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// Comparator orders sort values: nil first, numbers by magnitude, everything
// else by locale collation of its string form. A Comparator is not safe for
// concurrent use.
type Comparator struct {
	collator *collate.Collator
}

// NewComparator returns a Comparator using root collation.
func NewComparator() *Comparator {
	return &Comparator{collator: collate.New(language.Und)}
}

// Compare returns a negative, zero or positive result.
func (c *Comparator) Compare(a, b any) int {
	a, b = normalize(a), normalize(b)
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	if af, ok := a.(float64); ok {
		if bf, ok := b.(float64); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	if as == bs {
		return 0
	}
	return c.collator.CompareString(as, bs)
}

func normalize(v any) any {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case float32:
		return float64(val)
	case *int:
		if val == nil {
			return nil
		}
		return float64(*val)
	case *string:
		if val == nil {
			return nil
		}
		return *val
	default:
		return v
	}
}

func matchesSearch(haystacks []string, term string) bool {
	for _, h := range haystacks {
		if strings.Contains(strings.ToLower(h), term) {
			return true
		}
	}
	return false
}
