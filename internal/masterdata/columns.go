package masterdata

import (
	"strconv"
	"strings"

	"github.com/pcr-hr/hr-portal/internal/masterdata/evaluate"
	"github.com/pcr-hr/hr-portal/internal/masterdata/query"
)

func textColumn[T any](id, label string, get func(T) string) Column[T] {
	return Column[T]{
		ID:      id,
		Label:   label,
		Variant: query.VariantText,
		Value:   func(row T) any { return get(row) },
		Export:  get,
	}
}

func optionalTextColumn[T any](id, label string, get func(T) *string) Column[T] {
	return Column[T]{
		ID:      id,
		Label:   label,
		Variant: query.VariantText,
		Value:   func(row T) any { return get(row) },
		Sort: func(row T) any {
			v := get(row)
			if v == nil {
				return nil
			}
			return strings.ToLower(*v)
		},
		Export: func(row T) string { return deref(get(row)) },
	}
}

func selectColumn[T any](id, label string, get func(T) string) Column[T] {
	return Column[T]{
		ID:      id,
		Label:   label,
		Variant: query.VariantSelect,
		Value:   func(row T) any { return get(row) },
		Export:  get,
	}
}

func statusColumn[T any](isActive func(T) bool) Column[T] {
	get := func(row T) string {
		if isActive(row) {
			return query.StatusActive
		}
		return query.StatusInactive
	}
	return Column[T]{
		ID:      "status",
		Label:   "Status",
		Variant: query.VariantSelect,
		Value:   func(row T) any { return get(row) },
		Export: func(row T) string {
			if isActive(row) {
				return "Aktif"
			}
			return "Nonaktif"
		},
	}
}

func booleanColumn[T any](id, label string, get func(T) bool) Column[T] {
	return Column[T]{
		ID:      id,
		Label:   label,
		Variant: query.VariantBoolean,
		Value:   func(row T) any { return get(row) },
		Sort: func(row T) any {
			if get(row) {
				return 1
			}
			return 0
		},
		Export: func(row T) string {
			if get(row) {
				return "Ya"
			}
			return "Tidak"
		},
	}
}

func numberColumn[T any](id, label string, get func(T) *int) Column[T] {
	return Column[T]{
		ID:      id,
		Label:   label,
		Variant: query.VariantNumber,
		Value: func(row T) any {
			if v := get(row); v != nil {
				return *v
			}
			return nil
		},
		Sort: func(row T) any {
			if v := get(row); v != nil {
				return *v
			}
			return nil
		},
		Export: func(row T) string {
			if v := get(row); v != nil {
				return strconv.Itoa(*v)
			}
			return ""
		},
	}
}

func dateColumn[T any](id, label string, get func(T) string) Column[T] {
	return Column[T]{
		ID:      id,
		Label:   label,
		Variant: query.VariantDate,
		Value:   func(row T) any { return get(row) },
		Sort: func(row T) any {
			ms, ok := evaluate.ParseDate(get(row))
			if !ok {
				return nil
			}
			return ms
		},
		Export: get,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// nullable turns blank form input into JSON null.
func nullable(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
