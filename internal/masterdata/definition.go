package masterdata

import (
	"strings"

	"github.com/pcr-hr/hr-portal/internal/masterdata/evaluate"
	"github.com/pcr-hr/hr-portal/internal/masterdata/query"
)

// Column describes one table column of an entity.
type Column[T any] struct {
	ID    string
	Label string
	// Variant is the filter variant; empty disables filtering.
	Variant string
	// Value returns the raw value used by filters.
	Value func(T) any
	// Sort returns the comparable value; nil sorts by the lowercased Value.
	Sort func(T) any
	// Export renders the CSV cell; nil leaves the column out of exports.
	Export func(T) string
}

// Definition configures a Controller for one entity.
type Definition[T, P any] struct {
	// Name is the display name used in messages, e.g. "Departemen".
	Name string
	// Key identifies the entity in routes and cache keys, e.g. "departments".
	Key      string
	GetRowID func(T) string
	RowLabel func(T) string
	// IsActive drives the status filter; nil disables it.
	IsActive func(T) bool
	// StatusPayload builds the update payload for a status toggle; nil
	// disables toggling.
	StatusPayload  func(row T, next bool) P
	DefaultForm    P
	FormFromEntity func(T) P
	Columns        []Column[T]
	StatusOptions  []string
	DefaultSort    []query.SortSpec
	PerPage        int
	// Advanced forwards sort and filters upstream.
	Advanced bool
	// NaturalKey identifies a record across systems, used by sync.
	NaturalKey func(T) string
	// ListFilters names extra URL parameters forwarded to the list call.
	ListFilters []string
	// SearchFields is the haystack used to re-apply search to fetched rows.
	// When nil the server's search result is shown as is.
	SearchFields func(T) []string
}

// Defaults returns the query defaults of the entity.
func (d Definition[T, P]) Defaults() query.Defaults {
	ids := make([]string, 0, len(d.Columns))
	for _, col := range d.Columns {
		ids = append(ids, col.ID)
	}
	return query.Defaults{
		PerPage:  d.PerPage,
		Sort:     d.DefaultSort,
		Statuses: d.StatusOptions,
		Columns:  ids,
	}
}

func (d Definition[T, P]) column(id string) (Column[T], bool) {
	for _, col := range d.Columns {
		if col.ID == id {
			return col, true
		}
	}
	return Column[T]{}, false
}

func (d Definition[T, P]) label(row T) string {
	if d.RowLabel != nil {
		return d.RowLabel(row)
	}
	return d.GetRowID(row)
}

// process re-applies search, status, filters and sort to fetched rows.
func (d Definition[T, P]) process(rows []T, st query.State) []T {
	opts := evaluate.Options[T]{
		Search:       st.Search,
		SearchFields: d.SearchFields,
		Status:       st.Status,
		Filters:      st.Filters,
		JoinOperator: st.JoinOperator,
		Sort:         st.Sort,
		Value: func(row T, id string) any {
			col, ok := d.column(id)
			if !ok || col.Value == nil {
				return ""
			}
			return col.Value(row)
		},
		SortValue: func(row T, id string) any {
			col, ok := d.column(id)
			if !ok {
				return ""
			}
			if col.Sort != nil {
				return col.Sort(row)
			}
			if col.Value == nil {
				return ""
			}
			switch v := col.Value(row).(type) {
			case string:
				return strings.ToLower(v)
			case *string:
				if v == nil {
					return nil
				}
				return strings.ToLower(*v)
			default:
				return v
			}
		},
	}
	if d.IsActive != nil {
		opts.StatusMatch = func(row T, status string) bool {
			switch status {
			case query.StatusActive:
				return d.IsActive(row)
			case query.StatusInactive:
				return !d.IsActive(row)
			default:
				return true
			}
		}
	}
	return evaluate.Process(rows, opts)
}
