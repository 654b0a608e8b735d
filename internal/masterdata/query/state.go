// Package query holds the list query state of a master-data page and its
// URL codec.
package query

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
)

// URL query keys.
const (
	KeyPage         = "page"
	KeyPerPage      = "perPage"
	KeySearch       = "search"
	KeyStatus       = "status"
	KeySort         = "sort"
	KeyFilters      = "filters"
	KeyJoinOperator = "joinOperator"
)

// Status filter values.
const (
	StatusAll      = "all"
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// DefaultPerPage is the page size when none is configured.
const DefaultPerPage = 10

// State is the list query a page is showing.
type State struct {
	Page         int
	PerPage      int
	Search       string
	Status       string
	Sort         []SortSpec
	Filters      []FilterSpec
	JoinOperator string
}

// Defaults configures parsing and encoding for one page.
type Defaults struct {
	PerPage  int
	Status   string
	Sort     []SortSpec
	Statuses []string
	// Columns restricts sortable and filterable column IDs. Empty allows any.
	Columns []string
}

func (d Defaults) perPage() int {
	if d.PerPage > 0 {
		return d.PerPage
	}
	return DefaultPerPage
}

func (d Defaults) status() string {
	if d.Status != "" {
		return d.Status
	}
	return StatusAll
}

func (d Defaults) statusAllowed(s string) bool {
	statuses := d.Statuses
	if len(statuses) == 0 {
		statuses = []string{StatusAll, StatusActive, StatusInactive}
	}
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func (d Defaults) columnAllowed(id string) bool {
	if id == "" {
		return false
	}
	if len(d.Columns) == 0 {
		return true
	}
	for _, c := range d.Columns {
		if c == id {
			return true
		}
	}
	return false
}

// Initial returns the state a page starts from.
func (d Defaults) Initial() State {
	return State{
		Page:         1,
		PerPage:      d.perPage(),
		Status:       d.status(),
		Sort:         append([]SortSpec(nil), d.Sort...),
		JoinOperator: JoinAnd,
	}
}

// Parse reads a State from URL values. Malformed entries fall back to
// defaults instead of failing.
func Parse(values url.Values, d Defaults) State {
	st := d.Initial()
	if n, err := strconv.Atoi(values.Get(KeyPage)); err == nil && n >= 1 {
		st.Page = n
	}
	if n, err := strconv.Atoi(values.Get(KeyPerPage)); err == nil && n >= 1 {
		st.PerPage = n
	}
	st.Search = values.Get(KeySearch)
	if s := values.Get(KeyStatus); s != "" && d.statusAllowed(s) {
		st.Status = s
	}
	if raw := values.Get(KeySort); raw != "" {
		var sorts []SortSpec
		if err := json.Unmarshal([]byte(raw), &sorts); err == nil {
			st.Sort = st.Sort[:0]
			for _, s := range sorts {
				if d.columnAllowed(s.ID) {
					st.Sort = append(st.Sort, s)
				}
			}
		}
	}
	if raw := values.Get(KeyFilters); raw != "" {
		var filters []FilterSpec
		if err := json.Unmarshal([]byte(raw), &filters); err == nil {
			for _, f := range filters {
				if d.columnAllowed(f.ID) {
					st.Filters = append(st.Filters, f)
				}
			}
		}
	}
	if values.Get(KeyJoinOperator) == JoinOr {
		st.JoinOperator = JoinOr
	}
	return st
}

// Encode renders the state as URL values, omitting values equal to their
// defaults.
func (s State) Encode(d Defaults) url.Values {
	out := url.Values{}
	if s.Page > 1 {
		out.Set(KeyPage, strconv.Itoa(s.Page))
	}
	if s.PerPage > 0 && s.PerPage != d.perPage() {
		out.Set(KeyPerPage, strconv.Itoa(s.PerPage))
	}
	if s.Search != "" {
		out.Set(KeySearch, s.Search)
	}
	if s.Status != "" && s.Status != d.status() {
		out.Set(KeyStatus, s.Status)
	}
	if !sortsEqual(s.Sort, d.Sort) {
		out.Set(KeySort, mustJSON(s.Sort))
	}
	if len(s.Filters) > 0 {
		out.Set(KeyFilters, mustJSON(s.Filters))
	}
	if s.JoinOperator == JoinOr {
		out.Set(KeyJoinOperator, JoinOr)
	}
	return out
}

// Key is the canonical identity of the state. Two states with the same key
// fetch the same data.
func (s State) Key() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(s.Page))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(s.PerPage))
	b.WriteByte('|')
	b.WriteString(s.Status)
	b.WriteByte('|')
	b.WriteString(strconv.Quote(s.Search))
	b.WriteByte('|')
	b.WriteString(mustJSON(s.Sort))
	b.WriteByte('|')
	b.WriteString(mustJSON(s.Filters))
	b.WriteByte('|')
	b.WriteString(s.JoinOperator)
	return b.String()
}

// Clamp keeps the page inside [1, max(1, totalPages)].
func (s State) Clamp(totalPages int) State {
	if totalPages < 1 {
		totalPages = 1
	}
	if s.Page > totalPages {
		s.Page = totalPages
	}
	if s.Page < 1 {
		s.Page = 1
	}
	return s
}

// Clone returns a deep copy.
func (s State) Clone() State {
	s.Sort = append([]SortSpec(nil), s.Sort...)
	s.Filters = append([]FilterSpec(nil), s.Filters...)
	return s
}

func sortsEqual(a, b []SortSpec) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
