package backend

import (
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/pcr-hr/hr-portal/internal/masterdata/query"
)

// ListParams are the list query parameters understood by the upstream.
type ListParams struct {
	Status       string
	Page         int
	PerPage      int
	Search       string
	Sort         []query.SortSpec
	Filters      []query.FilterSpec
	JoinOperator string
	// Advanced sends sort, filters and join operator upstream.
	Advanced bool
	// Extra carries entity specific filters such as department_id.
	Extra url.Values
}

// ParamsFromState maps a page query state onto upstream parameters.
func ParamsFromState(st query.State, advanced bool) ListParams {
	return ListParams{
		Status:       st.Status,
		Page:         st.Page,
		PerPage:      st.PerPage,
		Search:       st.Search,
		Sort:         st.Sort,
		Filters:      st.Filters,
		JoinOperator: st.JoinOperator,
		Advanced:     advanced,
	}
}

// Encode renders the parameters for the upstream query string.
func (p ListParams) Encode() url.Values {
	out := url.Values{}
	if p.Status != "" {
		out.Set("status", p.Status)
	}
	if p.Page > 0 {
		out.Set("page", strconv.Itoa(p.Page))
	}
	if p.PerPage > 0 {
		out.Set("per_page", strconv.Itoa(p.PerPage))
	}
	if p.Search != "" {
		out.Set("search", p.Search)
	}
	if p.Advanced {
		if len(p.Sort) > 0 {
			if data, err := json.Marshal(p.Sort); err == nil {
				out.Set("sort", string(data))
			}
		}
		if len(p.Filters) > 0 {
			if data, err := json.Marshal(p.Filters); err == nil {
				out.Set("filters", string(data))
			}
			if p.JoinOperator != "" {
				out.Set("join_operator", p.JoinOperator)
			}
		}
	}
	for key, values := range p.Extra {
		for _, v := range values {
			if v != "" {
				out.Add(key, v)
			}
		}
	}
	return out
}
