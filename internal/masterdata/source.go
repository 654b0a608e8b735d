package masterdata

import (
	"context"
	"net/url"

	"github.com/pcr-hr/hr-portal/internal/backend"
	"github.com/pcr-hr/hr-portal/internal/masterdata/query"
)

// Page is one page of list results.
type Page[T any] struct {
	Rows       []T
	Page       int
	PerPage    int
	TotalItems int
	TotalPages int
}

// Source is the data access a Controller needs. P is the create/update
// payload type.
type Source[T, P any] interface {
	List(ctx context.Context, st query.State) (Page[T], error)
	Create(ctx context.Context, payload P) (T, error)
	Update(ctx context.Context, id string, payload P) (T, error)
	Remove(ctx context.Context, id string) error
}

// ResourceSource adapts a backend.Resource to Source.
type ResourceSource[T, P any] struct {
	Resource backend.Resource[T, P]
	// Advanced forwards sort, filters and join operator upstream.
	Advanced bool
	// Extra adds fixed list filters.
	Extra url.Values
}

// List implements Source.
func (s ResourceSource[T, P]) List(ctx context.Context, st query.State) (Page[T], error) {
	params := backend.ParamsFromState(st, s.Advanced)
	params.Extra = s.Extra
	env, err := s.Resource.List(ctx, params)
	if err != nil {
		return Page[T]{}, err
	}
	return pageFromEnvelope(env, st), nil
}

// Create implements Source.
func (s ResourceSource[T, P]) Create(ctx context.Context, payload P) (T, error) {
	return s.Resource.Create(ctx, payload)
}

// Update implements Source.
func (s ResourceSource[T, P]) Update(ctx context.Context, id string, payload P) (T, error) {
	return s.Resource.Update(ctx, id, payload)
}

// Remove implements Source.
func (s ResourceSource[T, P]) Remove(ctx context.Context, id string) error {
	return s.Resource.Delete(ctx, id)
}

func pageFromEnvelope[T any](env backend.Envelope[[]T], st query.State) Page[T] {
	page := Page[T]{Rows: env.Data, Page: st.Page, PerPage: st.PerPage}
	if p := env.PaginationOf(); p != nil {
		if p.Page > 0 {
			page.Page = p.Page
		}
		if p.PerPage > 0 {
			page.PerPage = p.PerPage
		}
		page.TotalItems = p.TotalItems
		page.TotalPages = p.TotalPages
	}
	if page.TotalItems == 0 && page.TotalPages == 0 {
		page.TotalItems = len(page.Rows)
	}
	if page.TotalPages == 0 {
		page.TotalPages = 1
		if page.PerPage > 0 && page.TotalItems > page.PerPage {
			page.TotalPages = (page.TotalItems + page.PerPage - 1) / page.PerPage
		}
	}
	return page
}
