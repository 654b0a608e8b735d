package backend

import (
	"context"
	"net/http"
	"net/url"
)

// Resource is the CRUD surface of one upstream collection. P is the
// create/update payload type.
type Resource[T, P any] struct {
	client *Client
	path   string
	// masterBaseURL, when set, serves Master listings.
	masterBaseURL string
}

// NewResource binds a collection path such as /api/v1/departments.
func NewResource[T, P any](client *Client, path, masterBaseURL string) Resource[T, P] {
	return Resource[T, P]{client: client, path: path, masterBaseURL: masterBaseURL}
}

// Path returns the collection path.
func (r Resource[T, P]) Path() string {
	return r.path
}

// WithClient rebinds the resource to another client.
func (r Resource[T, P]) WithClient(c *Client) Resource[T, P] {
	r.client = c
	return r
}

// HasMaster reports whether a master listing is configured.
func (r Resource[T, P]) HasMaster() bool {
	return r.masterBaseURL != ""
}

// List fetches one page.
func (r Resource[T, P]) List(ctx context.Context, params ListParams) (Envelope[[]T], error) {
	return Call[[]T](ctx, r.client, Request{Method: http.MethodGet, Path: r.path, Query: params.Encode()})
}

// Master lists the collection from the master data service.
func (r Resource[T, P]) Master(ctx context.Context, params ListParams) (Envelope[[]T], error) {
	return Call[[]T](ctx, r.client, Request{Method: http.MethodGet, Path: r.path, Query: params.Encode(), BaseURL: r.masterBaseURL})
}

// Create posts a new record after validating the payload.
func (r Resource[T, P]) Create(ctx context.Context, payload P) (T, error) {
	var zero T
	if err := Validate(payload); err != nil {
		return zero, err
	}
	env, err := Call[T](ctx, r.client, Request{Method: http.MethodPost, Path: r.path, Body: payload})
	if err != nil {
		return zero, err
	}
	return env.Data, nil
}

// Update replaces the record with the given id.
func (r Resource[T, P]) Update(ctx context.Context, id string, payload P) (T, error) {
	var zero T
	if err := Validate(payload); err != nil {
		return zero, err
	}
	env, err := Call[T](ctx, r.client, Request{Method: http.MethodPut, Path: r.path + "/" + url.PathEscape(id), Body: payload})
	if err != nil {
		return zero, err
	}
	return env.Data, nil
}

// Delete removes the record with the given id.
func (r Resource[T, P]) Delete(ctx context.Context, id string) error {
	_, err := Call[*struct{}](ctx, r.client, Request{Method: http.MethodDelete, Path: r.path + "/" + url.PathEscape(id)})
	return err
}
