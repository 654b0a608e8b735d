// Package backend is a typed client for the upstream HR REST API.
package backend

import (
	"fmt"
	"strings"
)

// Envelope is the wrapper every upstream response uses.
type Envelope[T any] struct {
	Success bool              `json:"success"`
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Data    T                 `json:"data"`
	Errors  []APIError        `json:"errors,omitempty"`
	Meta    *Meta             `json:"meta,omitempty"`
	Links   map[string]string `json:"links,omitempty"`
}

// APIError is one structured error entry.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Field   *string        `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Meta carries pagination and request metadata.
type Meta struct {
	APIVersion string         `json:"api_version,omitempty"`
	Timestamp  string         `json:"timestamp,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	Pagination *Pagination    `json:"pagination,omitempty"`
	Sort       *SortMeta      `json:"sort,omitempty"`
	Filters    map[string]any `json:"filters,omitempty"`
}

// Pagination describes the page a list response holds.
type Pagination struct {
	Page       int `json:"page,omitempty"`
	PerPage    int `json:"per_page,omitempty"`
	TotalItems int `json:"total_items,omitempty"`
	TotalPages int `json:"total_pages,omitempty"`
}

// SortMeta echoes the applied sort.
type SortMeta struct {
	By    string `json:"by,omitempty"`
	Order string `json:"order,omitempty"`
}

// PaginationOf returns the pagination block or nil.
func (e Envelope[T]) PaginationOf() *Pagination {
	if e.Meta == nil {
		return nil
	}
	return e.Meta.Pagination
}

// ResponseError is returned when the upstream rejects a request. Its message
// is the upstream message verbatim so it can be shown to the user.
type ResponseError struct {
	Status  int
	Message string
	Errors  []APIError
}

func (e *ResponseError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// HTTPStatus lets httpx relay the upstream status.
func (e *ResponseError) HTTPStatus() int {
	if e.Status < 400 {
		return 502
	}
	return e.Status
}

// FieldErrors returns structured errors keyed by field.
func (e *ResponseError) FieldErrors() map[string]string {
	out := make(map[string]string)
	for _, item := range e.Errors {
		if item.Field == nil || strings.TrimSpace(*item.Field) == "" {
			continue
		}
		out[*item.Field] = item.Message
	}
	return out
}
