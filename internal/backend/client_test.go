package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcr-hr/hr-portal/internal/backend"
	"github.com/pcr-hr/hr-portal/internal/masterdata/query"
	"github.com/pcr-hr/hr-portal/internal/platform/httpx"
)

func newClient(t *testing.T, handler http.HandlerFunc) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return backend.NewClient(srv.URL, srv.Client(), nil).WithTokenSource(func(context.Context) (string, error) {
		return "tok", nil
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestCallDecodesEnvelope(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"code":    200,
			"message": "OK",
			"data":    []map[string]any{{"id": "d1", "name": "Keuangan", "is_active": true}},
			"meta":    map[string]any{"pagination": map[string]any{"page": 1, "per_page": 10, "total_items": 1, "total_pages": 1}},
		})
	})

	env, err := backend.NewResources(c, "").Departments.List(context.Background(), backend.ListParams{Status: "all"})
	require.NoError(t, err)
	require.Len(t, env.Data, 1)
	assert.Equal(t, "Keuangan", env.Data[0].Name)
	require.NotNil(t, env.PaginationOf())
	assert.Equal(t, 1, env.PaginationOf().TotalPages)
}

func TestCallNoContent(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	err := backend.NewResources(c, "").Departments.Delete(context.Background(), "d1")
	assert.NoError(t, err)
}

func TestCallSurfacesUpstreamMessage(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]any{"success": false, "code": 409, "message": "Kode sudah digunakan"})
	})

	_, err := backend.NewResources(c, "").Positions.Create(context.Background(), backend.PositionPayload{NamaPosisi: "Dosen", AliasPosisi: "DSN", SysCode: "DSN"})
	require.Error(t, err)
	assert.Equal(t, "Kode sudah digunakan", err.Error())
	var respErr *backend.ResponseError
	require.True(t, errors.As(err, &respErr))
	assert.Equal(t, http.StatusConflict, respErr.HTTPStatus())
}

func TestCallSuccessFalseOn200(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": ""})
	})

	_, err := backend.Call[any](context.Background(), c, backend.Request{Path: "/x"})
	require.Error(t, err)
	assert.Equal(t, "request failed with status 200", err.Error())
}

func TestCallNonJSONBody(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := backend.Call[any](context.Background(), c, backend.Request{Path: "/x"})
	require.Error(t, err)
	assert.Equal(t, "server returned 502", err.Error())
}

func TestCallNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	_, err := backend.Call[any](context.Background(), backend.NewClient(base, nil, nil), backend.Request{Path: "/x"})
	assert.ErrorIs(t, err, httpx.ErrBadGateway)
}

func TestCallTokenFailureSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls.Add(1) }))
	defer srv.Close()
	c := backend.NewClient(srv.URL, nil, nil).WithTokenSource(func(context.Context) (string, error) {
		return "", httpx.ErrUnauthorized
	})

	_, err := backend.Call[any](context.Background(), c, backend.Request{Path: "/x"})
	assert.ErrorIs(t, err, httpx.ErrUnauthorized)
	assert.Zero(t, calls.Load())
}

func TestCreateValidatesBeforeNetwork(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) { calls.Add(1) })

	_, err := backend.NewResources(c, "").Departments.Create(context.Background(), backend.DepartmentPayload{Alias: "FIN"})
	require.Error(t, err)
	assert.ErrorIs(t, err, httpx.ErrValidation)
	var vErr *backend.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Contains(t, vErr.Fields, "name")
	assert.Contains(t, vErr.Fields, "sys_code")
	assert.Zero(t, calls.Load())
}

func TestUpdateUsesPut(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/services/s-1", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"sys_code":"SVC","name":"Cetak","department_id":"d1","requester_scope":"All","description":"","is_active":true}`, string(body))
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"id": "s-1", "name": "Cetak"}})
	})

	svc, err := backend.NewResources(c, "").Services.Update(context.Background(), "s-1", backend.ServicePayload{
		SysCode: "SVC", Name: "Cetak", DepartmentID: "d1", RequesterScope: "All", IsActive: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "s-1", svc.ID)
}

func TestMasterUsesMasterBaseURL(t *testing.T) {
	master := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/positions", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": []map[string]any{{"id": "p1", "sys_code": "DSN"}}})
	}))
	defer master.Close()
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("default upstream must not be called")
	})

	env, err := backend.NewResources(c, master.URL+"/").Positions.Master(context.Background(), backend.ListParams{Status: "all"})
	require.NoError(t, err)
	require.Len(t, env.Data, 1)
	assert.Equal(t, "DSN", env.Data[0].SysCode)
}

func TestListParamsEncode(t *testing.T) {
	p := backend.ListParams{
		Status:       "active",
		Page:         2,
		PerPage:      25,
		Search:       "fin",
		Sort:         []query.SortSpec{{ID: "name"}},
		JoinOperator: "or",
		Advanced:     true,
	}
	values := p.Encode()
	assert.Equal(t, "active", values.Get("status"))
	assert.Equal(t, "2", values.Get("page"))
	assert.Equal(t, "25", values.Get("per_page"))
	assert.Equal(t, `[{"id":"name","desc":false}]`, values.Get("sort"))
	assert.Empty(t, values.Get("join_operator"), "join operator only accompanies filters")

	p.Filters = []query.FilterSpec{{ID: "name", Value: query.Single("x"), Variant: "text", Operator: "iLike"}}
	assert.Equal(t, "or", p.Encode().Get("join_operator"))

	p.Advanced = false
	assert.Empty(t, p.Encode().Get("filters"))
}
