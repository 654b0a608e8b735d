package masterdata_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcr-hr/hr-portal/internal/backend"
	"github.com/pcr-hr/hr-portal/internal/masterdata"
	"github.com/pcr-hr/hr-portal/internal/platform/cache"
)

type upstream struct {
	mu        sync.Mutex
	positions []backend.Position
	master    []backend.Position
	requests  []string
	lists     atomic.Int32
}

func (u *upstream) record(r *http.Request) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.requests = append(u.requests, r.Method+" "+r.URL.Path)
}

func (u *upstream) calls(prefix string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := 0
	for _, req := range u.requests {
		if strings.HasPrefix(req, prefix) {
			n++
		}
	}
	return n
}

func writeEnvelope(w http.ResponseWriter, status int, data any, total int) {
	body := map[string]any{"success": status < 400, "code": status, "message": "OK", "data": data}
	if total >= 0 {
		body["meta"] = map[string]any{"pagination": map[string]any{"page": 1, "per_page": 50, "total_items": total, "total_pages": 1}}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (u *upstream) handler(master bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u.record(r)
		u.mu.Lock()
		defer u.mu.Unlock()
		switch {
		case r.Method == http.MethodGet && r.URL.Path == backend.PathPositions:
			u.lists.Add(1)
			rows := u.positions
			if master {
				rows = u.master
			}
			writeEnvelope(w, http.StatusOK, rows, len(rows))
		case r.Method == http.MethodGet:
			writeEnvelope(w, http.StatusOK, []any{}, 0)
		case r.Method == http.MethodPost && r.URL.Path == backend.PathPositions:
			var p backend.PositionPayload
			_ = json.NewDecoder(r.Body).Decode(&p)
			created := backend.Position{ID: "p" + p.SysCode, NamaPosisi: p.NamaPosisi, AliasPosisi: p.AliasPosisi, SysCode: p.SysCode, IsActive: p.IsActive}
			u.positions = append(u.positions, created)
			writeEnvelope(w, http.StatusCreated, created, -1)
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPut:
			writeEnvelope(w, http.StatusOK, map[string]any{"id": "x"}, -1)
		default:
			http.NotFound(w, r)
		}
	}
}

type fakeEnqueuer struct {
	entities []string
}

func (f *fakeEnqueuer) EnqueueSync(_ context.Context, entity string) (string, error) {
	f.entities = append(f.entities, entity)
	return "task-1", nil
}

type fixture struct {
	up     *upstream
	router http.Handler
	redis  *miniredis.Miniredis
}

func newFixture(t *testing.T, enqueuer masterdata.SyncEnqueuer) *fixture {
	t.Helper()
	up := &upstream{
		positions: []backend.Position{{ID: "p1", NamaPosisi: "Dosen", AliasPosisi: "DSN", SysCode: "DSN", IsActive: true}},
		master: []backend.Position{
			{ID: "m1", NamaPosisi: "Dosen", AliasPosisi: "DSN", SysCode: "dsn", IsActive: true},
			{ID: "m2", NamaPosisi: "Tendik", AliasPosisi: "TDK", SysCode: "TDK", IsActive: true},
			{ID: "m3", NamaPosisi: "Kaprodi", AliasPosisi: "KPR", SysCode: "KPR", IsActive: true},
		},
	}
	local := httptest.NewServer(up.handler(false))
	t.Cleanup(local.Close)
	master := httptest.NewServer(up.handler(true))
	t.Cleanup(master.Close)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	resources := func(context.Context) backend.Resources {
		return backend.NewResources(backend.NewClient(local.URL, local.Client(), nil), master.URL)
	}
	lookups := masterdata.NewLookupService(cache.NewVersioned(client, "test:lookups", time.Minute))
	h := masterdata.NewHandler(nil, masterdata.DefaultRegistry(), resources, lookups, enqueuer)
	r := chi.NewRouter()
	r.Route("/masterdata", h.MountRoutes)
	return &fixture{up: up, router: r, redis: mr}
}

func (f *fixture) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	var out map[string]any
	if strings.Contains(rec.Header().Get("Content-Type"), "json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestListReturnsRowsAndPagination(t *testing.T) {
	f := newFixture(t, nil)
	rec, body := f.do(t, http.MethodGet, "/masterdata/positions?status=active", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rows := body["data"].([]any)
	require.Len(t, rows, 1)
	meta := body["meta"].(map[string]any)
	assert.Equal(t, float64(1), meta["pagination"].(map[string]any)["total_pages"])
	assert.Equal(t, "status=active", meta["query"])
}

func TestUnknownEntity(t *testing.T) {
	f := newFixture(t, nil)
	rec, _ := f.do(t, http.MethodGet, "/masterdata/unicorns", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateRejectsInvalidPayloadLocally(t *testing.T) {
	f := newFixture(t, nil)
	rec, body := f.do(t, http.MethodPost, "/masterdata/positions", `{"nama_posisi":""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Zero(t, f.up.calls("POST"))
}

func TestCreateNotifiesSaved(t *testing.T) {
	f := newFixture(t, nil)
	rec, body := f.do(t, http.MethodPost, "/masterdata/positions", `{"nama_posisi":"Staf","alias_posisi":"STF","sys_code":"STF","is_active":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Posisi tersimpan.", body["message"])
	assert.Equal(t, 1, f.up.calls("POST "+backend.PathPositions))
}

func TestDeleteAsksForConfirmationFirst(t *testing.T) {
	f := newFixture(t, nil)
	rec, body := f.do(t, http.MethodDelete, "/masterdata/positions/p1?label=Dosen", "")
	require.Equal(t, http.StatusOK, rec.Code)
	confirmation := body["data"].(map[string]any)["confirmation"].(map[string]any)
	assert.Equal(t, "Hapus posisi?", confirmation["title"])
	assert.Equal(t, `Data "Dosen" akan diarsipkan.`, confirmation["description"])
	assert.Zero(t, f.up.calls("DELETE"))

	rec, body = f.do(t, http.MethodDelete, "/masterdata/positions/p1?label=Dosen&confirm=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Posisi dihapus.", body["message"])
	assert.Equal(t, 1, f.up.calls("DELETE "+backend.PathPositions+"/p1"))
}

func TestBulkWithoutRowsWarns(t *testing.T) {
	f := newFixture(t, nil)
	rec, body := f.do(t, http.MethodPost, "/masterdata/positions/bulk", `{"action":"delete","rows":[],"confirm":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Pilih setidaknya satu posisi terlebih dahulu.", body["message"])
}

func TestBulkStatusUpdatesEverySelectedRow(t *testing.T) {
	f := newFixture(t, nil)
	rows := `[{"id":"a","nama_posisi":"A","alias_posisi":"A","sys_code":"A","is_active":true},{"id":"b","nama_posisi":"B","alias_posisi":"B","sys_code":"B","is_active":true}]`
	rec, body := f.do(t, http.MethodPost, "/masterdata/positions/bulk", `{"action":"deactivate","rows":`+rows+`,"confirm":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Posisi dinonaktifkan.", body["message"])
	assert.Equal(t, 2, f.up.calls("PUT"))
}

func TestStatusToggleUnsupportedEntity(t *testing.T) {
	f := newFixture(t, nil)
	rec, _ := f.do(t, http.MethodPost, "/masterdata/leave-quotas/q1/status", `{"row":{"id":"q1","jumlah_cuti":12},"is_active":false}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncInlineSkipsExistingNaturalKeys(t *testing.T) {
	f := newFixture(t, nil)
	rec, body := f.do(t, http.MethodPost, "/masterdata/positions/sync", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Sinkronisasi posisi selesai.", body["message"])
	result := body["data"].(map[string]any)
	assert.Equal(t, float64(3), result["fetched"])
	assert.Equal(t, float64(2), result["created"])
	assert.Equal(t, float64(1), result["skipped"])
	assert.Equal(t, 2, f.up.calls("POST "+backend.PathPositions))
}

func TestSyncEnqueuesWhenWorkerConfigured(t *testing.T) {
	enq := &fakeEnqueuer{}
	f := newFixture(t, enq)
	rec, body := f.do(t, http.MethodPost, "/masterdata/study-programs/sync", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "task-1", body["data"].(map[string]any)["task_id"])
	assert.Equal(t, []string{"study-programs"}, enq.entities)

	rec, _ = f.do(t, http.MethodPost, "/masterdata/services/sync", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLookupsAreCachedUntilMutation(t *testing.T) {
	f := newFixture(t, nil)
	rec, body := f.do(t, http.MethodGet, "/masterdata/lookups", "")
	require.Equal(t, http.StatusOK, rec.Code)
	positions := body["data"].(map[string]any)["positions"].(map[string]any)
	assert.Equal(t, "Dosen (DSN)", positions["labels"].(map[string]any)["p1"])
	require.Equal(t, int32(1), f.up.lists.Load())

	_, _ = f.do(t, http.MethodGet, "/masterdata/lookups", "")
	assert.Equal(t, int32(1), f.up.lists.Load())

	_, _ = f.do(t, http.MethodPost, "/masterdata/positions", `{"nama_posisi":"Staf","alias_posisi":"STF","sys_code":"STF","is_active":true}`)
	_, _ = f.do(t, http.MethodGet, "/masterdata/lookups", "")
	assert.Equal(t, int32(2), f.up.lists.Load())
}

func TestExportAllReturnsCSV(t *testing.T) {
	f := newFixture(t, nil)
	rec, _ := f.do(t, http.MethodGet, "/masterdata/positions/export?all=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "positions-all.csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\r\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Nama Posisi,Alias,Sys Code,Status", lines[0])
	assert.Equal(t, "Dosen,DSN,DSN,Aktif", lines[1])
}
