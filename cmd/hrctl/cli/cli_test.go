package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/pcr-hr/hr-portal/testing"

	"github.com/pcr-hr/hr-portal/internal/backend"
	"github.com/pcr-hr/hr-portal/internal/masterdata"
)

type programUpstream struct {
	mu      sync.Mutex
	local   []backend.StudyProgram
	master  []backend.StudyProgram
	created []backend.StudyProgramPayload
	auth    []string
}

func (u *programUpstream) serve(master bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.auth = append(u.auth, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodGet:
			rows := u.local
			if master {
				rows = u.master
			}
			page, _ := strconv.Atoi(r.URL.Query().Get("page"))
			if page > 1 {
				rows = nil
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"message": "OK",
				"data":    rows,
				"meta":    map[string]any{"pagination": map[string]any{"page": page, "per_page": 100, "total_items": len(rows), "total_pages": 1}},
			})
		case http.MethodPost:
			var p backend.StudyProgramPayload
			_ = json.NewDecoder(r.Body).Decode(&p)
			u.created = append(u.created, p)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "message": "Created", "data": map[string]any{"id": "new"}})
		default:
			http.NotFound(w, r)
		}
	}
}

func newProgramFixture(t *testing.T) (*programUpstream, backend.Resources) {
	t.Helper()
	u := &programUpstream{
		local: []backend.StudyProgram{
			{ID: "s1", KodeProdi: "TI", NamaProdi: "Teknik Informatika", StatusProdi: "active"},
		},
		master: []backend.StudyProgram{
			{ID: "m1", KodeProdi: "ti", NamaProdi: "Teknik Informatika", StatusProdi: "active"},
			{ID: "m2", KodeProdi: "SI", NamaProdi: "Sistem Informasi", AliasProdi: "SI", JenjangPendidikan: "S1", NamaJurusan: "JTI"},
		},
	}
	local := httptest.NewServer(u.serve(false))
	t.Cleanup(local.Close)
	master := httptest.NewServer(u.serve(true))
	t.Cleanup(master.Close)

	o := Options{BackendURL: local.URL, MasterURL: master.URL, Token: "tok"}
	res, closeFn, err := o.resources(context.Background(), nil)
	require.NoError(t, err)
	t.Cleanup(closeFn)
	return u, res
}

func TestRunExportPage(t *testing.T) {
	u, res := newProgramFixture(t)

	var buf bytes.Buffer
	err := runExport(context.Background(), masterdata.DefaultRegistry(), res, ExportOptions{Entity: "study-programs"}, &buf)
	require.NoError(t, err)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Contains(t, records[1], "Teknik Informatika")
	assert.Equal(t, "Bearer tok", u.auth[0])
}

func TestRunExportUnknownEntity(t *testing.T) {
	_, res := newProgramFixture(t)
	err := runExport(context.Background(), masterdata.DefaultRegistry(), res, ExportOptions{Entity: "payroll"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payroll")
}

func TestRunSyncSkipsExistingCodes(t *testing.T) {
	u, res := newProgramFixture(t)

	result, err := runSync(context.Background(), masterdata.DefaultRegistry(), res, "study-programs")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Fetched)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, u.created, 1)
	assert.Equal(t, "SI", u.created[0].KodeProdi)
	assert.Equal(t, "active", u.created[0].StatusProdi)

	var buf bytes.Buffer
	printSyncResult(&buf, result, false)
	assert.Contains(t, buf.String(), "Created:  1")
}

func TestRunSyncUnsupported(t *testing.T) {
	_, res := newProgramFixture(t)
	_, err := runSync(context.Background(), masterdata.DefaultRegistry(), res, "leave-quotas")
	assert.ErrorIs(t, err, masterdata.ErrSyncUnsupported)
}

func TestResourcesRequireCredentials(t *testing.T) {
	t.Setenv("HRCTL_TOKEN", "")
	_, _, err := Options{}.resources(context.Background(), nil)
	assert.ErrorIs(t, err, errNoCredentials)
}
