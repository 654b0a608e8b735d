package masterdata_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcr-hr/hr-portal/internal/backend"
	"github.com/pcr-hr/hr-portal/internal/masterdata"
)

func TestLookupsPageThroughEveryPosition(t *testing.T) {
	const total = 230
	var positionCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != backend.PathPositions {
			writeEnvelope(w, http.StatusOK, []any{}, 0)
			return
		}
		positionCalls.Add(1)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
		assert.Equal(t, "active", r.URL.Query().Get("status"))
		var rows []backend.Position
		for i := (page-1)*perPage + 1; i <= total && i <= page*perPage; i++ {
			rows = append(rows, backend.Position{ID: fmt.Sprintf("p%d", i), NamaPosisi: fmt.Sprintf("Posisi %d", i), AliasPosisi: "P", IsActive: true})
		}
		pages := (total + perPage - 1) / perPage
		body := map[string]any{
			"success": true, "code": 200, "message": "OK", "data": rows,
			"meta": map[string]any{"pagination": map[string]any{"page": page, "per_page": perPage, "total_items": total, "total_pages": pages}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)

	res := backend.NewResources(backend.NewClient(srv.URL, srv.Client(), nil), "")
	lookups, err := masterdata.NewLookupService(nil).Load(context.Background(), res, "active")
	require.NoError(t, err)

	assert.Len(t, lookups.Positions.Options, total)
	assert.Equal(t, "Posisi 230 (P)", lookups.Positions.Label("p230"))
	assert.Equal(t, int32(2), positionCalls.Load())
	assert.Empty(t, lookups.Departments.Options)
}
