package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/pcr-hr/hr-portal/internal/jobs"
	"github.com/pcr-hr/hr-portal/internal/masterdata"
)

type stubSyncer struct {
	calls  []SyncPayload
	result masterdata.SyncResult
	err    error
}

func (s *stubSyncer) Sync(_ context.Context, entity, sessionID string) (masterdata.SyncResult, error) {
	s.calls = append(s.calls, SyncPayload{Entity: entity, SessionID: sessionID})
	return s.result, s.err
}

func newSyncTask(t *testing.T, payload SyncPayload) *asynq.Task {
	t.Helper()
	task, err := NewMasterdataSyncTask(payload)
	require.NoError(t, err)
	return task
}

func TestNewMasterdataSyncTask(t *testing.T) {
	task := newSyncTask(t, SyncPayload{Entity: "positions", SessionID: "sid"})
	assert.Equal(t, TaskMasterdataSync, task.Type())

	var payload SyncPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "positions", payload.Entity)
	assert.Equal(t, "sid", payload.SessionID)

	_, err := NewMasterdataSyncTask(SyncPayload{SessionID: "sid"})
	assert.Error(t, err)
}

func TestMasterdataSyncJobRecordsResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	syncer := &stubSyncer{result: masterdata.SyncResult{Entity: "positions", Fetched: 5, Created: 3, Skipped: 2}}
	job := NewMasterdataSyncJob(syncer, nil, metrics)

	err := job.Handle(context.Background(), newSyncTask(t, SyncPayload{Entity: "positions", SessionID: "sid"}))
	require.NoError(t, err)
	require.Len(t, syncer.calls, 1)
	assert.Equal(t, "sid", syncer.calls[0].SessionID)

	count, err := testutil.GatherAndCount(reg, "hrportal_sync_records_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	count, err = testutil.GatherAndCount(reg, "hrportal_jobs_failures_total")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMasterdataSyncJobFailureCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	syncer := &stubSyncer{result: masterdata.SyncResult{Entity: "positions", Created: 1, Failed: 1}, err: errors.New("upstream 500")}
	job := NewMasterdataSyncJob(syncer, nil, metrics)

	err := job.Handle(context.Background(), newSyncTask(t, SyncPayload{Entity: "positions", SessionID: "sid"}))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	count, err := testutil.GatherAndCount(reg, "hrportal_jobs_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMasterdataSyncJobSkipsRetry(t *testing.T) {
	syncer := &stubSyncer{err: masterdata.ErrSyncUnsupported}
	job := NewMasterdataSyncJob(syncer, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	err := job.Handle(context.Background(), newSyncTask(t, SyncPayload{Entity: "services", SessionID: "sid"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), asynq.NewTask(TaskMasterdataSync, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), newSyncTask(t, SyncPayload{Entity: "positions"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Len(t, syncer.calls, 1)
}

func TestMasterdataSyncJobRequiresSyncer(t *testing.T) {
	var job *MasterdataSyncJob
	assert.Error(t, job.Handle(context.Background(), asynq.NewTask(TaskMasterdataSync, nil)))
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, nil).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data queueHealth `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, QueueDefault, body.Data.Queue)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks/abc", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
