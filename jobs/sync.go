package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/pcr-hr/hr-portal/internal/jobs"
	"github.com/pcr-hr/hr-portal/internal/masterdata"
)

// SyncPayload identifies the entity to sync and the session whose tokens
// authorise the upstream calls.
type SyncPayload struct {
	Entity    string `json:"entity"`
	SessionID string `json:"session_id"`
}

// Syncer runs a master-data sync on behalf of a session.
type Syncer interface {
	Sync(ctx context.Context, entity, sessionID string) (masterdata.SyncResult, error)
}

// MasterdataSyncJob handles TaskMasterdataSync tasks.
type MasterdataSyncJob struct {
	Syncer  Syncer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewMasterdataSyncJob constructs the job handler.
func NewMasterdataSyncJob(syncer Syncer, logger *slog.Logger, metrics *jobmetrics.Metrics) *MasterdataSyncJob {
	return &MasterdataSyncJob{
		Syncer:  syncer,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// NewMasterdataSyncTask creates an Asynq task for syncing one entity.
func NewMasterdataSyncTask(payload SyncPayload) (*asynq.Task, error) {
	if payload.Entity == "" {
		return nil, errors.New("masterdata sync: entity required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMasterdataSync, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// Handle executes the sync job.
func (j *MasterdataSyncJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Syncer == nil {
		return errors.New("masterdata sync: dependencies not configured")
	}
	var payload SyncPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Entity == "" || payload.SessionID == "" {
		j.log().Warn("discarding sync task without entity or session")
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskMasterdataSync)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.log().With(slog.String("entity", payload.Entity))
	start := j.now()
	result, err := j.Syncer.Sync(ctx, payload.Entity, payload.SessionID)
	j.metrics().AddSynced(payload.Entity, "created", result.Created)
	j.metrics().AddSynced(payload.Entity, "skipped", result.Skipped)
	j.metrics().AddSynced(payload.Entity, "failed", result.Failed)
	if err != nil {
		resultErr = err
		if errors.Is(err, masterdata.ErrSyncUnsupported) {
			logger.Warn("entity cannot be synced", slog.Any("error", err))
			resultErr = errors.Join(err, asynq.SkipRetry)
			return resultErr
		}
		logger.Error("sync master data", slog.Int("created", result.Created), slog.Int("failed", result.Failed), slog.Any("error", err))
		return resultErr
	}

	logger.Info("synced master data",
		slog.Int("fetched", result.Fetched),
		slog.Int("created", result.Created),
		slog.Int("skipped", result.Skipped),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *MasterdataSyncJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *MasterdataSyncJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskMasterdataSync))
	}
	return slog.Default().With(slog.String("job", TaskMasterdataSync))
}

func (j *MasterdataSyncJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the internal clock for deterministic tests.
func (j *MasterdataSyncJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}
