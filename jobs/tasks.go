package jobs

import (
	jobmetrics "github.com/pcr-hr/hr-portal/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskMasterdataSync copies one entity from the master API into the backend.
	TaskMasterdataSync = "masterdata:sync"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)
