package jobs

import (
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRecurringGenerate materialises due recurring templates for a day.
	TaskRecurringGenerate = "ledger:recurring.generate"
	// TaskGLIntegrity verifies the posted ledger still balances.
	TaskGLIntegrity = "ledger:gl.integrity"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)
