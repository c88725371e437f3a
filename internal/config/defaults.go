package config

import "time"

const (
	DefaultPollInterval      = 12 * time.Hour
	DefaultReportInterval    = 12 * time.Hour
	DefaultReportWindow      = 12 * time.Hour
	DefaultVisibilityTimeout = 30 * time.Minute
	DefaultDispatchTimeout   = 5 * time.Minute
	DefaultWorkerCount       = 5
	DefaultBatchSize         = 100
	DefaultQueueName         = "jobs-queue"
	DefaultQueueDriver       = Redis
	DefaultHTTPPort          = 8080
)
