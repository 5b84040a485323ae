package tasks

// TaskSchedulerInterface defines the interface for background task processing.
// Example usage:
//
//	scheduler := NewScheduler(configCache, feedRepo, categoryRepo, fetcher, metadataExtractor, workerCount)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewRefreshFeedTask(feedID, fetcher, metadataExtractor, feedRepo))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	// RefreshAll enqueues a refresh for every stored feed and returns how
	// many tasks were queued.
	RefreshAll() (int, error)
}
