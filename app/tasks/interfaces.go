package tasks

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application and the API layer to manage background task
// processing: content imports, quiz generation, reward reconciliation and
// session sweeping.
// Example usage:
//
//	scheduler := NewScheduler(itemRepo, ledgerSvc, registry, analyzerClient, httpClient, sources)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewImportFeedTask(...))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
