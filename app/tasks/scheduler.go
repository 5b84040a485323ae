package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/lysyi3m/stellar-reader/app/database"
	"github.com/lysyi3m/stellar-reader/app/feed"
)

const (
	taskQueueSize = 300
	taskTimeout   = 5 * time.Minute
	maxRetryDelay = 30 * time.Second
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	feedRepo          database.FeedRepository
	categoryRepo      database.CategoryRepository
	configCache       *feed.ConfigCache
	fetcher           *feed.Fetcher
	metadataExtractor *feed.MetadataExtractor
	workerCount       int
	retryBaseDelay    time.Duration
	ctx               context.Context
	cancel            context.CancelFunc
	wg                sync.WaitGroup
	taskQueue         chan TaskInterface
}

func NewScheduler(configCache *feed.ConfigCache, feedRepo database.FeedRepository,
	categoryRepo database.CategoryRepository, fetcher *feed.Fetcher,
	metadataExtractor *feed.MetadataExtractor, workerCount int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		feedRepo:          feedRepo,
		categoryRepo:      categoryRepo,
		configCache:       configCache,
		fetcher:           fetcher,
		metadataExtractor: metadataExtractor,
		workerCount:       max(workerCount, 1),
		retryBaseDelay:    time.Second,
		ctx:               ctx,
		cancel:            cancel,
		taskQueue:         make(chan TaskInterface, taskQueueSize),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.enqueueStartupTasks()
}

// Stop cancels in-flight tasks and pending retries and waits for the workers
// to exit. Tasks still queued are dropped.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) RefreshAll() (int, error) {
	feeds, err := s.feedRepo.ListFeeds("")
	if err != nil {
		return 0, fmt.Errorf("failed to list feeds: %w", err)
	}

	enqueued := 0
	for _, f := range feeds {
		task := NewRefreshFeedTask(f.ID, s.fetcher, s.metadataExtractor, s.feedRepo)
		if err := s.EnqueueTask(task); err != nil {
			slog.Warn("Failed to enqueue RefreshFeedTask", "feed", f.ID, "error", err)
			continue
		}
		enqueued++
	}

	slog.Debug("Refresh of all feeds scheduled", "feeds", len(feeds), "enqueued", enqueued)

	return enqueued, nil
}

func (s *Scheduler) enqueueStartupTasks() {
	if s.configCache == nil {
		return
	}

	seedConfigs := s.configCache.GetConfigs()
	if len(seedConfigs) == 0 {
		slog.Debug("No seed configurations found")
		return
	}

	slog.Debug("Processing seed configurations", "count", len(seedConfigs))

	for _, seedConfig := range seedConfigs {
		syncTask := NewSyncSeedTask(seedConfig, s.fetcher, s.metadataExtractor, s.feedRepo, s.categoryRepo)
		if err := s.EnqueueTask(syncTask); err != nil {
			slog.Warn("Failed to enqueue SyncSeedTask", "seed", seedConfig.Name, "error", err)
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	if s.ctx.Err() != nil {
		slog.Debug("Scheduler stopped, task interrupted", "type", string(task.GetType()), "id", task.GetID())
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if isPermanent(err) {
		slog.Warn("Task failed permanently, not retrying", "type", string(task.GetType()), "id", task.GetID(), "target", task.GetTarget(), "error", err)
		return
	}

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	task.IncrementRetryCount()
	retryDelay := s.retryDelay(task.GetRetryCount())

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "target", task.GetTarget(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	// The calling worker holds a wg slot, so Add cannot race with Wait reaching zero.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			return
		case <-time.After(retryDelay):
		}

		if retryErr := s.EnqueueTask(task); retryErr != nil {
			slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
		}
	}()
}

// isPermanent reports failures that a retry cannot fix: missing or conflicting
// records and client-side upstream errors other than timeouts and rate limits.
func isPermanent(err error) bool {
	if errors.Is(err, database.ErrNotFound) ||
		errors.Is(err, database.ErrDuplicateFeed) ||
		errors.Is(err, database.ErrUnknownCategory) {
		return true
	}

	var fetchErr *feed.FetchError
	if errors.As(err, &fetchErr) {
		switch fetchErr.StatusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests:
			return false
		}
		return fetchErr.StatusCode >= 400 && fetchErr.StatusCode < 500
	}

	return false
}

func (s *Scheduler) retryDelay(retryCount int) time.Duration {
	delay := s.retryBaseDelay << uint(retryCount-1)
	return min(delay, maxRetryDelay)
}
