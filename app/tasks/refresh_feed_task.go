package tasks

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/stellar-reader/app/database"
	"github.com/lysyi3m/stellar-reader/app/feed"
)

// RefreshFeedTask re-reads a subscription's source and merges the channel
// metadata into the stored record.
type RefreshFeedTask struct {
	Task
	fetcher   *feed.Fetcher
	extractor *feed.MetadataExtractor
	feedRepo  database.FeedRepository

	// Result holds the stored feed after a successful run.
	Result *database.Feed
}

func NewRefreshFeedTask(feedID string, fetcher *feed.Fetcher, extractor *feed.MetadataExtractor, feedRepo database.FeedRepository) *RefreshFeedTask {
	return &RefreshFeedTask{
		Task:      NewTask(TaskTypeRefreshFeed, feedID),
		fetcher:   fetcher,
		extractor: extractor,
		feedRepo:  feedRepo,
	}
}

func (t *RefreshFeedTask) Execute(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	stored, err := t.feedRepo.GetFeed(t.Target)
	if err != nil {
		return fmt.Errorf("failed to load feed: %w", err)
	}
	if stored == nil {
		return fmt.Errorf("feed %s: %w", t.Target, database.ErrNotFound)
	}

	resp, err := t.fetcher.Fetch(ctx, stored.URL)
	if err != nil {
		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	metadata, err := t.extractor.Run(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read feed metadata: %w", err)
	}

	merged := MergeMetadata(*stored, metadata, time.Now().UTC())
	if err := t.feedRepo.UpdateFeed(merged); err != nil {
		return fmt.Errorf("failed to store feed metadata: %w", err)
	}
	t.Result = &merged

	slog.Info("Task completed",
		"type", "RefreshFeed",
		"feed", t.Target,
		"duration", t.GetDuration())

	return nil
}

// MergeMetadata applies freshly read metadata to a stored feed. Empty values
// never overwrite stored ones.
func MergeMetadata(stored database.Feed, metadata *feed.Metadata, now time.Time) database.Feed {
	stored.Title = cmp.Or(metadata.Title, stored.Title)
	stored.Description = cmp.Or(metadata.Description, stored.Description)
	stored.ImageURL = cmp.Or(metadata.ImageURL, stored.ImageURL)
	stored.LastUpdated = &now
	return stored
}
