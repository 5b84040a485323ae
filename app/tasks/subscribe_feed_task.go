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

// SubscribeFeedTask fetches a feed URL, reads its metadata and stores a new
// subscription. Title overrides the feed's own title when set.
type SubscribeFeedTask struct {
	Task
	Title       string
	CategoryIDs []string
	fetcher     *feed.Fetcher
	extractor   *feed.MetadataExtractor
	feedRepo    database.FeedRepository

	Result *database.Feed
}

func NewSubscribeFeedTask(feedURL, title string, categoryIDs []string, fetcher *feed.Fetcher, extractor *feed.MetadataExtractor, feedRepo database.FeedRepository) *SubscribeFeedTask {
	return &SubscribeFeedTask{
		Task:        NewTask(TaskTypeSubscribeFeed, feedURL),
		Title:       title,
		CategoryIDs: categoryIDs,
		fetcher:     fetcher,
		extractor:   extractor,
		feedRepo:    feedRepo,
	}
}

func (t *SubscribeFeedTask) Execute(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	existing, err := t.feedRepo.GetFeedByURL(t.Target)
	if err != nil {
		return fmt.Errorf("failed to check existing feed: %w", err)
	}
	if existing != nil {
		return database.ErrDuplicateFeed
	}

	resp, err := t.fetcher.Fetch(ctx, t.Target)
	if err != nil {
		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	metadata, err := t.extractor.Run(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read feed metadata: %w", err)
	}

	now := time.Now().UTC()
	created, err := t.feedRepo.CreateFeed(database.Feed{
		Title:       cmp.Or(t.Title, metadata.Title),
		URL:         t.Target,
		Description: metadata.Description,
		ImageURL:    metadata.ImageURL,
		CategoryIDs: t.CategoryIDs,
		LastUpdated: &now,
	})
	if err != nil {
		return fmt.Errorf("failed to store feed: %w", err)
	}
	t.Result = created

	slog.Info("Task completed",
		"type", "SubscribeFeed",
		"feed", created.ID,
		"url", t.Target,
		"duration", t.GetDuration())

	return nil
}
