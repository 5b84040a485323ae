package tasks

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/stellar-reader/app/database"
	"github.com/lysyi3m/stellar-reader/app/feed"
)

// Seeds run on several workers; category lookup-or-create must not race.
var seedCategoryMu sync.Mutex

// SyncSeedTask stores the subscription described by a seed file unless its
// URL is already stored. When the source cannot be read the subscription is
// still created from the seed alone and picks up metadata on refresh.
type SyncSeedTask struct {
	Task
	SeedConfig   *feed.Config
	fetcher      *feed.Fetcher
	extractor    *feed.MetadataExtractor
	feedRepo     database.FeedRepository
	categoryRepo database.CategoryRepository
}

func NewSyncSeedTask(seedConfig *feed.Config, fetcher *feed.Fetcher, extractor *feed.MetadataExtractor, feedRepo database.FeedRepository, categoryRepo database.CategoryRepository) *SyncSeedTask {
	return &SyncSeedTask{
		Task:         NewTask(TaskTypeSyncSeed, seedConfig.Name),
		SeedConfig:   seedConfig,
		fetcher:      fetcher,
		extractor:    extractor,
		feedRepo:     feedRepo,
		categoryRepo: categoryRepo,
	}
}

func (t *SyncSeedTask) Execute(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	existing, err := t.feedRepo.GetFeedByURL(t.SeedConfig.URL)
	if err != nil {
		return fmt.Errorf("failed to check existing feed: %w", err)
	}
	if existing != nil {
		slog.Debug("Seed already stored, skipping", "seed", t.Target, "feed", existing.ID)
		return nil
	}

	categoryIDs, err := t.resolveCategories()
	if err != nil {
		return err
	}

	newFeed := database.Feed{
		Title:       t.SeedConfig.Title,
		URL:         t.SeedConfig.URL,
		CategoryIDs: categoryIDs,
	}

	metadata, err := t.readMetadata(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("Seed source unreadable, storing without metadata", "seed", t.Target, "error", err)
	} else {
		now := time.Now().UTC()
		newFeed = MergeMetadata(newFeed, metadata, now)
		newFeed.Title = cmp.Or(t.SeedConfig.Title, metadata.Title)
	}
	newFeed.Title = cmp.Or(newFeed.Title, t.SeedConfig.URL)

	created, err := t.feedRepo.CreateFeed(newFeed)
	if errors.Is(err, database.ErrDuplicateFeed) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to store seed feed: %w", err)
	}

	slog.Info("Task completed",
		"type", "SyncSeed",
		"seed", t.Target,
		"feed", created.ID,
		"duration", t.GetDuration())

	return nil
}

func (t *SyncSeedTask) readMetadata(ctx context.Context) (*feed.Metadata, error) {
	resp, err := t.fetcher.Fetch(ctx, t.SeedConfig.URL)
	if err != nil {
		return nil, err
	}
	return t.extractor.Run(resp.Body)
}

func (t *SyncSeedTask) resolveCategories() ([]string, error) {
	seedCategoryMu.Lock()
	defer seedCategoryMu.Unlock()

	ids := make([]string, 0, len(t.SeedConfig.Categories))
	for _, name := range t.SeedConfig.Categories {
		category, err := t.categoryRepo.GetCategoryByName(name)
		if err != nil {
			return nil, fmt.Errorf("failed to look up category %q: %w", name, err)
		}
		if category == nil {
			category, err = t.categoryRepo.CreateCategory(database.Category{Name: name})
			if err != nil {
				return nil, fmt.Errorf("failed to create category %q: %w", name, err)
			}
			slog.Debug("Category created from seed", "seed", t.Target, "category", name)
		}
		ids = append(ids, category.ID)
	}

	return ids, nil
}
