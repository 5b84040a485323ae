package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/stellar-reader/app/feed"
)

// ImportFeedTask fetches a feed and normalizes it. With ExtractContent set,
// each item's content is replaced by the readable text of its linked page
// whenever that page can be fetched and extracted.
type ImportFeedTask struct {
	Task
	ExtractContent   bool
	fetcher          *feed.Fetcher
	parser           *feed.Parser
	contentExtractor *feed.ContentExtractor

	Result *feed.Feed
}

func NewImportFeedTask(feedURL string, extractContent bool, fetcher *feed.Fetcher, parser *feed.Parser, contentExtractor *feed.ContentExtractor) *ImportFeedTask {
	return &ImportFeedTask{
		Task:             NewTask(TaskTypeImportFeed, feedURL),
		ExtractContent:   extractContent,
		fetcher:          fetcher,
		parser:           parser,
		contentExtractor: contentExtractor,
	}
}

func (t *ImportFeedTask) Execute(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	resp, err := t.fetcher.Fetch(ctx, t.Target)
	if err != nil {
		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	parsed, err := t.parser.Run(resp.Body)
	if err != nil {
		return err
	}

	extracted := 0
	if t.ExtractContent {
		for i := range parsed.Items {
			if err := checkContext(ctx); err != nil {
				return err
			}
			if t.extractItem(ctx, &parsed.Items[i]) {
				extracted++
			}
		}
	}
	t.Result = parsed

	slog.Info("Task completed",
		"type", "ImportFeed",
		"feed", t.Target,
		"duration", t.GetDuration(),
		"items", len(parsed.Items),
		"extracted", extracted)

	return nil
}

func (t *ImportFeedTask) extractItem(ctx context.Context, item *feed.Item) bool {
	if item.Link == "" {
		return false
	}

	resp, err := t.fetcher.Fetch(ctx, item.Link)
	if err != nil {
		slog.Warn("Failed to fetch item page", "feed", t.Target, "link", item.Link, "error", err)
		return false
	}

	content, err := t.contentExtractor.Run(resp.Body, item.Link)
	if err != nil {
		slog.Warn("Failed to extract item content", "feed", t.Target, "link", item.Link, "error", err)
		return false
	}

	item.Content = content
	return true
}
