package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ FeedRepository = (*FeedStore)(nil)

// FeedStore handles database operations for feed subscriptions
type FeedStore struct {
	db *DB
}

func NewFeedStore(db *DB) *FeedStore {
	return &FeedStore{db: db}
}

const feedColumns = `id, title, url, description, image_url, last_updated, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeed(row rowScanner) (*Feed, error) {
	var feed Feed
	var lastUpdated sql.NullTime

	err := row.Scan(&feed.ID, &feed.Title, &feed.URL, &feed.Description, &feed.ImageURL, &lastUpdated, &feed.CreatedAt)
	if err != nil {
		return nil, err
	}

	if lastUpdated.Valid {
		t := lastUpdated.Time
		feed.LastUpdated = &t
	}
	feed.CategoryIDs = []string{}

	return &feed, nil
}

func (r *FeedStore) GetFeed(id string) (*Feed, error) {
	return r.getFeedBy("id", id)
}

func (r *FeedStore) GetFeedByURL(feedURL string) (*Feed, error) {
	return r.getFeedBy("url", feedURL)
}

func (r *FeedStore) getFeedBy(column, value string) (*Feed, error) {
	feed, err := scanFeed(r.db.QueryRow(`SELECT `+feedColumns+` FROM feeds WHERE `+column+` = ?`, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed by %s: %w", column, err)
	}

	categoryIDs, err := r.loadCategoryIDs(feed.ID)
	if err != nil {
		return nil, err
	}
	feed.CategoryIDs = categoryIDs

	return feed, nil
}

// ListFeeds returns feeds in insertion order. A non-empty categoryID limits
// the result to feeds assigned to that category.
func (r *FeedStore) ListFeeds(categoryID string) ([]Feed, error) {
	rows, err := r.db.Query(`
		SELECT `+feedColumns+`
		FROM feeds
		WHERE ? = '' OR id IN (SELECT feed_id FROM feed_categories WHERE category_id = ?)
		ORDER BY rowid
	`, categoryID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", err)
	}

	feeds := []Feed{}
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, *feed)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}
	rows.Close()

	// The single connection is free again once rows are closed.
	links, err := r.loadAllCategoryIDs()
	if err != nil {
		return nil, err
	}
	for i := range feeds {
		if ids, ok := links[feeds[i].ID]; ok {
			feeds[i].CategoryIDs = ids
		}
	}

	return feeds, nil
}

func (r *FeedStore) GetFeedCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM feeds").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

// CreateFeed stores a new subscription with a generated ID. It returns
// ErrDuplicateFeed when the URL is already subscribed and ErrUnknownCategory
// when a category ID does not exist.
func (r *FeedStore) CreateFeed(feed Feed) (*Feed, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM feeds WHERE url = ?`, feed.URL).Scan(&existing); err != nil {
		return nil, fmt.Errorf("failed to check existing feed: %w", err)
	}
	if existing > 0 {
		return nil, ErrDuplicateFeed
	}

	feed.ID = uuid.NewString()
	feed.CreatedAt = time.Now().UTC()
	if feed.CategoryIDs == nil {
		feed.CategoryIDs = []string{}
	}

	_, err = tx.Exec(`
		INSERT INTO feeds (id, title, url, description, image_url, last_updated, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, feed.ID, feed.Title, feed.URL, feed.Description, feed.ImageURL, nullTime(feed.LastUpdated), feed.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert feed: %w", err)
	}

	if err := replaceCategories(tx, feed.ID, feed.CategoryIDs); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit feed: %w", err)
	}

	return &feed, nil
}

// UpdateFeed overwrites the stored metadata and category assignment of an
// existing subscription. URL and creation time are immutable.
func (r *FeedStore) UpdateFeed(feed Feed) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		UPDATE feeds
		SET title = ?, description = ?, image_url = ?, last_updated = ?
		WHERE id = ?
	`, feed.Title, feed.Description, feed.ImageURL, nullTime(feed.LastUpdated), feed.ID)
	if err != nil {
		return fmt.Errorf("failed to update feed: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return err
	}

	if err := replaceCategories(tx, feed.ID, feed.CategoryIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit feed update: %w", err)
	}

	return nil
}

func (r *FeedStore) DeleteFeed(id string) error {
	result, err := r.db.Exec(`DELETE FROM feeds WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete feed: %w", err)
	}
	return requireAffected(result)
}

func (r *FeedStore) loadCategoryIDs(feedID string) ([]string, error) {
	rows, err := r.db.Query(`
		SELECT category_id FROM feed_categories WHERE feed_id = ? ORDER BY position
	`, feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to load feed categories: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan feed category: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (r *FeedStore) loadAllCategoryIDs() (map[string][]string, error) {
	rows, err := r.db.Query(`
		SELECT feed_id, category_id FROM feed_categories ORDER BY feed_id, position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load feed categories: %w", err)
	}
	defer rows.Close()

	links := make(map[string][]string)
	for rows.Next() {
		var feedID, categoryID string
		if err := rows.Scan(&feedID, &categoryID); err != nil {
			return nil, fmt.Errorf("failed to scan feed category: %w", err)
		}
		links[feedID] = append(links[feedID], categoryID)
	}

	return links, rows.Err()
}

func replaceCategories(tx *sql.Tx, feedID string, categoryIDs []string) error {
	if _, err := tx.Exec(`DELETE FROM feed_categories WHERE feed_id = ?`, feedID); err != nil {
		return fmt.Errorf("failed to clear feed categories: %w", err)
	}

	seen := make(map[string]bool, len(categoryIDs))
	position := 0
	for _, categoryID := range categoryIDs {
		if seen[categoryID] {
			continue
		}
		seen[categoryID] = true

		var exists int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM categories WHERE id = ?`, categoryID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check category: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("%w: %s", ErrUnknownCategory, categoryID)
		}

		_, err := tx.Exec(`
			INSERT INTO feed_categories (feed_id, category_id, position) VALUES (?, ?, ?)
		`, feedID, categoryID, position)
		if err != nil {
			return fmt.Errorf("failed to assign category: %w", err)
		}
		position++
	}

	return nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
