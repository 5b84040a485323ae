package database

import "errors"

var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicateFeed   = errors.New("feed with this URL already exists")
	ErrUnknownCategory = errors.New("unknown category")
)

// Lookups return (nil, nil) when the record does not exist. Updates and
// deletes of a missing record return ErrNotFound.
type FeedRepository interface {
	GetFeed(id string) (*Feed, error)
	GetFeedByURL(feedURL string) (*Feed, error)
	ListFeeds(categoryID string) ([]Feed, error)
	GetFeedCount() (int, error)

	CreateFeed(feed Feed) (*Feed, error)
	UpdateFeed(feed Feed) error
	DeleteFeed(id string) error
}

type CategoryRepository interface {
	GetCategory(id string) (*Category, error)
	GetCategoryByName(name string) (*Category, error)
	ListCategories() ([]Category, error)

	CreateCategory(category Category) (*Category, error)
	UpdateCategory(category Category) error
	DeleteCategory(id string) error
}
