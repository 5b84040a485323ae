package database

import (
	"time"
)

type Feed struct {
	ID          string     // Database UUID
	Title       string
	URL         string     // RSS/Atom feed URL the subscription was added with
	Description string
	ImageURL    string
	CategoryIDs []string   // In the order they were assigned
	LastUpdated *time.Time // Last successful metadata refresh
	CreatedAt   time.Time
}

type Category struct {
	ID    string
	Name  string
	Color string
}
