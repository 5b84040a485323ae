package api

import (
	"time"

	"github.com/lysyi3m/stellar-reader/app/database"
	"github.com/lysyi3m/stellar-reader/app/feed"
	"github.com/lysyi3m/stellar-reader/app/tasks"
	"github.com/samber/lo"
)

type OPMLGeneratorInterface interface {
	Run(feeds []database.Feed, categories []database.Category) (string, error)
}

var _ OPMLGeneratorInterface = (*feed.OPMLGenerator)(nil)

type Handler struct {
	feedRepo          database.FeedRepository
	categoryRepo      database.CategoryRepository
	configCache       *feed.ConfigCache
	fetcher           *feed.Fetcher
	parser            *feed.Parser
	metadataExtractor *feed.MetadataExtractor
	contentExtractor  *feed.ContentExtractor
	opmlGenerator     OPMLGeneratorInterface
	scheduler         tasks.TaskSchedulerInterface
}

type categoryResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type feedResponse struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	URL         string             `json:"url"`
	Description string             `json:"description,omitempty"`
	ImageURL    string             `json:"image_url,omitempty"`
	CategoryIDs []string           `json:"category_ids"`
	Categories  []categoryResponse `json:"categories"`
	LastUpdated *time.Time         `json:"last_updated,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

type createFeedRequest struct {
	URL         string   `json:"url" binding:"required"`
	Title       string   `json:"title"`
	CategoryIDs []string `json:"category_ids"`
}

// Absent fields are left unchanged.
type updateFeedRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	ImageURL    *string   `json:"image_url"`
	CategoryIDs *[]string `json:"category_ids"`
}

type createCategoryRequest struct {
	Name  string `json:"name" binding:"required"`
	Color string `json:"color"`
}

type updateCategoryRequest struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

func toCategoryResponse(category database.Category) categoryResponse {
	return categoryResponse{
		ID:    category.ID,
		Name:  category.Name,
		Color: category.Color,
	}
}

// toFeedResponse embeds the feed's categories. IDs without a matching
// category are dropped from the embedded list.
func toFeedResponse(f database.Feed, categoriesByID map[string]database.Category) feedResponse {
	categoryIDs := f.CategoryIDs
	if categoryIDs == nil {
		categoryIDs = []string{}
	}

	return feedResponse{
		ID:          f.ID,
		Title:       f.Title,
		URL:         f.URL,
		Description: f.Description,
		ImageURL:    f.ImageURL,
		CategoryIDs: categoryIDs,
		Categories: lo.FilterMap(categoryIDs, func(id string, _ int) (categoryResponse, bool) {
			category, ok := categoriesByID[id]
			return toCategoryResponse(category), ok
		}),
		LastUpdated: f.LastUpdated,
		CreatedAt:   f.CreatedAt,
	}
}

func keyCategories(categories []database.Category) map[string]database.Category {
	return lo.KeyBy(categories, func(category database.Category) string {
		return category.ID
	})
}
