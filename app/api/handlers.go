package api

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/stellar-reader/app/database"
	"github.com/lysyi3m/stellar-reader/app/feed"
	"github.com/lysyi3m/stellar-reader/app/tasks"
	"github.com/samber/lo"
)

func NewHandler(configCache *feed.ConfigCache, feedRepo database.FeedRepository,
	categoryRepo database.CategoryRepository, fetcher *feed.Fetcher,
	scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		feedRepo:          feedRepo,
		categoryRepo:      categoryRepo,
		configCache:       configCache,
		fetcher:           fetcher,
		parser:            feed.NewParser(),
		metadataExtractor: feed.NewMetadataExtractor(),
		contentExtractor:  feed.NewContentExtractor(),
		opmlGenerator:     feed.NewOPMLGenerator(),
		scheduler:         scheduler,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
		health["feeds"] = feedCount
	}

	if h.configCache != nil {
		health["loaded_seeds"] = h.configCache.GetConfigCount()
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetValidate(c *gin.Context) {
	target := c.Query("url")
	if target == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing url parameter"})
		return
	}

	valid, err := h.fetcher.Validate(c.Request.Context(), target)
	if err != nil {
		slog.Debug("Feed URL validation failed", "url", target, "error", err)
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": valid})
}

func (h *Handler) PostParse(c *gin.Context) {
	data, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	parsed, err := h.parser.Run(data)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, parsed)
}

func (h *Handler) ListFeeds(c *gin.Context) {
	feeds, err := h.feedRepo.ListFeeds(c.Query("category"))
	if err != nil {
		h.respondError(c, "list_feeds", err)
		return
	}

	categoriesByID, err := h.categoriesByID()
	if err != nil {
		h.respondError(c, "list_categories", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"feeds": lo.Map(feeds, func(f database.Feed, _ int) feedResponse {
			return toFeedResponse(f, categoriesByID)
		}),
		"total": len(feeds),
	})
}

func (h *Handler) CreateFeed(c *gin.Context) {
	var req createFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	feedURL := strings.TrimSpace(req.URL)
	if !isHTTPURL(feedURL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url must be an absolute http(s) URL"})
		return
	}

	task := tasks.NewSubscribeFeedTask(feedURL, strings.TrimSpace(req.Title), req.CategoryIDs,
		h.fetcher, h.metadataExtractor, h.feedRepo)
	task.Start()
	if err := task.Execute(c.Request.Context()); err != nil {
		h.respondError(c, "create_feed", err)
		return
	}

	h.respondFeed(c, http.StatusCreated, *task.Result)
}

func (h *Handler) GetFeed(c *gin.Context) {
	f, ok := h.loadFeed(c)
	if !ok {
		return
	}

	h.respondFeed(c, http.StatusOK, *f)
}

func (h *Handler) UpdateFeed(c *gin.Context) {
	f, ok := h.loadFeed(c)
	if !ok {
		return
	}

	var req updateFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title must not be empty"})
			return
		}
		f.Title = title
	}
	if req.Description != nil {
		f.Description = strings.TrimSpace(*req.Description)
	}
	if req.ImageURL != nil {
		f.ImageURL = strings.TrimSpace(*req.ImageURL)
	}
	if req.CategoryIDs != nil {
		f.CategoryIDs = *req.CategoryIDs
	}

	if err := h.feedRepo.UpdateFeed(*f); err != nil {
		h.respondError(c, "update_feed", err)
		return
	}

	updated, err := h.feedRepo.GetFeed(f.ID)
	if err != nil || updated == nil {
		h.respondError(c, "get_feed", cmp.Or(err, database.ErrNotFound))
		return
	}

	h.respondFeed(c, http.StatusOK, *updated)
}

func (h *Handler) DeleteFeed(c *gin.Context) {
	if err := h.feedRepo.DeleteFeed(c.Param("id")); err != nil {
		h.respondError(c, "delete_feed", err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) RefreshFeed(c *gin.Context) {
	task := tasks.NewRefreshFeedTask(c.Param("id"), h.fetcher, h.metadataExtractor, h.feedRepo)
	task.Start()
	if err := task.Execute(c.Request.Context()); err != nil {
		h.respondError(c, "refresh_feed", err)
		return
	}

	h.respondFeed(c, http.StatusOK, *task.Result)
}

func (h *Handler) RefreshAllFeeds(c *gin.Context) {
	enqueued, err := h.scheduler.RefreshAll()
	if err != nil {
		h.respondError(c, "refresh_all", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success":  true,
		"enqueued": enqueued,
	})
}

func (h *Handler) GetFeedItems(c *gin.Context) {
	f, ok := h.loadFeed(c)
	if !ok {
		return
	}

	extract, _ := strconv.ParseBool(c.Query("extract"))

	task := tasks.NewImportFeedTask(f.URL, extract, h.fetcher, h.parser, h.contentExtractor)
	task.Start()
	if err := task.Execute(c.Request.Context()); err != nil {
		h.respondError(c, "import_feed", err)
		return
	}

	c.Header("X-Feed-Items", strconv.Itoa(len(task.Result.Items)))
	c.JSON(http.StatusOK, task.Result)
}

func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.categoryRepo.ListCategories()
	if err != nil {
		h.respondError(c, "list_categories", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"categories": lo.Map(categories, func(category database.Category, _ int) categoryResponse {
			return toCategoryResponse(category)
		}),
		"total": len(categories),
	})
}

func (h *Handler) CreateCategory(c *gin.Context) {
	var req createCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name must not be empty"})
		return
	}

	created, err := h.categoryRepo.CreateCategory(database.Category{Name: name, Color: strings.TrimSpace(req.Color)})
	if err != nil {
		h.respondError(c, "create_category", err)
		return
	}

	c.JSON(http.StatusCreated, toCategoryResponse(*created))
}

func (h *Handler) UpdateCategory(c *gin.Context) {
	category, err := h.categoryRepo.GetCategory(c.Param("id"))
	if err != nil {
		h.respondError(c, "get_category", err)
		return
	}
	if category == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
		return
	}

	var req updateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name must not be empty"})
			return
		}
		category.Name = name
	}
	if req.Color != nil {
		category.Color = strings.TrimSpace(*req.Color)
	}

	if err := h.categoryRepo.UpdateCategory(*category); err != nil {
		h.respondError(c, "update_category", err)
		return
	}

	c.JSON(http.StatusOK, toCategoryResponse(*category))
}

func (h *Handler) DeleteCategory(c *gin.Context) {
	if err := h.categoryRepo.DeleteCategory(c.Param("id")); err != nil {
		h.respondError(c, "delete_category", err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) ExportOPML(c *gin.Context) {
	feeds, err := h.feedRepo.ListFeeds("")
	if err != nil {
		h.respondError(c, "list_feeds", err)
		return
	}

	categories, err := h.categoryRepo.ListCategories()
	if err != nil {
		h.respondError(c, "list_categories", err)
		return
	}

	opml, err := h.opmlGenerator.Run(feeds, categories)
	if err != nil {
		slog.Error("OPML generation error", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="subscriptions.opml"`)
	c.Data(http.StatusOK, "text/x-opml; charset=utf-8", []byte(opml))
}

func (h *Handler) loadFeed(c *gin.Context) (*database.Feed, bool) {
	f, err := h.feedRepo.GetFeed(c.Param("id"))
	if err != nil {
		h.respondError(c, "get_feed", err)
		return nil, false
	}
	if f == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return nil, false
	}
	return f, true
}

func (h *Handler) respondFeed(c *gin.Context, status int, f database.Feed) {
	categoriesByID, err := h.categoriesByID()
	if err != nil {
		h.respondError(c, "list_categories", err)
		return
	}

	c.JSON(status, toFeedResponse(f, categoriesByID))
}

func (h *Handler) categoriesByID() (map[string]database.Category, error) {
	categories, err := h.categoryRepo.ListCategories()
	if err != nil {
		return nil, err
	}
	return keyCategories(categories), nil
}

// respondError maps domain errors onto HTTP statuses. Anything unrecognized
// is logged and reported as 500.
func (h *Handler) respondError(c *gin.Context, operation string, err error) {
	var fetchErr *feed.FetchError
	var feedErr *feed.FeedError
	var parseErr *feed.ParseError
	var urlErr *url.Error

	switch {
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, database.ErrDuplicateFeed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, database.ErrUnknownCategory):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &fetchErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch feed", "details": err.Error(), "status": fetchErr.StatusCode})
	case errors.Is(err, feed.ErrBodyTooLarge):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Upstream response too large", "details": err.Error()})
	case errors.As(err, &feedErr), errors.As(err, &parseErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Feed could not be read", "details": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Upstream request timed out"})
	case errors.As(err, &urlErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch feed", "details": err.Error()})
	default:
		slog.Error("Request failed", "operation", operation, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
