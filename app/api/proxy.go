package api

import (
	"cmp"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/stellar-reader/app/feed"
)

// GetProxy relays a GET to the url query parameter so browser clients can
// read feeds from other origins.
func (h *Handler) GetProxy(c *gin.Context) {
	target := c.Query("url")
	if target == "" {
		c.String(http.StatusBadRequest, "URL parameter is required.")
		return
	}

	resp, err := h.fetcher.Fetch(c.Request.Context(), target)
	if err != nil {
		status := http.StatusBadGateway
		var fetchErr *feed.FetchError
		if errors.As(err, &fetchErr) {
			status = fetchErr.StatusCode
		}
		slog.Debug("Proxy request failed", "url", target, "status", status, "error", err)
		c.String(status, "Error fetching the target URL.")
		return
	}

	c.Data(resp.StatusCode, cmp.Or(resp.ContentType, "text/plain"), resp.Body)
}
