package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/newssift/newssift/app/pipeline"
	"github.com/newssift/newssift/app/source"
	"github.com/newssift/newssift/app/store"
)

// CycleRunner triggers an ingestion cycle on demand.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*pipeline.BatchReport, error)
}

type Handler struct {
	store   store.Store
	runner  CycleRunner
	version string
}

func NewHandler(st store.Store, runner CycleRunner, version string) *Handler {
	return &Handler{
		store:   st,
		runner:  runner,
		version: version,
	}
}

func (h *Handler) GetRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "News Sift",
		"version": h.version,
	})
}

func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) ListArticles(c *gin.Context) {
	includeSpam := c.Query("include_spam") == "true"

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	articles, err := h.store.ReadArticles()
	if err != nil {
		slog.Error("Failed to read articles", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read articles"})
		return
	}

	filtered := make([]store.Article, 0, len(articles))
	for _, a := range articles {
		if a.IsSpam() && !includeSpam {
			continue
		}
		filtered = append(filtered, a)
		if len(filtered) >= limit {
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"count":    len(filtered),
		"articles": filtered,
	})
}

func (h *Handler) ListSources(c *gin.Context) {
	sources, err := h.store.ReadSources()
	if err != nil {
		slog.Error("Failed to read sources", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read sources"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(sources),
		"sources": sources,
	})
}

func (h *Handler) GetStats(c *gin.Context) {
	articles, err := h.store.ReadArticles()
	if err != nil {
		slog.Error("Failed to read articles", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read articles"})
		return
	}

	sources, err := h.store.ReadSources()
	if err != nil {
		slog.Error("Failed to read sources", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read sources"})
		return
	}

	spamCount := 0
	for _, a := range articles {
		if a.IsSpam() {
			spamCount++
		}
	}

	enabledCount := 0
	validCount := 0
	for _, s := range sources {
		if s.Enabled {
			enabledCount++
		}
		if s.ValidationStatus == store.ValidationValid {
			validCount++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"articles": gin.H{
			"total": len(articles),
			"spam":  spamCount,
		},
		"sources": gin.H{
			"total":   len(sources),
			"enabled": enabledCount,
			"valid":   validCount,
		},
	})
}

func (h *Handler) TriggerScrape(c *gin.Context) {
	report, err := h.runner.RunCycle(c.Request.Context())
	if err != nil {
		slog.Error("Manual scrape cycle failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Scrape cycle failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Scrape cycle completed",
		"report":  report,
	})
}

func (h *Handler) RevalidateSource(c *gin.Context) {
	id := c.Param("id")

	h.store.Lock()
	defer h.store.Unlock()

	sources, err := h.store.ReadSources()
	if err != nil {
		slog.Error("Failed to read sources", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read sources"})
		return
	}

	found := false
	for i := range sources {
		if sources[i].ID != id {
			continue
		}
		source.ClearValidation(&sources[i])
		found = true
		break
	}

	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found", "id": id})
		return
	}

	if err := h.store.WriteSources(sources); err != nil {
		slog.Error("Failed to write sources", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update source"})
		return
	}

	slog.Info("Source validation reset", "id", id)
	c.JSON(http.StatusOK, gin.H{
		"message": "Source will be revalidated on the next cycle",
		"id":      id,
	})
}
