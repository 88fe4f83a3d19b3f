// Package handlers implements the dashboard API endpoints. Every
// handler is read-only against the snapshot repository.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/kdp-ads-analytics/internal/api/dto"
	"github.com/eshaffer321/kdp-ads-analytics/internal/infrastructure/storage"
)

// Health handles GET /health.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{Status: "healthy"})
}

// WeeksHandler serves stored weekly snapshots.
type WeeksHandler struct {
	repo storage.Repository
}

// NewWeeksHandler creates a weeks handler.
func NewWeeksHandler(repo storage.Repository) *WeeksHandler {
	return &WeeksHandler{repo: repo}
}

// List handles GET /api/weeks.
func (h *WeeksHandler) List(c *gin.Context) {
	weeks, err := h.repo.ListSnapshots()
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	if weeks == nil {
		weeks = []storage.Snapshot{}
	}

	c.JSON(http.StatusOK, dto.WeekListResponse{Weeks: weeks, Count: len(weeks)})
}

// Get handles GET /api/weeks/:week_start.
func (h *WeeksHandler) Get(c *gin.Context) {
	weekStart := c.Param("week_start")
	if weekStart == "" {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("week_start is required"))
		return
	}

	detail, err := h.repo.GetSnapshot(weekStart)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	if detail == nil {
		c.JSON(http.StatusNotFound, dto.NotFoundError("snapshot"))
		return
	}

	c.JSON(http.StatusOK, detail)
}

// TrendsHandler serves metric history pivoted across weeks.
type TrendsHandler struct {
	repo storage.Repository
}

// NewTrendsHandler creates a trends handler.
func NewTrendsHandler(repo storage.Repository) *TrendsHandler {
	return &TrendsHandler{repo: repo}
}

// Get handles GET /api/trends?metric=spend&campaign=&weeks=8.
func (h *TrendsHandler) Get(c *gin.Context) {
	metric := c.Query("metric")
	if metric == "" {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("metric is required"))
		return
	}
	campaign := c.Query("campaign")

	weeks := 8
	if raw := c.Query("weeks"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, dto.BadRequestError("weeks must be a positive integer"))
			return
		}
		weeks = parsed
	}

	table, err := h.repo.TrendData(metric, campaign, weeks)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidMetric) {
			c.JSON(http.StatusBadRequest, dto.BadRequestError("unknown metric: "+metric))
			return
		}
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}

	c.JSON(http.StatusOK, table)
}

// LifetimeHandler serves the all-time rollup.
type LifetimeHandler struct {
	repo storage.Repository
}

// NewLifetimeHandler creates a lifetime handler.
func NewLifetimeHandler(repo storage.Repository) *LifetimeHandler {
	return &LifetimeHandler{repo: repo}
}

// Get handles GET /api/lifetime.
func (h *LifetimeHandler) Get(c *gin.Context) {
	summary, err := h.repo.LifetimeSummary()
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	if summary == nil {
		c.JSON(http.StatusNotFound, dto.NotFoundError("lifetime summary"))
		return
	}

	c.JSON(http.StatusOK, summary)
}
