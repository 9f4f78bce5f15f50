// Package web exposes the stored tours and the inbox scan over HTTP.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"toursync/internal/database"
	"toursync/internal/inbox"
)

type Handler struct {
	store   database.Store
	scanner *inbox.Scanner
}

func NewHandler(store database.Store, scanner *inbox.Scanner) *Handler {
	return &Handler{store: store, scanner: scanner}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/", h.Index)
	router.GET("/tours", h.TourList)
	router.GET("/tours/:id", h.TourDetail)
	router.POST("/scan", h.Scan)
}

func (h *Handler) Health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (h *Handler) Index(c *gin.Context) {
	stats, err := h.store.GetStats()
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) TourList(c *gin.Context) {
	filters := database.TourFilters{
		DeviceID:  c.Query("device"),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}

	filters.Limit, _ = strconv.Atoi(c.Query("limit"))
	if filters.Limit <= 0 {
		filters.Limit = 50
	}
	filters.Offset, _ = strconv.Atoi(c.Query("offset"))

	if v := c.Query("min_distance"); v != "" {
		filters.MinDistance, _ = strconv.ParseFloat(v, 64)
	}
	if v := c.Query("max_distance"); v != "" {
		filters.MaxDistance, _ = strconv.ParseFloat(v, 64)
	}
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filters.DateFrom = &t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filters.DateTo = &t
		}
	}

	tours, err := h.store.FilterTours(filters)
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	if tours == nil {
		tours = []database.TourSummary{}
	}
	c.JSON(http.StatusOK, tours)
}

func (h *Handler) TourDetail(c *gin.Context) {
	tour, err := h.store.GetTour(c.Param("id"))
	if err != nil {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, tour)
}

// Scan triggers an inbox scan and returns the report. The scan runs in
// the request; large inboxes should use the scheduler instead.
func (h *Handler) Scan(c *gin.Context) {
	report, err := h.scanner.Scan(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "report": report})
		return
	}
	c.JSON(http.StatusOK, report)
}
