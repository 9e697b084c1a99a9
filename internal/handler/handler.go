package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"newshub/internal/model"
	"newshub/internal/scheduler"
	"newshub/internal/service"
	"newshub/internal/store"
)

// FeedStore 订阅源管理
type FeedStore interface {
	ListFeeds(ctx context.Context) ([]model.Feed, error)
	CreateFeed(ctx context.Context, feed *model.Feed) error
	DeleteFeed(ctx context.Context, id uint) error
}

type Handler struct {
	news      *service.NewsService
	status    *service.StatusService
	feeds     FeedStore
	pageSize  int
	scheduler interface {
		Trigger(name string) error
	}
}

func NewHandler(news *service.NewsService, status *service.StatusService, feeds FeedStore, pageSize int) *Handler {
	if pageSize <= 0 || pageSize > 50 {
		pageSize = 50
	}
	return &Handler{
		news:     news,
		status:   status,
		feeds:    feeds,
		pageSize: pageSize,
	}
}

// SetScheduler 设置调度器引用
func (h *Handler) SetScheduler(scheduler interface {
	Trigger(name string) error
}) {
	h.scheduler = scheduler
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/news", h.ListNews)

	// API
	api := r.Group("/api")
	{
		// News
		api.GET("/news", h.ListNews)
		api.GET("/news-rank", h.RankedNews)

		// Feeds
		api.GET("/feeds", h.ListFeeds)
		api.POST("/feeds", h.CreateFeed)
		api.DELETE("/feeds/:id", h.DeleteFeed)

		// Ingest
		api.POST("/ingest/:fetcher", h.TriggerIngest)

		// Status
		api.GET("/status", h.GetStatus)
	}
}

// ===== News相关 =====

type listQuery struct {
	Limit *int `form:"limit" binding:"omitempty,min=1,max=50"`
}

func (h *Handler) limit(c *gin.Context) (int, bool) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, false
	}
	if q.Limit == nil {
		return h.pageSize, true
	}
	return *q.Limit, true
}

func (h *Handler) ListNews(c *gin.Context) {
	limit, ok := h.limit(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"articles": h.news.GetRecent(c.Request.Context(), limit)})
}

func (h *Handler) RankedNews(c *gin.Context) {
	limit, ok := h.limit(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"articles": h.news.GetRanked(c.Request.Context(), limit)})
}

// ===== Feed相关 =====

func (h *Handler) ListFeeds(c *gin.Context) {
	feeds, err := h.feeds.ListFeeds(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, feeds)
}

func (h *Handler) CreateFeed(c *gin.Context) {
	var input struct {
		Name string `json:"name" binding:"required"`
		URL  string `json:"url" binding:"required,url"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	feed := model.Feed{Name: input.Name, URL: input.URL, Enabled: true}
	if err := h.feeds.CreateFeed(c.Request.Context(), &feed); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, feed)
}

func (h *Handler) DeleteFeed(c *gin.Context) {
	var uri struct {
		ID uint `uri:"id" binding:"required"`
	}
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.feeds.DeleteFeed(c.Request.Context(), uri.ID); err != nil {
		if errors.Is(err, store.ErrFeedNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// ===== Ingest相关 =====

func (h *Handler) TriggerIngest(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler not running"})
		return
	}

	name := c.Param("fetcher")
	err := h.scheduler.Trigger(name)
	switch {
	case errors.Is(err, scheduler.ErrUnknownJob):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, scheduler.ErrCycleRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		log.Printf("[API] manual %s cycle started", name)
		c.JSON(http.StatusAccepted, gin.H{"message": "ingest started", "fetcher": name})
	}
}

// ===== Status相关 =====

func (h *Handler) GetStatus(c *gin.Context) {
	status, err := h.status.GetSystemStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}
