package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/fanline/internal/api/middleware"
	"github.com/d60-Lab/fanline/pkg/response"
)

// GetFeed returns one page of a user's timeline.
// @Summary Get a user's feed page
// @Tags feed
// @Param userId path string true "user id"
// @Param page query int false "page" default(1)
// @Param limit query int false "page size" default(20)
// @Success 200 {object} response.Response{data=service.FeedPage}
// @Failure 500 {object} response.Response
// @Router /api/feed/{userId} [get]
func (h *Handler) GetFeed(c *gin.Context) {
	userID := c.Param("userId")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	feed, err := h.feed.GetUserFeed(c.Request.Context(), userID, page, limit)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, feed)
}

// InvalidateFeed drops a user's cached timeline; the next read regenerates it.
// @Summary Invalidate a user's feed cache
// @Tags feed
// @Param userId path string true "user id"
// @Success 200 {object} response.Response
// @Router /api/feed/{userId} [delete]
func (h *Handler) InvalidateFeed(c *gin.Context) {
	if err := h.feed.InvalidateFeed(c.Request.Context(), c.Param("userId")); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"invalidated": true})
}

type createPostRequest struct {
	Content  string `json:"content"`
	MediaURL string `json:"mediaUrl"`
}

// CreatePost persists a post for the authenticated user and fans it out.
// @Summary Create a post
// @Tags feed
// @Accept json
// @Produce json
// @Param request body createPostRequest true "post body"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/feed/post [post]
func (h *Handler) CreatePost(c *gin.Context) {
	ident := middleware.IdentityFrom(c)
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.Content == "" && req.MediaURL == "" {
		response.BadRequest(c, "post content is required")
		return
	}
	post, err := h.feed.CreatePost(c.Request.Context(), ident.UserID, ident.Username, req.Content, req.MediaURL)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, post)
}

// RegenerateFeed rebuilds one user's timeline from the source of truth.
// @Summary Regenerate a user's feed
// @Tags feed
// @Param userId path string true "user id"
// @Success 200 {object} response.Response
// @Router /api/feed/regenerate/{userId} [post]
func (h *Handler) RegenerateFeed(c *gin.Context) {
	if err := h.feed.RegenerateUserFeed(c.Request.Context(), c.Param("userId"), nil); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"regenerated": true})
}

type batchRegenerateRequest struct {
	UserIDs []string `json:"userIds" binding:"required"`
}

// BatchRegenerate rebuilds many timelines, reporting per-user success counts.
// @Summary Regenerate feeds for a batch of users
// @Tags feed
// @Accept json
// @Param request body batchRegenerateRequest true "user ids"
// @Success 200 {object} response.Response
// @Router /api/feed/batch-regenerate [post]
func (h *Handler) BatchRegenerate(c *gin.Context) {
	var req batchRegenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ok, failed := h.feed.BatchRegenerate(c.Request.Context(), req.UserIDs)
	response.Success(c, gin.H{"succeeded": ok, "failed": failed})
}

type cacheListRequest struct {
	UserID string   `json:"userId" binding:"required"`
	IDs    []string `json:"ids" binding:"required"`
}

// CacheFollowers primes the follower cache used by the fan-out writer.
// @Summary Push a user's follower list into the relationship cache
// @Tags feed
// @Accept json
// @Param request body cacheListRequest true "user id and follower ids"
// @Success 200 {object} response.Response
// @Router /api/feed/cache-followers [post]
func (h *Handler) CacheFollowers(c *gin.Context) {
	var req cacheListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.feed.CacheFollowers(c.Request.Context(), req.UserID, req.IDs); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"cached": len(req.IDs)})
}

// CacheFollowing primes the following cache used by the feed reader.
// @Summary Push a user's following list into the relationship cache
// @Tags feed
// @Accept json
// @Param request body cacheListRequest true "user id and following ids"
// @Success 200 {object} response.Response
// @Router /api/feed/cache-following [post]
func (h *Handler) CacheFollowing(c *gin.Context) {
	var req cacheListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.feed.CacheFollowing(c.Request.Context(), req.UserID, req.IDs); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"cached": len(req.IDs)})
}
