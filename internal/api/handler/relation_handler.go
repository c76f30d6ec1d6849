package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/fanline/internal/api/middleware"
	"github.com/d60-Lab/fanline/internal/service"
	"github.com/d60-Lab/fanline/pkg/response"
)

type followRequest struct {
	TargetUserID string `json:"targetUserId" binding:"required"`
}

// Follow creates a follow edge from the caller plus its fan-side mirror.
// @Summary Follow a user
// @Tags relations
// @Accept json
// @Param request body followRequest true "target user"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/relations/follow [post]
func (h *Handler) Follow(c *gin.Context) {
	ident := middleware.IdentityFrom(c)
	var req followRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.relService.Follow(c.Request.Context(), ident.UserID, req.TargetUserID); err != nil {
		if errors.Is(err, service.ErrFollowSelf) {
			response.BadRequest(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}

// Unfollow removes the caller's follow edge.
// @Summary Unfollow a user
// @Tags relations
// @Accept json
// @Param request body followRequest true "target user"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /api/relations/unfollow [post]
func (h *Handler) Unfollow(c *gin.Context) {
	ident := middleware.IdentityFrom(c)
	var req followRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.relService.Unfollow(c.Request.Context(), ident.UserID, req.TargetUserID); err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, nil)
}
