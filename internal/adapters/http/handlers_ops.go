package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func (h *handlers) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("health: store unreachable")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": h.Orch.Registry.Len(),
		"live_calls":  h.Orch.Calls.Live(),
	})
}

func (h *handlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.Orch.Rooms.List()})
}

type friendsUpdatedRequest struct {
	Codes []string `json:"codes" binding:"required,min=1,dive,required"`
}

type groupMemberJoinedRequest struct {
	GroupCode string           `json:"groupCode" binding:"required"`
	Member    core.GroupMember `json:"member"`
}

func (h *handlers) friendsUpdated(c *gin.Context) {
	var req friendsUpdatedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, badBody(err))
		return
	}
	codes := make([]domain.IdentityCode, 0, len(req.Codes))
	for _, raw := range req.Codes {
		code, err := domain.ParseIdentityCode(raw)
		if err != nil {
			abortWithError(c, err)
			return
		}
		codes = append(codes, code)
	}
	sent := h.Orch.NotifyFriendsUpdated(codes...)
	c.JSON(http.StatusOK, gin.H{"sentTo": sent})
}

func (h *handlers) groupMemberJoined(c *gin.Context) {
	var req groupMemberJoinedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, badBody(err))
		return
	}
	group, err := domain.ParseGroupCode(req.GroupCode)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if _, err := domain.ParseIdentityCode(string(req.Member.UserCode)); err != nil {
		abortWithError(c, err)
		return
	}
	sent := h.Orch.NotifyGroupMemberJoined(group, req.Member)
	c.JSON(http.StatusOK, gin.H{"sentTo": sent})
}
