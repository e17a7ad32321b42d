package http

import (
	"net/http"

	"github.com/dkeye/Relay/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type bindSessionRequest struct {
	UserCode string `json:"userCode" binding:"required"`
}

// bindSession stores an identity the auth service already verified. The route
// is mounted behind InternalTokenMiddleware.
func (h *handlers) bindSession(c *gin.Context) {
	var req bindSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, badBody(err))
		return
	}
	code, err := domain.ParseIdentityCode(req.UserCode)
	if err != nil {
		abortWithError(c, err)
		return
	}
	ok, err := h.Store.IdentityExists(c.Request.Context(), code)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !ok {
		abortWithError(c, domain.ErrTargetNotFound)
		return
	}

	s := sessions.Default(c)
	s.Set(sessionKey, string(code))
	if err := s.Save(); err != nil {
		abortWithError(c, err)
		return
	}
	log.Info().Str("module", "adapters.http").Str("user", string(code)).Msg("session bound")
	c.JSON(http.StatusOK, gin.H{"userCode": code})
}

func (h *handlers) clearSession(c *gin.Context) {
	who := identity(c)
	s := sessions.Default(c)
	s.Clear()
	s.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := s.Save(); err != nil {
		abortWithError(c, err)
		return
	}
	closed := h.Orch.Logout(who)
	c.JSON(http.StatusOK, gin.H{"closed": closed})
}
