package http

import (
	"net/http"

	"github.com/dkeye/Relay/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
)

type startCallRequest struct {
	TargetCode string `json:"targetCode"`
	CallType   string `json:"callType"`
}

type offerRequest struct {
	SessionCode string `json:"sessionCode" binding:"required"`
	Offer       string `json:"offer" binding:"required"`
}

type answerRequest struct {
	SessionCode string `json:"sessionCode" binding:"required"`
	Answer      string `json:"answer" binding:"required"`
}

type endCallRequest struct {
	SessionCode string `json:"sessionCode" binding:"required"`
}

func (h *handlers) startCall(c *gin.Context) {
	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, badBody(err))
		return
	}
	session, err := h.Orch.Calls.StartCall(c.Request.Context(), identity(c), req.TargetCode, req.CallType)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": session})
}

func (h *handlers) recordOffer(c *gin.Context) {
	var req offerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, badBody(err))
		return
	}
	session, err := h.Orch.Calls.RecordOffer(c.Request.Context(), domain.SessionCode(req.SessionCode), identity(c), req.Offer)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

func (h *handlers) recordAnswer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, badBody(err))
		return
	}
	session, err := h.Orch.Calls.RecordAnswer(c.Request.Context(), domain.SessionCode(req.SessionCode), identity(c), req.Answer)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

func (h *handlers) endCall(c *gin.Context) {
	var req endCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, badBody(err))
		return
	}
	session, err := h.Orch.Calls.EndCall(c.Request.Context(), domain.SessionCode(req.SessionCode), identity(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

func (h *handlers) getSession(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		abortWithError(c, errMissing("code"))
		return
	}
	session, err := h.Orch.Calls.GetSession(c.Request.Context(), domain.SessionCode(code), identity(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

func (h *handlers) listICEServers(c *gin.Context) {
	servers := h.iceServers
	if servers == nil {
		servers = []webrtc.ICEServer{}
	}
	c.JSON(http.StatusOK, gin.H{"iceServers": servers})
}
