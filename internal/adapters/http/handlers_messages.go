package http

import (
	"net/http"
	"strconv"

	"github.com/dkeye/Relay/internal/app/messaging"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/gin-gonic/gin"
)

type sendMessageRequest struct {
	TargetCode  string `json:"targetCode"`
	Kind        string `json:"kind"`
	MessageType string `json:"messageType"`
	Content     string `json:"content"`
	FileName    string `json:"fileName"`
	FileData    string `json:"fileData"`
}

func (h *handlers) sendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, badBody(err))
		return
	}
	msg, err := h.Orch.Messages.Send(c.Request.Context(), messaging.SendRequest{
		Sender:      identity(c),
		Kind:        req.Kind,
		TargetCode:  req.TargetCode,
		MessageType: req.MessageType,
		Content:     req.Content,
		FileName:    req.FileName,
		FileData:    req.FileData,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// listMessages takes exactly one of userCode or groupCode.
func (h *handlers) listMessages(c *gin.Context) {
	q := messaging.ListQuery{}
	userCode, groupCode := c.Query("userCode"), c.Query("groupCode")
	switch {
	case userCode != "" && groupCode != "":
		abortWithError(c, errMissing("exactly one of userCode or groupCode"))
		return
	case userCode != "":
		q.Kind, q.TargetCode = string(domain.TargetUser), userCode
	case groupCode != "":
		q.Kind, q.TargetCode = string(domain.TargetGroup), groupCode
	default:
		abortWithError(c, errMissing("userCode or groupCode"))
		return
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			abortWithError(c, errMissing("a non negative limit"))
			return
		}
		q.Limit = n
	}

	msgs, err := h.Orch.Messages.List(c.Request.Context(), identity(c), q)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
