package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/kbchat/internal/ai"
	"github.com/suPer8Hu/kbchat/internal/chat"
	"github.com/suPer8Hu/kbchat/internal/common"
	"github.com/suPer8Hu/kbchat/internal/httpapi/middleware"
)

type historyMsg struct {
	Role    string `json:"role" binding:"required,oneof=user assistant system"`
	Content string `json:"content" binding:"required"`
}

type chatReq struct {
	Message             string       `json:"message" binding:"required"`
	ConversationHistory []historyMsg `json:"conversation_history" binding:"omitempty,dive"`
}

func (h *Handler) Chat(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Abort(c, common.BadRequest(40001, "Invalid request", err))
		return
	}

	history := make([]ai.Message, 0, len(req.ConversationHistory))
	for _, m := range req.ConversationHistory {
		history = append(history, ai.Message{Role: m.Role, Content: m.Content})
	}

	reply, err := h.ChatSvc.Converse(c.Request.Context(), middleware.UserID(c), req.Message, history)
	if err != nil {
		common.Abort(c, h.chatError(err))
		return
	}

	common.OK(c, http.StatusOK, gin.H{
		"response":       reply.Answer,
		"sources":        reply.Sources,
		"documents_used": reply.DocumentsUsed,
		"references":     reply.References,
		"model_used":     reply.Model,
		"request_id":     c.GetString(middleware.CtxRequestID),
	})
}

func (h *Handler) chatError(err error) *common.Error {
	if errors.Is(err, chat.ErrEmptyMessage) {
		return common.BadRequest(40001, "Invalid request", err)
	}
	if errors.Is(err, ai.ErrMissingAPIKey) {
		return common.ConfigurationError(50001, providerLabel(h.Provider)+" API key not configured", err)
	}
	var apiErr *ai.APIError
	if errors.As(err, &apiErr) {
		e := common.DependencyError(50201, providerLabel(apiErr.Provider)+" API error", err)
		e.Detail = apiErr.Body
		return e
	}
	if errors.Is(err, chat.ErrCompletion) {
		return common.DependencyError(50202, "Network error connecting to "+providerLabel(h.Provider), err)
	}
	return common.DependencyError(50000, "Internal server error", err)
}

func providerLabel(name string) string {
	switch strings.ToLower(name) {
	case "openai":
		return "OpenAI"
	case "ollama":
		return "Ollama"
	case "":
		return "AI provider"
	default:
		return name
	}
}
