package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/kbchat/internal/auth"
	"github.com/suPer8Hu/kbchat/internal/chat"
	"github.com/suPer8Hu/kbchat/internal/documents"
)

type Handler struct {
	AuthSvc *auth.Service
	DocSvc  *documents.Service
	ChatSvc *chat.Service

	// Provider names the chat backend ("openai", "ollama") in error messages.
	Provider string
	// MaxDocuments is echoed in limit errors.
	MaxDocuments int
}

func NewHandler(authSvc *auth.Service, docs *documents.Service, chatSvc *chat.Service, provider string, maxDocuments int) *Handler {
	if maxDocuments <= 0 {
		maxDocuments = documents.DefaultMaxDocuments
	}
	return &Handler{AuthSvc: authSvc, DocSvc: docs, ChatSvc: chatSvc, Provider: provider, MaxDocuments: maxDocuments}
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}
