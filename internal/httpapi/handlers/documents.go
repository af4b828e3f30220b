package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/kbchat/internal/common"
	"github.com/suPer8Hu/kbchat/internal/documents"
	"github.com/suPer8Hu/kbchat/internal/httpapi/middleware"
	"github.com/suPer8Hu/kbchat/internal/models"
)

func (h *Handler) ListDocuments(c *gin.Context) {
	docs, err := h.DocSvc.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		common.Abort(c, common.DependencyError(50002, "Database operation failed", err))
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	common.OK(c, http.StatusOK, gin.H{"documents": docs})
}

type uploadDocumentReq struct {
	Name     string `json:"name" binding:"required,max=255"`
	Content  string `json:"content" binding:"required"`
	FileType string `json:"file_type" binding:"omitempty,max=100"`
}

func (h *Handler) UploadDocument(c *gin.Context) {
	var req uploadDocumentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Abort(c, common.BadRequest(40001, "Invalid request", err))
		return
	}

	doc, err := h.DocSvc.Create(c.Request.Context(), middleware.UserID(c), documents.CreateInput{
		Name:     req.Name,
		Content:  req.Content,
		FileType: req.FileType,
	})
	if err != nil {
		common.Abort(c, h.documentError(err))
		return
	}

	common.OK(c, http.StatusCreated, gin.H{
		"id":            doc.ID,
		"name":          doc.Name,
		"file_type":     doc.FileType,
		"has_embedding": doc.HasEmbedding,
		"message":       "Document uploaded successfully",
	})
}

// DeleteDocument takes the id from the path or from ?id=.
func (h *Handler) DeleteDocument(c *gin.Context) {
	raw := c.Param("id")
	if raw == "" {
		raw = c.Query("id")
	}
	if raw == "" {
		common.Fail(c, http.StatusBadRequest, 40003, "Document id required")
		return
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 40004, "Invalid document id")
		return
	}

	if err := h.DocSvc.Delete(c.Request.Context(), middleware.UserID(c), id); err != nil {
		common.Abort(c, h.documentError(err))
		return
	}
	common.OK(c, http.StatusOK, gin.H{"message": "Document deleted successfully"})
}

func (h *Handler) documentError(err error) *common.Error {
	switch {
	case errors.Is(err, documents.ErrNotFound):
		return common.NotFound(40401, "Document not found")
	case errors.Is(err, documents.ErrLimitReached):
		return common.ClientError(http.StatusBadRequest, 40005,
			fmt.Sprintf("Document limit reached (maximum %d)", h.MaxDocuments), err)
	case errors.Is(err, documents.ErrTooLarge):
		return common.ClientError(http.StatusRequestEntityTooLarge, 41301, "Document too large", err)
	case errors.Is(err, documents.ErrFileType):
		return common.BadRequest(40006, "File type not allowed", err)
	case errors.Is(err, documents.ErrEmptyDocument):
		return common.BadRequest(40001, "Invalid request", err)
	default:
		return common.DependencyError(50002, "Database operation failed", err)
	}
}
