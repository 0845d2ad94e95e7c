package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/seralt/askdoc/internal/pkg/errcode"
	"github.com/seralt/askdoc/internal/pkg/response"
	"github.com/seralt/askdoc/internal/service"
)

type IndexHandler struct {
	indexer *service.IndexService
}

func NewIndexHandler(indexer *service.IndexService) *IndexHandler {
	return &IndexHandler{indexer: indexer}
}

type indexRequest struct {
	Chunks []service.ChunkInput `json:"chunks"`
}

func (h *IndexHandler) Index(c *gin.Context) {
	docID := c.Param("id")
	var req indexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	result, err := h.indexer.IndexDocument(c.Request.Context(), docID, req.Chunks)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *IndexHandler) Delete(c *gin.Context) {
	docID := c.Param("id")
	if err := h.indexer.DeleteDocument(c.Request.Context(), docID); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"doc_id": docID})
}

func (h *IndexHandler) Stats(c *gin.Context) {
	stats, err := h.indexer.Stats(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, stats)
}
