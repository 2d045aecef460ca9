// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"pdf-rag-go/internal/service"
	"pdf-rag-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// QueryHandler 负责问答与文档查询相关的 API 请求。
type QueryHandler struct {
	queryService *service.QueryService
}

// NewQueryHandler 创建一个新的 QueryHandler 实例。
func NewQueryHandler(queryService *service.QueryService) *QueryHandler {
	return &QueryHandler{queryService: queryService}
}

type askRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k"`
}

// Ask 处理问答请求。下游故障已在服务层降级，这里始终返回 200。
func (h *QueryHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("[QueryHandler] 问答请求参数错误: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "query 不能为空"})
		return
	}

	log.Infof("[QueryHandler] 收到问答请求, query: %s, top_k: %d", req.Query, req.TopK)
	resp := h.queryService.Ask(c.Request.Context(), req.Query, req.TopK)
	c.JSON(http.StatusOK, resp)
}

// ListCloudPDFs 返回对象存储中的全部 PDF 列表。
func (h *QueryHandler) ListCloudPDFs(c *gin.Context) {
	c.JSON(http.StatusOK, h.queryService.ListCloudPDFs(c.Request.Context()))
}

// Inspect 返回某个 PDF 已索引分块的预览。
func (h *QueryHandler) Inspect(c *gin.Context) {
	pdfName := c.Param("pdfName")
	if pdfName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pdfName 不能为空"})
		return
	}
	c.JSON(http.StatusOK, h.queryService.Inspect(c.Request.Context(), pdfName))
}

// History 返回最近的问答历史。
func (h *QueryHandler) History(c *gin.Context) {
	records, err := h.queryService.History(c.Request.Context(), 50)
	if err != nil {
		log.Errorf("[QueryHandler] 读取问答历史失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取历史失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}

// Health 是存活探针。
func (h *QueryHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
