package handler

import (
	"net/http"

	"pdf-rag-go/internal/service"
	"pdf-rag-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// IngestHandler 负责单文档入库相关的 API 请求。
type IngestHandler struct {
	ingestService *service.IngestService
}

// NewIngestHandler 创建一个新的 IngestHandler 实例。
func NewIngestHandler(ingestService *service.IngestService) *IngestHandler {
	return &IngestHandler{ingestService: ingestService}
}

type ingestRequest struct {
	ObjectName  string `json:"object_name" binding:"required"`
	RequestedBy string `json:"requested_by"`
}

// Enqueue 投递一个单文档入库任务，实际处理由 Kafka 消费者异步完成。
func (h *IngestHandler) Enqueue(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "object_name 不能为空"})
		return
	}

	if err := h.ingestService.Enqueue(c.Request.Context(), req.ObjectName, req.RequestedBy); err != nil {
		log.Errorf("[IngestHandler] 投递入库任务失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "入库任务已接受", "object_name": req.ObjectName})
}

// ListRecords 返回最近的入库台账。
func (h *IngestHandler) ListRecords(c *gin.Context) {
	records, err := h.ingestService.RecentRecords(100)
	if err != nil {
		log.Errorf("[IngestHandler] 查询入库台账失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询入库台账失败"})
		return
	}
	runs, err := h.ingestService.RecentRuns(20)
	if err != nil {
		log.Errorf("[IngestHandler] 查询重建记录失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询重建记录失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "runs": runs})
}
