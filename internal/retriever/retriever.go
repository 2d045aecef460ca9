// Package retriever 负责把用户问题转换为混合检索并返回排序命中。
package retriever

import (
	"context"
	"fmt"

	"pdf-rag-go/internal/model"
	"pdf-rag-go/pkg/embedding"
	"pdf-rag-go/pkg/log"
	"pdf-rag-go/pkg/search"
)

// HybridIndex 是检索器对检索索引的最小依赖。
type HybridIndex interface {
	HybridQuery(ctx context.Context, query string, vector []float32, topK int) ([]model.SearchHit, *search.Fault, error)
}

// Result 是检索的带标签结果：要么携带命中列表，要么携带检索服务的 Fault。
// 调用方必须先检查 Failed()，不能把错误载荷当作命中列表处理。
type Result struct {
	Hits  []model.SearchHit
	Fault *search.Fault
}

// Failed 报告本次检索是否以服务端错误告终。
func (r Result) Failed() bool {
	return r.Fault != nil
}

// Retriever 先向量化问题，再发出一次混合查询（关键词 + 向量 + 重排）。
type Retriever struct {
	embedder embedding.Client
	index    HybridIndex
}

// New 创建一个新的 Retriever 实例。
func New(embedder embedding.Client, index HybridIndex) *Retriever {
	return &Retriever{embedder: embedder, index: index}
}

// Search 对问题执行一次混合检索，请求 topK 条最终结果。
// 索引服务返回非成功响应时，错误以 Result.Fault 的形式返回（err 为 nil）；
// 向量化失败或网络层失败则返回 error。
func (r *Retriever) Search(ctx context.Context, query string, topK int) (Result, error) {
	vector, err := r.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create query embedding: %w", err)
	}
	log.Debugf("[Retriever] 查询向量化完成, 维度: %d", len(vector))

	hits, fault, err := r.index.HybridQuery(ctx, query, vector, topK)
	if err != nil {
		return Result{}, err
	}
	if fault != nil {
		log.Errorf("[Retriever] 检索服务返回错误, status: %d", fault.Status)
		return Result{Fault: fault}, nil
	}
	log.Infof("[Retriever] 检索完成, query: '%s', 命中 %d 条", query, len(hits))
	return Result{Hits: hits}, nil
}
