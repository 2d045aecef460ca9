// Package indexer 负责把分块记录批量写入检索索引。
package indexer

import (
	"context"
	"fmt"

	"pdf-rag-go/internal/model"
	"pdf-rag-go/pkg/log"
)

// BulkIndex 是写入器对检索索引的最小依赖。
type BulkIndex interface {
	BulkUpsert(ctx context.Context, docs []model.ChunkDocument) error
	BulkDelete(ctx context.Context, ids []string) error
}

// Writer 把记录切成固定大小的批次并按序写入索引。
// 幂等性依赖 chunk_id 作为索引主键：重复应用同一批 upsert 或 delete
// 不会产生额外效果。
type Writer struct {
	index     BulkIndex
	batchSize int
}

// New 创建一个新的 Writer 实例。
func New(index BulkIndex, batchSize int) *Writer {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Writer{index: index, batchSize: batchSize}
}

// Upsert 按批次顺序写入记录。任一批次失败即中止后续批次并返回错误；
// 已写入的批次不回滚（接受部分写入，由对账任务收敛）。
func (w *Writer) Upsert(ctx context.Context, docs []model.ChunkDocument) error {
	for start := 0; start < len(docs); start += w.batchSize {
		end := start + w.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]
		if err := w.index.BulkUpsert(ctx, batch); err != nil {
			log.Errorf("[IndexWriter] 批次 %d-%d 写入失败: %v", start, end, err)
			return fmt.Errorf("索引批次写入失败 (offset %d): %w", start, err)
		}
		log.Debugf("[IndexWriter] 批次写入成功, %d 条 (offset %d)", len(batch), start)
	}
	return nil
}

// Delete 删除给定 ID 集合，空集合为无操作；否则以单次请求发出全部删除动作。
func (w *Writer) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := w.index.BulkDelete(ctx, ids); err != nil {
		return fmt.Errorf("索引删除失败: %w", err)
	}
	return nil
}
