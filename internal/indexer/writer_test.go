package indexer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"pdf-rag-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingIndex struct {
	upsertBatches [][]model.ChunkDocument
	deleteCalls   [][]string
	failAtBatch   int // 第 N 次 upsert 失败（1 起始），0 表示不失败
}

func (r *recordingIndex) BulkUpsert(ctx context.Context, docs []model.ChunkDocument) error {
	r.upsertBatches = append(r.upsertBatches, docs)
	if r.failAtBatch > 0 && len(r.upsertBatches) == r.failAtBatch {
		return errors.New("bulk rejected")
	}
	return nil
}

func (r *recordingIndex) BulkDelete(ctx context.Context, ids []string) error {
	r.deleteCalls = append(r.deleteCalls, ids)
	return nil
}

func makeDocs(n int) []model.ChunkDocument {
	docs := make([]model.ChunkDocument, n)
	for i := range docs {
		docs[i] = model.ChunkDocument{ChunkID: fmt.Sprintf("id-%d", i), File: "a.pdf"}
	}
	return docs
}

func TestUpsertBatchesInOrder(t *testing.T) {
	idx := &recordingIndex{}
	w := New(idx, 100)

	require.NoError(t, w.Upsert(context.Background(), makeDocs(250)))
	require.Len(t, idx.upsertBatches, 3)
	assert.Len(t, idx.upsertBatches[0], 100)
	assert.Len(t, idx.upsertBatches[1], 100)
	assert.Len(t, idx.upsertBatches[2], 50)
	// 批次保持输入顺序
	assert.Equal(t, "id-0", idx.upsertBatches[0][0].ChunkID)
	assert.Equal(t, "id-200", idx.upsertBatches[2][0].ChunkID)
}

func TestUpsertAbortsOnBatchFailure(t *testing.T) {
	idx := &recordingIndex{failAtBatch: 2}
	w := New(idx, 100)

	err := w.Upsert(context.Background(), makeDocs(300))
	require.Error(t, err)
	// 失败批次之后不再发送剩余批次
	assert.Len(t, idx.upsertBatches, 2)
}

func TestUpsertEmpty(t *testing.T) {
	idx := &recordingIndex{}
	w := New(idx, 100)
	require.NoError(t, w.Upsert(context.Background(), nil))
	assert.Empty(t, idx.upsertBatches)
}

func TestDeleteEmptyIsNoop(t *testing.T) {
	idx := &recordingIndex{}
	w := New(idx, 100)
	require.NoError(t, w.Delete(context.Background(), nil))
	assert.Empty(t, idx.deleteCalls)
}

func TestDeleteSingleRequest(t *testing.T) {
	idx := &recordingIndex{}
	w := New(idx, 2)

	ids := []string{"a", "b", "c", "d", "e"}
	require.NoError(t, w.Delete(context.Background(), ids))
	// 删除不分批，一次请求带全部 ID
	require.Len(t, idx.deleteCalls, 1)
	assert.Equal(t, ids, idx.deleteCalls[0])
}

func TestDefaultBatchSize(t *testing.T) {
	idx := &recordingIndex{}
	w := New(idx, 0)
	require.NoError(t, w.Upsert(context.Background(), makeDocs(501)))
	require.Len(t, idx.upsertBatches, 2)
	assert.Len(t, idx.upsertBatches[0], 500)
}
