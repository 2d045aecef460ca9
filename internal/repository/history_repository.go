// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"pdf-rag-go/internal/model"

	"github.com/go-redis/redis/v8"
)

const (
	historyKey = "ask:history"
	historyCap = 50
)

// HistoryRepository 定义了问答历史记录的操作接口。
type HistoryRepository interface {
	Append(ctx context.Context, record model.AskRecord) error
	Recent(ctx context.Context, limit int) ([]model.AskRecord, error)
}

type redisHistoryRepository struct {
	redisClient *redis.Client
}

// NewHistoryRepository 创建一个新的 HistoryRepository 实例。
func NewHistoryRepository(redisClient *redis.Client) HistoryRepository {
	return &redisHistoryRepository{redisClient: redisClient}
}

// Append 把一条问答记录推入历史列表，只保留最近 historyCap 条。
func (r *redisHistoryRepository) Append(ctx context.Context, record model.AskRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal ask record: %w", err)
	}
	pipe := r.redisClient.TxPipeline()
	pipe.LPush(ctx, historyKey, data)
	pipe.LTrim(ctx, historyKey, 0, historyCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append ask history: %w", err)
	}
	return nil
}

// Recent 返回最近的 limit 条问答记录，最新的在最前。
func (r *redisHistoryRepository) Recent(ctx context.Context, limit int) ([]model.AskRecord, error) {
	if limit <= 0 || limit > historyCap {
		limit = historyCap
	}
	items, err := r.redisClient.LRange(ctx, historyKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read ask history: %w", err)
	}
	records := make([]model.AskRecord, 0, len(items))
	for _, item := range items {
		var rec model.AskRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
