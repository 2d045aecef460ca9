package embedding

import (
	"context"
	"fmt"
	"time"

	"pdf-rag-go/internal/config"
	"pdf-rag-go/pkg/log"
)

// EmbeddingError 表示重试次数耗尽后仍未获得向量，包装最后一次失败。
type EmbeddingError struct {
	Attempts int
	Err      error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// retryingClient 在底层客户端之上做有界重试：最多 maxAttempts 次，
// 两次尝试之间线性退避（base × 已完成次数）。不做任何缓存，相同文本
// 的两次调用会触发两次服务请求。
type retryingClient struct {
	inner       Client
	maxAttempts int
	baseDelay   time.Duration
}

func newRetryingClient(inner Client, cfg config.EmbeddingConfig) Client {
	attempts := cfg.MaxRetries
	if attempts <= 0 {
		attempts = 3
	}
	return &retryingClient{
		inner:       inner,
		maxAttempts: attempts,
		baseDelay:   cfg.RetryBaseDelay(),
	}
}

// CreateEmbedding 依次尝试，全部失败时返回包装了最后一次错误的 EmbeddingError。
func (c *retryingClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		vec, err := c.inner.CreateEmbedding(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if attempt == c.maxAttempts {
			break
		}
		delay := c.baseDelay * time.Duration(attempt)
		log.Warnf("[EmbeddingClient] 第 %d/%d 次调用失败, %s 后重试: %v", attempt, c.maxAttempts, delay, err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	log.Errorf("[EmbeddingClient] 重试耗尽, attempts: %d, error: %v", c.maxAttempts, lastErr)
	return nil, &EmbeddingError{Attempts: c.maxAttempts, Err: lastErr}
}
