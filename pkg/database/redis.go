package database

import (
	"context"
	"fmt"

	"pdf-rag-go/pkg/log"

	"github.com/go-redis/redis/v8"
)

// NewRedis 建立 Redis 客户端连接并做一次连通性探测。
func NewRedis(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("Redis client connected successfully")
	return rdb, nil
}
