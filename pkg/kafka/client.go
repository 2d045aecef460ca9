// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pdf-rag-go/internal/config"
	"pdf-rag-go/pkg/log"
	"pdf-rag-go/pkg/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

const maxTaskAttempts = 3

// TaskProcessor defines the interface for any service that can process a task.
// This decouples the Kafka consumer from the concrete ingest implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.DocumentIngestTask) error
}

// attemptCounter 记录每个任务的连续失败次数。
type attemptCounter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type redisAttempts struct {
	rdb *redis.Client
}

func (r redisAttempts) Incr(ctx context.Context, key string) (int64, error) {
	return r.rdb.Incr(ctx, key).Result()
}

func (r redisAttempts) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.rdb.Expire(ctx, key, ttl).Err()
}

func (r redisAttempts) Del(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}

// Producer 向单文档入库主题发送任务。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 创建 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: w}
}

// ProduceIngestTask 发送一个文档入库任务到 Kafka。
func (p *Producer) ProduceIngestTask(ctx context.Context, task tasks.DocumentIngestTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.ObjectName),
		Value: taskBytes,
	})
}

// Close 关闭生产者连接。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// handleMessage 处理一条消息并返回是否应提交 offset。
// 解析失败直接提交避免阻塞队列；处理失败通过 counter 计数，
// 失败满 maxTaskAttempts 次后提交 offset 终止重试，计数异常时保守地不提交。
func handleMessage(ctx context.Context, value []byte, counter attemptCounter, processor TaskProcessor) bool {
	var task tasks.DocumentIngestTask
	if err := json.Unmarshal(value, &task); err != nil {
		log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(value))
		return true
	}

	log.Infof("开始处理入库任务: object=%s", task.ObjectName)
	attemptsKey := fmt.Sprintf("kafka:attempts:%s", task.ObjectName)

	if err := processor.Process(ctx, task); err != nil {
		log.Errorf("处理入库任务失败: object=%s, Error: %v", task.ObjectName, err)
		attempts, incErr := counter.Incr(ctx, attemptsKey)
		if incErr != nil {
			// Redis 异常时保守处理：不提交 offset，让 Kafka 重试
			return false
		}
		_ = counter.Expire(ctx, attemptsKey, 24*time.Hour)
		if attempts >= maxTaskAttempts {
			log.Errorf("入库任务多次失败(>=%d)，提交 offset 终止重试: object=%s", maxTaskAttempts, task.ObjectName)
			return true
		}
		return false
	}

	log.Infof("入库任务处理成功: object=%s", task.ObjectName)
	_ = counter.Del(ctx, attemptsKey)
	return true
}

// StartConsumer 启动一个 Kafka 消费者来处理文档入库任务。
func StartConsumer(cfg config.KafkaConfig, rdb *redis.Client, processor TaskProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)
	counter := redisAttempts{rdb: rdb}

	for {
		m, err := r.FetchMessage(context.Background())
		if err != nil {
			log.Error("从 Kafka 读取消息失败", err)
			break
		}

		log.Infof("收到 Kafka 消息: offset %d", m.Offset)
		if handleMessage(context.Background(), m.Value, counter, processor) {
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
			}
		}
	}

	if err := r.Close(); err != nil {
		log.Fatalf("关闭 Kafka 消费者失败: %v", err)
	}
}
