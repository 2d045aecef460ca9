// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
// 启动时加载一次，之后以显式注入的方式传递给各组件的构造函数。
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Search    SearchConfig    `mapstructure:"search"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// SearchConfig 存储 Elasticsearch 检索索引相关的配置。
type SearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	// Prefix 限定参与 ingest 的对象路径前缀，空字符串表示整个 bucket。
	Prefix string `mapstructure:"prefix"`
	// PublicEndpoint 用于拼接对外可访问的文档直链，缺省时退回 Endpoint。
	PublicEndpoint string `mapstructure:"public_endpoint"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey           string `mapstructure:"api_key"`
	BaseURL          string `mapstructure:"base_url"`
	Model            string `mapstructure:"model"`
	Dimensions       int    `mapstructure:"dimensions"`
	MaxRetries       int    `mapstructure:"max_retries"`
	RetryBaseDelayMS int    `mapstructure:"retry_base_delay_ms"`
}

// RetryBaseDelay 返回重试退避的基础时长。
func (c EmbeddingConfig) RetryBaseDelay() time.Duration {
	if c.RetryBaseDelayMS <= 0 {
		return 600 * time.Millisecond
	}
	return time.Duration(c.RetryBaseDelayMS) * time.Millisecond
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
}

// LLMGenerationConfig 配置生成相关参数。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// IngestConfig 存储文本切块与索引写入的配置。
type IngestConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
	UploadBatch  int `mapstructure:"upload_batch"`
}

// ReconcileConfig 存储全量重建任务的配置。
type ReconcileConfig struct {
	CleanupPageSize int `mapstructure:"cleanup_page_size"`
	// SkipFailedDocuments 为 true 时，单个 PDF 处理失败仅记录并跳过；
	// 为 false 时（默认）整个重建任务失败。
	SkipFailedDocuments bool `mapstructure:"skip_failed_documents"`
}

// Load 从指定的路径读取 YAML 配置并解析为 Config。
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetDefault("server.port", "8000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("kafka.group_id", "pdf-rag-ingest")
	v.SetDefault("embedding.max_retries", 3)
	v.SetDefault("embedding.retry_base_delay_ms", 600)
	v.SetDefault("ingest.chunk_size", 1000)
	v.SetDefault("ingest.chunk_overlap", 100)
	v.SetDefault("ingest.upload_batch", 500)
	v.SetDefault("reconcile.cleanup_page_size", 1000)
	v.SetDefault("reconcile.skip_failed_documents", false)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return &cfg, nil
}
