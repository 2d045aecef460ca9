// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pdf-rag-go/internal/composer"
	"pdf-rag-go/internal/config"
	"pdf-rag-go/internal/extractor"
	"pdf-rag-go/internal/handler"
	"pdf-rag-go/internal/indexer"
	"pdf-rag-go/internal/middleware"
	"pdf-rag-go/internal/repository"
	"pdf-rag-go/internal/retriever"
	"pdf-rag-go/internal/service"
	"pdf-rag-go/pkg/database"
	"pdf-rag-go/pkg/embedding"
	"pdf-rag-go/pkg/kafka"
	"pdf-rag-go/pkg/llm"
	"pdf-rag-go/pkg/log"
	"pdf-rag-go/pkg/search"
	"pdf-rag-go/pkg/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load("./configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化基础设施连接
	db, err := database.NewMySQL(cfg.Database.MySQL.DSN)
	if err != nil {
		log.Fatalf("MySQL 初始化失败: %v", err)
	}
	rdb, err := database.NewRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	if err != nil {
		log.Fatalf("Redis 初始化失败: %v", err)
	}
	store, err := storage.New(cfg.MinIO)
	if err != nil {
		log.Fatalf("MinIO 初始化失败: %v", err)
	}
	searchClient, err := search.New(cfg.Search, cfg.Embedding.Dimensions)
	if err != nil {
		log.Fatalf("Elasticsearch 初始化失败: %v", err)
	}
	producer := kafka.NewProducer(cfg.Kafka)
	defer producer.Close()

	// 4. 初始化 Repository
	ingestRepo, err := repository.NewIngestRepository(db)
	if err != nil {
		log.Fatalf("台账表迁移失败: %v", err)
	}
	historyRepo := repository.NewHistoryRepository(rdb)

	// 5. 初始化 Service (依赖注入)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)
	ext := extractor.New(store, embeddingClient, cfg.Ingest)
	writer := indexer.New(searchClient, cfg.Ingest.UploadBatch)
	ret := retriever.New(embeddingClient, searchClient)
	cmp := composer.New(llmClient)
	queryService := service.NewQueryService(ret, cmp, store, searchClient, historyRepo, cfg.MinIO.Prefix)
	ingestService := service.NewIngestService(producer, ext, writer, ingestRepo)

	// 6. 启动后台 Kafka 消费者
	go kafka.StartConsumer(cfg.Kafka, rdb, ingestService)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery(), cors.Default())

	// 8. 注册路由
	queryHandler := handler.NewQueryHandler(queryService)
	ingestHandler := handler.NewIngestHandler(ingestService)

	r.GET("/", queryHandler.Health)
	r.POST("/ask", queryHandler.Ask)
	r.GET("/list-cloud-pdfs", queryHandler.ListCloudPDFs)
	r.GET("/inspect/:pdfName", queryHandler.Inspect)

	apiV1 := r.Group("/api/v1")
	{
		apiV1.POST("/ingest", ingestHandler.Enqueue)
		apiV1.GET("/ingests", ingestHandler.ListRecords)
		apiV1.GET("/history", queryHandler.History)
	}

	// 9. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}
