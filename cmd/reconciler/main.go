// Package main 是全量重建任务的命令行入口，适合定时任务或手工触发。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"pdf-rag-go/internal/config"
	"pdf-rag-go/internal/extractor"
	"pdf-rag-go/internal/indexer"
	"pdf-rag-go/internal/reconciler"
	"pdf-rag-go/internal/repository"
	"pdf-rag-go/pkg/database"
	"pdf-rag-go/pkg/embedding"
	"pdf-rag-go/pkg/log"
	"pdf-rag-go/pkg/search"
	"pdf-rag-go/pkg/storage"
)

// resolveSkipFailed 决定失败跳过策略：命令行显式传参优先，否则取配置值。
func resolveSkipFailed(flagSet, flagValue, cfgValue bool) bool {
	if flagSet {
		return flagValue
	}
	return cfgValue
}

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	prefix := flag.String("prefix", "", "仅重建该对象前缀，空值使用配置中的 minio.prefix")
	skipFailed := flag.Bool("skip-failed", false, "单个 PDF 失败时跳过而不是中止，覆盖配置")
	flag.Parse()

	skipFailedSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "skip-failed" {
			skipFailedSet = true
		}
	})

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()

	store, err := storage.New(cfg.MinIO)
	if err != nil {
		log.Fatalf("MinIO 初始化失败: %v", err)
	}
	searchClient, err := search.New(cfg.Search, cfg.Embedding.Dimensions)
	if err != nil {
		log.Fatalf("Elasticsearch 初始化失败: %v", err)
	}

	// 台账是尽力而为的：MySQL 不可用时照常重建，只是不留记录
	var ledger repository.IngestRepository
	if cfg.Database.MySQL.DSN != "" {
		db, err := database.NewMySQL(cfg.Database.MySQL.DSN)
		if err != nil {
			log.Warnf("MySQL 不可用，本次重建不写台账: %v", err)
		} else if ledger, err = repository.NewIngestRepository(db); err != nil {
			log.Warnf("台账表迁移失败，本次重建不写台账: %v", err)
			ledger = nil
		}
	}

	embeddingClient := embedding.NewClient(cfg.Embedding)
	ext := extractor.New(store, embeddingClient, cfg.Ingest)
	writer := indexer.New(searchClient, cfg.Ingest.UploadBatch)

	rec := reconciler.New(
		searchClient,
		writer,
		store,
		ext,
		ledger,
		cfg.Reconcile.CleanupPageSize,
		resolveSkipFailed(skipFailedSet, *skipFailed, cfg.Reconcile.SkipFailedDocuments),
	)

	runPrefix := *prefix
	if runPrefix == "" {
		runPrefix = cfg.MinIO.Prefix
	}

	report, err := rec.Run(context.Background(), runPrefix)
	if err != nil {
		log.Fatalf("全量重建失败: %v", err)
	}
	log.Infow("全量重建完成",
		"prefix", runPrefix,
		"deletedInvalid", report.DeletedInvalid,
		"totalPDFs", report.TotalPDFs,
		"totalChunks", report.TotalChunks,
		"skippedPDFs", report.SkippedPDFs,
	)
}
