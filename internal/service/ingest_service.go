package service

import (
	"context"
	"fmt"
	"path"
	"strings"

	"pdf-rag-go/internal/model"
	"pdf-rag-go/internal/repository"
	"pdf-rag-go/pkg/log"
	"pdf-rag-go/pkg/tasks"
)

// TaskProducer 把单文档入库任务投递到消息队列。
type TaskProducer interface {
	ProduceIngestTask(ctx context.Context, task tasks.DocumentIngestTask) error
}

// DocumentExtractor 把一个 PDF 对象转换为带向量的分块文档。
type DocumentExtractor interface {
	Extract(ctx context.Context, objectName string) ([]model.ChunkDocument, error)
}

// IndexWriter 把分块文档批量写入检索索引。
type IndexWriter interface {
	Upsert(ctx context.Context, docs []model.ChunkDocument) error
}

// IngestService 负责单文档入库：接口侧投递任务，消费侧执行抽取和写索引，
// 每次执行结果写入台账。
type IngestService struct {
	producer  TaskProducer
	extractor DocumentExtractor
	writer    IndexWriter
	repo      repository.IngestRepository
}

func NewIngestService(producer TaskProducer, ext DocumentExtractor, writer IndexWriter, repo repository.IngestRepository) *IngestService {
	return &IngestService{
		producer:  producer,
		extractor: ext,
		writer:    writer,
		repo:      repo,
	}
}

// Enqueue 投递一个文档入库任务。只接受 .pdf 对象。
func (s *IngestService) Enqueue(ctx context.Context, objectName, requestedBy string) error {
	objectName = strings.TrimSpace(objectName)
	if objectName == "" {
		return fmt.Errorf("object_name 不能为空")
	}
	if !strings.HasSuffix(strings.ToLower(objectName), ".pdf") {
		return fmt.Errorf("仅支持 PDF 对象: %s", objectName)
	}
	task := tasks.DocumentIngestTask{ObjectName: objectName, RequestedBy: requestedBy}
	if err := s.producer.ProduceIngestTask(ctx, task); err != nil {
		return fmt.Errorf("投递入库任务失败: %w", err)
	}
	log.Infof("已投递入库任务: object=%s", objectName)
	return nil
}

// Process 执行一次单文档入库。返回错误时由消费者决定是否重试，
// 因此失败也会先落台账再返回。
func (s *IngestService) Process(ctx context.Context, task tasks.DocumentIngestTask) error {
	docs, err := s.extractor.Extract(ctx, task.ObjectName)
	if err != nil {
		s.recordResult(task.ObjectName, 0, model.IngestStatusFailed, err.Error())
		return fmt.Errorf("抽取文档失败: %w", err)
	}

	if len(docs) == 0 {
		log.Warnf("文档无可索引内容: object=%s", task.ObjectName)
		s.recordResult(task.ObjectName, 0, model.IngestStatusSkipped, "no extractable text")
		return nil
	}

	if err := s.writer.Upsert(ctx, docs); err != nil {
		s.recordResult(task.ObjectName, 0, model.IngestStatusFailed, err.Error())
		return fmt.Errorf("写入索引失败: %w", err)
	}

	s.recordResult(task.ObjectName, len(docs), model.IngestStatusSucceeded, "")
	log.Infof("文档入库完成: object=%s chunks=%d", task.ObjectName, len(docs))
	return nil
}

// recordResult 落一条台账记录，失败只记日志。
func (s *IngestService) recordResult(objectName string, chunkCount, status int, errMsg string) {
	if s.repo == nil {
		return
	}
	record := &model.IngestRecord{
		ObjectName: objectName,
		FileName:   path.Base(objectName),
		Folder:     topFolder(objectName),
		ChunkCount: chunkCount,
		Status:     status,
		Error:      errMsg,
	}
	if err := s.repo.RecordDocument(record); err != nil {
		log.Warnf("写入 ingest 台账失败: object=%s err=%v", objectName, err)
	}
}

// RecentRecords 返回最近的单文档入库记录。
func (s *IngestService) RecentRecords(limit int) ([]model.IngestRecord, error) {
	if s.repo == nil {
		return []model.IngestRecord{}, nil
	}
	return s.repo.ListRecentRecords(limit)
}

// RecentRuns 返回最近的全量重建汇总记录。
func (s *IngestService) RecentRuns(limit int) ([]model.ReconcileRun, error) {
	if s.repo == nil {
		return []model.ReconcileRun{}, nil
	}
	return s.repo.ListRecentRuns(limit)
}

func topFolder(objectName string) string {
	if i := strings.Index(objectName, "/"); i > 0 {
		return objectName[:i]
	}
	return ""
}
