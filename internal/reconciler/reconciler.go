// Package reconciler 实现了全量对账：清理无效索引记录并从对象存储重建索引。
package reconciler

import (
	"context"
	"fmt"
	"path"

	"pdf-rag-go/internal/model"
	"pdf-rag-go/internal/repository"
	"pdf-rag-go/pkg/log"
	"pdf-rag-go/pkg/storage"
)

// InvalidChunkIndex 是对账器对检索索引查询侧的最小依赖。
type InvalidChunkIndex interface {
	FindInvalidChunkIDs(ctx context.Context, top int) ([]string, error)
}

// IndexWriter 是对账器对索引写入侧的最小依赖。
type IndexWriter interface {
	Upsert(ctx context.Context, docs []model.ChunkDocument) error
	Delete(ctx context.Context, ids []string) error
}

// PDFLister 枚举对象存储中的 PDF 对象。
type PDFLister interface {
	ListPDFs(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
}

// DocumentExtractor 把单个 PDF 对象抽取为分块记录。
type DocumentExtractor interface {
	Extract(ctx context.Context, objectName string) ([]model.ChunkDocument, error)
}

// Report 汇总一次完整对账的结果。
type Report struct {
	DeletedInvalid int
	TotalPDFs      int
	TotalChunks    int
	SkippedPDFs    int
}

// Reconciler 以两阶段协议维护索引与语料的一致性：
// 阶段一删除 file 字段缺失或为空的无效记录；阶段二枚举语料中的全部 PDF
// 并重新抽取、写入。两阶段不按 chunk_id 关联——重建总是产生全新的 ID 集合，
// 清理阶段负责移除旧的。只有完整跑完两阶段，索引才精确反映当前语料；
// 中途崩溃会留下过渡状态，由下一次完整运行收敛。
type Reconciler struct {
	index      InvalidChunkIndex
	writer     IndexWriter
	store      PDFLister
	extractor  DocumentExtractor
	ledger     repository.IngestRepository
	pageSize   int
	skipFailed bool
}

// New 创建一个新的 Reconciler 实例。ledger 可以为 nil（不记录台账）。
func New(
	index InvalidChunkIndex,
	writer IndexWriter,
	store PDFLister,
	extractor DocumentExtractor,
	ledger repository.IngestRepository,
	pageSize int,
	skipFailed bool,
) *Reconciler {
	if pageSize <= 0 {
		pageSize = 1000
	}
	return &Reconciler{
		index:      index,
		writer:     writer,
		store:      store,
		extractor:  extractor,
		ledger:     ledger,
		pageSize:   pageSize,
		skipFailed: skipFailed,
	}
}

// Cleanup 循环查询并删除无效记录，直到一次查询返回零条为止，返回删除总数。
// 终止性依赖检索服务在每个删除批次后确定性地缩小无效集合（写入带 refresh），
// 这是协议假设，对账器自身不强制。
func (r *Reconciler) Cleanup(ctx context.Context) (int, error) {
	totalDeleted := 0
	for {
		ids, err := r.index.FindInvalidChunkIDs(ctx, r.pageSize)
		if err != nil {
			return totalDeleted, fmt.Errorf("查询无效记录失败: %w", err)
		}
		if len(ids) == 0 {
			break
		}
		if err := r.writer.Delete(ctx, ids); err != nil {
			return totalDeleted, fmt.Errorf("删除无效记录失败: %w", err)
		}
		totalDeleted += len(ids)
		log.Infof("[Reconciler] 删除 %d 条无效记录 (累积: %d)", len(ids), totalDeleted)
	}
	return totalDeleted, nil
}

// Reingest 枚举 prefix 下的全部 PDF，逐个抽取并写入索引，返回 (PDF 数, 分块总数)。
// 单个对象失败的处理由 skipFailed 决定：false 时（默认）立即中止整个重建；
// true 时记录台账并跳过该对象。
func (r *Reconciler) Reingest(ctx context.Context, prefix string, runID uint) (int, int, int, error) {
	pdfs, err := r.store.ListPDFs(ctx, prefix)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("枚举 PDF 对象失败: %w", err)
	}
	log.Infof("[Reconciler] 共发现 %d 个 PDF 待重建", len(pdfs))

	totalChunks := 0
	skipped := 0
	for i, obj := range pdfs {
		log.Infof("[Reconciler] (%d/%d) 处理 %s", i+1, len(pdfs), obj.Name)
		docs, err := r.extractor.Extract(ctx, obj.Name)
		if err != nil {
			if !r.skipFailed {
				r.recordDocument(runID, obj.Name, 0, model.IngestStatusFailed, err)
				return len(pdfs), totalChunks, skipped, fmt.Errorf("处理 '%s' 失败: %w", obj.Name, err)
			}
			log.Warnf("[Reconciler] 跳过处理失败的对象 %s: %v", obj.Name, err)
			r.recordDocument(runID, obj.Name, 0, model.IngestStatusSkipped, err)
			skipped++
			continue
		}
		if len(docs) == 0 {
			log.Warnf("[Reconciler] %s 没有可提取文本, 跳过", obj.Name)
			r.recordDocument(runID, obj.Name, 0, model.IngestStatusSucceeded, nil)
			continue
		}
		if err := r.writer.Upsert(ctx, docs); err != nil {
			if !r.skipFailed {
				r.recordDocument(runID, obj.Name, 0, model.IngestStatusFailed, err)
				return len(pdfs), totalChunks, skipped, fmt.Errorf("写入 '%s' 的分块失败: %w", obj.Name, err)
			}
			log.Warnf("[Reconciler] 跳过写入失败的对象 %s: %v", obj.Name, err)
			r.recordDocument(runID, obj.Name, 0, model.IngestStatusSkipped, err)
			skipped++
			continue
		}
		totalChunks += len(docs)
		r.recordDocument(runID, obj.Name, len(docs), model.IngestStatusSucceeded, nil)
		log.Infof("[Reconciler] %s → %d 个分块 (累积: %d)", path.Base(obj.Name), len(docs), totalChunks)
	}
	return len(pdfs), totalChunks, skipped, nil
}

// Run 依序执行清理与重建两个阶段，并把汇总结果写入台账。
func (r *Reconciler) Run(ctx context.Context, prefix string) (*Report, error) {
	run := &model.ReconcileRun{Prefix: prefix}
	if r.ledger != nil {
		if err := r.ledger.CreateRun(run); err != nil {
			log.Warnf("[Reconciler] 创建台账记录失败: %v", err)
		}
	}

	report := &Report{}

	log.Info("[Reconciler] 阶段 1/2: 清理无效记录 (file 缺失或为空)")
	deleted, err := r.Cleanup(ctx)
	report.DeletedInvalid = deleted
	if err != nil {
		r.finishRun(run, report, model.IngestStatusFailed, err)
		return report, err
	}
	log.Infof("[Reconciler] 清理完成, 删除 %d 条", deleted)

	log.Info("[Reconciler] 阶段 2/2: 从对象存储重建索引")
	totalPDFs, totalChunks, skipped, err := r.Reingest(ctx, prefix, run.ID)
	report.TotalPDFs = totalPDFs
	report.TotalChunks = totalChunks
	report.SkippedPDFs = skipped
	if err != nil {
		r.finishRun(run, report, model.IngestStatusFailed, err)
		return report, err
	}

	log.Infof("[Reconciler] 对账完成: %d 个 PDF, %d 个分块, 删除无效记录 %d 条, 跳过 %d 个",
		totalPDFs, totalChunks, deleted, skipped)
	r.finishRun(run, report, model.IngestStatusSucceeded, nil)
	return report, nil
}

func (r *Reconciler) recordDocument(runID uint, objectName string, chunks, status int, cause error) {
	if r.ledger == nil {
		return
	}
	record := &model.IngestRecord{
		RunID:      runID,
		ObjectName: objectName,
		FileName:   path.Base(objectName),
		Folder:     topFolder(objectName),
		ChunkCount: chunks,
		Status:     status,
	}
	if cause != nil {
		record.Error = cause.Error()
	}
	if err := r.ledger.RecordDocument(record); err != nil {
		log.Warnf("[Reconciler] 写入台账失败 (%s): %v", objectName, err)
	}
}

func (r *Reconciler) finishRun(run *model.ReconcileRun, report *Report, status int, cause error) {
	if r.ledger == nil {
		return
	}
	run.DeletedInvalid = report.DeletedInvalid
	run.TotalPDFs = report.TotalPDFs
	run.TotalChunks = report.TotalChunks
	run.Status = status
	if cause != nil {
		run.Error = cause.Error()
	}
	if err := r.ledger.FinishRun(run); err != nil {
		log.Warnf("[Reconciler] 更新台账记录失败: %v", err)
	}
}

func topFolder(objectName string) string {
	dir := path.Dir(objectName)
	if dir == "." || dir == "/" {
		return ""
	}
	for {
		parent := path.Dir(dir)
		if parent == "." || parent == "/" {
			return dir
		}
		dir = parent
	}
}
