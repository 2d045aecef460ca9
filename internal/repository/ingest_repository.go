// Package repository 提供了数据访问层的实现。
package repository

import (
	"time"

	"pdf-rag-go/internal/model"

	"gorm.io/gorm"
)

// IngestRepository 接口定义了 ingest 台账的持久化操作。
// 台账只是观测记录，不参与索引一致性；写入失败由调用方决定是否忽略。
type IngestRepository interface {
	CreateRun(run *model.ReconcileRun) error
	FinishRun(run *model.ReconcileRun) error
	RecordDocument(record *model.IngestRecord) error
	ListRecentRecords(limit int) ([]model.IngestRecord, error)
	ListRecentRuns(limit int) ([]model.ReconcileRun, error)
}

type ingestRepository struct {
	db *gorm.DB
}

// NewIngestRepository 创建一个新的 IngestRepository 实例并迁移表结构。
func NewIngestRepository(db *gorm.DB) (IngestRepository, error) {
	if err := db.AutoMigrate(&model.IngestRecord{}, &model.ReconcileRun{}); err != nil {
		return nil, err
	}
	return &ingestRepository{db: db}, nil
}

// CreateRun 创建一条重建任务记录。
func (r *ingestRepository) CreateRun(run *model.ReconcileRun) error {
	return r.db.Create(run).Error
}

// FinishRun 写回重建任务的最终状态与汇总数据。
func (r *ingestRepository) FinishRun(run *model.ReconcileRun) error {
	now := time.Now()
	run.FinishedAt = &now
	return r.db.Save(run).Error
}

// RecordDocument 记录单个 PDF 对象的一次 ingest 结果。
func (r *ingestRepository) RecordDocument(record *model.IngestRecord) error {
	return r.db.Create(record).Error
}

// ListRecentRecords 按时间倒序返回最近的 ingest 记录。
func (r *ingestRepository) ListRecentRecords(limit int) ([]model.IngestRecord, error) {
	var records []model.IngestRecord
	err := r.db.Order("id DESC").Limit(limit).Find(&records).Error
	return records, err
}

// ListRecentRuns 按时间倒序返回最近的重建任务记录。
func (r *ingestRepository) ListRecentRuns(limit int) ([]model.ReconcileRun, error) {
	var runs []model.ReconcileRun
	err := r.db.Order("id DESC").Limit(limit).Find(&runs).Error
	return runs, err
}
