// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// ingest 记录状态。
const (
	IngestStatusSucceeded = 1
	IngestStatusFailed    = 2
	IngestStatusSkipped   = 3
)

// IngestRecord 对应 ingest_records 表，记录每个 PDF 对象的一次 ingest 结果。
type IngestRecord struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID      uint      `gorm:"index" json:"runId"`
	ObjectName string    `gorm:"type:varchar(512);not null" json:"objectName"`
	FileName   string    `gorm:"type:varchar(255);not null" json:"fileName"`
	Folder     string    `gorm:"type:varchar(255)" json:"folder"`
	ChunkCount int       `gorm:"not null;default:0" json:"chunkCount"`
	Status     int       `gorm:"type:tinyint;not null" json:"status"`
	Error      string    `gorm:"type:text" json:"error"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (IngestRecord) TableName() string {
	return "ingest_records"
}

// ReconcileRun 对应 reconcile_runs 表，记录一次全量重建任务的汇总结果。
type ReconcileRun struct {
	ID             uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Prefix         string     `gorm:"type:varchar(255)" json:"prefix"`
	DeletedInvalid int        `gorm:"not null;default:0" json:"deletedInvalid"`
	TotalPDFs      int        `gorm:"not null;default:0" json:"totalPdfs"`
	TotalChunks    int        `gorm:"not null;default:0" json:"totalChunks"`
	Status         int        `gorm:"type:tinyint;not null" json:"status"`
	Error          string     `gorm:"type:text" json:"error"`
	StartedAt      time.Time  `gorm:"autoCreateTime" json:"startedAt"`
	FinishedAt     *time.Time `gorm:"default:null" json:"finishedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (ReconcileRun) TableName() string {
	return "reconcile_runs"
}
