// Package model 包含了应用的数据模型定义。
package model

import "time"

// AskRecord 代表存储在 Redis 中的一条问答历史。
type AskRecord struct {
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Confidence int       `json:"confidence"`
	CreatedAt  time.Time `json:"createdAt"`
}
