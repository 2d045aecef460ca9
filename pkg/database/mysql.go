// Package database 提供 MySQL 与 Redis 连接的初始化。
package database

import (
	"fmt"
	"time"

	"pdf-rag-go/pkg/log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// NewMySQL 建立 MySQL 连接并配置连接池。
func NewMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("MySQL database connected successfully")
	return db, nil
}
