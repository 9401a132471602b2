package models

import (
	"inspect-go/internal/config"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 全局数据库实例
var DB *gorm.DB

// InitDB 初始化数据库并迁移表结构
func InitDB(cfg *config.Config) error {
	db, err := Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open 打开 sqlite 数据库并迁移，测试中可传入 "file::memory:"
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate 自动迁移数据库表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&ListState{},
		&CallSelection{},
		&ProcessingTask{},
	)
}

// GetDB 获取数据库实例
func GetDB() *gorm.DB {
	return DB
}
