package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Connector はデータベース接続を確認し、エンジンのテーブルを用意する。
type Connector struct {
	db *gorm.DB
}

// NewConnector は新しいConnectorを生成する。
func NewConnector(db *gorm.DB) *Connector {
	return &Connector{db: db}
}

// Initialize は接続を確認してmigrations / metadataテーブルを作成する。
func (c *Connector) Initialize(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("getting sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	return AutoMigrate(c.db.WithContext(ctx))
}
