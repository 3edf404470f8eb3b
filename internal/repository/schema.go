package repository

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"
)

// AutoMigrate はマイグレーションエンジン自身が使うテーブルを作成する。
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&MigrationModel{}, &MetadataModel{}); err != nil {
		slog.Error("failed to auto migrate engine tables",
			"operation", "auto_migrate",
			"error", err,
		)
		return fmt.Errorf("auto migrating engine tables: %w", err)
	}
	return nil
}
