package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chatbot-api/internal/domain"
)

// MetadataModel はmetadataテーブルのモデル。
type MetadataModel struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	Name      string    `gorm:"type:varchar(128);not null;uniqueIndex:uk_metadata_name"`
	Value     string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`
}

// TableName はテーブル名を返す。
func (MetadataModel) TableName() string {
	return "metadata"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (m *MetadataModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// MetadataRepository はキー・バリュー形式のメタデータを管理する。
type MetadataRepository struct {
	db *gorm.DB
}

// NewMetadataRepository は新しいMetadataRepositoryを生成する。
func NewMetadataRepository(db *gorm.DB) *MetadataRepository {
	return &MetadataRepository{db: db}
}

// FindByName は指定名のメタデータを取得する。存在しない場合はnilを返す。
func (r *MetadataRepository) FindByName(ctx context.Context, name string) (*domain.Metadata, error) {
	var model MetadataModel
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find metadata",
			"operation", "find_by_name",
			"name", name,
			"error", err,
		)
		return nil, err
	}
	return &domain.Metadata{Name: model.Name, Value: model.Value}, nil
}

// Upsert はメタデータを作成、または既存の値を更新する。
func (r *MetadataRepository) Upsert(ctx context.Context, name, value string) error {
	model := &MetadataModel{Name: name, Value: value}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(model).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to upsert metadata",
			"operation", "upsert",
			"name", name,
			"error", err,
		)
		return err
	}
	return nil
}
