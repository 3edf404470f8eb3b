// Package repository はデータアクセス層の実装を提供する。
package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"chatbot-api/internal/domain"
)

// MigrationModel はmigrationsテーブル（台帳）のモデル。
type MigrationModel struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	Version   string    `gorm:"type:varchar(32);not null;uniqueIndex:uk_migrations_version"`
	Status    string    `gorm:"type:varchar(8);not null;index:idx_migrations_status"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`
}

// TableName はテーブル名を返す。
func (MigrationModel) TableName() string {
	return "migrations"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (m *MigrationModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

func (m *MigrationModel) toDomain() *domain.MigrationRecord {
	return &domain.MigrationRecord{
		ID:        m.ID,
		Version:   domain.Version(m.Version),
		Status:    domain.MigrationAction(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// MigrationRepository はマイグレーション台帳を管理するリポジトリ。
type MigrationRepository struct {
	db *gorm.DB
}

// NewMigrationRepository は新しいMigrationRepositoryを生成する。
func NewMigrationRepository(db *gorm.DB) *MigrationRepository {
	return &MigrationRepository{db: db}
}

// FindByVersion は指定バージョンの台帳レコードを取得する。存在しない場合はnilを返す。
func (r *MigrationRepository) FindByVersion(ctx context.Context, version domain.Version) (*domain.MigrationRecord, error) {
	var model MigrationModel
	err := r.db.WithContext(ctx).
		Where("version = ?", version.String()).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find migration",
			"operation", "find_by_version",
			"version", version,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// FindAll は全ての台帳レコードを取得する。
func (r *MigrationRepository) FindAll(ctx context.Context) ([]*domain.MigrationRecord, error) {
	var models []MigrationModel
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&models).Error; err != nil {
		slog.ErrorContext(ctx, "failed to find all migrations",
			"operation", "find_all",
			"error", err,
		)
		return nil, err
	}
	return toDomainRecords(models), nil
}

// FindAllByStatus は指定ステータスの台帳レコードを取得する。
func (r *MigrationRepository) FindAllByStatus(ctx context.Context, status domain.MigrationAction) ([]*domain.MigrationRecord, error) {
	var models []MigrationModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to find migrations by status",
			"operation", "find_all_by_status",
			"status", status,
			"error", err,
		)
		return nil, err
	}
	return toDomainRecords(models), nil
}

// Save は台帳レコードを保存する。IDが空の場合は新規作成する。
// versionの一意制約に違反した場合は gorm.ErrDuplicatedKey を返す。
func (r *MigrationRepository) Save(ctx context.Context, record *domain.MigrationRecord) error {
	model := &MigrationModel{
		ID:        record.ID,
		Version:   record.Version.String(),
		Status:    string(record.Status),
		CreatedAt: record.CreatedAt,
	}

	var err error
	if record.ID == "" {
		err = r.db.WithContext(ctx).Create(model).Error
	} else {
		err = r.db.WithContext(ctx).Save(model).Error
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to save migration",
			"operation", "save",
			"version", record.Version,
			"status", record.Status,
			"error", err,
		)
		return err
	}

	// gormで設定された値をドメインエンティティに反映
	record.ID = model.ID
	record.CreatedAt = model.CreatedAt
	record.UpdatedAt = model.UpdatedAt
	return nil
}

func toDomainRecords(models []MigrationModel) []*domain.MigrationRecord {
	records := make([]*domain.MigrationRecord, len(models))
	for i := range models {
		records[i] = models[i].toDomain()
	}
	return records
}
