package usecase

import (
	"context"

	"chatbot-api/internal/domain"
	"chatbot-api/pkg/migration"
)

// MigrationRepository はマイグレーション台帳のインターフェース。
type MigrationRepository interface {
	FindByVersion(ctx context.Context, version domain.Version) (*domain.MigrationRecord, error)
	FindAll(ctx context.Context) ([]*domain.MigrationRecord, error)
	FindAllByStatus(ctx context.Context, status domain.MigrationAction) ([]*domain.MigrationRecord, error)
	Save(ctx context.Context, record *domain.MigrationRecord) error
}

// MetadataRepository はメタデータ（db-version）のインターフェース。
type MetadataRepository interface {
	FindByName(ctx context.Context, name string) (*domain.Metadata, error)
	Upsert(ctx context.Context, name, value string) error
}

// TxHandle はRunnerが1件のマイグレーションの間だけ占有するトランザクション。
type TxHandle interface {
	migration.Tx
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error
	IsTransactionActive() bool
	Release() error
}

// TxOpener はトランザクションハンドルを生成するストレージ側の協調者。
type TxOpener interface {
	Open(ctx context.Context) (TxHandle, error)
}
