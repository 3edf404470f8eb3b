// Package bootstrap はマイグレーションエンジンの依存関係を組み立てる。
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"gorm.io/gorm"

	"chatbot-api/config"
	"chatbot-api/internal/infra"
	"chatbot-api/internal/repository"
	"chatbot-api/internal/usecase"
	"chatbot-api/pkg/migration"
)

// Options はエンジン組み立て時の設定。
type Options struct {
	Mode usecase.Mode
	// FS を指定した場合は定義ファイルをMIGRATIONS_DIRではなくFSから読み込む。
	FS fs.FS
	// Definitions はGo定義の登録先。未指定の場合は migration.Default() を使う。
	Definitions *migration.Registry
	Exit        func(code int)
}

// Engine は組み立て済みのマイグレーションエンジン。
type Engine struct {
	Service  *usecase.MigrationService
	Registry *usecase.MigrationRegistry
	closers  []func() error
}

// NewEngine はDB接続からマイグレーションエンジンを組み立てる。
// KMS_KEY_NAME / ATTACHMENT_BUCKET が設定されている場合のみ、対応するサービスをスクリプトに渡す。
func NewEngine(ctx context.Context, cfg *config.Config, db *gorm.DB, opts Options) (*Engine, error) {
	e := &Engine{}

	services := &migration.Services{
		Logger: slog.Default().With("component", "migration"),
		HTTP:   infra.NewHTTPClient(cfg.HTTPClientTimeout),
	}

	if cfg.KMSKeyName != "" {
		kmsClient, err := infra.NewKMSClient(ctx, cfg.KMSKeyName)
		if err != nil {
			return nil, fmt.Errorf("initializing KMS client: %w", err)
		}
		services.Cipher = kmsClient
		e.closers = append(e.closers, kmsClient.Close)
	}

	if cfg.AttachmentBucket != "" {
		store, err := infra.NewAttachmentStore(ctx, cfg.AttachmentBucket)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("initializing attachment store: %w", err)
		}
		services.Attachments = store
		e.closers = append(e.closers, store.Close)
	}

	definitions := opts.Definitions
	if definitions == nil {
		definitions = migration.Default()
	}

	registry := usecase.NewMigrationRegistry(cfg.MigrationsDir, cfg.Env)
	if opts.FS != nil {
		registry = registry.WithFS(opts.FS)
	}

	ledger := usecase.NewMigrationLedger(
		repository.NewMigrationRepository(db),
		repository.NewMetadataRepository(db),
	)
	loader := usecase.NewMigrationLoader(registry, definitions)
	runner := usecase.NewMigrationRunner(ledger, loader, repository.NewTxOpener(db), services)
	planner := usecase.NewMigrationPlanner(registry, runner)

	e.Registry = registry
	e.Service = usecase.NewMigrationService(registry, ledger, planner, repository.NewConnector(db), usecase.MigrationServiceOptions{
		Mode:        opts.Mode,
		AutoMigrate: cfg.AutoMigrate,
		Exit:        opts.Exit,
	})
	return e, nil
}

// Close はエンジンが保持する外部クライアントを閉じる。
func (e *Engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}
