// Package usecase はアプリケーションのユースケースを実装する。
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"chatbot-api/internal/domain"
)

// Mode はプロセスの実行モードを表す。
type Mode int

const (
	// ModeServer は常駐サービスとして起動したことを表す。
	ModeServer Mode = iota
	// ModeCLI は管理コマンドとして起動したことを表す。コマンド実行後にプロセスを終了する。
	ModeCLI
)

// StorageInitializer はストレージ接続を初期化する。
type StorageInitializer interface {
	Initialize(ctx context.Context) error
}

// MigrationServiceOptions はMigrationServiceの動作設定。
type MigrationServiceOptions struct {
	Mode        Mode
	AutoMigrate bool
	// Exit はプロセスを終了する関数。未指定の場合は os.Exit を使う。
	Exit func(code int)
}

// RunParams はRunの引数。
type RunParams struct {
	Action domain.MigrationAction
	// Version を指定した場合はそのバージョンだけを実行する（CLIモードのみ）。
	Version domain.Version
	// AutoMigrate は起動時の自動マイグレーションであることを表す（サーバーモードのみ）。
	AutoMigrate bool
}

// MigrationService はマイグレーションの起動時フックと管理コマンドを提供する。
type MigrationService struct {
	registry    *MigrationRegistry
	ledger      *MigrationLedger
	planner     *MigrationPlanner
	storage     StorageInitializer
	mode        Mode
	autoMigrate bool
	exit        func(code int)
}

// NewMigrationService は新しいMigrationServiceを生成する。
func NewMigrationService(registry *MigrationRegistry, ledger *MigrationLedger, planner *MigrationPlanner, storage StorageInitializer, opts MigrationServiceOptions) *MigrationService {
	exit := opts.Exit
	if exit == nil {
		exit = os.Exit
	}
	return &MigrationService{
		registry:    registry,
		ledger:      ledger,
		planner:     planner,
		storage:     storage,
		mode:        opts.Mode,
		autoMigrate: opts.AutoMigrate,
		exit:        exit,
	}
}

// Mode は実行モードを返す。
func (s *MigrationService) Mode() Mode {
	return s.mode
}

// Bootstrap はプロセス起動時に1回だけ呼び出す。
// サーバーモードかつ自動マイグレーションが有効な場合、db-version より新しいマイグレーションを適用する。
func (s *MigrationService) Bootstrap(ctx context.Context) error {
	if err := s.registry.EnsureDir(); err != nil {
		return err
	}

	if err := s.storage.Initialize(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to initialize database connection", "error", err)
		return fmt.Errorf("initializing database: %w", err)
	}
	slog.InfoContext(ctx, "database connection established!")

	if s.mode == ModeServer && s.autoMigrate {
		slog.InfoContext(ctx, "Executing migrations ...")
		return s.Run(ctx, RunParams{
			Action:      domain.MigrationActionUp,
			AutoMigrate: true,
		})
	}
	return nil
}

// Run は実行モードに応じてマイグレーションを実行する。
// サーバーモードでは自動マイグレーションのみ行い、CLIモードでは実行後にプロセスを終了する。
func (s *MigrationService) Run(ctx context.Context, params RunParams) error {
	if s.mode != ModeCLI {
		if !params.AutoMigrate {
			return nil
		}
		baseline, err := s.ledger.CurrentVersion(ctx)
		if err != nil {
			return err
		}
		_, err = s.planner.UpgradeFrom(ctx, baseline, params.Action)
		return err
	}

	if params.Version == "" {
		if _, err := s.planner.RunAll(ctx, params.Action); err != nil {
			return err
		}
	} else {
		result, err := s.planner.RunOne(ctx, params.Version, params.Action)
		if err != nil {
			return err
		}
		if result == domain.MigrationFailed {
			return fmt.Errorf("%w: migration %q failed while executing %q", domain.ErrMigrationFailed, params.Version, params.Action)
		}
	}

	s.Exit(0)
	return nil
}

// Create は指定バージョンの定義ファイルを作成し、プロセスを終了する。
// バージョンの形式が不正な場合はI/Oを行う前にエラーを返す。
func (s *MigrationService) Create(version string, kind MigrationKind) error {
	v, err := domain.ParseVersion(version)
	if err != nil {
		return err
	}

	fileName, err := s.registry.Create(v, kind)
	if err != nil {
		if errors.Is(err, domain.ErrMigrationAlreadyExists) {
			slog.Error(fmt.Sprintf("Migration file for %q already exists", v), "version", v)
		} else {
			slog.Error("failed to create migration file", "version", v, "error", err)
		}
		s.Exit(1)
		return err
	}

	slog.Info(fmt.Sprintf("Migration file for %q created: %s", v, fileName),
		"version", v,
		"file", fileName,
	)
	s.Exit(0)
	return nil
}

// Migrate は管理コマンド "migrate <up|down> [version]" を実行する。
func (s *MigrationService) Migrate(ctx context.Context, action, version string) error {
	a, err := domain.ParseMigrationAction(action)
	if err != nil {
		slog.ErrorContext(ctx, "invalid migration action", "action", action, "error", err)
		s.Exit(1)
		return err
	}

	var v domain.Version
	if version != "" {
		v, err = domain.ParseVersion(version)
		if err != nil {
			slog.ErrorContext(ctx, "invalid migration version", "version", version, "error", err)
			s.Exit(1)
			return err
		}
	}

	if err := s.Run(ctx, RunParams{Action: a, Version: v}); err != nil {
		slog.ErrorContext(ctx, "migration run failed", "action", a, "version", v, "error", err)
		s.Exit(1)
		return err
	}
	return nil
}

// Status は定義ファイルごとの適用状態と現在のdb-versionを返す。
func (s *MigrationService) Status(ctx context.Context) ([]*domain.Migration, domain.Version, error) {
	files, err := s.registry.ListDefinitions()
	if err != nil {
		return nil, "", err
	}
	records, err := s.ledger.Records(ctx)
	if err != nil {
		return nil, "", err
	}
	current, err := s.ledger.CurrentVersion(ctx)
	if err != nil {
		return nil, "", err
	}

	migrations := make([]*domain.Migration, len(files))
	for i, f := range files {
		m := &domain.Migration{
			Version: f.Version,
			Name:    f.Name,
			Status:  domain.MigrationStatusPending,
		}
		if r, ok := records[f.Version]; ok {
			m.Status = domain.MigrationStatus(r.Status)
			updatedAt := r.UpdatedAt
			m.UpdatedAt = &updatedAt
		}
		migrations[i] = m
	}
	return migrations, current, nil
}

// Exit はプロセスを終了する。終了コード0の場合はログを出力する。
func (s *MigrationService) Exit(code int) {
	if code == 0 {
		slog.Info("exiting")
	}
	s.exit(code)
}
