package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chatbot-api/internal/domain"
	"chatbot-api/pkg/migration"
)

const tracerName = "chatbot-api/migration"

// MigrationExecutor は1件のマイグレーションを実行するインターフェース。
type MigrationExecutor interface {
	Run(ctx context.Context, version domain.Version, action domain.MigrationAction) (domain.MigrationRunResult, error)
}

// MigrationRunner は1件のマイグレーションをトランザクション内で実行する。
type MigrationRunner struct {
	ledger   *MigrationLedger
	loader   *MigrationLoader
	opener   TxOpener
	services *migration.Services
	tracer   trace.Tracer
}

// NewMigrationRunner は新しいMigrationRunnerを生成する。
// services はスクリプトにそのまま渡される。
func NewMigrationRunner(ledger *MigrationLedger, loader *MigrationLoader, opener TxOpener, services *migration.Services) *MigrationRunner {
	if services == nil {
		services = &migration.Services{}
	}
	if services.Logger == nil {
		services.Logger = slog.Default()
	}
	return &MigrationRunner{
		ledger:   ledger,
		loader:   loader,
		opener:   opener,
		services: services,
		tracer:   otel.Tracer(tracerName),
	}
}

// Run は指定バージョンの action を実行し、executed / skipped / failed のいずれかを返す。
// スクリプトの失敗は failed として返し、定義の読み込み失敗などはエラーとして返す。
func (r *MigrationRunner) Run(ctx context.Context, version domain.Version, action domain.MigrationAction) (result domain.MigrationRunResult, err error) {
	ctx, span := r.tracer.Start(ctx, "migration.run", trace.WithAttributes(
		attribute.String("migration.version", version.String()),
		attribute.String("migration.action", string(action)),
	))
	defer func() {
		span.SetAttributes(attribute.String("migration.result", string(result)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	verification, err := r.ledger.Verify(ctx, version, action)
	if err != nil {
		return "", err
	}
	if verification.Exists {
		writeAuditLog(ctx, version, action, domain.MigrationSkipped)
		return domain.MigrationSkipped, nil
	}

	handle, err := r.opener.Open(ctx)
	if err != nil {
		return "", fmt.Errorf("opening transaction handle: %w", err)
	}
	defer func() {
		if releaseErr := handle.Release(); releaseErr != nil {
			slog.ErrorContext(ctx, "failed to release transaction handle",
				"operation", "run",
				"version", version,
				"error", releaseErr,
			)
		}
	}()

	if err := handle.Begin(ctx); err != nil {
		return r.fail(ctx, span, handle, version, action, err), nil
	}

	def, err := r.loader.Load(version)
	if err != nil {
		r.rollback(ctx, handle, version)
		return "", err
	}

	if err := invoke(ctx, def, handle, action, r.services); err != nil {
		return r.fail(ctx, span, handle, version, action, err), nil
	}

	if err := handle.Commit(); err != nil {
		return r.fail(ctx, span, handle, version, action, fmt.Errorf("committing transaction: %w", err)), nil
	}

	if err := r.succeed(ctx, version, action, verification.Record); err != nil {
		return r.fail(ctx, span, handle, version, action, err), nil
	}

	writeAuditLog(ctx, version, action, domain.MigrationExecuted)
	return domain.MigrationExecuted, nil
}

// invoke はスクリプトを実行する。panicはエラーとして扱う。
func invoke(ctx context.Context, def migration.Definition, tx migration.Tx, action domain.MigrationAction, services *migration.Services) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("migration panicked: %v", p)
		}
	}()

	switch action {
	case domain.MigrationActionUp:
		return def.Up(ctx, tx, services)
	case domain.MigrationActionDown:
		return def.Down(ctx, tx, services)
	default:
		return fmt.Errorf("%w: %q", domain.ErrInvalidMigrationAction, action)
	}
}

// succeed は台帳とdb-versionメタデータを更新する。
// up の場合は実行したバージョン、down の場合は up 状態の最新バージョンを記録する。
func (r *MigrationRunner) succeed(ctx context.Context, version domain.Version, action domain.MigrationAction, record *domain.MigrationRecord) error {
	if err := r.ledger.Update(ctx, version, action, record); err != nil {
		return err
	}
	slog.InfoContext(ctx, fmt.Sprintf("%q migration done", displayName(version, action)),
		"operation", "run",
		"version", version,
		"action", action,
	)

	current := version
	if action != domain.MigrationActionUp {
		latest, err := r.ledger.LatestApplied(ctx)
		if err != nil {
			return err
		}
		current = latest
	}
	if err := r.ledger.SetCurrentVersion(ctx, current); err != nil {
		return err
	}
	slog.InfoContext(ctx, fmt.Sprintf("db-version metadata %q", current),
		"operation", "run",
		"db_version", current,
	)
	return nil
}

// fail はトランザクションをロールバックして失敗を記録する。
// migration.ErrFailed による失敗ではエラーメッセージを出力しない。
func (r *MigrationRunner) fail(ctx context.Context, span trace.Span, handle TxHandle, version domain.Version, action domain.MigrationAction, cause error) domain.MigrationRunResult {
	r.rollback(ctx, handle, version)

	slog.ErrorContext(ctx, fmt.Sprintf("%q migration failed", displayName(version, action)),
		"operation", "run",
		"version", version,
		"action", action,
	)
	if !errors.Is(cause, migration.ErrFailed) {
		slog.ErrorContext(ctx, cause.Error(),
			"operation", "run",
			"version", version,
			"action", action,
		)
	}

	span.SetStatus(codes.Error, "migration failed")
	writeAuditLog(ctx, version, action, domain.MigrationFailed)
	return domain.MigrationFailed
}

func (r *MigrationRunner) rollback(ctx context.Context, handle TxHandle, version domain.Version) {
	if !handle.IsTransactionActive() {
		return
	}
	if err := handle.Rollback(); err != nil {
		slog.ErrorContext(ctx, "failed to rollback transaction",
			"operation", "run",
			"version", version,
			"error", err,
		)
	}
}

func displayName(version domain.Version, action domain.MigrationAction) string {
	return fmt.Sprintf("%s [%s]", version, action)
}

// writeAuditLog はマイグレーション操作の監査ログを出力する。
func writeAuditLog(ctx context.Context, version domain.Version, action domain.MigrationAction, result domain.MigrationRunResult) {
	slog.InfoContext(ctx, "migration operation completed",
		"operation", "MIGRATION_"+strings.ToUpper(string(action)),
		"version", version,
		"result", result,
		"timestamp", time.Now().UTC().Format(time.RFC3339),
	)
}
