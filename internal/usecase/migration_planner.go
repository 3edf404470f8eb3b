package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"chatbot-api/internal/domain"
)

// MigrationPlanner は実行するバージョンの順序を決め、Runnerに1件ずつ委譲する。
// 途中で失敗した場合は以降のバージョンを実行しない。
type MigrationPlanner struct {
	registry *MigrationRegistry
	executor MigrationExecutor
}

// NewMigrationPlanner は新しいMigrationPlannerを生成する。
func NewMigrationPlanner(registry *MigrationRegistry, executor MigrationExecutor) *MigrationPlanner {
	return &MigrationPlanner{
		registry: registry,
		executor: executor,
	}
}

// UpgradeFrom は baseline より新しいバージョンを昇順に実行し、最後に到達したバージョンを返す。
// 対象が無い場合は baseline を返す。
func (p *MigrationPlanner) UpgradeFrom(ctx context.Context, baseline domain.Version, action domain.MigrationAction) (domain.Version, error) {
	versions, err := p.registry.Versions()
	if err != nil {
		return baseline, err
	}

	var pending []domain.Version
	for _, v := range versions {
		if v.IsNewerThan(baseline) {
			pending = append(pending, v)
		}
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No migrations to execute ...",
			"operation", "upgrade_from",
			"baseline", baseline,
		)
		return baseline, nil
	}

	return p.runSequence(ctx, baseline, pending, action)
}

// RunAll は登録済みの全バージョンを昇順に実行し、最後に到達したバージョンを返す。
func (p *MigrationPlanner) RunAll(ctx context.Context, action domain.MigrationAction) (domain.Version, error) {
	versions, err := p.registry.Versions()
	if err != nil {
		return domain.InitialVersion, err
	}
	return p.runSequence(ctx, domain.InitialVersion, versions, action)
}

// RunOne は指定バージョンを1回だけ実行する。
func (p *MigrationPlanner) RunOne(ctx context.Context, version domain.Version, action domain.MigrationAction) (domain.MigrationRunResult, error) {
	return p.executor.Run(ctx, version, action)
}

func (p *MigrationPlanner) runSequence(ctx context.Context, last domain.Version, versions []domain.Version, action domain.MigrationAction) (domain.Version, error) {
	for _, v := range versions {
		result, err := p.executor.Run(ctx, v, action)
		if err != nil {
			return last, err
		}
		if result == domain.MigrationFailed {
			return last, fmt.Errorf("%w: migration %q failed while executing %q", domain.ErrMigrationFailed, v, action)
		}
		last = v
	}
	return last, nil
}
