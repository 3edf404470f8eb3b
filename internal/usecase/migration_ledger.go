package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"chatbot-api/internal/domain"
)

// LedgerVerification は台帳の確認結果。
type LedgerVerification struct {
	// Exists は同じアクションが既に記録済みであることを表す（実行はスキップされる）。
	Exists bool
	// Record は既存の台帳レコード。存在しない場合はnil。
	Record *domain.MigrationRecord
}

// MigrationLedger はバージョンごとの適用状態とdb-versionメタデータを管理する。
type MigrationLedger struct {
	repo     MigrationRepository
	metadata MetadataRepository
}

// NewMigrationLedger は新しいMigrationLedgerを生成する。
func NewMigrationLedger(repo MigrationRepository, metadata MetadataRepository) *MigrationLedger {
	return &MigrationLedger{
		repo:     repo,
		metadata: metadata,
	}
}

// Verify は指定バージョンが既に action の状態か確認する。
func (l *MigrationLedger) Verify(ctx context.Context, version domain.Version, action domain.MigrationAction) (LedgerVerification, error) {
	record, err := l.repo.FindByVersion(ctx, version)
	if err != nil {
		return LedgerVerification{}, fmt.Errorf("finding migration record: %w", err)
	}

	exists := record != nil && record.Status == action
	if exists {
		slog.WarnContext(ctx, fmt.Sprintf("Cannot proceed migration %q is already in %q state", version, action),
			"operation", "verify",
			"version", version,
			"action", action,
		)
	}

	return LedgerVerification{Exists: exists, Record: record}, nil
}

// Update は台帳レコードのステータスを action に更新する。record がnilの場合は新規作成する。
func (l *MigrationLedger) Update(ctx context.Context, version domain.Version, action domain.MigrationAction, record *domain.MigrationRecord) error {
	if record == nil {
		record = &domain.MigrationRecord{Version: version}
	}
	record.Status = action
	if err := l.repo.Save(ctx, record); err != nil {
		return fmt.Errorf("saving migration record: %w", err)
	}
	return nil
}

// LatestApplied は up 状態のレコードのうち最も新しいバージョンを返す。
// 該当するレコードが無い場合は InitialVersion を返す。
func (l *MigrationLedger) LatestApplied(ctx context.Context) (domain.Version, error) {
	records, err := l.repo.FindAllByStatus(ctx, domain.MigrationActionUp)
	if err != nil {
		return "", fmt.Errorf("finding applied migrations: %w", err)
	}
	if len(records) == 0 {
		return domain.InitialVersion, nil
	}

	latest := records[0].Version
	for _, r := range records[1:] {
		if r.Version.IsNewerThan(latest) {
			latest = r.Version
		}
	}
	return latest, nil
}

// CurrentVersion はdb-versionメタデータの値を返す。未設定の場合は InitialVersion を返す。
func (l *MigrationLedger) CurrentVersion(ctx context.Context) (domain.Version, error) {
	m, err := l.metadata.FindByName(ctx, domain.DBVersionMetadataName)
	if err != nil {
		return "", fmt.Errorf("finding db-version metadata: %w", err)
	}
	if m == nil || m.Value == "" {
		return domain.InitialVersion, nil
	}
	v, err := domain.ParseVersion(m.Value)
	if err != nil {
		return "", fmt.Errorf("db-version metadata: %w", err)
	}
	return v, nil
}

// SetCurrentVersion はdb-versionメタデータを作成または更新する。
func (l *MigrationLedger) SetCurrentVersion(ctx context.Context, version domain.Version) error {
	if err := l.metadata.Upsert(ctx, domain.DBVersionMetadataName, version.String()); err != nil {
		return fmt.Errorf("updating db-version metadata: %w", err)
	}
	return nil
}

// Records は全ての台帳レコードをバージョンをキーに返す。
func (l *MigrationLedger) Records(ctx context.Context) (map[domain.Version]*domain.MigrationRecord, error) {
	records, err := l.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("finding migration records: %w", err)
	}
	out := make(map[domain.Version]*domain.MigrationRecord, len(records))
	for _, r := range records {
		out[r.Version] = r
	}
	return out, nil
}
