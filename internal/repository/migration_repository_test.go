package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"chatbot-api/internal/domain"
)

// setupTestDB はテスト用のSQLiteデータベースを作成し、エンジンのテーブルを用意する。
// 複数コネクションから同じデータを参照するためファイルに作成する。
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

func TestMigrationRepository_SaveAndFindByVersion(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMigrationRepository(db)
	ctx := context.Background()

	record := &domain.MigrationRecord{Version: "v3.0.1", Status: domain.MigrationActionUp}
	if err := repo.Save(ctx, record); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if record.ID == "" {
		t.Error("expected ID to be generated")
	}
	if record.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	found, err := repo.FindByVersion(ctx, "v3.0.1")
	if err != nil {
		t.Fatalf("FindByVersion failed: %v", err)
	}
	if found == nil {
		t.Fatal("expected record, got nil")
	}
	if found.ID != record.ID || found.Status != domain.MigrationActionUp {
		t.Errorf("unexpected record: %+v", found)
	}

	// 存在しないバージョン
	missing, err := repo.FindByVersion(ctx, "v9.9.9")
	if err != nil {
		t.Fatalf("FindByVersion failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil, got %+v", missing)
	}
}

func TestMigrationRepository_SaveUpdatesExistingRecord(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMigrationRepository(db)
	ctx := context.Background()

	record := &domain.MigrationRecord{Version: "v3.0.1", Status: domain.MigrationActionUp}
	if err := repo.Save(ctx, record); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	record.Status = domain.MigrationActionDown
	if err := repo.Save(ctx, record); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	all, err := repo.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 record, got %d", len(all))
	}
	if all[0].Status != domain.MigrationActionDown {
		t.Errorf("expected status down, got %s", all[0].Status)
	}
}

func TestMigrationRepository_DuplicateVersion(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMigrationRepository(db)
	ctx := context.Background()

	if err := repo.Save(ctx, &domain.MigrationRecord{Version: "v3.0.1", Status: domain.MigrationActionUp}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	err := repo.Save(ctx, &domain.MigrationRecord{Version: "v3.0.1", Status: domain.MigrationActionUp})
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Errorf("expected gorm.ErrDuplicatedKey, got %v", err)
	}
}

func TestMigrationRepository_FindAllByStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMigrationRepository(db)
	ctx := context.Background()

	seed := []*domain.MigrationRecord{
		{Version: "v3.0.1", Status: domain.MigrationActionUp},
		{Version: "v3.0.2", Status: domain.MigrationActionDown},
		{Version: "v3.0.3", Status: domain.MigrationActionUp},
	}
	for _, r := range seed {
		if err := repo.Save(ctx, r); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	up, err := repo.FindAllByStatus(ctx, domain.MigrationActionUp)
	if err != nil {
		t.Fatalf("FindAllByStatus failed: %v", err)
	}
	if len(up) != 2 {
		t.Fatalf("expected 2 up records, got %d", len(up))
	}
	for _, r := range up {
		if r.Status != domain.MigrationActionUp {
			t.Errorf("unexpected status %s for %s", r.Status, r.Version)
		}
	}
}

func TestMetadataRepository_Upsert(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMetadataRepository(db)
	ctx := context.Background()

	m, err := repo.FindByName(ctx, domain.DBVersionMetadataName)
	if err != nil {
		t.Fatalf("FindByName failed: %v", err)
	}
	if m != nil {
		t.Fatalf("expected nil before upsert, got %+v", m)
	}

	if err := repo.Upsert(ctx, domain.DBVersionMetadataName, "v3.0.1"); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := repo.Upsert(ctx, domain.DBVersionMetadataName, "v3.0.2"); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	m, err = repo.FindByName(ctx, domain.DBVersionMetadataName)
	if err != nil {
		t.Fatalf("FindByName failed: %v", err)
	}
	if m == nil || m.Value != "v3.0.2" {
		t.Errorf("expected v3.0.2, got %+v", m)
	}

	var count int64
	db.Model(&MetadataModel{}).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 metadata row, got %d", count)
	}
}

func TestConnector_Initialize(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := NewConnector(db).Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	for _, table := range []string{"migrations", "metadata"} {
		if !db.Migrator().HasTable(table) {
			t.Errorf("expected table %s to exist", table)
		}
	}
}
