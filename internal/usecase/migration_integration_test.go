package usecase_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"chatbot-api/internal/domain"
	"chatbot-api/internal/repository"
	"chatbot-api/internal/usecase"
	"chatbot-api/pkg/migration"
)

type integrationEngine struct {
	db          *gorm.DB
	definitions *migration.Registry
	ledger      *usecase.MigrationLedger
	runner      *usecase.MigrationRunner
	planner     *usecase.MigrationPlanner
}

func setupIntegration(t *testing.T, files fstest.MapFS) *integrationEngine {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := repository.NewConnector(db).Initialize(context.Background()); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	registry := usecase.NewMigrationRegistry("migrations", usecase.EnvTest).WithFS(files)
	definitions := migration.NewRegistry()
	ledger := usecase.NewMigrationLedger(repository.NewMigrationRepository(db), repository.NewMetadataRepository(db))
	runner := usecase.NewMigrationRunner(ledger, usecase.NewMigrationLoader(registry, definitions), repository.NewTxOpener(db), nil)

	return &integrationEngine{
		db:          db,
		definitions: definitions,
		ledger:      ledger,
		runner:      runner,
		planner:     usecase.NewMigrationPlanner(registry, runner),
	}
}

func countRows(t *testing.T, db *gorm.DB, table string) int64 {
	t.Helper()
	var n int64
	if err := db.Table(table).Count(&n).Error; err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}
	return n
}

func TestIntegration_RunTwiceWritesOneRecord(t *testing.T) {
	ctx := context.Background()
	e := setupIntegration(t, fstest.MapFS{
		"1700000000000-v-3-0-1.migration.go": {Data: []byte("package migrations")},
	})
	e.definitions.Register("v3.0.1", migration.Funcs{
		UpFunc: func(ctx context.Context, tx migration.Tx, s *migration.Services) error {
			return tx.Exec(ctx, `CREATE TABLE labels (id TEXT PRIMARY KEY)`)
		},
		DownFunc: func(ctx context.Context, tx migration.Tx, s *migration.Services) error {
			return tx.Exec(ctx, `DROP TABLE labels`)
		},
	})

	first, err := e.runner.Run(ctx, "v3.0.1", domain.MigrationActionUp)
	if err != nil || first != domain.MigrationExecuted {
		t.Fatalf("first run: result %s, err %v", first, err)
	}
	second, err := e.runner.Run(ctx, "v3.0.1", domain.MigrationActionUp)
	if err != nil || second != domain.MigrationSkipped {
		t.Fatalf("second run: result %s, err %v", second, err)
	}

	if n := countRows(t, e.db, "migrations"); n != 1 {
		t.Errorf("expected 1 ledger record, got %d", n)
	}
	current, err := e.ledger.CurrentVersion(ctx)
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if current != "v3.0.1" {
		t.Errorf("expected db-version v3.0.1, got %s", current)
	}
}

func TestIntegration_FailedScriptLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	e := setupIntegration(t, fstest.MapFS{
		"1700000000000-v-3-0-1.migration.go": {Data: []byte("package migrations")},
	})
	if err := e.db.Exec(`CREATE TABLE labels (id TEXT PRIMARY KEY)`).Error; err != nil {
		t.Fatalf("failed to create labels: %v", err)
	}
	e.definitions.Register("v3.0.1", migration.Funcs{
		UpFunc: func(ctx context.Context, tx migration.Tx, s *migration.Services) error {
			if err := tx.ORM().Exec(`INSERT INTO labels (id) VALUES ('a')`).Error; err != nil {
				return err
			}
			return errors.New("validation failed")
		},
		DownFunc: func(context.Context, migration.Tx, *migration.Services) error { return nil },
	})

	result, err := e.runner.Run(ctx, "v3.0.1", domain.MigrationActionUp)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result != domain.MigrationFailed {
		t.Fatalf("expected failed, got %s", result)
	}
	if n := countRows(t, e.db, "labels"); n != 0 {
		t.Errorf("expected script writes to be rolled back, got %d rows", n)
	}
	if n := countRows(t, e.db, "migrations"); n != 0 {
		t.Errorf("expected no ledger record, got %d", n)
	}
	if n := countRows(t, e.db, "metadata"); n != 0 {
		t.Errorf("expected no db-version metadata, got %d", n)
	}
}

func TestIntegration_SQLMigrationUpAndDown(t *testing.T) {
	ctx := context.Background()
	e := setupIntegration(t, fstest.MapFS{
		"1700000000000-v-3-0-1.migration.sql": {Data: []byte(`-- +migrate Up
CREATE TABLE labels (id TEXT PRIMARY KEY);
INSERT INTO labels (id) VALUES ('greeting');
-- +migrate Down
DROP TABLE labels;
`)},
	})

	last, err := e.planner.RunAll(ctx, domain.MigrationActionUp)
	if err != nil {
		t.Fatalf("RunAll up failed: %v", err)
	}
	if last != "v3.0.1" {
		t.Errorf("expected last v3.0.1, got %s", last)
	}
	if n := countRows(t, e.db, "labels"); n != 1 {
		t.Errorf("expected 1 label, got %d", n)
	}

	if _, err := e.planner.RunAll(ctx, domain.MigrationActionDown); err != nil {
		t.Fatalf("RunAll down failed: %v", err)
	}
	if e.db.Migrator().HasTable("labels") {
		t.Error("expected labels table to be dropped")
	}
	current, err := e.ledger.CurrentVersion(ctx)
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if current != domain.InitialVersion {
		t.Errorf("expected db-version %s after down, got %s", domain.InitialVersion, current)
	}
}

func TestIntegration_BatchHaltsOnFailure(t *testing.T) {
	ctx := context.Background()
	e := setupIntegration(t, fstest.MapFS{
		"1700000000001-v-3-0-1.migration.go": {Data: []byte("package migrations")},
		"1700000000002-v-3-0-2.migration.go": {Data: []byte("package migrations")},
		"1700000000003-v-3-0-3.migration.go": {Data: []byte("package migrations")},
	})
	var ran []string
	ok := func(v string) migration.Funcs {
		return migration.Funcs{
			UpFunc: func(context.Context, migration.Tx, *migration.Services) error {
				ran = append(ran, v)
				return nil
			},
			DownFunc: func(context.Context, migration.Tx, *migration.Services) error { return nil },
		}
	}
	e.definitions.Register("v3.0.1", ok("v3.0.1"))
	e.definitions.Register("v3.0.2", migration.Funcs{
		UpFunc:   func(context.Context, migration.Tx, *migration.Services) error { return migration.ErrFailed },
		DownFunc: func(context.Context, migration.Tx, *migration.Services) error { return nil },
	})
	e.definitions.Register("v3.0.3", ok("v3.0.3"))

	last, err := e.planner.UpgradeFrom(ctx, domain.InitialVersion, domain.MigrationActionUp)
	if !errors.Is(err, domain.ErrMigrationFailed) {
		t.Fatalf("expected ErrMigrationFailed, got %v", err)
	}
	if last != "v3.0.1" {
		t.Errorf("expected last v3.0.1, got %s", last)
	}
	if len(ran) != 1 || ran[0] != "v3.0.1" {
		t.Errorf("expected only v3.0.1 to run, got %v", ran)
	}
	current, _ := e.ledger.CurrentVersion(ctx)
	if current != "v3.0.1" {
		t.Errorf("expected db-version v3.0.1, got %s", current)
	}
}
