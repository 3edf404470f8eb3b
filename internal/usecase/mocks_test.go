package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"gorm.io/gorm"

	"chatbot-api/internal/domain"
	"chatbot-api/pkg/migration"
)

// mockMigrationRepository はテスト用のモック台帳。
type mockMigrationRepository struct {
	records map[domain.Version]*domain.MigrationRecord
	saveErr error
	saves   int
}

func newMockMigrationRepository() *mockMigrationRepository {
	return &mockMigrationRepository{
		records: make(map[domain.Version]*domain.MigrationRecord),
	}
}

func (m *mockMigrationRepository) FindByVersion(ctx context.Context, version domain.Version) (*domain.MigrationRecord, error) {
	r, ok := m.records[version]
	if !ok {
		return nil, nil
	}
	copied := *r
	return &copied, nil
}

func (m *mockMigrationRepository) FindAll(ctx context.Context) ([]*domain.MigrationRecord, error) {
	var out []*domain.MigrationRecord
	for _, r := range m.records {
		copied := *r
		out = append(out, &copied)
	}
	return out, nil
}

func (m *mockMigrationRepository) FindAllByStatus(ctx context.Context, status domain.MigrationAction) ([]*domain.MigrationRecord, error) {
	var out []*domain.MigrationRecord
	for _, r := range m.records {
		if r.Status == status {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockMigrationRepository) Save(ctx context.Context, record *domain.MigrationRecord) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	now := time.Now()
	if record.ID == "" {
		record.ID = "id-" + record.Version.String()
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	copied := *record
	m.records[record.Version] = &copied
	return nil
}

// mockMetadataRepository はテスト用のモックメタデータリポジトリ。
type mockMetadataRepository struct {
	values    map[string]string
	upsertErr error
}

func newMockMetadataRepository() *mockMetadataRepository {
	return &mockMetadataRepository{values: make(map[string]string)}
}

func (m *mockMetadataRepository) FindByName(ctx context.Context, name string) (*domain.Metadata, error) {
	v, ok := m.values[name]
	if !ok {
		return nil, nil
	}
	return &domain.Metadata{Name: name, Value: v}, nil
}

func (m *mockMetadataRepository) Upsert(ctx context.Context, name, value string) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.values[name] = value
	return nil
}

// mockTxHandle はテスト用のトランザクションハンドル。
type mockTxHandle struct {
	beginErr   error
	commitErr  error
	active     bool
	begun      int
	commits    int
	rollbacks  int
	releases   int
	statements []string
}

func (h *mockTxHandle) Exec(ctx context.Context, query string, args ...any) error {
	h.statements = append(h.statements, query)
	return nil
}

func (h *mockTxHandle) ORM() *gorm.DB { return nil }

func (h *mockTxHandle) Begin(ctx context.Context) error {
	if h.beginErr != nil {
		return h.beginErr
	}
	h.begun++
	h.active = true
	return nil
}

func (h *mockTxHandle) Commit() error {
	h.active = false
	if h.commitErr != nil {
		return h.commitErr
	}
	h.commits++
	return nil
}

func (h *mockTxHandle) Rollback() error {
	h.active = false
	h.rollbacks++
	return nil
}

func (h *mockTxHandle) IsTransactionActive() bool { return h.active }

func (h *mockTxHandle) Release() error {
	h.releases++
	return nil
}

// mockTxOpener は毎回同じハンドルを返す。
type mockTxOpener struct {
	handle  *mockTxHandle
	openErr error
	opens   int
}

func (o *mockTxOpener) Open(ctx context.Context) (TxHandle, error) {
	if o.openErr != nil {
		return nil, o.openErr
	}
	o.opens++
	return o.handle, nil
}

// testEngine はモックで組み立てたエンジン一式。
type testEngine struct {
	registry    *MigrationRegistry
	definitions *migration.Registry
	repo        *mockMigrationRepository
	metadata    *mockMetadataRepository
	handle      *mockTxHandle
	opener      *mockTxOpener
	ledger      *MigrationLedger
	runner      *MigrationRunner
	planner     *MigrationPlanner
}

func newTestEngine(t *testing.T, files fstest.MapFS) *testEngine {
	t.Helper()
	e := &testEngine{
		registry:    NewMigrationRegistry("migrations", EnvTest).WithFS(files),
		definitions: migration.NewRegistry(),
		repo:        newMockMigrationRepository(),
		metadata:    newMockMetadataRepository(),
		handle:      &mockTxHandle{},
	}
	e.opener = &mockTxOpener{handle: e.handle}
	e.ledger = NewMigrationLedger(e.repo, e.metadata)
	e.runner = NewMigrationRunner(e.ledger, NewMigrationLoader(e.registry, e.definitions), e.opener, nil)
	e.planner = NewMigrationPlanner(e.registry, e.runner)
	return e
}

// goFiles はバージョンごとのGo定義ファイルを持つFSを返す。
func goFiles(versions ...string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for i, v := range versions {
		name := domain.Version(v).FileSuffix()
		fsys[fmtFileName(1700000000000+int64(i), name, "go")] = &fstest.MapFile{Data: []byte("package migrations\n")}
	}
	return fsys
}

func fmtFileName(ts int64, suffix, ext string) string {
	return fmt.Sprintf("%d-%s.migration.%s", ts, suffix, ext)
}

// captureLogs はデフォルトロガーの出力をバッファに差し替える。
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return buf
}

// recorder はスクリプトの呼び出し回数を数える定義を返す。
type recorder struct {
	ups, downs int
	upErr      error
	downErr    error
}

func (r *recorder) definition() migration.Funcs {
	return migration.Funcs{
		UpFunc: func(ctx context.Context, tx migration.Tx, s *migration.Services) error {
			r.ups++
			return r.upErr
		},
		DownFunc: func(ctx context.Context, tx migration.Tx, s *migration.Services) error {
			r.downs++
			return r.downErr
		},
	}
}

func containsLog(out, msg string) bool {
	return strings.Contains(out, msg)
}
