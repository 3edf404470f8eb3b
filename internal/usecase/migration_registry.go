package usecase

import (
	"bytes"
	"errors"
	"fmt"
	"go/format"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"text/template"
	"time"

	"chatbot-api/internal/domain"
)

// MigrationKind はマイグレーション定義ファイルの種類（拡張子）を表す。
type MigrationKind string

const (
	MigrationKindGo  MigrationKind = "go"
	MigrationKindSQL MigrationKind = "sql"
)

// EnvTest はディレクトリ作成をスキップするテスト実行環境名。
const EnvTest = "test"

// ファイル名のフォーマット: {unix-ms}-{kebab-version}.migration.{go|sql} (例: 1700000000000-v-3-0-1.migration.go)
var migrationFileRegex = regexp.MustCompile(`^(\d+)-(.+)\.migration\.(go|sql)$`)

const goMigrationTemplate = `package migrations

import (
	"context"

	"chatbot-api/pkg/migration"
)

// {{.TypeName}} はマイグレーション {{.Version}} の定義。
var {{.TypeName}} = migration.Funcs{
	UpFunc: func(ctx context.Context, tx migration.Tx, s *migration.Services) error {
		// Migration logic for {{.Version}}
		return nil
	},
	DownFunc: func(ctx context.Context, tx migration.Tx, s *migration.Services) error {
		// Rollback logic for {{.Version}}
		return nil
	},
}

func init() {
	migration.Register("{{.Version}}", {{.TypeName}})
}
`

const sqlMigrationTemplate = `-- Migration {{.Version}} ({{.TypeName}})
-- Statements are separated by a semicolon at the end of a line.

-- +migrate Up


-- +migrate Down

`

var (
	goTmpl  = template.Must(template.New("go-migration").Parse(goMigrationTemplate))
	sqlTmpl = template.Must(template.New("sql-migration").Parse(sqlMigrationTemplate))
)

// MigrationRegistry はマイグレーションディレクトリ内の定義ファイルを管理する。
type MigrationRegistry struct {
	dir  string
	fsys fs.FS
	env  string
	now  func() time.Time
}

// NewMigrationRegistry は新しいMigrationRegistryを生成する。
// 定義ファイルは dir から読み込む。
func NewMigrationRegistry(dir, env string) *MigrationRegistry {
	return &MigrationRegistry{
		dir:  dir,
		fsys: os.DirFS(dir),
		env:  env,
		now:  time.Now,
	}
}

// WithFS は定義ファイルの読み込み元を差し替える（埋め込みファイルなど）。
func (r *MigrationRegistry) WithFS(fsys fs.FS) *MigrationRegistry {
	r.fsys = fsys
	return r
}

// Dir はマイグレーションディレクトリのパスを返す。
func (r *MigrationRegistry) Dir() string {
	return r.dir
}

// EnsureDir はマイグレーションディレクトリが無ければ作成する。テスト環境では何もしない。
func (r *MigrationRegistry) EnsureDir() error {
	if r.env == EnvTest {
		return nil
	}
	if _, err := os.Stat(r.dir); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking migrations directory: %w", err)
	}
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("creating migrations directory: %w", err)
	}
	return nil
}

// parseMigrationFileName はファイル名からタイムスタンプとバージョンを抽出する。
// 対象外のファイルの場合は ok=false を返す。
func parseMigrationFileName(filename string) (file domain.MigrationFile, ok bool, err error) {
	m := migrationFileRegex.FindStringSubmatch(filename)
	if m == nil {
		return domain.MigrationFile{}, false, nil
	}

	ts, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return domain.MigrationFile{}, true, fmt.Errorf("%w: %s: %v", domain.ErrInvalidMigrationFile, filename, err)
	}
	v, err := domain.ParseFileSuffix(m[2])
	if err != nil {
		return domain.MigrationFile{}, true, fmt.Errorf("%w: %s: %v", domain.ErrInvalidMigrationFile, filename, err)
	}

	return domain.MigrationFile{Timestamp: ts, Version: v, Name: filename}, true, nil
}

// ListDefinitions は定義ファイルの一覧をバージョンの昇順で返す。
// 同じバージョンのファイルが複数ある場合はファイル名順で最初のものを採用する。
func (r *MigrationRegistry) ListDefinitions() ([]domain.MigrationFile, error) {
	entries, err := fs.ReadDir(r.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	seen := make(map[domain.Version]bool)
	var files []domain.MigrationFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		file, ok, err := parseMigrationFileName(entry.Name())
		if !ok {
			continue
		}
		if err != nil {
			slog.Warn("skipping migration file with invalid name",
				"operation", "list_definitions",
				"file", entry.Name(),
				"error", err,
			)
			continue
		}
		if seen[file.Version] {
			slog.Warn("skipping duplicate migration file",
				"operation", "list_definitions",
				"version", file.Version,
				"file", file.Name,
			)
			continue
		}
		seen[file.Version] = true
		files = append(files, file)
	}

	sort.SliceStable(files, func(i, j int) bool {
		return domain.CompareVersions(files[i].Version, files[j].Version) < 0
	})

	return files, nil
}

// Versions は登録済みバージョンを昇順で返す。
func (r *MigrationRegistry) Versions() ([]domain.Version, error) {
	files, err := r.ListDefinitions()
	if err != nil {
		return nil, err
	}
	versions := make([]domain.Version, len(files))
	for i, f := range files {
		versions[i] = f.Version
	}
	return versions, nil
}

// FindFileForVersion は指定バージョンの定義ファイルを返す。
func (r *MigrationRegistry) FindFileForVersion(version domain.Version) (domain.MigrationFile, error) {
	files, err := r.ListDefinitions()
	if err != nil {
		return domain.MigrationFile{}, err
	}
	for _, f := range files {
		if f.Version.FileSuffix() == version.FileSuffix() {
			return f, nil
		}
	}
	return domain.MigrationFile{}, fmt.Errorf("%w: %q", domain.ErrMigrationFileNotFound, version)
}

// ReadFile は定義ファイルの内容を読み込む。
func (r *MigrationRegistry) ReadFile(name string) ([]byte, error) {
	return fs.ReadFile(r.fsys, name)
}

// Create は指定バージョンの定義ファイルを雛形から作成し、ファイル名を返す。
// 同じバージョンの定義が既にある場合は何も書き込まずに ErrMigrationAlreadyExists を返す。
func (r *MigrationRegistry) Create(version domain.Version, kind MigrationKind) (string, error) {
	if _, err := r.FindFileForVersion(version); err == nil {
		return "", fmt.Errorf("%w: %q", domain.ErrMigrationAlreadyExists, version)
	} else if !errors.Is(err, domain.ErrMigrationFileNotFound) {
		return "", err
	}

	timestamp := r.now().UnixMilli()
	data := struct {
		Version  domain.Version
		TypeName string
	}{
		Version:  version,
		TypeName: version.TypeName(timestamp),
	}

	var tmpl *template.Template
	switch kind {
	case MigrationKindGo, "":
		kind = MigrationKindGo
		tmpl = goTmpl
	case MigrationKindSQL:
		tmpl = sqlTmpl
	default:
		return "", fmt.Errorf("%w: unsupported kind %q", domain.ErrInvalidMigrationFile, kind)
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, data); err != nil {
		return "", fmt.Errorf("rendering migration template: %w", err)
	}
	src := buf.Bytes()
	if kind == MigrationKindGo {
		formatted, err := format.Source(src)
		if err != nil {
			return "", fmt.Errorf("formatting migration template: %w", err)
		}
		src = formatted
	}

	fileName := fmt.Sprintf("%d-%s.migration.%s", timestamp, version.FileSuffix(), kind)
	if err := os.WriteFile(filepath.Join(r.dir, fileName), src, 0644); err != nil {
		return "", fmt.Errorf("writing migration file: %w", err)
	}

	return fileName, nil
}
