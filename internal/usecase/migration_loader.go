package usecase

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"chatbot-api/internal/domain"
	"chatbot-api/pkg/migration"
)

const (
	sqlUpMarker   = "-- +migrate up"
	sqlDownMarker = "-- +migrate down"
)

// MigrationLoader はバージョンに対応するマイグレーション定義を解決する。
type MigrationLoader struct {
	registry    *MigrationRegistry
	definitions *migration.Registry
}

// NewMigrationLoader は新しいMigrationLoaderを生成する。
// .go の定義ファイルは definitions に登録された定義に解決される。
func NewMigrationLoader(registry *MigrationRegistry, definitions *migration.Registry) *MigrationLoader {
	return &MigrationLoader{
		registry:    registry,
		definitions: definitions,
	}
}

// Load は指定バージョンの定義を読み込む。
// ファイルが無い、または up / down の両方を提供しない場合はエラーを返す。
func (l *MigrationLoader) Load(version domain.Version) (migration.Definition, error) {
	file, err := l.registry.FindFileForVersion(version)
	if err != nil {
		return nil, fmt.Errorf("failed to load migration %q: %w", version, err)
	}

	switch strings.TrimPrefix(path.Ext(file.Name), ".") {
	case string(MigrationKindSQL):
		src, err := l.registry.ReadFile(file.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to load migration %q: %w", version, err)
		}
		def, err := parseSQLMigration(src)
		if err != nil {
			return nil, fmt.Errorf("failed to load migration %q: %s: %w", version, file.Name, err)
		}
		return def, nil
	default:
		def, ok := l.definitions.Lookup(version.String())
		if !ok || !migration.Complete(def) {
			return nil, fmt.Errorf("failed to load migration %q: %w: %s must register a definition with up and down",
				version, domain.ErrInvalidMigrationDefinition, file.Name)
		}
		return def, nil
	}
}

// sqlMigration はSQLファイルから読み込んだマイグレーション定義。
type sqlMigration struct {
	up   []string
	down []string
}

func (m *sqlMigration) Up(ctx context.Context, tx migration.Tx, _ *migration.Services) error {
	return execStatements(ctx, tx, m.up)
}

func (m *sqlMigration) Down(ctx context.Context, tx migration.Tx, _ *migration.Services) error {
	return execStatements(ctx, tx, m.down)
}

func execStatements(ctx context.Context, tx migration.Tx, statements []string) error {
	for i, stmt := range statements {
		if err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("statement %d: %w", i+1, err)
		}
	}
	return nil
}

// parseSQLMigration は "-- +migrate Up" / "-- +migrate Down" で区切られたSQLを解析する。
// 文は行末のセミコロンで区切る。
func parseSQLMigration(src []byte) (*sqlMigration, error) {
	m := &sqlMigration{}
	var (
		current *[]string
		stmt    strings.Builder
		hasUp   bool
		hasDown bool
	)

	flush := func() {
		if s := strings.TrimSpace(stmt.String()); s != "" && current != nil {
			*current = append(*current, s)
		}
		stmt.Reset()
	}

	scanner := bufio.NewScanner(bytes.NewReader(src))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		switch strings.ToLower(trimmed) {
		case sqlUpMarker:
			flush()
			current, hasUp = &m.up, true
			continue
		case sqlDownMarker:
			flush()
			current, hasDown = &m.down, true
			continue
		}

		if current == nil || trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}

		stmt.WriteString(line)
		stmt.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()

	if !hasUp || !hasDown {
		return nil, fmt.Errorf("%w: both %q and %q sections are required",
			domain.ErrInvalidMigrationDefinition, "-- +migrate Up", "-- +migrate Down")
	}
	return m, nil
}
