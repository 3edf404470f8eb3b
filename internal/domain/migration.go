package domain

import (
	"fmt"
	"time"
)

// MigrationAction はマイグレーションの実行方向を表す。
type MigrationAction string

const (
	// MigrationActionUp は変更の適用を表す。
	MigrationActionUp MigrationAction = "up"
	// MigrationActionDown は変更の取り消しを表す。
	MigrationActionDown MigrationAction = "down"
)

// ParseMigrationAction は文字列を検証してMigrationActionに変換する。
func ParseMigrationAction(s string) (MigrationAction, error) {
	switch a := MigrationAction(s); a {
	case MigrationActionUp, MigrationActionDown:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q (expected up or down)", ErrInvalidMigrationAction, s)
	}
}

// MigrationRunResult は1回のマイグレーション実行の結果を表す。
type MigrationRunResult string

const (
	MigrationExecuted MigrationRunResult = "executed"
	MigrationSkipped  MigrationRunResult = "skipped"
	MigrationFailed   MigrationRunResult = "failed"
)

// MigrationRecord はmigrationsテーブル（台帳）の1レコードを表す。
// Status は該当バージョンで最後に成功したアクションを保持する。
type MigrationRecord struct {
	ID        string
	Version   Version
	Status    MigrationAction
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MigrationFile はマイグレーションディレクトリ内の定義ファイルを表す。
type MigrationFile struct {
	Timestamp int64   // ファイル名先頭のUnixミリ秒
	Version   Version // ファイル名から復元したバージョン
	Name      string  // ファイル名
}

// MigrationStatus は定義ファイルと台帳を突き合わせた状態を表す。
type MigrationStatus string

const (
	MigrationStatusPending MigrationStatus = "pending"
	MigrationStatusUp      MigrationStatus = "up"
	MigrationStatusDown    MigrationStatus = "down"
)

// Migration は status コマンドやAPIで返すマイグレーションの一覧要素。
type Migration struct {
	Version   Version
	Name      string
	Status    MigrationStatus
	UpdatedAt *time.Time // 台帳レコードが無い場合はnil
}
