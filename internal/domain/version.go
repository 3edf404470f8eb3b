package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// InitialVersion はマイグレーション管理を開始したデータベースバージョン。
// db-versionメタデータも適用済みの台帳レコードも存在しない場合の基準値になる。
const InitialVersion Version = "v3.0.0"

var versionRegex = regexp.MustCompile(`^v(\d+)\.(\d+)\.(\d+)$`)

// Version は "vMAJOR.MINOR.PATCH" 形式のマイグレーションバージョンを表す。
type Version string

// ParseVersion は文字列を検証してVersionに変換する。
func ParseVersion(s string) (Version, error) {
	if !versionRegex.MatchString(s) {
		return "", fmt.Errorf("%w: %q (expected format: vMAJOR.MINOR.PATCH)", ErrInvalidVersion, s)
	}
	return Version(s), nil
}

// IsValidVersion はバージョン文字列の形式が正しいか確認する。
func IsValidVersion(s string) bool {
	return versionRegex.MatchString(s)
}

// String はバージョン文字列を返す。
func (v Version) String() string {
	return string(v)
}

// parts は (major, minor, patch) を返す。欠けている要素は0とみなす。
func (v Version) parts() [3]int {
	var out [3]int
	fields := strings.Split(strings.TrimPrefix(string(v), "v"), ".")
	for i := 0; i < len(out) && i < len(fields); i++ {
		n, err := strconv.Atoi(fields[i])
		if err != nil {
			continue
		}
		out[i] = n
	}
	return out
}

// CompareVersions は a と b を数値として比較し、-1, 0, 1 のいずれかを返す。
func CompareVersions(a, b Version) int {
	ap, bp := a.parts(), b.parts()
	for i := range ap {
		switch {
		case ap[i] > bp[i]:
			return 1
		case ap[i] < bp[i]:
			return -1
		}
	}
	return 0
}

// IsNewerVersion は a が b より新しい場合にtrueを返す。
func IsNewerVersion(a, b Version) bool {
	return CompareVersions(a, b) > 0
}

// IsNewerThan は v が other より新しい場合にtrueを返す。
func (v Version) IsNewerThan(other Version) bool {
	return IsNewerVersion(v, other)
}

// FileSuffix はファイル名に使うケバブケース表記を返す（例: v3.0.1 → v-3-0-1）。
func (v Version) FileSuffix() string {
	return "v-" + strings.ReplaceAll(strings.TrimPrefix(string(v), "v"), ".", "-")
}

// TypeName は雛形ファイルで生成する識別子を返す（例: Migration1700000000000_V3_0_1）。
func (v Version) TypeName(timestamp int64) string {
	return fmt.Sprintf("Migration%d_V%s", timestamp, strings.ReplaceAll(strings.TrimPrefix(string(v), "v"), ".", "_"))
}

// ParseFileSuffix はケバブケース表記からバージョンを復元する。
func ParseFileSuffix(suffix string) (Version, error) {
	head, rest, ok := strings.Cut(suffix, "-")
	if !ok || head != "v" {
		return "", fmt.Errorf("%w: %q", ErrInvalidVersion, suffix)
	}
	return ParseVersion("v" + strings.ReplaceAll(rest, "-", "."))
}
