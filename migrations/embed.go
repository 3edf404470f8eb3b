// Package migrations はバージョン付きのマイグレーション定義を提供する。
// Go定義は init で migration.Register に登録され、ファイル自体は Files として埋め込まれる。
package migrations

import "embed"

// Files はマイグレーション定義ファイル一式。サーバーはこのFSからバージョン一覧を解決する。
//
//go:embed *.migration.*
var Files embed.FS
