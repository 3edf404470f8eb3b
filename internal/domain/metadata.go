package domain

// DBVersionMetadataName は現在のデータベースバージョンを保持するメタデータ名。
const DBVersionMetadataName = "db-version"

// Metadata は名前付きのキー・バリュー設定を表す。
type Metadata struct {
	Name  string
	Value string
}
