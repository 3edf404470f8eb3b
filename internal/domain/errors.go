// Package domain はマイグレーションエンジンのドメインモデルとエラーを定義する。
package domain

import "errors"

var (
	// ErrInvalidVersion はバージョン文字列の形式が不正な場合のエラー。
	ErrInvalidVersion = errors.New("invalid migration version")

	// ErrInvalidMigrationAction はアクションが up / down 以外の場合のエラー。
	ErrInvalidMigrationAction = errors.New("invalid migration action")

	// ErrMigrationAlreadyExists は同じバージョンの定義ファイルが既に存在する場合のエラー。
	ErrMigrationAlreadyExists = errors.New("migration already exists")

	// ErrMigrationFailed はマイグレーション実行時のエラー。
	ErrMigrationFailed = errors.New("migration failed")

	// ErrMigrationFileNotFound はマイグレーションファイルが見つからない場合のエラー。
	ErrMigrationFileNotFound = errors.New("migration file not found")

	// ErrInvalidMigrationFile はマイグレーションファイルのフォーマットが不正な場合のエラー。
	ErrInvalidMigrationFile = errors.New("invalid migration file")

	// ErrInvalidMigrationDefinition は定義が up と down の両方を提供していない場合のエラー。
	ErrInvalidMigrationDefinition = errors.New("invalid migration definition")
)
