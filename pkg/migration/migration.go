// Package migration はマイグレーションスクリプトが実装・利用する公開APIを提供する。
package migration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"gorm.io/gorm"
)

// ErrFailed はスクリプトが明示的に失敗を通知するためのエラー。
// 他のエラーと異なり、エラーメッセージはログに出力されない。
var ErrFailed = errors.New("migration reported failure")

// Tx はマイグレーション1件の実行中だけ有効なトランザクション。
// スクリプトは呼び出しの外で保持してはならない。
type Tx interface {
	Exec(ctx context.Context, query string, args ...any) error
	ORM() *gorm.DB
}

// AttachmentService は添付ファイルへのアクセスを提供する。
type AttachmentService interface {
	Read(ctx context.Context, key string) (io.ReadCloser, error)
	Write(ctx context.Context, key string, r io.Reader) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// Cipher は保存済みシークレットの再暗号化などに使う暗号化インターフェース。
type Cipher interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// Services はホストアプリケーションがスクリプトに渡す補助サービス。
// エンジンはこれらを生成せず、そのまま受け渡す。
type Services struct {
	Logger      *slog.Logger
	HTTP        *http.Client
	Attachments AttachmentService // 未設定の場合はnil
	Cipher      Cipher            // 未設定の場合はnil
}

// Func は up / down の処理本体。
type Func func(ctx context.Context, tx Tx, s *Services) error

// Definition はバージョン付きで可逆なマイグレーション定義。
type Definition interface {
	Up(ctx context.Context, tx Tx, s *Services) error
	Down(ctx context.Context, tx Tx, s *Services) error
}

// Funcs は関数の組でDefinitionを実装する。
type Funcs struct {
	UpFunc   Func
	DownFunc Func
}

// Up は UpFunc を呼び出す。
func (f Funcs) Up(ctx context.Context, tx Tx, s *Services) error {
	return f.UpFunc(ctx, tx, s)
}

// Down は DownFunc を呼び出す。
func (f Funcs) Down(ctx context.Context, tx Tx, s *Services) error {
	return f.DownFunc(ctx, tx, s)
}

// Complete は up / down の両方が呼び出し可能か確認する。
func Complete(d Definition) bool {
	if d == nil {
		return false
	}
	if f, ok := d.(Funcs); ok {
		return f.UpFunc != nil && f.DownFunc != nil
	}
	if f, ok := d.(*Funcs); ok {
		return f != nil && f.UpFunc != nil && f.DownFunc != nil
	}
	return true
}
