package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"chatbot-api/internal/usecase"
)

// ErrNoActiveTransaction はトランザクション開始前、または終了後に操作した場合のエラー。
var ErrNoActiveTransaction = errors.New("no active transaction")

// TxOpener はgormのトランザクションハンドルを生成する。
type TxOpener struct {
	db *gorm.DB
}

// NewTxOpener は新しいTxOpenerを生成する。
func NewTxOpener(db *gorm.DB) *TxOpener {
	return &TxOpener{db: db}
}

// Open は接続を確認してハンドルを返す。トランザクションはまだ開始しない。
func (o *TxOpener) Open(ctx context.Context) (usecase.TxHandle, error) {
	sqlDB, err := o.db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return &TxHandle{db: o.db.WithContext(ctx)}, nil
}

// TxHandle は1件のマイグレーションが占有するトランザクション。
type TxHandle struct {
	db       *gorm.DB
	tx       *gorm.DB
	released bool
}

// Begin はトランザクションを開始する。
func (h *TxHandle) Begin(ctx context.Context) error {
	if h.released {
		return errors.New("transaction handle already released")
	}
	if h.tx != nil {
		return errors.New("transaction already started")
	}
	tx := h.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("starting transaction: %w", tx.Error)
	}
	h.tx = tx
	return nil
}

// Exec はトランザクション内でSQLを実行する。
func (h *TxHandle) Exec(ctx context.Context, query string, args ...any) error {
	if h.tx == nil {
		return ErrNoActiveTransaction
	}
	return h.tx.WithContext(ctx).Exec(query, args...).Error
}

// ORM はトランザクションに束縛されたgorm.DBを返す。
func (h *TxHandle) ORM() *gorm.DB {
	return h.tx
}

// IsTransactionActive はトランザクションが開始済みかつ未終了か返す。
func (h *TxHandle) IsTransactionActive() bool {
	return h.tx != nil
}

// Commit はトランザクションをコミットする。
func (h *TxHandle) Commit() error {
	if h.tx == nil {
		return ErrNoActiveTransaction
	}
	err := h.tx.Commit().Error
	h.tx = nil
	return err
}

// Rollback はトランザクションをロールバックする。
func (h *TxHandle) Rollback() error {
	if h.tx == nil {
		return ErrNoActiveTransaction
	}
	err := h.tx.Rollback().Error
	h.tx = nil
	return err
}

// Release はハンドルを解放する。未終了のトランザクションはロールバックする。
func (h *TxHandle) Release() error {
	if h.released {
		return nil
	}
	h.released = true
	if h.tx != nil {
		return h.Rollback()
	}
	return nil
}
