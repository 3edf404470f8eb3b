package infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// ErrAttachmentStoreNotConfigured はATTACHMENT_BUCKETが未設定の場合に返る。
var ErrAttachmentStoreNotConfigured = errors.New("attachment store is not configured")

// AttachmentStore はGCSバケットに保存された添付ファイルを操作する。
type AttachmentStore struct {
	client *storage.Client
	bucket string
}

// NewAttachmentStore はAttachmentStoreを生成する。
func NewAttachmentStore(ctx context.Context, bucket string) (*AttachmentStore, error) {
	if bucket == "" {
		return nil, ErrAttachmentStoreNotConfigured
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &AttachmentStore{
		client: client,
		bucket: bucket,
	}, nil
}

// Read はオブジェクトのリーダーを返す。呼び出し側でCloseする。
func (s *AttachmentStore) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening object %q: %w", key, err)
	}
	return r, nil
}

// Write はオブジェクトを作成または上書きする。
func (s *AttachmentStore) Write(ctx context.Context, key string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("writing object %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing writer for %q: %w", key, err)
	}
	return nil
}

// Delete はオブジェクトを削除する。
func (s *AttachmentStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.client.Bucket(s.bucket).Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("deleting object %q in bucket %q: %w", key, s.bucket, err)
	}
	return nil
}

// List は prefix に一致するオブジェクト名を返す。
func (s *AttachmentStore) List(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	keys := []string{}
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

// Close はストレージクライアントを閉じる。
func (s *AttachmentStore) Close() error {
	return s.client.Close()
}
