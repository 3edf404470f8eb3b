package infra

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewHTTPClient はマイグレーションスクリプトから外部APIを呼び出すためのHTTPクライアントを生成する。
// リクエストごとにクライアントスパンを記録し、トレースコンテキストを伝搬する。
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}
