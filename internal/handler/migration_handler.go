// Package handler はHTTPハンドラを提供する。
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"chatbot-api/internal/usecase"
	"chatbot-api/pkg/httputil"
)

// MigrationHandler はマイグレーション状態を参照するHTTPハンドラを提供する。
type MigrationHandler struct {
	service *usecase.MigrationService
}

// NewMigrationHandler は新しいMigrationHandlerを生成する。
func NewMigrationHandler(service *usecase.MigrationService) *MigrationHandler {
	return &MigrationHandler{service: service}
}

// MigrationResponse はマイグレーション1件のレスポンス形式。
type MigrationResponse struct {
	Version   string  `json:"version"`
	Name      string  `json:"name"`
	Status    string  `json:"status"`
	UpdatedAt *string `json:"updated_at"`
}

// MigrationListResponse はマイグレーション一覧のレスポンス形式。
type MigrationListResponse struct {
	DBVersion  string              `json:"db_version"`
	Migrations []MigrationResponse `json:"migrations"`
}

// ListMigrations は定義ファイルごとの適用状態と現在のdb-versionを返す。
func (h *MigrationHandler) ListMigrations(w http.ResponseWriter, r *http.Request) {
	migrations, current, err := h.service.Status(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to get migration status",
			"operation", "list_migrations",
			"error", err,
		)
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	resp := MigrationListResponse{
		DBVersion:  current.String(),
		Migrations: make([]MigrationResponse, len(migrations)),
	}
	for i, m := range migrations {
		item := MigrationResponse{
			Version: m.Version.String(),
			Name:    m.Name,
			Status:  string(m.Status),
		}
		if m.UpdatedAt != nil {
			updatedAt := m.UpdatedAt.Format(time.RFC3339)
			item.UpdatedAt = &updatedAt
		}
		resp.Migrations[i] = item
	}

	httputil.JSON(w, http.StatusOK, resp)
}

// Health はヘルスチェック用のハンドラ。
func (h *MigrationHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
