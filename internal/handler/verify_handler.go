// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/mclink/internal/model"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// VerifyServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type VerifyServiceInterface interface {
	// GetSession はトークンからセッションを取得する。見つからない場合はnilを返す。
	GetSession(ctx context.Context, token string) (*model.VerificationSession, error)
	// Submit はトークンとニックネームを検証し、アカウント連携をコミットする。
	Submit(ctx context.Context, token, username string, mode model.VerifyMode) error
}

// VerifyHandler は認証フローのHTTPハンドラー。
type VerifyHandler struct {
	service VerifyServiceInterface
}

// NewVerifyHandler はVerifyHandlerを生成する。
func NewVerifyHandler(service VerifyServiceInterface) *VerifyHandler {
	return &VerifyHandler{service: service}
}

// submitRequest は認証submitリクエストのボディ。
type submitRequest struct {
	Username string `json:"username"`
	Mode     string `json:"mode"`
}

// submitResponse は認証submitのレスポンス。
// ドメイン上の失敗はHTTP 200でsuccess=falseとして返す。
type submitResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// verifyPageData は認証ページテンプレートの描画データ。
type verifyPageData struct {
	Token    string
	Mode     string
	IsChange bool
}

// Index はランディングページを表示する。
// GET /
func (h *VerifyHandler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplates.ExecuteTemplate(w, "index.html", nil); err != nil {
		slog.Error("failed to render index page", slog.String("error", err.Error()))
	}
}

// ShowPage は認証ページを表示する。トークンが不明な場合はエラーページを表示する。
// GET /verify/{token}?mode=auth|change
func (h *VerifyHandler) ShowPage(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	session, err := h.service.GetSession(r.Context(), token)
	if err != nil {
		slog.Error("failed to load verification session",
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if session == nil {
		w.WriteHeader(http.StatusNotFound)
		data := struct{ Message string }{Message: "Discordから新しい認証リンクを発行してください。"}
		if err := pageTemplates.ExecuteTemplate(w, "error.html", data); err != nil {
			slog.Error("failed to render error page", slog.String("error", err.Error()))
		}
		return
	}

	mode := model.ParseVerifyMode(r.URL.Query().Get("mode"))
	data := verifyPageData{
		Token:    token,
		Mode:     string(mode),
		IsChange: mode == model.VerifyModeChange,
	}
	if err := pageTemplates.ExecuteTemplate(w, "verify.html", data); err != nil {
		slog.Error("failed to render verify page", slog.String("error", err.Error()))
	}
}

// Submit は認証submitを処理する。
// POST /verify/{token}
//
// ドメイン上の失敗（トークン不明、消費済み、未検出ニックネーム等）は
// すべてHTTP 200でsuccess=falseのボディとして返す。
// 非2xxを返すのはリクエストボディ不正（400）とインフラ障害（500）のみ。
func (h *VerifyHandler) Submit(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		verr := model.NewInvalidRequestError()
		writeSubmitResponse(w, http.StatusBadRequest, submitResponse{
			Success: false,
			Error:   verr.Message,
			Code:    verr.Code,
		})
		return
	}

	mode := model.ParseVerifyMode(req.Mode)

	err := h.service.Submit(r.Context(), token, req.Username, mode)
	if err != nil {
		var verr *model.VerifyError
		if errors.As(err, &verr) {
			writeSubmitResponse(w, http.StatusOK, submitResponse{
				Success: false,
				Error:   verr.Message,
				Code:    verr.Code,
			})
			return
		}

		// インフラ障害: 詳細はログのみに記録する
		slog.Error("verification submit failed",
			slog.String("error", err.Error()),
		)
		internal := model.NewInternalError()
		writeSubmitResponse(w, http.StatusInternalServerError, submitResponse{
			Success: false,
			Error:   internal.Message,
			Code:    internal.Code,
		})
		return
	}

	writeSubmitResponse(w, http.StatusOK, submitResponse{Success: true})
}

func writeSubmitResponse(w http.ResponseWriter, statusCode int, body submitResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
