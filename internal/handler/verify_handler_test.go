package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/mclink/internal/model"
)

// --- テスト用モック ---

// mockVerifyService はテスト用のVerifyServiceInterfaceモック。
type mockVerifyService struct {
	sessions  map[string]*model.VerificationSession
	submitErr error
	submits   []submitCall
}

type submitCall struct {
	token    string
	username string
	mode     model.VerifyMode
}

func newMockVerifyService() *mockVerifyService {
	return &mockVerifyService{sessions: make(map[string]*model.VerificationSession)}
}

func (m *mockVerifyService) GetSession(_ context.Context, token string) (*model.VerificationSession, error) {
	return m.sessions[token], nil
}

func (m *mockVerifyService) Submit(_ context.Context, token, username string, mode model.VerifyMode) error {
	m.submits = append(m.submits, submitCall{token: token, username: username, mode: mode})
	return m.submitErr
}

// okHealthChecker は常に成功するヘルスチェッカー。
type okHealthChecker struct{}

func (okHealthChecker) PingContext(_ context.Context) error { return nil }

// failHealthChecker は常に失敗するヘルスチェッカー。
type failHealthChecker struct{}

func (failHealthChecker) PingContext(_ context.Context) error {
	return fmt.Errorf("connection refused")
}

func newTestRouter(svc VerifyServiceInterface, checker HealthChecker) http.Handler {
	return NewRouter(&RouterDeps{
		VerifyService: svc,
		HealthChecker: checker,
		Logger:        slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)),
	})
}

// --- GET /verify/{token} のテスト ---

func TestShowPage_KnownToken_RendersForm(t *testing.T) {
	svc := newMockVerifyService()
	svc.sessions["t1"] = &model.VerificationSession{
		Token: "t1", DiscordUserID: "user-1", GuildID: "g1",
		Mode: model.VerifyModeAuth, CreatedAt: time.Now(),
	}
	router := newTestRouter(svc, okHealthChecker{})

	req := httptest.NewRequest(http.MethodGet, "/verify/t1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "verifyForm") {
		t.Error("認証フォームが描画されていない")
	}
	if !strings.Contains(body, "/verify/t1") {
		t.Error("submit先のURLが描画されていない")
	}
	if !strings.Contains(body, "アカウント連携") {
		t.Error("authモードの見出しが描画されていない")
	}
}

func TestShowPage_ChangeMode_RendersChangeHeading(t *testing.T) {
	svc := newMockVerifyService()
	svc.sessions["t1"] = &model.VerificationSession{
		Token: "t1", DiscordUserID: "user-1", GuildID: "g1",
		Mode: model.VerifyModeChange, CreatedAt: time.Now(),
	}
	router := newTestRouter(svc, okHealthChecker{})

	req := httptest.NewRequest(http.MethodGet, "/verify/t1?mode=change", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ニックネーム変更") {
		t.Error("changeモードの見出しが描画されていない")
	}
	if !strings.Contains(rec.Body.String(), "'change'") {
		t.Error("JSにchangeモードが渡されていない")
	}
}

func TestShowPage_UnknownToken_RendersErrorPage(t *testing.T) {
	svc := newMockVerifyService()
	router := newTestRouter(svc, okHealthChecker{})

	req := httptest.NewRequest(http.MethodGet, "/verify/unknown-token", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "無効な認証リンク") {
		t.Error("エラーページが描画されていない")
	}
}

// --- POST /verify/{token} のテスト ---

func TestSubmit_Success(t *testing.T) {
	svc := newMockVerifyService()
	router := newTestRouter(svc, okHealthChecker{})

	body := `{"username":"Notch","mode":"auth"}`
	req := httptest.NewRequest(http.MethodPost, "/verify/t1", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp submitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスがJSONではない: %v", err)
	}
	if !resp.Success {
		t.Errorf("success = false, want true: %+v", resp)
	}

	if len(svc.submits) != 1 {
		t.Fatalf("Submit呼び出し回数 = %d, want 1", len(svc.submits))
	}
	call := svc.submits[0]
	if call.token != "t1" || call.username != "Notch" || call.mode != model.VerifyModeAuth {
		t.Errorf("Submit呼び出し = %+v", call)
	}
}

func TestSubmit_DomainError_Returns200WithSuccessFalse(t *testing.T) {
	svc := newMockVerifyService()
	svc.submitErr = model.NewAlreadyUsedError()
	router := newTestRouter(svc, okHealthChecker{})

	body := `{"username":"Notch","mode":"auth"}`
	req := httptest.NewRequest(http.MethodPost, "/verify/t1", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// ドメイン上の失敗はHTTP 200で返す
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp submitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスがJSONではない: %v", err)
	}
	if resp.Success {
		t.Error("success = true, want false")
	}
	if resp.Code != model.ErrCodeAlreadyUsed {
		t.Errorf("code = %q, want %q", resp.Code, model.ErrCodeAlreadyUsed)
	}
	if resp.Error == "" {
		t.Error("errorメッセージが空")
	}
}

func TestSubmit_InfraError_Returns500Generic(t *testing.T) {
	svc := newMockVerifyService()
	svc.submitErr = fmt.Errorf("failed to confirm account link: connection reset")
	router := newTestRouter(svc, okHealthChecker{})

	body := `{"username":"Notch","mode":"auth"}`
	req := httptest.NewRequest(http.MethodPost, "/verify/t1", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	var resp submitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスがJSONではない: %v", err)
	}
	if resp.Success {
		t.Error("success = true, want false")
	}
	// 内部詳細をユーザーに晒さない
	if strings.Contains(resp.Error, "connection reset") {
		t.Errorf("内部エラーの詳細が漏れている: %q", resp.Error)
	}
}

func TestSubmit_MalformedJSON_Returns400(t *testing.T) {
	svc := newMockVerifyService()
	router := newTestRouter(svc, okHealthChecker{})

	req := httptest.NewRequest(http.MethodPost, "/verify/t1", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(svc.submits) != 0 {
		t.Error("不正なボディでSubmitが呼ばれてはならない")
	}
}

func TestSubmit_MissingMode_DefaultsToAuth(t *testing.T) {
	svc := newMockVerifyService()
	router := newTestRouter(svc, okHealthChecker{})

	body := `{"username":"Notch"}`
	req := httptest.NewRequest(http.MethodPost, "/verify/t1", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(svc.submits) != 1 || svc.submits[0].mode != model.VerifyModeAuth {
		t.Errorf("modeのデフォルトはauthであるべき: %+v", svc.submits)
	}
}

// --- その他のルートのテスト ---

func TestIndex_RendersLandingPage(t *testing.T) {
	router := newTestRouter(newMockVerifyService(), okHealthChecker{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "アカウント連携") {
		t.Error("ランディングページが描画されていない")
	}
}

func TestHealth_OK(t *testing.T) {
	router := newTestRouter(newMockVerifyService(), okHealthChecker{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHealth_DBDown_Returns503(t *testing.T) {
	router := newTestRouter(newMockVerifyService(), failHealthChecker{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
