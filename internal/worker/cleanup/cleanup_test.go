package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

// mockExecutor はテスト用のExecutorモック。
type mockExecutor struct {
	query   string
	args    []interface{}
	rows    int64
	execErr error
}

func (m *mockExecutor) ExecContext(_ context.Context, query string, args ...interface{}) (sql.Result, error) {
	m.query = query
	m.args = args
	if m.execErr != nil {
		return nil, m.execErr
	}
	return mockResult{rows: m.rows}, nil
}

type mockResult struct {
	rows int64
}

func (r mockResult) LastInsertId() (int64, error) { return 0, nil }
func (r mockResult) RowsAffected() (int64, error) { return r.rows, nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

// デフォルトの保持日数が90日であることを検証
func TestNewCleanupJob_DefaultRetention(t *testing.T) {
	job := NewCleanupJob(&mockExecutor{}, testLogger())
	if job.RetentionDays != 90 {
		t.Errorf("RetentionDays = %d, want 90", job.RetentionDays)
	}
}

// 削除クエリが消費済みかつ通知済みのセッションのみを対象とすることを検証
func TestRun_DeletesOnlyConsumedAndNotified(t *testing.T) {
	exec := &mockExecutor{rows: 3}
	job := NewCleanupJob(exec, testLogger())

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run がエラーを返した: %v", err)
	}

	if !strings.Contains(exec.query, "consumed = TRUE") {
		t.Errorf("クエリが消費済みに限定されていない: %s", exec.query)
	}
	if !strings.Contains(exec.query, "notified_at IS NOT NULL") {
		t.Errorf("クエリが通知済みに限定されていない: %s", exec.query)
	}
	if len(exec.args) != 1 || exec.args[0] != "90 days" {
		t.Errorf("保持期間の引数 = %v, want [90 days]", exec.args)
	}
}

// 保持日数の変更が反映されることを検証
func TestRun_CustomRetention(t *testing.T) {
	exec := &mockExecutor{}
	job := NewCleanupJob(exec, testLogger())
	job.RetentionDays = 30

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run がエラーを返した: %v", err)
	}

	if len(exec.args) != 1 || exec.args[0] != "30 days" {
		t.Errorf("保持期間の引数 = %v, want [30 days]", exec.args)
	}
}

// SQL実行エラーが伝播することを検証
func TestRun_ExecError(t *testing.T) {
	exec := &mockExecutor{execErr: fmt.Errorf("connection closed")}
	job := NewCleanupJob(exec, testLogger())

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("SQL実行エラーが伝播していない")
	}
}
