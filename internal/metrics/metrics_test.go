package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CollectorがRecorderインターフェースを満たすことを検証
func TestCollector_ImplementsRecorder(t *testing.T) {
	var _ Recorder = (*Collector)(nil)
}

// メトリクスが記録され/metricsで公開されることを検証
func TestCollector_RecordAndExpose(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordVerifySuccess("auth")
	c.RecordVerifySuccess("auth")
	c.RecordVerifyFailure("UNKNOWN_USERNAME")
	c.RecordLookupLatency(120 * time.Millisecond)
	c.RecordNotificationSent()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, req)

	body := rec.Body.String()

	if !strings.Contains(body, `mclink_verify_success_total{mode="auth"} 2`) {
		t.Errorf("verify_successが出力に含まれない:\n%s", body)
	}
	if !strings.Contains(body, `mclink_verify_fail_total{code="UNKNOWN_USERNAME"} 1`) {
		t.Errorf("verify_failが出力に含まれない:\n%s", body)
	}
	if !strings.Contains(body, "mclink_lookup_latency_seconds") {
		t.Errorf("lookup_latencyが出力に含まれない:\n%s", body)
	}
	if !strings.Contains(body, "mclink_notifications_sent_total 1") {
		t.Errorf("notifications_sentが出力に含まれない:\n%s", body)
	}
}

// 同一レジストリへの二重登録でpanicすることを検証（MustRegisterの前提確認）
func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("二重登録でpanicしなかった")
		}
	}()

	reg := prometheus.NewRegistry()
	NewCollector(reg)
	NewCollector(reg)
}
